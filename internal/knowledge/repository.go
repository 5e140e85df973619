package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/hospital-urgencias/clinops/internal/shared/errors"
)

// Repository persists knowledge sources and their validation history.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a knowledge repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const sourceColumns = `id, specialty, title, summary, content, source_type, source_url, source_domain,
	source_path, tags, status, created_by, validated_by, validated_at, expires_at, created_at, updated_at`

func scanSource(row pgx.Row) (*Source, error) {
	var s Source
	err := row.Scan(&s.ID, &s.Specialty, &s.Title, &s.Summary, &s.Content, &s.SourceType,
		&s.SourceURL, &s.SourceDomain, &s.SourcePath, &s.Tags, &s.Status,
		&s.CreatedBy, &s.ValidatedBy, &s.ValidatedAt, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
	return &s, nil
}

// Create inserts a new source.
func (r *Repository) Create(ctx context.Context, s *Source) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO clinical_knowledge_sources (id, specialty, title, summary, content, source_type,
		   source_url, source_domain, source_path, tags, status, created_by, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		s.ID, s.Specialty, s.Title, s.Summary, s.Content, s.SourceType,
		s.SourceURL, s.SourceDomain, s.SourcePath, s.Tags, s.Status, s.CreatedBy,
		s.ExpiresAt, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("knowledge: create source: %w", err)
	}
	return nil
}

// Get returns one source or a not-found error.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Source, error) {
	s, err := scanSource(r.pool.QueryRow(ctx,
		`SELECT `+sourceColumns+` FROM clinical_knowledge_sources WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("knowledge source", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("knowledge: get source: %w", err)
	}
	return s, nil
}

// ListFilter narrows the catalog listing. Zero values mean no filter;
// Limit is clamped to [1,200] with a default of 50.
type ListFilter struct {
	Specialty     string
	Status        string
	ValidatedOnly bool
	Limit         int
}

// List returns sources, newest first, applying the filter.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Source, error) {
	query, args := buildSourceListQuery(filter)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("knowledge: list sources: %w", err)
	}
	defer rows.Close()
	return collectSources(rows)
}

func buildSourceListQuery(filter ListFilter) (string, []any) {
	query := `SELECT ` + sourceColumns + ` FROM clinical_knowledge_sources`
	var conds []string
	var args []any

	if filter.Specialty != "" {
		args = append(args, filter.Specialty)
		conds = append(conds, fmt.Sprintf("specialty = $%d", len(args)))
	}
	if filter.ValidatedOnly {
		args = append(args, StatusValidated)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	} else if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", clampLimit(filter.Limit, 200, 50))
	return query, args
}

// clampLimit bounds a requested page size to [1,max], falling back to the
// default when unset or out of range.
func clampLimit(limit, max, fallback int) int {
	if limit < 1 || limit > max {
		return fallback
	}
	return limit
}

// ListActive returns validated, unexpired sources for the given
// specialties.
func (r *Repository) ListActive(ctx context.Context, specialties []string) ([]Source, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sourceColumns+`
		 FROM clinical_knowledge_sources
		 WHERE status = $1
		   AND specialty = ANY($2)
		   AND (expires_at IS NULL OR expires_at > NOW())
		 ORDER BY created_at DESC`,
		StatusValidated, specialties)
	if err != nil {
		return nil, fmt.Errorf("knowledge: list active sources: %w", err)
	}
	defer rows.Close()
	return collectSources(rows)
}

// UpdateStatus transitions a source. validated_by/validated_at are stamped
// only when the transition is an approval; the validation event row carries
// reviewer and time for the other decisions.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, validatedBy *uuid.UUID) error {
	var tag pgconn.CommandTag
	var err error
	if status == StatusValidated {
		tag, err = r.pool.Exec(ctx, statusUpdateQuery(status), status, validatedBy, id)
	} else {
		tag, err = r.pool.Exec(ctx, statusUpdateQuery(status), status, id)
	}
	if err != nil {
		return fmt.Errorf("knowledge: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("knowledge source", id.String())
	}
	return nil
}

func statusUpdateQuery(status string) string {
	if status == StatusValidated {
		return `UPDATE clinical_knowledge_sources
		 SET status = $1, validated_by = $2, validated_at = NOW(), updated_at = NOW()
		 WHERE id = $3`
	}
	return `UPDATE clinical_knowledge_sources
	 SET status = $1, updated_at = NOW()
	 WHERE id = $2`
}

// CreateValidation appends a seal event.
func (r *Repository) CreateValidation(ctx context.Context, v *Validation) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO clinical_knowledge_source_validations (id, source_id, decision, previous_status, new_status, note, reviewed_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		v.ID, v.SourceID, v.Decision, v.PreviousStatus, v.NewStatus, v.Note, v.ReviewedBy, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("knowledge: create validation: %w", err)
	}
	return nil
}

// ListValidations returns the seal history of a source, oldest first,
// bounded to [1,100] events.
func (r *Repository) ListValidations(ctx context.Context, sourceID uuid.UUID, limit int) ([]Validation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, source_id, decision, previous_status, new_status, note, reviewed_by, created_at
		 FROM clinical_knowledge_source_validations
		 WHERE source_id = $1
		 ORDER BY created_at ASC
		 LIMIT $2`, sourceID, clampLimit(limit, 100, 50))
	if err != nil {
		return nil, fmt.Errorf("knowledge: list validations: %w", err)
	}
	defer rows.Close()

	var validations []Validation
	for rows.Next() {
		var v Validation
		if err := rows.Scan(&v.ID, &v.SourceID, &v.Decision, &v.PreviousStatus, &v.NewStatus,
			&v.Note, &v.ReviewedBy, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("knowledge: scan validation: %w", err)
		}
		validations = append(validations, v)
	}
	return validations, rows.Err()
}

func collectSources(rows pgx.Rows) ([]Source, error) {
	var sources []Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("knowledge: scan source: %w", err)
		}
		sources = append(sources, *s)
	}
	return sources, rows.Err()
}
