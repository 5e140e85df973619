package caretask

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/hospital-urgencias/clinops/internal/shared/errors"
)

// Repository persists care tasks and triage reviews.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a care-task repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const taskColumns = `id, title, description, clinical_priority, specialty, patient_reference,
	sla_target_minutes, human_review_required, completed, created_by, created_at, updated_at`

func scanTask(row pgx.Row) (*CareTask, error) {
	var t CareTask
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.ClinicalPriority, &t.Specialty,
		&t.PatientReference, &t.SLATargetMinutes, &t.HumanReviewRequired, &t.Completed,
		&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a care task.
func (r *Repository) Create(ctx context.Context, t *CareTask) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO care_tasks (id, title, description, clinical_priority, specialty, patient_reference,
		   sla_target_minutes, human_review_required, completed, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.Title, t.Description, t.ClinicalPriority, t.Specialty, t.PatientReference,
		t.SLATargetMinutes, t.HumanReviewRequired, t.Completed, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("caretask: create: %w", err)
	}
	return nil
}

// Get returns one care task or a not-found error.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*CareTask, error) {
	t, err := scanTask(r.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM care_tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("care task", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("caretask: get: %w", err)
	}
	return t, nil
}

// List returns care tasks, newest first, optionally filtered by completion.
func (r *Repository) List(ctx context.Context, completed *bool, limit int) ([]CareTask, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := `SELECT ` + taskColumns + ` FROM care_tasks`
	args := []any{}
	if completed != nil {
		query += ` WHERE completed = $1`
		args = append(args, *completed)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("caretask: list: %w", err)
	}
	defer rows.Close()

	var tasks []CareTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("caretask: scan: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// Update persists a full row after the caller applied the partial update.
func (r *Repository) Update(ctx context.Context, t *CareTask) error {
	t.UpdatedAt = time.Now().UTC()
	tag, err := r.pool.Exec(ctx,
		`UPDATE care_tasks
		 SET title = $1, description = $2, clinical_priority = $3, specialty = $4,
		     patient_reference = $5, sla_target_minutes = $6, human_review_required = $7,
		     completed = $8, updated_at = $9
		 WHERE id = $10`,
		t.Title, t.Description, t.ClinicalPriority, t.Specialty, t.PatientReference,
		t.SLATargetMinutes, t.HumanReviewRequired, t.Completed, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("caretask: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("care task", t.ID.String())
	}
	return nil
}

// Delete removes a care task; cascades take the chat messages and audits.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM care_tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("caretask: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("care task", id.String())
	}
	return nil
}

// CreateTriageReview records an approve/reject decision for a triage run.
func (r *Repository) CreateTriageReview(ctx context.Context, review *TriageReview) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO triage_reviews (id, care_task_id, agent_run_id, approved, reviewer_note, reviewed_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		review.ID, review.CareTaskID, review.AgentRunID, review.Approved,
		review.ReviewerNote, review.ReviewedBy, review.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("caretask: create triage review: %w", err)
	}
	return nil
}
