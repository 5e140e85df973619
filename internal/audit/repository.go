package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists domain audits.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert inserts or replaces the audit for an agent run.
func (r *Repository) Upsert(ctx context.Context, a *Audit) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO domain_audits (id, care_task_id, agent_run_id, domain, ai_level, human_level,
		   ai_flags, human_flags, classification, reviewer_note, reviewed_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		 ON CONFLICT (agent_run_id) DO UPDATE
		 SET human_level = EXCLUDED.human_level,
		     human_flags = EXCLUDED.human_flags,
		     ai_level = EXCLUDED.ai_level,
		     ai_flags = EXCLUDED.ai_flags,
		     classification = EXCLUDED.classification,
		     reviewer_note = EXCLUDED.reviewer_note,
		     reviewed_by = EXCLUDED.reviewed_by,
		     updated_at = EXCLUDED.updated_at`,
		a.ID, a.CareTaskID, a.AgentRunID, a.Domain, a.AILevel, a.HumanLevel,
		a.AIFlags, a.HumanFlags, a.Classification, a.ReviewerNote, a.ReviewedBy, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: upsert: %w", err)
	}
	return nil
}

// GetByRunID returns the stored audit for a run, or nil.
func (r *Repository) GetByRunID(ctx context.Context, runID uuid.UUID) (*Audit, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, care_task_id, agent_run_id, domain, ai_level, human_level,
		   ai_flags, human_flags, classification, reviewer_note, reviewed_by, created_at, updated_at
		 FROM domain_audits WHERE agent_run_id = $1`, runID)
	if err != nil {
		return nil, fmt.Errorf("audit: get by run: %w", err)
	}
	defer rows.Close()
	audits, err := scanAudits(rows)
	if err != nil {
		return nil, err
	}
	if len(audits) == 0 {
		return nil, nil
	}
	return &audits[0], nil
}

// ListForTaskDomain returns every audit recorded for a task in one domain,
// historical runs included.
func (r *Repository) ListForTaskDomain(ctx context.Context, taskID uuid.UUID, domain string) ([]Audit, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, care_task_id, agent_run_id, domain, ai_level, human_level,
		   ai_flags, human_flags, classification, reviewer_note, reviewed_by, created_at, updated_at
		 FROM domain_audits
		 WHERE care_task_id = $1 AND domain = $2
		 ORDER BY created_at ASC`, taskID, domain)
	if err != nil {
		return nil, fmt.Errorf("audit: list for task: %w", err)
	}
	defer rows.Close()
	return scanAudits(rows)
}

// CountsByDomain aggregates classification counts for every domain.
func (r *Repository) CountsByDomain(ctx context.Context) ([]DomainCounts, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT domain,
		   COUNT(*),
		   COUNT(*) FILTER (WHERE classification = 'match'),
		   COUNT(*) FILTER (WHERE classification LIKE 'under\_%'),
		   COUNT(*) FILTER (WHERE classification LIKE 'over\_%')
		 FROM domain_audits
		 GROUP BY domain
		 ORDER BY domain`)
	if err != nil {
		return nil, fmt.Errorf("audit: counts by domain: %w", err)
	}
	defer rows.Close()

	var counts []DomainCounts
	for rows.Next() {
		var c DomainCounts
		if err := rows.Scan(&c.Domain, &c.TotalAudits, &c.Matches, &c.UnderEvents, &c.OverEvents); err != nil {
			return nil, fmt.Errorf("audit: scan counts: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

type auditRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanAudits(rows auditRows) ([]Audit, error) {
	var audits []Audit
	for rows.Next() {
		var a Audit
		if err := rows.Scan(&a.ID, &a.CareTaskID, &a.AgentRunID, &a.Domain, &a.AILevel, &a.HumanLevel,
			&a.AIFlags, &a.HumanFlags, &a.Classification, &a.ReviewerNote, &a.ReviewedBy,
			&a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		audits = append(audits, a)
	}
	return audits, rows.Err()
}
