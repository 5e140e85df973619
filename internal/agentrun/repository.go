package agentrun

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/hospital-urgencias/clinops/internal/shared/errors"
)

// Repository persists agent runs and steps in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a run repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateRun inserts a new run in running state and returns it.
func (r *Repository) CreateRun(ctx context.Context, workflowName string, runInput map[string]any) (*AgentRun, error) {
	now := time.Now().UTC()
	run := &AgentRun{
		ID:           uuid.New(),
		WorkflowName: workflowName,
		Status:       StatusRunning,
		RunInput:     runInput,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if run.RunInput == nil {
		run.RunInput = map[string]any{}
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO agent_runs (id, workflow_name, status, run_input, total_cost_usd, total_latency_ms, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 0, 0, $5, $6)`,
		run.ID, run.WorkflowName, string(run.Status), run.RunInput, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("agentrun: create run: %w", err)
	}
	return run, nil
}

// FinalizeRun records the terminal status, output or error, and wall-clock
// latency of a run.
func (r *Repository) FinalizeRun(ctx context.Context, id uuid.UUID, status RunStatus, output map[string]any, errorMessage *string, totalCostUSD float64, totalLatencyMS int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE agent_runs
		 SET status = $1, run_output = $2, error_message = $3, total_cost_usd = $4, total_latency_ms = $5, updated_at = NOW()
		 WHERE id = $6`,
		string(status), output, errorMessage, totalCostUSD, totalLatencyMS, id,
	)
	if err != nil {
		return fmt.Errorf("agentrun: finalize run: %w", err)
	}
	return nil
}

// CreateStep inserts one step trace.
func (r *Repository) CreateStep(ctx context.Context, step *AgentStep) error {
	if step.ID == uuid.Nil {
		step.ID = uuid.New()
	}
	if step.CreatedAt.IsZero() {
		step.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO agent_steps (id, agent_run_id, step_order, step_name, status, step_input, step_output,
		                          decision, fallback_used, error_message, step_cost_usd, step_latency_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		step.ID, step.AgentRunID, step.StepOrder, step.StepName, string(step.Status),
		step.StepInput, step.StepOutput, step.Decision, step.FallbackUsed,
		step.ErrorMessage, step.StepCostUSD, step.StepLatencyMS, step.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("agentrun: create step: %w", err)
	}
	return nil
}

const runColumns = `id, workflow_name, status, run_input, run_output, error_message, total_cost_usd, total_latency_ms, created_at, updated_at`

func scanRun(row pgx.Row) (*AgentRun, error) {
	var run AgentRun
	var status string
	err := row.Scan(
		&run.ID, &run.WorkflowName, &status, &run.RunInput, &run.RunOutput,
		&run.ErrorMessage, &run.TotalCostUSD, &run.TotalLatencyMS, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	return &run, nil
}

// GetRun fetches a run by id.
func (r *Repository) GetRun(ctx context.Context, id uuid.UUID) (*AgentRun, error) {
	run, err := scanRun(r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM agent_runs WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("agent run", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("agentrun: get run: %w", err)
	}
	return run, nil
}

// GetRunWithSteps fetches a run and its steps ordered by (step_order, id).
func (r *Repository) GetRunWithSteps(ctx context.Context, id uuid.UUID) (*RunWithSteps, error) {
	run, err := r.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, agent_run_id, step_order, step_name, status, step_input, step_output,
		        decision, fallback_used, error_message, step_cost_usd, step_latency_ms, created_at
		 FROM agent_steps WHERE agent_run_id = $1
		 ORDER BY step_order ASC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("agentrun: query steps: %w", err)
	}
	defer rows.Close()

	result := &RunWithSteps{AgentRun: *run}
	for rows.Next() {
		var step AgentStep
		var status string
		if err := rows.Scan(
			&step.ID, &step.AgentRunID, &step.StepOrder, &step.StepName, &status,
			&step.StepInput, &step.StepOutput, &step.Decision, &step.FallbackUsed,
			&step.ErrorMessage, &step.StepCostUSD, &step.StepLatencyMS, &step.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("agentrun: scan step: %w", err)
		}
		step.Status = RunStatus(status)
		result.Steps = append(result.Steps, step)
	}
	return result, rows.Err()
}

// ListRecent returns the most recent runs matching the filter, sorted by
// (created_at DESC, id DESC). The limit is clamped to [1, 100].
func (r *Repository) ListRecent(ctx context.Context, filter ListFilter) ([]AgentRun, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	var conditions []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != nil {
		conditions = append(conditions, "status = "+arg(string(*filter.Status)))
	}
	if filter.WorkflowName != nil {
		conditions = append(conditions, "workflow_name = "+arg(*filter.WorkflowName))
	}
	if filter.CreatedFrom != nil {
		conditions = append(conditions, "created_at >= "+arg(*filter.CreatedFrom))
	}
	if filter.CreatedTo != nil {
		conditions = append(conditions, "created_at <= "+arg(*filter.CreatedTo))
	}

	query := `SELECT ` + runColumns + ` FROM agent_runs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT " + arg(limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("agentrun: list runs: %w", err)
	}
	defer rows.Close()

	var runs []AgentRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("agentrun: scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// OpsSummary aggregates run totals and fallback counts, optionally filtered
// by workflow name.
func (r *Repository) OpsSummary(ctx context.Context, workflowName *string) (*OpsSummary, error) {
	summary := &OpsSummary{}
	if workflowName != nil {
		summary.WorkflowName = *workflowName
	}

	runQuery := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'failed'),
		       COUNT(*) FILTER (WHERE status = 'running'),
		       COALESCE(AVG(total_latency_ms), 0)
		FROM agent_runs`
	stepQuery := `
		SELECT COUNT(*)
		FROM agent_steps s
		JOIN agent_runs r ON r.id = s.agent_run_id
		WHERE s.fallback_used`

	var args []any
	if workflowName != nil {
		runQuery += ` WHERE workflow_name = $1`
		stepQuery += ` AND r.workflow_name = $1`
		args = append(args, *workflowName)
	}

	err := r.pool.QueryRow(ctx, runQuery, args...).Scan(
		&summary.TotalRuns, &summary.CompletedRuns, &summary.FailedRuns, &summary.RunningRuns, &summary.AvgLatencyMS,
	)
	if err != nil {
		return nil, fmt.Errorf("agentrun: ops summary runs: %w", err)
	}

	if err := r.pool.QueryRow(ctx, stepQuery, args...).Scan(&summary.FallbackSteps); err != nil {
		return nil, fmt.Errorf("agentrun: ops summary steps: %w", err)
	}

	summary.FallbackRatePercent = FallbackRate(summary.FallbackSteps, summary.TotalRuns)
	return summary, nil
}

// TotalRuns counts all runs; used by the metrics exporter.
func (r *Repository) TotalRuns(ctx context.Context) (float64, error) {
	var n float64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM agent_runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("agentrun: total runs: %w", err)
	}
	return n, nil
}

// FallbackRatePercent computes the current global fallback rate; used by the
// metrics exporter.
func (r *Repository) FallbackRatePercent(ctx context.Context) (float64, error) {
	var total, fallback int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM agent_runs`).Scan(&total); err != nil {
		return 0, fmt.Errorf("agentrun: fallback rate: %w", err)
	}
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM agent_steps WHERE fallback_used`).Scan(&fallback); err != nil {
		return 0, fmt.Errorf("agentrun: fallback rate: %w", err)
	}
	return FallbackRate(fallback, total), nil
}
