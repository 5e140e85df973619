package agentrun

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"time"

	"github.com/hospital-urgencias/clinops/internal/shared/events"
	"github.com/hospital-urgencias/clinops/internal/shared/metrics"
)

// Engine wraps every workflow in the same run/step trace discipline.
type Engine struct {
	repo      *Repository
	publisher events.Publisher
	logger    *slog.Logger
}

// NewEngine creates the run engine.
func NewEngine(repo *Repository, publisher events.Publisher, logger *slog.Logger) *Engine {
	return &Engine{repo: repo, publisher: publisher, logger: logger}
}

// Execute runs one workflow end to end: persist the running row, invoke the
// evaluator, apply the gate, write the single step trace, finalize the run.
// taskProjection is merged into the run input alongside the typed input.
//
// The returned run always has total_latency_ms set; on evaluator or
// persistence failure the run is finalized as failed before the error is
// propagated.
func (e *Engine) Execute(ctx context.Context, desc *Descriptor, taskProjection map[string]any, input any) (*RunWithSteps, error) {
	runInput := toMap(input)
	for k, v := range taskProjection {
		runInput[k] = v
	}

	run, err := e.repo.CreateRun(ctx, desc.Workflow, runInput)
	if err != nil {
		return nil, err
	}

	runStart := time.Now()
	stepStart := time.Now()

	output, err := desc.Evaluate(ctx, input)
	if err != nil {
		return nil, e.fail(ctx, run, desc, input, err, runStart, stepStart)
	}

	decision := desc.DecisionTag
	fallbackUsed := false
	if desc.Gate != nil {
		output, decision, fallbackUsed = desc.Gate(output)
	}

	step := &AgentStep{
		AgentRunID:    run.ID,
		StepOrder:     1,
		StepName:      desc.StepName,
		Status:        StatusCompleted,
		StepInput:     toMap(input),
		StepOutput:    toMap(output),
		Decision:      decision,
		FallbackUsed:  fallbackUsed,
		StepCostUSD:   0,
		StepLatencyMS: millisSince(stepStart),
	}
	if err := e.repo.CreateStep(ctx, step); err != nil {
		return nil, e.fail(ctx, run, desc, input, err, runStart, stepStart)
	}

	runOutput := map[string]any{desc.OutputKey: toMap(output)}
	if err := e.repo.FinalizeRun(ctx, run.ID, StatusCompleted, runOutput, nil, 0, millisSince(runStart)); err != nil {
		return nil, err
	}

	metrics.RecordWorkflowRun(desc.Workflow, string(StatusCompleted))
	e.publisher.PublishAsync(events.NewEvent(events.TypeRunCompleted, map[string]any{
		"run_id":        run.ID.String(),
		"workflow_name": desc.Workflow,
		"fallback_used": fallbackUsed,
		"decision":      decision,
	}))

	return e.repo.GetRunWithSteps(ctx, run.ID)
}

// fail finalizes the run as failed with the wall-clock latency and a failure
// step trace, then returns the original error for the HTTP layer to map.
func (e *Engine) fail(ctx context.Context, run *AgentRun, desc *Descriptor, input any, cause error, runStart, stepStart time.Time) error {
	msg := cause.Error()

	failStep := &AgentStep{
		AgentRunID:    run.ID,
		StepOrder:     1,
		StepName:      desc.StepName,
		Status:        StatusFailed,
		StepInput:     toMap(input),
		Decision:      "error",
		ErrorMessage:  &msg,
		StepLatencyMS: millisSince(stepStart),
	}
	// Best effort: the run row is the authoritative failure record.
	if err := e.repo.CreateStep(ctx, failStep); err != nil {
		e.logger.Warn("failed to persist failure step", "run_id", run.ID, "error", err)
	}

	if err := e.repo.FinalizeRun(ctx, run.ID, StatusFailed, nil, &msg, 0, millisSince(runStart)); err != nil {
		e.logger.Error("failed to finalize failed run", "run_id", run.ID, "error", err)
	}

	metrics.RecordWorkflowRun(desc.Workflow, string(StatusFailed))
	e.publisher.PublishAsync(events.NewEvent(events.TypeRunFailed, map[string]any{
		"run_id":        run.ID.String(),
		"workflow_name": desc.Workflow,
		"error":         msg,
	}))

	return cause
}

// FallbackRate is fallback_steps / total_runs as a percentage, rounded to
// two decimals; zero when there are no runs.
func FallbackRate(fallbackSteps, totalRuns int64) float64 {
	if totalRuns == 0 {
		return 0
	}
	return math.Round(float64(fallbackSteps)/float64(totalRuns)*100*100) / 100
}

func millisSince(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

// toMap converts a struct (or map) to a JSON object map for the opaque
// run_input/run_output columns.
func toMap(v any) map[string]any {
	if v == nil {
		return map[string]any{}
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{}
	}
	return m
}
