// Package agentrun implements the uniform workflow execution and trace
// substrate: every rule workflow runs through the same engine, persists one
// run row with step traces, and is queryable through the same listings.
package agentrun

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of an agent run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// AgentRun is a single execution of a named workflow.
type AgentRun struct {
	ID             uuid.UUID      `json:"id"`
	WorkflowName   string         `json:"workflow_name"`
	Status         RunStatus      `json:"status"`
	RunInput       map[string]any `json:"run_input"`
	RunOutput      map[string]any `json:"run_output,omitempty"`
	ErrorMessage   *string        `json:"error_message,omitempty"`
	TotalCostUSD   float64        `json:"total_cost_usd"`
	TotalLatencyMS int64          `json:"total_latency_ms"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// AgentStep is one traceable phase inside a run.
type AgentStep struct {
	ID            uuid.UUID      `json:"id"`
	AgentRunID    uuid.UUID      `json:"agent_run_id"`
	StepOrder     int            `json:"step_order"`
	StepName      string         `json:"step_name"`
	Status        RunStatus      `json:"status"`
	StepInput     map[string]any `json:"step_input,omitempty"`
	StepOutput    map[string]any `json:"step_output,omitempty"`
	Decision      string         `json:"decision"`
	FallbackUsed  bool           `json:"fallback_used"`
	ErrorMessage  *string        `json:"error_message,omitempty"`
	StepCostUSD   float64        `json:"step_cost_usd"`
	StepLatencyMS int64          `json:"step_latency_ms"`
	CreatedAt     time.Time      `json:"created_at"`
}

// RunWithSteps bundles a run with its ordered steps.
type RunWithSteps struct {
	AgentRun
	Steps []AgentStep `json:"steps"`
}

// ListFilter narrows the recent-runs listing.
type ListFilter struct {
	Limit        int
	Status       *RunStatus
	WorkflowName *string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
}

// OpsSummary aggregates run totals and step fallback counts.
type OpsSummary struct {
	WorkflowName        string  `json:"workflow_name,omitempty"`
	TotalRuns           int64   `json:"total_runs"`
	CompletedRuns       int64   `json:"completed_runs"`
	FailedRuns          int64   `json:"failed_runs"`
	RunningRuns         int64   `json:"running_runs"`
	FallbackSteps       int64   `json:"fallback_steps"`
	FallbackRatePercent float64 `json:"fallback_rate_percent"`
	AvgLatencyMS        float64 `json:"avg_latency_ms"`
}
