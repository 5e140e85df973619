// Package audit records human reviews of workflow runs and classifies the
// deviation between the AI recommendation and the clinician's judgement.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Audit is one human review of a completed run. Unique per agent_run_id;
// re-submission updates in place.
type Audit struct {
	ID             uuid.UUID       `json:"id"`
	CareTaskID     uuid.UUID       `json:"care_task_id"`
	AgentRunID     uuid.UUID       `json:"agent_run_id"`
	Domain         string          `json:"domain"`
	AILevel        int             `json:"ai_level"`
	HumanLevel     int             `json:"human_level"`
	AIFlags        map[string]bool `json:"ai_flags"`
	HumanFlags     map[string]bool `json:"human_flags"`
	Classification string          `json:"classification"`
	ReviewerNote   *string         `json:"reviewer_note,omitempty"`
	ReviewedBy     string          `json:"reviewed_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// RecordRequest is the audit submission payload. Level domains take a
// numeric level or a category string; flag domains take human_flags.
type RecordRequest struct {
	AgentRunID          uuid.UUID       `json:"agent_run_id"`
	HumanValidatedLevel *int            `json:"human_validated_level"`
	HumanLevel          *int            `json:"human_level"`
	HumanCategory       *string         `json:"human_category"`
	HumanFlags          map[string]bool `json:"human_flags"`
	ReviewerNote        *string         `json:"reviewer_note"`
}

// DomainCounts is the normalized per-domain aggregate used by the summary
// endpoint and the quality scorecard.
type DomainCounts struct {
	Domain      string `json:"domain"`
	TotalAudits int64  `json:"total_audits"`
	Matches     int64  `json:"matches"`
	UnderEvents int64  `json:"under_events"`
	OverEvents  int64  `json:"over_events"`
}
