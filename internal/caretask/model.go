package caretask

import (
	"time"

	"github.com/google/uuid"

	"github.com/hospital-urgencias/clinops/internal/rules"
	apperrors "github.com/hospital-urgencias/clinops/internal/shared/errors"
)

// CareTask is an operational work unit attached to a patient encounter.
type CareTask struct {
	ID                  uuid.UUID  `json:"id"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	ClinicalPriority    string     `json:"clinical_priority"`
	Specialty           string     `json:"specialty"`
	PatientReference    *string    `json:"patient_reference,omitempty"`
	SLATargetMinutes    int        `json:"sla_target_minutes"`
	HumanReviewRequired bool       `json:"human_review_required"`
	Completed           bool       `json:"completed"`
	CreatedBy           *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// CreateRequest is the care-task creation payload.
type CreateRequest struct {
	Title               string  `json:"title"`
	Description         string  `json:"description"`
	ClinicalPriority    string  `json:"clinical_priority"`
	Specialty           string  `json:"specialty"`
	PatientReference    *string `json:"patient_reference"`
	SLATargetMinutes    int     `json:"sla_target_minutes"`
	HumanReviewRequired *bool   `json:"human_review_required"`
}

// UpdateRequest is the partial-update payload; nil fields are untouched.
type UpdateRequest struct {
	Title               *string `json:"title"`
	Description         *string `json:"description"`
	ClinicalPriority    *string `json:"clinical_priority"`
	Specialty           *string `json:"specialty"`
	PatientReference    *string `json:"patient_reference"`
	SLATargetMinutes    *int    `json:"sla_target_minutes"`
	HumanReviewRequired *bool   `json:"human_review_required"`
	Completed           *bool   `json:"completed"`
}

// TriageReview is the human approve/reject record for a triage run.
type TriageReview struct {
	ID           uuid.UUID `json:"id"`
	CareTaskID   uuid.UUID `json:"care_task_id"`
	AgentRunID   uuid.UUID `json:"agent_run_id"`
	Approved     bool      `json:"approved"`
	ReviewerNote *string   `json:"reviewer_note,omitempty"`
	ReviewedBy   string    `json:"reviewed_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// RunProjection is the care-task slice merged into run_input so later audit
// submissions can verify run/task ownership.
func (t *CareTask) RunProjection() map[string]any {
	return map[string]any{
		"care_task_id":      t.ID.String(),
		"care_task_title":   t.Title,
		"clinical_priority": t.ClinicalPriority,
		"specialty":         t.Specialty,
		"patient_reference": t.PatientReference,
	}
}

var validPriorities = map[string]bool{
	rules.PriorityLow:      true,
	rules.PriorityMedium:   true,
	rules.PriorityHigh:     true,
	rules.PriorityCritical: true,
}

func validatePriority(priority string) error {
	if !validPriorities[priority] {
		return apperrors.BadRequest("clinical_priority must be one of low, medium, high, critical")
	}
	return nil
}
