// Package knowledge maintains the validated clinical source catalog used
// by the chat retrieval pipeline.
package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// Source statuses.
const (
	StatusPendingReview = "pending_review"
	StatusValidated     = "validated"
	StatusRejected      = "rejected"
	StatusExpired       = "expired"
)

// Seal decisions.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
	DecisionExpire  = "expire"
)

var validSourceTypes = map[string]bool{
	"guideline":     true,
	"pubmed":        true,
	"mir":           true,
	"institutional": true,
	"internal_note": true,
}

// Source is one validated catalog entry.
type Source struct {
	ID           uuid.UUID  `json:"id"`
	Specialty    string     `json:"specialty"`
	Title        string     `json:"title"`
	Summary      string     `json:"summary"`
	Content      string     `json:"content"`
	SourceType   string     `json:"source_type"`
	SourceURL    *string    `json:"source_url,omitempty"`
	SourceDomain *string    `json:"source_domain,omitempty"`
	SourcePath   *string    `json:"source_path,omitempty"`
	Tags         []string   `json:"tags"`
	Status       string     `json:"status"`
	CreatedBy    *uuid.UUID `json:"created_by,omitempty"`
	ValidatedBy  *uuid.UUID `json:"validated_by,omitempty"`
	ValidatedAt  *time.Time `json:"validated_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Active reports whether the source may be served to the chat pipeline.
func (s *Source) Active(now time.Time) bool {
	if s.Status != StatusValidated {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}

// Validation is one append-only seal event.
type Validation struct {
	ID             uuid.UUID  `json:"id"`
	SourceID       uuid.UUID  `json:"source_id"`
	Decision       string     `json:"decision"`
	PreviousStatus string     `json:"previous_status"`
	NewStatus      string     `json:"new_status"`
	Note           *string    `json:"note,omitempty"`
	ReviewedBy     *uuid.UUID `json:"reviewed_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// CreateRequest is the source submission payload.
type CreateRequest struct {
	Specialty  string     `json:"specialty"`
	Title      string     `json:"title"`
	Summary    string     `json:"summary"`
	Content    string     `json:"content"`
	SourceType string     `json:"source_type"`
	SourceURL  *string    `json:"source_url"`
	SourcePath *string    `json:"source_path"`
	Tags       []string   `json:"tags"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

// SealRequest is the superuser seal payload.
type SealRequest struct {
	Decision string  `json:"decision"`
	Note     *string `json:"note"`
}
