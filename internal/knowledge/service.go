package knowledge

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/hospital-urgencias/clinops/internal/shared/errors"
	"github.com/hospital-urgencias/clinops/internal/shared/events"
)

// Service implements source submission and sealing.
type Service struct {
	repo      *Repository
	whitelist *Whitelist
	publisher events.Publisher
	logger    *slog.Logger
}

// NewService creates the knowledge service.
func NewService(repo *Repository, whitelist *Whitelist, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{repo: repo, whitelist: whitelist, publisher: publisher, logger: logger}
}

// Create validates and inserts a pending source. A source must carry
// content or a URL; external URLs must sit on a whitelisted host.
func (s *Service) Create(ctx context.Context, req CreateRequest, createdBy *uuid.UUID) (*Source, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, apperrors.BadRequest("title is required")
	}
	if !validSourceTypes[req.SourceType] {
		return nil, apperrors.BadRequest("source_type must be one of guideline, pubmed, mir, institutional, internal_note")
	}
	hasURL := req.SourceURL != nil && strings.TrimSpace(*req.SourceURL) != ""
	if strings.TrimSpace(req.Content) == "" && !hasURL {
		return nil, apperrors.BadRequest("a source needs content or a source_url")
	}

	var sourceDomain *string
	if hasURL {
		if !s.whitelist.AllowsURL(*req.SourceURL) {
			return nil, apperrors.BadRequest("Dominio no permitido: " + Host(*req.SourceURL))
		}
		host := Host(*req.SourceURL)
		sourceDomain = &host
	}

	specialty := strings.TrimSpace(strings.ToLower(req.Specialty))
	if specialty == "" {
		specialty = "general"
	}
	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}

	now := time.Now().UTC()
	source := &Source{
		ID:           uuid.New(),
		Specialty:    specialty,
		Title:        req.Title,
		Summary:      req.Summary,
		Content:      req.Content,
		SourceType:   req.SourceType,
		SourceURL:    req.SourceURL,
		SourceDomain: sourceDomain,
		SourcePath:   req.SourcePath,
		Tags:         tags,
		Status:       StatusPendingReview,
		CreatedBy:    createdBy,
		ExpiresAt:    req.ExpiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, source); err != nil {
		return nil, apperrors.Internal(err)
	}
	return source, nil
}

// Seal applies a superuser decision to a source and appends the event to
// the validation history. Approving a URL-backed source rechecks the
// whitelist: a host that fell off the list since submission blocks the
// seal and the source keeps its prior status.
func (s *Service) Seal(ctx context.Context, sourceID uuid.UUID, req SealRequest, reviewedBy *uuid.UUID) (*Validation, error) {
	source, err := s.repo.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	var newStatus string
	switch req.Decision {
	case DecisionApprove:
		if source.SourceURL != nil && *source.SourceURL != "" && !s.whitelist.AllowsURL(*source.SourceURL) {
			return nil, apperrors.BadRequest("Dominio no permitido: " + Host(*source.SourceURL))
		}
		newStatus = StatusValidated
	case DecisionReject:
		newStatus = StatusRejected
	case DecisionExpire:
		newStatus = StatusExpired
	default:
		return nil, apperrors.BadRequest("decision must be approve, reject or expire")
	}

	if err := s.repo.UpdateStatus(ctx, sourceID, newStatus, reviewedBy); err != nil {
		return nil, err
	}

	v := &Validation{
		ID:             uuid.New(),
		SourceID:       sourceID,
		Decision:       req.Decision,
		PreviousStatus: source.Status,
		NewStatus:      newStatus,
		Note:           req.Note,
		ReviewedBy:     reviewedBy,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.CreateValidation(ctx, v); err != nil {
		return nil, apperrors.Internal(err)
	}

	s.publisher.PublishAsync(events.NewEvent(events.TypeKnowledgeSealed, map[string]any{
		"source_id":  sourceID.String(),
		"decision":   req.Decision,
		"new_status": newStatus,
	}))

	return v, nil
}

// ActiveSources returns the validated, unexpired sources for the
// effective specialty plus the general pool.
func (s *Service) ActiveSources(ctx context.Context, specialty string) ([]Source, error) {
	specialties := []string{"general"}
	if specialty != "" && specialty != "general" {
		specialties = append(specialties, specialty)
	}
	sources, err := s.repo.ListActive(ctx, specialties)
	if err != nil {
		return nil, err
	}
	return sources, nil
}

// Whitelist exposes the configured whitelist for the chat web fetcher.
func (s *Service) Whitelist() *Whitelist {
	return s.whitelist
}
