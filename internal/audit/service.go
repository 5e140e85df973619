package audit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/hospital-urgencias/clinops/internal/agentrun"
	apperrors "github.com/hospital-urgencias/clinops/internal/shared/errors"
	"github.com/hospital-urgencias/clinops/internal/shared/events"
)

// Service implements audit recording and summarization.
type Service struct {
	repo      *Repository
	runs      *agentrun.Repository
	publisher events.Publisher
	logger    *slog.Logger
}

// NewService creates the audit service.
func NewService(repo *Repository, runs *agentrun.Repository, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{repo: repo, runs: runs, publisher: publisher, logger: logger}
}

// Record verifies run identity, extracts the AI flags from the run output
// and upserts the classified audit.
func (s *Service) Record(ctx context.Context, taskID uuid.UUID, kind *Kind, req RecordRequest, reviewedBy string) (*Audit, error) {
	run, err := s.runs.GetRun(ctx, req.AgentRunID)
	if err != nil {
		return nil, err
	}
	if run.WorkflowName != kind.Workflow {
		return nil, apperrors.BadRequest(fmt.Sprintf("run workflow %s does not match audit domain %s", run.WorkflowName, kind.Domain))
	}
	if taskRef, _ := run.RunInput["care_task_id"].(string); taskRef != taskID.String() {
		return nil, apperrors.BadRequest("run does not belong to this care task")
	}
	if run.RunOutput == nil {
		return nil, apperrors.BadRequest("run has no output to audit")
	}

	out, _ := run.RunOutput[kind.OutputKey].(map[string]any)
	if out == nil {
		return nil, apperrors.BadRequest("run output is missing the domain recommendation")
	}

	aiLevel, aiFlags := ExtractAI(kind, out)
	humanLevel, err := resolveHumanLevel(kind, req)
	if err != nil {
		return nil, err
	}
	humanFlags := req.HumanFlags
	if humanFlags == nil {
		humanFlags = map[string]bool{}
	}

	now := time.Now().UTC()
	a := &Audit{
		ID:             uuid.New(),
		CareTaskID:     taskID,
		AgentRunID:     run.ID,
		Domain:         kind.Domain,
		AILevel:        aiLevel,
		HumanLevel:     humanLevel,
		AIFlags:        aiFlags,
		HumanFlags:     humanFlags,
		Classification: Classify(kind, aiLevel, humanLevel, aiFlags, humanFlags),
		ReviewerNote:   req.ReviewerNote,
		ReviewedBy:     reviewedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Upsert(ctx, a); err != nil {
		return nil, apperrors.Internal(err)
	}

	s.publisher.PublishAsync(events.NewEvent(events.TypeAuditRecorded, map[string]any{
		"audit_id":       a.ID.String(),
		"agent_run_id":   a.AgentRunID.String(),
		"domain":         a.Domain,
		"classification": a.Classification,
	}))

	return a, nil
}

// Summarize aggregates every audit for the task in one domain: totals,
// per-classification counts, deviation rates and per-flag match rates.
func (s *Service) Summarize(ctx context.Context, taskID uuid.UUID, kind *Kind) (map[string]any, error) {
	audits, err := s.repo.ListForTaskDomain(ctx, taskID, kind.Domain)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	summary := map[string]any{
		"domain":       kind.Domain,
		"care_task_id": taskID,
		"total_audits": len(audits),
		"match":        0,
	}
	total := len(audits)
	matches, under, over := 0, 0, 0
	flagMatches := map[string]int{}

	for _, a := range audits {
		switch a.Classification {
		case "match":
			matches++
		case kind.UnderLabel():
			under++
		case kind.OverLabel():
			over++
		}
		for _, f := range kind.Flags {
			if a.AIFlags[f.Name] == a.HumanFlags[f.Name] {
				flagMatches[f.Name]++
			}
		}
	}

	summary["match"] = matches
	summary[kind.UnderLabel()] = under
	summary[kind.OverLabel()] = over
	summary[kind.UnderLabel()+"_rate_percent"] = ratePercent(under, total)
	summary[kind.OverLabel()+"_rate_percent"] = ratePercent(over, total)

	if len(kind.Flags) > 0 {
		rates := map[string]float64{}
		for _, f := range kind.Flags {
			rates[f.Name] = ratePercent(flagMatches[f.Name], total)
		}
		summary["flag_match_rates"] = rates
	}

	return summary, nil
}

// Counts returns the normalized per-domain aggregates for the scorecard.
func (s *Service) Counts(ctx context.Context) ([]DomainCounts, error) {
	return s.repo.CountsByDomain(ctx)
}

// ExtractAI derives the numeric level and boolean flags from a domain
// output map.
func ExtractAI(kind *Kind, out map[string]any) (int, map[string]bool) {
	level := 0
	if kind.LevelKey != "" {
		category, _ := out[kind.LevelKey].(string)
		level = kind.LevelMap[category]
	}
	flags := map[string]bool{}
	for _, f := range kind.Flags {
		flags[f.Name] = f.Extract(out)
	}
	return level, flags
}

// Classify maps the AI/human pair to match, under_<domain> or
// over_<domain>. Flag-only domains compare their primary flag; level
// domains compare numeric levels with the domain's scale direction.
func Classify(kind *Kind, aiLevel, humanLevel int, aiFlags, humanFlags map[string]bool) string {
	if kind.FlagOnly() {
		name := kind.Flags[0].Name
		ai, human := aiFlags[name], humanFlags[name]
		switch {
		case ai == human:
			return "match"
		case !ai && human:
			return kind.UnderLabel()
		default:
			return kind.OverLabel()
		}
	}

	switch {
	case aiLevel == humanLevel:
		return "match"
	case kind.InvertedScale && aiLevel > humanLevel,
		!kind.InvertedScale && aiLevel < humanLevel:
		return kind.UnderLabel()
	default:
		return kind.OverLabel()
	}
}

func resolveHumanLevel(kind *Kind, req RecordRequest) (int, error) {
	if kind.FlagOnly() {
		if req.HumanFlags == nil {
			return 0, apperrors.BadRequest("human_flags is required for this domain")
		}
		return 0, nil
	}
	if req.HumanValidatedLevel != nil {
		return *req.HumanValidatedLevel, nil
	}
	if req.HumanLevel != nil {
		return *req.HumanLevel, nil
	}
	if req.HumanCategory != nil {
		level, ok := kind.LevelMap[*req.HumanCategory]
		if !ok {
			return 0, apperrors.BadRequest("unknown human_category: " + *req.HumanCategory)
		}
		return level, nil
	}
	return 0, apperrors.BadRequest("a human level or category is required")
}

func ratePercent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*100*100) / 100
}
