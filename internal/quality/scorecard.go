// Package quality projects the audit aggregates into a global scorecard
// with a coarse status: estable, atencion, degradado or sin_datos.
package quality

import (
	"context"
	"math"
	"net/http"

	"github.com/hospital-urgencias/clinops/internal/audit"
	apperrors "github.com/hospital-urgencias/clinops/internal/shared/errors"
	"github.com/hospital-urgencias/clinops/internal/shared/httpx"
)

// Status values, worst first.
const (
	StatusDegradado = "degradado"
	StatusAtencion  = "atencion"
	StatusEstable   = "estable"
	StatusSinDatos  = "sin_datos"
)

// Deviation thresholds that flip the scorecard to degradado.
const (
	underRateThreshold = 10.0
	overRateThreshold  = 20.0
)

// DomainScore is one domain's normalized entry in the scorecard.
type DomainScore struct {
	Domain           string  `json:"domain"`
	TotalAudits      int64   `json:"total_audits"`
	Matches          int64   `json:"matches"`
	UnderEvents      int64   `json:"under_events"`
	OverEvents       int64   `json:"over_events"`
	UnderRatePercent float64 `json:"under_rate_percent"`
	OverRatePercent  float64 `json:"over_rate_percent"`
	MatchRatePercent float64 `json:"match_rate_percent"`
}

// Scorecard is the global audit quality view.
type Scorecard struct {
	TotalAudits      int64         `json:"total_audits"`
	Matches          int64         `json:"matches"`
	UnderEvents      int64         `json:"under_events"`
	OverEvents       int64         `json:"over_events"`
	UnderRatePercent float64       `json:"under_rate_percent"`
	OverRatePercent  float64       `json:"over_rate_percent"`
	MatchRatePercent float64       `json:"match_rate_percent"`
	QualityStatus    string        `json:"quality_status"`
	Domains          []DomainScore `json:"domains"`
}

// AuditCounts is the slice of the audit service the scorecard needs.
type AuditCounts interface {
	Counts(ctx context.Context) ([]audit.DomainCounts, error)
}

// Service computes the scorecard.
type Service struct {
	audits AuditCounts
}

// NewService creates the quality service.
func NewService(audits AuditCounts) *Service {
	return &Service{audits: audits}
}

// Scorecard aggregates every audit domain into the global view.
func (s *Service) Scorecard(ctx context.Context) (*Scorecard, error) {
	counts, err := s.audits.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return BuildScorecard(counts), nil
}

// BuildScorecard folds per-domain counts into the global scorecard.
func BuildScorecard(counts []audit.DomainCounts) *Scorecard {
	card := &Scorecard{Domains: []DomainScore{}}
	for _, c := range counts {
		card.TotalAudits += c.TotalAudits
		card.Matches += c.Matches
		card.UnderEvents += c.UnderEvents
		card.OverEvents += c.OverEvents

		card.Domains = append(card.Domains, DomainScore{
			Domain:           c.Domain,
			TotalAudits:      c.TotalAudits,
			Matches:          c.Matches,
			UnderEvents:      c.UnderEvents,
			OverEvents:       c.OverEvents,
			UnderRatePercent: rate(c.UnderEvents, c.TotalAudits),
			OverRatePercent:  rate(c.OverEvents, c.TotalAudits),
			MatchRatePercent: rate(c.Matches, c.TotalAudits),
		})
	}

	card.UnderRatePercent = rate(card.UnderEvents, card.TotalAudits)
	card.OverRatePercent = rate(card.OverEvents, card.TotalAudits)
	card.MatchRatePercent = rate(card.Matches, card.TotalAudits)
	card.QualityStatus = ProjectStatus(card.TotalAudits, card.UnderRatePercent, card.OverRatePercent)
	return card
}

// ProjectStatus maps the global rates to the coarse quality status.
func ProjectStatus(totalAudits int64, underRate, overRate float64) string {
	switch {
	case totalAudits == 0:
		return StatusSinDatos
	case underRate > underRateThreshold || overRate > overRateThreshold:
		return StatusDegradado
	case underRate > 0 || overRate > 0:
		return StatusAtencion
	default:
		return StatusEstable
	}
}

// ScorecardHandler serves GET /care-tasks/quality/scorecard.
func (s *Service) ScorecardHandler(w http.ResponseWriter, r *http.Request) {
	card, err := s.Scorecard(r.Context())
	if err != nil {
		httpx.WriteError(w, apperrors.Wrap(err, "failed to build scorecard"))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, card)
}

func rate(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*100*100) / 100
}
