package quality

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hospital-urgencias/clinops/internal/agentrun"
	"github.com/hospital-urgencias/clinops/internal/shared/metrics"
)

// Gauges builds the scrape-time quality and ops gauges. Each callback runs
// a short query on scrape; errors surface as 0.0.
func Gauges(svc *Service, runs *agentrun.Repository) []metrics.LazyGauge {
	statusValue := func(target string) func(ctx context.Context) (float64, error) {
		return func(ctx context.Context) (float64, error) {
			card, err := svc.Scorecard(ctx)
			if err != nil {
				return 0, err
			}
			if card.QualityStatus == target {
				return 1, nil
			}
			return 0, nil
		}
	}

	gauges := []metrics.LazyGauge{
		{
			Name: "clinops_audit_total",
			Help: "Total human audits recorded across all domains",
			Value: func(ctx context.Context) (float64, error) {
				card, err := svc.Scorecard(ctx)
				if err != nil {
					return 0, err
				}
				return float64(card.TotalAudits), nil
			},
		},
		{
			Name: "clinops_audit_under_rate_percent",
			Help: "Global under-call rate across audit domains",
			Value: func(ctx context.Context) (float64, error) {
				card, err := svc.Scorecard(ctx)
				if err != nil {
					return 0, err
				}
				return card.UnderRatePercent, nil
			},
		},
		{
			Name: "clinops_audit_over_rate_percent",
			Help: "Global over-call rate across audit domains",
			Value: func(ctx context.Context) (float64, error) {
				card, err := svc.Scorecard(ctx)
				if err != nil {
					return 0, err
				}
				return card.OverRatePercent, nil
			},
		},
		{
			Name: "clinops_audit_match_rate_percent",
			Help: "Global match rate across audit domains",
			Value: func(ctx context.Context) (float64, error) {
				card, err := svc.Scorecard(ctx)
				if err != nil {
					return 0, err
				}
				return card.MatchRatePercent, nil
			},
		},
		{
			Name: "clinops_agent_runs_total",
			Help: "Total persisted agent runs",
			Value: runs.TotalRuns,
		},
		{
			Name: "clinops_agent_fallback_rate_percent",
			Help: "Share of runs that used the safe-default fallback",
			Value: func(ctx context.Context) (float64, error) {
				return runs.FallbackRatePercent(ctx)
			},
		},
	}

	for _, status := range []string{StatusEstable, StatusAtencion, StatusDegradado, StatusSinDatos} {
		gauges = append(gauges, metrics.LazyGauge{
			Name:        "clinops_quality_status",
			Help:        "Current quality status, one-hot per status label",
			ConstLabels: prometheus.Labels{"status": status},
			Value:       statusValue(status),
		})
	}

	return gauges
}
