package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hospital-urgencias/clinops/internal/audit"
)

func TestProjectStatus(t *testing.T) {
	tests := []struct {
		name      string
		total     int64
		underRate float64
		overRate  float64
		want      string
	}{
		{"no data", 0, 0, 0, StatusSinDatos},
		{"all matches", 40, 0, 0, StatusEstable},
		{"some deviation below thresholds", 40, 5, 10, StatusAtencion},
		{"under rate crosses threshold", 40, 10.5, 0, StatusDegradado},
		{"over rate crosses threshold", 40, 0, 20.5, StatusDegradado},
		{"exactly at thresholds stays atencion", 40, 10, 20, StatusAtencion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProjectStatus(tt.total, tt.underRate, tt.overRate))
		})
	}
}

func TestBuildScorecardAggregatesDomains(t *testing.T) {
	card := BuildScorecard([]audit.DomainCounts{
		{Domain: "triage", TotalAudits: 10, Matches: 9, UnderEvents: 1, OverEvents: 0},
		{Domain: "scasest", TotalAudits: 2, Matches: 2},
	})

	assert.Equal(t, int64(12), card.TotalAudits)
	assert.Equal(t, int64(11), card.Matches)
	assert.Equal(t, int64(1), card.UnderEvents)
	assert.Equal(t, 8.33, card.UnderRatePercent)
	assert.Equal(t, 91.67, card.MatchRatePercent)
	assert.Equal(t, StatusAtencion, card.QualityStatus)
	assert.Len(t, card.Domains, 2)
	assert.Equal(t, 10.0, card.Domains[0].UnderRatePercent)
}

func TestBuildScorecardEmpty(t *testing.T) {
	card := BuildScorecard(nil)
	assert.Equal(t, StatusSinDatos, card.QualityStatus)
	assert.Equal(t, int64(0), card.TotalAudits)
	assert.Empty(t, card.Domains)
}
