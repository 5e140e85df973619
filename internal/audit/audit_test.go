package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriageUnderTriageClassification(t *testing.T) {
	kind := Kinds["triage"]

	// Rules produced a medium priority, which sits at triage level 3. The
	// clinician validated level 1: the AI under-triaged the patient.
	aiLevel, _ := ExtractAI(kind, map[string]any{"priority": "medium"})
	assert.Equal(t, 3, aiLevel)
	assert.Equal(t, "under_triage", Classify(kind, aiLevel, 1, nil, nil))

	// AI said critical (level 1), human says low (level 4): over-triage.
	aiLevel, _ = ExtractAI(kind, map[string]any{"priority": "critical"})
	assert.Equal(t, 1, aiLevel)
	assert.Equal(t, "over_triage", Classify(kind, aiLevel, 4, nil, nil))

	assert.Equal(t, "match", Classify(kind, 2, 2, nil, nil))
}

func TestAscendingScaleClassification(t *testing.T) {
	kind := Kinds["cardio_risk"]

	aiLevel, _ := ExtractAI(kind, map[string]any{"risk_level": "moderate"})
	assert.Equal(t, 2, aiLevel)

	// AI below the human estimate is an under-call on ascending scales.
	assert.Equal(t, "under_cardio_risk", Classify(kind, 2, 4, nil, nil))
	assert.Equal(t, "over_cardio_risk", Classify(kind, 3, 1, nil, nil))
	assert.Equal(t, "match", Classify(kind, 2, 2, nil, nil))

	resus := Kinds["resuscitation"]
	aiLevel, _ = ExtractAI(resus, map[string]any{"severity": "critical"})
	assert.Equal(t, 3, aiLevel)
}

func TestSCASESTBooleanClassification(t *testing.T) {
	kind := Kinds["scasest"]
	require.True(t, kind.FlagOnly())

	_, aiFlags := ExtractAI(kind, map[string]any{"high_risk": false})
	assert.False(t, aiFlags["high_risk"])

	assert.Equal(t, "match", Classify(kind, 0, 0,
		map[string]bool{"high_risk": true}, map[string]bool{"high_risk": true}))
	assert.Equal(t, "under_scasest", Classify(kind, 0, 0,
		map[string]bool{"high_risk": false}, map[string]bool{"high_risk": true}))
	assert.Equal(t, "over_scasest", Classify(kind, 0, 0,
		map[string]bool{"high_risk": true}, map[string]bool{"high_risk": false}))
}

func TestMedicolegalFlagExtraction(t *testing.T) {
	kind := Kinds["medicolegal"]

	// Structured flags take precedence.
	_, flags := ExtractAI(kind, map[string]any{
		"risk_level":         "high",
		"consent_required":   true,
		"judicial_notice":    false,
		"required_documents": []any{},
	})
	assert.True(t, flags["consent_required"])
	assert.False(t, flags["judicial_notice"])

	// Runs that predate the structured flags are probed through the
	// required-documents strings.
	_, flags = ExtractAI(kind, map[string]any{
		"risk_level": "medium",
		"required_documents": []any{
			"Consentimiento informado por escrito",
			"Parte judicial de lesiones",
		},
	})
	assert.True(t, flags["consent_required"])
	assert.True(t, flags["judicial_notice"])
}

func TestKindBySlug(t *testing.T) {
	kind, ok := KindBySlug("cardio-risk")
	require.True(t, ok)
	assert.Equal(t, "cardio_risk", kind.Domain)

	_, ok = KindBySlug("sepsis")
	assert.False(t, ok, "sepsis runs are not auditable")
}

func TestResolveHumanLevel(t *testing.T) {
	kind := Kinds["triage"]

	one := 1
	level, err := resolveHumanLevel(kind, RecordRequest{HumanValidatedLevel: &one})
	require.NoError(t, err)
	assert.Equal(t, 1, level)

	cat := "very_high"
	level, err = resolveHumanLevel(Kinds["cardio_risk"], RecordRequest{HumanCategory: &cat})
	require.NoError(t, err)
	assert.Equal(t, 4, level)

	_, err = resolveHumanLevel(kind, RecordRequest{})
	assert.Error(t, err)

	_, err = resolveHumanLevel(Kinds["scasest"], RecordRequest{})
	assert.Error(t, err)
}

func TestRatePercentRounding(t *testing.T) {
	assert.Equal(t, 0.0, ratePercent(1, 0))
	assert.Equal(t, 33.33, ratePercent(1, 3))
	assert.Equal(t, 100.0, ratePercent(2, 2))
}
