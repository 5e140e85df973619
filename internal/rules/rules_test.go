package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateTriage(t *testing.T) {
	tests := []struct {
		name         string
		input        TriageInput
		wantPriority string
		wantCategory string
	}{
		{
			name:         "critical cue wins",
			input:        TriageInput{Title: "Paciente inconsciente", Description: "no responde a estimulos"},
			wantPriority: PriorityCritical,
			wantCategory: "general",
		},
		{
			name:         "chest pain is high cardiology",
			input:        TriageInput{Title: "Dolor torácico opresivo", Description: "irradiado a brazo"},
			wantPriority: PriorityHigh,
			wantCategory: "cardiologia",
		},
		{
			name:         "fever is medium infectious",
			input:        TriageInput{Title: "Fiebre de 38", Description: "dos dias de evolucion"},
			wantPriority: PriorityMedium,
			wantCategory: "infeccioso",
		},
		{
			name:         "no cues means low",
			input:        TriageInput{Title: "Revision de informe", Description: "tramite"},
			wantPriority: PriorityLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateTriage(tt.input)
			assert.Equal(t, tt.wantPriority, got.Priority)
			if tt.wantCategory != "" {
				assert.Equal(t, tt.wantCategory, got.Category)
			}
			assert.Equal(t, SourceRules, got.Source)
			assert.True(t, got.HumanValidationRequired)
		})
	}
}

func TestEvaluateTriageIsDeterministic(t *testing.T) {
	in := TriageInput{Title: "Disnea y fiebre", Description: "saturacion baja"}
	first := EvaluateTriage(in)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, EvaluateTriage(in))
	}
}

func TestApplySafetyGate(t *testing.T) {
	low := TriageResult{Priority: PriorityLow, Category: "docs", Confidence: 0.40, Source: SourceRules}
	gated, fallback := ApplySafetyGate(low)
	require.True(t, fallback)
	assert.Equal(t, PriorityMedium, gated.Priority)
	assert.Equal(t, "general", gated.Category)
	assert.Equal(t, SourceRulesFallback, gated.Source)
	assert.InDelta(t, 0.40, gated.Confidence, 1e-9)
	assert.True(t, gated.HumanValidationRequired)

	high := TriageResult{Priority: PriorityHigh, Confidence: 0.75, Source: SourceRules}
	kept, fallback := ApplySafetyGate(high)
	assert.False(t, fallback)
	assert.Equal(t, high, kept)
}

func TestEvaluateSepsis(t *testing.T) {
	tests := []struct {
		name      string
		input     SepsisInput
		wantLevel string
	}{
		{
			name: "critical with high lactate",
			input: SepsisInput{
				SuspectedInfection: true,
				LactateMmolL:       4.5,
				SystolicBP:         85,
				RespiratoryRate:    26,
				GlasgowComaScale:   14,
			},
			wantLevel: RiskCritical,
		},
		{
			name: "high with qsofa 2",
			input: SepsisInput{
				SuspectedInfection: true,
				SystolicBP:         95,
				RespiratoryRate:    24,
				GlasgowComaScale:   15,
				LactateMmolL:       1.1,
			},
			wantLevel: RiskHigh,
		},
		{
			name:      "low without infection",
			input:     SepsisInput{SystolicBP: 120, RespiratoryRate: 14, GlasgowComaScale: 15, LactateMmolL: 0.8},
			wantLevel: RiskLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateSepsis(tt.input)
			assert.Equal(t, tt.wantLevel, got.RiskLevel)
			assert.True(t, got.HumanValidationRequired)
		})
	}
}

func TestEvaluateSepsisReportsUnknowns(t *testing.T) {
	got := EvaluateSepsis(SepsisInput{SuspectedInfection: true})
	assert.Contains(t, got.UnknownInputs, "systolic_bp")
	assert.Contains(t, got.UnknownInputs, "lactate_mmol_l")
}

func TestEvaluateSCASEST(t *testing.T) {
	highRisk := EvaluateSCASEST(SCASESTInput{GraceScore: 150, TroponinElevated: true})
	assert.True(t, highRisk.HighRisk)
	assert.Equal(t, RiskHigh, highRisk.RiskLevel)
	assert.NotEmpty(t, highRisk.EscalationActions)

	intermediate := EvaluateSCASEST(SCASESTInput{TroponinElevated: true, GraceScore: 100, KillipClass: 1})
	assert.False(t, intermediate.HighRisk)
	assert.Equal(t, RiskMedium, intermediate.RiskLevel)

	low := EvaluateSCASEST(SCASESTInput{GraceScore: 80, KillipClass: 1})
	assert.False(t, low.HighRisk)
	assert.Equal(t, RiskLow, low.RiskLevel)
}

func TestEvaluateChestXRay(t *testing.T) {
	critical := EvaluateChestXRay(ChestXRayInput{Findings: []string{"Neumotórax a tension"}, Age: 40})
	assert.Equal(t, RiskCritical, critical.Severity)

	suspicious := EvaluateChestXRay(ChestXRayInput{
		Findings: []string{"Nódulo pulmonar 12mm"},
		Age:      62,
		Smoker:   true,
	})
	assert.Equal(t, RiskHigh, suspicious.Severity)
	assert.NotEmpty(t, suspicious.Alerts)
	assert.Contains(t, suspicious.RecommendedActions, "solicitar imagen previa para comparacion")

	clean := EvaluateChestXRay(ChestXRayInput{Findings: []string{"sin alteraciones"}, Age: 30})
	assert.Equal(t, RiskLow, clean.Severity)
}

func TestEvaluateCardioRisk(t *testing.T) {
	veryHigh := EvaluateCardioRisk(CardioRiskInput{
		Age: 70, SystolicBP: 185, TotalCholesterol: 250, Diabetic: true,
	})
	assert.Equal(t, RiskVeryHigh, veryHigh.RiskLevel)

	moderate := EvaluateCardioRisk(CardioRiskInput{Age: 55, SystolicBP: 150, TotalCholesterol: 245, HDLCholesterol: 50})
	assert.Equal(t, RiskModerate, moderate.RiskLevel)

	low := EvaluateCardioRisk(CardioRiskInput{Age: 30, SystolicBP: 120, TotalCholesterol: 180, HDLCholesterol: 55})
	assert.Equal(t, RiskLow, low.RiskLevel)
}

func TestEvaluateResuscitation(t *testing.T) {
	arrest := EvaluateResuscitation(ResuscitationInput{CardiacArrest: true, ShockableRhythm: true, Rhythm: "FV"})
	assert.Equal(t, RiskCritical, arrest.Severity)
	assert.Contains(t, arrest.Alerts, "ritmo desfibrilable")

	airway := EvaluateResuscitation(ResuscitationInput{AirwayCompromise: true, Rhythm: "sinusal"})
	assert.Equal(t, RiskHigh, airway.Severity)

	watch := EvaluateResuscitation(ResuscitationInput{Rhythm: "sinusal"})
	assert.Equal(t, RiskMedium, watch.Severity)
}

func TestEvaluateMedicolegal(t *testing.T) {
	refusal := EvaluateMedicolegal(MedicolegalInput{RefusesTreatment: true})
	assert.True(t, refusal.ConsentRequired)
	assert.Equal(t, RiskMedium, refusal.RiskLevel)
	found := false
	for _, doc := range refusal.RequiredDocuments {
		if doc == "consentimiento informado de rechazo de tratamiento" {
			found = true
		}
	}
	assert.True(t, found, "refusal must require an informed consent document")

	involuntary := EvaluateMedicolegal(MedicolegalInput{InvoluntaryAdmission: true})
	assert.True(t, involuntary.JudicialNotice)
	assert.Equal(t, RiskHigh, involuntary.RiskLevel)

	routine := EvaluateMedicolegal(MedicolegalInput{})
	assert.False(t, routine.ConsentRequired)
	assert.False(t, routine.JudicialNotice)
	assert.Equal(t, RiskLow, routine.RiskLevel)
}

func TestEvaluateScreening(t *testing.T) {
	frail := EvaluateScreening(ScreeningInput{Age: 82, LivesAlone: true, RecentFalls: 3, Polypharmacy: true})
	assert.Equal(t, RiskHigh, frail.RiskLevel)

	medium := EvaluateScreening(ScreeningInput{Age: 78, LivesAlone: true})
	assert.Equal(t, RiskMedium, medium.RiskLevel)

	fit := EvaluateScreening(ScreeningInput{Age: 40})
	assert.Equal(t, RiskLow, fit.RiskLevel)
}

func TestHybridTriageFallsBackWithoutLLM(t *testing.T) {
	res := HybridTriage(t.Context(), nil, TriageInput{Title: "Dolor torácico", Description: ""})
	assert.Equal(t, SourceRulesFallback, res.Source)
	assert.Equal(t, PriorityHigh, res.Priority)
}
