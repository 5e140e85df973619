package agentrun

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospital-urgencias/clinops/internal/rules"
)

func testRegistry() *Registry {
	return NewRegistry(func(_ context.Context, in rules.TriageInput) rules.TriageResult {
		return rules.EvaluateTriage(in)
	})
}

func TestRegistryResolvesEveryWorkflow(t *testing.T) {
	reg := testRegistry()

	workflows := []string{
		WorkflowTriage,
		WorkflowSepsis,
		WorkflowSCASEST,
		WorkflowChestXRay,
		WorkflowCardioRisk,
		WorkflowResuscitation,
		WorkflowMedicolegal,
		WorkflowScreening,
	}
	for _, name := range workflows {
		desc, ok := reg.ByWorkflow(name)
		require.True(t, ok, "workflow %s not registered", name)
		assert.Equal(t, name, desc.Workflow)
		assert.NotEmpty(t, desc.Domain)
		assert.NotEmpty(t, desc.StepName)
		assert.NotEmpty(t, desc.OutputKey)
		assert.NotNil(t, desc.ParseInput)
		assert.NotNil(t, desc.Evaluate)
	}

	_, ok := reg.ByWorkflow("unknown_workflow_v1")
	assert.False(t, ok)
}

func TestRegistryDomainSlugs(t *testing.T) {
	reg := testRegistry()

	desc, ok := reg.ByDomain("cardio-risk")
	require.True(t, ok)
	assert.Equal(t, WorkflowCardioRisk, desc.Workflow)

	assert.Len(t, reg.Domains(), 8)
}

func TestTriageGateSubstitutesSafeDefaults(t *testing.T) {
	reg := testRegistry()
	desc, ok := reg.ByWorkflow(WorkflowTriage)
	require.True(t, ok)
	require.NotNil(t, desc.Gate)

	low := rules.TriageResult{
		Priority:   rules.PriorityHigh,
		Category:   "cardiologia",
		Confidence: 0.40,
		Source:     rules.SourceRules,
	}
	out, decision, fallback := desc.Gate(low)
	gated := out.(rules.TriageResult)

	assert.True(t, fallback)
	assert.Equal(t, "fallback_safe_defaults", decision)
	assert.Equal(t, rules.PriorityMedium, gated.Priority)
	assert.Equal(t, "general", gated.Category)
	assert.Equal(t, rules.SourceRulesFallback, gated.Source)
	assert.InDelta(t, 0.40, gated.Confidence, 0.001)

	high := rules.TriageResult{
		Priority:   rules.PriorityCritical,
		Category:   "cardiologia",
		Confidence: 0.90,
		Source:     rules.SourceRules,
	}
	out, decision, fallback = desc.Gate(high)
	assert.False(t, fallback)
	assert.Equal(t, "use_model_output", decision)
	assert.Equal(t, rules.PriorityCritical, out.(rules.TriageResult).Priority)
}

func TestParseInputRejectsMalformedPayload(t *testing.T) {
	reg := testRegistry()
	desc, _ := reg.ByWorkflow(WorkflowSepsis)

	_, err := desc.ParseInput(json.RawMessage(`{"lactate_mmol_l": "not-a-number"}`))
	assert.Error(t, err)

	in, err := desc.ParseInput(json.RawMessage(`{"lactate_mmol_l": 4.5, "systolic_bp": 92}`))
	require.NoError(t, err)
	sepsis := in.(rules.SepsisInput)
	assert.InDelta(t, 4.5, sepsis.LactateMmolL, 0.001)
}

func TestFallbackRateRounding(t *testing.T) {
	assert.Equal(t, 0.0, FallbackRate(0, 0))
	assert.Equal(t, 0.0, FallbackRate(0, 10))
	assert.Equal(t, 33.33, FallbackRate(1, 3))
	assert.Equal(t, 100.0, FallbackRate(5, 5))
}

func TestToMapMergesProjectionKeys(t *testing.T) {
	m := toMap(rules.TriageInput{Title: "Dolor toracico", Description: "irradiado a brazo"})
	assert.Equal(t, "Dolor toracico", m["title"])
	assert.Equal(t, map[string]any{}, toMap(nil))
}
