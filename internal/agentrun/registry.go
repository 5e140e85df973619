package agentrun

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hospital-urgencias/clinops/internal/rules"
)

// Workflow names. The registry is the only place that knows them.
const (
	WorkflowTriage        = "task_triage_v1"
	WorkflowSepsis        = "sepsis_protocol_v1"
	WorkflowSCASEST       = "scasest_escalation_v1"
	WorkflowChestXRay     = "chest_xray_flags_v1"
	WorkflowCardioRisk    = "cardio_risk_v1"
	WorkflowResuscitation = "resuscitation_v1"
	WorkflowMedicolegal   = "medicolegal_v1"
	WorkflowScreening     = "screening_v1"
	WorkflowClinicalChat  = "care_task_clinical_chat_v1"
)

// Descriptor declares how one workflow runs: how to parse its input, which
// evaluator to call, and how the persisted trace is tagged. Adding a domain
// is one evaluator plus one registry row.
type Descriptor struct {
	Workflow    string
	Domain      string
	StepName    string
	DecisionTag string
	OutputKey   string
	ParseInput  func(raw json.RawMessage) (any, error)
	Evaluate    func(ctx context.Context, input any) (any, error)
	// Gate optionally post-processes the evaluator output (triage confidence
	// gate). It returns the possibly substituted output, the decision tag and
	// whether the fallback was used.
	Gate func(output any) (any, string, bool)
}

// TriageEvaluator lets the caller choose rules-only or hybrid triage.
type TriageEvaluator func(ctx context.Context, in rules.TriageInput) rules.TriageResult

// Registry maps workflow names and domain slugs to descriptors.
type Registry struct {
	byWorkflow map[string]*Descriptor
	byDomain   map[string]*Descriptor
}

// NewRegistry builds the workflow catalog. triageEval decides rules vs
// hybrid triage; everything else is always pure rules.
func NewRegistry(triageEval TriageEvaluator) *Registry {
	descriptors := []*Descriptor{
		{
			Workflow:    WorkflowTriage,
			Domain:      "triage",
			StepName:    "triage_rules",
			DecisionTag: "use_model_output",
			OutputKey:   "triage",
			ParseInput:  parseInput[rules.TriageInput],
			Evaluate: func(ctx context.Context, input any) (any, error) {
				return triageEval(ctx, input.(rules.TriageInput)), nil
			},
			Gate: func(output any) (any, string, bool) {
				gated, fallback := rules.ApplySafetyGate(output.(rules.TriageResult))
				if fallback {
					return gated, "fallback_safe_defaults", true
				}
				return gated, "use_model_output", false
			},
		},
		{
			Workflow:    WorkflowSepsis,
			Domain:      "sepsis",
			StepName:    "sepsis_rules",
			DecisionTag: "rules_sepsis_protocol_output",
			OutputKey:   "sepsis",
			ParseInput:  parseInput[rules.SepsisInput],
			Evaluate: func(_ context.Context, input any) (any, error) {
				return rules.EvaluateSepsis(input.(rules.SepsisInput)), nil
			},
		},
		{
			Workflow:    WorkflowSCASEST,
			Domain:      "scasest",
			StepName:    "scasest_rules",
			DecisionTag: "rules_scasest_escalation_output",
			OutputKey:   "scasest",
			ParseInput:  parseInput[rules.SCASESTInput],
			Evaluate: func(_ context.Context, input any) (any, error) {
				return rules.EvaluateSCASEST(input.(rules.SCASESTInput)), nil
			},
		},
		{
			Workflow:    WorkflowChestXRay,
			Domain:      "chest-xray",
			StepName:    "chest_xray_rules",
			DecisionTag: "rules_chest_xray_output",
			OutputKey:   "chest_xray",
			ParseInput:  parseInput[rules.ChestXRayInput],
			Evaluate: func(_ context.Context, input any) (any, error) {
				return rules.EvaluateChestXRay(input.(rules.ChestXRayInput)), nil
			},
		},
		{
			Workflow:    WorkflowCardioRisk,
			Domain:      "cardio-risk",
			StepName:    "cardio_risk_rules",
			DecisionTag: "rules_cardio_risk_output",
			OutputKey:   "cardio_risk",
			ParseInput:  parseInput[rules.CardioRiskInput],
			Evaluate: func(_ context.Context, input any) (any, error) {
				return rules.EvaluateCardioRisk(input.(rules.CardioRiskInput)), nil
			},
		},
		{
			Workflow:    WorkflowResuscitation,
			Domain:      "resuscitation",
			StepName:    "resuscitation_rules",
			DecisionTag: "rules_resuscitation_output",
			OutputKey:   "resuscitation",
			ParseInput:  parseInput[rules.ResuscitationInput],
			Evaluate: func(_ context.Context, input any) (any, error) {
				return rules.EvaluateResuscitation(input.(rules.ResuscitationInput)), nil
			},
		},
		{
			Workflow:    WorkflowMedicolegal,
			Domain:      "medicolegal",
			StepName:    "medicolegal_rules",
			DecisionTag: "rules_medicolegal_output",
			OutputKey:   "medicolegal",
			ParseInput:  parseInput[rules.MedicolegalInput],
			Evaluate: func(_ context.Context, input any) (any, error) {
				return rules.EvaluateMedicolegal(input.(rules.MedicolegalInput)), nil
			},
		},
		{
			Workflow:    WorkflowScreening,
			Domain:      "screening",
			StepName:    "screening_rules",
			DecisionTag: "rules_screening_output",
			OutputKey:   "screening",
			ParseInput:  parseInput[rules.ScreeningInput],
			Evaluate: func(_ context.Context, input any) (any, error) {
				return rules.EvaluateScreening(input.(rules.ScreeningInput)), nil
			},
		},
	}

	reg := &Registry{
		byWorkflow: make(map[string]*Descriptor, len(descriptors)),
		byDomain:   make(map[string]*Descriptor, len(descriptors)),
	}
	for _, d := range descriptors {
		reg.byWorkflow[d.Workflow] = d
		reg.byDomain[d.Domain] = d
	}
	return reg
}

// ByWorkflow resolves a workflow name.
func (r *Registry) ByWorkflow(name string) (*Descriptor, bool) {
	d, ok := r.byWorkflow[name]
	return d, ok
}

// ByDomain resolves a URL domain slug.
func (r *Registry) ByDomain(domain string) (*Descriptor, bool) {
	d, ok := r.byDomain[domain]
	return d, ok
}

// Domains lists the registered domain slugs.
func (r *Registry) Domains() []string {
	domains := make([]string, 0, len(r.byDomain))
	for d := range r.byDomain {
		domains = append(domains, d)
	}
	return domains
}

func parseInput[T any](raw json.RawMessage) (any, error) {
	var input T
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &input); err != nil {
			return nil, fmt.Errorf("invalid input payload: %w", err)
		}
	}
	return input, nil
}
