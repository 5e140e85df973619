package rules

import "strings"

// ChestXRayInput lists reported findings plus the context that turns an
// incidental finding into a red flag.
type ChestXRayInput struct {
	Findings     []string `json:"findings"`
	Age          int      `json:"age"`
	Smoker       bool     `json:"smoker"`
	Hemoptysis   bool     `json:"hemoptysis"`
	WeightLoss   bool     `json:"weight_loss"`
	PriorImaging bool     `json:"prior_imaging_available"`
}

// ChestXRayResult surfaces findings that must not be discharged unresolved.
type ChestXRayResult struct {
	Severity                string   `json:"severity"`
	RedFlags                []string `json:"red_flags"`
	RecommendedActions      []string `json:"recommended_actions"`
	Alerts                  []string `json:"alerts"`
	UnknownInputs           []string `json:"unknown_inputs"`
	HumanValidationRequired bool     `json:"human_validation_required"`
}

var xrayCriticalFindings = []string{"neumotorax", "ensanchamiento mediastinico", "neumoperitoneo"}
var xrayHighFindings = []string{"nodulo", "masa", "derrame pleural", "cavitacion"}
var xrayMediumFindings = []string{"infiltrado", "condensacion", "atelectasia"}

// EvaluateChestXRay classifies reported radiology findings into an
// operational severity and flags the follow-up that must not be lost.
func EvaluateChestXRay(in ChestXRayInput) ChestXRayResult {
	res := ChestXRayResult{
		Severity:                RiskLow,
		HumanValidationRequired: true,
	}

	if len(in.Findings) == 0 {
		res.UnknownInputs = append(res.UnknownInputs, "findings")
	}
	if in.Age == 0 {
		res.UnknownInputs = append(res.UnknownInputs, "age")
	}

	for _, raw := range in.Findings {
		finding := normalizeText(raw)
		switch {
		case matchesAny(finding, xrayCriticalFindings):
			res.Severity = RiskCritical
			res.RedFlags = append(res.RedFlags, raw)
		case matchesAny(finding, xrayHighFindings):
			if res.Severity != RiskCritical {
				res.Severity = RiskHigh
			}
			res.RedFlags = append(res.RedFlags, raw)
		case matchesAny(finding, xrayMediumFindings):
			if res.Severity == RiskLow {
				res.Severity = RiskMedium
			}
		}
	}

	suspicionContext := in.Hemoptysis || in.WeightLoss || (in.Smoker && in.Age >= 50)
	if suspicionContext && res.Severity == RiskHigh {
		res.Alerts = append(res.Alerts, "hallazgo sospechoso con contexto de riesgo; no cerrar sin circuito de seguimiento")
	}

	switch res.Severity {
	case RiskCritical:
		res.RecommendedActions = []string{"valoracion inmediata", "avisar a medico responsable"}
	case RiskHigh:
		res.RecommendedActions = []string{
			"derivacion reglada a consulta de diagnostico rapido",
			"registrar el hallazgo en el informe de alta",
		}
		if !in.PriorImaging {
			res.RecommendedActions = append(res.RecommendedActions, "solicitar imagen previa para comparacion")
		}
	case RiskMedium:
		res.RecommendedActions = []string{"correlacion clinica y control radiologico"}
	default:
		res.RecommendedActions = []string{"sin hallazgos operativos; seguir circuito habitual"}
	}

	return res
}

func matchesAny(finding string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(finding, p) {
			return true
		}
	}
	return false
}
