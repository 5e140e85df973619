package rules

// ScreeningInput is the frailty/social screening run at discharge decisions.
type ScreeningInput struct {
	Age                 int  `json:"age"`
	LivesAlone          bool `json:"lives_alone"`
	RecentFalls         int  `json:"recent_falls"`
	CognitiveImpairment bool `json:"cognitive_impairment"`
	Polypharmacy        bool `json:"polypharmacy"`
	PriorAdmissions90d  int  `json:"prior_admissions_90d"`
}

// ScreeningResult flags patients who need a supported discharge circuit.
type ScreeningResult struct {
	RiskLevel               string   `json:"risk_level"`
	PositiveCriteria        []string `json:"positive_criteria"`
	RecommendedActions      []string `json:"recommended_actions"`
	Alerts                  []string `json:"alerts"`
	RedFlags                []string `json:"red_flags"`
	UnknownInputs           []string `json:"unknown_inputs"`
	HumanValidationRequired bool     `json:"human_validation_required"`
}

// EvaluateScreening counts frailty criteria into a three-level risk.
func EvaluateScreening(in ScreeningInput) ScreeningResult {
	res := ScreeningResult{
		RiskLevel:               RiskLow,
		HumanValidationRequired: true,
	}

	if in.Age == 0 {
		res.UnknownInputs = append(res.UnknownInputs, "age")
	}

	score := 0
	criterion := func(hit bool, label string) {
		if hit {
			score++
			res.PositiveCriteria = append(res.PositiveCriteria, label)
		}
	}

	criterion(in.Age >= 75, "edad >= 75")
	criterion(in.LivesAlone, "vive solo")
	criterion(in.RecentFalls >= 2, "caidas de repeticion")
	criterion(in.CognitiveImpairment, "deterioro cognitivo")
	criterion(in.Polypharmacy, "polifarmacia")
	criterion(in.PriorAdmissions90d >= 1, "ingreso reciente")

	switch {
	case score >= 4:
		res.RiskLevel = RiskHigh
		res.RedFlags = append(res.RedFlags, "fragilidad severa")
	case score >= 2:
		res.RiskLevel = RiskMedium
	}

	switch res.RiskLevel {
	case RiskHigh:
		res.RecommendedActions = []string{
			"valoracion por trabajo social antes del alta",
			"activar circuito de alta acompanada",
		}
		res.Alerts = append(res.Alerts, "alta de riesgo; no cerrar sin plan de soporte")
	case RiskMedium:
		res.RecommendedActions = []string{"informar a atencion primaria del resultado del cribado"}
	default:
		res.RecommendedActions = []string{"sin criterios de fragilidad relevantes"}
	}

	return res
}
