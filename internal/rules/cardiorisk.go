package rules

// CardioRiskInput carries the classic risk factors.
type CardioRiskInput struct {
	Age              int  `json:"age"`
	SystolicBP       int  `json:"systolic_bp"`
	TotalCholesterol int  `json:"total_cholesterol_mg_dl"`
	HDLCholesterol   int  `json:"hdl_cholesterol_mg_dl"`
	Diabetic         bool `json:"diabetic"`
	Smoker           bool `json:"smoker"`
	FamilyHistory    bool `json:"family_history"`
}

// CardioRiskResult uses the four-level scale low/moderate/high/very_high.
type CardioRiskResult struct {
	RiskLevel               string   `json:"risk_level"`
	RiskFactors             []string `json:"risk_factors"`
	RecommendedActions      []string `json:"recommended_actions"`
	Alerts                  []string `json:"alerts"`
	RedFlags                []string `json:"red_flags"`
	UnknownInputs           []string `json:"unknown_inputs"`
	HumanValidationRequired bool     `json:"human_validation_required"`
}

// EvaluateCardioRisk counts weighted risk factors into the four-level scale.
func EvaluateCardioRisk(in CardioRiskInput) CardioRiskResult {
	res := CardioRiskResult{
		RiskLevel:               RiskLow,
		HumanValidationRequired: true,
	}

	if in.Age == 0 {
		res.UnknownInputs = append(res.UnknownInputs, "age")
	}
	if in.SystolicBP == 0 {
		res.UnknownInputs = append(res.UnknownInputs, "systolic_bp")
	}
	if in.TotalCholesterol == 0 {
		res.UnknownInputs = append(res.UnknownInputs, "total_cholesterol_mg_dl")
	}

	score := 0
	add := func(points int, factor string) {
		score += points
		res.RiskFactors = append(res.RiskFactors, factor)
	}

	if in.Age >= 65 {
		add(2, "edad >= 65")
	} else if in.Age >= 50 {
		add(1, "edad >= 50")
	}
	if in.SystolicBP >= 180 {
		add(3, "TAS >= 180")
		res.RedFlags = append(res.RedFlags, "crisis hipertensiva")
	} else if in.SystolicBP >= 140 {
		add(1, "TAS >= 140")
	}
	if in.TotalCholesterol >= 240 {
		add(1, "colesterol total >= 240")
	}
	if in.HDLCholesterol > 0 && in.HDLCholesterol < 40 {
		add(1, "HDL < 40")
	}
	if in.Diabetic {
		add(2, "diabetes")
	}
	if in.Smoker {
		add(1, "tabaquismo")
	}
	if in.FamilyHistory {
		add(1, "antecedentes familiares")
	}

	switch {
	case score >= 7:
		res.RiskLevel = RiskVeryHigh
	case score >= 5:
		res.RiskLevel = RiskHigh
	case score >= 3:
		res.RiskLevel = RiskModerate
	}

	switch res.RiskLevel {
	case RiskVeryHigh, RiskHigh:
		res.RecommendedActions = []string{
			"derivacion preferente a consulta de riesgo cardiovascular",
			"control estricto de tension arterial",
		}
		res.Alerts = append(res.Alerts, "riesgo cardiovascular elevado")
	case RiskModerate:
		res.RecommendedActions = []string{"consejo estructurado y control en atencion primaria"}
	default:
		res.RecommendedActions = []string{"consejo breve de habitos de vida"}
	}

	return res
}
