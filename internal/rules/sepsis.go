package rules

// SepsisInput carries the vitals and analytics relevant to the sepsis bundle.
// Zero values mean "not measured" and are reported as unknown inputs.
type SepsisInput struct {
	SuspectedInfection bool    `json:"suspected_infection"`
	LactateMmolL       float64 `json:"lactate_mmol_l"`
	SystolicBP         int     `json:"systolic_bp"`
	RespiratoryRate    int     `json:"respiratory_rate"`
	HeartRate          int     `json:"heart_rate"`
	TemperatureC       float64 `json:"temperature_c"`
	GlasgowComaScale   int     `json:"glasgow_coma_scale"`
}

// SepsisResult is the operational sepsis-bundle recommendation.
type SepsisResult struct {
	RiskLevel               string   `json:"risk_level"`
	QSOFAScore              int      `json:"qsofa_score"`
	BundleActions           []string `json:"bundle_actions"`
	Alerts                  []string `json:"alerts"`
	RedFlags                []string `json:"red_flags"`
	UnknownInputs           []string `json:"unknown_inputs"`
	HumanValidationRequired bool     `json:"human_validation_required"`
}

// EvaluateSepsis applies a qSOFA-style score plus lactate thresholds.
func EvaluateSepsis(in SepsisInput) SepsisResult {
	res := SepsisResult{
		RiskLevel:               RiskLow,
		HumanValidationRequired: true,
	}

	if in.SystolicBP == 0 {
		res.UnknownInputs = append(res.UnknownInputs, "systolic_bp")
	}
	if in.RespiratoryRate == 0 {
		res.UnknownInputs = append(res.UnknownInputs, "respiratory_rate")
	}
	if in.GlasgowComaScale == 0 {
		res.UnknownInputs = append(res.UnknownInputs, "glasgow_coma_scale")
	}
	if in.LactateMmolL == 0 {
		res.UnknownInputs = append(res.UnknownInputs, "lactate_mmol_l")
	}

	qsofa := 0
	if in.SystolicBP > 0 && in.SystolicBP <= 100 {
		qsofa++
		res.RedFlags = append(res.RedFlags, "hipotension (TAS <= 100)")
	}
	if in.RespiratoryRate >= 22 {
		qsofa++
		res.RedFlags = append(res.RedFlags, "taquipnea (FR >= 22)")
	}
	if in.GlasgowComaScale > 0 && in.GlasgowComaScale < 15 {
		qsofa++
		res.RedFlags = append(res.RedFlags, "alteracion del nivel de consciencia")
	}
	res.QSOFAScore = qsofa

	lactateHigh := in.LactateMmolL >= 2.0
	lactateCritical := in.LactateMmolL >= 4.0
	if lactateHigh {
		res.RedFlags = append(res.RedFlags, "lactato elevado (>= 2 mmol/L)")
	}

	switch {
	case in.SuspectedInfection && (lactateCritical || (qsofa >= 2 && lactateHigh)):
		res.RiskLevel = RiskCritical
	case in.SuspectedInfection && (qsofa >= 2 || lactateHigh):
		res.RiskLevel = RiskHigh
	case in.SuspectedInfection && qsofa == 1:
		res.RiskLevel = RiskMedium
	case qsofa >= 2 || lactateHigh:
		res.RiskLevel = RiskMedium
	}

	switch res.RiskLevel {
	case RiskCritical, RiskHigh:
		res.BundleActions = []string{
			"hemocultivos antes de antibiotico",
			"antibiotico de amplio espectro en la primera hora",
			"fluidoterapia 30 ml/kg si hipotension o lactato >= 4",
			"medir lactato y repetir si elevado",
		}
		res.Alerts = append(res.Alerts, "activar codigo sepsis")
	case RiskMedium:
		res.BundleActions = []string{
			"medir lactato",
			"hemocultivos si se inicia antibiotico",
			"reevaluacion en 30 minutos",
		}
	default:
		res.BundleActions = []string{"observacion y constantes seriadas"}
	}

	return res
}
