package rules

// SCASESTInput describes a non-ST-elevation acute coronary syndrome workup.
type SCASESTInput struct {
	ChestPainOngoing  bool `json:"chest_pain_ongoing"`
	STDepression      bool `json:"st_depression"`
	TroponinElevated  bool `json:"troponin_elevated"`
	GraceScore        int  `json:"grace_score"`
	KillipClass       int  `json:"killip_class"`
	DynamicECGChanges bool `json:"dynamic_ecg_changes"`
}

// SCASESTResult recommends the escalation tier for a SCASEST patient.
type SCASESTResult struct {
	HighRisk                bool     `json:"high_risk"`
	RiskLevel               string   `json:"risk_level"`
	EscalationActions       []string `json:"escalation_actions"`
	Alerts                  []string `json:"alerts"`
	RedFlags                []string `json:"red_flags"`
	UnknownInputs           []string `json:"unknown_inputs"`
	HumanValidationRequired bool     `json:"human_validation_required"`
}

// EvaluateSCASEST flags high-risk presentations that need early invasive
// management.
func EvaluateSCASEST(in SCASESTInput) SCASESTResult {
	res := SCASESTResult{
		RiskLevel:               RiskLow,
		HumanValidationRequired: true,
	}

	if in.GraceScore == 0 {
		res.UnknownInputs = append(res.UnknownInputs, "grace_score")
	}
	if in.KillipClass == 0 {
		res.UnknownInputs = append(res.UnknownInputs, "killip_class")
	}

	if in.TroponinElevated {
		res.RedFlags = append(res.RedFlags, "troponina elevada")
	}
	if in.STDepression || in.DynamicECGChanges {
		res.RedFlags = append(res.RedFlags, "cambios ECG dinamicos")
	}
	if in.KillipClass >= 2 {
		res.RedFlags = append(res.RedFlags, "insuficiencia cardiaca (Killip >= II)")
	}

	graceHigh := in.GraceScore > 140
	intermediate := in.TroponinElevated || in.STDepression || in.DynamicECGChanges

	switch {
	case graceHigh || in.KillipClass >= 3 || (in.ChestPainOngoing && intermediate):
		res.HighRisk = true
		res.RiskLevel = RiskHigh
		res.EscalationActions = []string{
			"avisar a cardiologia de guardia",
			"estrategia invasiva precoz (< 24 h)",
			"doble antiagregacion segun protocolo",
			"monitorizacion continua",
		}
		res.Alerts = append(res.Alerts, "escalado SCASEST alto riesgo")
	case intermediate || in.GraceScore > 109:
		res.RiskLevel = RiskMedium
		res.EscalationActions = []string{
			"seriar troponinas y ECG",
			"valoracion por cardiologia en el turno",
		}
	default:
		res.EscalationActions = []string{
			"observacion con ECG de control",
			"estratificacion no invasiva diferida",
		}
	}

	return res
}
