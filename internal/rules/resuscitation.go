package rules

// ResuscitationInput describes an ongoing or imminent resuscitation scenario.
type ResuscitationInput struct {
	CardiacArrest    bool   `json:"cardiac_arrest"`
	ShockableRhythm  bool   `json:"shockable_rhythm"`
	WitnessedArrest  bool   `json:"witnessed_arrest"`
	DownTimeMinutes  int    `json:"down_time_minutes"`
	AirwayCompromise bool   `json:"airway_compromise"`
	Rhythm           string `json:"rhythm"`
}

// ResuscitationResult uses the severity scale medium/high/critical; a
// resuscitation consult is never "low".
type ResuscitationResult struct {
	Severity                string   `json:"severity"`
	RecommendedActions      []string `json:"recommended_actions"`
	Alerts                  []string `json:"alerts"`
	RedFlags                []string `json:"red_flags"`
	UnknownInputs           []string `json:"unknown_inputs"`
	HumanValidationRequired bool     `json:"human_validation_required"`
}

// EvaluateResuscitation recommends the team activation tier.
func EvaluateResuscitation(in ResuscitationInput) ResuscitationResult {
	res := ResuscitationResult{
		Severity:                RiskMedium,
		HumanValidationRequired: true,
	}

	if in.Rhythm == "" {
		res.UnknownInputs = append(res.UnknownInputs, "rhythm")
	}
	if in.DownTimeMinutes == 0 && in.CardiacArrest {
		res.UnknownInputs = append(res.UnknownInputs, "down_time_minutes")
	}

	switch {
	case in.CardiacArrest:
		res.Severity = RiskCritical
		res.RedFlags = append(res.RedFlags, "parada cardiorrespiratoria")
		res.RecommendedActions = []string{
			"iniciar RCP de alta calidad",
			"desfibrilacion precoz si ritmo desfibrilable",
			"activar equipo de parada",
		}
		if in.ShockableRhythm {
			res.Alerts = append(res.Alerts, "ritmo desfibrilable")
		}
		if !in.WitnessedArrest && in.DownTimeMinutes > 10 {
			res.Alerts = append(res.Alerts, "parada no presenciada con tiempo prolongado; valorar pronostico en equipo")
		}
	case in.AirwayCompromise:
		res.Severity = RiskHigh
		res.RedFlags = append(res.RedFlags, "compromiso de via aerea")
		res.RecommendedActions = []string{
			"manejo avanzado de via aerea",
			"avisar a anestesia/UCI",
		}
	default:
		res.RecommendedActions = []string{
			"monitorizacion continua",
			"preparar material de soporte vital",
		}
	}

	return res
}
