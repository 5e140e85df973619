package rules

// MedicolegalInput captures the situations that generate documentation and
// notification duties beyond routine charting.
type MedicolegalInput struct {
	RefusesTreatment     bool `json:"refuses_treatment"`
	InvoluntaryAdmission bool `json:"involuntary_admission"`
	MinorPatient         bool `json:"minor_patient"`
	SuspectedViolence    bool `json:"suspected_violence"`
	PoliceInvolved       bool `json:"police_involved"`
	InvasiveProcedure    bool `json:"invasive_procedure"`
}

// MedicolegalResult lists documentation and notification duties. Both the
// structured booleans and the required-documents list are emitted: audits on
// historic runs probe the document list by substring, new audits read the
// booleans directly.
type MedicolegalResult struct {
	RiskLevel               string   `json:"risk_level"`
	ConsentRequired         bool     `json:"consent_required"`
	JudicialNotice          bool     `json:"judicial_notice"`
	RequiredDocuments       []string `json:"required_documents"`
	RecommendedActions      []string `json:"recommended_actions"`
	Alerts                  []string `json:"alerts"`
	RedFlags                []string `json:"red_flags"`
	HumanValidationRequired bool     `json:"human_validation_required"`
}

// EvaluateMedicolegal derives the documentation duties for the encounter.
func EvaluateMedicolegal(in MedicolegalInput) MedicolegalResult {
	res := MedicolegalResult{
		RiskLevel:               RiskLow,
		HumanValidationRequired: true,
	}

	if in.InvasiveProcedure {
		res.ConsentRequired = true
		res.RequiredDocuments = append(res.RequiredDocuments, "consentimiento informado del procedimiento")
	}
	if in.RefusesTreatment {
		res.ConsentRequired = true
		res.RiskLevel = RiskMedium
		res.RequiredDocuments = append(res.RequiredDocuments,
			"documento de alta voluntaria",
			"consentimiento informado de rechazo de tratamiento",
		)
		res.RecommendedActions = append(res.RecommendedActions, "dejar constancia de capacidad y de la informacion dada")
	}
	if in.MinorPatient {
		res.RiskLevel = maxRisk(res.RiskLevel, RiskMedium)
		res.RequiredDocuments = append(res.RequiredDocuments, "autorizacion de representante legal")
		if in.RefusesTreatment || in.SuspectedViolence {
			res.RiskLevel = RiskHigh
		}
	}
	if in.InvoluntaryAdmission {
		res.RiskLevel = RiskHigh
		res.JudicialNotice = true
		res.RequiredDocuments = append(res.RequiredDocuments, "comunicacion de ingreso involuntario al juzgado")
		res.RedFlags = append(res.RedFlags, "ingreso involuntario")
	}
	if in.SuspectedViolence {
		res.RiskLevel = RiskHigh
		res.JudicialNotice = true
		res.RequiredDocuments = append(res.RequiredDocuments, "parte de lesiones al juzgado de guardia")
		res.RedFlags = append(res.RedFlags, "sospecha de violencia")
	}
	if in.PoliceInvolved {
		res.RecommendedActions = append(res.RecommendedActions, "registrar identidad de los agentes y motivo de la intervencion")
	}

	if res.JudicialNotice {
		res.Alerts = append(res.Alerts, "notificacion judicial pendiente")
	}
	if len(res.RecommendedActions) == 0 {
		res.RecommendedActions = []string{"documentacion clinica habitual"}
	}

	return res
}

var riskRank = map[string]int{RiskLow: 1, RiskMedium: 2, RiskHigh: 3}

func maxRisk(a, b string) string {
	if riskRank[b] > riskRank[a] {
		return b
	}
	return a
}
