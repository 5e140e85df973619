package chat

import "strings"

// coreClinicalTerms force clinical mode even without a domain keyword hit.
var coreClinicalTerms = []string{
	"paciente", "dolor", "tratamiento", "dosis", "sintoma", "diagnostico",
	"urgencia", "constantes", "analitica",
}

// ResolveResponseMode decides between a clinical and a general answer.
// Explicit conversation modes win; tool modes bias next; otherwise any
// clinical signal in the query flips to clinical.
func ResolveResponseMode(conversationMode, toolMode, normQuery string, domainHits bool, facts []string) string {
	switch conversationMode {
	case ModeClinical:
		return ModeClinical
	case ModeGeneral:
		return ModeGeneral
	}

	switch toolMode {
	case ToolDeepSearch:
		return ModeGeneral
	case ToolMedication, ToolTreatment, ToolCases, ToolImages:
		return ModeClinical
	}

	if domainHits || HasClinicalFact(facts) {
		return ModeClinical
	}
	for _, term := range coreClinicalTerms {
		if strings.Contains(normQuery, term) {
			return ModeClinical
		}
	}
	return ModeGeneral
}
