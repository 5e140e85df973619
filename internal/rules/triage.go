package rules

import "strings"

// FallbackConfidenceThreshold is the confidence below which the run engine
// substitutes the safe-default triage recommendation.
const FallbackConfidenceThreshold = 0.65

// TriageInput is synthesized from the care task at the HTTP boundary.
type TriageInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// TriageResult is the operational triage recommendation.
type TriageResult struct {
	Priority                string   `json:"priority"`
	Category                string   `json:"category"`
	Confidence              float64  `json:"confidence"`
	Source                  string   `json:"source"`
	Reason                  string   `json:"reason"`
	RecommendedActions      []string `json:"recommended_actions"`
	Alerts                  []string `json:"alerts"`
	RedFlags                []string `json:"red_flags"`
	HumanValidationRequired bool     `json:"human_validation_required"`
}

var triageCriticalCues = []string{
	"parada", "inconsciente", "no responde", "shock", "convulsion",
	"hemorragia masiva", "via aerea", "cianosis",
}

var triageHighCues = []string{
	"dolor toracico", "disnea", "sepsis", "lactato", "hipotension",
	"taquicardia", "fiebre alta", "alteracion neurologica", "sincope",
}

var triageMediumCues = []string{
	"dolor abdominal", "vomitos", "fiebre", "traumatismo", "cefalea",
	"mareo", "herida",
}

var triageCategories = map[string]string{
	"dolor toracico": "cardiologia",
	"sincope":        "cardiologia",
	"disnea":         "respiratorio",
	"via aerea":      "respiratorio",
	"sepsis":         "infeccioso",
	"fiebre":         "infeccioso",
	"fiebre alta":    "infeccioso",
	"convulsion":     "neurologia",
	"cefalea":        "neurologia",
	"traumatismo":    "trauma",
	"herida":         "trauma",
}

// EvaluateTriage scores the free-text task against cue lists and produces a
// priority, category and confidence. Confidence reflects how many cues fired.
func EvaluateTriage(in TriageInput) TriageResult {
	text := normalizeText(in.Title + " " + in.Description)

	var hits []string
	priority := PriorityLow
	confidence := 0.35

	if matched := matchCues(text, triageMediumCues); len(matched) > 0 {
		priority = PriorityMedium
		confidence = 0.55
		hits = append(hits, matched...)
	}
	if matched := matchCues(text, triageHighCues); len(matched) > 0 {
		priority = PriorityHigh
		confidence = 0.75
		hits = append(hits, matched...)
	}
	if matched := matchCues(text, triageCriticalCues); len(matched) > 0 {
		priority = PriorityCritical
		confidence = 0.9
		hits = append(hits, matched...)
	}
	if len(hits) > 2 {
		confidence += 0.05
	}

	category := "general"
	for _, hit := range hits {
		if cat, ok := triageCategories[hit]; ok {
			category = cat
			break
		}
	}

	result := TriageResult{
		Priority:                priority,
		Category:                category,
		Confidence:              confidence,
		Source:                  SourceRules,
		Reason:                  reasonFor(priority, hits),
		RecommendedActions:      triageActions(priority),
		HumanValidationRequired: true,
	}
	for _, hit := range hits {
		if containsString(triageCriticalCues, hit) {
			result.RedFlags = append(result.RedFlags, hit)
		}
	}
	if priority == PriorityCritical {
		result.Alerts = append(result.Alerts, "activar_box_critico")
	}
	return result
}

// ApplySafetyGate substitutes the conservative default recommendation when
// confidence is below the threshold. The original confidence is preserved so
// the trace shows why the gate fired. Returns the (possibly replaced) result
// and whether the fallback was used.
func ApplySafetyGate(res TriageResult) (TriageResult, bool) {
	if res.Confidence >= FallbackConfidenceThreshold {
		return res, false
	}
	return TriageResult{
		Priority:                PriorityMedium,
		Category:                "general",
		Confidence:              res.Confidence,
		Source:                  SourceRulesFallback,
		Reason:                  "confianza insuficiente del evaluador; se aplican valores seguros por defecto",
		RecommendedActions:      triageActions(PriorityMedium),
		HumanValidationRequired: true,
	}, true
}

func reasonFor(priority string, hits []string) string {
	if len(hits) == 0 {
		return "sin indicadores clinicos detectados en el texto; prioridad minima provisional"
	}
	return "indicadores detectados (" + strings.Join(hits, ", ") + ") compatibles con prioridad " + priority
}

func triageActions(priority string) []string {
	switch priority {
	case PriorityCritical:
		return []string{"atencion inmediata", "monitorizacion continua", "avisar a medico responsable"}
	case PriorityHigh:
		return []string{"valoracion medica en menos de 10 minutos", "constantes vitales completas"}
	case PriorityMedium:
		return []string{"valoracion medica en menos de 60 minutos", "reevaluar si empeora"}
	default:
		return []string{"valoracion ordinaria", "reevaluar segun circuito de espera"}
	}
}

func matchCues(text string, cues []string) []string {
	var matched []string
	for _, cue := range cues {
		if strings.Contains(text, cue) {
			matched = append(matched, cue)
		}
	}
	return matched
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// normalizeText lowercases and strips the accents that appear in Spanish
// clinical free text so cue matching is accent-insensitive.
func normalizeText(s string) string {
	s = strings.ToLower(s)
	replacer := strings.NewReplacer(
		"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
	)
	return replacer.Replace(s)
}
