package chat

import (
	"encoding/json"
	"fmt"
	"strings"
)

const humanValidationFooter = "Recomendacion operativa de soporte: requiere validacion por un profesional responsable."

// RenderFallback produces the deterministic answer used when no LLM is
// available or its call failed. Values that look like raw JSON snippets
// are stripped rather than echoed as prose.
func RenderFallback(pc promptContext) string {
	if pc.ResponseMode == ModeClinical {
		return renderClinical(pc)
	}
	return renderGeneral(pc)
}

func renderClinical(pc promptContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Consulta clinica (%s).\n", pc.Specialty)

	if actions := collectActions(pc.Endpoints); len(actions) > 0 {
		b.WriteString("\nAcciones prioritarias:\n")
		for _, a := range actions {
			fmt.Fprintf(&b, "- %s\n", a)
		}
	}

	if len(pc.MemoryFacts) > 0 {
		fmt.Fprintf(&b, "\nContexto reutilizado de la sesion: %s.\n", joinSanitized(pc.MemoryFacts))
	}
	if len(pc.PatientFacts) > 0 {
		fmt.Fprintf(&b, "Contexto longitudinal del paciente: %s.\n", joinSanitized(pc.PatientFacts))
	}

	for _, r := range pc.Endpoints {
		if line := summarizeEndpoint(r); line != "" {
			fmt.Fprintf(&b, "\nEvaluacion %s: %s\n", r.Domain, line)
		}
	}

	if len(pc.Knowledge) > 0 {
		b.WriteString("\nEvidencia interna consultada:\n")
		for _, k := range pc.Knowledge {
			fmt.Fprintf(&b, "- %s\n", k.Source.Title)
		}
	}
	if len(pc.WebSources) > 0 {
		b.WriteString("\nFuentes externas validadas:\n")
		for _, w := range pc.WebSources {
			fmt.Fprintf(&b, "- %s (%s)\n", Sanitize(w.Title), w.URL)
		}
	}

	fmt.Fprintf(&b, "\n%s", humanValidationFooter)
	return b.String()
}

func renderGeneral(pc promptContext) string {
	var b strings.Builder
	b.WriteString("Puedo ayudarte con la consulta. ")

	if len(pc.Knowledge) > 0 {
		fmt.Fprintf(&b, "Como referencia interna puede servir \"%s\". ", pc.Knowledge[0].Source.Title)
	}
	if len(pc.WebSources) > 0 {
		fmt.Fprintf(&b, "Tambien hay informacion publica en %s. ", pc.WebSources[0].URL)
	}
	b.WriteString("Si la duda es sobre un paciente concreto, indica sus datos clinicos y lo revisamos en modo clinico.")
	return b.String()
}

// collectActions gathers the recommended action strings out of the
// endpoint outputs, deduplicated and capped.
func collectActions(recs []EndpointRecommendation) []string {
	var actions []string
	seen := map[string]bool{}
	for _, r := range recs {
		out := outputMap(r.Output)
		for _, key := range []string{"recommended_actions", "bundle_actions", "escalation_actions"} {
			list, _ := out[key].([]any)
			for _, item := range list {
				s := Sanitize(fmt.Sprint(item))
				if s != "" && !seen[s] && len(actions) < 8 {
					seen[s] = true
					actions = append(actions, s)
				}
			}
		}
	}
	return actions
}

// summarizeEndpoint reduces an endpoint output to one prose line.
func summarizeEndpoint(r EndpointRecommendation) string {
	out := outputMap(r.Output)
	for _, key := range []string{"risk_level", "severity", "priority"} {
		if v, ok := out[key].(string); ok && v != "" {
			return "nivel " + v
		}
	}
	if v, ok := out["high_risk"].(bool); ok {
		if v {
			return "alto riesgo"
		}
		return "sin criterios de alto riesgo"
	}
	return ""
}

// Sanitize drops values that begin with a JSON snippet so raw payloads
// never appear as prose.
func Sanitize(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return ""
	}
	return trimmed
}

func joinSanitized(values []string) string {
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if s := Sanitize(v); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, "; ")
}

func outputMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{}
	}
	return m
}
