package chat

import "github.com/hospital-urgencias/clinops/internal/knowledge"

// builtinDocs are the last-resort snippets served when the validated
// catalog has no match and validated-only retrieval is not enforced.
var builtinDocs = map[string]knowledge.Source{
	"critical_ops": {
		Title:   "Protocolo interno de triaje y flujo en urgencias",
		Summary: "Prioridades de triaje, tiempos objetivo por nivel y criterios de escalado a box vital.",
	},
	"sepsis": {
		Title:   "Bundle de sepsis de la primera hora",
		Summary: "Hemocultivos, antibioterapia empirica precoz, fluidoterapia 30 ml/kg y control de lactato seriado.",
	},
	"scasest": {
		Title:   "Manejo inicial del SCASEST",
		Summary: "Estratificacion GRACE, troponina seriada, antiagregacion y criterios de coronariografia precoz.",
	},
	"resuscitation": {
		Title:   "Algoritmo de soporte vital avanzado",
		Summary: "Ciclos de RCP de alta calidad, desfibrilacion temprana en ritmos desfibrilables y adrenalina cada 3-5 min.",
	},
	"medicolegal": {
		Title:   "Guia medicolegal de urgencias",
		Summary: "Consentimiento informado, parte judicial de lesiones, alta voluntaria y actuacion ante rechazo de tratamiento.",
	},
	"neurology": {
		Title:   "Activacion de codigo ictus",
		Summary: "Ventana terapeutica, escala de Glasgow y NIHSS, y criterios de derivacion a unidad de ictus.",
	},
	"screening": {
		Title:   "Cribado de fragilidad en el mayor",
		Summary: "Valoracion de caidas, polifarmacia y deterioro cognitivo al alta de urgencias.",
	},
	"cardio_risk": {
		Title:   "Valoracion de riesgo cardiovascular",
		Summary: "Factores modificables, objetivos de control lipidico y tensional.",
	},
}

// builtinSnippets serves the builtin docs for the matched domains, in
// domain order, capped at limit.
func builtinSnippets(domainNames []string, limit int) []knowledge.Ranked {
	var out []knowledge.Ranked
	for _, name := range domainNames {
		doc, ok := builtinDocs[name]
		if !ok || len(out) >= limit {
			continue
		}
		out = append(out, knowledge.Ranked{Source: doc, Score: 1})
	}
	return out
}
