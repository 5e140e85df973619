package chat

import (
	"regexp"
	"strings"
)

const maxExtractedFacts = 16

var (
	thresholdRe  = regexp.MustCompile(`(?i)\d+(?:[.,]\d+)?\s*(mmhg|mg/dl|mmol/l|lpm|%|h|horas|min|ml/kg|cmh2o|ng/ml)`)
	comparatorRe = regexp.MustCompile(`(>=|<=|>|<)\s*\d+(?:[.,]\d+)?`)
)

// clinicalTerms is the fixed term list scanned for termino: tags.
var clinicalTerms = []string{
	"sepsis", "lactato", "troponina", "hipotension", "taquicardia",
	"fiebre", "disnea", "saturacion", "glasgow", "ictus", "shock",
	"antibiotico", "anticoagulacion", "fluidoterapia", "noradrenalina",
}

// ExtractFacts scans the raw query for numeric thresholds with units,
// comparators and known clinical terms. Each match becomes a short tag;
// duplicates are dropped and the list caps at 16.
func ExtractFacts(query string) []string {
	norm := Normalize(query)
	var facts []string
	seen := map[string]bool{}

	add := func(tag string) {
		if !seen[tag] && len(facts) < maxExtractedFacts {
			seen[tag] = true
			facts = append(facts, tag)
		}
	}

	for _, m := range thresholdRe.FindAllString(norm, -1) {
		add("umbral:" + strings.Join(strings.Fields(m), ""))
	}
	for _, m := range comparatorRe.FindAllString(norm, -1) {
		add("comparador:" + strings.Join(strings.Fields(m), ""))
	}
	for _, term := range clinicalTerms {
		if strings.Contains(norm, term) {
			add("termino:" + term)
		}
	}
	if strings.Contains(norm, "consentimiento") {
		add("legal:consentimiento_mencionado")
	}

	return facts
}

// HasClinicalFact reports whether any extracted tag is a clinical signal
// (umbral, comparador or termino).
func HasClinicalFact(facts []string) bool {
	for _, f := range facts {
		if strings.HasPrefix(f, "umbral:") || strings.HasPrefix(f, "comparador:") || strings.HasPrefix(f, "termino:") {
			return true
		}
	}
	return false
}
