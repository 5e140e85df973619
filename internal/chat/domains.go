package chat

import (
	"sort"
	"strings"
)

// Domain is one entry in the fixed consultation catalog.
type Domain struct {
	Name     string
	Keywords []string
}

// catalog is the fixed domain keyword table scored against every query.
var catalog = []Domain{
	{Name: "critical_ops", Keywords: []string{
		"triaje", "prioridad", "sla", "saturacion", "box vital", "flujo de pacientes",
	}},
	{Name: "sepsis", Keywords: []string{
		"sepsis", "shock septico", "lactato", "qsofa", "infeccion", "fiebre", "hemocultivo",
	}},
	{Name: "scasest", Keywords: []string{
		"scasest", "sca", "dolor toracico", "troponina", "killip", "grace", "angina",
	}},
	{Name: "resuscitation", Keywords: []string{
		"parada", "rcp", "reanimacion", "desfibril", "ritmo desfibrilable", "adrenalina",
	}},
	{Name: "medicolegal", Keywords: []string{
		"consentimiento", "judicial", "alta voluntaria", "rechaza tratamiento", "ingreso involuntario", "parte de lesiones",
	}},
	{Name: "neurology", Keywords: []string{
		"ictus", "codigo ictus", "glasgow", "focalidad", "convulsion", "cefalea brusca",
	}},
	{Name: "screening", Keywords: []string{
		"fragilidad", "caidas", "cribado", "polifarmacia", "deterioro cognitivo",
	}},
	{Name: "cardio_risk", Keywords: []string{
		"riesgo cardiovascular", "colesterol", "hipertension", "tabaquismo", "diabetes",
	}},
}

// specialtyFallback routes queries with no keyword hits to the domain
// closest to the effective specialty.
var specialtyFallback = map[string]string{
	"cardiologia":        "scasest",
	"medicina intensiva": "resuscitation",
	"geriatria":          "screening",
	"neurologia":         "neurology",
	"urgencias":          "critical_ops",
}

// DomainMatch is one scored catalog hit.
type DomainMatch struct {
	Name  string
	Score int
}

// MatchDomains scores the catalog against the normalized query, keeps the
// top three hits and guarantees the specialty-fallback domain is present.
func MatchDomains(normQuery, specialty string) []DomainMatch {
	fallback := specialtyFallback[specialty]
	if fallback == "" {
		fallback = "critical_ops"
	}

	var matches []DomainMatch
	for _, d := range catalog {
		score := 0
		for _, kw := range d.Keywords {
			if strings.Contains(normQuery, kw) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, DomainMatch{Name: d.Name, Score: score})
		}
	}

	if len(matches) == 0 {
		return []DomainMatch{{Name: fallback}}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > 3 {
		matches = matches[:3]
	}

	for _, m := range matches {
		if m.Name == fallback {
			return matches
		}
	}
	return append([]DomainMatch{{Name: fallback}}, matches...)
}

// DomainNames projects the matched names.
func DomainNames(matches []DomainMatch) []string {
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m.Name)
	}
	return names
}
