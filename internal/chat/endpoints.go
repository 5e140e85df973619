package chat

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hospital-urgencias/clinops/internal/rules"
)

var (
	lactateRe  = regexp.MustCompile(`lactato\s*(?:de\s*)?(\d+(?:[.,]\d+)?)`)
	systolicRe = regexp.MustCompile(`(?:tas|tension arterial sistolica|sistolica)\s*(?:de\s*)?(\d+)`)
	rrRe       = regexp.MustCompile(`(?:fr|frecuencia respiratoria)\s*(?:de\s*)?(\d+)`)
	gcsRe      = regexp.MustCompile(`glasgow\s*(?:de\s*)?(\d+)`)
	graceRe    = regexp.MustCompile(`grace\s*(?:de\s*)?(\d+)`)
	killipRe   = regexp.MustCompile(`killip\s*(?:de\s*)?(?:i{1,3}v?|\d)`)
	ageRe      = regexp.MustCompile(`(\d{2,3})\s*anos`)
)

// SynthesizeEndpoints builds a miniature rule recommendation per matched
// domain that maps to an evaluator. The inputs come from heuristic
// substrings of the query; domains with no evaluator add nothing.
func SynthesizeEndpoints(normQuery string, domains []string) []EndpointRecommendation {
	var recs []EndpointRecommendation

	for _, d := range domains {
		switch d {
		case "sepsis":
			in := rules.SepsisInput{
				SuspectedInfection: strings.Contains(normQuery, "infeccion") || strings.Contains(normQuery, "sepsis"),
				LactateMmolL:       matchFloat(lactateRe, normQuery),
				SystolicBP:         matchInt(systolicRe, normQuery),
				RespiratoryRate:    matchInt(rrRe, normQuery),
				GlasgowComaScale:   matchInt(gcsRe, normQuery),
			}
			recs = append(recs, EndpointRecommendation{
				Domain:   d,
				Endpoint: "sepsis/recommendation",
				Output:   rules.EvaluateSepsis(in),
			})
		case "scasest":
			in := rules.SCASESTInput{
				ChestPainOngoing: strings.Contains(normQuery, "dolor toracico"),
				TroponinElevated: strings.Contains(normQuery, "troponina elevada") || strings.Contains(normQuery, "troponina positiva"),
				GraceScore:       matchInt(graceRe, normQuery),
				KillipClass:      killipClass(normQuery),
			}
			recs = append(recs, EndpointRecommendation{
				Domain:   d,
				Endpoint: "scasest/recommendation",
				Output:   rules.EvaluateSCASEST(in),
			})
		case "resuscitation":
			in := rules.ResuscitationInput{
				CardiacArrest:   strings.Contains(normQuery, "parada"),
				ShockableRhythm: strings.Contains(normQuery, "desfibrilable"),
			}
			recs = append(recs, EndpointRecommendation{
				Domain:   d,
				Endpoint: "resuscitation/recommendation",
				Output:   rules.EvaluateResuscitation(in),
			})
		case "medicolegal":
			in := rules.MedicolegalInput{
				RefusesTreatment:  strings.Contains(normQuery, "rechaza"),
				MinorPatient:      strings.Contains(normQuery, "menor"),
				SuspectedViolence: strings.Contains(normQuery, "violencia") || strings.Contains(normQuery, "agresion"),
				InvasiveProcedure: strings.Contains(normQuery, "consentimiento"),
			}
			recs = append(recs, EndpointRecommendation{
				Domain:   d,
				Endpoint: "medicolegal/recommendation",
				Output:   rules.EvaluateMedicolegal(in),
			})
		case "screening":
			in := rules.ScreeningInput{
				Age:                 matchInt(ageRe, normQuery),
				RecentFalls:         boolToInt(strings.Contains(normQuery, "caidas")),
				CognitiveImpairment: strings.Contains(normQuery, "deterioro cognitivo"),
				Polypharmacy:        strings.Contains(normQuery, "polifarmacia"),
			}
			recs = append(recs, EndpointRecommendation{
				Domain:   d,
				Endpoint: "screening/recommendation",
				Output:   rules.EvaluateScreening(in),
			})
		case "cardio_risk":
			in := rules.CardioRiskInput{
				Age:      matchInt(ageRe, normQuery),
				Diabetic: strings.Contains(normQuery, "diabetes") || strings.Contains(normQuery, "diabetico"),
				Smoker:   strings.Contains(normQuery, "fumador") || strings.Contains(normQuery, "tabaquismo"),
			}
			recs = append(recs, EndpointRecommendation{
				Domain:   d,
				Endpoint: "cardio-risk/recommendation",
				Output:   rules.EvaluateCardioRisk(in),
			})
		}
	}
	return recs
}

// EndpointNames projects the endpoint identifiers for persistence.
func EndpointNames(recs []EndpointRecommendation) []string {
	names := make([]string, 0, len(recs))
	for _, r := range recs {
		names = append(names, r.Endpoint)
	}
	return names
}

func matchFloat(re *regexp.Regexp, text string) float64 {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}

func matchInt(re *regexp.Regexp, text string) int {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return v
}

func killipClass(text string) int {
	m := killipRe.FindString(text)
	if m == "" {
		return 0
	}
	suffix := strings.TrimSpace(strings.TrimPrefix(m, "killip"))
	suffix = strings.TrimSpace(strings.TrimPrefix(suffix, "de"))
	switch suffix {
	case "iv", "4":
		return 4
	case "iii", "3":
		return 3
	case "ii", "2":
		return 2
	case "i", "1":
		return 1
	}
	return 0
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
