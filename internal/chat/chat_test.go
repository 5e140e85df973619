package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandFollowUp(t *testing.T) {
	last := "Paciente con sepsis, lactato 4.5 y TAS 85"

	t.Run("short query expands", func(t *testing.T) {
		got, expanded := ExpandFollowUp("y ahora que hago?", last)
		assert.True(t, expanded)
		assert.Equal(t, "Paciente con sepsis, lactato 4.5 y TAS 85. Seguimiento: y ahora que hago?", got)
	})

	t.Run("hint expands even when long", func(t *testing.T) {
		q := "si empeora la tension arterial del paciente durante la proxima hora de observacion en el box"
		got, expanded := ExpandFollowUp(q, last)
		assert.True(t, expanded)
		assert.Contains(t, got, "Seguimiento: "+q)
	})

	t.Run("long standalone query passes through", func(t *testing.T) {
		q := "valorar antibioterapia empirica para neumonia adquirida en la comunidad con criterios de gravedad presentes"
		got, expanded := ExpandFollowUp(q, last)
		assert.False(t, expanded)
		assert.Equal(t, q, got)
	})

	t.Run("no previous turn never expands", func(t *testing.T) {
		got, expanded := ExpandFollowUp("que hago?", "")
		assert.False(t, expanded)
		assert.Equal(t, "que hago?", got)
	})
}

func TestDistillMemoryExcludesControlTags(t *testing.T) {
	messages := []Message{
		{ExtractedFacts: []string{"termino:sepsis", "umbral:4.5mmol/l", "modo_respuesta:clinical", "herramienta:chat"}},
		{ExtractedFacts: []string{"termino:sepsis", "modo_respuesta:general"}},
	}

	facts := DistillMemory(messages, 8)
	require.Equal(t, []string{"termino:sepsis", "umbral:4.5mmol/l"}, facts)
	for _, f := range facts {
		assert.False(t, strings.HasPrefix(f, "modo_respuesta:"))
		assert.False(t, strings.HasPrefix(f, "herramienta:"))
	}
}

func TestDistillMemoryFrequencyOrder(t *testing.T) {
	messages := []Message{
		{ExtractedFacts: []string{"termino:lactato"}},
		{ExtractedFacts: []string{"termino:fiebre", "termino:lactato"}},
		{ExtractedFacts: []string{"termino:fiebre", "termino:lactato", "comparador:>2"}},
	}

	facts := DistillMemory(messages, 2)
	assert.Equal(t, []string{"termino:lactato", "termino:fiebre"}, facts)
}

func TestExtractFacts(t *testing.T) {
	facts := ExtractFacts("Paciente con sepsis, lactato 4.5 mmol/l y TAS >= 90 mmhg sin consentimiento firmado")

	assert.Contains(t, facts, "umbral:4.5mmol/l")
	assert.Contains(t, facts, "comparador:>=90")
	assert.Contains(t, facts, "termino:sepsis")
	assert.Contains(t, facts, "termino:lactato")
	assert.Contains(t, facts, "legal:consentimiento_mencionado")
}

func TestExtractFactsCap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("10")
		b.WriteByte(byte('0' + i%10))
		b.WriteString(" mmhg ")
	}
	facts := ExtractFacts(b.String())
	assert.LessOrEqual(t, len(facts), 16)
}

func TestMatchDomainsSepsis(t *testing.T) {
	norm := Normalize("Paciente con sepsis, lactato 4.5 y TAS 85")
	matches := MatchDomains(norm, "urgencias")

	names := DomainNames(matches)
	assert.Contains(t, names, "sepsis")
	assert.Contains(t, names, "critical_ops")
	assert.LessOrEqual(t, len(names), 4)
}

func TestMatchDomainsFallbackOnly(t *testing.T) {
	matches := MatchDomains(Normalize("buenos dias"), "cardiologia")
	require.Len(t, matches, 1)
	assert.Equal(t, "scasest", matches[0].Name)
}

func TestResolveResponseMode(t *testing.T) {
	tests := []struct {
		name             string
		conversationMode string
		toolMode         string
		query            string
		domainHits       bool
		facts            []string
		want             string
	}{
		{"explicit clinical wins", ModeClinical, ToolDeepSearch, "hola", false, nil, ModeClinical},
		{"explicit general wins", ModeGeneral, ToolMedication, "sepsis grave", true, nil, ModeGeneral},
		{"deep search is general", ModeAuto, ToolDeepSearch, "sepsis", true, nil, ModeGeneral},
		{"medication tool is clinical", ModeAuto, ToolMedication, "hola", false, nil, ModeClinical},
		{"domain hit is clinical", ModeAuto, ToolChat, "hola", true, nil, ModeClinical},
		{"clinical fact is clinical", ModeAuto, ToolChat, "hola", false, []string{"umbral:90mmhg"}, ModeClinical},
		{"core term is clinical", ModeAuto, ToolChat, "duda sobre el paciente", false, nil, ModeClinical},
		{"plain chat is general", ModeAuto, ToolChat, "como configuro la agenda", false, nil, ModeGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveResponseMode(tt.conversationMode, tt.toolMode, Normalize(tt.query), tt.domainHits, tt.facts)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeStripsJSONSnippets(t *testing.T) {
	assert.Empty(t, Sanitize(`{"risk_level":"high"}`))
	assert.Empty(t, Sanitize(`  ["a","b"]`))
	assert.Equal(t, "nivel alto", Sanitize(" nivel alto "))
}

func TestRenderFallbackClinical(t *testing.T) {
	pc := promptContext{
		Query:        "sepsis con lactato 4.5",
		ResponseMode: ModeClinical,
		Specialty:    "urgencias",
		Endpoints: []EndpointRecommendation{
			{Domain: "sepsis", Endpoint: "sepsis_bundle", Output: map[string]any{
				"severity":            "high",
				"bundle_actions":      []any{"hemocultivos antes de antibiotico", `{"raw":"json"}`},
				"recommended_actions": []any{"fluidoterapia 30 ml/kg"},
			}},
		},
		MemoryFacts: []string{"termino:lactato", `{"json":"fact"}`},
	}

	out := RenderFallback(pc)
	assert.Contains(t, out, "fluidoterapia 30 ml/kg")
	assert.Contains(t, out, "hemocultivos antes de antibiotico")
	assert.Contains(t, out, "nivel high")
	assert.Contains(t, out, "termino:lactato")
	assert.Contains(t, out, humanValidationFooter)
	assert.NotContains(t, out, `{"raw":"json"}`)
	assert.NotContains(t, out, `{"json":"fact"}`)
}

func TestRenderFallbackGeneral(t *testing.T) {
	pc := promptContext{
		ResponseMode: ModeGeneral,
		WebSources:   []WebSource{{Title: "OMS", URL: "https://www.who.int/sepsis"}},
	}

	out := RenderFallback(pc)
	assert.Contains(t, out, "https://www.who.int/sepsis")
	assert.NotContains(t, out, humanValidationFooter)
}

func TestBuiltinSnippets(t *testing.T) {
	ranked := builtinSnippets([]string{"sepsis", "unknown", "scasest"}, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, "Bundle de sepsis de la primera hora", ranked[0].Source.Title)
	assert.Equal(t, "Manejo inicial del SCASEST", ranked[1].Source.Title)
}

func TestTruncateToTokenBudget(t *testing.T) {
	text := strings.Repeat("a", 100)
	got := truncateToTokenBudget(text, 10)
	assert.Equal(t, 40, len(got))

	assert.Equal(t, "corto", truncateToTokenBudget("corto", 10))
}

func TestQueryLengthCountsRunes(t *testing.T) {
	assert.False(t, queryLengthOK(""))
	assert.True(t, queryLengthOK("dolor torácico súbito"))

	// 4000 two-byte runes exceed 4000 bytes but stay within the bound.
	accented := strings.Repeat("á", 4000)
	assert.True(t, queryLengthOK(accented))
	assert.False(t, queryLengthOK(accented+"á"))

	assert.True(t, queryLengthOK(strings.Repeat("a", 4000)))
	assert.False(t, queryLengthOK(strings.Repeat("a", 4001)))
}

func TestMemorySummaryIncludesPatientFacts(t *testing.T) {
	session := []Message{
		{ExtractedFacts: []string{"termino:sepsis", "modo_respuesta:clinical"}},
	}
	patient := []Message{
		{ExtractedFacts: []string{"termino:troponina"}},
		{ExtractedFacts: []string{"termino:troponina", "comparador:>50"}},
	}

	summary := MemorySummary("session-A", session, patient, 8)
	assert.Equal(t, "session-A", summary["session_id"])
	assert.Equal(t, 1, summary["message_count"])
	assert.Equal(t, []string{"termino:sepsis"}, summary["memory_facts"])
	assert.Equal(t, []string{"termino:troponina", "comparador:>50"}, summary["patient_history_facts"])
}
