package knowledge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWhitelist() *Whitelist {
	return NewWhitelist([]string{"who.int", "escardio.org", "semicyuc.org"})
}

func TestWhitelistAllowsHost(t *testing.T) {
	wl := testWhitelist()

	assert.True(t, wl.AllowsHost("who.int"))
	assert.True(t, wl.AllowsHost("www.who.int"))
	assert.True(t, wl.AllowsHost("WWW.WHO.INT"))
	assert.False(t, wl.AllowsHost("randomblog.example.com"))
	// A host that merely contains a whitelisted domain is rejected.
	assert.False(t, wl.AllowsHost("evilwho.int.example.com"))
	assert.False(t, wl.AllowsHost("notwho.int"))
}

func TestWhitelistAllowsURL(t *testing.T) {
	wl := testWhitelist()

	assert.True(t, wl.AllowsURL("https://www.who.int/health-topics/sepsis"))
	assert.False(t, wl.AllowsURL("https://randomblog.example.com/x"))
	assert.False(t, wl.AllowsURL("not a url"))
	assert.False(t, wl.AllowsURL("/relative/path"))
}

func TestSourceActive(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, (&Source{Status: StatusValidated}).Active(now))
	assert.True(t, (&Source{Status: StatusValidated, ExpiresAt: &future}).Active(now))
	assert.False(t, (&Source{Status: StatusValidated, ExpiresAt: &past}).Active(now))
	assert.False(t, (&Source{Status: StatusPendingReview}).Active(now))
	assert.False(t, (&Source{Status: StatusRejected}).Active(now))
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("Protocolo de sepsis: lactato y TAS, revisión 2024")
	assert.Contains(t, tokens, "protocolo")
	assert.Contains(t, tokens, "sepsis")
	assert.Contains(t, tokens, "lactato")
	assert.Contains(t, tokens, "revision")
	assert.NotContains(t, tokens, "de")
}

func TestRankScoresAndOrders(t *testing.T) {
	sources := []Source{
		{Title: "Protocolo sepsis urgencias", Summary: "lactato y bundle", Specialty: "general", Tags: []string{}},
		{Title: "Guia SCASEST", Summary: "troponina", Specialty: "cardiologia", Tags: []string{}},
		{Title: "Plan de limpieza", Summary: "turnos", Specialty: "general", Tags: []string{}},
	}
	query := Tokenize("paciente con sepsis, lactato elevado")

	ranked := Rank(sources, query, "general", []string{"sepsis"}, 3)
	require.Len(t, ranked, 1, "zero-score sources are dropped")
	assert.Equal(t, "Protocolo sepsis urgencias", ranked[0].Source.Title)
	assert.GreaterOrEqual(t, ranked[0].Score, 3)
}

func TestRankSpecialtyBonus(t *testing.T) {
	sources := []Source{
		{Title: "Guia dolor toracico", Specialty: "general"},
		{Title: "Guia dolor toracico", Specialty: "cardiologia"},
	}
	query := Tokenize("dolor toracico opresivo")

	ranked := Rank(sources, query, "cardiologia", nil, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, "cardiologia", ranked[0].Source.Specialty)
	assert.Equal(t, ranked[1].Score+2, ranked[0].Score)
}

func TestNonStrictWhitelistAllowsEverything(t *testing.T) {
	wl := NewWebWhitelist([]string{"who.int"}, false)
	assert.True(t, wl.AllowsHost("randomblog.example.com"))

	strict := NewWebWhitelist([]string{"who.int"}, true)
	assert.False(t, strict.AllowsHost("randomblog.example.com"))
}

func TestBuildSourceListQuery(t *testing.T) {
	t.Run("no filters", func(t *testing.T) {
		query, args := buildSourceListQuery(ListFilter{})
		assert.NotContains(t, query, "WHERE")
		assert.Contains(t, query, "LIMIT 50")
		assert.Empty(t, args)
	})

	t.Run("specialty and status", func(t *testing.T) {
		query, args := buildSourceListQuery(ListFilter{Specialty: "urgencias", Status: StatusPendingReview, Limit: 20})
		assert.Contains(t, query, "specialty = $1")
		assert.Contains(t, query, "status = $2")
		assert.Contains(t, query, "LIMIT 20")
		assert.Equal(t, []any{"urgencias", StatusPendingReview}, args)
	})

	t.Run("validated_only overrides status", func(t *testing.T) {
		query, args := buildSourceListQuery(ListFilter{Status: StatusRejected, ValidatedOnly: true})
		assert.Contains(t, query, "status = $1")
		assert.Equal(t, []any{StatusValidated}, args)
	})

	t.Run("out of range limit falls back", func(t *testing.T) {
		query, _ := buildSourceListQuery(ListFilter{Limit: 500})
		assert.Contains(t, query, "LIMIT 50")
	})
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 50, clampLimit(0, 200, 50))
	assert.Equal(t, 1, clampLimit(1, 200, 50))
	assert.Equal(t, 200, clampLimit(200, 200, 50))
	assert.Equal(t, 50, clampLimit(201, 200, 50))
	assert.Equal(t, 50, clampLimit(-3, 100, 50))
	assert.Equal(t, 100, clampLimit(100, 100, 50))
}

func TestStatusUpdateStampsValidationOnlyOnApprove(t *testing.T) {
	assert.Contains(t, statusUpdateQuery(StatusValidated), "validated_at")
	assert.Contains(t, statusUpdateQuery(StatusValidated), "validated_by")

	for _, status := range []string{StatusRejected, StatusExpired} {
		q := statusUpdateQuery(status)
		assert.NotContains(t, q, "validated_at")
		assert.NotContains(t, q, "validated_by")
	}
}
