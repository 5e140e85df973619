package chat

import (
	"fmt"
	"strings"

	"github.com/hospital-urgencias/clinops/internal/knowledge"
)

// Normalize lowercases and folds accents for substring matching.
func Normalize(text string) string {
	return knowledge.StripAccents(strings.ToLower(strings.TrimSpace(text)))
}

// followUpHints mark a short query as a continuation of the previous turn.
var followUpHints = []string{
	"y ahora", "y si", "si empeora", "resume", "reformula", "amplia",
	"detalla", "que hago", "siguiente", "continuamos",
}

// ExpandFollowUp detects follow-up queries and rewrites them against the
// previous user query. Returns the effective query and whether it expanded.
func ExpandFollowUp(query, lastUserQuery string) (string, bool) {
	if lastUserQuery == "" {
		return query, false
	}

	norm := Normalize(query)
	isFollowUp := len(strings.Fields(norm)) <= 8
	if !isFollowUp {
		for _, hint := range followUpHints {
			if strings.Contains(norm, hint) {
				isFollowUp = true
				break
			}
		}
	}
	if !isFollowUp {
		return query, false
	}
	return fmt.Sprintf("%s. Seguimiento: %s", lastUserQuery, query), true
}
