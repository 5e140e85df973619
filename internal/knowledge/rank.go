package knowledge

import (
	"sort"
	"strings"
)

// Ranked is a source with its retrieval score.
type Ranked struct {
	Source Source `json:"source"`
	Score  int    `json:"score"`
}

// Rank scores active sources against the query: one point per shared
// token, +2 when the specialty matches, +1 per matched domain key found in
// the source text. Zero-score sources are dropped; the top limit survive.
func Rank(sources []Source, queryTokens []string, specialty string, domainKeys []string, limit int) []Ranked {
	if limit < 1 {
		limit = 1
	}

	querySet := map[string]bool{}
	for _, t := range queryTokens {
		querySet[t] = true
	}

	var ranked []Ranked
	for _, src := range sources {
		tokens := Tokenize(src.Title + " " + src.Summary + " " + strings.Join(src.Tags, " "))

		score := 0
		seen := map[string]bool{}
		for _, t := range tokens {
			if querySet[t] && !seen[t] {
				score++
				seen[t] = true
			}
		}
		if src.Specialty == specialty && specialty != "general" {
			score += 2
		}
		text := strings.ToLower(src.Title + " " + src.Summary + " " + src.Content)
		for _, key := range domainKeys {
			if strings.Contains(text, key) {
				score++
			}
		}

		if score > 0 {
			ranked = append(ranked, Ranked{Source: src, Score: score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Tokenize lowercases, strips Spanish accents and splits on non-letters,
// dropping tokens shorter than 3 runes.
func Tokenize(text string) []string {
	text = StripAccents(strings.ToLower(text))
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 3 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

var accentReplacer = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
)

// StripAccents folds the accented characters common in Spanish clinical
// text.
func StripAccents(text string) string {
	return accentReplacer.Replace(text)
}
