package chat

import (
	"sort"
	"strings"
)

// DistillMemory folds the extracted facts of recent session messages into
// the most frequent tags, skipping control tags (modo_respuesta:*,
// herramienta:*), which describe the pipeline rather than the patient.
func DistillMemory(messages []Message, max int) []string {
	if max < 1 {
		return nil
	}

	freq := map[string]int{}
	order := map[string]int{}
	next := 0
	for _, m := range messages {
		for _, fact := range m.ExtractedFacts {
			if isControlTag(fact) {
				continue
			}
			if _, ok := freq[fact]; !ok {
				order[fact] = next
				next++
			}
			freq[fact]++
		}
	}

	facts := make([]string, 0, len(freq))
	for f := range freq {
		facts = append(facts, f)
	}
	sort.SliceStable(facts, func(i, j int) bool {
		if freq[facts[i]] != freq[facts[j]] {
			return freq[facts[i]] > freq[facts[j]]
		}
		return order[facts[i]] < order[facts[j]]
	})

	if len(facts) > max {
		facts = facts[:max]
	}
	return facts
}

// MemorySummary is the memory-endpoint payload: session facts plus the
// patient-wide aggregation when longitudinal messages exist.
func MemorySummary(sessionID string, sessionMsgs, patientMsgs []Message, max int) map[string]any {
	return map[string]any{
		"session_id":            sessionID,
		"message_count":         len(sessionMsgs),
		"memory_facts":          DistillMemory(sessionMsgs, max),
		"patient_history_facts": DistillMemory(patientMsgs, max),
	}
}

func isControlTag(fact string) bool {
	return strings.HasPrefix(fact, "modo_respuesta:") || strings.HasPrefix(fact, "herramienta:")
}
