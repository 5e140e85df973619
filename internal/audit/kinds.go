package audit

import (
	"strings"

	"github.com/hospital-urgencias/clinops/internal/agentrun"
)

// Flag is one categorical boolean extracted from a run output.
type Flag struct {
	Name    string
	Extract func(out map[string]any) bool
}

// Kind describes how one domain's audits work: which workflow produced the
// run, where the domain output lives inside run_output, how categories map
// to numeric levels, and which boolean flags are compared. Adding an
// auditable domain is one more row in Kinds.
type Kind struct {
	Domain    string
	Workflow  string
	OutputKey string
	// LevelKey selects the category string inside the domain output.
	// Empty for flag-only domains.
	LevelKey string
	LevelMap map[string]int
	// InvertedScale marks domains where a numerically greater level means
	// a less acute state (triage levels 1-5), flipping the under/over
	// direction.
	InvertedScale bool
	Flags         []Flag
}

// UnderLabel is this domain's under-deviation classification tag.
func (k *Kind) UnderLabel() string { return "under_" + k.Domain }

// OverLabel is this domain's over-deviation classification tag.
func (k *Kind) OverLabel() string { return "over_" + k.Domain }

// FlagOnly reports whether classification is driven by booleans instead of
// a level scale.
func (k *Kind) FlagOnly() bool { return k.LevelKey == "" }

// Kinds is the audit descriptor table, keyed by domain.
var Kinds = map[string]*Kind{
	"triage": {
		Domain:    "triage",
		Workflow:  agentrun.WorkflowTriage,
		OutputKey: "triage",
		LevelKey:  "priority",
		// Triage levels: 1 is the most acute, so a critical priority maps
		// to level 1 and low to level 4.
		LevelMap:      map[string]int{"critical": 1, "high": 2, "medium": 3, "low": 4},
		InvertedScale: true,
	},
	"screening": {
		Domain:    "screening",
		Workflow:  agentrun.WorkflowScreening,
		OutputKey: "screening",
		LevelKey:  "risk_level",
		LevelMap:  map[string]int{"low": 1, "medium": 2, "high": 3},
	},
	"medicolegal": {
		Domain:    "medicolegal",
		Workflow:  agentrun.WorkflowMedicolegal,
		OutputKey: "medicolegal",
		LevelKey:  "risk_level",
		LevelMap:  map[string]int{"low": 1, "medium": 2, "high": 3, "critical": 4},
		Flags: []Flag{
			{Name: "consent_required", Extract: consentRequired},
			{Name: "judicial_notice", Extract: judicialNotice},
		},
	},
	"scasest": {
		Domain:    "scasest",
		Workflow:  agentrun.WorkflowSCASEST,
		OutputKey: "scasest",
		Flags: []Flag{
			{Name: "high_risk", Extract: boolField("high_risk")},
		},
	},
	"cardio_risk": {
		Domain:    "cardio_risk",
		Workflow:  agentrun.WorkflowCardioRisk,
		OutputKey: "cardio_risk",
		LevelKey:  "risk_level",
		LevelMap:  map[string]int{"low": 1, "moderate": 2, "high": 3, "very_high": 4},
	},
	"resuscitation": {
		Domain:    "resuscitation",
		Workflow:  agentrun.WorkflowResuscitation,
		OutputKey: "resuscitation",
		LevelKey:  "severity",
		LevelMap:  map[string]int{"medium": 1, "high": 2, "critical": 3},
	},
}

// KindBySlug resolves a URL domain slug (hyphenated) to its descriptor.
func KindBySlug(slug string) (*Kind, bool) {
	k, ok := Kinds[strings.ReplaceAll(slug, "-", "_")]
	return k, ok
}

func boolField(key string) func(out map[string]any) bool {
	return func(out map[string]any) bool {
		v, _ := out[key].(bool)
		return v
	}
}

// consentRequired prefers the structured flag; runs that predate it are
// probed through the required-documents strings.
func consentRequired(out map[string]any) bool {
	if v, ok := out["consent_required"].(bool); ok {
		return v
	}
	return documentsContain(out, "consentimiento informado")
}

func judicialNotice(out map[string]any) bool {
	if v, ok := out["judicial_notice"].(bool); ok {
		return v
	}
	return documentsContain(out, "parte judicial")
}

func documentsContain(out map[string]any, needle string) bool {
	docs, _ := out["required_documents"].([]any)
	for _, d := range docs {
		s, _ := d.(string)
		if strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}
