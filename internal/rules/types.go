// Package rules contains the deterministic clinical rule evaluators.
//
// Every evaluator is a pure function from a typed input struct to a
// recommendation struct: no I/O, no randomness, no errors for valid input.
// Unknown conditions are encoded as explicit output fields, never panics.
// All recommendations are operational, not diagnostic, and always require
// human validation.
package rules

// Priority levels shared by triage and care tasks.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Triage output sources.
const (
	SourceRules         = "rules"
	SourceLLM           = "llm"
	SourceRulesFallback = "rules_fallback"
)

// RiskLevels for the three-step domains.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskModerate = "moderate"
	RiskHigh     = "high"
	RiskVeryHigh = "very_high"
	RiskCritical = "critical"
)
