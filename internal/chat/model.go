// Package chat implements the care-task consultation pipeline: session
// continuity, domain matching, fact extraction, knowledge retrieval,
// optional web and LLM calls, and a deterministic fallback renderer.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// Conversation modes.
const (
	ModeAuto     = "auto"
	ModeClinical = "clinical"
	ModeGeneral  = "general"
)

// Tool modes.
const (
	ToolChat       = "chat"
	ToolMedication = "medication"
	ToolTreatment  = "treatment"
	ToolCases      = "cases"
	ToolImages     = "images"
	ToolDeepSearch = "deep_search"
)

// MessageRequest is the chat submission payload.
type MessageRequest struct {
	Query                         string  `json:"query"`
	SessionID                     string  `json:"session_id"`
	ClinicianID                   *string `json:"clinician_id"`
	SpecialtyHint                 string  `json:"specialty_hint"`
	UseAuthenticatedSpecialtyMode bool    `json:"use_authenticated_specialty_mode"`
	ConversationMode              string  `json:"conversation_mode"`
	ToolMode                      string  `json:"tool_mode"`
	UsePatientHistory             bool    `json:"use_patient_history"`
	UseWebSources                 bool    `json:"use_web_sources"`
	MaxHistoryMessages            int     `json:"max_history_messages"`
	MaxSources                    int     `json:"max_sources"`
	PersistExtractedFacts         *bool   `json:"persist_extracted_facts"`
}

// Message is one persisted chat turn.
type Message struct {
	ID                   uuid.UUID `json:"id"`
	CareTaskID           uuid.UUID `json:"care_task_id"`
	SessionID            string    `json:"session_id"`
	ClinicianID          *string   `json:"clinician_id,omitempty"`
	UserQuery            string    `json:"user_query"`
	AssistantAnswer      string    `json:"assistant_answer"`
	MatchedDomains       []string  `json:"matched_domains"`
	MatchedEndpoints     []string  `json:"matched_endpoints"`
	KnowledgeSourcesUsed []string  `json:"knowledge_sources_used"`
	WebSourcesUsed       []string  `json:"web_sources_used"`
	MemoryFactsUsed      []string  `json:"memory_facts_used"`
	PatientHistoryFacts  []string  `json:"patient_history_facts"`
	ExtractedFacts       []string  `json:"extracted_facts"`
	CreatedAt            time.Time `json:"created_at"`
}

// MessageResponse is the chat answer plus its interpretability trace.
type MessageResponse struct {
	Message    *Message  `json:"message"`
	AgentRunID uuid.UUID `json:"agent_run_id"`
	Trace      []string  `json:"interpretability_trace"`
}

// WebSource is one whitelisted external search hit.
type WebSource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// EndpointRecommendation is a miniature rule recommendation synthesized
// from the query during a clinical-mode turn.
type EndpointRecommendation struct {
	Domain   string `json:"domain"`
	Endpoint string `json:"endpoint"`
	Output   any    `json:"output"`
}
