package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hospital-urgencias/clinops/internal/agentrun"
	"github.com/hospital-urgencias/clinops/internal/caretask"
	"github.com/hospital-urgencias/clinops/internal/knowledge"
	sharedauth "github.com/hospital-urgencias/clinops/internal/shared/auth"
	"github.com/hospital-urgencias/clinops/internal/shared/config"
	apperrors "github.com/hospital-urgencias/clinops/internal/shared/errors"
	"github.com/hospital-urgencias/clinops/internal/shared/events"
	"github.com/hospital-urgencias/clinops/internal/shared/metrics"
)

// WorkflowName identifies the persisted run every chat turn produces.
const WorkflowName = "care_task_clinical_chat_v1"

const maxQueryChars = 4000

// queryLengthOK bounds the submitted query to 1..4000 characters. The
// bound counts runes so accented Spanish text is not penalized.
func queryLengthOK(query string) bool {
	n := utf8.RuneCountInString(query)
	return n >= 1 && n <= maxQueryChars
}

// Orchestrator drives one chat turn end to end: memory, domain matching,
// retrieval, the optional web and LLM calls, rendering and persistence.
type Orchestrator struct {
	cfg     config.ChatConfig
	repo    *Repository
	runs    *agentrun.Repository
	sources *knowledge.Service
	web     *WebSearcher
	llm     *LLMClient
	bus     events.Publisher
	logger  *slog.Logger
}

func NewOrchestrator(
	cfg config.ChatConfig,
	repo *Repository,
	runs *agentrun.Repository,
	sources *knowledge.Service,
	web *WebSearcher,
	llm *LLMClient,
	bus events.Publisher,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		repo:    repo,
		runs:    runs,
		sources: sources,
		web:     web,
		llm:     llm,
		bus:     bus,
		logger:  logger,
	}
}

// HandleMessage runs the consultation pipeline for one submitted query.
// External calls degrade gracefully; only persistence failures surface.
func (o *Orchestrator) HandleMessage(ctx context.Context, task *caretask.CareTask, user *sharedauth.CurrentUser, req MessageRequest) (*MessageResponse, error) {
	start := time.Now()

	query := strings.TrimSpace(req.Query)
	if !queryLengthOK(query) {
		return nil, apperrors.Validation("query must be between 1 and 4000 characters", map[string]string{"query": "length out of range"})
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "chat-" + uuid.NewString()[:8]
	}
	historyWindow := req.MaxHistoryMessages
	if historyWindow <= 0 {
		historyWindow = o.cfg.HistoryWindow
	}
	maxSources := req.MaxSources
	if maxSources <= 0 {
		maxSources = o.cfg.MaxSources
	}

	// Session continuity.
	recent, err := o.repo.ListSession(ctx, task.ID, sessionID, historyWindow)
	if err != nil {
		return nil, apperrors.Wrap(err, "load chat session")
	}

	// Follow-up expansion against the last user query.
	lastUserQuery := ""
	if len(recent) > 0 {
		lastUserQuery = recent[len(recent)-1].UserQuery
	}
	effectiveQuery, expanded := ExpandFollowUp(query, lastUserQuery)

	// Memory distillation, session then patient-wide.
	memoryFacts := DistillMemory(recent, o.cfg.MaxMemoryFacts)
	var patientFacts []string
	if req.UsePatientHistory && task.PatientReference != nil && *task.PatientReference != "" {
		patientMsgs, err := o.repo.ListPatient(ctx, *task.PatientReference, historyWindow*4)
		if err != nil {
			o.logger.Warn("patient history unavailable", "error", err)
		} else {
			patientFacts = DistillMemory(patientMsgs, o.cfg.MaxMemoryFacts)
		}
	}

	specialty := effectiveSpecialty(req, user, task)

	normQuery := Normalize(effectiveQuery)
	domains := MatchDomains(normQuery, specialty)
	domainNames := DomainNames(domains)
	keywordHits := 0
	for _, d := range domains {
		keywordHits += d.Score
	}

	facts := ExtractFacts(effectiveQuery)

	toolMode := req.ToolMode
	if toolMode == "" {
		toolMode = ToolChat
	}
	conversationMode := req.ConversationMode
	if conversationMode == "" {
		conversationMode = ModeAuto
	}
	responseMode := ResolveResponseMode(conversationMode, toolMode, normQuery, keywordHits > 0, facts)
	facts = append(facts, "modo_respuesta:"+responseMode, "herramienta:"+toolMode)

	var endpoints []EndpointRecommendation
	if responseMode == ModeClinical {
		endpoints = SynthesizeEndpoints(normQuery, domainNames)
	}

	ranked := o.rankKnowledge(ctx, effectiveQuery, specialty, domainNames, maxSources)

	var webSources []WebSource
	if req.UseWebSources && o.web != nil {
		webSources = o.web.Search(ctx, effectiveQuery, 3)
	}

	pc := promptContext{
		Query:          effectiveQuery,
		ResponseMode:   responseMode,
		ToolMode:       toolMode,
		Specialty:      specialty,
		MatchedDomains: domainNames,
		Endpoints:      endpoints,
		MemoryFacts:    memoryFacts,
		PatientFacts:   patientFacts,
		RecentDialogue: recent,
		Knowledge:      ranked,
		WebSources:     webSources,
	}

	answer := ""
	answerSource := "fallback"
	if o.llm != nil {
		answer = o.llm.Answer(ctx, BuildSystemPrompt(responseMode), BuildUserPrompt(pc, o.cfg.LLMMaxInputTokens, o.cfg.LLMPromptMarginTokens))
		if answer != "" {
			answerSource = "llm"
		}
	}
	if answer == "" {
		answer = RenderFallback(pc)
	}

	persistedFacts := facts
	if req.PersistExtractedFacts != nil && !*req.PersistExtractedFacts {
		persistedFacts = nil
	}

	msg := &Message{
		ID:                   uuid.New(),
		CareTaskID:           task.ID,
		SessionID:            sessionID,
		ClinicianID:          req.ClinicianID,
		UserQuery:            query,
		AssistantAnswer:      answer,
		MatchedDomains:       domainNames,
		MatchedEndpoints:     EndpointNames(endpoints),
		KnowledgeSourcesUsed: knowledgeTitles(ranked),
		WebSourcesUsed:       webURLs(webSources),
		MemoryFactsUsed:      memoryFacts,
		PatientHistoryFacts:  patientFacts,
		ExtractedFacts:       persistedFacts,
		CreatedAt:            time.Now().UTC(),
	}

	trace := buildTrace(query, sessionID, specialty, conversationMode, toolMode, responseMode,
		expanded, keywordHits, len(recent), msg, answerSource)

	runID, err := o.persistRun(ctx, task, msg, responseMode, answerSource, expanded, start)
	if err != nil {
		return nil, err
	}
	if err := o.repo.Create(ctx, msg); err != nil {
		return nil, apperrors.Wrap(err, "persist chat message")
	}

	metrics.RecordChatMessage(responseMode, answerSource)
	o.bus.PublishAsync(events.NewEvent(events.TypeChatMessage, map[string]any{
		"care_task_id":  task.ID,
		"session_id":    sessionID,
		"response_mode": responseMode,
		"answer_source": answerSource,
	}))

	return &MessageResponse{Message: msg, AgentRunID: runID, Trace: trace}, nil
}

// effectiveSpecialty resolves the specialty the retrieval steps use, in
// priority order: authenticated user, explicit hint, care task, general.
func effectiveSpecialty(req MessageRequest, user *sharedauth.CurrentUser, task *caretask.CareTask) string {
	if req.UseAuthenticatedSpecialtyMode && user != nil && user.Specialty != "" {
		return strings.ToLower(user.Specialty)
	}
	if req.SpecialtyHint != "" {
		return strings.ToLower(req.SpecialtyHint)
	}
	if task.Specialty != "" {
		return strings.ToLower(task.Specialty)
	}
	return "general"
}

// rankKnowledge scores the validated catalog; when it yields nothing and
// validated sources are not required, the builtin snippets stand in.
func (o *Orchestrator) rankKnowledge(ctx context.Context, query, specialty string, domainNames []string, limit int) []knowledge.Ranked {
	queryTokens := knowledge.Tokenize(Normalize(query))

	sources, err := o.sources.ActiveSources(ctx, specialty)
	if err != nil {
		o.logger.Warn("knowledge catalog unavailable", "error", err)
		sources = nil
	}
	ranked := knowledge.Rank(sources, queryTokens, specialty, domainNames, limit)
	if len(ranked) == 0 && !o.cfg.RequireValidatedInternalSources {
		ranked = builtinSnippets(domainNames, limit)
	}
	return ranked
}

func (o *Orchestrator) persistRun(ctx context.Context, task *caretask.CareTask, msg *Message, responseMode, answerSource string, expanded bool, start time.Time) (uuid.UUID, error) {
	runInput := task.RunProjection()
	runInput["session_id"] = msg.SessionID
	runInput["query_chars"] = len(msg.UserQuery)

	run, err := o.runs.CreateRun(ctx, WorkflowName, runInput)
	if err != nil {
		return uuid.Nil, apperrors.Wrap(err, "create chat run")
	}

	latency := time.Since(start).Milliseconds()
	output := map[string]any{
		"response_mode":    responseMode,
		"answer_source":    answerSource,
		"matched_domains":  msg.MatchedDomains,
		"internal_sources": len(msg.KnowledgeSourcesUsed),
		"web_sources":      len(msg.WebSourcesUsed),
	}

	step := &agentrun.AgentStep{
		AgentRunID:    run.ID,
		StepOrder:     1,
		StepName:      "clinical_chat",
		Status:        agentrun.StatusCompleted,
		StepInput:     runInput,
		StepOutput:    output,
		Decision:      "answer_" + answerSource,
		FallbackUsed:  answerSource == "fallback",
		StepLatencyMS: latency,
	}
	if expanded {
		step.StepInput = cloneWith(runInput, "query_expanded", true)
	}
	if err := o.runs.CreateStep(ctx, step); err != nil {
		return uuid.Nil, apperrors.Wrap(err, "persist chat step")
	}
	if err := o.runs.FinalizeRun(ctx, run.ID, agentrun.StatusCompleted, output, nil, 0, latency); err != nil {
		return uuid.Nil, apperrors.Wrap(err, "finalize chat run")
	}
	return run.ID, nil
}

func buildTrace(query, sessionID, specialty, conversationMode, toolMode, responseMode string,
	expanded bool, keywordHits, historyUsed int, msg *Message, answerSource string) []string {
	return []string{
		fmt.Sprintf("query_chars=%d", len(query)),
		fmt.Sprintf("session_id=%s", sessionID),
		fmt.Sprintf("effective_specialty=%s", specialty),
		fmt.Sprintf("conversation_mode=%s", conversationMode),
		fmt.Sprintf("tool_mode=%s", toolMode),
		fmt.Sprintf("response_mode=%s", responseMode),
		fmt.Sprintf("query_expanded=%d", boolToInt(expanded)),
		fmt.Sprintf("keyword_hits=%d", keywordHits),
		fmt.Sprintf("history_messages=%d", historyUsed),
		fmt.Sprintf("matched_domains=%s", strings.Join(msg.MatchedDomains, ",")),
		fmt.Sprintf("matched_endpoints=%s", strings.Join(msg.MatchedEndpoints, ",")),
		fmt.Sprintf("internal_sources=%d", len(msg.KnowledgeSourcesUsed)),
		fmt.Sprintf("web_sources=%d", len(msg.WebSourcesUsed)),
		fmt.Sprintf("endpoint_recommendations=%d", len(msg.MatchedEndpoints)),
		fmt.Sprintf("memory_facts=%d", len(msg.MemoryFactsUsed)),
		fmt.Sprintf("patient_facts=%d", len(msg.PatientHistoryFacts)),
		fmt.Sprintf("extracted_facts=%d", len(msg.ExtractedFacts)),
		fmt.Sprintf("answer_source=%s", answerSource),
	}
}

func knowledgeTitles(ranked []knowledge.Ranked) []string {
	titles := make([]string, 0, len(ranked))
	for _, r := range ranked {
		titles = append(titles, r.Source.Title)
	}
	return titles
}

func webURLs(sources []WebSource) []string {
	urls := make([]string, 0, len(sources))
	for _, s := range sources {
		urls = append(urls, s.URL)
	}
	return urls
}

func cloneWith(m map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[key] = value
	return out
}
