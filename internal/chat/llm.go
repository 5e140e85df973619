package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hospital-urgencias/clinops/internal/knowledge"
	"github.com/hospital-urgencias/clinops/internal/shared/config"
)

// LLMClient talks to a local ollama-style chat endpoint. Any failure
// returns an empty answer so the caller falls through to the rendered
// fallback.
type LLMClient struct {
	cfg    config.ChatConfig
	client *http.Client
	logger *slog.Logger
}

// NewLLMClient creates the chat LLM client.
func NewLLMClient(cfg config.ChatConfig, logger *slog.Logger) *LLMClient {
	return &LLMClient{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.LLMTimeoutSeconds) * time.Second},
		logger: logger,
	}
}

type llmChatRequest struct {
	Model    string         `json:"model"`
	Messages []llmMessage   `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options"`
}

type llmMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type llmChatResponse struct {
	Message llmMessage `json:"message"`
}

// Answer sends the prompts and returns the assistant text, or empty on any
// failure.
func (c *LLMClient) Answer(ctx context.Context, systemPrompt, userPrompt string) string {
	payload := llmChatRequest{
		Model: c.cfg.LLMModel,
		Messages: []llmMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream: false,
		Options: map[string]any{
			"num_ctx":     c.cfg.LLMNumCtx,
			"num_predict": c.cfg.LLMMaxOutputTokens,
			"temperature": c.cfg.LLMTemperature,
			"top_p":       c.cfg.LLMTopP,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.LLMBaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return ""
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("llm call failed", "error", err)
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var out llmChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ""
	}
	return strings.TrimSpace(out.Message.Content)
}

// BuildSystemPrompt is the response-mode-aware instruction header.
func BuildSystemPrompt(responseMode string) string {
	if responseMode == ModeClinical {
		return "Eres un asistente de soporte operativo para urgencias hospitalarias. " +
			"Responde en espanol, con acciones operativas concretas y prudentes. " +
			"Nunca das diagnosticos definitivos: toda recomendacion requiere validacion humana."
	}
	return "Eres un asistente conversacional del servicio de urgencias. " +
		"Responde en espanol, breve y claro, sin inventar fuentes."
}

// promptContext carries everything the user prompt enumerates.
type promptContext struct {
	Query          string
	ResponseMode   string
	ToolMode       string
	Specialty      string
	MatchedDomains []string
	Endpoints      []EndpointRecommendation
	MemoryFacts    []string
	PatientFacts   []string
	RecentDialogue []Message
	Knowledge      []knowledge.Ranked
	WebSources     []WebSource
}

// BuildUserPrompt serializes the consultation context as compact sections
// and truncates to the configured input-token budget.
func BuildUserPrompt(pc promptContext, maxInputTokens, marginTokens int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Consulta: %s\n", pc.Query)
	fmt.Fprintf(&b, "Modo: %s | Herramienta: %s | Especialidad: %s\n", pc.ResponseMode, pc.ToolMode, pc.Specialty)
	if len(pc.MatchedDomains) > 0 {
		fmt.Fprintf(&b, "Dominios: %s\n", strings.Join(pc.MatchedDomains, ", "))
	}
	if len(pc.MemoryFacts) > 0 {
		fmt.Fprintf(&b, "Memoria de sesion: %s\n", strings.Join(pc.MemoryFacts, "; "))
	}
	if len(pc.PatientFacts) > 0 {
		fmt.Fprintf(&b, "Contexto longitudinal: %s\n", strings.Join(pc.PatientFacts, "; "))
	}

	dialogue := pc.RecentDialogue
	if len(dialogue) > 5 {
		dialogue = dialogue[len(dialogue)-5:]
	}
	for _, m := range dialogue {
		fmt.Fprintf(&b, "Profesional: %s\nAsistente: %s\n", m.UserQuery, m.AssistantAnswer)
	}

	for _, r := range pc.Endpoints {
		data, err := json.Marshal(r.Output)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "Recomendacion %s: %s\n", r.Endpoint, data)
	}
	for _, k := range pc.Knowledge {
		fmt.Fprintf(&b, "Evidencia interna [%s]: %s\n", k.Source.Title, k.Source.Summary)
	}
	for _, w := range pc.WebSources {
		fmt.Fprintf(&b, "Fuente externa: %s (%s)\n", w.Title, w.URL)
	}

	return truncateToTokenBudget(b.String(), maxInputTokens-marginTokens)
}

// truncateToTokenBudget bounds the prompt with the rough 4-chars-per-token
// estimate local models use.
func truncateToTokenBudget(text string, tokens int) string {
	if tokens < 1 {
		return ""
	}
	maxChars := tokens * 4
	if len(text) <= maxChars {
		return text
	}
	return text[:maxChars]
}
