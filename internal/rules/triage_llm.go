package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// HybridConfidenceThreshold is the minimum LLM confidence accepted in hybrid
// mode before falling back to the rule evaluator.
const HybridConfidenceThreshold = 0.7

// TriageLLMClient asks a local chat-completion endpoint for a triage
// suggestion. Any failure returns nil; hybrid mode then uses the rules.
type TriageLLMClient struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

// NewTriageLLMClient builds a client with a hard timeout.
func NewTriageLLMClient(baseURL, model string, timeout time.Duration, logger *slog.Logger) *TriageLLMClient {
	return &TriageLLMClient{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type llmTriageRequest struct {
	Model    string           `json:"model"`
	Messages []llmChatMessage `json:"messages"`
	Stream   bool             `json:"stream"`
	Format   string           `json:"format"`
}

type llmChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type llmTriageResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

type llmTriageSuggestion struct {
	Priority   string  `json:"priority"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Suggest returns an LLM triage result or nil when the call fails or the
// answer is unusable.
func (c *TriageLLMClient) Suggest(ctx context.Context, in TriageInput) *TriageResult {
	prompt := fmt.Sprintf(
		"Clasifica operativamente este motivo de consulta de urgencias. "+
			"Responde solo JSON {\"priority\":low|medium|high|critical,\"category\":string,\"confidence\":0..1,\"reason\":string}. "+
			"Titulo: %s. Descripcion: %s.", in.Title, in.Description)

	body, err := json.Marshal(llmTriageRequest{
		Model:    c.model,
		Messages: []llmChatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Format:   "json",
	})
	if err != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("triage llm unavailable", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("triage llm non-200", "status", resp.StatusCode)
		return nil
	}

	var decoded llmTriageResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil
	}

	var suggestion llmTriageSuggestion
	if err := json.Unmarshal([]byte(decoded.Message.Content), &suggestion); err != nil {
		return nil
	}
	if !validPriority(suggestion.Priority) || suggestion.Confidence <= 0 || suggestion.Confidence > 1 {
		return nil
	}

	category := suggestion.Category
	if category == "" {
		category = "general"
	}
	return &TriageResult{
		Priority:                suggestion.Priority,
		Category:                category,
		Confidence:              suggestion.Confidence,
		Source:                  SourceLLM,
		Reason:                  suggestion.Reason,
		RecommendedActions:      triageActions(suggestion.Priority),
		HumanValidationRequired: true,
	}
}

// HybridTriage tries the LLM first and falls back to the rule evaluator when
// the LLM returns nothing or its confidence is below the threshold. On
// fallback the source is rewritten to rules_fallback.
func HybridTriage(ctx context.Context, llm *TriageLLMClient, in TriageInput) TriageResult {
	if llm != nil {
		if suggestion := llm.Suggest(ctx, in); suggestion != nil && suggestion.Confidence >= HybridConfidenceThreshold {
			return *suggestion
		}
	}
	res := EvaluateTriage(in)
	res.Source = SourceRulesFallback
	return res
}

func validPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}
