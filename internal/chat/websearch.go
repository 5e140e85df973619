package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hospital-urgencias/clinops/internal/knowledge"
)

// WebSearcher queries a DuckDuckGo-style instant-answer endpoint and keeps
// only whitelisted hosts. Failures never surface to the caller: they
// degrade to an empty source list.
type WebSearcher struct {
	endpoint  string
	whitelist *knowledge.Whitelist
	client    *http.Client
	logger    *slog.Logger
}

// NewWebSearcher creates a web searcher with a hard timeout.
func NewWebSearcher(endpoint string, whitelist *knowledge.Whitelist, timeout time.Duration, logger *slog.Logger) *WebSearcher {
	return &WebSearcher{
		endpoint:  endpoint,
		whitelist: whitelist,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

type ddgResponse struct {
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	Heading       string `json:"Heading"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

// Search runs one GET against the search endpoint and filters the results
// through the whitelist.
func (s *WebSearcher) Search(ctx context.Context, query string, max int) []WebSource {
	if max < 1 {
		max = 2
	}

	reqURL := s.endpoint + "?q=" + url.QueryEscape(query) + "&format=json&no_html=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug("web search failed", "error", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var body ddgResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		s.logger.Debug("web search decode failed", "error", err)
		return nil
	}

	var sources []WebSource
	if body.AbstractURL != "" && s.whitelist.AllowsURL(body.AbstractURL) {
		title := body.Heading
		if title == "" {
			title = body.AbstractText
		}
		sources = append(sources, WebSource{Title: title, URL: body.AbstractURL})
	}
	for _, t := range body.RelatedTopics {
		if len(sources) >= max {
			break
		}
		if t.FirstURL != "" && s.whitelist.AllowsURL(t.FirstURL) {
			sources = append(sources, WebSource{Title: t.Text, URL: t.FirstURL})
		}
	}
	return sources
}
