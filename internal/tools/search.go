package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"findoc-backend/internal/llm"
)

const (
	defaultSearchEndpoint = "https://api.duckduckgo.com/"
	maxSearchResults      = 5
)

// Search queries the DuckDuckGo Instant Answer API.
type Search struct {
	Endpoint   string
	HTTPClient *http.Client
}

// NewSearch returns a Search with a bounded HTTP timeout.
func NewSearch(endpoint string) *Search {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = defaultSearchEndpoint
	}
	return &Search{Endpoint: endpoint, HTTPClient: &http.Client{Timeout: 15 * time.Second}}
}

func (s *Search) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        WebSearch,
		Description: "Search the web for market context, company news or definitions. Input is the search query.",
	}
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	Heading       string     `json:"Heading"`
	AbstractText  string     `json:"AbstractText"`
	AbstractURL   string     `json:"AbstractURL"`
	Answer        string     `json:"Answer"`
	Definition    string     `json:"Definition"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

func (s *Search) Run(ctx context.Context, env Env, input string) (string, error) {
	q := strings.TrimSpace(input)
	if q == "" {
		return "", fmt.Errorf("web_search: empty query")
	}

	u, err := url.Parse(s.Endpoint)
	if err != nil {
		return "", fmt.Errorf("web_search endpoint: %w", err)
	}
	params := u.Query()
	params.Set("q", q)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("web_search request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("web_search http status %d", resp.StatusCode)
	}

	var parsed ddgResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("web_search decode: %w", err)
	}
	return formatResults(parsed), nil
}

func formatResults(r ddgResponse) string {
	var lines []string
	if r.Answer != "" {
		lines = append(lines, "Answer: "+r.Answer)
	}
	if r.AbstractText != "" {
		line := r.AbstractText
		if r.AbstractURL != "" {
			line += " (" + r.AbstractURL + ")"
		}
		lines = append(lines, line)
	}
	if r.Definition != "" {
		lines = append(lines, "Definition: "+r.Definition)
	}
	for _, t := range flatten(r.RelatedTopics) {
		if len(lines) >= maxSearchResults {
			break
		}
		lines = append(lines, fmt.Sprintf("- %s (%s)", t.Text, t.FirstURL))
	}
	if len(lines) == 0 {
		return "No results found."
	}
	return strings.Join(lines, "\n")
}

func flatten(topics []ddgTopic) []ddgTopic {
	var out []ddgTopic
	for _, t := range topics {
		if t.Text != "" {
			out = append(out, t)
		}
		out = append(out, flatten(t.Topics)...)
	}
	return out
}
