// Package searxng provides a WebSearcher over a SearXNG instance's JSON API.
package searxng

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/webrage/internal/adapters/driven/websearch"
	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/ports/driven"
)

// Ensure Searcher implements the interface.
var _ driven.WebSearcher = (*Searcher)(nil)

// Config holds configuration for the SearXNG searcher.
type Config struct {
	// BaseURL is the instance root, e.g. http://localhost:8888. Required.
	BaseURL string

	// Client is the shared HTTP client.
	Client *websearch.Client

	// FetchPages replaces snippets with the visible text of each result page.
	FetchPages bool

	// FetchConcurrency bounds parallel page fetches.
	FetchConcurrency int
}

// Searcher queries the /search endpoint with format=json.
type Searcher struct {
	baseURL          string
	client           *websearch.Client
	fetchPages       bool
	fetchConcurrency int
}

type searchResponse struct {
	Results *[]searchResult `json:"results"`
}

type searchResult struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	PublishedDate string `json:"publishedDate"`
}

// New creates a SearXNG searcher.
func New(cfg Config) (*Searcher, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("searxng base_url is required: %w", domain.ErrInvalidInput)
	}
	if cfg.Client == nil {
		cfg.Client = websearch.NewClient(websearch.ClientConfig{})
	}
	return &Searcher{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		client:           cfg.Client,
		fetchPages:       cfg.FetchPages,
		fetchConcurrency: cfg.FetchConcurrency,
	}, nil
}

// Name returns the backend name.
func (s *Searcher) Name() string {
	return "searxng"
}

// Search returns up to maxResults snippets in upstream order.
func (s *Searcher) Search(ctx context.Context, query string, maxResults int) ([]domain.WebSnippet, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("searxng: empty query: %w", domain.ErrInvalidInput)
	}
	if maxResults <= 0 {
		return []domain.WebSnippet{}, nil
	}

	params := url.Values{"q": {query}, "format": {"json"}}
	resp, err := s.client.Get(ctx, s.baseURL+"/search?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("searxng: %v: %w", err, domain.ErrWebSearchUnavailable)
	}

	var parsed searchResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("searxng: decode response: %v: %w", err, domain.ErrWebSearchUnavailable)
	}
	if parsed.Results == nil {
		return nil, fmt.Errorf("searxng: response has no results field: %w", domain.ErrWebSearchUnavailable)
	}

	seen := websearch.Dedup{}
	snippets := make([]domain.WebSnippet, 0, maxResults)
	for _, r := range *parsed.Results {
		link := websearch.CleanLink(r.URL)
		if link == "" || !seen.Add(link) {
			continue
		}
		snippet := domain.WebSnippet{
			Title:   strings.TrimSpace(r.Title),
			URL:     link,
			Content: strings.TrimSpace(r.Content),
		}
		if t, ok := parseDate(r.PublishedDate); ok {
			snippet.PublishedAt = &t
		}
		snippets = append(snippets, snippet)
		if len(snippets) == maxResults {
			break
		}
	}

	if s.fetchPages && len(snippets) > 0 {
		if err := websearch.FetchPages(ctx, s.client, snippets, s.fetchConcurrency); err != nil {
			return nil, fmt.Errorf("searxng: fetch pages: %v: %w", err, domain.ErrWebSearchUnavailable)
		}
	}

	return snippets, nil
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
