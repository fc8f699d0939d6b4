// Package duckduckgo provides a WebSearcher over DuckDuckGo's HTML endpoint.
package duckduckgo

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/custodia-labs/webrage/internal/adapters/driven/websearch"
	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/ports/driven"
)

// Ensure Searcher implements the interface.
var _ driven.WebSearcher = (*Searcher)(nil)

// DefaultEndpoint is the JavaScript-free results page.
const DefaultEndpoint = "https://html.duckduckgo.com/html/"

// Config holds configuration for the DuckDuckGo searcher.
type Config struct {
	// Endpoint overrides DefaultEndpoint.
	Endpoint string

	// Client is the shared HTTP client. Required.
	Client *websearch.Client

	// FetchPages replaces snippets with the visible text of each result page.
	FetchPages bool

	// FetchConcurrency bounds parallel page fetches.
	FetchConcurrency int
}

// Searcher queries DuckDuckGo and parses the result page.
type Searcher struct {
	endpoint         string
	client           *websearch.Client
	fetchPages       bool
	fetchConcurrency int
}

// New creates a DuckDuckGo searcher.
func New(cfg Config) *Searcher {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Client == nil {
		cfg.Client = websearch.NewClient(websearch.ClientConfig{})
	}
	return &Searcher{
		endpoint:         cfg.Endpoint,
		client:           cfg.Client,
		fetchPages:       cfg.FetchPages,
		fetchConcurrency: cfg.FetchConcurrency,
	}
}

// Name returns the backend name.
func (s *Searcher) Name() string {
	return "duckduckgo"
}

// Search returns up to maxResults snippets in result page order.
func (s *Searcher) Search(ctx context.Context, query string, maxResults int) ([]domain.WebSnippet, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("duckduckgo: empty query: %w", domain.ErrInvalidInput)
	}
	if maxResults <= 0 {
		return []domain.WebSnippet{}, nil
	}

	form := url.Values{"q": {query}}
	resp, err := s.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: %v: %w", err, domain.ErrWebSearchUnavailable)
	}

	snippets, err := parseResults(resp.Body, maxResults)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: %v: %w", err, domain.ErrWebSearchUnavailable)
	}

	if s.fetchPages && len(snippets) > 0 {
		if err := websearch.FetchPages(ctx, s.client, snippets, s.fetchConcurrency); err != nil {
			return nil, fmt.Errorf("duckduckgo: fetch pages: %v: %w", err, domain.ErrWebSearchUnavailable)
		}
	}

	return snippets, nil
}

// parseResults extracts result anchors and their snippets. A page without a
// results container is treated as a malformed (often rate-limit) response.
func parseResults(body []byte, maxResults int) ([]domain.WebSnippet, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var (
		snippets   = make([]domain.WebSnippet, 0, maxResults)
		seen       = websearch.Dedup{}
		sawResults bool
		current    = -1
	)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			cls := attr(n, "class")
			switch {
			case hasClass(cls, "results") || hasClass(cls, "no-results"):
				sawResults = true
			case hasClass(cls, "result--ad"):
				return
			case n.Data == "a" && hasClass(cls, "result__a"):
				sawResults = true
				current = -1
				link := websearch.CleanLink(websearch.UnwrapRedirect(attr(n, "href")))
				if link == "" || !seen.Add(link) {
					return
				}
				snippets = append(snippets, domain.WebSnippet{
					Title: websearch.NodeText(n),
					URL:   link,
				})
				current = len(snippets) - 1
				return
			case hasClass(cls, "result__snippet"):
				if current >= 0 && snippets[current].Content == "" {
					snippets[current].Content = websearch.NodeText(n)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	if !sawResults {
		return nil, fmt.Errorf("no results container in response")
	}

	// The snippet follows its anchor, so trim only after the walk.
	if len(snippets) > maxResults {
		snippets = snippets[:maxResults]
	}
	return snippets, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(classAttr, class string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == class {
			return true
		}
	}
	return false
}
