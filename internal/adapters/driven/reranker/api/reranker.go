// Package api provides a Reranker that calls a /rerank HTTP endpoint.
//
// Two response shapes are accepted: the Cohere/Jina style object
// {"results":[{"index":0,"relevance_score":0.9}]} and the bare array
// [{"index":0,"score":0.9}] returned by text-embeddings-inference.
// Anything else is treated as an unavailable backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/webrage/internal/adapters/driven/reranker"
	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/ports/driven"
)

// Ensure Reranker implements the interface.
var _ driven.Reranker = (*Reranker)(nil)

// Default configuration values.
const (
	DefaultModel   = "bge-reranker-v2-m3"
	DefaultTimeout = 2 * time.Minute
)

// Config holds configuration for the HTTP reranker.
type Config struct {
	// BaseURL is the service root; requests go to BaseURL + "/rerank". Required.
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Model is the reranking model name.
	Model string

	// Timeout is the per-request timeout (default: 2m).
	Timeout time.Duration

	// BatchSize is the number of passages per request.
	BatchSize int

	// Concurrency bounds the number of requests in flight.
	Concurrency int
}

// Reranker scores passages through a rerank API.
type Reranker struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	model       string
	batchSize   int
	concurrency int
}

// rerankRequest is the API request format.
type rerankRequest struct {
	Model           string   `json:"model,omitempty"`
	Query           string   `json:"query"`
	Documents       []string `json:"documents"`
	Texts           []string `json:"texts"`
	TopN            int      `json:"top_n"`
	ReturnDocuments bool     `json:"return_documents"`
}

// rerankResult is one scored document in either response shape.
type rerankResult struct {
	Index          *int     `json:"index"`
	RelevanceScore *float64 `json:"relevance_score"`
	Score          *float64 `json:"score"`
}

// rerankResponse is the object response shape.
type rerankResponse struct {
	Results []rerankResult `json:"results"`
}

// New creates an HTTP reranker.
func New(cfg Config) (*Reranker, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("rerank base_url is required: %w", domain.ErrInvalidInput)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Reranker{
		client:      &http.Client{Timeout: cfg.Timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
	}, nil
}

// Score returns one clamped relevance per passage.
func (r *Reranker) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	scores, err := reranker.ScoreBatches(ctx, passages, r.batchSize, r.concurrency, func(ctx context.Context, batch []string) ([]float64, error) {
		return r.scoreBatch(ctx, query, batch)
	})
	if err != nil {
		return nil, fmt.Errorf("rerank: %v: %w", err, domain.ErrRerankerUnavailable)
	}
	return scores, nil
}

func (r *Reranker) scoreBatch(ctx context.Context, query string, batch []string) ([]float64, error) {
	body, err := json.Marshal(rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: batch,
		Texts:     batch,
		TopN:      len(batch),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	return parseScores(data, len(batch))
}

// parseScores normalises either response shape into scores aligned by index.
// Missing or out-of-range indices fail closed.
func parseScores(data []byte, n int) ([]float64, error) {
	var results []rerankResult
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &results); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	default:
		var obj rerankResponse
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		results = obj.Results
	}

	scores := make([]float64, n)
	seen := make([]bool, n)
	for _, res := range results {
		if res.Index == nil || *res.Index < 0 || *res.Index >= n {
			return nil, fmt.Errorf("result has invalid index")
		}
		var v *float64
		switch {
		case res.RelevanceScore != nil:
			v = res.RelevanceScore
		case res.Score != nil:
			v = res.Score
		default:
			return nil, fmt.Errorf("result %d has no score", *res.Index)
		}
		scores[*res.Index] = reranker.Clamp(*v)
		seen[*res.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("no score for document %d", i)
		}
	}
	return scores, nil
}

// ModelName returns the reranking model name.
func (r *Reranker) ModelName() string {
	return r.model
}

// Ping scores a trivial pair to confirm the endpoint answers in a known shape.
func (r *Reranker) Ping(ctx context.Context) error {
	_, err := r.Score(ctx, "ping", []string{"pong"})
	return err
}
