package driven

import "context"

// Reranker scores (query, passage) pairs for relevance.
// This is an optional service - when nil, pre-rerank ordering is kept.
type Reranker interface {
	// Score returns one relevance per passage, aligned with passages, each in [0,1].
	// Scores read as "probability the passage is relevant to the query" and are
	// deterministic for a fixed query, passage and model.
	// Fails with domain.ErrRerankerUnavailable if the backend cannot be reached.
	// An empty passage list returns an empty slice without calling the backend.
	Score(ctx context.Context, query string, passages []string) ([]float64, error)

	// ModelName returns the scoring model name.
	ModelName() string

	// Ping validates the backend is reachable.
	Ping(ctx context.Context) error
}
