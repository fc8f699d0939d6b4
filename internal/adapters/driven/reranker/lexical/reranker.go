// Package lexical provides a model-free Reranker based on query term coverage.
// It is the default backend when no reranking service is configured.
package lexical

import (
	"context"

	"github.com/custodia-labs/webrage/internal/core/ports/driven"
	"github.com/custodia-labs/webrage/internal/postprocessors/terms"
)

// Ensure Reranker implements the interface.
var _ driven.Reranker = (*Reranker)(nil)

// ModelName is reported for this backend.
const ModelName = "lexical-coverage"

// Reranker scores a passage by the fraction of distinct query terms it contains.
type Reranker struct{}

// New creates a lexical reranker.
func New() *Reranker {
	return &Reranker{}
}

// Score returns one relevance in [0,1] per passage.
func (r *Reranker) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryTerms := terms.Extract(query)
	scores := make([]float64, len(passages))
	if len(queryTerms) == 0 {
		return scores, nil
	}

	for i, p := range passages {
		have := make(map[string]struct{})
		for _, t := range terms.Extract(p) {
			have[t] = struct{}{}
		}
		matched := 0
		for _, t := range queryTerms {
			if _, ok := have[t]; ok {
				matched++
			}
		}
		scores[i] = float64(matched) / float64(len(queryTerms))
	}
	return scores, nil
}

// ModelName returns the backend name.
func (r *Reranker) ModelName() string {
	return ModelName
}

// Ping always succeeds.
func (r *Reranker) Ping(context.Context) error {
	return nil
}
