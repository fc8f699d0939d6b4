package ai

import (
	"context"

	"github.com/custodia-labs/webrage/internal/core/ports/driven"
)

var (
	_ driven.EmbeddingService = unavailableEmbedding{}
	_ driven.Reranker         = unavailableReranker{}
)

// unavailableEmbedding stands in for an embedding service that failed
// initialisation. Every call returns the startup error.
type unavailableEmbedding struct {
	model string
	err   error
}

func (u unavailableEmbedding) Embed(context.Context, string) ([]float32, error) {
	return nil, u.err
}

func (u unavailableEmbedding) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, u.err
}

func (u unavailableEmbedding) Dimensions() int { return 0 }

func (u unavailableEmbedding) ModelName() string { return u.model }

func (u unavailableEmbedding) Ping(context.Context) error { return u.err }

func (u unavailableEmbedding) Close() error { return nil }

// unavailableReranker stands in for a reranker that failed initialisation.
type unavailableReranker struct {
	model string
	err   error
}

func (u unavailableReranker) Score(_ context.Context, _ string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return []float64{}, nil
	}
	return nil, u.err
}

func (u unavailableReranker) ModelName() string { return u.model }

func (u unavailableReranker) Ping(context.Context) error { return u.err }
