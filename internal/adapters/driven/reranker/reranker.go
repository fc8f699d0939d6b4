// Package reranker holds the pieces shared by the relevance scoring backends:
// score clamping, the instruction prompt, and bounded parallel batching.
package reranker

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

// Default batching values.
const (
	DefaultBatchSize   = 16
	DefaultConcurrency = 4
)

// Clamp maps any raw score into [0,1]. NaN becomes 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// YesProbability is softmax([no, yes])[yes] for the two log-probabilities.
// A missing side is passed as math.Inf(-1).
func YesProbability(yesLogProb, noLogProb float64) float64 {
	if math.IsInf(yesLogProb, -1) && math.IsInf(noLogProb, -1) {
		return 0
	}
	m := math.Max(yesLogProb, noLogProb)
	y := math.Exp(yesLogProb - m)
	n := math.Exp(noLogProb - m)
	return Clamp(y / (y + n))
}

// FormatPair renders a query/passage pair for instruction-following rerankers.
func FormatPair(instruction, query, passage string) string {
	return fmt.Sprintf("<Instruct>: %s\n<Query>: %s\n<Document>: %s", instruction, query, passage)
}

// BatchFunc scores one batch. The result must align with passages.
type BatchFunc func(ctx context.Context, passages []string) ([]float64, error)

// ScoreBatches splits passages into batches of batchSize, scores up to
// concurrency batches at a time, and reassembles the aligned, clamped scores.
// The first batch error cancels the rest and is returned.
func ScoreBatches(ctx context.Context, passages []string, batchSize, concurrency int, fn BatchFunc) ([]float64, error) {
	if len(passages) == 0 {
		return []float64{}, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	scores := make([]float64, len(passages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for start := 0; start < len(passages); start += batchSize {
		end := min(start+batchSize, len(passages))
		g.Go(func() error {
			got, err := fn(gctx, passages[start:end])
			if err != nil {
				return err
			}
			if len(got) != end-start {
				return fmt.Errorf("batch [%d:%d] returned %d scores", start, end, len(got))
			}
			for i, v := range got {
				scores[start+i] = Clamp(v)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}
