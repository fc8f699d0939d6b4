package driving

import (
	"context"

	"github.com/custodia-labs/webrage/internal/core/domain"
)

// ResearchService runs multi-round deep research.
type ResearchService interface {
	// Research iterates reformulation and retrieval until the round bound or
	// the improvement cutoff is reached. Cancellation between rounds returns
	// the evidence gathered so far as a partial result.
	Research(ctx context.Context, prompt string, opts domain.ResearchOptions) (*domain.ResearchResult, error)
}
