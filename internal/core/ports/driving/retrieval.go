package driving

import (
	"context"

	"github.com/custodia-labs/webrage/internal/core/domain"
)

// RetrievalService provides hybrid retrieval to external actors.
type RetrievalService interface {
	// Retrieve returns ranked evidence for a query from the requested sources.
	// Dependency failures degrade the result and are flagged in its diagnostics.
	Retrieve(ctx context.Context, query string, opts domain.RetrieveOptions) (*domain.RetrievalResult, error)
}
