package driven

import (
	"context"

	"github.com/custodia-labs/webrage/internal/core/domain"
)

// WebSearcher wraps an external web search API.
// This is an optional service - when nil, retrieval is local only.
type WebSearcher interface {
	// Search returns up to maxResults snippets in upstream ranking order.
	// Every upstream failure (timeout, authentication, rate limit, malformed
	// response) is reported as domain.ErrWebSearchUnavailable.
	Search(ctx context.Context, query string, maxResults int) ([]domain.WebSnippet, error)

	// Name identifies the backend in logs and diagnostics.
	Name() string
}
