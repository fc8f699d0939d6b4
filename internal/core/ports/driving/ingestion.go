package driving

import (
	"context"

	"github.com/custodia-labs/webrage/internal/core/domain"
)

// IngestionService turns extracted document text into stored chunks.
type IngestionService interface {
	// Ingest chunks, embeds and appends a document.
	// On partial failure the returned result still reports how many chunks
	// were written; those chunks remain stored and queryable.
	Ingest(ctx context.Context, documentID, text string, opts domain.IngestOptions) (domain.IngestResult, error)
}
