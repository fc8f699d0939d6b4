package driven

import (
	"context"

	"github.com/custodia-labs/webrage/internal/core/domain"
)

// VectorStore is the durable, append-only collection of embedded chunks.
//
// Writes are serialised by the implementation: Append, DeleteDocument and
// Reload never interleave. Searches may run concurrently and always observe
// a complete snapshot.
type VectorStore interface {
	// Append persists a chunk before returning.
	// Fails with domain.ErrDimensionMismatch if the vector length disagrees with
	// the established dimensionality, and domain.ErrDuplicateID if the ID exists.
	// A failed append leaves the store unchanged.
	Append(ctx context.Context, chunk domain.Chunk) error

	// Search returns up to topK chunks by descending cosine similarity.
	// Ties break by ascending sequence index then ID. The filter, if non-nil,
	// is applied before ranking. Returns an empty slice when nothing matches.
	Search(ctx context.Context, query []float32, topK int, filter domain.ChunkFilter) ([]domain.ScoredChunk, error)

	// Get returns a chunk by ID, or domain.ErrNotFound.
	Get(ctx context.Context, id string) (domain.Chunk, error)

	// DeleteDocument logically removes every chunk of a document.
	// Returns the number of chunks removed.
	DeleteDocument(ctx context.Context, documentID string) (int, error)

	// Reload re-reads durable storage. Fails with domain.ErrCorruptStore on an
	// unrecognised schema version or a record missing required fields.
	Reload(ctx context.Context) error

	// Stats summarises the store.
	Stats(ctx context.Context) (domain.StoreStats, error)

	// Dimension returns the established vector length, or 0 if none yet.
	Dimension() int

	// Close releases resources.
	Close() error
}
