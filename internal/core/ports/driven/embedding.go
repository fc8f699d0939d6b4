// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// EmbeddingService generates vector embeddings from text.
// This is an optional service - when nil, local retrieval is disabled.
//
// Implementations may include:
//   - OpenAI and compatible servers (text-embedding-3-small)
//   - Ollama (nomic-embed-text, all-minilm)
//
// Implementations are blocking and are not assumed safe for unbounded
// concurrent use; callers batch through EmbedBatch.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one request.
	// The result is aligned with texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 768, 1536).
	// Returns 0 until the first embedding when the model size is unknown.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	// This is used at startup so cold-start failures surface before the first query.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
