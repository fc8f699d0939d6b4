package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/ports/driven"
	"github.com/custodia-labs/webrage/internal/vectormath"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an in-memory implementation of driven.VectorStore.
// Nothing is persisted; Reload is a no-op.
type VectorStore struct {
	mu        sync.RWMutex
	dimension int
	chunks    []domain.Chunk
	index     map[string]int
}

// NewVectorStore creates a new in-memory vector store.
func NewVectorStore() *VectorStore {
	return &VectorStore{
		index: make(map[string]int),
	}
}

// Append stores a chunk.
func (s *VectorStore) Append(ctx context.Context, chunk domain.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chunk.Validate(); err != nil {
		return err
	}
	meta, err := domain.NormalizeMetadata(chunk.Metadata)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension != 0 && len(chunk.Vector) != s.dimension {
		return fmt.Errorf("chunk %s has %d dimensions, store has %d: %w",
			chunk.ID, len(chunk.Vector), s.dimension, domain.ErrDimensionMismatch)
	}
	if _, exists := s.index[chunk.ID]; exists {
		return fmt.Errorf("chunk %s: %w", chunk.ID, domain.ErrDuplicateID)
	}

	stored := chunk.Clone()
	stored.Metadata = meta
	s.dimension = len(stored.Vector)
	s.chunks = append(s.chunks, stored)
	s.index[stored.ID] = len(s.chunks) - 1
	return nil
}

// Search returns up to topK chunks by descending cosine similarity.
func (s *VectorStore) Search(
	ctx context.Context, query []float32, topK int, filter domain.ChunkFilter,
) ([]domain.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dimension == 0 {
		return []domain.ScoredChunk{}, nil
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("query has %d dimensions, store has %d: %w",
			len(query), s.dimension, domain.ErrDimensionMismatch)
	}
	return vectormath.Rank(s.chunks, query, topK, filter), nil
}

// Get retrieves a chunk by ID.
func (s *VectorStore) Get(_ context.Context, id string) (domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return domain.Chunk{}, fmt.Errorf("chunk %s: %w", id, domain.ErrNotFound)
	}
	return s.chunks[i].Clone(), nil
}

// DeleteDocument removes a document's chunks.
func (s *VectorStore) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.chunks[:0:0]
	for i := range s.chunks {
		if s.chunks[i].DocumentID != documentID {
			kept = append(kept, s.chunks[i])
		}
	}
	removed := len(s.chunks) - len(kept)
	s.chunks = kept
	s.index = make(map[string]int, len(kept))
	for i := range kept {
		s.index[kept[i].ID] = i
	}
	return removed, nil
}

// Reload is a no-op for the memory store.
func (s *VectorStore) Reload(ctx context.Context) error {
	return ctx.Err()
}

// Stats summarises the store.
func (s *VectorStore) Stats(_ context.Context) (domain.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make(map[string]struct{})
	for i := range s.chunks {
		docs[s.chunks[i].DocumentID] = struct{}{}
	}
	return domain.StoreStats{
		Chunks:    len(s.chunks),
		Documents: len(docs),
		Dimension: s.dimension,
		Path:      ":memory:",
		Backend:   string(domain.StoreBackendMemory),
	}, nil
}

// Dimension returns the established vector length.
func (s *VectorStore) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// Close releases resources.
func (s *VectorStore) Close() error {
	return nil
}
