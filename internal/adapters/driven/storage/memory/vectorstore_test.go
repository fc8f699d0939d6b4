package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/webrage/internal/core/domain"
)

func chunk(id, doc string, seq int, vec ...float32) domain.Chunk {
	return domain.Chunk{ID: id, DocumentID: doc, Text: id, SequenceIndex: seq, Vector: vec}
}

func TestVectorStore_AppendAndSearch(t *testing.T) {
	ctx := context.Background()
	s := NewVectorStore()

	require.NoError(t, s.Append(ctx, chunk("a", "doc1", 0, 1, 0)))
	require.NoError(t, s.Append(ctx, chunk("b", "doc1", 1, 0, 1)))
	require.NoError(t, s.Append(ctx, chunk("c", "doc2", 0, 1, 1)))

	hits, err := s.Search(ctx, []float32{1, 0}, 2, nil)

	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].Chunk.ID)
	assert.Equal(t, "c", hits[1].Chunk.ID)
	assert.Equal(t, 2, s.Dimension())
}

func TestVectorStore_EmptySearch(t *testing.T) {
	hits, err := NewVectorStore().Search(context.Background(), []float32{1, 2, 3}, 5, nil)

	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestVectorStore_Rejections(t *testing.T) {
	ctx := context.Background()
	s := NewVectorStore()
	require.NoError(t, s.Append(ctx, chunk("a", "doc1", 0, 1, 0)))

	err := s.Append(ctx, chunk("b", "doc1", 1, 1, 0, 0))
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	err = s.Append(ctx, chunk("a", "doc1", 2, 0, 1))
	assert.ErrorIs(t, err, domain.ErrDuplicateID)

	_, err = s.Search(ctx, []float32{1}, 1, nil)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Chunks)
}

func TestVectorStore_DeleteDocumentAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewVectorStore()
	require.NoError(t, s.Append(ctx, chunk("a", "doc1", 0, 1, 0)))
	require.NoError(t, s.Append(ctx, chunk("b", "doc2", 0, 0, 1)))
	require.NoError(t, s.Append(ctx, chunk("c", "doc1", 1, 1, 1)))

	removed, err := s.DeleteDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := s.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "doc2", got.DocumentID)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StoreStats{Chunks: 1, Documents: 1, Dimension: 2, Path: ":memory:", Backend: "memory"}, stats)
}

func TestVectorStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewVectorStore()
	require.NoError(t, s.Append(ctx, chunk("a", "doc1", 0, 1, 0)))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	got.Vector[0] = 99

	again, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, float32(1), again.Vector[0])
}
