// Package vectormath holds the similarity and ranking rules shared by the
// vector store backends, so every backend orders results identically.
package vectormath

import (
	"math"
	"sort"

	"github.com/custodia-labs/webrage/internal/core/domain"
)

// Cosine returns dot(a,b) / (|a||b|). A zero-magnitude vector scores 0.
// Callers guarantee equal lengths.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Magnitude returns the Euclidean norm of v.
func Magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Less orders hits by descending similarity, then ascending sequence index, then ID.
func Less(a, b *domain.ScoredChunk) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	if a.Chunk.SequenceIndex != b.Chunk.SequenceIndex {
		return a.Chunk.SequenceIndex < b.Chunk.SequenceIndex
	}
	return a.Chunk.ID < b.Chunk.ID
}

// Rank scores every chunk accepted by filter against query and returns the
// topK best in deterministic order. Returned chunks are deep copies.
func Rank(chunks []domain.Chunk, query []float32, topK int, filter domain.ChunkFilter) []domain.ScoredChunk {
	if topK <= 0 {
		return []domain.ScoredChunk{}
	}

	hits := make([]domain.ScoredChunk, 0, len(chunks))
	for i := range chunks {
		if filter != nil && !filter(&chunks[i]) {
			continue
		}
		hits = append(hits, domain.ScoredChunk{
			Chunk:      chunks[i],
			Similarity: Cosine(query, chunks[i].Vector),
		})
	}

	sort.Slice(hits, func(i, j int) bool { return Less(&hits[i], &hits[j]) })

	if len(hits) > topK {
		hits = hits[:topK]
	}
	for i := range hits {
		hits[i].Chunk = hits[i].Chunk.Clone()
	}
	return hits
}
