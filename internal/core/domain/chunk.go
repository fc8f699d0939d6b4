package domain

import (
	"fmt"
	"time"
)

// Metadata keys written by the ingestion pipeline.
const (
	MetaDocumentID    = "document_id"
	MetaSequenceIndex = "sequence_index"
	MetaIngestedAt    = "ingested_at"
	MetaSourcePath    = "source_path"
	MetaPage          = "page"
)

// Chunk is an immutable unit of indexed text with its embedding.
type Chunk struct {
	// ID is a stable unique identifier.
	ID string `json:"id"`

	// DocumentID is the document the chunk was split from.
	DocumentID string `json:"document_id"`

	// Text is the chunk content. Never empty.
	Text string `json:"text"`

	// SequenceIndex is the position within the source document.
	SequenceIndex int `json:"sequence_index"`

	// Vector is the embedding. Its length is fixed per store.
	Vector []float32 `json:"vector"`

	// Metadata holds scalar values such as page, source path and ingestion time.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Validate checks the fields every stored chunk must carry.
func (c *Chunk) Validate() error {
	switch {
	case c.ID == "":
		return errorf(ErrInvalidInput, "chunk id is empty")
	case c.DocumentID == "":
		return errorf(ErrInvalidInput, "chunk %s has no document id", c.ID)
	case c.Text == "":
		return errorf(ErrInvalidInput, "chunk %s has empty text", c.ID)
	case len(c.Vector) == 0:
		return errorf(ErrInvalidInput, "chunk %s has no vector", c.ID)
	case c.SequenceIndex < 0:
		return errorf(ErrInvalidInput, "chunk %s has negative sequence index", c.ID)
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (c Chunk) Clone() Chunk {
	out := c
	out.Vector = append([]float32(nil), c.Vector...)
	if c.Metadata != nil {
		out.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// ChunkWindow is a chunker output: chunk text before it has an ID or vector.
type ChunkWindow struct {
	SequenceIndex int
	Text          string

	// TokenStart and TokenEnd are the half-open token range of the window.
	TokenStart int
	TokenEnd   int
}

// ChunkFilter restricts vector search candidates. A nil filter matches everything.
type ChunkFilter func(c *Chunk) bool

// MetadataEquals matches chunks whose metadata[key] equals value.
func MetadataEquals(key string, value any) ChunkFilter {
	return func(c *Chunk) bool {
		v, ok := c.Metadata[key]
		return ok && v == value
	}
}

// DocumentIn matches chunks belonging to any of the given documents.
func DocumentIn(ids ...string) ChunkFilter {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(c *Chunk) bool {
		_, ok := set[c.DocumentID]
		return ok
	}
}

// ScoredChunk is a vector store hit.
type ScoredChunk struct {
	Chunk      Chunk
	Similarity float64
}

// StoreStats summarises the contents of a vector store.
type StoreStats struct {
	Chunks    int
	Documents int
	Dimension int
	Path      string
	Backend   string
}

// IngestOptions controls a single ingestion.
type IngestOptions struct {
	// Replace removes chunks previously stored for the document first.
	Replace bool

	// Metadata is merged into every chunk of the document.
	Metadata map[string]any
}

// IngestResult reports how much of a document reached the store.
type IngestResult struct {
	DocumentID string
	Windows    int
	Written    int
	Removed    int
	Duration   time.Duration
}

// NormalizeMetadata converts metadata to the scalar forms that survive a
// JSON round trip: numbers become float64, times become RFC 3339 strings.
// Non-scalar values are rejected with ErrInvalidInput.
func NormalizeMetadata(m map[string]any) (map[string]any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch x := v.(type) {
		case nil, string, bool, float64:
			out[k] = x
		case float32:
			out[k] = float64(x)
		case int:
			out[k] = float64(x)
		case int32:
			out[k] = float64(x)
		case int64:
			out[k] = float64(x)
		case uint:
			out[k] = float64(x)
		case uint32:
			out[k] = float64(x)
		case uint64:
			out[k] = float64(x)
		case time.Time:
			out[k] = x.UTC().Format(time.RFC3339Nano)
		case fmt.Stringer:
			out[k] = x.String()
		default:
			return nil, errorf(ErrInvalidInput, "metadata %q has non-scalar type %T", k, v)
		}
	}
	return out, nil
}
