package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/ports/driven"
	"github.com/custodia-labs/webrage/internal/core/ports/driving"
	"github.com/custodia-labs/webrage/internal/logger"
	"github.com/custodia-labs/webrage/internal/postprocessors/chunker"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// DefaultEmbedBatchSize is used when IngestionConfig.BatchSize is unset.
const DefaultEmbedBatchSize = 16

// IngestionConfig tunes the write path.
type IngestionConfig struct {
	WindowSize     int
	Overlap        int
	DocumentPrefix string
	BatchSize      int

	// EmbedTimeout bounds each embedding call. Zero means no limit.
	EmbedTimeout time.Duration
}

// IngestionConfigFromSettings extracts the ingestion tuning from app settings.
func IngestionConfigFromSettings(s *domain.AppSettings) IngestionConfig {
	return IngestionConfig{
		WindowSize:     s.Chunker.WindowSize,
		Overlap:        s.Chunker.Overlap,
		DocumentPrefix: s.Embedding.DocumentPrefix,
		BatchSize:      s.Embedding.BatchSize,
		EmbedTimeout:   s.Timeouts.Embedding,
	}
}

// IngestionService turns documents into stored, searchable chunks.
// Documents are ingested one at a time so that replace-then-append cycles
// never interleave.
type IngestionService struct {
	store    driven.VectorStore
	embedder driven.EmbeddingService
	chunker  *chunker.Chunker
	cfg      IngestionConfig
	now      func() time.Time

	mu sync.Mutex
}

// NewIngestionService creates an ingestion service.
// Fails with domain.ErrInvalidWindowConfig for an unusable window/overlap pair.
// The embedder may be nil, in which case every ingestion fails with
// domain.ErrEmbeddingUnavailable.
func NewIngestionService(
	store driven.VectorStore,
	embedder driven.EmbeddingService,
	cfg IngestionConfig,
) (*IngestionService, error) {
	c, err := chunker.New(cfg.WindowSize, cfg.Overlap)
	if err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultEmbedBatchSize
	}
	return &IngestionService{
		store:    store,
		embedder: embedder,
		chunker:  c,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

// Ingest splits, embeds and stores a document.
//
// Chunks are appended in sequence order. If embedding or appending fails
// partway through, the chunks already appended stay in the store; the
// result reports how many were written alongside the first error.
//
//nolint:gocyclo // Linear pipeline with per-stage error handling.
func (s *IngestionService) Ingest(
	ctx context.Context, documentID, text string, opts domain.IngestOptions,
) (domain.IngestResult, error) {
	start := s.now()
	documentID = strings.TrimSpace(documentID)
	result := domain.IngestResult{DocumentID: documentID}

	if documentID == "" {
		return result, fmt.Errorf("document id is empty: %w", domain.ErrInvalidInput)
	}
	if s.embedder == nil {
		return result, fmt.Errorf("ingest %s: no embedding provider configured: %w",
			documentID, domain.ErrEmbeddingUnavailable)
	}

	base, err := domain.NormalizeMetadata(opts.Metadata)
	if err != nil {
		return result, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logger.Section("Ingestion")
	logger.Debug("Document: %s (replace=%t)", documentID, opts.Replace)

	if opts.Replace {
		removed, err := s.store.DeleteDocument(ctx, documentID)
		if err != nil {
			return result, fmt.Errorf("ingest %s: remove previous chunks: %w", documentID, err)
		}
		result.Removed = removed
		logger.Debug("Removed %d previous chunks", removed)
	}

	ingestedAt := start.UTC().Format(time.RFC3339Nano)
	batch := make([]domain.ChunkWindow, 0, s.cfg.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.writeBatch(ctx, documentID, batch, base, ingestedAt)
		result.Written += n
		batch = batch[:0]
		return err
	}

	for window := range s.chunker.Split(text) {
		result.Windows++
		batch = append(batch, window)
		if len(batch) < s.cfg.BatchSize {
			continue
		}
		if err := flush(); err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("ingest %s: %w", documentID, err)
		}
	}
	if err := flush(); err != nil {
		result.Duration = time.Since(start)
		return result, fmt.Errorf("ingest %s: %w", documentID, err)
	}

	result.Duration = time.Since(start)
	logger.Info("Ingested %s: %d chunks in %s", documentID, result.Written, result.Duration.Round(time.Millisecond))
	return result, nil
}

// writeBatch embeds and appends one batch, returning the number appended.
// When the batched call fails, chunks are embedded one by one so the write
// stops exactly at the first chunk that cannot be embedded.
func (s *IngestionService) writeBatch(
	ctx context.Context,
	documentID string,
	windows []domain.ChunkWindow,
	base map[string]any,
	ingestedAt string,
) (int, error) {
	texts := make([]string, len(windows))
	for i, w := range windows {
		texts[i] = s.cfg.DocumentPrefix + w.Text
	}

	vectors, err := s.embedBatch(ctx, texts)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		logger.Debug("Batch embedding of %d chunks failed, retrying one by one: %v", len(texts), err)
		vectors = nil
	}

	written := 0
	for i, w := range windows {
		var vector []float32
		if vectors != nil {
			vector = vectors[i]
		} else {
			vector, err = s.embedOne(ctx, texts[i])
			if err != nil {
				return written, fmt.Errorf("chunk %d: %w", w.SequenceIndex, err)
			}
		}

		chunk := domain.Chunk{
			ID:            chunker.ChunkID(documentID, w.SequenceIndex),
			DocumentID:    documentID,
			Text:          w.Text,
			SequenceIndex: w.SequenceIndex,
			Vector:        vector,
			Metadata:      chunkMetadata(base, documentID, w.SequenceIndex, ingestedAt),
		}
		if err := s.store.Append(ctx, chunk); err != nil {
			return written, fmt.Errorf("chunk %d: %w", w.SequenceIndex, err)
		}
		written++
	}
	return written, nil
}

func (s *IngestionService) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	callCtx, cancel := withTimeout(ctx, s.cfg.EmbedTimeout)
	defer cancel()

	vectors, err := s.embedder.EmbedBatch(callCtx, texts)
	if err != nil {
		return nil, asUnavailable(ctx, err, domain.ErrEmbeddingUnavailable)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedded %d of %d texts: %w", len(vectors), len(texts), domain.ErrEmbeddingUnavailable)
	}
	return vectors, nil
}

func (s *IngestionService) embedOne(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := withTimeout(ctx, s.cfg.EmbedTimeout)
	defer cancel()

	vector, err := s.embedder.Embed(callCtx, text)
	if err != nil {
		return nil, asUnavailable(ctx, err, domain.ErrEmbeddingUnavailable)
	}
	return vector, nil
}

func chunkMetadata(base map[string]any, documentID string, seq int, ingestedAt string) map[string]any {
	meta := make(map[string]any, len(base)+3)
	for k, v := range base {
		meta[k] = v
	}
	meta[domain.MetaDocumentID] = documentID
	meta[domain.MetaSequenceIndex] = float64(seq)
	meta[domain.MetaIngestedAt] = ingestedAt
	return meta
}

// withTimeout bounds a single external call. A non-positive timeout only
// inherits the parent's deadline.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// asUnavailable tags a failed external call with its unavailable kind.
// A timeout of the call itself counts as unavailability; cancellation of
// the parent context is returned unchanged.
func asUnavailable(parent context.Context, err error, kind error) error {
	if err == nil {
		return nil
	}
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%v: %w", err, kind)
}
