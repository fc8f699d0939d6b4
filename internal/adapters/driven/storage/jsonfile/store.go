package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/ports/driven"
	"github.com/custodia-labs/webrage/internal/logger"
	"github.com/custodia-labs/webrage/internal/vectormath"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// DefaultFileName is the store file name inside the data directory.
const DefaultFileName = "vector_store.json"

// Store is a VectorStore held fully in memory and persisted to one JSON file.
// A single RWMutex serialises writers and gives searches a complete snapshot.
type Store struct {
	mu        sync.RWMutex
	path      string
	dimension int
	chunks    []domain.Chunk
	index     map[string]int
	noSync    bool
}

// Option configures a Store.
type Option func(*Store)

// WithDimension establishes the dimensionality of a new, empty store.
// Ignored when the file already records a dimension.
func WithDimension(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.dimension = n
		}
	}
}

// WithoutFsync skips fsync on writes. Intended for tests.
func WithoutFsync() Option {
	return func(s *Store) {
		s.noSync = true
	}
}

// Open loads the store at path, creating the file with a sentinel record if absent.
// If path is empty, defaults to ~/.webrage/vector_store.json.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		path = filepath.Join(home, ".webrage", DefaultFileName)
	}

	s := &Store{path: path, index: map[string]int{}}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Debug("Creating vector store at %s", path)
		if err := s.persist(s.dimension, nil); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat store file: %w", err)
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the store file path.
func (s *Store) Path() string {
	return s.path
}

// Append persists a chunk before returning.
func (s *Store) Append(ctx context.Context, chunk domain.Chunk) error {
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

	dim := s.dimension
	if dim == 0 {
		dim = len(chunk.Vector)
	}
	if len(chunk.Vector) != dim {
		return fmt.Errorf("chunk %s has %d dimensions, store has %d: %w",
			chunk.ID, len(chunk.Vector), dim, domain.ErrDimensionMismatch)
	}
	if _, exists := s.index[chunk.ID]; exists || chunk.ID == SentinelID {
		return fmt.Errorf("chunk %s: %w", chunk.ID, domain.ErrDuplicateID)
	}

	stored := chunk.Clone()
	stored.Metadata = meta

	next := make([]domain.Chunk, len(s.chunks), len(s.chunks)+1)
	copy(next, s.chunks)
	next = append(next, stored)

	if err := s.persist(dim, next); err != nil {
		return err
	}

	s.dimension = dim
	s.chunks = next
	s.index[stored.ID] = len(next) - 1
	return nil
}

// Search returns up to topK chunks by descending cosine similarity.
func (s *Store) Search(
	ctx context.Context, query []float32, topK int, filter domain.ChunkFilter,
) ([]domain.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dimension == 0 || len(s.chunks) == 0 {
		return []domain.ScoredChunk{}, nil
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("query has %d dimensions, store has %d: %w",
			len(query), s.dimension, domain.ErrDimensionMismatch)
	}

	return vectormath.Rank(s.chunks, query, topK, filter), nil
}

// Get returns a chunk by ID.
func (s *Store) Get(_ context.Context, id string) (domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return domain.Chunk{}, fmt.Errorf("chunk %s: %w", id, domain.ErrNotFound)
	}
	return s.chunks[i].Clone(), nil
}

// DeleteDocument removes every chunk of a document and rewrites the file.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]domain.Chunk, 0, len(s.chunks))
	for i := range s.chunks {
		if s.chunks[i].DocumentID != documentID {
			next = append(next, s.chunks[i])
		}
	}
	removed := len(s.chunks) - len(next)
	if removed == 0 {
		return 0, nil
	}

	if err := s.persist(s.dimension, next); err != nil {
		return 0, err
	}
	s.chunks = next
	s.reindex()
	return removed, nil
}

// Reload re-reads the store file.
func (s *Store) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Stats summarises the store.
func (s *Store) Stats(_ context.Context) (domain.StoreStats, error) {
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
		Path:      s.path,
		Backend:   string(domain.StoreBackendJSONFile),
	}, nil
}

// Dimension returns the established vector length.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// Close releases resources. The store holds no open handles.
func (s *Store) Close() error {
	return nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read store file: %w", err)
	}

	dim, chunks, err := decode(data)
	if err != nil {
		return fmt.Errorf("load %s: %w", s.path, err)
	}

	if dim == 0 && len(chunks) == 0 && s.dimension > 0 {
		dim = s.dimension
	}
	s.dimension = dim
	s.chunks = chunks
	s.reindex()

	logger.Debug("Loaded vector store %s: %d chunks, %d dimensions", s.path, len(chunks), dim)
	return nil
}

func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.chunks))
	for i := range s.chunks {
		s.index[s.chunks[i].ID] = i
	}
}

// persist atomically replaces the store file with the given contents.
func (s *Store) persist(dimension int, chunks []domain.Chunk) error {
	data, err := encode(dimension, chunks)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".vector_store-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if !s.noSync {
		if err := tmp.Sync(); err != nil {
			_ = tmp.Close()
			cleanup()
			return fmt.Errorf("sync temp file: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace store file: %w", err)
	}

	if !s.noSync {
		syncDir(dir)
	}
	return nil
}

// syncDir flushes the rename. Some platforms cannot fsync a directory.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
