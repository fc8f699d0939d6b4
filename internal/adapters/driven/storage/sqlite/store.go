package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/webrage/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/ports/driven"
	"github.com/custodia-labs/webrage/internal/logger"
	"github.com/custodia-labs/webrage/internal/vectormath"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// SchemaVersion is the store_meta schema version this package understands.
const SchemaVersion = 1

// SentinelID marks the placeholder row present in every store.
const SentinelID = "__sentinel__"

// DefaultFileName is the database file name inside the data directory.
const DefaultFileName = "vector_store.db"

// Store is a VectorStore persisted in SQLite and searched in memory.
type Store struct {
	mu        sync.RWMutex
	db        *sql.DB
	path      string
	dimension int
	chunks    []domain.Chunk
	index     map[string]int
}

// Open opens or creates the database at path and loads every chunk.
// If path is empty, defaults to ~/.webrage/vector_store.db.
func Open(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".webrage", DefaultFileName)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps the single-writer discipline inside SQLite too.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, index: map[string]int{}}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	if err := s.Reload(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Append inserts a chunk in a transaction and updates the in-memory snapshot on commit.
func (s *Store) Append(ctx context.Context, chunk domain.Chunk) error {
	if err := chunk.Validate(); err != nil {
		return err
	}
	meta, err := domain.NormalizeMetadata(chunk.Metadata)
	if err != nil {
		return err
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if s.dimension == 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE store_meta SET value = ? WHERE key = 'dimension'`, strconv.Itoa(dim)); err != nil {
			return fmt.Errorf("recording dimension: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chunks (id, document_id, sequence_index, text, vector, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
	`, chunk.ID, chunk.DocumentID, chunk.SequenceIndex, chunk.Text,
		float32SliceToBytes(chunk.Vector), string(metaJSON)); err != nil {
		return fmt.Errorf("inserting chunk: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunk: %w", err)
	}

	stored := chunk.Clone()
	stored.Metadata = meta
	s.dimension = dim
	s.chunks = append(s.chunks, stored)
	s.index[stored.ID] = len(s.chunks) - 1
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

// DeleteDocument removes every chunk of a document.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE document_id = ? AND id != ?`, documentID, SentinelID)
	if err != nil {
		return 0, fmt.Errorf("deleting document: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted rows: %w", err)
	}
	if removed == 0 {
		return 0, nil
	}

	kept := s.chunks[:0:0]
	for i := range s.chunks {
		if s.chunks[i].DocumentID != documentID {
			kept = append(kept, s.chunks[i])
		}
	}
	s.chunks = kept
	s.reindex()
	return int(removed), nil
}

// Reload re-reads every chunk from the database.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dim, err := s.readMeta(ctx)
	if err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, sequence_index, text, vector, metadata
		FROM chunks ORDER BY seq
	`)
	if err != nil {
		return fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	sentinel := false
	for rows.Next() {
		var c domain.Chunk
		var blob []byte
		var metaJSON sql.NullString
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.SequenceIndex, &c.Text, &blob, &metaJSON); err != nil {
			return fmt.Errorf("scanning chunk: %v: %w", err, domain.ErrCorruptStore)
		}
		if c.ID == SentinelID {
			sentinel = true
			continue
		}
		if c.DocumentID == "" || c.Text == "" {
			return fmt.Errorf("chunk %q missing required fields: %w", c.ID, domain.ErrCorruptStore)
		}
		if len(blob) == 0 || len(blob) != dim*4 {
			return fmt.Errorf("chunk %q vector is %d bytes, store has %d dimensions: %w",
				c.ID, len(blob), dim, domain.ErrCorruptStore)
		}
		c.Vector = bytesToFloat32Slice(blob)
		if metaJSON.Valid && metaJSON.String != "" && metaJSON.String != "null" {
			if err := json.Unmarshal([]byte(metaJSON.String), &c.Metadata); err != nil {
				return fmt.Errorf("chunk %q metadata: %v: %w", c.ID, err, domain.ErrCorruptStore)
			}
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating chunks: %w", err)
	}
	if !sentinel {
		return fmt.Errorf("sentinel row missing: %w", domain.ErrCorruptStore)
	}

	s.dimension = dim
	s.chunks = chunks
	s.reindex()
	logger.Debug("Loaded sqlite vector store %s: %d chunks, %d dimensions", s.path, len(chunks), dim)
	return nil
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
		Backend:   string(domain.StoreBackendSQLite),
	}, nil
}

// Dimension returns the established vector length.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.chunks))
	for i := range s.chunks {
		s.index[s.chunks[i].ID] = i
	}
}

// readMeta validates the schema version and returns the dimension.
func (s *Store) readMeta(ctx context.Context) (int, error) {
	meta := map[string]string{}
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM store_meta`)
	if err != nil {
		return 0, fmt.Errorf("reading store_meta: %v: %w", err, domain.ErrCorruptStore)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return 0, fmt.Errorf("scanning store_meta: %v: %w", err, domain.ErrCorruptStore)
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating store_meta: %w", err)
	}

	version, err := strconv.Atoi(meta["schema_version"])
	if err != nil || version != SchemaVersion {
		return 0, fmt.Errorf("unrecognised schema_version %q: %w", meta["schema_version"], domain.ErrCorruptStore)
	}
	dim, err := strconv.Atoi(meta["dimension"])
	if err != nil || dim < 0 {
		return 0, fmt.Errorf("invalid dimension %q: %w", meta["dimension"], domain.ErrCorruptStore)
	}
	return dim, nil
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_vector_store.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
