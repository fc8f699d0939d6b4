// Package ollama provides an embedding service adapter using Ollama.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "nomic-embed-text"
	DefaultTimeout = 30 * time.Second

	// DefaultBatchSize caps inputs per /api/embed call so a large ingest
	// does not hit the request timeout in one go.
	DefaultBatchSize = 64
)

// Config holds configuration for the Ollama embedding service.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the embedding model to use (default: nomic-embed-text).
	Model string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration

	// Dimensions is the expected vector size. Zero learns it from the first response.
	Dimensions int

	// BatchSize is the maximum number of inputs sent per request (default: 64).
	BatchSize int
}

// EmbeddingService generates embeddings using Ollama's /api/embed endpoint,
// which accepts a batch of inputs per request.
type EmbeddingService struct {
	client    *http.Client
	baseURL   string
	model     string
	batchSize int

	mu         sync.RWMutex
	dimensions int
}

// embedRequest is the Ollama API request format.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the Ollama API response format.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewEmbeddingService creates a new Ollama embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	return &EmbeddingService{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		batchSize:  cfg.BatchSize,
		dimensions: cfg.Dimensions,
	}
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in order, splitting them into requests of at most
// BatchSize inputs.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for batch := range slices.Chunk(texts, s.batchSize) {
		vectors, err := s.embed(ctx, batch)
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (s *EmbeddingService) embed(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(embedRequest{Model: s.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: send request: %v: %w", err, domain.ErrEmbeddingUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama: status %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(msg)), domain.ErrEmbeddingUnavailable)
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("ollama: decode response: %v: %w", err, domain.ErrEmbeddingUnavailable)
	}
	if len(decoded.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama: got %d embeddings for %d inputs: %w",
			len(decoded.Embeddings), len(texts), domain.ErrEmbeddingUnavailable)
	}

	if err := s.checkDimensions(decoded.Embeddings); err != nil {
		return nil, err
	}
	return decoded.Embeddings, nil
}

// checkDimensions learns the vector size on first use and enforces it afterwards.
func (s *EmbeddingService) checkDimensions(vectors [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("ollama: empty embedding for input %d: %w", i, domain.ErrEmbeddingUnavailable)
		}
		if s.dimensions == 0 {
			s.dimensions = len(v)
		}
		if len(v) != s.dimensions {
			return fmt.Errorf("ollama: embedding %d has %d dimensions, expected %d: %w",
				i, len(v), s.dimensions, domain.ErrDimensionMismatch)
		}
	}
	return nil
}

// Dimensions returns the embedding vector size, or 0 before the first embedding
// when it was not configured.
func (s *EmbeddingService) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping embeds a one-word probe. Besides proving the model is pulled, this
// fixes Dimensions before the vector store is opened.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	if _, err := s.embed(ctx, []string{"ping"}); err != nil {
		return fmt.Errorf("ollama: ping %s: %w", s.model, err)
	}
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
