// Package openai provides an embedding service adapter for the OpenAI API
// and servers that speak its protocol (vLLM, llama.cpp, LM Studio).
package openai

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel   = "text-embedding-3-small"
	DefaultTimeout = 60 * time.Second
)

// Model dimensions for OpenAI embedding models.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config holds configuration for the OpenAI embedding service.
type Config struct {
	// APIKey is the OpenAI API key. Optional for local compatible servers.
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	BaseURL string

	// Model is the embedding model to use (default: text-embedding-3-small).
	Model string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration

	// Dimensions requests a shortened vector from text-embedding-3-* models.
	Dimensions int
}

// EmbeddingService generates embeddings using the OpenAI embeddings endpoint.
type EmbeddingService struct {
	client    *openai.Client
	model     string
	requested int

	mu         sync.RWMutex
	dimensions int
}

// NewEmbeddingService creates a new OpenAI embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	dims := cfg.Dimensions
	if dims == 0 {
		dims = modelDimensions[cfg.Model]
	}

	return &EmbeddingService{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		requested:  cfg.Dimensions,
		dimensions: dims,
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

// EmbedBatch generates embeddings for multiple texts in one request.
// Results are re-ordered by the index the API reports.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(s.model),
		Input:      texts,
		Dimensions: s.requested,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: create embeddings: %v: %w", err, domain.ErrEmbeddingUnavailable)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai: got %d embeddings for %d inputs: %w",
			len(resp.Data), len(texts), domain.ErrEmbeddingUnavailable)
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, datum := range data {
		if len(datum.Embedding) == 0 {
			return nil, fmt.Errorf("openai: empty embedding for input %d: %w", i, domain.ErrEmbeddingUnavailable)
		}
		if s.dimensions == 0 {
			s.dimensions = len(datum.Embedding)
		}
		if len(datum.Embedding) != s.dimensions {
			return nil, fmt.Errorf("openai: embedding %d has %d dimensions, expected %d: %w",
				i, len(datum.Embedding), s.dimensions, domain.ErrDimensionMismatch)
		}
		vectors[i] = datum.Embedding
	}
	return vectors, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping validates the API key and connectivity by listing models.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	if _, err := s.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openai: ping failed: %v: %w", err, domain.ErrEmbeddingUnavailable)
	}
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
