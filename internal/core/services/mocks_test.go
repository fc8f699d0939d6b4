package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/ports/driven"
)

// --- Mock implementations ---

// testVocabulary gives the mock embedder one dimension per word.
var testVocabulary = []string{"paris", "capital", "france", "eiffel", "tower", "rome", "italy"}

// mockEmbedder implements driven.EmbeddingService with bag-of-words vectors.
// The last dimension is always 1 so no vector has zero magnitude.
type mockEmbedder struct {
	mu         sync.Mutex
	texts      []string
	batchCalls atomic.Int32

	// failOn makes any text containing the substring fail.
	failOn string
	err    error

	// dims overrides the vector length when set.
	dims int
}

func (m *mockEmbedder) vector(text string) []float32 {
	dims := len(testVocabulary) + 1
	if m.dims > 0 {
		dims = m.dims
	}
	v := make([]float32, dims)
	v[dims-1] = 1
	for _, w := range strings.Fields(strings.ToLower(text)) {
		for i, term := range testVocabulary {
			if i < dims-1 && strings.Trim(w, ".,?!") == term {
				v[i]++
			}
		}
	}
	return v
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.failOn != "" && strings.Contains(text, m.failOn) {
		return nil, errors.New("model crashed")
	}
	return m.vector(text), nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.batchCalls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if m.failOn != "" && strings.Contains(text, m.failOn) {
			return nil, errors.New("model crashed")
		}
		out[i] = m.vector(text)
	}
	m.mu.Lock()
	m.texts = append(m.texts, texts...)
	m.mu.Unlock()
	return out, nil
}

func (m *mockEmbedder) seen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

func (m *mockEmbedder) Dimensions() int {
	return len(testVocabulary) + 1
}

func (m *mockEmbedder) ModelName() string {
	return "mock-embed"
}

func (m *mockEmbedder) Ping(_ context.Context) error {
	return m.err
}

func (m *mockEmbedder) Close() error {
	return nil
}

// blockingEmbedder waits for its context, for timeout tests.
type blockingEmbedder struct {
	mockEmbedder
}

func (b *blockingEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// mockWebSearcher implements driven.WebSearcher.
type mockWebSearcher struct {
	results []domain.WebSnippet
	err     error
	calls   atomic.Int32

	mu      sync.Mutex
	queries []string
}

func (m *mockWebSearcher) Search(_ context.Context, query string, maxResults int) ([]domain.WebSnippet, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if maxResults < len(m.results) {
		return m.results[:maxResults], nil
	}
	return m.results, nil
}

func (m *mockWebSearcher) Name() string { return "mock" }

// mockReranker implements driven.Reranker with a scoring function.
type mockReranker struct {
	score func(query string, passages []string) ([]float64, error)
	calls atomic.Int32
}

func (m *mockReranker) Score(_ context.Context, query string, passages []string) ([]float64, error) {
	m.calls.Add(1)
	return m.score(query, passages)
}

func (m *mockReranker) ModelName() string {
	return "mock-rerank"
}

func (m *mockReranker) Ping(_ context.Context) error {
	return nil
}

// mockRetrieval implements driving.RetrievalService for research tests.
type mockRetrieval struct {
	fn func(query string) (*domain.RetrievalResult, error)

	mu      sync.Mutex
	queries []string
	ctxErrs []error
}

func (m *mockRetrieval) Retrieve(
	ctx context.Context, query string, _ domain.RetrieveOptions,
) (*domain.RetrievalResult, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	m.mu.Unlock()
	return m.fn(query)
}

func (m *mockRetrieval) asked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// mockReformulator implements Reformulator with canned rounds.
type mockReformulator struct {
	rounds [][]string
	calls  int
}

func (m *mockReformulator) Reformulate(
	_ context.Context, _ string, _ []domain.RerankedItem, _ []string, _ int,
) ([]string, error) {
	if m.calls >= len(m.rounds) {
		return nil, nil
	}
	out := m.rounds[m.calls]
	m.calls++
	return out, nil
}

// mockLLM implements driven.LLMService.
type mockLLM struct {
	answers []string
	err     error
	calls   int
	systems []string
	prompts []string
}

func (m *mockLLM) Generate(_ context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	m.systems = append(m.systems, opts.System)
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	answer := m.answers[m.calls%len(m.answers)]
	m.calls++
	return answer, nil
}

func (m *mockLLM) ModelName() string {
	return "mock-llm"
}

func (m *mockLLM) Ping(_ context.Context) error {
	return m.err
}

func (m *mockLLM) Close() error {
	return nil
}

// mockPromptStore implements driven.PromptStore.
type mockPromptStore struct {
	prompts map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	p, ok := m.prompts[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return p, nil
}

func (m *mockPromptStore) Reload() {}

// makeItems builds reranked items with the given relevances.
func makeItems(origin domain.Origin, refs []string, relevance ...float64) []domain.RerankedItem {
	out := make([]domain.RerankedItem, len(relevance))
	for i, r := range relevance {
		out[i] = domain.RerankedItem{
			SearchResult: domain.SearchResult{
				Content:   "passage about " + refs[i],
				Origin:    origin,
				SourceRef: refs[i],
				Position:  i,
			},
			Relevance: r,
		}
	}
	return out
}
