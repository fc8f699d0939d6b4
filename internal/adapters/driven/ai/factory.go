// Package ai builds the driven adapters from settings and validates that the
// external services they depend on are reachable.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/webrage/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/webrage/internal/adapters/driven/embedding/openai"
	ollamallm "github.com/custodia-labs/webrage/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/webrage/internal/adapters/driven/llm/openai"
	apirerank "github.com/custodia-labs/webrage/internal/adapters/driven/reranker/api"
	"github.com/custodia-labs/webrage/internal/adapters/driven/reranker/lexical"
	openairerank "github.com/custodia-labs/webrage/internal/adapters/driven/reranker/openai"
	"github.com/custodia-labs/webrage/internal/adapters/driven/storage/jsonfile"
	"github.com/custodia-labs/webrage/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/webrage/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/webrage/internal/adapters/driven/websearch"
	"github.com/custodia-labs/webrage/internal/adapters/driven/websearch/duckduckgo"
	"github.com/custodia-labs/webrage/internal/adapters/driven/websearch/searxng"
	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/ports/driven"
	"github.com/custodia-labs/webrage/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitOptions controls Init.
type InitOptions struct {
	// Ephemeral keeps the vector store in memory regardless of settings.
	Ephemeral bool

	// SkipPing creates services without validating connectivity.
	SkipPing bool

	// PromptStore supplies the rerank instruction when settings leave it empty.
	PromptStore driven.PromptStore
}

// InitResult contains every driven adapter the services need.
type InitResult struct {
	Store            driven.VectorStore
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService
	Reranker         driven.Reranker
	WebSearcher      driven.WebSearcher
	Warnings         []string // Non-fatal issues that left a component degraded.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() error {
	var errs []error
	if r.EmbeddingService != nil {
		errs = append(errs, r.EmbeddingService.Close())
	}
	if r.LLMService != nil {
		errs = append(errs, r.LLMService.Close())
	}
	if r.Store != nil {
		errs = append(errs, r.Store.Close())
	}
	return errors.Join(errs...)
}

func (r *InitResult) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logger.Warn("%s", msg)
	r.Warnings = append(r.Warnings, msg)
}

// Init opens the vector store and creates the external services.
//
// A store that cannot be opened is fatal. A service that fails its ping is
// replaced by a stand-in that reports the startup failure on every call, so
// queries degrade and flag the component instead of waiting on timeouts.
func Init(ctx context.Context, settings *domain.AppSettings, opts InitOptions) (*InitResult, error) {
	logger.Section("Initialising adapters")

	store, err := OpenVectorStore(settings, opts.Ephemeral)
	if err != nil {
		return nil, err
	}
	result := &InitResult{Store: store}

	embedding, err := CreateEmbeddingService(&settings.Embedding)
	switch {
	case err != nil:
		result.warn("embedding: %v", err)
		result.EmbeddingService = unavailableEmbedding{err: fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)}
	case embedding == nil:
		result.warn("embedding: no provider configured, local retrieval disabled")
	case !opts.SkipPing:
		if perr := ping(ctx, embedding.Ping); perr != nil {
			_ = embedding.Close()
			result.warn("embedding: %s unreachable: %v", settings.Embedding.Provider, perr)
			result.EmbeddingService = unavailableEmbedding{
				model: settings.Embedding.Model,
				err:   fmt.Errorf("%w: %s unreachable at startup: %w", domain.ErrEmbeddingUnavailable, settings.Embedding.Provider, perr),
			}
		} else {
			result.EmbeddingService = embedding
		}
	default:
		result.EmbeddingService = embedding
	}

	llm, err := CreateAndValidateLLMService(ctx, &settings.LLM, opts.SkipPing)
	if err != nil {
		result.warn("llm: %v, reformulation falls back to evidence terms", err)
	}
	result.LLMService = llm

	reranker, err := CreateReranker(settings, opts.PromptStore)
	switch {
	case err != nil:
		result.warn("reranker: %v", err)
		result.Reranker = unavailableReranker{err: fmt.Errorf("%w: %w", domain.ErrRerankerUnavailable, err)}
	case reranker == nil:
		logger.Debug("Reranking disabled")
	case !opts.SkipPing:
		if perr := ping(ctx, reranker.Ping); perr != nil {
			result.warn("reranker: %s unreachable: %v", settings.Reranker.Backend, perr)
			result.Reranker = unavailableReranker{
				model: reranker.ModelName(),
				err:   fmt.Errorf("%w: %s unreachable at startup: %w", domain.ErrRerankerUnavailable, settings.Reranker.Backend, perr),
			}
		} else {
			result.Reranker = reranker
		}
	default:
		result.Reranker = reranker
	}

	searcher, err := CreateWebSearcher(settings)
	if err != nil {
		result.warn("web search: %v", err)
	}
	result.WebSearcher = searcher

	logger.Info("Adapters ready (store=%s embedding=%s llm=%s reranker=%s web=%s warnings=%d)",
		storeBackend(settings, opts.Ephemeral), componentName(result.EmbeddingService),
		componentName(result.LLMService), componentName(result.Reranker),
		componentName(result.WebSearcher), len(result.Warnings))

	return result, nil
}

// OpenVectorStore opens the configured vector store backend.
// Ephemeral forces the in-memory store.
func OpenVectorStore(settings *domain.AppSettings, ephemeral bool) (driven.VectorStore, error) {
	switch storeBackend(settings, ephemeral) {
	case domain.StoreBackendMemory:
		return memory.NewVectorStore(), nil

	case domain.StoreBackendSQLite:
		store, err := sqlite.Open(settings.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil

	case domain.StoreBackendJSONFile:
		var opts []jsonfile.Option
		if dims := domain.EmbeddingDimensions()[settings.Embedding.Model]; dims > 0 {
			opts = append(opts, jsonfile.WithDimension(dims))
		}
		store, err := jsonfile.Open(settings.Store.Path, opts...)
		if err != nil {
			return nil, fmt.Errorf("open json store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("%w: unsupported store backend: %s", domain.ErrInvalidInput, settings.Store.Backend)
	}
}

func storeBackend(settings *domain.AppSettings, ephemeral bool) domain.StoreBackend {
	if ephemeral {
		return domain.StoreBackendMemory
	}
	if settings.Store.Backend == "" {
		return domain.StoreBackendJSONFile
	}
	return settings.Store.Backend
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns nil without error if no provider is configured.
func CreateAndValidateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	if err := ping(ctx, svc.Ping); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}

	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and, unless skipPing is
// set, validates connectivity. Returns nil without error if no provider is configured.
func CreateAndValidateLLMService(ctx context.Context, settings *domain.LLMSettings, skipPing bool) (driven.LLMService, error) {
	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	if svc == nil || skipPing {
		return svc, nil
	}

	if err := ping(ctx, svc.Ping); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrLLMUnavailable, err)
	}

	return svc, nil
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || settings.Provider == domain.AIProviderNone || settings.Provider == "" {
		return nil, nil
	}
	if !settings.Provider.IsValid() {
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%s embedding provider is missing a model or credentials", settings.Provider)
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaEmbedding(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAIEmbedding(settings), nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || settings.Provider == domain.AIProviderNone || settings.Provider == "" {
		return nil, nil
	}
	if !settings.Provider.IsValid() {
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%s LLM provider is missing a model or credentials", settings.Provider)
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}

// CreateReranker creates the configured reranker. Returns nil when reranking is disabled.
// The instruction for chat rerankers comes from settings, then the prompt store.
func CreateReranker(settings *domain.AppSettings, prompts driven.PromptStore) (driven.Reranker, error) {
	rs := settings.Reranker

	switch rs.Backend {
	case domain.RerankerNone, "":
		return nil, nil

	case domain.RerankerLexical:
		return lexical.New(), nil

	case domain.RerankerAPI:
		r, err := apirerank.New(apirerank.Config{
			BaseURL:     rs.BaseURL,
			APIKey:      rs.APIKey,
			Model:       rs.Model,
			BatchSize:   rs.BatchSize,
			Concurrency: rs.Concurrency,
		})
		if err != nil {
			return nil, err
		}
		return r, nil

	case domain.RerankerOpenAI:
		instruction := rs.Instruction
		if instruction == "" && prompts != nil {
			if loaded, err := prompts.Load(driven.PromptRerankInstruction); err == nil {
				instruction = loaded
			}
		}
		return openairerank.New(openairerank.Config{
			APIKey:      rs.APIKey,
			BaseURL:     rs.BaseURL,
			Model:       rs.Model,
			Instruction: instruction,
			Concurrency: rs.Concurrency,
		}), nil

	default:
		return nil, fmt.Errorf("unsupported reranker backend: %s", rs.Backend)
	}
}

// CreateWebSearcher creates the configured web search backend behind a shared,
// rate limited HTTP client. Returns nil when web search is disabled.
func CreateWebSearcher(settings *domain.AppSettings) (driven.WebSearcher, error) {
	ws := settings.WebSearch
	if ws.Backend == domain.WebSearchNone || ws.Backend == "" {
		return nil, nil
	}

	maxRetries := ws.MaxRetries
	if maxRetries == 0 {
		maxRetries = -1
	}
	client := websearch.NewClient(websearch.ClientConfig{
		Timeout:    settings.Timeouts.WebSearch,
		MaxRetries: maxRetries,
		Limiter:    websearch.NewRateLimiter(ws.RequestsPerSecond, 1),
	})

	switch ws.Backend {
	case domain.WebSearchDuckDuckGo:
		return duckduckgo.New(duckduckgo.Config{
			Endpoint:   ws.BaseURL,
			Client:     client,
			FetchPages: ws.FetchPages,
		}), nil

	case domain.WebSearchSearXNG:
		s, err := searxng.New(searxng.Config{
			BaseURL:    ws.BaseURL,
			Client:     client,
			FetchPages: ws.FetchPages,
		})
		if err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unsupported web search backend: %s", ws.Backend)
	}
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: domain.EmbeddingDimensions()[settings.Model],
		BatchSize:  settings.BatchSize,
	})
}

// createOpenAIEmbedding creates an OpenAI embedding service.
func createOpenAIEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

func ping(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return fn(ctx)
}

type named interface{ ModelName() string }

func componentName(c any) string {
	switch v := c.(type) {
	case nil:
		return "none"
	case driven.WebSearcher:
		return v.Name()
	case named:
		return v.ModelName()
	default:
		return "on"
	}
}
