package services

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/ports/driven"
	"github.com/custodia-labs/webrage/internal/core/ports/driving"
	"github.com/custodia-labs/webrage/internal/logger"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyStoreBackend        = "store.backend"
	keyStorePath           = "store.path"
	keyChunkWindow         = "chunker.window_size"
	keyChunkOverlap        = "chunker.overlap"
	keyEmbedProvider       = "embedding.provider"
	keyEmbedModel          = "embedding.model"
	keyEmbedBaseURL        = "embedding.base_url"
	keyEmbedAPIKey         = "embedding.api_key"
	keyEmbedQueryPrefix    = "embedding.query_prefix"
	keyEmbedDocumentPrefix = "embedding.document_prefix"
	keyEmbedBatchSize      = "embedding.batch_size"
	keyLLMProvider         = "llm.provider"
	keyLLMModel            = "llm.model"
	keyLLMBaseURL          = "llm.base_url"
	keyLLMAPIKey           = "llm.api_key"
	keyLLMTemperature      = "llm.temperature"
	keyRerankBackend       = "reranker.backend"
	keyRerankModel         = "reranker.model"
	keyRerankBaseURL       = "reranker.base_url"
	keyRerankAPIKey        = "reranker.api_key"
	keyRerankInstruction   = "reranker.instruction"
	keyRerankBatchSize     = "reranker.batch_size"
	keyRerankConcurrency   = "reranker.concurrency"
	keyWebBackend          = "websearch.backend"
	keyWebBaseURL          = "websearch.base_url"
	keyWebRPS              = "websearch.requests_per_second"
	keyWebMaxRetries       = "websearch.max_retries"
	keyWebFetchPages       = "websearch.fetch_pages"
	keyRetrievalMode       = "retrieval.mode"
	keyRetrievalTopK       = "retrieval.top_k"
	keyRetrievalOversample = "retrieval.local_oversample"
	keyRetrievalWebResults = "retrieval.web_results"
	keyResearchMaxRounds   = "research.max_rounds"
	keyResearchMinImprove  = "research.min_improvement"
	keyResearchReformulate = "research.reformulations"
	keyResearchConcurrency = "research.concurrency"
	keyTimeoutEmbedding    = "timeouts.embedding"
	keyTimeoutWebSearch    = "timeouts.websearch"
	keyTimeoutReranker     = "timeouts.reranker"
	keyTimeoutLLM          = "timeouts.llm"
	envOpenAIAPIKey        = "OPENAI_API_KEY"
	envEmbeddingAPIKey     = "WEBRAGE_EMBEDDING_API_KEY"
	envLLMAPIKey           = "WEBRAGE_LLM_API_KEY"
	envRerankerAPIKey      = "WEBRAGE_RERANKER_API_KEY"
	envWebSearchBaseURL    = "WEBRAGE_SEARXNG_URL"
	envOllamaHost          = "OLLAMA_HOST"
	defaultOllamaURL       = "http://localhost:11434"
)

// valueKind describes how a setting is parsed from a string.
type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
	kindDuration
)

// settingKinds lists every key Set accepts.
var settingKinds = map[string]valueKind{
	keyStoreBackend:        kindString,
	keyStorePath:           kindString,
	keyChunkWindow:         kindInt,
	keyChunkOverlap:        kindInt,
	keyEmbedProvider:       kindString,
	keyEmbedModel:          kindString,
	keyEmbedBaseURL:        kindString,
	keyEmbedAPIKey:         kindString,
	keyEmbedQueryPrefix:    kindString,
	keyEmbedDocumentPrefix: kindString,
	keyEmbedBatchSize:      kindInt,
	keyLLMProvider:         kindString,
	keyLLMModel:            kindString,
	keyLLMBaseURL:          kindString,
	keyLLMAPIKey:           kindString,
	keyLLMTemperature:      kindFloat,
	keyRerankBackend:       kindString,
	keyRerankModel:         kindString,
	keyRerankBaseURL:       kindString,
	keyRerankAPIKey:        kindString,
	keyRerankInstruction:   kindString,
	keyRerankBatchSize:     kindInt,
	keyRerankConcurrency:   kindInt,
	keyWebBackend:          kindString,
	keyWebBaseURL:          kindString,
	keyWebRPS:              kindFloat,
	keyWebMaxRetries:       kindInt,
	keyWebFetchPages:       kindBool,
	keyRetrievalMode:       kindString,
	keyRetrievalTopK:       kindInt,
	keyRetrievalOversample: kindInt,
	keyRetrievalWebResults: kindInt,
	keyResearchMaxRounds:   kindInt,
	keyResearchMinImprove:  kindFloat,
	keyResearchReformulate: kindInt,
	keyResearchConcurrency: kindInt,
	keyTimeoutEmbedding:    kindDuration,
	keyTimeoutWebSearch:    kindDuration,
	keyTimeoutReranker:     kindDuration,
	keyTimeoutLLM:          kindDuration,
}

// SettingsService maps the dotted keys of the config store onto AppSettings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Keys returns every recognised setting key, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get retrieves current application settings.
// Unset or unrecognised values take their defaults; API keys fall back to
// the environment.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	embedProvider := getEnum(s, keyEmbedProvider, d.Embedding.Provider, domain.AIProvider.IsValid)
	llmProvider := getEnum(s, keyLLMProvider, d.LLM.Provider, domain.AIProvider.IsValid)

	settings := &domain.AppSettings{
		Store: domain.StoreSettings{
			Backend: getEnum(s, keyStoreBackend, d.Store.Backend, domain.StoreBackend.IsValid),
			Path:    s.configStore.GetString(keyStorePath),
		},
		Chunker: domain.ChunkerSettings{
			WindowSize: s.getInt(keyChunkWindow, d.Chunker.WindowSize),
			Overlap:    s.getInt(keyChunkOverlap, d.Chunker.Overlap),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:       embedProvider,
			Model:          s.getString(keyEmbedModel, defaultModel(domain.DefaultEmbeddingModels(), embedProvider, d.Embedding.Model)),
			BaseURL:        s.getString(keyEmbedBaseURL, defaultBaseURL(embedProvider)),
			APIKey:         s.getSecret(keyEmbedAPIKey, envEmbeddingAPIKey, embedProvider),
			QueryPrefix:    s.getRawString(keyEmbedQueryPrefix, d.Embedding.QueryPrefix),
			DocumentPrefix: s.getRawString(keyEmbedDocumentPrefix, d.Embedding.DocumentPrefix),
			BatchSize:      s.getInt(keyEmbedBatchSize, d.Embedding.BatchSize),
		},
		LLM: domain.LLMSettings{
			Provider:    llmProvider,
			Model:       s.getString(keyLLMModel, defaultModel(domain.DefaultLLMModels(), llmProvider, d.LLM.Model)),
			BaseURL:     s.getString(keyLLMBaseURL, defaultBaseURL(llmProvider)),
			APIKey:      s.getSecret(keyLLMAPIKey, envLLMAPIKey, llmProvider),
			Temperature: s.getFloat(keyLLMTemperature, d.LLM.Temperature),
		},
		Reranker: domain.RerankerSettings{
			Backend:     getEnum(s, keyRerankBackend, d.Reranker.Backend, domain.RerankerBackend.IsValid),
			Model:       s.configStore.GetString(keyRerankModel),
			BaseURL:     s.configStore.GetString(keyRerankBaseURL),
			APIKey:      s.getString(keyRerankAPIKey, s.envFirst(envRerankerAPIKey, envOpenAIAPIKey)),
			Instruction: s.getString(keyRerankInstruction, d.Reranker.Instruction),
			BatchSize:   s.getInt(keyRerankBatchSize, d.Reranker.BatchSize),
			Concurrency: s.getInt(keyRerankConcurrency, d.Reranker.Concurrency),
		},
		WebSearch: domain.WebSearchSettings{
			Backend:           getEnum(s, keyWebBackend, d.WebSearch.Backend, domain.WebSearchBackend.IsValid),
			BaseURL:           s.getString(keyWebBaseURL, os.Getenv(envWebSearchBaseURL)),
			RequestsPerSecond: s.getFloat(keyWebRPS, d.WebSearch.RequestsPerSecond),
			MaxRetries:        s.getInt(keyWebMaxRetries, d.WebSearch.MaxRetries),
			FetchPages:        s.getBool(keyWebFetchPages, d.WebSearch.FetchPages),
		},
		Retrieval: domain.RetrievalSettings{
			Mode:            getEnum(s, keyRetrievalMode, d.Retrieval.Mode, domain.RetrievalMode.IsValid),
			TopK:            s.getInt(keyRetrievalTopK, d.Retrieval.TopK),
			LocalOversample: s.getInt(keyRetrievalOversample, d.Retrieval.LocalOversample),
			WebResults:      s.getInt(keyRetrievalWebResults, d.Retrieval.WebResults),
		},
		Research: domain.ResearchSettings{
			MaxRounds:      s.getInt(keyResearchMaxRounds, d.Research.MaxRounds),
			MinImprovement: s.getFloat(keyResearchMinImprove, d.Research.MinImprovement),
			Reformulations: s.getInt(keyResearchReformulate, d.Research.Reformulations),
			Concurrency:    s.getInt(keyResearchConcurrency, d.Research.Concurrency),
		},
		Timeouts: domain.TimeoutSettings{
			Embedding: s.getDuration(keyTimeoutEmbedding, d.Timeouts.Embedding),
			WebSearch: s.getDuration(keyTimeoutWebSearch, d.Timeouts.WebSearch),
			Reranker:  s.getDuration(keyTimeoutReranker, d.Timeouts.Reranker),
			LLM:       s.getDuration(keyTimeoutLLM, d.Timeouts.LLM),
		},
	}

	return settings, nil
}

// Set parses value according to the key's type, validates the resulting
// settings, and persists the key.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return fmt.Errorf("unknown setting %q: %w", key, domain.ErrInvalidInput)
	}

	typed, err := parseValue(kind, value)
	if err != nil {
		return fmt.Errorf("setting %s: %v: %w", key, err, domain.ErrInvalidInput)
	}

	current, err := s.Get()
	if err != nil {
		return err
	}
	if err := validateKey(key, typed, current); err != nil {
		return err
	}

	if err := s.configStore.Set(key, typed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Validate checks the current settings are consistent and usable.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if settings.Chunker.WindowSize <= 0 || settings.Chunker.Overlap < 0 || settings.Chunker.Overlap >= settings.Chunker.WindowSize {
		return fmt.Errorf("window_size=%d overlap=%d: %w",
			settings.Chunker.WindowSize, settings.Chunker.Overlap, domain.ErrInvalidWindowConfig)
	}
	if settings.Reranker.Backend == domain.RerankerAPI && settings.Reranker.BaseURL == "" {
		add("reranker backend %q requires reranker.base_url", domain.RerankerAPI)
	}
	if settings.WebSearch.Backend == domain.WebSearchSearXNG && settings.WebSearch.BaseURL == "" {
		add("websearch backend %q requires websearch.base_url", domain.WebSearchSearXNG)
	}
	if settings.Retrieval.Mode.IncludesLocal() && !settings.Embedding.IsConfigured() {
		add("retrieval mode %q requires an embedding provider", settings.Retrieval.Mode)
	}
	if settings.Retrieval.TopK < 1 {
		add("retrieval.top_k must be at least 1")
	}
	if settings.Research.MaxRounds < 1 {
		add("research.max_rounds must be at least 1")
	}
	if settings.Research.MinImprovement < 0 {
		add("research.min_improvement must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s: %w", strings.Join(problems, "; "), domain.ErrInvalidInput)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// validateKey rejects values that can never form valid settings.
//
//nolint:gocyclo // Flat switch over keys.
func validateKey(key string, value any, current *domain.AppSettings) error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("setting %s: %s: %w", key, fmt.Sprintf(format, args...), domain.ErrInvalidInput)
	}

	switch key {
	case keyStoreBackend:
		if !domain.StoreBackend(value.(string)).IsValid() {
			return bad("unknown backend %q", value)
		}
	case keyEmbedProvider, keyLLMProvider:
		if !domain.AIProvider(value.(string)).IsValid() {
			return bad("unknown provider %q", value)
		}
	case keyRerankBackend:
		if !domain.RerankerBackend(value.(string)).IsValid() {
			return bad("unknown backend %q", value)
		}
	case keyWebBackend:
		if !domain.WebSearchBackend(value.(string)).IsValid() {
			return bad("unknown backend %q", value)
		}
	case keyRetrievalMode:
		if !domain.RetrievalMode(value.(string)).IsValid() {
			return bad("unknown mode %q", value)
		}
	case keyChunkWindow:
		if v := value.(int); v <= 0 || current.Chunker.Overlap >= v {
			return fmt.Errorf("window_size=%d overlap=%d: %w", v, current.Chunker.Overlap, domain.ErrInvalidWindowConfig)
		}
	case keyChunkOverlap:
		if v := value.(int); v < 0 || v >= current.Chunker.WindowSize {
			return fmt.Errorf("window_size=%d overlap=%d: %w", current.Chunker.WindowSize, v, domain.ErrInvalidWindowConfig)
		}
	case keyRetrievalTopK, keyResearchMaxRounds, keyRetrievalOversample, keyEmbedBatchSize,
		keyRerankBatchSize, keyRerankConcurrency, keyResearchConcurrency, keyResearchReformulate:
		if value.(int) < 1 {
			return bad("must be at least 1")
		}
	case keyRetrievalWebResults, keyWebMaxRetries:
		if value.(int) < 0 {
			return bad("must not be negative")
		}
	case keyResearchMinImprove, keyWebRPS:
		if value.(float64) < 0 {
			return bad("must not be negative")
		}
	case keyLLMTemperature:
		if v := value.(float64); v < 0 || v > 2 {
			return bad("must be between 0 and 2")
		}
	case keyTimeoutEmbedding, keyTimeoutWebSearch, keyTimeoutReranker, keyTimeoutLLM:
		if value.(string) == "0s" {
			return bad("must be positive")
		}
	}
	return nil
}

// parseValue converts a command-line string to the type stored in TOML.
// Durations are stored in their canonical string form.
func parseValue(kind valueKind, value string) (any, error) {
	switch kind {
	case kindInt:
		return strconv.Atoi(strings.TrimSpace(value))
	case kindFloat:
		return strconv.ParseFloat(strings.TrimSpace(value), 64)
	case kindBool:
		return strconv.ParseBool(strings.TrimSpace(value))
	case kindDuration:
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return nil, err
		}
		if d < 0 {
			return nil, fmt.Errorf("negative duration %s", d)
		}
		return d.String(), nil
	default:
		return value, nil
	}
}

func defaultModel(models map[domain.AIProvider]string, provider domain.AIProvider, fallback string) string {
	if m, ok := models[provider]; ok {
		return m
	}
	return fallback
}

func defaultBaseURL(provider domain.AIProvider) string {
	if provider.IsLocal() {
		if host := os.Getenv(envOllamaHost); host != "" {
			if !strings.Contains(host, "://") {
				host = "http://" + host
			}
			return host
		}
		return defaultOllamaURL
	}
	return ""
}

// Helper methods for reading config with defaults.

// getEnum returns the stored value when valid, else defaultVal.
func getEnum[T ~string](s *SettingsService, key string, defaultVal T, valid func(T) bool) T {
	val := strings.TrimSpace(s.configStore.GetString(key))
	if val == "" {
		return defaultVal
	}
	if v := T(val); valid(v) {
		return v
	}
	logger.Warn("ignoring invalid %s %q, using %q", key, val, defaultVal)
	return defaultVal
}

// getString trims surrounding space; empty means unset.
func (s *SettingsService) getString(key, defaultVal string) string {
	val := strings.TrimSpace(s.configStore.GetString(key))
	if val == "" {
		return defaultVal
	}
	return val
}

// getRawString keeps the value verbatim so prefixes can end in a space
// or be set to "" explicitly.
func (s *SettingsService) getRawString(key, defaultVal string) string {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetString(key)
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	if d := s.configStore.GetDuration(key); d > 0 {
		return d
	}
	return defaultVal
}

// getSecret reads an API key from config, then the service-specific
// variable, then OPENAI_API_KEY for openai providers.
func (s *SettingsService) getSecret(key, env string, provider domain.AIProvider) string {
	if v := s.configStore.GetString(key); v != "" {
		return v
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	if provider == domain.AIProviderOpenAI {
		return os.Getenv(envOpenAIAPIKey)
	}
	return ""
}

func (s *SettingsService) envFirst(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}
