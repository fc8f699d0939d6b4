package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI API or any server speaking its protocol.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderNone disables the component.
	AIProviderNone AIProvider = "none"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderNone:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI-compatible API"
	case AIProviderNone:
		return "Disabled"
	default:
		return unknownDescription
	}
}

// StoreBackend selects the vector store implementation.
type StoreBackend string

// Available store backends.
const (
	StoreBackendJSONFile StoreBackend = "jsonfile"
	StoreBackendSQLite   StoreBackend = "sqlite"

	// StoreBackendMemory keeps chunks in process memory only.
	StoreBackendMemory StoreBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b StoreBackend) IsValid() bool {
	switch b {
	case StoreBackendJSONFile, StoreBackendSQLite, StoreBackendMemory:
		return true
	default:
		return false
	}
}

// RerankerBackend selects the relevance scoring implementation.
type RerankerBackend string

// Available reranker backends.
const (
	// RerankerAPI calls a /rerank endpoint (TEI, Jina, vLLM and similar).
	RerankerAPI RerankerBackend = "api"

	// RerankerOpenAI asks a chat model a yes/no question and reads the logprobs.
	RerankerOpenAI RerankerBackend = "openai"

	// RerankerLexical scores term overlap locally with no external service.
	RerankerLexical RerankerBackend = "lexical"

	// RerankerNone disables reranking.
	RerankerNone RerankerBackend = "none"
)

// IsValid returns true if the backend is recognised.
func (b RerankerBackend) IsValid() bool {
	switch b {
	case RerankerAPI, RerankerOpenAI, RerankerLexical, RerankerNone:
		return true
	default:
		return false
	}
}

// WebSearchBackend selects the web search implementation.
type WebSearchBackend string

// Available web search backends.
const (
	WebSearchDuckDuckGo WebSearchBackend = "duckduckgo"
	WebSearchSearXNG    WebSearchBackend = "searxng"
	WebSearchNone       WebSearchBackend = "none"
)

// IsValid returns true if the backend is recognised.
func (b WebSearchBackend) IsValid() bool {
	switch b {
	case WebSearchDuckDuckGo, WebSearchSearXNG, WebSearchNone:
		return true
	default:
		return false
	}
}

// StoreSettings holds vector store configuration.
type StoreSettings struct {
	Backend StoreBackend
	Path    string
}

// ChunkerSettings holds the token window configuration.
type ChunkerSettings struct {
	WindowSize int
	Overlap    int
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// QueryPrefix and DocumentPrefix are prepended before embedding,
	// for models trained with asymmetric task prefixes.
	QueryPrefix    string
	DocumentPrefix string

	// BatchSize is the number of chunks embedded per request.
	BatchSize int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderNone {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" && e.BaseURL == "" {
		return false
	}
	return e.Model != ""
}

// LLMSettings holds the generative model used for query reformulation.
type LLMSettings struct {
	Provider    AIProvider
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() || l.Provider == AIProviderNone {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" && l.BaseURL == "" {
		return false
	}
	return l.Model != ""
}

// RerankerSettings holds reranker configuration.
type RerankerSettings struct {
	Backend     RerankerBackend
	Model       string
	BaseURL     string
	APIKey      string
	Instruction string
	BatchSize   int
	Concurrency int
}

// WebSearchSettings holds web search configuration.
type WebSearchSettings struct {
	Backend           WebSearchBackend
	BaseURL           string
	RequestsPerSecond float64
	MaxRetries        int
	FetchPages        bool
}

// RetrievalSettings holds hybrid retrieval tuning.
type RetrievalSettings struct {
	Mode RetrievalMode
	TopK int

	// LocalOversample multiplies TopK to get the number of local candidates.
	LocalOversample int

	// WebResults is the number of web snippets requested.
	WebResults int
}

// LocalCandidates returns N_local for a given top_k. Never below topK.
func (r RetrievalSettings) LocalCandidates(topK int) int {
	factor := r.LocalOversample
	if factor < 1 {
		factor = 1
	}
	return topK * factor
}

// ResearchSettings holds deep research tuning.
type ResearchSettings struct {
	MaxRounds      int
	MinImprovement float64
	Reformulations int
	Concurrency    int
}

// TimeoutSettings holds per-call timeouts for external services.
type TimeoutSettings struct {
	Embedding time.Duration
	WebSearch time.Duration
	Reranker  time.Duration
	LLM       time.Duration
}

// AppSettings aggregates all application settings.
type AppSettings struct {
	Store     StoreSettings
	Chunker   ChunkerSettings
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Reranker  RerankerSettings
	WebSearch WebSearchSettings
	Retrieval RetrievalSettings
	Research  ResearchSettings
	Timeouts  TimeoutSettings
}

// DefaultRerankInstruction is the task given to instruction-following rerankers.
const DefaultRerankInstruction = "Given a web search query, retrieve relevant passages that answer the query"

// DefaultAppSettings returns sensible defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Store: StoreSettings{
			Backend: StoreBackendJSONFile,
		},
		Chunker: ChunkerSettings{
			WindowSize: 256,
			Overlap:    32,
		},
		Embedding: EmbeddingSettings{
			Provider:       AIProviderOllama,
			Model:          "nomic-embed-text",
			BaseURL:        "http://localhost:11434",
			QueryPrefix:    "search_query: ",
			DocumentPrefix: "search_document: ",
			BatchSize:      16,
		},
		LLM: LLMSettings{
			Provider:    AIProviderNone,
			Model:       "qwen2.5:1.5b",
			Temperature: 0.6,
		},
		Reranker: RerankerSettings{
			Backend:     RerankerLexical,
			Instruction: DefaultRerankInstruction,
			BatchSize:   16,
			Concurrency: 4,
		},
		WebSearch: WebSearchSettings{
			Backend:           WebSearchDuckDuckGo,
			RequestsPerSecond: 1,
			MaxRetries:        3,
		},
		Retrieval: RetrievalSettings{
			Mode:            RetrievalModeHybrid,
			TopK:            5,
			LocalOversample: 3,
			WebResults:      8,
		},
		Research: ResearchSettings{
			MaxRounds:      3,
			MinImprovement: 0.05,
			Reformulations: 3,
			Concurrency:    3,
		},
		Timeouts: TimeoutSettings{
			Embedding: 30 * time.Second,
			WebSearch: 15 * time.Second,
			Reranker:  30 * time.Second,
			LLM:       60 * time.Second,
		},
	}
}

// DefaultEmbeddingModels returns the default embedding model per provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns the default reformulation model per provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "qwen2.5:1.5b",
		AIProviderOpenAI: "gpt-4o-mini",
	}
}

// EmbeddingDimensions returns known output sizes for common embedding models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"nomic-embed-text":       768,
		"mxbai-embed-large":      1024,
		"all-minilm":             384,
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
