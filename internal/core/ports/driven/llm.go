package driven

import "context"

// LLMService provides the generative step used to reformulate queries.
// This is an optional service - when nil, reformulation is deterministic.
type LLMService interface {
	// Generate produces text completion for a prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation.
type GenerateOptions struct {
	// System is an optional system prompt.
	System string

	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// StopWords end generation when encountered.
	StopWords []string
}
