package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfigNotFound indicates the config file does not exist.
	ErrConfigNotFound = errors.New("config not found")

	// ErrDimensionMismatch indicates a vector length disagrees with the
	// store's established dimensionality.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrDuplicateID indicates a chunk with the same ID is already stored.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrCorruptStore indicates the durable store could not be read back.
	// Corruption is reported, never repaired.
	ErrCorruptStore = errors.New("corrupt store")

	// ErrInvalidWindowConfig indicates a chunker window/overlap pair that
	// cannot make progress.
	ErrInvalidWindowConfig = errors.New("invalid window config")

	// ErrWebSearchUnavailable indicates the web search backend failed,
	// timed out, or returned a response of unexpected shape.
	// Retrieval continues with local evidence only.
	ErrWebSearchUnavailable = errors.New("web search unavailable")

	// ErrRerankerUnavailable indicates the reranker backend failed or timed out.
	// Retrieval falls back to pre-rerank ordering.
	ErrRerankerUnavailable = errors.New("reranker unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service failed,
	// timed out, or is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Query reformulation falls back to the deterministic strategy.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrNoEvidenceFound indicates no source could supply any evidence.
	// Surfaced as "could not answer from available sources".
	ErrNoEvidenceFound = errors.New("no evidence found")
)

// IsUnavailable reports whether err is one of the recoverable
// external-dependency failures.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrWebSearchUnavailable) ||
		errors.Is(err, ErrRerankerUnavailable) ||
		errors.Is(err, ErrEmbeddingUnavailable) ||
		errors.Is(err, ErrLLMUnavailable)
}

// errorf wraps a sentinel with a formatted message.
func errorf(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}
