// Package openai provides a Reranker that asks a chat model to judge each
// passage with a single "yes" or "no" token and reads the answer's
// log-probabilities as the relevance.
package openai

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/webrage/internal/adapters/driven/reranker"
	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/ports/driven"
)

// Ensure Reranker implements the interface.
var _ driven.Reranker = (*Reranker)(nil)

// Default configuration values.
const (
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 60 * time.Second
	topLogProbs    = 5
)

// SystemPrompt constrains the model to a binary judgement.
const SystemPrompt = `Judge whether the Document meets the requirements based on the Query and the Instruct provided. Note that the answer can only be "yes" or "no".`

// Config holds configuration for the chat reranker.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Instruction string
	Timeout     time.Duration
	Concurrency int
}

// Reranker scores passages with one chat completion per passage.
type Reranker struct {
	client      *openai.Client
	model       string
	instruction string
	concurrency int
}

// New creates a chat reranker.
func New(cfg Config) *Reranker {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Instruction == "" {
		cfg.Instruction = domain.DefaultRerankInstruction
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Reranker{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		instruction: cfg.Instruction,
		concurrency: cfg.Concurrency,
	}
}

// Score returns one clamped relevance per passage.
func (r *Reranker) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	scores, err := reranker.ScoreBatches(ctx, passages, 1, r.concurrency, func(ctx context.Context, batch []string) ([]float64, error) {
		v, err := r.judge(ctx, query, batch[0])
		if err != nil {
			return nil, err
		}
		return []float64{v}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("openai rerank: %v: %w", err, domain.ErrRerankerUnavailable)
	}
	return scores, nil
}

func (r *Reranker) judge(ctx context.Context, query, passage string) (float64, error) {
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: reranker.FormatPair(r.instruction, query, passage)},
		},
		MaxTokens:   1,
		Temperature: 0,
		LogProbs:    true,
		TopLogProbs: topLogProbs,
	})
	if err != nil {
		return 0, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return 0, fmt.Errorf("chat completion returned no choices")
	}

	choice := resp.Choices[0]
	if choice.LogProbs != nil && len(choice.LogProbs.Content) > 0 {
		if v, ok := scoreFromLogProbs(choice.LogProbs.Content[0]); ok {
			return v, nil
		}
	}
	return scoreFromAnswer(choice.Message.Content)
}

// scoreFromLogProbs finds "yes" and "no" among the top alternatives of the
// first generated token. ok is false when neither appears.
func scoreFromLogProbs(lp openai.LogProb) (float64, bool) {
	yes, no := math.Inf(-1), math.Inf(-1)
	found := false

	consider := func(token string, logProb float64) {
		switch normalizeToken(token) {
		case "yes":
			yes = math.Max(yes, logProb)
			found = true
		case "no":
			no = math.Max(no, logProb)
			found = true
		}
	}

	consider(lp.Token, lp.LogProb)
	for _, alt := range lp.TopLogProbs {
		consider(alt.Token, alt.LogProb)
	}
	if !found {
		return 0, false
	}
	return reranker.YesProbability(yes, no), true
}

// scoreFromAnswer is used when the server does not return log-probabilities.
func scoreFromAnswer(content string) (float64, error) {
	switch normalizeToken(content) {
	case "yes":
		return 1, nil
	case "no":
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected judgement %q", content)
	}
}

func normalizeToken(s string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(s), ".,!\"'"))
}

// ModelName returns the judging model name.
func (r *Reranker) ModelName() string {
	return r.model
}

// Ping validates the API key and connectivity by listing models.
func (r *Reranker) Ping(ctx context.Context) error {
	if _, err := r.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openai rerank: ping failed: %v: %w", err, domain.ErrRerankerUnavailable)
	}
	return nil
}
