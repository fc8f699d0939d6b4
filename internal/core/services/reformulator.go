package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/ports/driven"
	"github.com/custodia-labs/webrage/internal/logger"
	"github.com/custodia-labs/webrage/internal/postprocessors/terms"
)

// Reformulator derives follow-up sub-queries for a research round.
type Reformulator interface {
	// Reformulate returns up to n sub-queries for prompt given the evidence
	// gathered so far and the sub-queries already asked.
	Reformulate(ctx context.Context, prompt string, evidence []domain.RerankedItem, asked []string, n int) ([]string, error)
}

// Ensure both strategies implement the interface.
var (
	_ Reformulator = (*QueryReformulator)(nil)
	_ Reformulator = (*TermReformulator)(nil)
)

// termsPerQuery is how many evidence terms the deterministic strategy adds.
const termsPerQuery = 3

// TermReformulator expands the prompt with salient terms from the best
// evidence. The same prompt and evidence always yield the same sub-queries.
type TermReformulator struct{}

// Reformulate returns one sub-query per top evidence item that contributes
// terms not yet in the prompt or in earlier sub-queries.
func (TermReformulator) Reformulate(
	_ context.Context, prompt string, evidence []domain.RerankedItem, asked []string, n int,
) ([]string, error) {
	if n <= 0 || len(evidence) == 0 {
		return nil, nil
	}

	known := make(map[string]struct{})
	for _, t := range terms.Extract(prompt) {
		known[t] = struct{}{}
	}
	for _, q := range asked {
		for _, t := range terms.Extract(q) {
			known[t] = struct{}{}
		}
	}

	ranked := append([]domain.RerankedItem(nil), evidence...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Relevance > ranked[j].Relevance
	})

	// Document frequency across the ranked evidence favours terms that
	// recur in several good passages.
	df := make(map[string]int)
	for _, item := range ranked {
		for _, t := range terms.Extract(item.Content) {
			df[t]++
		}
	}

	var out []string
	for _, item := range ranked {
		if len(out) == n {
			break
		}
		picked := novelTerms(terms.Extract(item.Content), known, df)
		if len(picked) == 0 {
			continue
		}
		for _, t := range picked {
			known[t] = struct{}{}
		}
		out = append(out, strings.TrimSpace(prompt)+" "+strings.Join(picked, " "))
	}
	return out, nil
}

// novelTerms picks up to termsPerQuery unseen terms, most frequent first,
// keeping first-seen order among equals.
func novelTerms(words []string, known map[string]struct{}, df map[string]int) []string {
	candidates := make([]string, 0, len(words))
	for _, t := range words {
		if _, ok := known[t]; ok || len(t) < 3 {
			continue
		}
		candidates = append(candidates, t)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return df[candidates[i]] > df[candidates[j]]
	})
	if len(candidates) > termsPerQuery {
		candidates = candidates[:termsPerQuery]
	}
	return candidates
}

// QueryReformulator asks an LLM for alternative phrasings of the prompt,
// one call per sub-query, and falls back to TermReformulator when the LLM
// is missing or fails.
type QueryReformulator struct {
	llm         driven.LLMService
	prompts     driven.PromptStore
	temperature float64
	timeout     time.Duration
	fallback    TermReformulator
}

// NewQueryReformulator creates an LLM-backed reformulator.
// llm and prompts may be nil.
func NewQueryReformulator(
	llm driven.LLMService, prompts driven.PromptStore, temperature float64, timeout time.Duration,
) *QueryReformulator {
	return &QueryReformulator{
		llm:         llm,
		prompts:     prompts,
		temperature: temperature,
		timeout:     timeout,
	}
}

// Reformulate returns up to n sub-queries.
func (r *QueryReformulator) Reformulate(
	ctx context.Context, prompt string, evidence []domain.RerankedItem, asked []string, n int,
) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	if r.llm == nil {
		return r.fallback.Reformulate(ctx, prompt, evidence, asked, n)
	}

	system := r.systemPrompt()
	out := make([]string, 0, n)
	for range n {
		q, err := r.generate(ctx, system, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			logger.Warn("Reformulation failed, using evidence terms: %v", err)
			return r.fallback.Reformulate(ctx, prompt, evidence, asked, n)
		}
		if q != "" {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *QueryReformulator) generate(ctx context.Context, system, prompt string) (string, error) {
	callCtx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	text, err := r.llm.Generate(callCtx, "User query: "+prompt, driven.GenerateOptions{
		System:      system,
		MaxTokens:   128,
		Temperature: r.temperature,
	})
	if err != nil {
		return "", asUnavailable(ctx, err, domain.ErrLLMUnavailable)
	}
	return cleanReformulation(text), nil
}

func (r *QueryReformulator) systemPrompt() string {
	if r.prompts != nil {
		if p, err := r.prompts.Load(driven.PromptReformulate); err == nil && strings.TrimSpace(p) != "" {
			return p
		}
	}
	return DefaultReformulatePrompt
}

// DefaultReformulatePrompt is used when no prompt store is available.
const DefaultReformulatePrompt = "You are an AI expert in reformulating user queries in order to provide " +
	"an equivalent formulation in meaning but different in the form.\n" +
	"Your task is to enhance user queries by generating a single reformulation to improve search results.\n" +
	"Return ONLY the reformulated query on one line, nothing else."

var listMarker = regexp.MustCompile(`^(\d+[.)]|[-*•])\s+`)

// cleanReformulation keeps the first non-empty line of a model answer and
// strips list markers, labels and quotes.
func cleanReformulation(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = listMarker.ReplaceAllString(line, "")
		if i := strings.Index(line, ":"); i >= 0 && i < 24 &&
			strings.Contains(strings.ToLower(line[:i]), "query") {
			line = strings.TrimSpace(line[i+1:])
		}
		line = strings.Trim(line, "\"'` ")
		if line != "" {
			return line
		}
	}
	return ""
}

// dedupQueries drops empty queries and those already asked, case-insensitively.
func dedupQueries(queries, asked []string) []string {
	seen := make(map[string]struct{}, len(asked)+len(queries))
	for _, q := range asked {
		seen[strings.ToLower(strings.TrimSpace(q))] = struct{}{}
	}
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if q == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	return out
}

// describeQueries is used in progress logs.
func describeQueries(queries []string) string {
	quoted := make([]string, len(queries))
	for i, q := range queries {
		quoted[i] = fmt.Sprintf("%q", q)
	}
	return strings.Join(quoted, ", ")
}
