package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/ports/driven"
)

func evidence(contents ...string) []domain.RerankedItem {
	out := make([]domain.RerankedItem, len(contents))
	for i, c := range contents {
		out[i] = domain.RerankedItem{
			SearchResult: domain.SearchResult{Content: c, Origin: domain.OriginWeb, SourceRef: c},
			Relevance:    1 - float64(i)/10,
		}
	}
	return out
}

func TestTermReformulator_AddsNovelEvidenceTerms(t *testing.T) {
	ev := evidence(
		"Tokyo hosts the Olympic games and the Paralympic games",
		"Olympic venues in Tokyo were built near the bay",
	)

	got, err := TermReformulator{}.Reformulate(context.Background(), "Tokyo 2020", ev, nil, 3)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Tokyo 2020 olympic host game", got[0])
	assert.Equal(t, "Tokyo 2020 venue built near", got[1])
}

func TestTermReformulator_Deterministic(t *testing.T) {
	ev := evidence("alpha beta gamma delta", "gamma epsilon zeta")

	a, _ := TermReformulator{}.Reformulate(context.Background(), "query", ev, nil, 2)
	b, _ := TermReformulator{}.Reformulate(context.Background(), "query", ev, nil, 2)

	assert.Equal(t, a, b)
}

func TestTermReformulator_SkipsTermsAlreadyAsked(t *testing.T) {
	ev := evidence("gamma epsilon zeta")

	got, err := TermReformulator{}.Reformulate(context.Background(), "query", ev, []string{"query gamma epsilon zeta"}, 2)

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTermReformulator_NoEvidence(t *testing.T) {
	got, err := TermReformulator{}.Reformulate(context.Background(), "query", nil, nil, 3)

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueryReformulator_UsesLLMWithPromptTemplate(t *testing.T) {
	llm := &mockLLM{answers: []string{"Reformulated query: \"Gaza events September 2025\"", "1. news Gaza autumn 2025"}}
	prompts := &mockPromptStore{prompts: map[string]string{driven.PromptReformulate: "custom system"}}
	r := NewQueryReformulator(llm, prompts, 0.6, 0)

	got, err := r.Reformulate(context.Background(), "what happened in Gaza?", nil, nil, 2)

	require.NoError(t, err)
	assert.Equal(t, []string{"Gaza events September 2025", "news Gaza autumn 2025"}, got)
	assert.Equal(t, []string{"custom system", "custom system"}, llm.systems)
	assert.Equal(t, "User query: what happened in Gaza?", llm.prompts[0])
}

func TestQueryReformulator_DefaultPromptWithoutStore(t *testing.T) {
	llm := &mockLLM{answers: []string{"x"}}
	r := NewQueryReformulator(llm, nil, 0.6, 0)

	_, err := r.Reformulate(context.Background(), "q", nil, nil, 1)

	require.NoError(t, err)
	assert.Equal(t, DefaultReformulatePrompt, llm.systems[0])
}

func TestQueryReformulator_FallsBackToTerms(t *testing.T) {
	ev := evidence("gamma epsilon zeta")

	t.Run("no llm", func(t *testing.T) {
		got, err := NewQueryReformulator(nil, nil, 0, 0).Reformulate(context.Background(), "query", ev, nil, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"query gamma epsilon zeta"}, got)
	})

	t.Run("llm error", func(t *testing.T) {
		llm := &mockLLM{err: errors.New("connection refused")}
		got, err := NewQueryReformulator(llm, nil, 0, 0).Reformulate(context.Background(), "query", ev, nil, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"query gamma epsilon zeta"}, got)
	})
}

func TestCleanReformulation(t *testing.T) {
	tests := map[string]string{
		"plain query":                    "plain query",
		"  \n- bulleted query\nsecond":   "bulleted query",
		"2. numbered":                    "numbered",
		"2025 events in Gaza":            "2025 events in Gaza",
		"Query: 'quoted'":                "quoted",
		"Reformulated query: \"double\"": "double",
		"Note: keep this":                "Note: keep this",
		"\n\n":                           "",
	}
	for in, want := range tests {
		assert.Equal(t, want, cleanReformulation(in), "input %q", in)
	}
}

func TestDedupQueries(t *testing.T) {
	got := dedupQueries([]string{"A", " a ", "", "b", "seen"}, []string{"Seen"})

	assert.Equal(t, []string{"A", "b"}, got)
}
