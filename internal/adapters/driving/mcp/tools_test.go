package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/webrage/internal/core/domain"
)

func evidence() []domain.RerankedItem {
	return []domain.RerankedItem{
		{
			SearchResult: domain.SearchResult{
				Content: "local passage", Origin: domain.OriginLocal, SourceRef: "chunk-1", Title: "notes.md",
			},
			Relevance: 0.9,
		},
		{
			SearchResult: domain.SearchResult{
				Content: "web snippet", Origin: domain.OriginWeb, SourceRef: "https://example.com", Title: "Example",
			},
			Relevance: 0.7,
		},
	}
}

func TestServer_handleRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("returns ranked evidence", func(t *testing.T) {
		retrieval := &mockRetrievalService{result: &domain.RetrievalResult{
			Query: "test",
			Items: evidence(),
			Diagnostics: domain.Diagnostics{
				LocalUsed: true, WebUsed: true,
			},
		}}
		server, err := NewServer(&Ports{Retrieval: retrieval})
		require.NoError(t, err)

		input := RetrieveInput{Query: "test", Mode: "hybrid", TopK: 5, DocumentIDs: []string{"d"}}
		_, output, err := server.handleRetrieve(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, 2, output.Count)
		assert.Equal(t, "local+web", output.Sources)
		assert.False(t, output.Degraded)
		assert.Equal(t, EvidenceOutput{
			Origin: "local", SourceRef: "chunk-1", Title: "notes.md", Content: "local passage", Relevance: 0.9,
		}, output.Items[0])
		assert.Equal(t, "https://example.com", output.Items[1].SourceRef)
		assert.Equal(t, domain.RetrieveOptions{
			Mode: domain.RetrievalModeHybrid, TopK: 5, DocumentIDs: []string{"d"},
		}, retrieval.gotOpts)
	})

	t.Run("reports degraded sources", func(t *testing.T) {
		retrieval := &mockRetrievalService{result: &domain.RetrievalResult{
			Query: "test",
			Items: evidence()[1:],
			Diagnostics: domain.Diagnostics{
				WebUsed: true, EmbeddingUnavailable: true,
				Warnings: []string{"embedding unavailable"},
			},
		}}
		server, err := NewServer(&Ports{Retrieval: retrieval})
		require.NoError(t, err)

		_, output, err := server.handleRetrieve(ctx, nil, RetrieveInput{Query: "test"})

		require.NoError(t, err)
		assert.True(t, output.Degraded)
		assert.Equal(t, "web only (degraded: embedding unavailable)", output.Sources)
		assert.Equal(t, []string{"embedding unavailable"}, output.Warnings)
	})

	t.Run("rejects unknown mode", func(t *testing.T) {
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}})
		require.NoError(t, err)

		_, _, err = server.handleRetrieve(ctx, nil, RetrieveInput{Query: "test", Mode: "everywhere"})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("no evidence names the failure", func(t *testing.T) {
		retrieval := &mockRetrievalService{err: fmt.Errorf("both failed: %w", domain.ErrNoEvidenceFound)}
		server, err := NewServer(&Ports{Retrieval: retrieval})
		require.NoError(t, err)

		_, _, err = server.handleRetrieve(ctx, nil, RetrieveInput{Query: "test"})

		require.ErrorIs(t, err, domain.ErrNoEvidenceFound)
		assert.Contains(t, err.Error(), "could not answer from available sources")
	})

	t.Run("returns error on retrieval failure", func(t *testing.T) {
		retrieval := &mockRetrievalService{err: errors.New("retrieval failed")}
		server, err := NewServer(&Ports{Retrieval: retrieval})
		require.NoError(t, err)

		_, _, err = server.handleRetrieve(ctx, nil, RetrieveInput{Query: "test"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "retrieval failed")
	})
}

func TestServer_handleResearch(t *testing.T) {
	ctx := context.Background()
	items := evidence()

	t.Run("returns evidence and answer context", func(t *testing.T) {
		research := &mockResearchService{result: &domain.ResearchResult{
			Prompt:     "question",
			Evidence:   items,
			RoundsRun:  2,
			StopReason: domain.StopMaxRounds,
			Rounds: []domain.ResearchRound{
				{RoundIndex: 0, SubQuery: "question"},
				{RoundIndex: 1, SubQuery: "question history"},
			},
		}}
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Research: research})
		require.NoError(t, err)

		margin := 0.0
		_, output, err := server.handleResearch(ctx, nil, ResearchInput{
			Prompt: "question", MaxRounds: 2, MinImprovement: &margin,
		})

		require.NoError(t, err)
		assert.Equal(t, 2, output.RoundsRun)
		assert.Equal(t, "max_rounds", output.StopReason)
		assert.Equal(t, []string{"question", "question history"}, output.SubQueries)
		assert.Len(t, output.Evidence, 2)
		assert.Contains(t, output.Context, "question")
		assert.Contains(t, output.Context, "local passage")

		assert.Equal(t, 2, research.gotOpts.MaxRounds)
		assert.True(t, research.gotOpts.MinImprovementSet)
	})

	t.Run("unset margin uses the default", func(t *testing.T) {
		research := &mockResearchService{result: &domain.ResearchResult{Prompt: "q", Partial: true}}
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Research: research})
		require.NoError(t, err)

		_, output, err := server.handleResearch(ctx, nil, ResearchInput{Prompt: "q"})

		require.NoError(t, err)
		assert.True(t, output.Partial)
		assert.False(t, research.gotOpts.MinImprovementSet)
	})

	t.Run("returns error on research failure", func(t *testing.T) {
		research := &mockResearchService{err: domain.ErrNoEvidenceFound}
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Research: research})
		require.NoError(t, err)

		_, _, err = server.handleResearch(ctx, nil, ResearchInput{Prompt: "q"})

		assert.ErrorIs(t, err, domain.ErrNoEvidenceFound)
	})
}

func TestServer_handleIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("stores document", func(t *testing.T) {
		ingestion := &mockIngestionService{result: domain.IngestResult{
			DocumentID: "doc", Windows: 3, Written: 3, Removed: 1,
		}}
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Ingestion: ingestion})
		require.NoError(t, err)

		_, output, err := server.handleIngest(ctx, nil, IngestInput{
			DocumentID: "doc", Text: "text", Replace: true, Metadata: map[string]string{"lang": "en"},
		})

		require.NoError(t, err)
		assert.Equal(t, IngestOutput{DocumentID: "doc", Windows: 3, Written: 3, Removed: 1}, output)
		assert.True(t, ingestion.gotOpts.Replace)
		assert.Equal(t, map[string]any{"lang": "en"}, ingestion.gotOpts.Metadata)
	})

	t.Run("reports partial write", func(t *testing.T) {
		ingestion := &mockIngestionService{
			result: domain.IngestResult{DocumentID: "doc", Windows: 4, Written: 2},
			err:    domain.ErrEmbeddingUnavailable,
		}
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Ingestion: ingestion})
		require.NoError(t, err)

		_, _, err = server.handleIngest(ctx, nil, IngestInput{DocumentID: "doc", Text: "text"})

		require.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
		assert.Contains(t, err.Error(), "after 2 of 4 chunks")
		assert.Nil(t, ingestion.gotOpts.Metadata)
	})
}
