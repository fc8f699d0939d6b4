package mcp

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/webrage/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/webrage/internal/core/domain"
)

func TestExtractChunkID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{
			name:     "valid chunk URI",
			uri:      "webrage://chunks/3f1c9a",
			expected: "3f1c9a",
		},
		{
			name:     "invalid prefix",
			uri:      "file://chunks/3f1c9a",
			expected: "",
		},
		{
			name:     "empty URI",
			uri:      "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractChunkID(tt.uri)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// Helper to create a ReadResourceRequest with the given URI.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func newStoreServer(t *testing.T) *Server {
	t.Helper()
	store := memory.NewVectorStore()
	require.NoError(t, store.Append(context.Background(), domain.Chunk{
		ID:            "chunk-1",
		DocumentID:    "/docs/notes.md",
		Text:          "stored passage",
		SequenceIndex: 4,
		Vector:        []float32{0.1, 0.2},
		Metadata:      map[string]any{domain.MetaSourcePath: "/docs/notes.md"},
	}))

	server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Store: store})
	require.NoError(t, err)
	return server
}

func TestServer_handleStatsResource(t *testing.T) {
	server := newStoreServer(t)

	result, err := server.handleStatsResource(context.Background(), makeReadResourceRequest("webrage://store/stats"))

	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	text := result.Contents[0].Text
	assert.Contains(t, text, `"documents": 1`)
	assert.Contains(t, text, `"chunks": 1`)
	assert.Contains(t, text, `"dimension": 2`)
	assert.Equal(t, "application/json", result.Contents[0].MIMEType)
}

func TestServer_handleChunkResource(t *testing.T) {
	ctx := context.Background()
	server := newStoreServer(t)

	t.Run("returns chunk without vector", func(t *testing.T) {
		result, err := server.handleChunkResource(ctx, makeReadResourceRequest("webrage://chunks/chunk-1"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		text := result.Contents[0].Text
		assert.Contains(t, text, `"document_id": "/docs/notes.md"`)
		assert.Contains(t, text, `"sequence_index": 4`)
		assert.Contains(t, text, "stored passage")
		assert.NotContains(t, text, "vector")
	})

	t.Run("unknown chunk returns not found", func(t *testing.T) {
		_, err := server.handleChunkResource(ctx, makeReadResourceRequest("webrage://chunks/missing"))
		require.Error(t, err)
	})

	t.Run("invalid URI returns not found", func(t *testing.T) {
		_, err := server.handleChunkResource(ctx, makeReadResourceRequest("webrage://invalid/uri"))
		require.Error(t, err)
	})
}
