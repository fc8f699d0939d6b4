package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/webrage/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for webrage resources.
	uriScheme = "webrage://"
)

// registerResources registers the store resources when a store is available.
func (s *Server) registerResources() {
	if s.ports.Store == nil {
		return
	}

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "store/stats",
		Name:        "store-stats",
		Description: "Chunk and document counts of the local vector store",
		MIMEType:    "application/json",
	}, s.handleStatsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "chunks/{chunkId}",
		Name:        "chunk",
		Description: "Text and metadata of a stored chunk, as referenced by local evidence",
		MIMEType:    "application/json",
	}, s.handleChunkResource)
}

type statsInfo struct {
	Backend   string `json:"backend"`
	Path      string `json:"path,omitempty"`
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`
	Dimension int    `json:"dimension"`
}

// handleStatsResource returns vector store statistics.
func (s *Server) handleStatsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	stats, err := s.ports.Store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading store stats: %w", err)
	}

	return jsonResource(req.Params.URI, statsInfo{
		Backend:   stats.Backend,
		Path:      stats.Path,
		Documents: stats.Documents,
		Chunks:    stats.Chunks,
		Dimension: stats.Dimension,
	})
}

type chunkInfo struct {
	ID            string         `json:"id"`
	DocumentID    string         `json:"document_id"`
	SequenceIndex int            `json:"sequence_index"`
	Text          string         `json:"text"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// handleChunkResource returns a stored chunk without its vector.
func (s *Server) handleChunkResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id := extractChunkID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	chunk, err := s.ports.Store.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting chunk: %w", err)
	}

	return jsonResource(req.Params.URI, chunkInfo{
		ID:            chunk.ID,
		DocumentID:    chunk.DocumentID,
		SequenceIndex: chunk.SequenceIndex,
		Text:          chunk.Text,
		Metadata:      chunk.Metadata,
	})
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractChunkID extracts the chunk ID from a URI like webrage://chunks/{chunkId}.
func extractChunkID(uri string) string {
	const prefix = uriScheme + "chunks/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	return strings.TrimPrefix(uri, prefix)
}
