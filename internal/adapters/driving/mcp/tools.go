package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/services"
)

// noAnswer is the tool error text when neither source produced evidence.
const noAnswer = "could not answer from available sources"

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query       string   `json:"query" jsonschema:"the question or search query"`
	Mode        string   `json:"mode,omitempty" jsonschema:"local, web or hybrid (default from settings)"`
	TopK        int      `json:"top_k,omitempty" jsonschema:"number of results to return (default from settings)"`
	DocumentIDs []string `json:"document_ids,omitempty" jsonschema:"restrict local results to these document IDs"`
}

// EvidenceOutput is a single ranked passage.
type EvidenceOutput struct {
	Origin    string  `json:"origin"`
	SourceRef string  `json:"source_ref"`
	Title     string  `json:"title,omitempty"`
	Content   string  `json:"content"`
	Relevance float64 `json:"relevance"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Query    string           `json:"query"`
	Sources  string           `json:"sources"`
	Degraded bool             `json:"degraded"`
	Warnings []string         `json:"warnings,omitempty"`
	Items    []EvidenceOutput `json:"items"`
	Count    int              `json:"count"`
}

// ResearchInput is the input schema for the research tool.
type ResearchInput struct {
	Prompt         string   `json:"prompt" jsonschema:"the research question"`
	MaxRounds      int      `json:"max_rounds,omitempty" jsonschema:"maximum number of rounds (default from settings)"`
	MinImprovement *float64 `json:"min_improvement,omitempty" jsonschema:"minimum top relevance gain needed to run another round"`
	TopK           int      `json:"top_k,omitempty" jsonschema:"results per sub-query (default from settings)"`
}

// ResearchOutput is the output schema for the research tool.
type ResearchOutput struct {
	Prompt     string           `json:"prompt"`
	RoundsRun  int              `json:"rounds_run"`
	StopReason string           `json:"stop_reason"`
	Partial    bool             `json:"partial,omitempty"`
	SubQueries []string         `json:"sub_queries"`
	Evidence   []EvidenceOutput `json:"evidence"`

	// Context is the answer-generation prompt assembled from the evidence.
	Context string `json:"context"`
}

// IngestInput is the input schema for the ingest tool.
type IngestInput struct {
	DocumentID string            `json:"document_id" jsonschema:"stable identifier of the document"`
	Text       string            `json:"text" jsonschema:"extracted plain text of the document"`
	Replace    bool              `json:"replace,omitempty" jsonschema:"remove chunks previously stored for the document first"`
	Metadata   map[string]string `json:"metadata,omitempty" jsonschema:"metadata added to every chunk"`
}

// IngestOutput is the output schema for the ingest tool.
type IngestOutput struct {
	DocumentID string `json:"document_id"`
	Windows    int    `json:"windows"`
	Written    int    `json:"written"`
	Removed    int    `json:"removed"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Retrieve ranked evidence for a query from ingested documents and live web search",
	}, s.handleRetrieve)

	if s.ports.Research != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "research",
			Description: "Run multi-round deep research and return the gathered evidence with an answer prompt",
		}, s.handleResearch)
	}

	if s.ports.Ingestion != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest",
			Description: "Chunk, embed and store a document's text for local retrieval",
		}, s.handleIngest)
	}
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	mode := domain.RetrievalMode(input.Mode)
	if input.Mode != "" && !mode.IsValid() {
		return nil, RetrieveOutput{}, fmt.Errorf("unknown mode %q: %w", input.Mode, domain.ErrInvalidInput)
	}

	result, err := s.ports.Retrieval.Retrieve(ctx, input.Query, domain.RetrieveOptions{
		Mode:        mode,
		TopK:        input.TopK,
		DocumentIDs: input.DocumentIDs,
	})
	if err != nil {
		return nil, RetrieveOutput{}, toolError(err)
	}

	items := toEvidence(result.Items)
	return nil, RetrieveOutput{
		Query:    result.Query,
		Sources:  result.Diagnostics.Describe(),
		Degraded: result.Diagnostics.Degraded(),
		Warnings: result.Diagnostics.Warnings,
		Items:    items,
		Count:    len(items),
	}, nil
}

// handleResearch handles the research tool invocation.
func (s *Server) handleResearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ResearchInput,
) (*mcp.CallToolResult, ResearchOutput, error) {
	opts := domain.ResearchOptions{
		MaxRounds: input.MaxRounds,
		TopK:      input.TopK,
	}
	if input.MinImprovement != nil {
		opts.MinImprovement = *input.MinImprovement
		opts.MinImprovementSet = true
	}

	result, err := s.ports.Research.Research(ctx, input.Prompt, opts)
	if err != nil {
		return nil, ResearchOutput{}, toolError(err)
	}

	subQueries := make([]string, len(result.Rounds))
	for i := range result.Rounds {
		subQueries[i] = result.Rounds[i].SubQuery
	}

	return nil, ResearchOutput{
		Prompt:     result.Prompt,
		RoundsRun:  result.RoundsRun,
		StopReason: string(result.StopReason),
		Partial:    result.Partial,
		SubQueries: subQueries,
		Evidence:   toEvidence(result.Evidence),
		Context:    services.BuildAnswerPrompt(s.ports.Prompts, input.Prompt, result.Evidence),
	}, nil
}

// handleIngest handles the ingest tool invocation.
func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	var meta map[string]any
	if len(input.Metadata) > 0 {
		meta = make(map[string]any, len(input.Metadata))
		for k, v := range input.Metadata {
			meta[k] = v
		}
	}

	result, err := s.ports.Ingestion.Ingest(ctx, input.DocumentID, input.Text, domain.IngestOptions{
		Replace:  input.Replace,
		Metadata: meta,
	})
	if err != nil {
		return nil, IngestOutput{}, fmt.Errorf("ingest failed after %d of %d chunks: %w",
			result.Written, result.Windows, err)
	}

	return nil, IngestOutput{
		DocumentID: result.DocumentID,
		Windows:    result.Windows,
		Written:    result.Written,
		Removed:    result.Removed,
	}, nil
}

func toEvidence(items []domain.RerankedItem) []EvidenceOutput {
	out := make([]EvidenceOutput, len(items))
	for i := range items {
		out[i] = EvidenceOutput{
			Origin:    string(items[i].Origin),
			SourceRef: items[i].SourceRef,
			Title:     items[i].Title,
			Content:   items[i].Content,
			Relevance: items[i].Relevance,
		}
	}
	return out
}

func toolError(err error) error {
	if errors.Is(err, domain.ErrNoEvidenceFound) {
		return fmt.Errorf("%s: %w", noAnswer, err)
	}
	return err
}
