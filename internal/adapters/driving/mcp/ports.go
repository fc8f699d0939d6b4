package mcp

import (
	"github.com/custodia-labs/webrage/internal/core/ports/driven"
	"github.com/custodia-labs/webrage/internal/core/ports/driving"
)

// Ports aggregates the services the MCP server exposes.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retrieval provides hybrid retrieval. Required.
	Retrieval driving.RetrievalService

	// Research runs multi-round deep research. The research tool is only
	// registered when set.
	Research driving.ResearchService

	// Ingestion stores documents. The ingest tool is only registered when set.
	Ingestion driving.IngestionService

	// Store backs the store resources.
	Store driven.VectorStore

	// Prompts supplies the answer template for research context.
	Prompts driven.PromptStore
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
