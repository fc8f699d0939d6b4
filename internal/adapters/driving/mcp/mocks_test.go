package mcp

import (
	"context"

	"github.com/custodia-labs/webrage/internal/core/domain"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	result  *domain.RetrievalResult
	err     error
	gotOpts domain.RetrieveOptions
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context,
	query string,
	opts domain.RetrieveOptions,
) (*domain.RetrievalResult, error) {
	m.gotOpts = opts
	if m.result == nil && m.err == nil {
		return &domain.RetrievalResult{Query: query}, nil
	}
	return m.result, m.err
}

// mockResearchService is a mock implementation of driving.ResearchService.
type mockResearchService struct {
	result  *domain.ResearchResult
	err     error
	gotOpts domain.ResearchOptions
}

func (m *mockResearchService) Research(
	_ context.Context,
	_ string,
	opts domain.ResearchOptions,
) (*domain.ResearchResult, error) {
	m.gotOpts = opts
	return m.result, m.err
}

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	result  domain.IngestResult
	err     error
	gotOpts domain.IngestOptions
}

func (m *mockIngestionService) Ingest(
	_ context.Context,
	_, _ string,
	opts domain.IngestOptions,
) (domain.IngestResult, error) {
	m.gotOpts = opts
	return m.result, m.err
}
