// Package mcp provides an MCP (Model Context Protocol) server adapter for webrage.
// It lets AI assistants retrieve evidence, run deep research and ingest
// documents through the same services as the CLI.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")
