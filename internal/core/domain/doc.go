// Package domain defines the core entities of the WebRAGE retrieval core.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Chunk: A bounded span of document text with its embedding vector
//   - SearchResult: A candidate passage from the local store or the web
//   - WebSnippet: A normalised web search hit
//   - RerankedItem: A SearchResult scored by the reranker
//   - ResearchSession: The round history of a deep research request
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
