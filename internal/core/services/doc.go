// Package services implements the driving port interfaces.
// Services contain the core retrieval logic and orchestrate
// calls to driven ports (adapters).
//
// Ingestion composes the chunker, embedding service and vector store.
// Retrieval fans out to the vector store and web search, merges the
// candidates and reranks them. Research runs retrieval over several rounds
// of reformulated sub-queries.
//
// Services receive every dependency through their constructors and keep
// no package-level state.
package services
