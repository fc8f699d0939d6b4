// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - VectorStore: Durable chunk storage with cosine similarity search
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Generates vector embeddings. Without it, only web retrieval works.
//   - WebSearcher: Live web search. Without it, only local retrieval works.
//   - Reranker: Relevance scoring. Without it, pre-rerank ordering is kept.
//   - LLMService: Query reformulation. Without it, reformulation is deterministic.
//   - PromptStore: User-editable prompt templates. Without it, embedded defaults are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
