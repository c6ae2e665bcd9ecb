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
//   - ChunkStore: Durable chunk and document persistence
//   - LexicalIndex: Inverted-index keyword search over chunk text
//   - InferenceRuntime: The supervised local model-serving process
//   - EmbeddingService: Vector embeddings. Implementations degrade to a
//     deterministic fallback rather than failing when the runtime is
//     down, so semantic search stays available.
//   - Chunker: Splits document content into overlapping segments with
//     stable, content-derived identifiers.
//   - ConfigStore: Persists user settings such as the active model.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
