// Package domain defines the core business entities for Lorekit.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A cleaned text document delivered by the crawler
//   - Chunk: The bounded text segment that is the unit of retrieval
//   - RetrievalResult: A ranked hit produced per query
//   - RuntimeStatus: A report of the supervised inference process
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
