package driven

// Chunker splits document content into overlapping segments with
// stable identity.
type Chunker interface {
	// Split divides content into segments honouring the configured
	// size, overlap and boundary preferences. Segments jointly cover
	// every character of the input.
	Split(content string) []string

	// ChunkID derives the deterministic identity of a segment from its
	// document, position and content. Unchanged text keeps its ID
	// across re-indexing runs.
	ChunkID(documentID string, position int, content string) string
}
