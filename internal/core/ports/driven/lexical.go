package driven

import "context"

// LexicalIndex provides keyword search over chunk text.
// Backed by an in-memory inverted index rebuilt from the chunk store.
type LexicalIndex interface {
	// Index adds or updates a chunk in the index.
	Index(ctx context.Context, chunkID, documentID, content string) error

	// Remove deletes a chunk from the index.
	Remove(ctx context.Context, chunkID string) error

	// Search returns chunk IDs matching the query, best first.
	Search(ctx context.Context, query string, limit int) ([]LexicalHit, error)

	// Len reports the number of indexed chunks.
	Len() int
}

// LexicalHit is a keyword search result.
type LexicalHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the token-overlap relevance score. Scale is
	// method-internal; callers normalise before fusing.
	Score float64
}
