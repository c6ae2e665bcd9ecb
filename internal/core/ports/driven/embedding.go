package driven

import "context"

// Embedding is a single embedding result.
type Embedding struct {
	// Vector is the fixed-dimensionality embedding.
	Vector []float32

	// Degraded is true when the vector is a deterministic hash-derived
	// fallback produced while the inference runtime was unavailable.
	// Semantic quality is reduced; callers should warn the user.
	Degraded bool
}

// EmbeddingService maps text segments to fixed-length vectors.
type EmbeddingService interface {
	// Embed produces an embedding for one text segment.
	Embed(ctx context.Context, text string) (Embedding, error)

	// EmbedBatch produces embeddings for multiple segments, respecting
	// the configured batch bound internally.
	// Returns domain.ErrEmbeddingUnavailable only when the input itself
	// is unusable; runtime failures degrade to fallback vectors instead.
	EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
