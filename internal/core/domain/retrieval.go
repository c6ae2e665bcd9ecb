package domain

import "time"

// RetrievalSource flags which search method produced a result.
type RetrievalSource string

// Retrieval sources.
const (
	SourceSemantic RetrievalSource = "semantic"
	SourceLexical  RetrievalSource = "lexical"
	SourceBoth     RetrievalSource = "both"
)

// RetrievalResult is a single ranked hit from hybrid retrieval.
// Ephemeral: produced per query, never persisted.
type RetrievalResult struct {
	// Chunk is the matched chunk.
	Chunk Chunk

	// DocumentTitle is the title of the chunk's parent document.
	DocumentTitle string

	// DocumentUpdatedAt is the parent document's last update time,
	// used to break score ties in favour of fresher content.
	DocumentUpdatedAt time.Time

	// Score is the fused relevance score; higher is more relevant.
	Score float64

	// Source records which method(s) matched the chunk.
	Source RetrievalSource
}

// RetrievalConfig tunes hybrid retrieval.
type RetrievalConfig struct {
	// SemanticWeight and LexicalWeight scale the normalised method scores
	// before fusion. Defaults are equal. Weights are fixed per
	// configuration; per-query adaptive weighting is a future extension.
	SemanticWeight float64
	LexicalWeight  float64

	// DocumentCap limits how many chunks a single document may contribute
	// to a result set.
	DocumentCap int
}

// DefaultRetrievalConfig returns equal fusion weights and a per-document
// cap of 2.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		SemanticWeight: 0.5,
		LexicalWeight:  0.5,
		DocumentCap:    2,
	}
}

// Validate checks the configuration bounds.
func (c RetrievalConfig) Validate() error {
	if c.SemanticWeight < 0 || c.LexicalWeight < 0 {
		return ErrInvalidInput
	}
	if c.SemanticWeight+c.LexicalWeight == 0 {
		return ErrInvalidInput
	}
	if c.DocumentCap <= 0 {
		return ErrInvalidInput
	}
	return nil
}
