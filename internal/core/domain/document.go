package domain

import "time"

// Chunk size bounds. The chunker windows text in runes while the store
// bounds rows in bytes, so the byte ceiling must hold for the largest
// allowed rune window even when every rune encodes to 4 UTF-8 bytes.
const (
	// MaxChunkSizeRunes is the largest configurable chunker window.
	MaxChunkSizeRunes = 2048

	// MaxChunkContentBytes bounds the byte length of a stored chunk.
	// Chunks larger than this indicate a misconfigured chunker.
	MaxChunkContentBytes = MaxChunkSizeRunes * 4
)

// Document represents a cleaned text document delivered by the crawler.
// It is immutable once chunked; an update with a new version triggers a
// full re-ingestion.
type Document struct {
	// ID is the stable source identifier (e.g. a wiki page slug).
	ID string

	// Title is the human-readable title.
	Title string

	// Content is the full cleaned text. Not persisted per chunk; kept on
	// the document row for re-chunking.
	Content string

	// Version identifies the source revision. Re-ingestion is skipped
	// when the version is unchanged.
	Version string

	// UpdatedAt is when the document was last (re-)ingested.
	UpdatedAt time.Time
}

// Chunk is the unit of retrieval: a bounded text segment of a document
// with its embedding vector.
type Chunk struct {
	// ID is derived deterministically from (DocumentID, Position, Content)
	// so an unchanged segment keeps its identity across re-indexing.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Position is the ordinal position within the document.
	Position int

	// Content is the text segment.
	Content string

	// Embedding is the vector representation for semantic search.
	// Its length always matches the configured embedder dimensionality.
	Embedding []float32

	// Degraded marks the embedding as a hash-derived fallback produced
	// while the inference runtime was unavailable.
	Degraded bool
}
