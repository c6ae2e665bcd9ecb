// Package chunker splits document text into overlapping, size-bounded
// segments along structural boundaries.
package chunker

import (
	"strings"

	"github.com/lorekit/lorekit/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Splitter produces overlapping chunks from document content.
// Splitting is deterministic for identical input and configuration,
// which re-indexing relies on for stable chunk identity.
type Splitter struct {
	chunkSize int
	overlap   int
}

// Option configures the splitter.
type Option func(*Splitter)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// New creates a splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Keep the rune window within the store's byte ceiling, which is
	// sized for 4-byte UTF-8 runes.
	if s.chunkSize > domain.MaxChunkSizeRunes {
		s.chunkSize = domain.MaxChunkSizeRunes
	}

	// Ensure overlap doesn't exceed chunk size
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}

	return s
}

// ChunkSize returns the configured chunk size.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap returns the configured overlap.
func (s *Splitter) Overlap() int { return s.overlap }

// Split divides content into ordered overlapping segments.
// Windows prefer to end on a paragraph boundary, then a line break, then
// a word boundary, as long as the boundary falls within the tolerance
// zone at the end of the window; otherwise the cut is a hard character
// split. Every character of the input appears in at least one segment,
// and non-empty input always yields at least one segment.
func (s *Splitter) Split(content string) []string {
	if content == "" {
		return nil
	}

	runes := []rune(content)
	if len(runes) <= s.chunkSize {
		return []string{content}
	}

	// Boundaries closer to the window start than this are ignored so a
	// single early paragraph break cannot shrink chunks to slivers.
	minFill := s.chunkSize - s.chunkSize/5

	estimated := len(runes)/(s.chunkSize-s.overlap) + 1
	chunks := make([]string, 0, estimated)

	start := 0
	for start < len(runes) {
		end := start + s.chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		if cut := boundaryCut(runes[start:end], minFill); cut > 0 {
			end = start + cut
		}

		chunks = append(chunks, string(runes[start:end]))

		next := end - s.overlap
		if next <= start {
			// Guarantee forward progress for degenerate configurations.
			next = start + 1
		}
		start = next
	}

	return chunks
}

// boundaryCut finds the best structural split point in window, at or after
// minFill. Returns 0 when no acceptable boundary exists.
func boundaryCut(window []rune, minFill int) int {
	text := string(window)

	for _, sep := range []string{"\n\n", "\n", " "} {
		if idx := strings.LastIndex(text, sep); idx >= 0 {
			cut := len([]rune(text[:idx+len(sep)]))
			if cut >= minFill {
				return cut
			}
		}
	}

	return 0
}
