// Package lexical provides an in-memory inverted index for keyword
// search over chunk text. The index is rebuilt from the chunk store on
// startup and kept current by the ingestion pipeline.
package lexical

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/lorekit/lorekit/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.LexicalIndex = (*Index)(nil)

// posting records one chunk's term statistics.
type posting struct {
	documentID string
	termCounts map[string]int
	length     int
}

// Index is a thread-safe inverted index: indexing and querying run as
// concurrent tasks.
type Index struct {
	mu sync.RWMutex

	// terms maps a token to the set of chunk IDs containing it.
	terms map[string]map[string]struct{}

	// postings maps a chunk ID to its term statistics.
	postings map[string]*posting
}

// New creates an empty index.
func New() *Index {
	return &Index{
		terms:    make(map[string]map[string]struct{}),
		postings: make(map[string]*posting),
	}
}

// Index adds or updates a chunk.
func (ix *Index) Index(_ context.Context, chunkID, documentID, content string) error {
	tokens := Tokenize(content)

	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeLocked(chunkID)

	ix.postings[chunkID] = &posting{
		documentID: documentID,
		termCounts: counts,
		length:     len(tokens),
	}
	for tok := range counts {
		set, ok := ix.terms[tok]
		if !ok {
			set = make(map[string]struct{})
			ix.terms[tok] = set
		}
		set[chunkID] = struct{}{}
	}

	return nil
}

// Remove deletes a chunk from the index.
func (ix *Index) Remove(_ context.Context, chunkID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(chunkID)
	return nil
}

// removeLocked drops a chunk's postings. Caller must hold the write lock.
func (ix *Index) removeLocked(chunkID string) {
	p, ok := ix.postings[chunkID]
	if !ok {
		return
	}
	for tok := range p.termCounts {
		delete(ix.terms[tok], chunkID)
		if len(ix.terms[tok]) == 0 {
			delete(ix.terms, tok)
		}
	}
	delete(ix.postings, chunkID)
}

// Search scores chunks by query-token overlap weighted by inverse
// document frequency, best first.
func (ix *Index) Search(_ context.Context, query string, limit int) ([]driven.LexicalHit, error) {
	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 || limit <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	total := len(ix.postings)
	if total == 0 {
		return nil, nil
	}

	scores := make(map[string]float64)
	for _, tok := range queryTokens {
		set, ok := ix.terms[tok]
		if !ok {
			continue
		}
		// Rare terms carry more signal than ubiquitous ones.
		idf := math.Log(1 + float64(total)/float64(len(set)))
		for chunkID := range set {
			p := ix.postings[chunkID]
			tf := float64(p.termCounts[tok]) / float64(p.length)
			scores[chunkID] += idf * (1 + tf)
		}
	}

	hits := make([]driven.LexicalHit, 0, len(scores))
	for chunkID, score := range scores {
		hits = append(hits, driven.LexicalHit{ChunkID: chunkID, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}

	return hits, nil
}

// Len reports the number of indexed chunks.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.postings)
}

// Tokenize lowercases text and splits it into letter/digit runs.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
