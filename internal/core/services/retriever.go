package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lorekit/lorekit/internal/core/domain"
	"github.com/lorekit/lorekit/internal/core/ports/driven"
	"github.com/lorekit/lorekit/internal/core/ports/driving"
	"github.com/lorekit/lorekit/internal/logger"
)

// Ensure RetrieverService implements the interface.
var _ driving.Retriever = (*RetrieverService)(nil)

// Retrieval defaults.
const (
	defaultRetrieveLimit = 5

	// scanPageSize is the chunk store page size for the semantic linear
	// scan.
	scanPageSize = 256

	// scanWorkers bounds concurrent page scoring during the linear scan.
	scanWorkers = 4
)

// methodHit is an intermediate per-method result before fusion.
type methodHit struct {
	chunkID string
	score   float64
}

// RetrieverService provides hybrid retrieval over the indexed corpus.
type RetrieverService struct {
	store    driven.ChunkStore
	lexical  driven.LexicalIndex
	embedder driven.EmbeddingService
	cfg      domain.RetrievalConfig
}

// NewRetrieverService creates a hybrid retriever. A zero config is
// replaced with defaults.
func NewRetrieverService(
	store driven.ChunkStore,
	lexical driven.LexicalIndex,
	embedder driven.EmbeddingService,
	cfg domain.RetrievalConfig,
) (*RetrieverService, error) {
	if cfg == (domain.RetrievalConfig{}) {
		cfg = domain.DefaultRetrievalConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("retrieval config: %w", err)
	}

	return &RetrieverService{
		store:    store,
		lexical:  lexical,
		embedder: embedder,
		cfg:      cfg,
	}, nil
}

// Retrieve runs semantic and lexical search in parallel, fuses the
// normalised scores and diversifies the result set. A single failing
// method degrades to the survivor; only both failing is an error.
func (s *RetrieverService) Retrieve(ctx context.Context, query string, limit int) ([]domain.RetrievalResult, error) {
	logger.Section("Hybrid Retrieval")

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.RetrievalResult{}, nil
	}

	if limit <= 0 {
		limit = defaultRetrieveLimit
	}

	// Fetch more candidates per method than requested so fusion and
	// diversification have something to choose from.
	candidateLimit := limit * 2
	logger.Debug("Query: %q, limit: %d, candidates per method: %d", query, limit, candidateLimit)

	var semanticHits, lexicalHits []methodHit
	var semanticErr, lexicalErr error

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		semanticHits, semanticErr = s.semanticSearch(ctx, query, candidateLimit)
	}()
	go func() {
		defer wg.Done()
		lexicalHits, lexicalErr = s.lexicalSearch(ctx, query, candidateLimit)
	}()
	wg.Wait()

	if semanticErr != nil && lexicalErr != nil {
		logger.Warn("Both retrieval methods failed: semantic=%v, lexical=%v", semanticErr, lexicalErr)
		return nil, fmt.Errorf("semantic=%v, lexical=%v: %w",
			semanticErr, lexicalErr, domain.ErrRetrievalUnavailable)
	}
	if semanticErr != nil {
		logger.Warn("Semantic search failed, degrading to lexical only: %v", semanticErr)
	}
	if lexicalErr != nil {
		logger.Warn("Lexical search failed, degrading to semantic only: %v", lexicalErr)
	}

	logger.Debug("Candidates: %d semantic, %d lexical", len(semanticHits), len(lexicalHits))

	fused := s.fuse(normalizeScores(semanticHits), normalizeScores(lexicalHits))
	results, err := s.hydrate(ctx, fused)
	if err != nil {
		return nil, fmt.Errorf("hydrate results: %w", err)
	}

	sortResults(results)
	results = diversify(results, s.cfg.DocumentCap)

	if len(results) > limit {
		results = results[:limit]
	}
	logger.Info("Retrieved %d result(s)", len(results))
	return results, nil
}

// semanticSearch embeds the query and linearly scans stored chunk
// vectors for cosine similarity. Pages are scored concurrently.
func (s *RetrieverService) semanticSearch(ctx context.Context, query string, limit int) ([]methodHit, error) {
	embedded, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if embedded.Degraded {
		logger.Warn("Query embedding is a degraded fallback; semantic ranking quality reduced")
	}

	var mu sync.Mutex
	var hits []methodHit

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanWorkers)

	afterID := ""
	for {
		page, err := s.store.ScanChunks(ctx, afterID, scanPageSize)
		if err != nil {
			return nil, fmt.Errorf("scan chunks: %w", err)
		}
		if len(page) == 0 {
			break
		}
		afterID = page[len(page)-1].ID

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			local := make([]methodHit, 0, len(page))
			for _, chunk := range page {
				if len(chunk.Embedding) != len(embedded.Vector) {
					continue
				}
				local = append(local, methodHit{
					chunkID: chunk.ID,
					score:   cosineSimilarity(embedded.Vector, chunk.Embedding),
				})
			}

			mu.Lock()
			hits = append(hits, local...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].chunkID < hits[j].chunkID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// lexicalSearch queries the inverted index.
func (s *RetrieverService) lexicalSearch(ctx context.Context, query string, limit int) ([]methodHit, error) {
	found, err := s.lexical.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	hits := make([]methodHit, len(found))
	for i, hit := range found {
		hits[i] = methodHit{chunkID: hit.ChunkID, score: hit.Score}
	}
	return hits, nil
}

// fusedHit carries the combined score and the contributing methods.
type fusedHit struct {
	score  float64
	source domain.RetrievalSource
}

// fuse combines normalised per-method scores with the configured
// weights and records which methods contributed.
func (s *RetrieverService) fuse(semantic, lexical []methodHit) map[string]fusedHit {
	totalWeight := s.cfg.SemanticWeight + s.cfg.LexicalWeight
	semanticWeight := s.cfg.SemanticWeight / totalWeight
	lexicalWeight := s.cfg.LexicalWeight / totalWeight

	fused := make(map[string]fusedHit, len(semantic)+len(lexical))
	for _, hit := range semantic {
		fused[hit.chunkID] = fusedHit{
			score:  semanticWeight * hit.score,
			source: domain.SourceSemantic,
		}
	}
	for _, hit := range lexical {
		entry, ok := fused[hit.chunkID]
		if ok {
			entry.score += lexicalWeight * hit.score
			entry.source = domain.SourceBoth
		} else {
			entry = fusedHit{
				score:  lexicalWeight * hit.score,
				source: domain.SourceLexical,
			}
		}
		fused[hit.chunkID] = entry
	}
	return fused
}

// hydrate loads chunks and parent documents for fused hits, skipping
// anything deleted since the candidate lists were built.
func (s *RetrieverService) hydrate(ctx context.Context, fused map[string]fusedHit) ([]domain.RetrievalResult, error) {
	results := make([]domain.RetrievalResult, 0, len(fused))
	docs := make(map[string]*domain.Document)

	for chunkID, hit := range fused {
		chunk, err := s.store.GetChunk(ctx, chunkID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get chunk %s: %w", chunkID, err)
		}

		doc, ok := docs[chunk.DocumentID]
		if !ok {
			doc, err = s.store.GetDocument(ctx, chunk.DocumentID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return nil, fmt.Errorf("get document %s: %w", chunk.DocumentID, err)
			}
			docs[chunk.DocumentID] = doc
		}

		results = append(results, domain.RetrievalResult{
			Chunk:             *chunk,
			DocumentTitle:     doc.Title,
			DocumentUpdatedAt: doc.UpdatedAt,
			Score:             hit.score,
			Source:            hit.source,
		})
	}
	return results, nil
}

// sortResults orders by fused score descending; ties break by document
// recency, then by chunk position within the document.
func sortResults(results []domain.RetrievalResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].DocumentUpdatedAt.Equal(results[j].DocumentUpdatedAt) {
			return results[i].DocumentUpdatedAt.After(results[j].DocumentUpdatedAt)
		}
		return results[i].Chunk.Position < results[j].Chunk.Position
	})
}

// normalizeScores rescales method scores to [0,1] with min-max
// normalisation so different scoring scales fuse comparably. A
// constant list maps to all ones.
func normalizeScores(hits []methodHit) []methodHit {
	if len(hits) == 0 {
		return hits
	}

	minScore, maxScore := hits[0].score, hits[0].score
	for _, h := range hits[1:] {
		if h.score < minScore {
			minScore = h.score
		}
		if h.score > maxScore {
			maxScore = h.score
		}
	}

	normalized := make([]methodHit, len(hits))
	for i, h := range hits {
		score := 1.0
		if maxScore > minScore {
			score = (h.score - minScore) / (maxScore - minScore)
		}
		normalized[i] = methodHit{chunkID: h.chunkID, score: score}
	}
	return normalized
}

// diversify greedily caps how many chunks a single document may
// contribute, preserving the incoming order.
func diversify(results []domain.RetrievalResult, documentCap int) []domain.RetrievalResult {
	if documentCap <= 0 {
		return results
	}

	perDoc := make(map[string]int)
	diversified := results[:0:0]
	for _, r := range results {
		if perDoc[r.Chunk.DocumentID] >= documentCap {
			continue
		}
		perDoc[r.Chunk.DocumentID]++
		diversified = append(diversified, r)
	}
	return diversified
}

// cosineSimilarity computes the cosine of the angle between two equal
// length vectors. Zero vectors score zero.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
