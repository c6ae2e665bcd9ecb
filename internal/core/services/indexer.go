package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lorekit/lorekit/internal/core/domain"
	"github.com/lorekit/lorekit/internal/core/ports/driven"
	"github.com/lorekit/lorekit/internal/core/ports/driving"
	"github.com/lorekit/lorekit/internal/logger"
)

// Ensure IndexerService implements the interface.
var _ driving.Indexer = (*IndexerService)(nil)

// minChunkContentLength is the floor below which a segment carries too
// little signal to be worth embedding and indexing.
const minChunkContentLength = 50

// IndexerService runs the ingestion pipeline: chunk, embed, persist,
// index.
type IndexerService struct {
	store    driven.ChunkStore
	lexical  driven.LexicalIndex
	embedder driven.EmbeddingService
	chunker  driven.Chunker
}

// NewIndexerService creates an indexer.
func NewIndexerService(
	store driven.ChunkStore,
	lexical driven.LexicalIndex,
	embedder driven.EmbeddingService,
	chunker driven.Chunker,
) *IndexerService {
	return &IndexerService{
		store:    store,
		lexical:  lexical,
		embedder: embedder,
		chunker:  chunker,
	}
}

// Ingest chunks, embeds and indexes one document. Re-pushing an
// unchanged version is detected up front and skipped, so repeated
// crawls of a stable corpus cost nothing.
func (s *IndexerService) Ingest(ctx context.Context, doc domain.Document) error {
	logger.Section("Document Ingestion")

	if doc.ID == "" {
		return fmt.Errorf("document ID is empty: %w", domain.ErrInvalidInput)
	}
	logger.Debug("Document: %s (%q, version %s)", doc.ID, doc.Title, doc.Version)

	existing, err := s.store.GetDocument(ctx, doc.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("lookup document %s: %w", doc.ID, err)
	}
	if existing != nil && doc.Version != "" && existing.Version == doc.Version {
		logger.Debug("Version %s already indexed, skipping", doc.Version)
		return domain.ErrUnchangedVersion
	}

	segments := s.splitFiltered(doc.Content)
	logger.Debug("Split into %d segment(s)", len(segments))

	embeddings, err := s.embedder.EmbedBatch(ctx, segments)
	if err != nil {
		return fmt.Errorf("embed segments: %w", err)
	}

	chunks := make([]domain.Chunk, len(segments))
	degraded := 0
	for i, segment := range segments {
		chunks[i] = domain.Chunk{
			ID:         s.chunker.ChunkID(doc.ID, i, segment),
			DocumentID: doc.ID,
			Position:   i,
			Content:    segment,
			Embedding:  embeddings[i].Vector,
			Degraded:   embeddings[i].Degraded,
		}
		if embeddings[i].Degraded {
			degraded++
		}
	}
	if degraded > 0 {
		logger.Warn("%d of %d chunk embedding(s) are degraded fallbacks", degraded, len(chunks))
	}

	// Replace any previous revision: drop the old rows and lexical
	// postings before writing the new ones.
	if existing != nil {
		oldChunks, err := s.store.GetChunks(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("load old chunks: %w", err)
		}
		for _, old := range oldChunks {
			if err := s.lexical.Remove(ctx, old.ID); err != nil {
				return fmt.Errorf("remove old chunk %s from lexical index: %w", old.ID, err)
			}
		}
		if err := s.store.DeleteByDocument(ctx, doc.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("delete old revision: %w", err)
		}
	}

	if err := s.store.SaveDocument(ctx, &doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	if err := s.store.SaveChunks(ctx, chunks); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}

	for _, chunk := range chunks {
		if err := s.lexical.Index(ctx, chunk.ID, chunk.DocumentID, chunk.Content); err != nil {
			return fmt.Errorf("index chunk %s: %w", chunk.ID, err)
		}
	}

	logger.Info("Indexed %s: %d chunk(s)", doc.ID, len(chunks))
	return nil
}

// RebuildLexical repopulates the in-memory lexical index from the
// chunk store with a restartable keyset scan.
func (s *IndexerService) RebuildLexical(ctx context.Context) error {
	logger.Section("Lexical Index Rebuild")

	total := 0
	afterID := ""
	for {
		page, err := s.store.ScanChunks(ctx, afterID, 0)
		if err != nil {
			return fmt.Errorf("scan chunks: %w", err)
		}
		if len(page) == 0 {
			break
		}
		afterID = page[len(page)-1].ID

		for _, chunk := range page {
			if err := s.lexical.Index(ctx, chunk.ID, chunk.DocumentID, chunk.Content); err != nil {
				return fmt.Errorf("index chunk %s: %w", chunk.ID, err)
			}
			total++
		}
	}

	logger.Info("Rebuilt lexical index: %d chunk(s)", total)
	return nil
}

// splitFiltered chunks content and drops segments below the minimum
// useful length. A short document still yields its single segment so
// small but real notes stay searchable.
func (s *IndexerService) splitFiltered(content string) []string {
	segments := s.chunker.Split(content)
	if len(segments) <= 1 {
		return segments
	}

	kept := segments[:0:0]
	for _, segment := range segments {
		if len(strings.TrimSpace(segment)) < minChunkContentLength {
			continue
		}
		kept = append(kept, segment)
	}
	if len(kept) == 0 {
		return segments[:1]
	}
	return kept
}
