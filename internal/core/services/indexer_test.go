package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekit/lorekit/internal/chunker"
	"github.com/lorekit/lorekit/internal/core/domain"
	"github.com/lorekit/lorekit/internal/lexical"
)

func newTestIndexer(t *testing.T) (*IndexerService, *memStore, *lexical.Index) {
	t.Helper()

	store := newMemStore()
	index := lexical.New()
	embedder := &scriptedEmbedder{defaultVec: []float32{0.5, 0.5, 0}}
	split := chunker.New(chunker.WithChunkSize(100), chunker.WithOverlap(20))

	return NewIndexerService(store, index, embedder, split), store, index
}

func loreDocument(version string) domain.Document {
	return domain.Document{
		ID:      "copper-ore",
		Title:   "Copper Ore",
		Version: version,
		Content: strings.Repeat("Copper ore is mined from surface deposits and smelted into ingots. ", 5),
		UpdatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestIndexer_Ingest(t *testing.T) {
	indexer, store, index := newTestIndexer(t)
	ctx := context.Background()

	require.NoError(t, indexer.Ingest(ctx, loreDocument("v1")))

	doc, err := store.GetDocument(ctx, "copper-ore")
	require.NoError(t, err)
	assert.Equal(t, "v1", doc.Version)

	chunks, err := store.GetChunks(ctx, "copper-ore")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Position)
		assert.NotEmpty(t, chunk.Embedding)
	}

	assert.Equal(t, len(chunks), index.Len())
}

func TestIndexer_IngestEmptyID(t *testing.T) {
	indexer, _, _ := newTestIndexer(t)

	err := indexer.Ingest(context.Background(), domain.Document{Content: "text"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndexer_UnchangedVersionSkipped(t *testing.T) {
	indexer, store, _ := newTestIndexer(t)
	ctx := context.Background()

	require.NoError(t, indexer.Ingest(ctx, loreDocument("v1")))
	before, err := store.GetChunks(ctx, "copper-ore")
	require.NoError(t, err)

	err = indexer.Ingest(ctx, loreDocument("v1"))
	assert.ErrorIs(t, err, domain.ErrUnchangedVersion)

	after, err := store.GetChunks(ctx, "copper-ore")
	require.NoError(t, err)
	assert.Equal(t, before, after, "skipped ingestion must not touch the store")
}

func TestIndexer_ReingestSameContentKeepsChunkIDs(t *testing.T) {
	indexer, store, _ := newTestIndexer(t)
	ctx := context.Background()

	require.NoError(t, indexer.Ingest(ctx, loreDocument("v1")))
	before, err := store.GetChunks(ctx, "copper-ore")
	require.NoError(t, err)

	// New version, identical text: deterministic identity keeps IDs.
	require.NoError(t, indexer.Ingest(ctx, loreDocument("v2")))
	after, err := store.GetChunks(ctx, "copper-ore")
	require.NoError(t, err)

	require.Equal(t, len(before), len(after))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
	}
}

func TestIndexer_ChangedContentReplacesChunks(t *testing.T) {
	indexer, store, index := newTestIndexer(t)
	ctx := context.Background()

	require.NoError(t, indexer.Ingest(ctx, loreDocument("v1")))
	before, err := store.GetChunks(ctx, "copper-ore")
	require.NoError(t, err)

	changed := loreDocument("v2")
	changed.Content = strings.Repeat("Tin ore replaces copper in this revision of the page entirely. ", 5)
	require.NoError(t, indexer.Ingest(ctx, changed))

	after, err := store.GetChunks(ctx, "copper-ore")
	require.NoError(t, err)
	require.NotEmpty(t, after)

	beforeIDs := make(map[string]bool)
	for _, c := range before {
		beforeIDs[c.ID] = true
	}
	for _, c := range after {
		assert.False(t, beforeIDs[c.ID], "changed content must produce new chunk identities")
	}

	// Old postings are gone: only the new chunks remain indexed.
	assert.Equal(t, len(after), index.Len())
}

func TestIndexer_ShortSegmentsFiltered(t *testing.T) {
	indexer, store, _ := newTestIndexer(t)
	ctx := context.Background()

	// 120 characters with no boundaries: splits into a 100-char window
	// plus a short tail that falls under the content floor.
	doc := domain.Document{
		ID:      "stub",
		Title:   "Stub",
		Version: "v1",
		Content: strings.Repeat("x", 120),
	}
	require.NoError(t, indexer.Ingest(ctx, doc))

	chunks, err := store.GetChunks(ctx, "stub")
	require.NoError(t, err)
	for _, chunk := range chunks {
		assert.GreaterOrEqual(t, len(chunk.Content), minChunkContentLength)
	}
}

func TestIndexer_TinyDocumentStillIndexed(t *testing.T) {
	indexer, store, _ := newTestIndexer(t)
	ctx := context.Background()

	doc := domain.Document{ID: "note", Title: "Note", Version: "v1", Content: "short note"}
	require.NoError(t, indexer.Ingest(ctx, doc))

	chunks, err := store.GetChunks(ctx, "note")
	require.NoError(t, err)
	require.Len(t, chunks, 1, "a document below the floor keeps its single segment")
	assert.Equal(t, "short note", chunks[0].Content)
}

func TestIndexer_EmbedFailurePropagates(t *testing.T) {
	store := newMemStore()
	index := lexical.New()
	embedder := &scriptedEmbedder{err: errors.New("cancelled")}
	split := chunker.New()
	indexer := NewIndexerService(store, index, embedder, split)

	err := indexer.Ingest(context.Background(), loreDocument("v1"))
	require.Error(t, err)

	_, err = store.GetDocument(context.Background(), "copper-ore")
	assert.ErrorIs(t, err, domain.ErrNotFound, "nothing may be stored when embedding fails")
}

func TestIndexer_RebuildLexical(t *testing.T) {
	indexer, store, _ := newTestIndexer(t)
	ctx := context.Background()

	require.NoError(t, indexer.Ingest(ctx, loreDocument("v1")))
	chunks, err := store.GetChunks(ctx, "copper-ore")
	require.NoError(t, err)

	// Fresh index, as after a process restart.
	fresh := lexical.New()
	embedder := &scriptedEmbedder{defaultVec: []float32{1, 0, 0}}
	rebuilt := NewIndexerService(store, fresh, embedder, chunker.New())

	require.NoError(t, rebuilt.RebuildLexical(ctx))
	assert.Equal(t, len(chunks), fresh.Len())
}
