package driving

import (
	"context"

	"github.com/lorekit/lorekit/internal/core/domain"
)

// Indexer runs the ingestion pipeline: chunk, embed, persist, index.
type Indexer interface {
	// Ingest chunks and indexes a document pushed by the crawler.
	// Returns domain.ErrUnchangedVersion when the document's version is
	// already indexed.
	Ingest(ctx context.Context, doc domain.Document) error

	// RebuildLexical repopulates the lexical index from the chunk store.
	RebuildLexical(ctx context.Context) error
}
