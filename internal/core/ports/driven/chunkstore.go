package driven

import (
	"context"

	"github.com/lorekit/lorekit/internal/core/domain"
)

// ChunkStore provides durable persistence for documents and their chunks.
// Implementations must keep the chunk table and the document mapping
// consistent: a chunk whose document row is missing is a corruption signal.
//
// Operations that hit transient lock contention retry internally with
// bounded backoff and return domain.ErrStoreBusy only when retries are
// exhausted. Destructive recovery (recreating the store) is forbidden.
type ChunkStore interface {
	// SaveDocument stores or updates a document row.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns all indexed documents.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// SaveChunks stores chunks atomically: readers never observe a
	// partially written batch.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetChunk retrieves a chunk by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// GetChunks returns a document's chunks ordered by position.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// DeleteByDocument removes a document and all of its chunks.
	DeleteByDocument(ctx context.Context, documentID string) error

	// ScanChunks pages through all chunks in ID order, returning up to
	// limit chunks with IDs greater than afterID. The scan is restartable:
	// callers resume by passing the last seen ID.
	ScanChunks(ctx context.Context, afterID string, limit int) ([]domain.Chunk, error)

	// Close releases the store handle.
	Close() error
}
