package driving

import (
	"context"

	"github.com/lorekit/lorekit/internal/core/domain"
)

// Retriever answers queries with ranked context chunks.
type Retriever interface {
	// Retrieve returns at most limit results sorted by fused score
	// descending, ties broken by document recency then chunk position.
	// Returns domain.ErrRetrievalUnavailable only when both search
	// methods fail; a single failure degrades to the surviving method.
	Retrieve(ctx context.Context, query string, limit int) ([]domain.RetrievalResult, error)
}
