package chunker

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/lorekit/lorekit/internal/core/ports/driven"
)

// Ensure Splitter implements the chunker port.
var _ driven.Chunker = (*Splitter)(nil)

// chunkNamespace is the UUIDv5 namespace for chunk identity.
var chunkNamespace = uuid.MustParse("8a6e1a2c-4f7b-4d57-9f43-28f1d8b7c0e5")

// ID derives a chunk's identifier from its document, position and text.
// Identity is content-addressed: re-indexing an unchanged segment yields
// the same ID, while any text change produces a new chunk.
func ID(documentID string, position int, content string) string {
	name := fmt.Sprintf("%s\x00%d\x00%s", documentID, position, content)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

// ChunkID implements the chunker port on Splitter.
func (s *Splitter) ChunkID(documentID string, position int, content string) string {
	return ID(documentID, position, content)
}
