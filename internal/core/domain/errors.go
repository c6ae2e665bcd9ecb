package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnchangedVersion indicates a document push carried a version that
	// is already indexed. The ingestion pipeline skips it.
	ErrUnchangedVersion = errors.New("document version unchanged")

	// ErrStoreBusy indicates the chunk store stayed locked by another live
	// handle after all bounded retries. Transient: callers should retry
	// the operation, never recreate the store.
	ErrStoreBusy = errors.New("chunk store busy")

	// ErrEmbeddingUnavailable indicates neither the runtime embedding call
	// nor the deterministic fallback could produce a vector.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrRetrievalUnavailable indicates both the semantic and the lexical
	// search failed. Generation may still proceed without context.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrRuntimeUnhealthy indicates the inference process is down after an
	// automatic restart attempt. Actionable: restart or reinstall.
	ErrRuntimeUnhealthy = errors.New("inference runtime unhealthy: restart or reinstall required")

	// ErrCorruptedDownload indicates a downloaded installer artifact failed
	// the plausibility check and was rejected before execution.
	ErrCorruptedDownload = errors.New("downloaded installer appears corrupted: retry the download")

	// ErrRuntimeTerminated indicates the supervisor has shut down and no
	// further runtime calls are possible.
	ErrRuntimeTerminated = errors.New("inference runtime terminated")
)
