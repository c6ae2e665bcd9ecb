// Package sqlite provides the durable chunk store.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO, enabling easy cross-compilation. A single database file
// holds the document rows, the chunk rows and the schema version tag, so the
// (chunk id -> chunk) and (document id -> chunk ids) mappings can never
// diverge across a crash: chunks carry a foreign key to their document and
// are written in one transaction.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory and applied on open.
//
// # Data Location
//
// By default, the database is stored at ~/.lorekit/data/corpus.db
//
// # Concurrency
//
// Indexing and querying share this store from concurrent tasks. SQLite's
// WAL mode handles readers; write contention surfaces as SQLITE_BUSY and is
// retried with bounded exponential backoff. When retries are exhausted the
// operation fails with domain.ErrStoreBusy - the store is never deleted and
// recreated to clear a lock, because that silently loses data.
package sqlite
