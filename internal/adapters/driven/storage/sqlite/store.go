package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/lorekit/lorekit/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/lorekit/lorekit/internal/core/domain"
	"github.com/lorekit/lorekit/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.ChunkStore = (*Store)(nil)

// Store is the SQLite-backed chunk store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a chunk store at the specified data directory.
// If dataDir is empty, defaults to ~/.lorekit/data/corpus.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".lorekit", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "corpus.db")

	// Open database with WAL mode for better concurrency. Pragmas go in
	// the DSN because they are per-connection and database/sql pools
	// connections: a one-off Exec would only configure whichever
	// connection happened to run it.
	db, err := sql.Open("sqlite",
		dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations. The schema_migrations table doubles
// as the store's schema version tag.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// SaveDocument stores or updates a document row.
func (s *Store) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc.ID == "" {
		return domain.ErrInvalidInput
	}

	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}

	return withRetry(ctx, "save document", func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO documents (id, title, content, version, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				content = excluded.content,
				version = excluded.version,
				updated_at = excluded.updated_at
		`, doc.ID, doc.Title, doc.Content, doc.Version, doc.UpdatedAt)

		if err != nil && !isBusy(err) {
			return fmt.Errorf("saving document: %w", err)
		}
		return err
	})
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	var doc *domain.Document
	err := withRetry(ctx, "get document", func() error {
		row := s.db.QueryRowContext(ctx, `
			SELECT id, title, content, version, updated_at
			FROM documents WHERE id = ?
		`, id)

		var d domain.Document
		if err := row.Scan(&d.ID, &d.Title, &d.Content, &d.Version, &d.UpdatedAt); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound
			}
			if isBusy(err) {
				return err
			}
			return fmt.Errorf("scanning document: %w", err)
		}
		doc = &d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns all indexed documents without their content.
func (s *Store) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	var docs []domain.Document
	err := withRetry(ctx, "list documents", func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, title, version, updated_at
			FROM documents ORDER BY updated_at DESC
		`)
		if err != nil {
			if isBusy(err) {
				return err
			}
			return fmt.Errorf("querying documents: %w", err)
		}
		defer rows.Close()

		docs = docs[:0]
		for rows.Next() {
			var d domain.Document
			if err := rows.Scan(&d.ID, &d.Title, &d.Version, &d.UpdatedAt); err != nil {
				return fmt.Errorf("scanning document: %w", err)
			}
			docs = append(docs, d)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating documents: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// SaveChunks stores chunks in a single transaction so readers never see a
// partially written batch.
func (s *Store) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for i := range chunks {
		if len(chunks[i].Content) > domain.MaxChunkContentBytes {
			return fmt.Errorf("%w: chunk %s exceeds %d bytes",
				domain.ErrInvalidInput, chunks[i].ID, domain.MaxChunkContentBytes)
		}
	}

	return withRetry(ctx, "save chunks", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			if isBusy(err) {
				return err
			}
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (id, document_id, position, content, embedding, degraded)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				document_id = excluded.document_id,
				position = excluded.position,
				content = excluded.content,
				embedding = excluded.embedding,
				degraded = excluded.degraded
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for _, chunk := range chunks {
			embeddingBlob := float32SliceToBytes(chunk.Embedding)
			if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID,
				chunk.Position, chunk.Content, embeddingBlob, chunk.Degraded); err != nil {
				if isBusy(err) {
					return err
				}
				return fmt.Errorf("saving chunk: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			if isBusy(err) {
				return err
			}
			return fmt.Errorf("committing transaction: %w", err)
		}
		return nil
	})
}

// GetChunk retrieves a chunk by ID.
func (s *Store) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	var chunk *domain.Chunk
	err := withRetry(ctx, "get chunk", func() error {
		row := s.db.QueryRowContext(ctx, `
			SELECT id, document_id, position, content, embedding, degraded
			FROM chunks WHERE id = ?
		`, id)

		c, err := scanChunkRow(row)
		if err != nil {
			return err
		}
		chunk = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

// GetChunks retrieves a document's chunks ordered by position.
func (s *Store) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	err := withRetry(ctx, "get chunks", func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, document_id, position, content, embedding, degraded
			FROM chunks WHERE document_id = ?
			ORDER BY position
		`, documentID)
		if err != nil {
			if isBusy(err) {
				return err
			}
			return fmt.Errorf("querying chunks: %w", err)
		}
		defer rows.Close()

		chunks = chunks[:0]
		return scanChunks(rows, &chunks)
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// DeleteByDocument removes a document and all of its chunks in one
// transaction. The chunks are deleted explicitly rather than left to
// ON DELETE CASCADE so the two mappings cannot diverge even on a
// connection where the foreign_keys pragma is off.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	return withRetry(ctx, "delete by document", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			if isBusy(err) {
				return err
			}
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
			if isBusy(err) {
				return err
			}
			return fmt.Errorf("deleting chunks: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM documents WHERE id = ?", documentID); err != nil {
			if isBusy(err) {
				return err
			}
			return fmt.Errorf("deleting document: %w", err)
		}

		if err := tx.Commit(); err != nil {
			if isBusy(err) {
				return err
			}
			return fmt.Errorf("committing transaction: %w", err)
		}
		return nil
	})
}

// ScanChunks pages through all chunks in ID order. Callers resume a scan
// by passing the last seen ID, which makes lexical index rebuilds
// restartable after interruption.
func (s *Store) ScanChunks(ctx context.Context, afterID string, limit int) ([]domain.Chunk, error) {
	if limit <= 0 {
		limit = 256
	}

	var chunks []domain.Chunk
	err := withRetry(ctx, "scan chunks", func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, document_id, position, content, embedding, degraded
			FROM chunks WHERE id > ?
			ORDER BY id
			LIMIT ?
		`, afterID, limit)
		if err != nil {
			if isBusy(err) {
				return err
			}
			return fmt.Errorf("scanning chunks: %w", err)
		}
		defer rows.Close()

		chunks = chunks[:0]
		return scanChunks(rows, &chunks)
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// VerifyIntegrity returns the IDs of orphaned chunks: present in the chunk
// table but unreachable from any document. A non-empty result is a
// corruption signal.
func (s *Store) VerifyIntegrity(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id FROM chunks c
		LEFT JOIN documents d ON d.id = c.document_id
		WHERE d.id IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("querying orphans: %w", err)
	}
	defer rows.Close()

	var orphans []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning orphan: %w", err)
		}
		orphans = append(orphans, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orphans: %w", err)
	}
	return orphans, nil
}

// CountChunks reports the number of stored chunks.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	var count int
	err := withRetry(ctx, "count chunks", func() error {
		return s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// scanChunks scans all chunk rows into dst.
func scanChunks(rows *sql.Rows, dst *[]domain.Chunk) error {
	for rows.Next() {
		var chunk domain.Chunk
		var embeddingBlob []byte
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Position,
			&chunk.Content, &embeddingBlob, &chunk.Degraded); err != nil {
			return fmt.Errorf("scanning chunk: %w", err)
		}
		chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
		*dst = append(*dst, chunk)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating chunks: %w", err)
	}
	return nil
}

// scanChunkRow scans a chunk from *sql.Row.
func scanChunkRow(row *sql.Row) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var embeddingBlob []byte

	if err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Position,
		&chunk.Content, &embeddingBlob, &chunk.Degraded); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		if isBusy(err) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
	return &chunk, nil
}
