package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// SQLiteChunkStore implements ChunkStore backed by SQLite.
// Keyword matching uses LIKE against lowercased content, which is the
// substring semantics the keyword engine contract requires.
type SQLiteChunkStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// NewSQLiteChunkStore opens (or creates) a chunk store at path.
// Pass ":memory:" for an in-process, non-persistent store.
func NewSQLiteChunkStore(path string) (*SQLiteChunkStore, error) {
	dsn := path
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", dir, err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open chunk store: %w", err)
	}

	// Single writer avoids lock contention with modernc.org/sqlite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN pragma params may be ignored by modernc.org/sqlite; set explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &SQLiteChunkStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteChunkStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id            TEXT PRIMARY KEY,
		document_id   TEXT NOT NULL,
		content       TEXT NOT NULL,
		content_lower TEXT NOT NULL,
		chunk_index   INTEGER NOT NULL,
		document_name TEXT NOT NULL DEFAULT '',
		original_name TEXT NOT NULL DEFAULT '',
		mime_type     TEXT NOT NULL DEFAULT '',
		page_number   INTEGER NOT NULL DEFAULT 0,
		start_char    INTEGER NOT NULL DEFAULT 0,
		end_char      INTEGER NOT NULL DEFAULT 0,
		created_at    INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, chunk_index);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveChunks stores chunks in a single transaction. Existing IDs are replaced.
func (s *SQLiteChunkStore) SaveChunks(ctx context.Context, chunks []*DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("chunk store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks
		(id, document_id, content, content_lower, chunk_index,
		 document_name, original_name, mime_type, page_number, start_char, end_char, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.DocumentID, c.Content, strings.ToLower(c.Content), c.ChunkIndex,
			c.Metadata.DocumentName, c.Metadata.OriginalName, c.Metadata.MimeType,
			c.Metadata.PageNumber, c.Metadata.StartChar, c.Metadata.EndChar,
			createdAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// Match returns chunks containing pattern, case-insensitively.
func (s *SQLiteChunkStore) Match(ctx context.Context, pattern string, limit int) ([]*DocumentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("chunk store is closed")
	}

	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return []*DocumentChunk{}, nil
	}

	query := `
		SELECT id, document_id, content, chunk_index,
		       document_name, original_name, mime_type, page_number, start_char, end_char, created_at
		FROM chunks
		WHERE content_lower LIKE ? ESCAPE '\'
		ORDER BY document_id, chunk_index`
	args := []any{"%" + escapeLike(pattern) + "%"}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("match chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanChunks(rows)
}

// ByID returns a single chunk or ErrChunkNotFound.
func (s *SQLiteChunkStore) ByID(ctx context.Context, id string) (*DocumentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("chunk store is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, content, chunk_index,
		       document_name, original_name, mime_type, page_number, start_char, end_char, created_at
		FROM chunks WHERE id = ?`, id)

	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, ErrChunkNotFound
	}
	return c, err
}

// ByDocumentID returns all chunks of a document ordered by ChunkIndex.
func (s *SQLiteChunkStore) ByDocumentID(ctx context.Context, documentID string) ([]*DocumentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("chunk store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, content, chunk_index,
		       document_name, original_name, mime_type, page_number, start_char, end_char, created_at
		FROM chunks WHERE document_id = ? ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, fmt.Errorf("chunks by document: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanChunks(rows)
}

// DeleteDocument removes all chunks of a document.
func (s *SQLiteChunkStore) DeleteDocument(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("chunk store is closed")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (s *SQLiteChunkStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, fmt.Errorf("chunk store is closed")
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Close releases the database handle.
func (s *SQLiteChunkStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

var _ ChunkStore = (*SQLiteChunkStore)(nil)

// escapeLike escapes LIKE wildcards in a user-supplied pattern.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (*DocumentChunk, error) {
	var c DocumentChunk
	var createdAt int64
	if err := row.Scan(
		&c.ID, &c.DocumentID, &c.Content, &c.ChunkIndex,
		&c.Metadata.DocumentName, &c.Metadata.OriginalName, &c.Metadata.MimeType,
		&c.Metadata.PageNumber, &c.Metadata.StartChar, &c.Metadata.EndChar, &createdAt,
	); err != nil {
		return nil, err
	}
	c.CreatedAt = time.UnixMilli(createdAt)
	return &c, nil
}

func scanChunks(rows *sql.Rows) ([]*DocumentChunk, error) {
	results := []*DocumentChunk{}
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return results, nil
}
