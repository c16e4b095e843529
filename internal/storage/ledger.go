package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// LedgerEntry records what was indexed for a source file, so a sync can skip unchanged files.
type LedgerEntry struct {
	URI         string
	DocumentID  string
	Fingerprint string
	Size        int64
	ModTime     time.Time
	IndexedAt   time.Time
}

// Ledger is a SQLite table of indexed source files.
type Ledger struct {
	db *sql.DB
}

// NewLedger opens or creates the ledger database at dbPath.
// Parent directories are created if they do not exist.
func NewLedger(dbPath string) (*Ledger, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initLedgerSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

func initLedgerSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS indexed_files (
		uri TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		size INTEGER NOT NULL,
		mtime TIMESTAMP NOT NULL,
		indexed_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_indexed_files_document_id ON indexed_files(document_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Get returns the entry for uri, or nil if the file has not been indexed.
func (l *Ledger) Get(ctx context.Context, uri string) (*LedgerEntry, error) {
	var e LedgerEntry
	err := l.db.QueryRowContext(ctx,
		`SELECT uri, document_id, fingerprint, size, mtime, indexed_at
		 FROM indexed_files WHERE uri = ?`, uri,
	).Scan(&e.URI, &e.DocumentID, &e.Fingerprint, &e.Size, &e.ModTime, &e.IndexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Put inserts or replaces the entry for e.URI. IndexedAt defaults to now.
func (l *Ledger) Put(ctx context.Context, e *LedgerEntry) error {
	if e.IndexedAt.IsZero() {
		e.IndexedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO indexed_files (uri, document_id, fingerprint, size, mtime, indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(uri) DO UPDATE SET
			document_id = excluded.document_id,
			fingerprint = excluded.fingerprint,
			size = excluded.size,
			mtime = excluded.mtime,
			indexed_at = excluded.indexed_at`,
		e.URI, e.DocumentID, e.Fingerprint, e.Size, e.ModTime, e.IndexedAt,
	)
	return err
}

// Delete removes the entry for uri.
func (l *Ledger) Delete(ctx context.Context, uri string) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM indexed_files WHERE uri = ?`, uri)
	return err
}

// Reset removes every entry.
func (l *Ledger) Reset(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM indexed_files`)
	return err
}

// List returns every entry ordered by uri.
func (l *Ledger) List(ctx context.Context) ([]*LedgerEntry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT uri, document_id, fingerprint, size, mtime, indexed_at
		 FROM indexed_files ORDER BY uri`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.URI, &e.DocumentID, &e.Fingerprint, &e.Size, &e.ModTime, &e.IndexedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Count returns the number of entries.
func (l *Ledger) Count(ctx context.Context) (int64, error) {
	var count int64
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM indexed_files`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}
