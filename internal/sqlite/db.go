package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/panelhost/depot/pkg/types"
)

// MetadataFileName is the database file name under the store directory.
const MetadataFileName = "metadata.db"

// MetadataPath returns the metadata database path for a store directory.
// Maintenance operations that open their own handle use this for the
// explicit global path.
func MetadataPath(storeDir string) string {
	return filepath.Join(storeDir, MetadataFileName)
}

// DB is the metadata store handle. SQLite serializes writes natively, so
// callers may use one handle from many goroutines; the mutex only guards
// the open/closed lifecycle.
type DB struct {
	mu   sync.RWMutex
	open bool
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) the metadata database at path and
// ensures the schema exists.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating metadata directory: %w", err)
	}

	// Pragmas go in the DSN so the driver applies them to every pooled
	// connection; database/sql hands out multiple connections, and a
	// PRAGMA run via Exec only reaches one of them.
	dsn := "file:" + path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening metadata database: %w", err)
	}

	for _, ddl := range schemaDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	for _, ddl := range indexDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating indexes: %w", err)
		}
	}

	return &DB{open: true, db: db, path: path}, nil
}

// Close releases the database handle. Idempotent: closing a closed DB
// succeeds.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return nil
	}
	d.open = false
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("closing metadata database: %w", err)
	}
	return nil
}

// Path returns the database file path this handle was opened with.
func (d *DB) Path() string {
	return d.path
}

// handle returns the underlying *sql.DB or ErrStoreClosed.
func (d *DB) handle() (*sql.DB, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.open {
		return nil, types.ErrStoreClosed
	}
	return d.db, nil
}

// withTx runs fn inside a transaction, rolling back on error.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db, err := d.handle()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Stats reports package and file counts plus total blob bytes recorded in
// metadata.
func (d *DB) Stats(ctx context.Context) (types.StoreStats, error) {
	db, err := d.handle()
	if err != nil {
		return types.StoreStats{}, err
	}

	var stats types.StoreStats
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM packages").Scan(&stats.Packages); err != nil {
		return types.StoreStats{}, fmt.Errorf("counting packages: %w", err)
	}
	row := db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(size), 0) FROM files")
	if err := row.Scan(&stats.Files, &stats.BlobBytes); err != nil {
		return types.StoreStats{}, fmt.Errorf("counting files: %w", err)
	}
	return stats, nil
}

// timeToMillis converts a time to the stored Unix-millisecond form.
func timeToMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// millisToTime converts a stored Unix-millisecond value back to UTC time.
func millisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
