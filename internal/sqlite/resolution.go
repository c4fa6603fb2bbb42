// This file implements the resolution_cache table: serialized dependency
// trees keyed by a hash of the canonicalized dependency spec. Entries expire
// on the same retention cutoff the garbage collector applies to packages.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/panelhost/depot/pkg/types"
)

// PutResolution stores (or replaces) a cached resolution payload under key.
func (d *DB) PutResolution(ctx context.Context, key, payload string, now time.Time) error {
	db, err := d.handle()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		"INSERT INTO resolution_cache (cache_key, payload, created_at) VALUES (?, ?, ?) ON CONFLICT(cache_key) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at",
		key, payload, timeToMillis(now),
	)
	if err != nil {
		return fmt.Errorf("storing resolution %s: %w", key, err)
	}
	return nil
}

// GetResolution returns the cached payload for key, or
// ErrResolutionNotFound on a miss.
func (d *DB) GetResolution(ctx context.Context, key string) (string, error) {
	db, err := d.handle()
	if err != nil {
		return "", err
	}

	var payload string
	err = db.QueryRowContext(ctx,
		"SELECT payload FROM resolution_cache WHERE cache_key = ?", key,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return "", types.ErrResolutionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading resolution %s: %w", key, err)
	}
	return payload, nil
}

// DeleteExpiredResolutions removes entries created before cutoff.
func (d *DB) DeleteExpiredResolutions(ctx context.Context, cutoff time.Time) (int, error) {
	db, err := d.handle()
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx,
		"DELETE FROM resolution_cache WHERE created_at < ?", timeToMillis(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting expired resolutions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting expired resolutions: %w", err)
	}
	return int(n), nil
}
