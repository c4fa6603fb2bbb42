// This file implements the packages table accessors: row creation keyed by
// (name, version), last-accessed bumping, and the staleness queries the
// garbage collector runs.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/panelhost/depot/pkg/types"
)

// GetPackage returns the package row for (name, version), or
// ErrPackageNotFound.
func (d *DB) GetPackage(ctx context.Context, name, version string) (*types.Package, error) {
	db, err := d.handle()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx,
		"SELECT package_id, name, version, last_accessed FROM packages WHERE name = ? AND version = ?",
		name, version,
	)
	return scanPackage(row)
}

// EnsurePackage returns the package_id for (name, version), inserting a new
// row with a fresh UUID v7 on first store. Concurrent calls for the same
// version are resolved by the unique index; the loser re-reads the winner's
// row.
func (d *DB) EnsurePackage(ctx context.Context, name, version string, now time.Time) (string, error) {
	if name == "" || version == "" {
		return "", types.ErrInvalidRef
	}

	db, err := d.handle()
	if err != nil {
		return "", err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating package id: %w", err)
	}

	_, err = db.ExecContext(ctx,
		"INSERT INTO packages (package_id, name, version, last_accessed) VALUES (?, ?, ?, ?) ON CONFLICT(name, version) DO NOTHING",
		id.String(), name, version, timeToMillis(now),
	)
	if err != nil {
		return "", fmt.Errorf("inserting package %s@%s: %w", name, version, err)
	}

	var packageID string
	err = db.QueryRowContext(ctx,
		"SELECT package_id FROM packages WHERE name = ? AND version = ?",
		name, version,
	).Scan(&packageID)
	if err != nil {
		return "", fmt.Errorf("reading package %s@%s: %w", name, version, err)
	}
	return packageID, nil
}

// TouchPackage sets last_accessed for (name, version) to now. A single
// UPDATE; the database serializes concurrent touches.
func (d *DB) TouchPackage(ctx context.Context, name, version string, now time.Time) error {
	db, err := d.handle()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx,
		"UPDATE packages SET last_accessed = ? WHERE name = ? AND version = ?",
		timeToMillis(now), name, version,
	)
	if err != nil {
		return fmt.Errorf("touching package %s@%s: %w", name, version, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touching package %s@%s: %w", name, version, err)
	}
	if n == 0 {
		return types.ErrPackageNotFound
	}
	return nil
}

// StalePackages returns every package with last_accessed before cutoff.
func (d *DB) StalePackages(ctx context.Context, cutoff time.Time) ([]types.Package, error) {
	db, err := d.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		"SELECT package_id, name, version, last_accessed FROM packages WHERE last_accessed < ?",
		timeToMillis(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("querying stale packages: %w", err)
	}
	defer rows.Close()

	var stale []types.Package
	for rows.Next() {
		var pkg types.Package
		var accessed int64
		if err := rows.Scan(&pkg.PackageID, &pkg.Name, &pkg.Version, &accessed); err != nil {
			return nil, fmt.Errorf("scanning stale package: %w", err)
		}
		pkg.LastAccessed = millisToTime(accessed)
		stale = append(stale, pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stale packages: %w", err)
	}
	return stale, nil
}

// DeletePackages removes the given package rows. Their package_files
// associations are removed by the ON DELETE CASCADE foreign key.
func (d *DB) DeletePackages(ctx context.Context, packageIDs []string) (int, error) {
	if len(packageIDs) == 0 {
		return 0, nil
	}

	db, err := d.handle()
	if err != nil {
		return 0, err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(packageIDs)), ", ")
	args := make([]any, len(packageIDs))
	for i, id := range packageIDs {
		args[i] = id
	}

	res, err := db.ExecContext(ctx,
		"DELETE FROM packages WHERE package_id IN ("+placeholders+")", args...,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting packages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting packages: %w", err)
	}
	return int(n), nil
}

// scanPackage hydrates one package row.
func scanPackage(row *sql.Row) (*types.Package, error) {
	var pkg types.Package
	var accessed int64
	err := row.Scan(&pkg.PackageID, &pkg.Name, &pkg.Version, &accessed)
	if err == sql.ErrNoRows {
		return nil, types.ErrPackageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning package: %w", err)
	}
	pkg.LastAccessed = millisToTime(accessed)
	return &pkg, nil
}
