// This file implements the files and package_files table accessors:
// content-addressed file rows, package membership, and the orphan queries
// that make blob reclamation safe.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/panelhost/depot/pkg/types"
)

// RecordPackageFiles writes the full file membership of one package in a
// single transaction: file rows (INSERT OR IGNORE keyed by hash) and one
// package_files row per relative path. Re-recording an already stored
// package is a no-op, which makes concurrent imports of the same version
// idempotent.
func (d *DB) RecordPackageFiles(ctx context.Context, packageID string, entries []types.PackageFile, blobs []types.FileEntry) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		for _, blob := range blobs {
			_, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO files (hash, size) VALUES (?, ?)",
				blob.Hash, blob.Size,
			)
			if err != nil {
				return fmt.Errorf("inserting file %s: %w", blob.Hash, err)
			}
		}
		for _, entry := range entries {
			var hash any
			if entry.Hash != "" {
				hash = entry.Hash
			}
			var target any
			if entry.LinkTarget != "" {
				target = entry.LinkTarget
			}
			_, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO package_files (package_id, file_hash, relative_path, link_target, executable) VALUES (?, ?, ?, ?, ?)",
				packageID, hash, entry.RelativePath, target, boolToInt(entry.Executable),
			)
			if err != nil {
				return fmt.Errorf("inserting package file %s: %w", entry.RelativePath, err)
			}
		}
		return nil
	})
}

// PackageFiles returns every file association for a package, symlinks
// included.
func (d *DB) PackageFiles(ctx context.Context, packageID string) ([]types.PackageFile, error) {
	db, err := d.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		"SELECT package_id, COALESCE(file_hash, ''), relative_path, COALESCE(link_target, ''), executable FROM package_files WHERE package_id = ?",
		packageID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying package files: %w", err)
	}
	defer rows.Close()

	var entries []types.PackageFile
	for rows.Next() {
		var entry types.PackageFile
		var executable int
		if err := rows.Scan(&entry.PackageID, &entry.Hash, &entry.RelativePath, &entry.LinkTarget, &executable); err != nil {
			return nil, fmt.Errorf("scanning package file: %w", err)
		}
		entry.Executable = executable != 0
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating package files: %w", err)
	}
	return entries, nil
}

// OrphanCandidates returns the files that no package with
// last_accessed >= cutoff references. Run against the pre-deletion
// reference graph, before any candidate package rows are removed, so the
// set-difference sees every surviving reference.
func (d *DB) OrphanCandidates(ctx context.Context, cutoff time.Time) ([]types.FileEntry, error) {
	db, err := d.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
SELECT f.hash, f.size FROM files f
WHERE NOT EXISTS (
    SELECT 1 FROM package_files pf
    JOIN packages p ON p.package_id = pf.package_id
    WHERE pf.file_hash = f.hash AND p.last_accessed >= ?
)`,
		timeToMillis(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("querying orphan candidates: %w", err)
	}
	defer rows.Close()

	var orphans []types.FileEntry
	for rows.Next() {
		var entry types.FileEntry
		if err := rows.Scan(&entry.Hash, &entry.Size); err != nil {
			return nil, fmt.Errorf("scanning orphan candidate: %w", err)
		}
		orphans = append(orphans, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orphan candidates: %w", err)
	}
	return orphans, nil
}

// DeleteUnreferencedFiles removes file rows with zero remaining
// package_files references and returns how many were deleted.
func (d *DB) DeleteUnreferencedFiles(ctx context.Context) (int, error) {
	db, err := d.handle()
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx,
		"DELETE FROM files WHERE hash NOT IN (SELECT file_hash FROM package_files WHERE file_hash IS NOT NULL)",
	)
	if err != nil {
		return 0, fmt.Errorf("deleting unreferenced files: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting unreferenced files: %w", err)
	}
	return int(n), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
