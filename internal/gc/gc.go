// Package gc implements store maintenance: evicting packages unused past a
// retention window and reclaiming the content blobs nothing references
// anymore.
package gc

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/panelhost/depot/internal/sqlite"
	"github.com/panelhost/depot/pkg/types"
)

// DefaultRetention is how long an unlinked package survives before it
// becomes a removal candidate.
const DefaultRetention = 30 * 24 * time.Hour

// Options configures one collection pass.
type Options struct {
	// OlderThan is the retention window; packages whose last_accessed is
	// older become removal candidates. Zero means DefaultRetention; pass
	// a negative value to collect everything.
	OlderThan time.Duration

	// DryRun reports what would be removed without mutating anything.
	DryRun bool

	// Logger receives per-file failures and sweep summaries. Defaults to
	// the standard logrus logger.
	Logger *logrus.Entry
}

// Run performs one garbage-collection pass over the store at storeDir. It
// opens its own metadata handle by explicit path — collection is a
// cross-workspace maintenance operation — and always releases it. Per-file
// failures are logged and skipped; the returned counts reflect the work
// that actually completed.
func Run(ctx context.Context, storeDir string, opts Options) (types.GCResult, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	retention := opts.OlderThan
	if retention == 0 {
		retention = DefaultRetention
	}
	cutoff := time.Now().Add(-retention)

	db, err := sqlite.Open(sqlite.MetadataPath(storeDir))
	if err != nil {
		return types.GCResult{}, err
	}
	defer db.Close()

	stale, err := db.StalePackages(ctx, cutoff)
	if err != nil {
		return types.GCResult{}, err
	}

	// The orphan set must be computed against the pre-deletion reference
	// graph: a file survives if any package at or past the cutoff still
	// references it, regardless of how many candidates also do.
	orphans, err := db.OrphanCandidates(ctx, cutoff)
	if err != nil {
		return types.GCResult{}, err
	}

	if opts.DryRun {
		var bytes int64
		for _, orphan := range orphans {
			bytes += orphan.Size
		}
		return types.GCResult{
			PackagesRemoved: len(stale),
			FilesRemoved:    len(orphans),
			BytesFreed:      bytes,
		}, nil
	}

	ids := make([]string, len(stale))
	for i, pkg := range stale {
		ids[i] = pkg.PackageID
	}
	packagesRemoved, err := db.DeletePackages(ctx, ids)
	if err != nil {
		return types.GCResult{}, err
	}

	filesRemoved, err := db.DeleteUnreferencedFiles(ctx)
	if err != nil {
		return types.GCResult{PackagesRemoved: packagesRemoved}, err
	}

	result := types.GCResult{
		PackagesRemoved: packagesRemoved,
		FilesRemoved:    filesRemoved,
	}
	blobDir := filepath.Join(storeDir, "files")
	for _, orphan := range orphans {
		blob := filepath.Join(blobDir, orphan.Hash[:2], orphan.Hash)
		if err := os.Remove(blob); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.WithError(err).WithField("hash", orphan.Hash).Warn("failed to remove blob")
			}
			continue
		}
		result.BytesFreed += orphan.Size
	}

	if err := pruneEmptyDirs(blobDir); err != nil {
		log.WithError(err).Warn("failed to prune empty blob directories")
	}

	if _, err := db.DeleteExpiredResolutions(ctx, cutoff); err != nil {
		log.WithError(err).Warn("failed to expire resolution cache")
	}

	log.WithFields(logrus.Fields{
		"packages_removed": result.PackagesRemoved,
		"files_removed":    result.FilesRemoved,
		"bytes_freed":      result.BytesFreed,
	}).Info("garbage collection complete")
	return result, nil
}

// pruneEmptyDirs removes now-empty directories under root, deepest first.
// root itself is kept.
func pruneEmptyDirs(root string) error {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err != nil || len(entries) > 0 {
			continue
		}
		os.Remove(dirs[i])
	}
	return nil
}
