// This file implements package materialization: hard-linking a stored
// package version into an arbitrary target directory.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/panelhost/depot/pkg/types"
)

// LinkPackage materializes (name, version) into targetPath: one hard link
// per regular file, recreated symlinks for symlink entries, parent
// directories created as needed. Bumps the package's last_accessed.
//
// Safe to call concurrently for disjoint target paths. A hard link that
// already exists is treated as another linker having reached the same end
// state, since identical hashes mean identical content.
func (s *Store) LinkPackage(ctx context.Context, name, version, targetPath string) error {
	pkg, err := s.meta.GetPackage(ctx, name, version)
	if err != nil {
		return err
	}

	entries, err := s.meta.PackageFiles(ctx, pkg.PackageID)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		dest := filepath.Join(targetPath, filepath.FromSlash(entry.RelativePath))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(dest), err)
		}

		if entry.LinkTarget != "" {
			if err := recreateSymlink(entry.LinkTarget, dest); err != nil {
				return err
			}
			continue
		}

		src := s.blobPath(entry.Hash)
		if err := os.Link(src, dest); err != nil {
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			if errors.Is(err, fs.ErrNotExist) {
				if _, statErr := os.Stat(src); statErr != nil {
					return fmt.Errorf("%w: %s (%s@%s %s)", types.ErrMissingBlob, entry.Hash, name, version, entry.RelativePath)
				}
			}
			return fmt.Errorf("linking %s: %w", entry.RelativePath, err)
		}
	}

	return s.meta.TouchPackage(ctx, name, version, s.now())
}

// recreateSymlink replaces dest with a symlink to target. Symlinks cannot
// be hard-linked portably, so they are always recreated fresh. Removal
// tolerates "already gone"; creation tolerates "already created by a
// concurrent linker".
func recreateSymlink(target, dest string) error {
	if err := os.Remove(dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing stale symlink %s: %w", dest, err)
	}
	if err := os.Symlink(target, dest); err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("creating symlink %s: %w", dest, err)
	}
	return nil
}
