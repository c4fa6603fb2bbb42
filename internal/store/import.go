// This file implements package ingestion: hashing a fetched package
// directory into content-addressed blobs and recording its file membership
// in metadata. This is the on-disk half of the fetcher contract — after
// ImportPackage returns, LinkPackage can materialize the version anywhere.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/panelhost/depot/pkg/types"
)

// ImportPackage stores the contents of srcDir as package (ref.Name,
// ref.Version). Regular files are hashed and written to the blob directory
// once per unique content; symlinks are recorded by target. Importing the
// same version twice, including concurrently, is a harmless no-op keyed by
// hash.
func (s *Store) ImportPackage(ctx context.Context, ref types.PackageRef, srcDir string) error {
	if ref.Name == "" || ref.Version == "" {
		return types.ErrInvalidRef
	}

	var entries []types.PackageFile
	var blobs []types.FileEntry

	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.Type()&fs.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("reading symlink %s: %w", rel, err)
			}
			entries = append(entries, types.PackageFile{
				RelativePath: rel,
				LinkTarget:   target,
			})
			return nil
		}
		if !d.Type().IsRegular() {
			// Sockets, devices and the like never ship in packages;
			// skip rather than fail the import.
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		hash, err := s.storeBlob(path, info)
		if err != nil {
			return err
		}

		entries = append(entries, types.PackageFile{
			RelativePath: rel,
			Hash:         hash,
			Executable:   info.Mode()&0o111 != 0,
		})
		blobs = append(blobs, types.FileEntry{Hash: hash, Size: info.Size()})
		return nil
	})
	if err != nil {
		return fmt.Errorf("importing %s: %w", ref.Key(), err)
	}

	packageID, err := s.meta.EnsurePackage(ctx, ref.Name, ref.Version, s.now())
	if err != nil {
		return err
	}
	return s.meta.RecordPackageFiles(ctx, packageID, entries, blobs)
}

// storeBlob hashes the file at path and writes it to the blob directory if
// no blob with that hash exists yet. The temp-file-then-rename write keeps
// concurrent stores of identical content from observing partial blobs.
func (s *Store) storeBlob(path string, info fs.FileInfo) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	hash := hex.EncodeToString(h.Sum(nil))

	dest := s.blobPath(hash)
	if _, err := os.Stat(dest); err == nil {
		return hash, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("creating blob subdirectory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".blob-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp blob: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("rewinding %s: %w", path, err)
	}
	if _, err := io.Copy(tmp, f); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("writing blob %s: %w", hash, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("closing temp blob: %w", err)
	}

	mode := fs.FileMode(0o644)
	if info.Mode()&0o111 != 0 {
		mode = 0o755
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("setting blob mode: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("publishing blob %s: %w", hash, err)
	}
	return hash, nil
}
