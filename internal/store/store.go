// Package store implements the content-addressed package store: each unique
// file of each package is stored exactly once as a blob keyed by its
// content hash, and package versions are materialized into arbitrary target
// directories by hard-linking those blobs.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/panelhost/depot/internal/sqlite"
	"github.com/panelhost/depot/pkg/types"
)

// blobDirName is the directory under the store root holding content blobs.
const blobDirName = "files"

// Store is the content-addressed package store: a blob directory plus the
// SQLite metadata database. Safe for concurrent use; the metadata store
// serializes writes natively and blob writes are idempotent by hash.
type Store struct {
	dir  string
	meta *sqlite.DB
	now  func() time.Time
}

// Open opens (creating if necessary) the store rooted at cfg.StoreDir.
func Open(cfg types.Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dir, err := filepath.Abs(cfg.StoreDir)
	if err != nil {
		return nil, fmt.Errorf("resolving store directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, blobDirName), 0o755); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}

	meta, err := sqlite.Open(sqlite.MetadataPath(dir))
	if err != nil {
		return nil, err
	}

	return &Store{dir: dir, meta: meta, now: time.Now}, nil
}

// Close releases the metadata handle. Idempotent.
func (s *Store) Close() error {
	return s.meta.Close()
}

// Dir returns the absolute store root.
func (s *Store) Dir() string {
	return s.dir
}

// BlobDir returns the directory holding content blobs.
func (s *Store) BlobDir() string {
	return filepath.Join(s.dir, blobDirName)
}

// blobPath returns the on-disk location for a content hash:
// files/<hash[0:2]>/<hash>.
func (s *Store) blobPath(hash string) string {
	return filepath.Join(s.dir, blobDirName, hash[:2], hash)
}

// HasPackage reports whether (name, version) is present in the store.
func (s *Store) HasPackage(ctx context.Context, name, version string) (bool, error) {
	_, err := s.meta.GetPackage(ctx, name, version)
	if err == types.ErrPackageNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Stats reports store contents for status display.
func (s *Store) Stats(ctx context.Context) (types.StoreStats, error) {
	return s.meta.Stats(ctx)
}

// PutResolution caches a serialized resolution payload under key.
func (s *Store) PutResolution(ctx context.Context, key, payload string) error {
	return s.meta.PutResolution(ctx, key, payload, s.now())
}

// GetResolution returns a cached resolution payload, or
// ErrResolutionNotFound.
func (s *Store) GetResolution(ctx context.Context, key string) (string, error) {
	return s.meta.GetResolution(ctx, key)
}
