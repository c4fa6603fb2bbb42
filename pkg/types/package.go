package types

import "time"

// Package is one stored package version. Unique per (Name, Version).
// LastAccessed is bumped every time the package is linked into a target
// and drives garbage-collection eligibility.
type Package struct {
	PackageID    string    `json:"package_id"`
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	LastAccessed time.Time `json:"last_accessed"`
}

// FileEntry is one unique content blob: a row per distinct hash, shared by
// every package path that ships identical bytes.
type FileEntry struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// PackageFile associates a package with one of its files. For regular files
// Hash names the blob; for symlinks Hash is empty and LinkTarget holds the
// symlink target, because symlinks cannot be hard-linked portably.
type PackageFile struct {
	PackageID    string `json:"package_id"`
	Hash         string `json:"hash,omitempty"`
	RelativePath string `json:"relative_path"`
	LinkTarget   string `json:"link_target,omitempty"`
	Executable   bool   `json:"executable,omitempty"`
}

// PackageRef identifies a package version to fetch or link.
type PackageRef struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Integrity string `json:"integrity,omitempty"`
}

// Key returns the "name@version" form used for fetch deduplication.
func (r PackageRef) Key() string {
	return r.Name + "@" + r.Version
}

// GCResult reports what one garbage-collection pass removed. All counts are
// advisory; a partially failed sweep still returns the work it completed.
type GCResult struct {
	PackagesRemoved int   `json:"packages_removed"`
	FilesRemoved    int   `json:"files_removed"`
	BytesFreed      int64 `json:"bytes_freed"`
}

// StoreStats summarizes store contents for status reporting.
type StoreStats struct {
	Packages  int   `json:"packages"`
	Files     int   `json:"files"`
	BlobBytes int64 `json:"blob_bytes"`
}
