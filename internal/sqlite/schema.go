// Package sqlite implements the metadata store for the depot package cache:
// package rows, content-addressed file rows, package-file associations, and
// the resolution cache, backed by a single SQLite database.
package sqlite

// Schema DDL. Timestamps are stored as Unix milliseconds so retention
// cutoffs compare as plain integers.
const (
	createPackages = `CREATE TABLE IF NOT EXISTS packages (
    package_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    version TEXT NOT NULL,
    last_accessed INTEGER NOT NULL,
    UNIQUE (name, version)
);`

	createFiles = `CREATE TABLE IF NOT EXISTS files (
    hash TEXT PRIMARY KEY,
    size INTEGER NOT NULL
);`

	createPackageFiles = `CREATE TABLE IF NOT EXISTS package_files (
    package_id TEXT NOT NULL,
    file_hash TEXT,
    relative_path TEXT NOT NULL,
    link_target TEXT,
    executable INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (package_id, relative_path),
    FOREIGN KEY (package_id) REFERENCES packages(package_id) ON DELETE CASCADE,
    FOREIGN KEY (file_hash) REFERENCES files(hash)
);`

	createResolutionCache = `CREATE TABLE IF NOT EXISTS resolution_cache (
    cache_key TEXT PRIMARY KEY,
    payload TEXT NOT NULL,
    created_at INTEGER NOT NULL
);`
)

// Index DDL for the hot queries: GC staleness scans and hash lookups.
const (
	idxPackagesAccessed  = `CREATE INDEX IF NOT EXISTS idx_packages_accessed ON packages(last_accessed);`
	idxPackageFilesHash  = `CREATE INDEX IF NOT EXISTS idx_package_files_hash ON package_files(file_hash);`
	idxResolutionCreated = `CREATE INDEX IF NOT EXISTS idx_resolution_created ON resolution_cache(created_at);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createPackages,
	createFiles,
	createPackageFiles,
	createResolutionCache,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxPackagesAccessed,
	idxPackageFilesHash,
	idxResolutionCreated,
}
