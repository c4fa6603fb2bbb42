package types

import "errors"

// Store lifecycle errors.
var (
	ErrStoreClosed      = errors.New("store is closed")
	ErrStoreAlreadyOpen = errors.New("store is already open")
)

// Content store errors.
var (
	// ErrPackageNotFound is returned when a (name, version) pair has no
	// metadata row in the store.
	ErrPackageNotFound = errors.New("package not found in store")

	// ErrMissingBlob means a package_files row references a content hash
	// whose blob is absent from disk. This is a store-integrity fault and
	// is never swallowed.
	ErrMissingBlob = errors.New("content blob missing from store")

	// ErrInvalidRef is returned for package references without a usable
	// name or version.
	ErrInvalidRef = errors.New("invalid package reference")
)

// Resolution cache errors.
var (
	ErrResolutionNotFound = errors.New("resolution cache miss")
)

// Lock errors.
var (
	ErrLockTimeout = errors.New("timed out waiting for directory lock")
)
