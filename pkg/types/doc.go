// Package types defines the shared entity types, interfaces, and standard
// error values for the depot package store: package and file metadata rows,
// serialized dependency trees, the resolver-facing tree interface, and the
// fetcher collaborator contract.
package types
