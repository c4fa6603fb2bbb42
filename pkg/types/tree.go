package types

import "context"

// DependencyNode is the narrow, read-only view of one node in a resolved
// dependency tree. The external resolver's concrete tree is translated once
// behind this interface; nothing else in the store depends on its shape.
//
// Children are the packages installed under this node's own node_modules
// directory. A node has children only when peer-dependency isolation forced
// a nested copy; hoisted dependencies appear as children of the root.
type DependencyNode interface {
	// Name returns the package name, including any "@scope/" prefix.
	// Nodes with an empty name are skipped during linking.
	Name() string

	// Version returns the resolved version. Nodes with an empty version
	// are skipped during linking.
	Version() string

	// Integrity returns the content integrity hash reported by the
	// resolver, passed through to the fetcher.
	Integrity() string

	// IsWorkspaceLink reports whether this node is a workspace-local
	// symlinked package. Such nodes are source, not store content, and
	// are never linked from the store.
	IsWorkspaceLink() bool

	// Children returns the nodes nested under this node's node_modules.
	Children() []DependencyNode

	// Bins returns the package's executable declarations in raw manifest
	// form: a string (single bin named after the package basename), a
	// map[string]string, or a map[string]any whose non-string values are
	// ignored. Nil means no executables.
	Bins() any
}

// SerializedTree is the cacheable form of a resolved tree. It reproduces,
// entry for entry, the exact physical layout linking the live tree would
// produce.
type SerializedTree struct {
	Packages []SerializedPackage `json:"packages"`
}

// SerializedPackage is one store-backed package placement. Location is the
// node_modules-relative path, including nested "node_modules/" segments for
// peer-isolated copies, and is authoritative: linking from cache places the
// package at exactly this path.
type SerializedPackage struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Integrity string            `json:"integrity,omitempty"`
	Location  string            `json:"location"`
	Bins      map[string]string `json:"bins,omitempty"`
}

// Ref returns the fetchable reference for this entry.
func (p SerializedPackage) Ref() PackageRef {
	return PackageRef{Name: p.Name, Version: p.Version, Integrity: p.Integrity}
}

// PackageFetcher guarantees that the referenced package contents exist in
// content-addressed storage before linking proceeds. Implementations
// receive an already-deduplicated list.
type PackageFetcher interface {
	Fetch(ctx context.Context, refs []PackageRef) error
}
