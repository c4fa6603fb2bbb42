// This file implements tree serialization and fetch-list collection: the
// cacheable form of a resolved tree and the deduplicated list of packages
// handed to the fetcher.
package linker

import (
	"github.com/panelhost/depot/pkg/types"
)

// SerializeTree walks a live tree and emits one entry per store-backed
// node. Each entry's Location records the exact node_modules-relative
// placement, nested "node_modules/" segments included, so linking from the
// serialized form reproduces the physical layout of linking the live tree.
func SerializeTree(tree types.DependencyNode) *types.SerializedTree {
	out := &types.SerializedTree{}
	serializeNode("", tree, out)
	return out
}

func serializeNode(parentLoc string, parent types.DependencyNode, out *types.SerializedTree) {
	for _, child := range parent.Children() {
		if child.IsWorkspaceLink() {
			continue
		}
		name, version := child.Name(), child.Version()
		if name == "" || version == "" {
			continue
		}

		loc := joinLocation(parentLoc, name)
		out.Packages = append(out.Packages, types.SerializedPackage{
			Name:      name,
			Version:   version,
			Integrity: child.Integrity(),
			Location:  loc,
			Bins:      normalizeBins(name, child.Bins()),
		})

		if len(child.Children()) > 0 {
			serializeNode(loc+"/"+nodeModulesDir, child, out)
		}
	}
}

// CollectPackages returns the flat fetch list for a tree, deduplicated by
// name@version across the whole tree including peer-isolated subtrees.
// Deduplication is correct for fetching only; linking keeps peer-isolated
// copies as distinct filesystem entries by location.
func CollectPackages(tree types.DependencyNode) []types.PackageRef {
	seen := make(map[string]bool)
	var refs []types.PackageRef
	collectNode(tree, seen, &refs)
	return refs
}

func collectNode(parent types.DependencyNode, seen map[string]bool, refs *[]types.PackageRef) {
	for _, child := range parent.Children() {
		if child.IsWorkspaceLink() {
			continue
		}
		name, version := child.Name(), child.Version()
		if name == "" || version == "" {
			continue
		}

		ref := types.PackageRef{Name: name, Version: version, Integrity: child.Integrity()}
		if !seen[ref.Key()] {
			seen[ref.Key()] = true
			*refs = append(*refs, ref)
		}
		collectNode(child, seen, refs)
	}
}
