// Package linker materializes resolved dependency trees into node_modules
// directories. It drives the content store to place every store-backed
// package, preserves peer-dependency isolation through nested node_modules
// subtrees, and wires up .bin executable symlinks.
package linker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/panelhost/depot/internal/store"
	"github.com/panelhost/depot/pkg/types"
)

// defaultConcurrency bounds how many packages link in parallel during
// LinkFromCache.
const defaultConcurrency = 20

// nodeModulesDir is the directory name packages install under.
const nodeModulesDir = "node_modules"

// Linker populates node_modules trees from the content store.
type Linker struct {
	store       *store.Store
	fetcher     types.PackageFetcher
	concurrency int
	log         *logrus.Entry
}

// Option configures a Linker.
type Option func(*Linker)

// WithFetcher sets the collaborator that ensures package contents exist in
// the store before linking.
func WithFetcher(f types.PackageFetcher) Option {
	return func(l *Linker) {
		l.fetcher = f
	}
}

// WithConcurrency overrides the bounded parallelism of LinkFromCache.
func WithConcurrency(n int) Option {
	return func(l *Linker) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *logrus.Entry) Option {
	return func(l *Linker) {
		l.log = log
	}
}

// New creates a Linker over the given store.
func New(s *store.Store, opts ...Option) *Linker {
	l := &Linker{
		store:       s,
		concurrency: defaultConcurrency,
		log:         logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Link wipes and rebuilds targetDir/node_modules from a live resolved
// tree. Package contents are fetched first (via the configured fetcher),
// then linked, then .bin symlinks are created. On error the caller must
// treat the target as having no usable node_modules; the wipe at the start
// of the next attempt makes retries clean.
func (l *Linker) Link(ctx context.Context, targetDir string, tree types.DependencyNode) error {
	refs := CollectPackages(tree)
	if l.fetcher != nil {
		if err := l.fetcher.Fetch(ctx, refs); err != nil {
			return fmt.Errorf("fetching packages: %w", err)
		}
	}

	nmDir, err := resetNodeModules(targetDir)
	if err != nil {
		return err
	}

	var bins []binPlacement
	if err := l.linkNode(ctx, nmDir, "", tree, &bins); err != nil {
		return err
	}
	if err := createBinLinks(nmDir, bins); err != nil {
		return err
	}

	l.log.WithFields(logrus.Fields{
		"target":   targetDir,
		"packages": len(refs),
	}).Debug("linked dependency tree")
	return nil
}

// linkNode links every child of parent into nmDir, recursing into nested
// node_modules for children that carry peer-isolated subtrees. parentLoc is
// the node_modules-relative location prefix ("" at the root).
func (l *Linker) linkNode(ctx context.Context, nmDir, parentLoc string, parent types.DependencyNode, bins *[]binPlacement) error {
	for _, child := range parent.Children() {
		if child.IsWorkspaceLink() {
			// Workspace packages are source, not store content.
			continue
		}
		name, version := child.Name(), child.Version()
		if name == "" || version == "" {
			continue
		}

		linkPath := filepath.Join(nmDir, filepath.FromSlash(name))
		if err := l.store.LinkPackage(ctx, name, version, linkPath); err != nil {
			return err
		}

		loc := joinLocation(parentLoc, name)
		if b := normalizeBins(name, child.Bins()); len(b) > 0 {
			*bins = append(*bins, binPlacement{location: loc, bins: b})
		}

		if len(child.Children()) > 0 {
			nested := filepath.Join(linkPath, nodeModulesDir)
			if err := l.linkNode(ctx, nested, loc+"/"+nodeModulesDir, child, bins); err != nil {
				return err
			}
		}
	}
	return nil
}

// LinkFromCache rebuilds targetDir/node_modules from a serialized tree,
// skipping the resolver round-trip. Every package directory (including
// scoped-package parents) is pre-created sequentially, shallowest first;
// only then does bounded-parallel linking start. The pre-creation pass is
// what keeps concurrent per-package link tasks from racing on mkdir for
// overlapping paths.
func (l *Linker) LinkFromCache(ctx context.Context, targetDir string, cached *types.SerializedTree) error {
	nmDir, err := resetNodeModules(targetDir)
	if err != nil {
		return err
	}

	entries := make([]types.SerializedPackage, len(cached.Packages))
	copy(entries, cached.Packages)
	sort.SliceStable(entries, func(i, j int) bool {
		return strings.Count(entries[i].Location, "/") < strings.Count(entries[j].Location, "/")
	})

	for _, entry := range entries {
		dir := filepath.Join(nmDir, filepath.FromSlash(entry.Location))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("pre-creating %s: %w", entry.Location, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for _, entry := range entries {
		g.Go(func() error {
			target := filepath.Join(nmDir, filepath.FromSlash(entry.Location))
			return l.store.LinkPackage(gctx, entry.Name, entry.Version, target)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var bins []binPlacement
	for _, entry := range entries {
		if len(entry.Bins) > 0 {
			bins = append(bins, binPlacement{location: entry.Location, bins: entry.Bins})
		}
	}
	if err := createBinLinks(nmDir, bins); err != nil {
		return err
	}

	l.log.WithFields(logrus.Fields{
		"target":   targetDir,
		"packages": len(entries),
	}).Debug("linked dependency tree from cache")
	return nil
}

// resetNodeModules wipes and recreates targetDir/node_modules so a failed
// previous attempt never leaks into this one.
func resetNodeModules(targetDir string) (string, error) {
	nmDir := filepath.Join(targetDir, nodeModulesDir)
	if err := os.RemoveAll(nmDir); err != nil {
		return "", fmt.Errorf("clearing %s: %w", nmDir, err)
	}
	if err := os.MkdirAll(nmDir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", nmDir, err)
	}
	return nmDir, nil
}

// joinLocation appends a package name to a location prefix using forward
// slashes; locations are the portable node_modules-relative form.
func joinLocation(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
