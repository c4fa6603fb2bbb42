// Package registry tracks which consumers (panels, workers, agents) depend
// on which packages. Each consumer reports its complete flattened package
// closure; answering "who is affected by package P" is then a scan over
// consumer sets with no graph traversal.
package registry

import (
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultDebounce is the coalescing window for persistence: mutations
// arriving within it collapse into one write.
const DefaultDebounce = 2 * time.Second

// Registry is the consumer dependency map. All methods are safe for
// concurrent use. Mutations mark the state dirty and schedule a debounced
// persist; Flush forces the write for shutdown paths.
type Registry struct {
	mu        sync.Mutex
	path      string
	consumers map[string]map[string]struct{}
	dirty     bool
	timer     *time.Timer
	debounce  time.Duration
	log       *logrus.Entry
}

// Option configures a Registry.
type Option func(*Registry)

// WithDebounce overrides the persistence coalescing window.
func WithDebounce(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.debounce = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *logrus.Entry) Option {
	return func(r *Registry) {
		r.log = log
	}
}

// Open loads the registry persisted at path. A missing file, an
// unreadable document, or a format-version mismatch all start an empty
// registry: this is reconstructible cache data, not authoritative state,
// and consumers re-report their sets on every rebuild.
func Open(path string, opts ...Option) (*Registry, error) {
	r := &Registry{
		path:      path,
		consumers: make(map[string]map[string]struct{}),
		debounce:  DefaultDebounce,
		log:       logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.load()
	return r, nil
}

// RegisterConsumer unions packages into the consumer's existing set.
// Consumers are expected to report their complete flattened closure on
// every rebuild; a consumer that skips re-registration (say, after its own
// cache hit) keeps its previous entry and will not signal invalidation for
// packages it no longer declares. That staleness is accepted behavior —
// the set only shrinks on re-report-after-unregister or removal.
func (r *Registry) RegisterConsumer(consumerKey string, packages []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.consumers[consumerKey]
	if !ok {
		set = make(map[string]struct{}, len(packages))
		r.consumers[consumerKey] = set
	}
	for _, pkg := range packages {
		set[pkg] = struct{}{}
	}
	r.markDirtyLocked()
}

// UnregisterConsumer removes the consumer's entry.
func (r *Registry) UnregisterConsumer(consumerKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.consumers[consumerKey]; !ok {
		return
	}
	delete(r.consumers, consumerKey)
	r.markDirtyLocked()
}

// AffectedConsumers returns every consumer whose package set contains
// pkgName, sorted for stable output. A linear scan over consumer sets; no
// reverse index is maintained under mutation.
func (r *Registry) AffectedConsumers(pkgName string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var affected []string
	for key, set := range r.consumers {
		if _, ok := set[pkgName]; ok {
			affected = append(affected, key)
		}
	}
	sort.Strings(affected)
	return affected
}

// ConsumerPackages returns the sorted package set for one consumer, or nil
// if the consumer is not registered.
func (r *Registry) ConsumerPackages(consumerKey string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.consumers[consumerKey]
	if !ok {
		return nil
	}
	packages := make([]string, 0, len(set))
	for pkg := range set {
		packages = append(packages, pkg)
	}
	sort.Strings(packages)
	return packages
}

// Len returns the number of registered consumers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.consumers)
}

// PruneStaleConsumers decodes each consumer key as "kind:path" and removes
// entries whose backing path no longer exists on disk. Keys that do not
// decode are kept. Run at startup to cap unbounded growth. Returns how
// many entries were removed.
func (r *Registry) PruneStaleConsumers() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key := range r.consumers {
		_, path, ok := strings.Cut(key, ":")
		if !ok || path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			continue
		}
		delete(r.consumers, key)
		removed++
	}
	if removed > 0 {
		r.markDirtyLocked()
	}
	return removed
}

// UpdatePackage is an explicit no-op. Transitive package-relationship
// tracking was removed: consumers self-report their complete flattened
// closure instead, so individual package updates carry no registry work.
func (r *Registry) UpdatePackage(pkgName string) {}

// AddWorkspace is an explicit no-op; see UpdatePackage.
func (r *Registry) AddWorkspace(path string) {}

// RemoveWorkspace is an explicit no-op; see UpdatePackage.
func (r *Registry) RemoveWorkspace(path string) {}

// Initialize is an explicit no-op kept for interface compatibility with
// callers that expect a lifecycle hook; Open already loads state.
func (r *Registry) Initialize() error { return nil }
