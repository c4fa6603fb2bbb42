// This file implements registry persistence: one version-tagged JSON
// document, written atomically via temp-file-then-rename, with mutations
// coalesced through a debounce timer.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// formatVersion tags the persisted document. A mismatch on load discards
// the file and starts empty.
const formatVersion = 1

// document is the persisted form of the registry.
type document struct {
	Version   int                 `json:"version"`
	Consumers map[string][]string `json:"consumers"`
}

// markDirtyLocked flags unsaved state and schedules a debounced persist.
// Mutations while a timer is pending coalesce into the already scheduled
// write. Callers hold r.mu.
func (r *Registry) markDirtyLocked() {
	r.dirty = true
	if r.timer != nil {
		return
	}
	r.timer = time.AfterFunc(r.debounce, func() {
		if err := r.Flush(); err != nil {
			r.log.WithError(err).Warn("registry persist failed")
		}
	})
}

// Flush cancels any pending debounce timer and persists immediately if the
// state is dirty. Shutdown paths must call (and wait for) Flush before
// exiting. On write failure the in-memory state remains authoritative and
// dirty, so the next mutation or Flush retries.
func (r *Registry) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if !r.dirty {
		return nil
	}
	if err := r.persistLocked(); err != nil {
		return err
	}
	r.dirty = false
	return nil
}

// Close flushes pending state. Idempotent.
func (r *Registry) Close() error {
	return r.Flush()
}

// persistLocked writes the whole map as one JSON document using the
// temp-file, rename pattern. Callers hold r.mu.
func (r *Registry) persistLocked() error {
	doc := document{
		Version:   formatVersion,
		Consumers: make(map[string][]string, len(r.consumers)),
	}
	for key, set := range r.consumers {
		packages := make([]string, 0, len(set))
		for pkg := range set {
			packages = append(packages, pkg)
		}
		sort.Strings(packages)
		doc.Consumers[key] = packages
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".registry-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp registry file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp registry file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publishing registry: %w", err)
	}
	return nil
}

// load reads the persisted document into memory. Any failure — missing
// file, malformed JSON, version mismatch — leaves the registry empty;
// consumers rebuild it by re-registering.
func (r *Registry) load() {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		r.log.WithError(err).Warn("discarding unreadable registry file")
		return
	}
	if doc.Version != formatVersion {
		r.log.WithField("version", doc.Version).Warn("discarding registry with unknown format version")
		return
	}

	for key, packages := range doc.Consumers {
		set := make(map[string]struct{}, len(packages))
		for _, pkg := range packages {
			set[pkg] = struct{}{}
		}
		r.consumers[key] = set
	}
}
