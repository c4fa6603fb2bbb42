// Tests for garbage collection: retention cutoffs, reference-graph safety,
// blob reclamation, and scheduling.
package gc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/panelhost/depot/internal/sqlite"
	"github.com/panelhost/depot/internal/store"
	"github.com/panelhost/depot/pkg/types"
)

func seedStore(t *testing.T, packages map[string]map[string]string) string {
	t.Helper()
	storeDir := filepath.Join(t.TempDir(), "store")

	s, err := store.Open(types.Config{StoreDir: storeDir})
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	defer s.Close()

	for key, files := range packages {
		name, version := splitKey(t, key)
		src := t.TempDir()
		for rel, content := range files {
			path := filepath.Join(src, filepath.FromSlash(rel))
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
		}
		ref := types.PackageRef{Name: name, Version: version}
		if err := s.ImportPackage(context.Background(), ref, src); err != nil {
			t.Fatalf("ImportPackage %s failed: %v", key, err)
		}
	}
	return s.Dir()
}

func splitKey(t *testing.T, key string) (string, string) {
	t.Helper()
	for i := len(key) - 1; i > 0; i-- {
		if key[i] == '@' {
			return key[:i], key[i+1:]
		}
	}
	t.Fatalf("bad package key %q", key)
	return "", ""
}

// backdate sets a package's last_accessed to a time in the past.
func backdate(t *testing.T, storeDir, name, version string, to time.Time) {
	t.Helper()
	db, err := sqlite.Open(sqlite.MetadataPath(storeDir))
	if err != nil {
		t.Fatalf("sqlite.Open failed: %v", err)
	}
	defer db.Close()

	if err := db.TouchPackage(context.Background(), name, version, to); err != nil {
		t.Fatalf("backdating %s@%s: %v", name, version, err)
	}
}

func countBlobs(t *testing.T, storeDir string) int {
	t.Helper()
	var blobs int
	err := filepath.Walk(filepath.Join(storeDir, "files"), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			blobs++
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return blobs
}

func TestRun_RemovesAllStalePackages(t *testing.T) {
	storeDir := seedStore(t, map[string]map[string]string{
		"pkg-a@1.0.0": {"a.js": "a"},
		"pkg-b@1.0.0": {"b.js": "b"},
		"pkg-c@1.0.0": {"c.js": "c"},
	})

	// A negative window puts the cutoff in the future: everything stale.
	result, err := Run(context.Background(), storeDir, Options{OlderThan: -time.Second})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.PackagesRemoved != 3 {
		t.Errorf("packages removed = %d, want 3", result.PackagesRemoved)
	}
	if result.FilesRemoved != 3 {
		t.Errorf("files removed = %d, want 3", result.FilesRemoved)
	}
	if result.BytesFreed != 3 {
		t.Errorf("bytes freed = %d, want 3", result.BytesFreed)
	}
	if got := countBlobs(t, storeDir); got != 0 {
		t.Errorf("%d blobs survived full collection", got)
	}
}

func TestRun_NeverDeletesFilesOfSurvivingPackages(t *testing.T) {
	storeDir := seedStore(t, map[string]map[string]string{
		"stale-pkg@1.0.0": {"shared.js": "shared content", "stale-only.js": "stale"},
		"fresh-pkg@1.0.0": {"shared.js": "shared content"},
	})
	backdate(t, storeDir, "stale-pkg", "1.0.0", time.Now().Add(-60*24*time.Hour))

	result, err := Run(context.Background(), storeDir, Options{OlderThan: DefaultRetention})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.PackagesRemoved != 1 {
		t.Errorf("packages removed = %d, want 1", result.PackagesRemoved)
	}
	if result.FilesRemoved != 1 {
		t.Errorf("files removed = %d, want 1 (the stale-only blob)", result.FilesRemoved)
	}

	// The surviving package must still be fully linkable.
	s, err := store.Open(types.Config{StoreDir: storeDir})
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	defer s.Close()

	target := filepath.Join(t.TempDir(), "fresh")
	if err := s.LinkPackage(context.Background(), "fresh-pkg", "1.0.0", target); err != nil {
		t.Fatalf("surviving package no longer linkable: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(target, "shared.js"))
	if err != nil || string(got) != "shared content" {
		t.Errorf("shared blob damaged: %q, %v", got, err)
	}
}

func TestRun_PostConditionBlobsMatchMetadata(t *testing.T) {
	storeDir := seedStore(t, map[string]map[string]string{
		"stale-pkg@1.0.0": {"stale.js": "stale"},
		"fresh-pkg@1.0.0": {"fresh.js": "fresh", "extra.js": "extra"},
	})
	backdate(t, storeDir, "stale-pkg", "1.0.0", time.Now().Add(-60*24*time.Hour))

	if _, err := Run(context.Background(), storeDir, Options{OlderThan: DefaultRetention}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	s, err := store.Open(types.Config{StoreDir: storeDir})
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	defer s.Close()

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := countBlobs(t, storeDir); got != stats.Files {
		t.Errorf("blobs on disk (%d) != file rows (%d)", got, stats.Files)
	}
	if stats.Files != 2 {
		t.Errorf("file rows = %d, want 2", stats.Files)
	}
}

func TestRun_DryRunMutatesNothing(t *testing.T) {
	storeDir := seedStore(t, map[string]map[string]string{
		"pkg-a@1.0.0": {"a.js": "aaaa"},
	})

	result, err := Run(context.Background(), storeDir, Options{OlderThan: -time.Second, DryRun: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.PackagesRemoved != 1 || result.FilesRemoved != 1 || result.BytesFreed != 4 {
		t.Errorf("dry-run counts wrong: %+v", result)
	}
	if got := countBlobs(t, storeDir); got != 1 {
		t.Errorf("dry run deleted blobs: %d remain", got)
	}

	s, err := store.Open(types.Config{StoreDir: storeDir})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Packages != 1 {
		t.Errorf("dry run deleted package rows: %d remain", stats.Packages)
	}
}

func TestRun_ExpiresResolutionCache(t *testing.T) {
	storeDir := seedStore(t, nil)

	db, err := sqlite.Open(sqlite.MetadataPath(storeDir))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.PutResolution(context.Background(), "old-key", "{}", time.Now().Add(-60*24*time.Hour)); err != nil {
		t.Fatal(err)
	}
	db.Close()

	if _, err := Run(context.Background(), storeDir, Options{OlderThan: DefaultRetention}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	db, err = sqlite.Open(sqlite.MetadataPath(storeDir))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.GetResolution(context.Background(), "old-key"); err != types.ErrResolutionNotFound {
		t.Errorf("expected expired entry to be gone, got %v", err)
	}
}

func TestRun_PrunesEmptyBlobDirectories(t *testing.T) {
	storeDir := seedStore(t, map[string]map[string]string{
		"pkg-a@1.0.0": {"a.js": "a"},
	})

	if _, err := Run(context.Background(), storeDir, Options{OlderThan: -time.Second}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(storeDir, "files"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("empty hash-prefix directories survived: %v", entries)
	}
}

func TestSchedule_CancelIsIdempotent(t *testing.T) {
	storeDir := seedStore(t, nil)

	cancel := Schedule(storeDir, 10*time.Millisecond, Options{OlderThan: DefaultRetention})
	time.Sleep(50 * time.Millisecond)
	cancel()
	cancel()
}
