// Tests for the content store: import, hard-link materialization, symlink
// recreation, and content-addressed deduplication.
package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/panelhost/depot/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(types.Config{StoreDir: filepath.Join(t.TempDir(), "store")})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// writePackageDir materializes files into a fresh source directory.
// Contents keyed by slash-separated relative path.
func writePackageDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return dir
}

func importTestPackage(t *testing.T, s *Store, name, version string, files map[string]string) {
	t.Helper()
	src := writePackageDir(t, files)
	ref := types.PackageRef{Name: name, Version: version}
	if err := s.ImportPackage(context.Background(), ref, src); err != nil {
		t.Fatalf("ImportPackage %s failed: %v", ref.Key(), err)
	}
}

func TestOpen_RejectsEmptyStoreDir(t *testing.T) {
	if _, err := Open(types.Config{}); err != types.ErrStoreDirEmpty {
		t.Errorf("expected ErrStoreDirEmpty, got %v", err)
	}
}

func TestImportAndLink_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	importTestPackage(t, s, "left-pad", "1.3.0", map[string]string{
		"package.json": `{"name":"left-pad"}`,
		"index.js":     "module.exports = leftPad",
		"lib/util.js":  "// helpers",
	})

	target := filepath.Join(t.TempDir(), "left-pad")
	if err := s.LinkPackage(context.Background(), "left-pad", "1.3.0", target); err != nil {
		t.Fatalf("LinkPackage failed: %v", err)
	}

	for rel, want := range map[string]string{
		"package.json": `{"name":"left-pad"}`,
		"index.js":     "module.exports = leftPad",
		"lib/util.js":  "// helpers",
	} {
		got, err := os.ReadFile(filepath.Join(target, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("reading %s: %v", rel, err)
		}
		if string(got) != want {
			t.Errorf("%s content mismatch: %q", rel, got)
		}
	}
}

func TestLinkPackage_UsesHardLinks(t *testing.T) {
	s := openTestStore(t)
	importTestPackage(t, s, "is-even", "1.0.0", map[string]string{"index.js": "module.exports = n => n % 2 === 0"})

	targetA := filepath.Join(t.TempDir(), "a")
	targetB := filepath.Join(t.TempDir(), "b")
	for _, target := range []string{targetA, targetB} {
		if err := s.LinkPackage(context.Background(), "is-even", "1.0.0", target); err != nil {
			t.Fatalf("LinkPackage failed: %v", err)
		}
	}

	infoA, err := os.Stat(filepath.Join(targetA, "index.js"))
	if err != nil {
		t.Fatal(err)
	}
	infoB, err := os.Stat(filepath.Join(targetB, "index.js"))
	if err != nil {
		t.Fatal(err)
	}
	if !os.SameFile(infoA, infoB) {
		t.Error("linked files do not share an inode")
	}
}

func TestLinkPackage_Idempotent(t *testing.T) {
	s := openTestStore(t)
	importTestPackage(t, s, "chalk", "5.3.0", map[string]string{"index.js": "export default chalk"})

	target := filepath.Join(t.TempDir(), "chalk")
	for i := 0; i < 2; i++ {
		if err := s.LinkPackage(context.Background(), "chalk", "5.3.0", target); err != nil {
			t.Fatalf("LinkPackage run %d failed: %v", i+1, err)
		}
	}
}

func TestImport_ContentAddressedDeduplication(t *testing.T) {
	s := openTestStore(t)
	// Two packages shipping a byte-identical file.
	importTestPackage(t, s, "pkg-a", "1.0.0", map[string]string{"LICENSE": "MIT"})
	importTestPackage(t, s, "pkg-b", "1.0.0", map[string]string{"LICENSE": "MIT"})

	for _, name := range []string{"pkg-a", "pkg-b"} {
		target := filepath.Join(t.TempDir(), name)
		if err := s.LinkPackage(context.Background(), name, "1.0.0", target); err != nil {
			t.Fatalf("LinkPackage %s failed: %v", name, err)
		}
	}

	var blobs int
	err := filepath.Walk(s.BlobDir(), func(path string, info os.FileInfo, err error) error {
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
	if blobs != 1 {
		t.Errorf("expected exactly 1 blob on disk, found %d", blobs)
	}

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Files != 1 {
		t.Errorf("expected 1 file row, got %d", stats.Files)
	}
	if stats.Packages != 2 {
		t.Errorf("expected 2 package rows, got %d", stats.Packages)
	}
}

func TestImportAndLink_RecreatesSymlinks(t *testing.T) {
	s := openTestStore(t)

	src := writePackageDir(t, map[string]string{"real.js": "content"})
	if err := os.Symlink("real.js", filepath.Join(src, "alias.js")); err != nil {
		t.Fatalf("creating fixture symlink: %v", err)
	}

	ref := types.PackageRef{Name: "aliased", Version: "1.0.0"}
	if err := s.ImportPackage(context.Background(), ref, src); err != nil {
		t.Fatalf("ImportPackage failed: %v", err)
	}

	target := filepath.Join(t.TempDir(), "aliased")
	if err := s.LinkPackage(context.Background(), "aliased", "1.0.0", target); err != nil {
		t.Fatalf("LinkPackage failed: %v", err)
	}

	got, err := os.Readlink(filepath.Join(target, "alias.js"))
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if got != "real.js" {
		t.Errorf("symlink target = %q, want real.js", got)
	}
}

func TestImport_PreservesExecutableBit(t *testing.T) {
	s := openTestStore(t)

	src := t.TempDir()
	script := filepath.Join(src, "cli.js")
	if err := os.WriteFile(script, []byte("#!/usr/bin/env node"), 0o755); err != nil {
		t.Fatal(err)
	}

	ref := types.PackageRef{Name: "cli-pkg", Version: "2.0.0"}
	if err := s.ImportPackage(context.Background(), ref, src); err != nil {
		t.Fatalf("ImportPackage failed: %v", err)
	}

	target := filepath.Join(t.TempDir(), "cli-pkg")
	if err := s.LinkPackage(context.Background(), "cli-pkg", "2.0.0", target); err != nil {
		t.Fatalf("LinkPackage failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(target, "cli.js"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&0o111 == 0 {
		t.Error("executable bit lost")
	}
}

func TestLinkPackage_UnknownPackage(t *testing.T) {
	s := openTestStore(t)

	err := s.LinkPackage(context.Background(), "ghost", "0.0.1", t.TempDir())
	if err != types.ErrPackageNotFound {
		t.Errorf("expected ErrPackageNotFound, got %v", err)
	}
}

func TestLinkPackage_MissingBlobIsIntegrityFault(t *testing.T) {
	s := openTestStore(t)
	importTestPackage(t, s, "corrupt", "1.0.0", map[string]string{"index.js": "x"})

	// Delete the blob behind the metadata's back.
	err := filepath.Walk(s.BlobDir(), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			return os.Remove(path)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	linkErr := s.LinkPackage(context.Background(), "corrupt", "1.0.0", filepath.Join(t.TempDir(), "out"))
	if !errors.Is(linkErr, types.ErrMissingBlob) {
		t.Errorf("expected ErrMissingBlob, got %v", linkErr)
	}
}

func TestResolutionCache_PassThrough(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.PutResolution(ctx, "deps-hash", `{"packages":[]}`); err != nil {
		t.Fatalf("PutResolution failed: %v", err)
	}
	payload, err := s.GetResolution(ctx, "deps-hash")
	if err != nil {
		t.Fatalf("GetResolution failed: %v", err)
	}
	if payload != `{"packages":[]}` {
		t.Errorf("unexpected payload %q", payload)
	}
	if _, err := s.GetResolution(ctx, "missing"); err != types.ErrResolutionNotFound {
		t.Errorf("expected ErrResolutionNotFound, got %v", err)
	}
}
