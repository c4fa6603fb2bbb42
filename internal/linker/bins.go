// This file implements .bin executable symlinks: normalizing manifest bin
// declarations and creating relative symlinks under node_modules/.bin.
package linker

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// binDirName is the executables directory under node_modules.
const binDirName = ".bin"

// binPlacement pairs a linked package's location with its normalized bin
// map.
type binPlacement struct {
	location string
	bins     map[string]string
}

// normalizeBins converts a raw manifest bin declaration into a bin-name to
// script-path map. The string form declares a single bin named after the
// package basename (the name without any "@scope/" prefix); the object form
// is an explicit map whose non-string values are dropped.
func normalizeBins(pkgName string, raw any) map[string]string {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return map[string]string{path.Base(pkgName): v}
	case map[string]string:
		out := make(map[string]string, len(v))
		for name, script := range v {
			if name == "" || script == "" {
				continue
			}
			out[name] = script
		}
		return out
	case map[string]any:
		out := make(map[string]string, len(v))
		for name, value := range v {
			script, ok := value.(string)
			if !ok || name == "" || script == "" {
				continue
			}
			out[name] = script
		}
		return out
	default:
		return nil
	}
}

// createBinLinks creates node_modules/.bin/<binName> as a relative symlink
// to ../<location>/<script> for every placement. A stale symlink that is
// already gone, or a fresh one already created by a concurrent linker, is
// not an error; anything else propagates.
func createBinLinks(nmDir string, placements []binPlacement) error {
	if len(placements) == 0 {
		return nil
	}

	binDir := filepath.Join(nmDir, binDirName)
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}

	for _, placement := range placements {
		for name, script := range placement.bins {
			linkPath := filepath.Join(binDir, name)
			target := path.Join("..", placement.location, script)

			if err := os.Remove(linkPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("removing stale bin %s: %w", name, err)
			}
			if err := os.Symlink(filepath.FromSlash(target), linkPath); err != nil && !errors.Is(err, fs.ErrExist) {
				return fmt.Errorf("creating bin %s: %w", name, err)
			}
		}
	}
	return nil
}
