// This file wraps linking with the cross-process build lock, for callers
// where multiple OS processes might build the same named target.
package linker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/panelhost/depot/internal/lockfile"
	"github.com/panelhost/depot/pkg/types"
)

// buildLockName is the lock file created inside the target directory.
const buildLockName = ".depot-build.lock"

// LinkLocked runs Link under an exclusive directory lock on targetDir.
// Acquisition retries at a fixed delay until ctx is done; a lock left by a
// dead process is broken by age. The lock is always released.
func (l *Linker) LinkLocked(ctx context.Context, targetDir string, tree types.DependencyNode) error {
	lock, err := acquireBuildLock(ctx, targetDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	return l.Link(ctx, targetDir, tree)
}

// LinkFromCacheLocked runs LinkFromCache under the same directory lock.
func (l *Linker) LinkFromCacheLocked(ctx context.Context, targetDir string, cached *types.SerializedTree) error {
	lock, err := acquireBuildLock(ctx, targetDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	return l.LinkFromCache(ctx, targetDir, cached)
}

// acquireBuildLock creates the target directory if needed and takes its
// build lock.
func acquireBuildLock(ctx context.Context, targetDir string) (*lockfile.Lock, error) {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", targetDir, err)
	}
	return lockfile.Acquire(ctx, filepath.Join(targetDir, buildLockName), nil)
}
