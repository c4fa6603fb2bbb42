// Package lockfile implements a cross-process directory lock for builds
// that may target the same named output from multiple OS processes. The
// lock is an exclusively created file; a holder that dies is detected by
// file age and its lock broken.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/panelhost/depot/pkg/types"
)

// Defaults for acquisition behavior.
const (
	DefaultRetryDelay = 200 * time.Millisecond
	DefaultStaleAfter = 5 * time.Minute
)

// Lock is a held directory lock. Release removes the lock file.
type Lock struct {
	path string
}

// Options tunes acquisition.
type Options struct {
	// RetryDelay is the fixed delay between acquisition attempts.
	RetryDelay time.Duration

	// StaleAfter is the age past which an existing lock file is treated
	// as abandoned and removed.
	StaleAfter time.Duration
}

func (o *Options) withDefaults() Options {
	out := Options{RetryDelay: DefaultRetryDelay, StaleAfter: DefaultStaleAfter}
	if o == nil {
		return out
	}
	if o.RetryDelay > 0 {
		out.RetryDelay = o.RetryDelay
	}
	if o.StaleAfter > 0 {
		out.StaleAfter = o.StaleAfter
	}
	return out
}

// Acquire takes the lock at path, retrying at a fixed delay until the
// context is done. An existing lock file older than StaleAfter is removed
// as abandoned. The caller must Release the returned lock.
func Acquire(ctx context.Context, path string, opts *Options) (*Lock, error) {
	o := opts.withDefaults()

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d %s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
			f.Close()
			return &Lock{path: path}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("creating lock file %s: %w", path, err)
		}

		if info, statErr := os.Stat(path); statErr == nil {
			if time.Since(info.ModTime()) > o.StaleAfter {
				// Holder presumed dead; break the lock and retry.
				os.Remove(path)
				continue
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", types.ErrLockTimeout, path)
		case <-time.After(o.RetryDelay):
		}
	}
}

// Release removes the lock file. Idempotent: a lock already released (or
// broken as stale by another process) is not an error.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing lock file %s: %w", l.path, err)
	}
	return nil
}
