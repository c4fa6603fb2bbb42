// Tests for locked linking and fetcher wiring.
package linker

import (
	"context"
	"sync"
	"testing"

	"github.com/panelhost/depot/pkg/types"
)

// recordingFetcher captures the refs it was asked to guarantee.
type recordingFetcher struct {
	mu   sync.Mutex
	refs []types.PackageRef
}

func (f *recordingFetcher) Fetch(ctx context.Context, refs []types.PackageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs = append(f.refs, refs...)
	return nil
}

func TestLink_HandsDedupedFetchListToFetcher(t *testing.T) {
	s := openSeededStore(t, map[string]map[string]string{
		"lodash@4.17.21": {"lodash.js": "_"},
		"pkg-a@1.0.0":    {"index.js": "a"},
	})
	fetcher := &recordingFetcher{}
	l := New(s, WithFetcher(fetcher))

	root := &testNode{children: []*testNode{
		{name: "lodash", version: "4.17.21"},
		{name: "pkg-a", version: "1.0.0", children: []*testNode{
			{name: "lodash", version: "4.17.21"},
		}},
	}}

	if err := l.Link(context.Background(), t.TempDir(), root); err != nil {
		t.Fatalf("Link failed: %v", err)
	}

	if len(fetcher.refs) != 2 {
		t.Errorf("fetcher got %d refs, want 2 (deduplicated)", len(fetcher.refs))
	}
}

func TestLinkLocked_SerializesConcurrentBuilds(t *testing.T) {
	s := openSeededStore(t, map[string]map[string]string{
		"lodash@4.17.21": {"lodash.js": "_"},
	})
	l := New(s)
	root := &testNode{children: []*testNode{{name: "lodash", version: "4.17.21"}}}

	target := t.TempDir()
	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = l.LinkLocked(context.Background(), target, root)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("build %d failed: %v", i, err)
		}
	}
}
