// This file implements resolution-cache keys: hashing a dependency spec in
// canonical order so semantically identical specs share a cache entry.
package linker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// HashDependencies returns the cache key for a dependency spec. Entries are
// sorted lexicographically by name before hashing so insertion order never
// changes the key.
func HashDependencies(deps map[string]string) string {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		fmt.Fprintf(h, "%s@%s\n", name, deps[name])
	}
	return hex.EncodeToString(h.Sum(nil))
}
