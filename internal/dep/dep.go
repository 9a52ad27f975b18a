// Package dep provides artifact name handling and traversal of the
// polymorphic path values attached to dependencies.
//
// A path value is either a single filesystem path, an ordered sequence of
// path values, or a mapping from sub-name to path value. Existence checks,
// cache updates and staleness probes all traverse the same shape.
package dep

import (
	"os"
	"sort"
	"strings"
)

// OptionalMarker is the suffix that marks a declared dependency as optional
// for its consumer.
const OptionalMarker = "?"

// ParseName splits the qualifier suffix from an encoded dependency name.
// A trailing '?' marks the dependency as optional; the marker is dropped
// from the returned name.
func ParseName(encoded string) (name string, required bool) {
	if strings.HasSuffix(encoded, OptionalMarker) {
		return strings.TrimSuffix(encoded, OptionalMarker), false
	}
	return encoded, true
}

// Exists reports whether every concrete path inside a path value is present
// on disk. Values that carry no paths at all (nil, empty containers,
// non-path scalars) report false.
func Exists(paths any) bool {
	found := false
	ok := true
	Walk(paths, func(p string) {
		found = true
		if _, err := os.Lstat(p); err != nil {
			ok = false
		}
	})
	return found && ok
}

// Walk calls fn for every concrete path inside a path value. Mapping
// entries are visited in sorted key order so traversal is deterministic.
func Walk(paths any, fn func(path string)) {
	switch v := paths.(type) {
	case string:
		fn(v)
	case []any:
		for _, item := range v {
			Walk(item, fn)
		}
	case []string:
		for _, item := range v {
			fn(item)
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			Walk(v[k], fn)
		}
	case map[string]string:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fn(v[k])
		}
	}
}
