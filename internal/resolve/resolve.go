// Package resolve implements the value resolution environment used to expand
// ${name} references inside flow configuration values.
//
// Values are arbitrary structures as decoded from YAML/JSON documents:
// scalars, sequences and mappings. Resolution walks the structure, expanding
// every reference token found in strings against the environment.
package resolve

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// maxDepth bounds reference expansion so that cyclic definitions are
// reported instead of looping forever.
const maxDepth = 32

var refPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Env is a mapping from value names to values of arbitrary structure.
type Env struct {
	values map[string]any
}

// NewEnv creates an environment seeded with the given values.
func NewEnv(values map[string]any) *Env {
	e := &Env{values: make(map[string]any, len(values))}
	e.Add(values)
	return e
}

// Clone returns a shallow copy of the environment. Adding values to the
// clone does not affect the original.
func (e *Env) Clone() *Env {
	c := &Env{values: make(map[string]any, len(e.values))}
	for k, v := range e.values {
		c.values[k] = v
	}
	return c
}

// Add merges values into the environment. Existing names are overwritten.
func (e *Env) Add(values map[string]any) {
	for k, v := range values {
		e.values[k] = v
	}
}

// Set binds a single name.
func (e *Env) Set(name string, value any) {
	e.values[name] = value
}

// Get returns the raw (unresolved) value bound to name.
func (e *Env) Get(name string) (any, bool) {
	v, ok := e.values[name]
	return v, ok
}

// Names returns the bound value names in sorted order.
func (e *Env) Names() []string {
	names := make([]string, 0, len(e.values))
	for k := range e.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Resolve expands every reference token inside v. Strings are scanned for
// ${name} tokens, sequences and mappings are resolved element-wise; all
// other values pass through unchanged. Resolving an already-resolved value
// is a no-op.
func (e *Env) Resolve(v any) (any, error) {
	return e.resolve(v, 0)
}

// ResolveMap resolves every entry of a mapping.
func (e *Env) ResolveMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		rv, err := e.Resolve(v)
		if err != nil {
			return nil, err
		}
		out[k] = rv
	}
	return out, nil
}

func (e *Env) resolve(v any, depth int) (any, error) {
	if depth > maxDepth {
		return nil, &CycleError{Context: fmt.Sprint(v)}
	}
	switch val := v.(type) {
	case string:
		return e.resolveString(val, depth)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			r, err := e.resolve(item, depth)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			r, err := e.resolve(item, depth)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

func (e *Env) resolveString(s string, depth int) (any, error) {
	m := refPattern.FindStringSubmatch(s)
	if m == nil {
		return s, nil
	}

	// A string that is exactly one reference expands to the referenced
	// value itself, keeping its structure.
	if m[0] == s {
		ref, ok := e.values[m[1]]
		if !ok {
			return nil, &UnknownRefError{Name: m[1], Context: s}
		}
		return e.resolve(ref, depth+1)
	}

	// Otherwise every token is rendered into the string.
	var resolveErr error
	expanded := refPattern.ReplaceAllStringFunc(s, func(tok string) string {
		if resolveErr != nil {
			return tok
		}
		name := tok[2 : len(tok)-1]
		ref, ok := e.values[name]
		if !ok {
			resolveErr = &UnknownRefError{Name: name, Context: s}
			return tok
		}
		text, err := renderScalar(ref)
		if err != nil {
			resolveErr = fmt.Errorf("expanding ${%s} in %q: %w", name, s, err)
			return tok
		}
		return text
	})
	if resolveErr != nil {
		return nil, resolveErr
	}
	return e.resolveString(expanded, depth+1)
}

// renderScalar converts a referenced value to its in-string representation.
// Sequences are joined with spaces; mappings have no string form.
func renderScalar(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			p, err := renderScalar(item)
			if err != nil {
				return "", err
			}
			parts[i] = p
		}
		return strings.Join(parts, " "), nil
	case map[string]any:
		return "", fmt.Errorf("mapping value cannot be interpolated into a string")
	default:
		return fmt.Sprint(val), nil
	}
}
