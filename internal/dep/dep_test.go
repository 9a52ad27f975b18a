package dep

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		encoded  string
		name     string
		required bool
	}{
		{"netlist", "netlist", true},
		{"warnings?", "warnings", false},
		{"bitstream", "bitstream", true},
		{"?", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.encoded, func(t *testing.T) {
			name, required := ParseName(tt.encoded)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.required, required)
		})
	}
}

func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, filepath.Join(dir, "a.txt"))
	b := touch(t, filepath.Join(dir, "b.txt"))
	missing := filepath.Join(dir, "missing.txt")

	t.Run("single path", func(t *testing.T) {
		assert.True(t, Exists(a))
		assert.False(t, Exists(missing))
	})

	t.Run("directory counts as present", func(t *testing.T) {
		assert.True(t, Exists(dir))
	})

	t.Run("sequence requires every element", func(t *testing.T) {
		assert.True(t, Exists([]any{a, b}))
		assert.False(t, Exists([]any{a, missing}))
	})

	t.Run("mapping recurses into sub-values", func(t *testing.T) {
		assert.True(t, Exists(map[string]any{"first": a, "rest": []any{b}}))
		assert.False(t, Exists(map[string]any{"first": a, "rest": missing}))
	})

	t.Run("empty values carry no paths", func(t *testing.T) {
		assert.False(t, Exists(nil))
		assert.False(t, Exists([]any{}))
		assert.False(t, Exists(map[string]any{}))
	})
}

func TestWalk(t *testing.T) {
	var visited []string
	Walk(map[string]any{
		"b": "second",
		"a": []any{"first", map[string]string{"k": "third"}},
	}, func(p string) {
		visited = append(visited, p)
	})
	assert.Equal(t, []string{"first", "third", "second"}, visited)
}
