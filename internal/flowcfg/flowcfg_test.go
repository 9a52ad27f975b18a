package flowcfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbiflow/sfbuild/internal/resolve"
)

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const projectDoc = `
dependencies:
  sources:
    - counter.v
    - top.v
values:
  top: top
arty_35:
  dependencies:
    pcf: arty.pcf
  values:
    part_name: xc7a35tcsg324-1
nexys4:
  values:
    part_name: xc7a100tcsg324-1
`

const platformDoc = `
values:
  device: xc7a50t_test
  bitstream_device: artix7
modules:
  synth: common:synth
  pack: ./local/pack
module_options:
  synth:
    params:
      includes: []
    values:
      tcl_scripts: "${shareDir}/tcl"
`

func TestLoadProject(t *testing.T) {
	flow, err := LoadProject(writeDoc(t, "flow.yaml", projectDoc))
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"top": "top"}, flow.Values)
	assert.Equal(t, []any{"counter.v", "top.v"}, flow.Dependencies["sources"])

	section, ok := flow.Platform("arty_35")
	require.True(t, ok)
	assert.Equal(t, "arty.pcf", section.Dependencies["pcf"])
	assert.Equal(t, "xc7a35tcsg324-1", section.Values["part_name"])

	_, ok = flow.Platform("ice40")
	assert.False(t, ok)
}

func TestLoadProject_JSONDocument(t *testing.T) {
	flow, err := LoadProject(writeDoc(t, "flow.json",
		`{"values": {"top": "main"}, "demo": {"values": {"device": "d"}}}`))
	require.NoError(t, err)
	assert.Equal(t, "main", flow.Values["top"])
	section, ok := flow.Platform("demo")
	require.True(t, ok)
	assert.Equal(t, "d", section.Values["device"])
}

func TestLoadPlatform(t *testing.T) {
	flow, err := LoadPlatform(writeDoc(t, "arty_35.yaml", platformDoc))
	require.NoError(t, err)

	assert.Equal(t, "common:synth", flow.Modules["synth"])
	assert.Equal(t, "./local/pack", flow.Modules["pack"])
	opts := flow.ModuleOptions["synth"]
	assert.Equal(t, "${shareDir}/tcl", opts.Values["tcl_scripts"])
	assert.Contains(t, opts.Params, "includes")
}

func TestLoad_MissingAndMalformed(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadProject(filepath.Join(t.TempDir(), "nope.yaml"))
		var docErr *DocumentError
		require.ErrorAs(t, err, &docErr)
	})

	t.Run("malformed document", func(t *testing.T) {
		_, err := LoadPlatform(writeDoc(t, "bad.yaml", "modules: [not: a: mapping"))
		var docErr *DocumentError
		require.ErrorAs(t, err, &docErr)
	})
}

func TestMergedValues_LaterLayersWin(t *testing.T) {
	platform := &PlatformFlow{Values: map[string]any{
		"device": "base-device",
		"part":   "base-part",
		"seed":   1,
	}}
	project := &ProjectFlow{
		Values: map[string]any{"part": "project-part", "top": "top"},
		Platforms: map[string]ProjectPlatform{
			"arty_35": {Values: map[string]any{"part": "platform-part"}},
		},
	}

	values := MergedValues(platform, project, "arty_35")
	assert.Equal(t, "base-device", values["device"])
	assert.Equal(t, "platform-part", values["part"])
	assert.Equal(t, "top", values["top"])
	assert.Equal(t, 1, values["seed"])

	otherPlatform := MergedValues(platform, project, "nexys4")
	assert.Equal(t, "project-part", otherPlatform["part"])
}

func TestExplicitDeps(t *testing.T) {
	env := resolve.NewEnv(map[string]any{"buildDir": "/tmp/build"})
	project := &ProjectFlow{
		Dependencies: map[string]any{"sources": []any{"${buildDir}/top.v"}},
		Platforms: map[string]ProjectPlatform{
			"arty_35": {Dependencies: map[string]any{"pcf": "${buildDir}/arty.pcf"}},
		},
	}

	deps, err := ExplicitDeps(project, "arty_35", env)
	require.NoError(t, err)
	assert.Equal(t, []any{"/tmp/build/top.v"}, deps["sources"])
	assert.Equal(t, "/tmp/build/arty.pcf", deps["pcf"])

	_, err = ExplicitDeps(&ProjectFlow{
		Dependencies: map[string]any{"x": "${undefined}"},
	}, "arty_35", env)
	require.Error(t, err)
}

func TestParseExplicitPaths(t *testing.T) {
	env := resolve.NewEnv(map[string]any{"buildDir": "/b"})

	t.Run("parses and resolves entries", func(t *testing.T) {
		paths, err := ParseExplicitPaths("netlist=${buildDir}/net.json, fasm=/x/top.fasm", env)
		require.NoError(t, err)
		assert.Equal(t, "/b/net.json", paths["netlist"])
		assert.Equal(t, "/x/top.fasm", paths["fasm"])
	})

	t.Run("rejects malformed entries", func(t *testing.T) {
		_, err := ParseExplicitPaths("just-a-name", env)
		var docErr *DocumentError
		require.ErrorAs(t, err, &docErr)
	})
}
