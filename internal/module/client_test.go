package module

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeModule writes an executable shell script acting as a stage module.
func writeModule(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func newTestRunner(t *testing.T, stdout *bytes.Buffer) (*Runner, string) {
	t.Helper()
	dir := t.TempDir()
	return NewRunner(dir, filepath.Join(dir, "share"), stdout, nil), dir
}

func TestRunner_IO(t *testing.T) {
	runner, dir := newTestRunner(t, nil)
	mod := writeModule(t, dir, "synth", `
cat >/dev/null
[ "$1" = "--io" ] || exit 1
printf '{"takes":["sources","constraints?"],"produces":["netlist"],"meta":{"netlist":"Synthesized netlist"}}'
`)

	resp, err := runner.IO(context.Background(), mod, IOConfig{})
	require.NoError(t, err)
	assert.Equal(t, []string{"sources", "constraints?"}, resp.Takes)
	assert.Equal(t, []string{"netlist"}, resp.Produces)
	assert.Equal(t, "Synthesized netlist", resp.Meta["netlist"])
}

func TestRunner_IO_PassesParams(t *testing.T) {
	runner, dir := newTestRunner(t, nil)
	// The module echoes its stdin back as the "input" meta entry.
	mod := writeModule(t, dir, "echo-params", `
input=$(cat)
printf '{"takes":[],"produces":[],"meta":{"input":"%s"}}' "$(printf '%s' "$input" | tr '"' "'")"
`)

	resp, err := runner.IO(context.Background(), mod, IOConfig{
		Params: map[string]any{"part": "xc7a50t"},
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Meta["input"], "part")
	assert.Contains(t, resp.Meta["input"], "xc7a50t")
}

func TestRunner_Map(t *testing.T) {
	runner, dir := newTestRunner(t, nil)
	// $2/$3 are --share <dir>; the module derives its output from them.
	mod := writeModule(t, dir, "place", `
cat >/dev/null
[ "$1" = "--map" ] || exit 1
[ "$2" = "--share" ] || exit 1
printf '{"placed":"%s/placed.json","aux":["a","b"]}' "$3"
`)

	paths, err := runner.Map(context.Background(), mod, Config{Platform: "demo"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "share")+"/placed.json", paths["placed"])
	assert.Equal(t, []any{"a", "b"}, paths["aux"])
}

func TestRunner_Map_UnparseableOutput(t *testing.T) {
	runner, dir := newTestRunner(t, nil)
	mod := writeModule(t, dir, "garbled", `
cat >/dev/null
printf 'this is not json'
`)

	_, err := runner.Map(context.Background(), mod, Config{})
	var failure *FailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, ModeMap, failure.Mode)
	assert.Contains(t, failure.Stdout, "not json")
}

func TestRunner_Exec_StreamsStdout(t *testing.T) {
	var out bytes.Buffer
	runner, dir := newTestRunner(t, &out)
	marker := filepath.Join(dir, "built.bit")
	mod := writeModule(t, dir, "bitgen", `
cat >/dev/null
echo "Compiling FASM to bitstream..."
: > `+marker+`
`)

	err := runner.Exec(context.Background(), mod, Config{Platform: "demo"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Compiling FASM to bitstream...")
	assert.FileExists(t, marker)
}

func TestRunner_Exec_ReceivesConfigOnStdin(t *testing.T) {
	var out bytes.Buffer
	runner, dir := newTestRunner(t, &out)
	mod := writeModule(t, dir, "dump", `cat`)

	cfg := Config{
		Takes:    map[string]any{"netlist": "net.json"},
		Produces: map[string]any{"bitstream": "top.bit"},
		Values:   map[string]any{"part": "xc7a50t"},
		Platform: "arty_35",
	}
	require.NoError(t, runner.Exec(context.Background(), mod, cfg))

	var echoed Config
	require.NoError(t, json.Unmarshal(out.Bytes(), &echoed))
	assert.Equal(t, cfg, echoed)
}

func TestRunner_NonZeroExit(t *testing.T) {
	runner, dir := newTestRunner(t, nil)
	mod := writeModule(t, dir, "broken", `
cat >/dev/null
echo "tool not found: xcfasm" >&2
exit 3
`)

	_, err := runner.IO(context.Background(), mod, IOConfig{})
	var failure *FailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, mod, failure.Module)
	assert.Equal(t, ModeIO, failure.Mode)
	assert.Equal(t, 3, failure.ExitCode)
	assert.Contains(t, failure.Stderr, "tool not found: xcfasm")
	assert.Contains(t, failure.Error(), "exit code 3")
}

func TestRunner_ExportsHome(t *testing.T) {
	runner, dir := newTestRunner(t, nil)
	mod := writeModule(t, dir, "env-probe", `
cat >/dev/null
printf '{"takes":[],"produces":[],"meta":{"home":"%s"}}' "$SFBUILD_HOME"
`)

	resp, err := runner.IO(context.Background(), mod, IOConfig{})
	require.NoError(t, err)
	assert.Equal(t, dir, resp.Meta["home"])
}

func TestRunner_ContextCancellation(t *testing.T) {
	runner, dir := newTestRunner(t, nil)
	mod := writeModule(t, dir, "sleepy", `
cat >/dev/null
sleep 30
`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runner.IO(ctx, mod, IOConfig{})
	require.Error(t, err)
	var failure *FailureError
	require.ErrorAs(t, err, &failure)
	assert.ErrorIs(t, failure, context.Canceled)
}
