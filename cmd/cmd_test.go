package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"dnaconverter/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cli struct {
	t     *testing.T
	store string
	extra []string
}

func newCLI(t *testing.T, extra ...string) *cli {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return &cli{t: t, store: filepath.Join(dir, "plugins.yaml"), extra: extra}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)

	base := []string{"--store", c.store, "--log-level", "error"}
	root.SetArgs(append(append(args, base...), c.extra...))
	err := root.Execute()
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, out)
	return out
}

func (c *cli) list() []pluginRow {
	c.t.Helper()
	var rows []pluginRow
	require.NoError(c.t, json.Unmarshal([]byte(c.mustRun("plugins", "list")), &rows))
	return rows
}

func rowNames(rows []pluginRow) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Name)
	}
	return out
}

func TestPlugins_AddRenameRemove(t *testing.T) {
	c := newCLI(t)

	assert.Equal(t, "Modifiers\n", c.mustRun("plugins", "add", "modifier"))
	assert.Equal(t, "Modifiers1\n", c.mustRun("plugins", "add", "modifier"))
	assert.Equal(t, "Clamp\n", c.mustRun("plugins", "add", "clamp"))

	rows := c.list()
	assert.Equal(t, []string{"Modifiers", "Modifiers1", "Clamp"}, rowNames(rows))
	assert.Equal(t, "prepass", string(rows[2].Pass))

	assert.Equal(t, "Torso\n", c.mustRun("plugins", "rename", "Modifiers1", "Torso"))
	assert.Equal(t, "Clamp1\n", c.mustRun("plugins", "rename", "Torso", "Clamp"))
	c.mustRun("plugins", "remove", "Modifiers")
	assert.Equal(t, []string{"Clamp1", "Clamp"}, rowNames(c.list()))

	_, err := c.run("plugins", "remove", "Modifiers")
	assert.ErrorContains(t, err, "not found")
	_, err = c.run("plugins", "add", "teleporter")
	assert.ErrorContains(t, err, "invalid plugin type")
}

func TestPlugins_ConfigureAndApply(t *testing.T) {
	c := newCLI(t)
	c.mustRun("plugins", "add", "modifier")

	settings := filepath.Join(filepath.Dir(c.store), "torso.yaml")
	require.NoError(t, os.WriteFile(settings, []byte(`modifiers:
  - output: torso
    initial: 1
    terms:
      - {dna: height, multiplier: 2}
`), 0o644))
	c.mustRun("plugins", "configure", "Modifiers", settings)

	assert.Contains(t, c.mustRun("plugins", "show", "Modifiers"), "output: torso")
	assert.Equal(t, "height\n", c.mustRun("names"))

	var result struct {
		Outputs map[string]float64 `json:"outputs"`
		DNA     map[string]float64 `json:"dna"`
	}
	require.NoError(t, json.Unmarshal([]byte(c.mustRun("apply", "--set", "height=1")), &result))
	assert.InDelta(t, 3.0, result.Outputs["torso"], 1e-9)
	assert.Equal(t, 1.0, result.DNA["height"])

	_, err := c.run("apply", "--set", "height")
	assert.ErrorContains(t, err, "expected name=value")
	_, err = c.run("apply", "--set", "tail=1")
	assert.ErrorContains(t, err, "tail")
}

func TestPlugins_ConfigureRejectsInvalidSettings(t *testing.T) {
	c := newCLI(t)
	c.mustRun("plugins", "add", "curve")

	settings := filepath.Join(filepath.Dir(c.store), "bad.yaml")
	require.NoError(t, os.WriteFile(settings, []byte("curves:\n  - dna: height\n    output: legs\n"), 0o644))

	_, err := c.run("plugins", "configure", "Curves", settings)
	assert.ErrorContains(t, err, "invalid settings")
	assert.Equal(t, "", c.mustRun("names"), "the saved plugin is untouched")
}

func TestPlugins_ConfigureKeepsSettingsOnDecodeError(t *testing.T) {
	c := newCLI(t)
	c.mustRun("plugins", "add", "modifier")

	good := filepath.Join(filepath.Dir(c.store), "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("modifiers:\n  - output: torso\n    terms: [{dna: height, multiplier: 1}]\n"), 0o644))
	c.mustRun("plugins", "configure", "Modifiers", good)

	broken := filepath.Join(filepath.Dir(c.store), "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("modifiers: [\n"), 0o644))
	_, err := c.run("plugins", "configure", "Modifiers", broken)
	require.Error(t, err)

	_, err = c.run("plugins", "configure", "Modifiers", filepath.Join(filepath.Dir(c.store), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read settings file")

	assert.Contains(t, c.mustRun("plugins", "show", "Modifiers"), "output: torso")
	assert.Equal(t, "height\n", c.mustRun("names"))
}

func TestPlugins_ReadOnly(t *testing.T) {
	c := newCLI(t)
	c.mustRun("plugins", "add", "modifier")

	out, err := c.run("plugins", "add", "clamp", "--read-only")
	require.NoError(t, err)
	assert.Equal(t, "Clamp\n", out)
	assert.Equal(t, []string{"Modifiers"}, rowNames(c.list()), "read-only changes are not saved")
}

func TestPlugins_SQLiteBackend(t *testing.T) {
	c := newCLI(t)
	c.store = filepath.Join(filepath.Dir(c.store), "plugins.db")
	c.extra = []string{"--backend", "sqlite", "--controller", "avatar"}

	c.mustRun("plugins", "add", "curve")
	c.mustRun("plugins", "add", "clamp")
	assert.Equal(t, []string{"Curves", "Clamp"}, rowNames(c.list()))
}

func TestValidate(t *testing.T) {
	c := newCLI(t)
	require.NoError(t, os.WriteFile(c.store, []byte(`controller: default
plugins:
  - id: a
    kind: clamp
    name: Clamp
    pass: prepass
  - id: b
    kind: skeleton
    name: Bones
`), 0o644))

	out, err := c.run("validate")
	assert.Error(t, err)
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, "Bones")

	out = c.mustRun("validate")
	assert.Equal(t, "1 plugin(s) ok\n", out, "the broken record was dropped from the store")
}

func TestValidate_SavesRenamedDuplicates(t *testing.T) {
	c := newCLI(t)
	require.NoError(t, os.WriteFile(c.store, []byte(`controller: default
plugins:
  - id: a
    kind: modifier
    name: Foo
  - id: b
    kind: modifier
    name: Foo
`), 0o644))

	out := c.mustRun("validate")
	assert.Contains(t, out, "store rewritten")
	assert.Contains(t, out, "2 plugin(s) ok")

	doc, err := store.NewFileStore(c.store).Load(context.Background())
	require.NoError(t, err)
	names := make([]string, 0, len(doc.Plugins))
	for _, rec := range doc.Plugins {
		names = append(names, rec.Name)
	}
	assert.Equal(t, []string{"Foo", "Foo1"}, names)

	assert.Equal(t, "2 plugin(s) ok\n", c.mustRun("validate"), "nothing left to fix")
}

func TestValidate_ReadOnlyLeavesStore(t *testing.T) {
	c := newCLI(t)
	saved := []byte("controller: default\nplugins:\n  - {id: a, kind: curve, name: Foo}\n  - {id: b, kind: curve, name: Foo}\n")
	require.NoError(t, os.WriteFile(c.store, saved, 0o644))

	out := c.mustRun("validate", "--read-only")
	assert.NotContains(t, out, "store rewritten")

	data, err := os.ReadFile(c.store)
	require.NoError(t, err)
	assert.Equal(t, string(saved), string(data))
}

func TestKinds(t *testing.T) {
	c := newCLI(t)

	var rows []kindRow
	require.NoError(t, json.Unmarshal([]byte(c.mustRun("kinds")), &rows))
	kinds := make([]string, 0, len(rows))
	for _, r := range rows {
		kinds = append(kinds, r.Kind)
	}
	assert.Equal(t, []string{"clamp", "modifier", "curve"}, kinds)
}

func TestParseAssignments(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]float64
		wantErr bool
	}{
		{name: "empty", pairs: nil, want: map[string]float64{}},
		{name: "several", pairs: []string{"height=0.5", "weight=-1e-2"}, want: map[string]float64{"height": 0.5, "weight": -0.01}},
		{name: "last wins", pairs: []string{"height=0.5", "height=0.25"}, want: map[string]float64{"height": 0.25}},
		{name: "missing value", pairs: []string{"height"}, wantErr: true},
		{name: "missing name", pairs: []string{"=1"}, wantErr: true},
		{name: "not a number", pairs: []string{"height=tall"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAssignments(tt.pairs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTrunc(t *testing.T) {
	assert.Equal(t, "height", trunc("height", 0))
	assert.Equal(t, "height", trunc("height", 6))
	assert.Equal(t, "hei…", trunc("height", 4))
	assert.Equal(t, "…", trunc("height", 1))
}
