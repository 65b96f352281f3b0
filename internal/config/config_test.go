package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/synconf/internal/model"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, t.TempDir(), "config.yaml", `
base: &base
  lr: 0.1
  layers: 4
model:
  TYPE: tests.data.Model
  <<: *base
  layers: 8
  activation: null
  cls: !!python/name:tests.data.Toy ''
  flags: [true, false]
  name: "007"
`)
	tree, err := Load(path)
	require.NoError(t, err)

	want := map[string]any{
		"base": map[string]any{"lr": 0.1, "layers": 4},
		"model": map[string]any{
			"TYPE":       "tests.data.Model",
			"lr":         0.1,
			"layers":     8,
			"activation": nil,
			"cls":        model.ClassRef{Name: "tests.data.Toy"},
			"flags":      []any{true, false},
			"name":       "007",
		},
	}
	if diff := cmp.Diff(want, tree); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadEmptyAndInvalid(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	tree, err := Load(writeTestFile(t, dir, "empty.yaml", ""))
	require.NoError(t, err)
	assert.Empty(t, tree)

	_, err = Load(writeTestFile(t, dir, "list.yaml", "- a\n- b\n"))
	assert.ErrorContains(t, err, "must be a mapping")

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseValue(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want any
	}{
		{"3", 3},
		{"-2", -2},
		{"0.5", 0.5},
		{"true", true},
		{"null", nil},
		{"~", nil},
		{"hello", "hello"},
		{"", ""},
		{"[1, a]", []any{1, "a"}},
		{"{a: 1}", map[string]any{"a": 1}},
		{"'3'", "3"},
		{"[unclosed", "[unclosed"},
		{"!!python/name:pkg.Cls ''", model.ClassRef{Name: "pkg.Cls"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseValue(tt.in), "ParseValue(%q)", tt.in)
	}
}

func TestPaths(t *testing.T) {
	t.Parallel()

	tree := map[string]any{
		"a": map[string]any{"b": 1},
		"l": []any{map[string]any{"x": "y"}, 2},
	}

	v, ok := GetPath(tree, "a.b")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = GetPath(tree, "l[0].x")
	assert.True(t, ok)
	assert.Equal(t, "y", v)

	assert.True(t, HasPath(tree, "l.1"))
	assert.False(t, HasPath(tree, "l.2"))
	assert.False(t, HasPath(tree, "a.b.c"))

	require.NoError(t, SetPath(tree, "new.deep.key", 5))
	assert.Equal(t, 5, tree["new"].(map[string]any)["deep"].(map[string]any)["key"])

	require.NoError(t, SetPath(tree, "l.1", "two"))
	assert.Equal(t, "two", tree["l"].([]any)[1])

	var pathErr *PathError
	assert.ErrorAs(t, SetPath(tree, "l.7", 1), &pathErr)

	popped, ok := PopPath(tree, "a.b")
	assert.True(t, ok)
	assert.Equal(t, 1, popped)
	assert.False(t, DeletePath(tree, "a.b"))
	assert.Equal(t, map[string]any{}, tree["a"])
}

func TestDeepMerge(t *testing.T) {
	t.Parallel()

	dst := map[string]any{
		"model":     map[string]any{"TYPE": "m.A", "x": 1, "y": 2},
		"optimizer": map[string]any{"TYPE": "m.SGD", "lr": 0.1, "momentum": 0.9},
		"keep":      true,
	}
	src := map[string]any{
		"model":     map[string]any{"y": 3, "z": []any{1}},
		"optimizer": map[string]any{"TYPE": "m.Adam", "lr": 0.01},
	}
	got := DeepMerge(dst, src)

	want := map[string]any{
		"model":     map[string]any{"TYPE": "m.A", "x": 1, "y": 3, "z": []any{1}},
		"optimizer": map[string]any{"TYPE": "m.Adam", "lr": 0.01},
		"keep":      true,
	}
	assert.Equal(t, want, got)

	// Merged values are copies.
	src["model"].(map[string]any)["z"].([]any)[0] = 99
	assert.Equal(t, []any{1}, got["model"].(map[string]any)["z"])
}

func TestRemoveMarked(t *testing.T) {
	t.Parallel()

	tree := map[string]any{
		"a":    "REMOVE",
		"b":    map[string]any{"c": "REMOVE", "d": 1},
		"list": []any{map[string]any{"e": "REMOVE"}, "REMOVE"},
	}
	RemoveMarked(tree)
	assert.Equal(t, map[string]any{
		"b":    map[string]any{"d": 1},
		"list": []any{map[string]any{}, "REMOVE"},
	}, tree)
}

func TestProcessLists(t *testing.T) {
	t.Parallel()

	tree := map[string]any{
		"callbacks": map[string]any{
			"TYPE": "LIST",
			"10":   "ten",
			"2":    "two",
			"1":    map[string]any{"TYPE": "LIST", "b": 2, "a": 1},
		},
		"model": map[string]any{"TYPE": "m.Model"},
	}
	got := ProcessLists(tree)
	assert.Equal(t, map[string]any{
		"callbacks": []any{[]any{1, 2}, "two", "ten"},
		"model":     map[string]any{"TYPE": "m.Model"},
	}, got)
}

func TestKwargsAndFlatten(t *testing.T) {
	t.Parallel()

	node := map[string]any{"TYPE": "m.A", "x": 1}
	assert.Equal(t, map[string]any{"x": 1}, Kwargs(node))
	assert.Contains(t, node, "TYPE")

	flat := Flatten(map[string]any{
		"a":     map[string]any{"b": 1, "c": []any{"x", "y"}},
		"empty": map[string]any{},
	})
	assert.Equal(t, map[string]any{
		"a.b":   1,
		"a.c.0": "x",
		"a.c.1": "y",
		"empty": map[string]any{},
	}, flat)
}

func TestOverrides(t *testing.T) {
	t.Parallel()

	assert.True(t, IsOverride("model.lr=0.1"))
	assert.False(t, IsOverride("configs/base.yaml"))
	assert.False(t, IsOverride("dir/a=b.yaml"))

	o, err := ParseOverride("model.layers=[1, 2]")
	require.NoError(t, err)
	assert.Equal(t, Override{Path: "model.layers", Value: []any{1, 2}}, o)

	_, err = ParseOverride("=3")
	assert.Error(t, err)

	tree := map[string]any{}
	require.NoError(t, Apply(tree, Override{Path: "a.b", Value: 1}, Override{Path: "a.c", Value: "x"}))
	assert.Equal(t, map[string]any{"a": map[string]any{"b": 1, "c": "x"}}, tree)
}

func TestExpandSweep(t *testing.T) {
	t.Parallel()

	combos, err := ExpandSweep([]string{"lr=[0.1, 0.01]", "model.depth=[2, 4, 8]"})
	require.NoError(t, err)
	require.Len(t, combos, 6)
	assert.Equal(t, []Override{{Path: "lr", Value: 0.1}, {Path: "model.depth", Value: 2}}, combos[0])
	assert.Equal(t, []Override{{Path: "lr", Value: 0.1}, {Path: "model.depth", Value: 4}}, combos[1])
	assert.Equal(t, []Override{{Path: "lr", Value: 0.01}, {Path: "model.depth", Value: 8}}, combos[5])

	combos, err = ExpandSweep(nil)
	require.NoError(t, err)
	assert.Equal(t, [][]Override{nil}, combos)

	_, err = ExpandSweep([]string{"lr=0.1"})
	assert.ErrorContains(t, err, "non-empty list")
}

func TestMarshal(t *testing.T) {
	t.Parallel()

	tree := map[string]any{
		"model": map[string]any{
			"b":    "3",
			"TYPE": "m.Model",
			"a":    []any{1, 2.5, nil},
			"cls":  model.ClassRef{Name: "m.Toy"},
		},
	}
	out, err := Marshal(tree)
	require.NoError(t, err)

	text := string(out)
	assert.True(t, strings.HasPrefix(text, "model:\n  TYPE: m.Model\n"), text)
	assert.Contains(t, text, "!!python/name:m.Toy")

	back, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, tree, back)
}
