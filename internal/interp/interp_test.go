package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(env map[string]string) *Engine {
	return New(WithLookupEnv(func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}))
}

func TestScanMarkers(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want []string
	}{
		{"plain", nil},
		{"((a.b))", []string{"a.b"}},
		{"x ((a)) y ((b))", []string{"a", "b"}},
		{"((`a` * (2)))", []string{"`a` * (2)"}},
		{"((max(`a`, 1)))", []string{"max(`a`, 1)"}},
		{"open (( only", nil},
		{"(x) (y)", nil},
	}
	for _, tt := range tests {
		var got []string
		for _, m := range scanMarkers(tt.in) {
			got = append(got, m.content)
		}
		assert.Equal(t, tt.want, got, "scanMarkers(%q)", tt.in)
	}
}

func TestIsEnvName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want bool
	}{
		{"HOME", true},
		{"DATA_DIR2", true},
		{"data_dir", false},
		{"Data", false},
		{"model.lr", false},
		{"_1", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isEnvName(tt.in), "isEnvName(%q)", tt.in)
	}
}

func TestResolveAllReferences(t *testing.T) {
	t.Parallel()

	tree := map[string]any{
		"a":     1,
		"b":     "((a))",
		"c":     "x-((a))-y",
		"d":     "((e.f))",
		"e":     map[string]any{"f": "((a))"},
		"l":     []any{10, "((a))"},
		"m":     "((l.0))",
		"n":     "((l[1]))",
		"plain": "no markers (here)",
	}
	got, err := newEngine(nil).ResolveAll(tree)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"a":     1,
		"b":     1,
		"c":     "x-1-y",
		"d":     1,
		"e":     map[string]any{"f": 1},
		"l":     []any{10, 1},
		"m":     10,
		"n":     1,
		"plain": "no markers (here)",
	}, got)
}

func TestResolveWholeMarkerKeepsNumericType(t *testing.T) {
	t.Parallel()

	tree := map[string]any{
		"size":   64,
		"rate":   0.5,
		"quoted": "128",
		"s":      "((size))",
		"r":      "((rate))",
		"q":      "((quoted))",
	}
	_, err := newEngine(nil).ResolveAll(tree)
	require.NoError(t, err)
	assert.Equal(t, 64, tree["s"])
	assert.Equal(t, 0.5, tree["r"])
	assert.Equal(t, 128, tree["q"])
}

func TestResolveCycle(t *testing.T) {
	t.Parallel()

	_, err := newEngine(nil).ResolveAll(map[string]any{"x": "((y))", "y": "((x))"})
	var cycle *CircularInterpolationError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"x", "y", "x"}, cycle.Cycle)
	assert.EqualError(t, err, "circular interpolation detected: x → y → x")
}

func TestResolveSelfAndNestedCycles(t *testing.T) {
	t.Parallel()

	_, err := newEngine(nil).ResolveAll(map[string]any{"a": "((a))"})
	var cycle *CircularInterpolationError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"a", "a"}, cycle.Cycle)

	_, err = newEngine(nil).ResolveAll(map[string]any{
		"a": map[string]any{"b": "pre ((c)) post"},
		"c": "((d))",
		"d": "((a.b))",
	})
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"a.b", "c", "d", "a.b"}, cycle.Cycle)
}

func TestResolveEnvironment(t *testing.T) {
	t.Parallel()

	e := newEngine(map[string]string{"PORT": "8080", "DATA_DIR": "/srv/data"})
	tree := map[string]any{
		"port": "((PORT))",
		"path": "((DATA_DIR))/train",
	}
	_, err := e.ResolveAll(tree)
	require.NoError(t, err)
	assert.Equal(t, 8080, tree["port"])
	assert.Equal(t, "/srv/data/train", tree["path"])

	_, err = e.ResolveAll(map[string]any{"x": "((MISSING))"})
	var undefined *UndefinedVariableError
	require.ErrorAs(t, err, &undefined)
	assert.Equal(t, "MISSING", undefined.Name)
	assert.Equal(t, "x", undefined.Path)
}

func TestResolveExpressions(t *testing.T) {
	t.Parallel()

	e := newEngine(map[string]string{"WORKERS": "4"})
	tree := map[string]any{
		"a":       3,
		"name":    "resnet",
		"double":  "((`a` * 2))",
		"half":    "((`a` / 2))",
		"bounded": "((max(`a`, 10)))",
		"size":    "((`a` > 2 ? \"big\" : \"small\"))",
		"label":   "run-((`a` + 1))-((name))",
		"upper":   "((upper(`name`)))",
		"env":     "((`WORKERS` * 2))",
		"chained": "((`double` + 1))",
	}
	_, err := e.ResolveAll(tree)
	require.NoError(t, err)

	assert.Equal(t, 6, tree["double"])
	assert.Equal(t, 1.5, tree["half"])
	assert.Equal(t, 10, tree["bounded"])
	assert.Equal(t, "big", tree["size"])
	assert.Equal(t, "run-4-resnet", tree["label"])
	assert.Equal(t, "RESNET", tree["upper"])
	assert.Equal(t, 8, tree["env"])
	assert.Equal(t, 7, tree["chained"])
}

func TestResolvePythonOperators(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want any
	}{
		{"((`batch_size`//len(`devices`)))", 32},
		{"((`batch_size` // length(`devices`)))", 32},
		{"((`n` // 2))", 3},
		{"((-`n` // 2))", -4},
		{"((`a` * 10 // 4))", 7},
		{"((`n` % 4))", 3},
		{"((`two` ** 3 ** 2))", 512},
		{"((-`two` ** 2))", -4},
		{"((`two` ** -1))", 0.5},
		{"((`a` > 2 and not False))", true},
		{"((`a` < 2 or True))", true},
		{"((`a` < 2 and True))", false},
		{"((upper(\"`name`\")))", "RESNET"},
		{"((upper('`name`-v2')))", "RESNET-V2"},
		{"((format('%s_%d', `name`, `a`)))", "resnet_3"},
		{"((format('%s//%s', `name`, 'x')))", "resnet//x"},
	}
	for _, tt := range tests {
		tree := map[string]any{
			"a":          3,
			"n":          7,
			"two":        2,
			"name":       "resnet",
			"batch_size": 64,
			"devices":    []any{1, 2},
		}
		got, err := newEngine(nil).ResolveValue(tree, tt.raw, "p")
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestResolveRejectsUnsupportedSyntax(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{
		"((`a` # note))",
		"((`a` /* note */))",
		"((`a` << 1))",
		"((upper(\"`a`)))",
	} {
		_, err := newEngine(nil).ResolveValue(map[string]any{"a": 1}, raw, "p")
		var exprErr *ExpressionError
		require.ErrorAs(t, err, &exprErr, raw)
		assert.Equal(t, "p", exprErr.Path, raw)
	}
}

func TestResolveExpressionErrors(t *testing.T) {
	t.Parallel()

	var exprErr *ExpressionError
	_, err := newEngine(nil).ResolveAll(map[string]any{"a": 1, "b": "((`a * 2))"})
	require.ErrorAs(t, err, &exprErr)
	assert.Equal(t, "b", exprErr.Path)

	_, err = newEngine(nil).ResolveAll(map[string]any{"a": 1, "b": "((`a` * ))"})
	require.ErrorAs(t, err, &exprErr)
}

func TestResolveReferenceNotFound(t *testing.T) {
	t.Parallel()

	_, err := newEngine(nil).ResolveAll(map[string]any{"a": "((nope.x))"})
	var notFound *ReferenceNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nope.x", notFound.Reference)
	assert.Equal(t, "a", notFound.Path)
}

func TestResolveSubtreeReferenceIsCopied(t *testing.T) {
	t.Parallel()

	tree := map[string]any{
		"base": map[string]any{"x": 1, "y": "((z))"},
		"copy": "((base))",
		"z":    2,
	}
	_, err := newEngine(nil).ResolveAll(tree)
	require.NoError(t, err)

	want := map[string]any{"x": 1, "y": 2}
	assert.Equal(t, want, tree["base"])
	assert.Equal(t, want, tree["copy"])

	tree["copy"].(map[string]any)["x"] = 99
	assert.Equal(t, 1, tree["base"].(map[string]any)["x"])
}

func TestResolveIsIdempotent(t *testing.T) {
	t.Parallel()

	tree := map[string]any{
		"a": 2,
		"b": "((`a` * 3))",
		"c": map[string]any{"d": "v((b))"},
	}
	e := newEngine(nil)
	first, err := e.ResolveAll(tree)
	require.NoError(t, err)
	snapshot := map[string]any{"a": 2, "b": 6, "c": map[string]any{"d": "v6"}}
	assert.Equal(t, snapshot, first)

	second, err := e.ResolveAll(first)
	require.NoError(t, err)
	assert.Equal(t, snapshot, second)
}

func TestResolveValueWithoutMarkersIsUnchanged(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "plain", "f(x)", "((unclosed", "a ) ) b"} {
		got, err := newEngine(nil).ResolveValue(map[string]any{}, raw, "p")
		require.NoError(t, err)
		assert.Equal(t, raw, got)
	}
}
