package symtab

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/synconf/internal/model"
)

func newTable(t *testing.T, files map[string]string) *Table {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	table, err := Load([]string{root}, 4, nil)
	require.NoError(t, err)
	return table
}

func names(classes []*model.Class) []string {
	out := make([]string, len(classes))
	for i, c := range classes {
		out[i] = c.QualName()
	}
	return out
}

func TestLookupFollowsImports(t *testing.T) {
	t.Parallel()

	table := newTable(t, map[string]string{
		"pkg/__init__.py": "from .models import Child\n",
		"pkg/models.py": `from pkg.base import Parent as P

class Child(P):
    def __init__(self, d, **kwargs):
        super().__init__(**kwargs)
`,
		"pkg/base.py": `class Parent:
    def __init__(self, a, b=1):
        pass

    @classmethod
    def create(cls, e="hi"):
        pass
`,
	})

	sym, ok := table.Lookup("pkg.Child")
	require.True(t, ok)
	require.NotNil(t, sym.Class)
	assert.Equal(t, "pkg.models.Child", sym.Class.QualName())

	sym, ok = table.Lookup("pkg.models.P")
	require.True(t, ok)
	assert.Equal(t, "pkg.base.Parent", sym.Class.QualName())

	sym, ok = table.Lookup("pkg.models.Child.create")
	require.True(t, ok)
	require.NotNil(t, sym.Func)
	assert.Equal(t, "pkg.base.Parent.create", sym.Func.QualName())

	sym, ok = table.Lookup("pkg.base")
	require.True(t, ok)
	assert.NotNil(t, sym.Module)

	_, ok = table.Lookup("pkg.models.Nope")
	assert.False(t, ok)
	_, ok = table.Lookup("numpy.array")
	assert.False(t, ok)
}

func TestMROAndSignature(t *testing.T) {
	t.Parallel()

	table := newTable(t, map[string]string{
		"m.py": `from ext import Remote

class A:
    def __init__(self, x: int, **kwargs):
        pass

class B(A):
    pass

class C(A):
    def __init__(self, y, **kwargs):
        pass

class D(B, C):
    pass

class E(Remote):
    pass

def f(p, *args, q=3, **kw):
    pass
`,
	})

	d, ok := table.Lookup("m.D")
	require.True(t, ok)
	mro, err := table.MRO(d.Class)
	require.NoError(t, err)
	assert.Equal(t, []string{"m.D", "m.B", "m.C", "m.A", "builtins.object"}, names(mro))

	init, owner, ok := table.FindMethod(d.Class, "__init__")
	require.True(t, ok)
	assert.Equal(t, "m.C", owner.QualName())
	assert.Equal(t, "y", init.Params[1].Name)

	callable, ok := table.Callable(d)
	require.True(t, ok)
	assert.Equal(t, model.Identity("m.D"), callable.Identity())
	sig, err := table.Signature(callable)
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "kwargs"}, sig.Names())

	e, ok := table.Lookup("m.E")
	require.True(t, ok)
	mro, err = table.MRO(e.Class)
	require.NoError(t, err)
	assert.Equal(t, []string{"m.E", "ext.Remote", "builtins.object"}, names(mro))
	assert.True(t, mro[1].External)

	// E inherits the opaque (*args, **kwargs) constructor of its external base.
	callable, _ = table.Callable(e)
	sig, err = table.Signature(callable)
	require.NoError(t, err)
	assert.Equal(t, []string{"args", "kwargs"}, sig.Names())

	f, ok := table.Lookup("m.f")
	require.True(t, ok)
	callable, _ = table.Callable(f)
	sig, err = table.Signature(callable)
	require.NoError(t, err)
	assert.Equal(t, []string{"p", "args", "q", "kw"}, sig.Names())

	a, _ := table.Lookup("m.A")
	assert.True(t, table.IsSubclass(d.Class, a.Class))
	assert.False(t, table.IsSubclass(a.Class, d.Class))
	assert.True(t, table.IsSubclass(a.Class, table.Object()))
}

func TestInconsistentMRO(t *testing.T) {
	t.Parallel()

	table := newTable(t, map[string]string{
		"m.py": `class X: pass
class Y: pass
class A(X, Y): pass
class B(Y, X): pass
class C(A, B): pass
`,
	})
	c, ok := table.Lookup("m.C")
	require.True(t, ok)
	_, err := table.MRO(c.Class)
	var mroErr *InconsistentMROError
	require.ErrorAs(t, err, &mroErr)
	assert.Equal(t, "m.C", mroErr.Class)
}

func TestModuleNotFound(t *testing.T) {
	t.Parallel()

	table := newTable(t, map[string]string{"a.py": ""})
	_, err := table.Module("missing")
	assert.True(t, IsNotFound(err))

	mod, err := table.Module(BuiltinsModule)
	require.NoError(t, err)
	assert.Contains(t, mod.Classes, "object")
}

func TestModuleCacheEviction(t *testing.T) {
	t.Parallel()

	files := map[string]string{}
	for _, n := range []string{"a", "b", "c", "d", "e", "f"} {
		files[n+".py"] = "def " + n + "(): pass\n"
	}
	table := newTable(t, files)
	for _, n := range []string{"a", "b", "c", "d", "e", "f", "a"} {
		sym, ok := table.Lookup(n + "." + n)
		require.True(t, ok, n)
		assert.Equal(t, n+"."+n, sym.Func.QualName())
	}
	assert.LessOrEqual(t, table.cache.Len(), 4)
}
