package discover

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverPythonFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.py", "print('hello')")
	writeFile(t, dir, "lib/util.py", "def helper(): pass")
	writeFile(t, dir, "lib/__init__.py", "")
	// Non-Python file should be ignored
	writeFile(t, dir, "readme.txt", "hello")
	// Hidden file should be ignored
	writeFile(t, dir, ".hidden.py", "secret")

	entries, err := Files(dir)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	want := []struct{ path, module string }{
		{filepath.Join("lib", "__init__.py"), "lib"},
		{filepath.Join("lib", "util.py"), "lib.util"},
		{"main.py", "main"},
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d: %+v", len(want), len(entries), entries)
	}
	for i, w := range want {
		if entries[i].Path != w.path || entries[i].Module != w.module {
			t.Errorf("entry %d = %+v, want %s (%s)", i, entries[i], w.path, w.module)
		}
		if entries[i].Root != dir {
			t.Errorf("entry %d root = %q", i, entries[i].Root)
		}
	}
}

func TestDiscoverSkipDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.py", "pass")
	writeFile(t, dir, "node_modules/pkg.py", "pass")
	writeFile(t, dir, "__pycache__/cached.py", "pass")
	writeFile(t, dir, ".hidden/secret.py", "pass")
	writeFile(t, dir, "synconf.egg-info/x.py", "pass")

	entries, err := Files(dir)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Path != "main.py" {
		t.Errorf("expected main.py, got %q", entries[0].Path)
	}
}

func TestDiscoverGitignore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "generated/\n")
	writeFile(t, dir, "keep.py", "pass")
	writeFile(t, dir, "generated/out.py", "pass")

	entries, err := Files(dir)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 1 || entries[0].Module != "keep" {
		t.Fatalf("expected only keep.py, got %+v", entries)
	}
}

func TestDiscoverSymlinksSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "real.py", "pass")

	err := os.Symlink(filepath.Join(dir, "real.py"), filepath.Join(dir, "link.py"))
	if err != nil {
		t.Skip("symlinks not supported")
	}

	entries, err := Files(dir)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry (no symlink), got %d", len(entries))
	}
	if entries[0].Path != "real.py" {
		t.Errorf("expected real.py, got %q", entries[0].Path)
	}
}

func TestIndexEarlierRootWins(t *testing.T) {
	t.Parallel()

	first := t.TempDir()
	second := t.TempDir()
	writeFile(t, first, "shared.py", "A = 1")
	writeFile(t, second, "shared.py", "A = 2")
	writeFile(t, second, "only.py", "pass")

	index, err := Index([]string{first, second})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(index) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(index))
	}
	if index["shared"].Root != first {
		t.Errorf("shared resolved to %q, want %q", index["shared"].Root, first)
	}
	if index["only"].Abs() != filepath.Join(second, "only.py") {
		t.Errorf("only abs = %q", index["only"].Abs())
	}
}

func TestIndexMissingRoot(t *testing.T) {
	t.Parallel()

	if _, err := Index([]string{filepath.Join(t.TempDir(), "nope")}); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestModuleName(t *testing.T) {
	t.Parallel()
	cases := []struct {
		path string
		want string
		ok   bool
	}{
		{"mod.py", "mod", true},
		{"pkg/sub/mod.py", "pkg.sub.mod", true},
		{"pkg/__init__.py", "pkg", true},
		{"__init__.py", "", false},
		{"my-pkg/mod.py", "", false},
		{"pkg/1mod.py", "", false},
		{"_private/_m.py", "_private._m", true},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			got, ok := ModuleName(tc.path)
			if got != tc.want || ok != tc.ok {
				t.Errorf("ModuleName(%q) = %q, %v; want %q, %v", tc.path, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
