package walker

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/treeindex/pkg/types"
)

// writeFile creates a file (and its parents) under root
func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// mkdir creates a directory (and its parents) under root
func mkdir(t *testing.T, root, rel string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(path, 0755))
	return path
}

// collect walks root and returns paths relative to root, "." for the root
func collect(t *testing.T, root string, opts Options) []string {
	t.Helper()
	w := New(opts, nil, nil)
	var rels []string
	for path := range w.Walk(context.Background(), root) {
		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)
		rels = append(rels, filepath.ToSlash(rel))
	}
	return rels
}

func TestWalk_RootIsCounted(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "file1.txt", "This is a test file\n")
	mkdir(t, root, "folder1")

	got := collect(t, root, Options{})
	assert.Equal(t, []string{".", "file1.txt", "folder1"}, got)
}

func TestWalk_NestedSubfolders(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "file1.txt", "a")
	writeFile(t, root, "folder1/file2.txt", "b")
	writeFile(t, root, "folder1/subfolder1/file3.txt", "c")

	got := collect(t, root, Options{})
	assert.Equal(t, []string{
		".",
		"file1.txt",
		"folder1",
		"folder1/file2.txt",
		"folder1/subfolder1",
		"folder1/subfolder1/file3.txt",
	}, got)
}

func TestWalk_HiddenToggle(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "visible.txt", "v")
	writeFile(t, root, ".hidden_file", "h")
	writeFile(t, root, ".hidden_folder/inner.txt", "i")
	writeFile(t, root, "dir/.env", "e")
	writeFile(t, root, "dir/keep.go", "k")

	without := collect(t, root, Options{IndexHidden: false})
	with := collect(t, root, Options{IndexHidden: true})

	assert.Equal(t, []string{".", "dir", "dir/keep.go", "visible.txt"}, without)
	assert.Equal(t, []string{
		".",
		".hidden_file",
		".hidden_folder",
		".hidden_folder/inner.txt",
		"dir",
		"dir/.env",
		"dir/keep.go",
		"visible.txt",
	}, with)

	// Toggling only changes the presence of dot-prefixed entries and their subtrees
	var extra []string
	set := make(map[string]bool)
	for _, p := range without {
		set[p] = true
	}
	for _, p := range with {
		if !set[p] {
			extra = append(extra, p)
		}
	}
	assert.Equal(t, []string{".hidden_file", ".hidden_folder", ".hidden_folder/inner.txt", "dir/.env"}, extra)
}

func TestWalk_HiddenRootIsWalked(t *testing.T) {
	root := mkdir(t, t.TempDir(), ".config")
	writeFile(t, root, "app.toml", "x")

	got := collect(t, root, Options{})
	assert.Equal(t, []string{".", "app.toml"}, got)
}

func TestWalk_MaxDepth(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "top.txt", "1")
	writeFile(t, root, "a/level2.txt", "2")
	writeFile(t, root, "a/b/level3.txt", "3")

	tests := []struct {
		name     string
		maxDepth int
		want     []string
	}{
		{"depth 1", 1, []string{".", "a", "top.txt"}},
		{"depth 2", 2, []string{".", "a", "a/b", "a/level2.txt", "top.txt"}},
		{"unbounded", 0, []string{".", "a", "a/b", "a/b/level3.txt", "a/level2.txt", "top.txt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, collect(t, root, Options{MaxDepth: tt.maxDepth}))
		})
	}
}

func TestWalk_IgnoreFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".indexignore", "*.log\nbuild/\n")
	writeFile(t, root, "app.log", "x")
	writeFile(t, root, "main.go", "x")
	writeFile(t, root, "build/out.bin", "x")
	writeFile(t, root, "src/debug.log", "x")
	writeFile(t, root, "src/.indexignore", "!keep.log\nsecret.txt\n")
	writeFile(t, root, "src/keep.log", "x")
	writeFile(t, root, "src/secret.txt", "x")
	writeFile(t, root, "src/lib.go", "x")
	writeFile(t, root, "other/secret.txt", "x")

	got := collect(t, root, Options{IgnoreFile: ".indexignore"})
	assert.Equal(t, []string{
		".",
		"main.go",
		"other",
		"other/secret.txt",
		"src",
		"src/keep.log",
		"src/lib.go",
	}, got)
}

func TestWalk_IgnoreFileIgnoredWithoutName(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".indexignore", "*.log\n")
	writeFile(t, root, "app.log", "x")

	got := collect(t, root, Options{})
	assert.Equal(t, []string{".", "app.log"}, got)
}

func TestWalk_IgnoreIndependentOfHidden(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".indexignore", ".cache/\n")
	writeFile(t, root, ".cache/blob", "x")
	writeFile(t, root, ".profile", "x")

	got := collect(t, root, Options{IndexHidden: true, IgnoreFile: ".indexignore"})
	assert.Equal(t, []string{".", ".indexignore", ".profile"}, got)
}

func TestWalk_Symlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}

	root := t.TempDir()
	outside := t.TempDir()
	writeFile(t, outside, "linked.txt", "x")
	writeFile(t, root, "real.txt", "x")
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "link")))
	// A link back to the root must not loop
	require.NoError(t, os.Symlink(root, filepath.Join(root, "loop")))

	t.Run("not followed", func(t *testing.T) {
		got := collect(t, root, Options{})
		assert.Equal(t, []string{".", "link", "loop", "real.txt"}, got)
	})

	t.Run("followed", func(t *testing.T) {
		got := collect(t, root, Options{FollowSymlinks: true})
		assert.Equal(t, []string{".", "link", "link/linked.txt", "loop", "real.txt"}, got)
	})
}

func TestWalk_UnreadableSubtreeIsSkipped(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}

	root := t.TempDir()
	writeFile(t, root, "a.txt", "x")
	locked := mkdir(t, root, "locked")
	writeFile(t, root, "locked/inner.txt", "x")
	writeFile(t, root, "z.txt", "x")
	require.NoError(t, os.Chmod(locked, 0))
	t.Cleanup(func() { _ = os.Chmod(locked, 0755) })

	got := collect(t, root, Options{})
	assert.Equal(t, []string{".", "a.txt", "locked", "z.txt"}, got)
}

func TestWalk_IsLazyAndRestartable(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a", "b", "c", "d"} {
		writeFile(t, root, name, "x")
	}

	seq := New(Options{}, nil, nil).Walk(context.Background(), root)

	var first []string
	for p := range seq {
		first = append(first, p)
		if len(first) == 2 {
			break
		}
	}
	assert.Len(t, first, 2)

	var full []string
	for p := range seq {
		full = append(full, p)
	}
	assert.Len(t, full, 5)
	assert.Equal(t, first, full[:2])
}

func TestWalk_MissingRoot(t *testing.T) {
	got := collect(t, filepath.Join(t.TempDir(), "nope"), Options{})
	assert.Empty(t, got)
}

func TestWalk_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a/b.txt", "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var got []string
	for p := range New(Options{}, nil, nil).Walk(ctx, root) {
		got = append(got, p)
	}
	assert.Equal(t, []string{filepath.Clean(root)}, got)
}

func TestEntries_ClassifiesAndSizes(t *testing.T) {
	root := t.TempDir()
	file := writeFile(t, root, "file1.txt", "This is a test file\n")
	mkdir(t, root, "folder1")

	w := New(Options{}, nil, nil)
	byName := make(map[string]types.Entry)
	for e := range w.Entries(context.Background(), root) {
		byName[e.Name] = e
	}
	require.Len(t, byName, 3)

	info, err := os.Stat(file)
	require.NoError(t, err)

	f := byName["file1.txt"]
	assert.Equal(t, types.KindFile, f.Kind)
	require.NotNil(t, f.Size)
	assert.Equal(t, info.Size(), *f.Size)
	assert.NotNil(t, f.ModTime)
	assert.False(t, f.Hidden)

	d := byName["folder1"]
	assert.Equal(t, types.KindFolder, d.Kind)
	assert.Nil(t, d.Size)
}

func TestClassify(t *testing.T) {
	root := t.TempDir()
	file := writeFile(t, root, ".hidden_file", "")
	dir := mkdir(t, root, ".hidden_folder")

	e, ok := Classify(file)
	require.True(t, ok)
	assert.Equal(t, types.KindFile, e.Kind)
	require.NotNil(t, e.Size)
	assert.Equal(t, int64(0), *e.Size)
	assert.True(t, e.Hidden)

	e, ok = Classify(dir)
	require.True(t, ok)
	assert.Equal(t, types.KindFolder, e.Kind)
	assert.Nil(t, e.Size)
	assert.True(t, e.Hidden)

	_, ok = Classify(filepath.Join(root, "missing"))
	assert.False(t, ok)

	if runtime.GOOS != "windows" {
		dangling := filepath.Join(root, "dangling")
		require.NoError(t, os.Symlink(filepath.Join(root, "gone"), dangling))
		_, ok = Classify(dangling)
		assert.False(t, ok)
	}
}

func TestIgnoreCache_ReloadsEditedFile(t *testing.T) {
	root := t.TempDir()
	ignorePath := writeFile(t, root, ".indexignore", "*.log\n")
	writeFile(t, root, "a.log", "x")
	writeFile(t, root, "b.tmp", "x")

	cache, err := NewIgnoreCache(8)
	require.NoError(t, err)

	walk := func() []string {
		var names []string
		for p := range New(Options{IgnoreFile: ".indexignore", IndexHidden: true}, cache, nil).Walk(context.Background(), root) {
			names = append(names, filepath.Base(p))
		}
		sort.Strings(names[1:])
		return names[1:]
	}

	assert.Equal(t, []string{".indexignore", "b.tmp"}, walk())
	assert.Equal(t, 1, cache.Len())

	// Different size forces recompilation even within the same mtime tick
	require.NoError(t, os.WriteFile(ignorePath, []byte("*.tmp\n# edited\n"), 0644))
	assert.Equal(t, []string{".indexignore", "a.log"}, walk())
}
