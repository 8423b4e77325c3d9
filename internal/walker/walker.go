package walker

import (
	"context"
	"iter"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dshills/treeindex/pkg/types"
)

// Options controls which paths a walk yields
type Options struct {
	MaxDepth       int    // 0 means unbounded; N yields entries at most N levels below root
	IndexHidden    bool   // Include dot-prefixed entries
	FollowSymlinks bool   // Descend into symlinked directories
	IgnoreFile     string // Per-directory ignore-file name; empty disables ignore files
}

// OptionsFor returns the walk options of a project
func OptionsFor(p types.Project) Options {
	return Options{
		MaxDepth:       p.MaxDepth,
		IndexHidden:    p.IndexHidden,
		FollowSymlinks: p.FollowSymlinks,
		IgnoreFile:     p.IgnoreFile,
	}
}

// Walker traverses a directory tree applying depth, hidden, symlink and
// ignore-file policies
type Walker struct {
	opts   Options
	cache  *IgnoreCache
	logger *slog.Logger
}

// New creates a Walker. cache may be nil, in which case ignore files are
// compiled on every walk.
func New(opts Options, cache *IgnoreCache, logger *slog.Logger) *Walker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Walker{opts: opts, cache: cache, logger: logger}
}

// Walk returns a lazy sequence of the paths under root, root included, in
// depth-first pre-order with each directory's entries in lexical order. Each
// iteration of the returned sequence performs a fresh traversal. Unreadable
// directories are skipped; traversal never fails as a whole.
func (w *Walker) Walk(ctx context.Context, root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		root := filepath.Clean(root)

		info, err := os.Stat(root)
		if err != nil {
			w.logger.Warn("cannot stat walk root", slog.String("root", root), slog.String("error", err.Error()))
			return
		}

		if !yield(root) || !info.IsDir() {
			return
		}

		t := &traversal{
			Walker:    w,
			ctx:       ctx,
			yield:     yield,
			ancestors: []os.FileInfo{info},
		}
		t.dir(root, 0, nil)
	}
}

// traversal holds the state of one iteration of a Walk sequence
type traversal struct {
	*Walker
	ctx       context.Context
	yield     func(string) bool
	ancestors []os.FileInfo // Directories on the current path, for loop detection
}

// dir visits the children of dir, which sits depth levels below root.
// It returns false once the consumer stopped or the context is done.
func (t *traversal) dir(dir string, depth int, rules []rule) bool {
	if t.ctx.Err() != nil {
		return false
	}
	if t.opts.MaxDepth > 0 && depth >= t.opts.MaxDepth {
		return true
	}

	if t.opts.IgnoreFile != "" {
		if rs := t.cache.load(filepath.Join(dir, t.opts.IgnoreFile)); len(rs) > 0 {
			// Copy so sibling subtrees never share an appended backing array
			next := make([]rule, len(rules), len(rules)+1)
			copy(next, rules)
			rules = append(next, rule{base: dir, rules: rs})
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.logger.Debug("skipping unreadable directory", slog.String("path", dir), slog.String("error", err.Error()))
		return true
	}

	for _, entry := range entries {
		name := entry.Name()
		if !t.opts.IndexHidden && IsHidden(name) {
			continue
		}

		path := filepath.Join(dir, name)
		isDir, target := t.resolve(path, entry)

		if ignoredBy(rules, path, isDir) {
			continue
		}

		if !t.yield(path) {
			return false
		}

		if !isDir || t.isAncestor(target) {
			continue
		}

		t.ancestors = append(t.ancestors, target)
		ok := t.dir(path, depth+1, rules)
		t.ancestors = t.ancestors[:len(t.ancestors)-1]
		if !ok {
			return false
		}
	}

	return true
}

// resolve reports whether the entry should be descended into and returns
// the FileInfo of the directory it leads to
func (t *traversal) resolve(path string, entry os.DirEntry) (bool, os.FileInfo) {
	if entry.Type()&os.ModeSymlink != 0 {
		if !t.opts.FollowSymlinks {
			return false, nil
		}
		info, err := os.Stat(path)
		if err != nil {
			// Dangling link: yielded as a leaf, the classifier drops it
			return false, nil
		}
		return info.IsDir(), info
	}

	if !entry.IsDir() {
		return false, nil
	}
	info, err := entry.Info()
	if err != nil {
		return false, nil
	}
	return true, info
}

func (t *traversal) isAncestor(info os.FileInfo) bool {
	for _, a := range t.ancestors {
		if os.SameFile(a, info) {
			return true
		}
	}
	return false
}

// Entries composes Walk with Classify, yielding only indexable entries
func (w *Walker) Entries(ctx context.Context, root string) iter.Seq[types.Entry] {
	return func(yield func(types.Entry) bool) {
		for path := range w.Walk(ctx, root) {
			entry, ok := Classify(path)
			if !ok {
				w.logger.Debug("skipping unclassifiable path", slog.String("path", path))
				continue
			}
			if !yield(entry) {
				return
			}
		}
	}
}
