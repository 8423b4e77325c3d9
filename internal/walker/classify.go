package walker

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/treeindex/pkg/types"
)

// Classify reads the metadata of a single path and decides whether it is
// indexable. It follows symlinks, so a link to a regular file is a file and a
// dangling link is skipped. Any metadata failure skips the path; it is never
// reported as an error.
func Classify(path string) (types.Entry, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return types.Entry{}, false
	}

	name := filepath.Base(path)
	entry := types.Entry{
		Path:   path,
		Name:   name,
		Hidden: IsHidden(name),
	}

	switch {
	case info.Mode().IsRegular():
		size := info.Size()
		entry.Kind = types.KindFile
		entry.Size = &size
	case info.IsDir():
		entry.Kind = types.KindFolder
	default:
		// Sockets, devices, pipes
		return types.Entry{}, false
	}

	if mod := info.ModTime(); !mod.IsZero() {
		entry.ModTime = &mod
	}

	return entry, true
}

// IsHidden reports whether a base name follows the dot-file convention
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
