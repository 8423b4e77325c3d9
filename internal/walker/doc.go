// Package walker turns a directory tree into a lazy stream of indexable
// filesystem entries.
//
// Walk yields paths; Classify turns a path into a types.Entry or drops it.
// Entries composes both:
//
//	w := walker.New(walker.OptionsFor(project), cache, logger)
//	for entry := range w.Entries(ctx, project.Root) {
//	    rec := types.NewRecord(entry, project.ID, walkTime)
//	    ...
//	}
//
// The root itself is always yielded first, so a root holding one file and one
// empty folder produces three entries.
//
// Ignore files use gitignore syntax. Each directory may hold one; its rules
// apply to the directory's subtree and the nearest file with an opinion wins.
// Hidden filtering is applied on top of ignore files only when hidden entries
// are not indexed.
package walker
