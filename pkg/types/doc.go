// Package types provides shared type definitions for treeindex.
//
// This package defines the domain types that flow through the sync pipeline:
// the classified filesystem entry, the index record built from it, and the
// project definition that owns both.
//
// # Records
//
// Record is the document stored in the remote search index. Its id is a
// UUIDv5 over the absolute path, so repeated walks of an unchanged tree
// produce byte-identical ids:
//
//	rec := types.NewRecord(entry, project.ID, walkTime)
//	// rec.ID == types.RecordID(entry.Path)
//
// Every record produced by one walk carries the same LastSeenAt value. After
// a walk, documents of the project with an older LastSeenAt are stale and are
// removed from the index.
//
// # Invariants
//
//   - ID is a pure function of Path
//   - SizeBytes is set iff Kind is KindFile
//   - every record belongs to exactly one ProjectID
//   - Preview is always nil (content extraction is not performed)
//
// # Validation
//
//	if err := rec.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := project.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package types
