package types

import (
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes files from folders in the index
type Kind string

const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	return k == KindFile || k == KindFolder
}

// Entry is the metadata snapshot of a single classified filesystem path
type Entry struct {
	Path    string
	Name    string
	Kind    Kind
	Size    *int64     // Nil for folders
	ModTime *time.Time // Nil when the platform could not report it
	Hidden  bool
}

// Record is the document pushed to the search index for one filesystem node.
// Field names are the index attribute names.
type Record struct {
	ID         string  `json:"id"`
	Path       string  `json:"path"`
	Name       string  `json:"name"`
	Kind       Kind    `json:"kind"`
	SizeBytes  *int64  `json:"size_bytes,omitempty"`
	ModifiedAt *int64  `json:"modified_at,omitempty"` // Unix seconds
	IsHidden   bool    `json:"is_hidden"`
	ProjectID  string  `json:"project_id"`
	LastSeenAt int64   `json:"last_seen_at"` // Unix milliseconds of the walk
	Preview    *string `json:"preview"`
}

// RecordID derives the stable document id for an absolute path.
// The same path always yields the same id, across runs and processes.
func RecordID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(path)).String()
}

// SeenAt converts a walk reference time to the last_seen_at representation
func SeenAt(t time.Time) int64 {
	return t.UnixMilli()
}

// NewRecord builds the index document for a classified entry.
// It is a pure function of its inputs.
func NewRecord(e Entry, projectID string, walkTime time.Time) Record {
	r := Record{
		ID:         RecordID(e.Path),
		Path:       e.Path,
		Name:       e.Name,
		Kind:       e.Kind,
		IsHidden:   e.Hidden,
		ProjectID:  projectID,
		LastSeenAt: SeenAt(walkTime),
	}

	if e.Kind == KindFile && e.Size != nil {
		size := *e.Size
		r.SizeBytes = &size
	}

	if e.ModTime != nil {
		mod := e.ModTime.Unix()
		r.ModifiedAt = &mod
	}

	return r
}

// Validate checks the record invariants
func (r *Record) Validate() error {
	if r.ID == "" {
		return ErrMissingID
	}
	if r.Path == "" {
		return ErrMissingPath
	}
	if r.ID != RecordID(r.Path) {
		return ErrMismatchedID
	}
	if r.ProjectID == "" {
		return ErrMissingProjectID
	}

	switch r.Kind {
	case KindFile:
		if r.SizeBytes == nil {
			return ErrMissingSize
		}
	case KindFolder:
		if r.SizeBytes != nil {
			return ErrSizeOnFolder
		}
	default:
		return ErrInvalidKind
	}

	return nil
}
