package types

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
)

var projectIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Project describes one directory tree kept in sync with the index.
// Projects are immutable once loaded.
type Project struct {
	ID             string
	Root           string // Absolute path
	Schedule       string // Cron expression
	MaxDepth       int    // 0 means unbounded
	IgnoreFile     string // Optional custom ignore-file name, e.g. ".indexignore"
	IndexHidden    bool
	FollowSymlinks bool
}

// DefaultProjectID derives a project id from its root so that it stays
// stable across restarts when the configuration does not name one.
func DefaultProjectID(root string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(filepath.Clean(root))).String()
}

// Validate checks the project definition
func (p *Project) Validate() error {
	if !projectIDPattern.MatchString(p.ID) {
		return fmt.Errorf("%w: %q", ErrInvalidProjectID, p.ID)
	}
	if p.Root == "" {
		return ErrMissingRoot
	}
	if !filepath.IsAbs(p.Root) {
		return fmt.Errorf("%w: %q", ErrRelativeRoot, p.Root)
	}
	if p.Schedule == "" {
		return ErrMissingSchedule
	}
	if p.MaxDepth < 0 {
		return ErrNegativeDepth
	}
	return nil
}

// String returns a one-line description suitable for logs
func (p Project) String() string {
	depth := "unbounded"
	if p.MaxDepth > 0 {
		depth = fmt.Sprintf("%d", p.MaxDepth)
	}
	ignore := p.IgnoreFile
	if ignore == "" {
		ignore = "none"
	}
	return fmt.Sprintf("%s root=%s schedule=%q depth=%s ignore=%s hidden=%t symlinks=%t",
		p.ID, p.Root, p.Schedule, depth, ignore, p.IndexHidden, p.FollowSymlinks)
}
