package types

import "errors"

// Domain errors for record and project validation
var (
	// Record errors
	ErrMissingID        = errors.New("record id is required")
	ErrMismatchedID     = errors.New("record id does not match path")
	ErrMissingPath      = errors.New("record path is required")
	ErrMissingProjectID = errors.New("project id is required")
	ErrInvalidKind      = errors.New("invalid entry kind")
	ErrSizeOnFolder     = errors.New("folders must not carry a size")
	ErrMissingSize      = errors.New("files must carry a size")

	// Project errors
	ErrInvalidProjectID = errors.New("project id may only contain letters, digits, '-' and '_'")
	ErrMissingRoot      = errors.New("project root is required")
	ErrRelativeRoot     = errors.New("project root must be absolute")
	ErrMissingSchedule  = errors.New("project schedule is required")
	ErrNegativeDepth    = errors.New("max depth must be >= 0")
)
