package storage

import (
	"context"
	"time"
)

// Run statuses
const (
	StatusSucceeded = "succeeded"
	StatusPartial   = "partial" // some batches or the deletion pass failed
	StatusFailed    = "failed"
	StatusSkipped   = "skipped" // guard held by another run
)

// Trigger sources
const (
	SourceCron   = "cron"
	SourceManual = "manual"
)

// Storage persists the history of sync runs
type Storage interface {
	// RecordRun inserts run and sets its ID
	RecordRun(ctx context.Context, run *SyncRun) error
	// ListRuns returns up to limit runs, newest first. An empty projectID lists every project.
	ListRuns(ctx context.Context, projectID string, limit int) ([]*SyncRun, error)
	// LastRun returns the newest run of a project or ErrNotFound
	LastRun(ctx context.Context, projectID string) (*SyncRun, error)
	// PruneRuns keeps the newest keep runs of each project and returns how many were deleted
	PruneRuns(ctx context.Context, keep int) (int64, error)

	Close() error
}

// SyncRun is the outcome of one trigger
type SyncRun struct {
	ID             int64
	ProjectID      string
	RootPath       string
	Status         string
	Source         string
	StartedAt      time.Time
	FinishedAt     time.Time
	Records        int
	RecordsSkipped int
	Batches        int
	FailedBatches  int
	DeletionOK     bool
	Error          string // empty when the run succeeded
}

// Duration returns how long the run took
func (r *SyncRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
