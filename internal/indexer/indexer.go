package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dshills/treeindex/internal/search"
	"github.com/dshills/treeindex/internal/walker"
	"github.com/dshills/treeindex/pkg/types"
)

const (
	// DefaultIndexName is used when no index name is configured
	DefaultIndexName = "treeindex"
	// DefaultBatchSize keeps a serialized batch well below the engine's payload limit
	DefaultBatchSize = 10000
	// PrimaryKey is the document attribute the index is keyed by
	PrimaryKey = "id"
)

var (
	// ErrPartialSync is returned when a run finished but some batches or the
	// deletion pass failed
	ErrPartialSync = errors.New("sync completed with errors")
	// ErrRootUnavailable is returned when the project root cannot be read.
	// Nothing is submitted or deleted in that case.
	ErrRootUnavailable = errors.New("project root unavailable")
)

// Indexer coordinates one sync run: walk -> build records -> upsert batches -> delete stale
type Indexer struct {
	backend   search.Backend
	cache     *walker.IgnoreCache
	logger    *slog.Logger
	indexName string
	batchSize int

	now func() time.Time
}

// Config contains configuration for the indexer
type Config struct {
	IndexName string // Target index (default: DefaultIndexName)
	BatchSize int    // Maximum records per upsert (default: DefaultBatchSize)
}

// Statistics contains statistics about one sync run
type Statistics struct {
	ProjectID     string
	StartedAt     time.Time
	SeenAt        int64 // last_seen_at stamped on every record of the run
	Records       int
	Skipped       int
	Batches       int
	FailedBatches int
	DeletionOK    bool
	Duration      time.Duration
	ErrorMessages []string
}

// New creates a new Indexer. cache may be shared between indexers and runs.
func New(backend search.Backend, cfg Config, cache *walker.IgnoreCache, logger *slog.Logger) *Indexer {
	if cfg.IndexName == "" {
		cfg.IndexName = DefaultIndexName
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		backend:   backend,
		cache:     cache,
		logger:    logger,
		indexName: cfg.IndexName,
		batchSize: cfg.BatchSize,
		now:       time.Now,
	}
}

// IndexName returns the index this indexer writes to
func (idx *Indexer) IndexName() string {
	return idx.indexName
}

// RunOnce walks the project root, upserts every record in batches and then
// deletes the project's records that this walk did not refresh.
//
// Statistics are returned whenever the walk was attempted, including when the
// error wraps ErrPartialSync.
func (idx *Indexer) RunOnce(ctx context.Context, project types.Project) (*Statistics, error) {
	if err := project.Validate(); err != nil {
		return nil, fmt.Errorf("invalid project: %w", err)
	}
	if _, err := os.Stat(project.Root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRootUnavailable, err)
	}

	walkTime := idx.now()
	stats := &Statistics{
		ProjectID:     project.ID,
		StartedAt:     walkTime,
		SeenAt:        types.SeenAt(walkTime),
		ErrorMessages: make([]string, 0),
	}
	log := idx.logger.With(slog.String("project", project.ID), slog.Int64("run_ts", stats.SeenAt))
	log.Info("sync started", slog.String("root", project.Root), slog.String("index", idx.indexName))

	b := newBatcher(idx.batchSize, func(batch []types.Record) {
		idx.submitBatch(ctx, log, batch, stats)
	})

	w := walker.New(walker.OptionsFor(project), idx.cache, log)
	for entry := range w.Entries(ctx, project.Root) {
		rec := types.NewRecord(entry, project.ID, walkTime)
		if err := rec.Validate(); err != nil {
			stats.Skipped++
			log.Debug("skipping invalid record", slog.String("path", entry.Path), slog.String("error", err.Error()))
			continue
		}
		stats.Records++
		b.add(rec)
	}
	b.flush()

	// An interrupted walk has not refreshed every live record, so deleting
	// by timestamp would remove entries that still exist
	if err := ctx.Err(); err != nil {
		stats.Duration = time.Since(walkTime)
		return stats, fmt.Errorf("sync interrupted: %w", err)
	}

	filter := search.And(
		search.Eq("project_id", project.ID),
		search.Lt("last_seen_at", stats.SeenAt),
	)
	if err := idx.backend.DeleteDocuments(ctx, idx.indexName, filter); err != nil {
		log.Error("deletion pass failed", slog.String("filter", filter.String()), slog.String("error", err.Error()))
		stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("delete stale records: %v", err))
	} else {
		stats.DeletionOK = true
	}

	stats.Duration = time.Since(walkTime)
	log.Info("sync finished",
		slog.Int("records", stats.Records),
		slog.Int("batches", stats.Batches),
		slog.Int("failed_batches", stats.FailedBatches),
		slog.Bool("deletion_ok", stats.DeletionOK),
		slog.Duration("duration", stats.Duration),
	)

	if stats.FailedBatches > 0 || !stats.DeletionOK {
		return stats, fmt.Errorf("%w: %d of %d batches failed, deletion ok: %t",
			ErrPartialSync, stats.FailedBatches, stats.Batches, stats.DeletionOK)
	}
	return stats, nil
}

// submitBatch upserts one batch. Failures are logged and counted; the run
// continues with the next batch.
func (idx *Indexer) submitBatch(ctx context.Context, log *slog.Logger, batch []types.Record, stats *Statistics) {
	stats.Batches++
	n := stats.Batches

	err := idx.backend.UpsertDocuments(ctx, idx.indexName, batch, PrimaryKey)
	if err == nil {
		log.Debug("batch submitted", slog.Int("batch", n), slog.Int("size", len(batch)))
		return
	}

	stats.FailedBatches++
	first, last := batch[0].Path, batch[len(batch)-1].Path
	log.Error("batch upsert failed",
		slog.Int("batch", n),
		slog.Int("size", len(batch)),
		slog.String("first_path", first),
		slog.String("last_path", last),
		slog.String("error", err.Error()),
	)
	stats.ErrorMessages = append(stats.ErrorMessages,
		fmt.Sprintf("batch %d (%d records, %s .. %s): %v", n, len(batch), first, last, err))
}
