// Package indexer synchronizes one project's directory tree into the search
// index.
//
// # Basic Usage
//
//	idx := indexer.New(backend, indexer.Config{IndexName: "treeindex"}, cache, logger)
//
//	if err := idx.Provision(ctx); err != nil {
//	    logger.Warn("provisioning incomplete", "error", err)
//	}
//
//	stats, err := idx.RunOnce(ctx, project)
//	if errors.Is(err, indexer.ErrPartialSync) {
//	    // stats.ErrorMessages lists the failed batches
//	}
//
// # Sync Pipeline
//
// A run executes these stages in order:
//
//  1. Walk: stream entries from the project root (see package walker)
//  2. Build: turn each entry into a types.Record stamped with the walk time
//  3. Upsert: submit records in batches of at most BatchSize, keyed by id
//  4. Reconcile: delete the project's records whose last_seen_at predates the walk
//
// Batches are submitted in walk order. A failed batch is logged and counted
// and the run moves on. The deletion pass starts only after every batch has
// been attempted:
//
//	project_id = "docs" AND last_seen_at < 1718000000000
//
// Record ids are derived from the absolute path, so submitting the same walk
// twice leaves the index unchanged and a removed file disappears with the
// next run's deletion pass.
//
// A run whose context is cancelled mid-walk skips the deletion pass. A run
// whose root cannot be read submits nothing.
//
// # Provisioning
//
// Provision creates the index with primary key "id", adds any missing
// filterable and sortable attributes and sets the non-separator tokens. It is
// idempotent and safe to call before every run.
//
// # Mutual Exclusion
//
// Guard hands out IndexLock values, one per project or one for the whole
// process. Locks are compare-and-swap try-locks; a caller that fails to
// acquire must skip its run rather than wait.
package indexer
