// Package storage keeps the history of sync runs in SQLite.
//
// Every trigger outcome (succeeded, partial, failed or skipped) becomes one
// row in sync_runs. The history backs the sync_status tool and is pruned to a
// fixed number of runs per project by the scheduler's housekeeping.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("/var/lib/treeindex/state.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	err = store.RecordRun(ctx, &storage.SyncRun{
//	    ProjectID:  "docs",
//	    Status:     storage.StatusSucceeded,
//	    Source:     storage.SourceCron,
//	    StartedAt:  start,
//	    FinishedAt: time.Now(),
//	})
//
//	runs, err := store.ListRuns(ctx, "docs", 10)
//
// # Drivers
//
// The default build uses modernc.org/sqlite (pure Go). Building with the
// cgo_sqlite tag switches to github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./...
//
// DriverName and BuildMode report the driver in use.
//
// # Migrations
//
// Schema changes are versioned with semantic versions and applied in order
// by ApplyMigrations when the storage is opened. RollbackMigration undoes the
// newest one.
package storage
