package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newRun(project string, offset time.Duration, status string) *SyncRun {
	start := baseTime.Add(offset)
	return &SyncRun{
		ProjectID:  project,
		RootPath:   "/srv/" + project,
		Status:     status,
		Source:     SourceCron,
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Records:    10,
		Batches:    1,
		DeletionOK: status == StatusSucceeded,
	}
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	assert.NotNil(t, storage.db)
	assert.Contains(t, []string{"cgo", "purego"}, BuildMode)
}

func TestNewSQLiteStorage_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "state.db")
	storage, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	defer storage.Close()

	require.NoError(t, storage.RecordRun(context.Background(), newRun("a", 0, StatusSucceeded)))

	// Reopening keeps the history and does not re-run migrations
	require.NoError(t, storage.Close())
	reopened, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	defer reopened.Close()

	runs, err := reopened.ListRuns(context.Background(), "a", 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRecordRun_RoundTrip(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	run := newRun("docs", 0, StatusPartial)
	run.Source = SourceManual
	run.FailedBatches = 1
	run.RecordsSkipped = 2
	run.Error = "sync completed with errors: 1 of 1 batches failed"

	require.NoError(t, storage.RecordRun(ctx, run))
	assert.Greater(t, run.ID, int64(0))

	got, err := storage.LastRun(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "/srv/docs", got.RootPath)
	assert.Equal(t, StatusPartial, got.Status)
	assert.Equal(t, SourceManual, got.Source)
	assert.True(t, run.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, 1500*time.Millisecond, got.Duration())
	assert.Equal(t, 10, got.Records)
	assert.Equal(t, 2, got.RecordsSkipped)
	assert.Equal(t, 1, got.FailedBatches)
	assert.False(t, got.DeletionOK)
	assert.Equal(t, run.Error, got.Error)
}

func TestLastRun_NotFound(t *testing.T) {
	storage := setupTestDB(t)
	_, err := storage.LastRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRuns(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	for i, status := range []string{StatusSucceeded, StatusSkipped, StatusFailed} {
		require.NoError(t, storage.RecordRun(ctx, newRun("a", time.Duration(i)*time.Minute, status)))
	}
	require.NoError(t, storage.RecordRun(ctx, newRun("b", 10*time.Minute, StatusSucceeded)))

	runs, err := storage.ListRuns(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, StatusFailed, runs[0].Status, "newest first")
	assert.Equal(t, StatusSucceeded, runs[2].Status)
	assert.Empty(t, runs[0].Error)

	runs, err = storage.ListRuns(ctx, "a", 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	all, err := storage.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "b", all[0].ProjectID)

	none, err := storage.ListRuns(ctx, "zzz", 5)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestPruneRuns(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, storage.RecordRun(ctx, newRun("a", time.Duration(i)*time.Minute, StatusSucceeded)))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, storage.RecordRun(ctx, newRun("b", time.Duration(i)*time.Minute, StatusSucceeded)))
	}

	deleted, err := storage.PruneRuns(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	runs, err := storage.ListRuns(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.True(t, runs[2].StartedAt.Equal(baseTime.Add(2*time.Minute)), "the oldest runs are removed")

	runs, err = storage.ListRuns(ctx, "b", 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	deleted, err = storage.PruneRuns(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func openRawDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open(DriverName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestApplyMigrations(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()

	require.NoError(t, ApplyMigrations(ctx, db))

	version, err := currentVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version.String())

	var name string
	err = db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='sync_runs'").Scan(&name)
	require.NoError(t, err)
}

func TestMigrationsIdempotent(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()

	require.NoError(t, ApplyMigrations(ctx, db))
	require.NoError(t, ApplyMigrations(ctx, db))

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version").Scan(&count))
	assert.Equal(t, len(AllMigrations), count)
}

func TestRollbackMigration(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()
	require.NoError(t, ApplyMigrations(ctx, db))

	require.NoError(t, RollbackMigration(ctx, db))
	version, err := currentVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", version.String())

	// Re-applying brings the schema forward again
	require.NoError(t, ApplyMigrations(ctx, db))
	version, err = currentVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version.String())

	require.NoError(t, RollbackMigration(ctx, db))
	require.NoError(t, RollbackMigration(ctx, db))
	version, err = currentVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", version.String())

	assert.Error(t, RollbackMigration(ctx, db))
}
