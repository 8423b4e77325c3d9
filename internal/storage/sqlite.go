package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

var _ Storage = (*SQLiteStorage)(nil)

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Single writer; also keeps one shared connection for :memory: databases
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance. Parent directories
// of dbPath are created as needed; ":memory:" opens a private in-memory database.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath != ":memory:" && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

const runColumns = `id, project_id, root_path, status, source, started_at, finished_at,
	records, records_skipped, batches, failed_batches, deletion_ok, error`

func (s *SQLiteStorage) RecordRun(ctx context.Context, run *SyncRun) error {
	query := `
		INSERT INTO sync_runs (project_id, root_path, status, source, started_at, finished_at,
			records, records_skipped, batches, failed_batches, deletion_ok, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var errText sql.NullString
	if run.Error != "" {
		errText = sql.NullString{String: run.Error, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, query,
		run.ProjectID, run.RootPath, run.Status, run.Source,
		run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
		run.Records, run.RecordsSkipped, run.Batches, run.FailedBatches,
		run.DeletionOK, errText)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	run.ID = id
	return nil
}

func (s *SQLiteStorage) ListRuns(ctx context.Context, projectID string, limit int) ([]*SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + runColumns + ` FROM sync_runs`
	args := make([]interface{}, 0, 2)
	if projectID != "" {
		query += ` WHERE project_id = ?`
		args = append(args, projectID)
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := make([]*SyncRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStorage) LastRun(ctx context.Context, projectID string) (*SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs
		WHERE project_id = ? ORDER BY started_at DESC, id DESC LIMIT 1`

	run, err := scanRun(s.db.QueryRowContext(ctx, query, projectID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last run: %w", err)
	}
	return run, nil
}

func (s *SQLiteStorage) PruneRuns(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	query := `
		DELETE FROM sync_runs WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (
					PARTITION BY project_id ORDER BY started_at DESC, id DESC
				) AS rn FROM sync_runs
			) WHERE rn > ?
		)
	`
	result, err := s.db.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return result.RowsAffected()
}

// scanner is implemented by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (*SyncRun, error) {
	var (
		run                 SyncRun
		startedMs, finishMs int64
		errText             sql.NullString
	)
	err := sc.Scan(&run.ID, &run.ProjectID, &run.RootPath, &run.Status, &run.Source,
		&startedMs, &finishMs, &run.Records, &run.RecordsSkipped, &run.Batches,
		&run.FailedBatches, &run.DeletionOK, &errText)
	if err != nil {
		return nil, err
	}
	run.StartedAt = time.UnixMilli(startedMs)
	run.FinishedAt = time.UnixMilli(finishMs)
	run.Error = errText.String
	return &run, nil
}
