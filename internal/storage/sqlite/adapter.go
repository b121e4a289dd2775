package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kurihiro0119/github-issue-insights/internal/domain"
	"github.com/kurihiro0119/github-issue-insights/internal/storage"
)

// sqliteStorage implements the Storage interface for SQLite
type sqliteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (storage.Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &sqliteStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *sqliteStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		task TEXT NOT NULL,
		provider TEXT NOT NULL,
		input_path TEXT NOT NULL,
		output_path TEXT NOT NULL,
		resumed INTEGER NOT NULL,
		status TEXT NOT NULL,
		stop_reason TEXT NOT NULL DEFAULT '',
		total INTEGER NOT NULL,
		eligible INTEGER NOT NULL,
		already_done INTEGER NOT NULL,
		precomputed INTEGER NOT NULL,
		processed INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		remaining INTEGER NOT NULL,
		batches INTEGER NOT NULL,
		requests INTEGER NOT NULL,
		gate_accuracy REAL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_task_started ON runs(task, started_at);

	CREATE TABLE IF NOT EXISTS batch_results (
		run_id TEXT NOT NULL,
		batch_number INTEGER NOT NULL,
		size INTEGER NOT NULL,
		indices TEXT NOT NULL,
		outcome TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		duration_ns INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (run_id, batch_number)
	);

	CREATE TABLE IF NOT EXISTS insight_batches (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		batch_number INTEGER NOT NULL,
		issue_numbers TEXT NOT NULL,
		business TEXT NOT NULL,
		technical TEXT NOT NULL,
		raw TEXT NOT NULL,
		model TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_insight_batches_created ON insight_batches(created_at);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	return nil
}

// SaveRun inserts or updates a run
func (s *sqliteStorage) SaveRun(ctx context.Context, run *domain.Run) error {
	query := `
		INSERT INTO runs (` + storage.RunColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			stop_reason = excluded.stop_reason,
			total = excluded.total,
			eligible = excluded.eligible,
			already_done = excluded.already_done,
			precomputed = excluded.precomputed,
			processed = excluded.processed,
			failed = excluded.failed,
			remaining = excluded.remaining,
			batches = excluded.batches,
			requests = excluded.requests,
			gate_accuracy = excluded.gate_accuracy,
			finished_at = excluded.finished_at
	`
	_, err := s.db.ExecContext(ctx, query, storage.RunArgs(run)...)
	return err
}

// GetRun retrieves one run by ID
func (s *sqliteStorage) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+storage.RunColumns+` FROM runs WHERE id = ?`, id)
	return storage.ScanRun(row)
}

// ListRuns returns the newest runs first, optionally filtered by task
func (s *sqliteStorage) ListRuns(ctx context.Context, task string, limit int) ([]*domain.Run, error) {
	query := `SELECT ` + storage.RunColumns + ` FROM runs`
	var args []interface{}
	if task != "" {
		query += ` WHERE task = ?`
		args = append(args, task)
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		r, err := storage.ScanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// SaveBatchResult inserts or replaces the outcome of one batch
func (s *sqliteStorage) SaveBatchResult(ctx context.Context, result *domain.BatchResult) error {
	args, err := storage.BatchResultArgs(result)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO batch_results (`+storage.BatchResultColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	return err
}

// ListBatchResults returns the batches of a run in submission order
func (s *sqliteStorage) ListBatchResults(ctx context.Context, runID string) ([]*domain.BatchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+storage.BatchResultColumns+`
		FROM batch_results
		WHERE run_id = ?
		ORDER BY batch_number
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.BatchResult
	for rows.Next() {
		b, err := storage.ScanBatchResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, b)
	}
	return results, rows.Err()
}

// SaveInsightBatch stores one insight set
func (s *sqliteStorage) SaveInsightBatch(ctx context.Context, batch *domain.InsightBatch) error {
	args, err := storage.InsightArgs(batch)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO insight_batches (`+storage.InsightColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	return err
}

// ListInsightBatches returns the newest insight sets first
func (s *sqliteStorage) ListInsightBatches(ctx context.Context, limit int) ([]*domain.InsightBatch, error) {
	query := `SELECT ` + storage.InsightColumns + ` FROM insight_batches ORDER BY created_at DESC, batch_number DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []*domain.InsightBatch
	for rows.Next() {
		b, err := storage.ScanInsight(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// Close closes the database connection
func (s *sqliteStorage) Close() error {
	return s.db.Close()
}
