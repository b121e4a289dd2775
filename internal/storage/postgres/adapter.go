package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/kurihiro0119/github-issue-insights/internal/domain"
	"github.com/kurihiro0119/github-issue-insights/internal/storage"
)

// postgresStorage implements the Storage interface for PostgreSQL
type postgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage creates a new PostgreSQL storage instance
func NewPostgresStorage(connStr string) (storage.Storage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &postgresStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *postgresStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		task TEXT NOT NULL,
		provider TEXT NOT NULL,
		input_path TEXT NOT NULL,
		output_path TEXT NOT NULL,
		resumed BOOLEAN NOT NULL,
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
		gate_accuracy DOUBLE PRECISION,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_runs_task_started ON runs(task, started_at);

	CREATE TABLE IF NOT EXISTS batch_results (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		batch_number INTEGER NOT NULL,
		size INTEGER NOT NULL,
		indices JSONB NOT NULL,
		outcome TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		duration_ns BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (run_id, batch_number)
	);

	CREATE TABLE IF NOT EXISTS insight_batches (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		batch_number INTEGER NOT NULL,
		issue_numbers JSONB NOT NULL,
		business JSONB NOT NULL,
		technical JSONB NOT NULL,
		raw TEXT NOT NULL,
		model TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_insight_batches_created ON insight_batches(created_at);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate postgres schema: %w", err)
	}
	return nil
}

// SaveRun inserts or updates a run
func (s *postgresStorage) SaveRun(ctx context.Context, run *domain.Run) error {
	query := `
		INSERT INTO runs (` + storage.RunColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			stop_reason = EXCLUDED.stop_reason,
			total = EXCLUDED.total,
			eligible = EXCLUDED.eligible,
			already_done = EXCLUDED.already_done,
			precomputed = EXCLUDED.precomputed,
			processed = EXCLUDED.processed,
			failed = EXCLUDED.failed,
			remaining = EXCLUDED.remaining,
			batches = EXCLUDED.batches,
			requests = EXCLUDED.requests,
			gate_accuracy = EXCLUDED.gate_accuracy,
			finished_at = EXCLUDED.finished_at
	`
	_, err := s.db.ExecContext(ctx, query, storage.RunArgs(run)...)
	return err
}

// GetRun retrieves one run by ID
func (s *postgresStorage) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+storage.RunColumns+` FROM runs WHERE id = $1`, id)
	return storage.ScanRun(row)
}

// ListRuns returns the newest runs first, optionally filtered by task
func (s *postgresStorage) ListRuns(ctx context.Context, task string, limit int) ([]*domain.Run, error) {
	query := `SELECT ` + storage.RunColumns + ` FROM runs`
	var args []interface{}
	if task != "" {
		args = append(args, task)
		query += fmt.Sprintf(` WHERE task = $%d`, len(args))
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
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
func (s *postgresStorage) SaveBatchResult(ctx context.Context, result *domain.BatchResult) error {
	args, err := storage.BatchResultArgs(result)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO batch_results (`+storage.BatchResultColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id, batch_number) DO UPDATE SET
			size = EXCLUDED.size,
			indices = EXCLUDED.indices,
			outcome = EXCLUDED.outcome,
			attempts = EXCLUDED.attempts,
			error = EXCLUDED.error,
			duration_ns = EXCLUDED.duration_ns,
			created_at = EXCLUDED.created_at
	`, args...)
	return err
}

// ListBatchResults returns the batches of a run in submission order
func (s *postgresStorage) ListBatchResults(ctx context.Context, runID string) ([]*domain.BatchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+storage.BatchResultColumns+`
		FROM batch_results
		WHERE run_id = $1
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
func (s *postgresStorage) SaveInsightBatch(ctx context.Context, batch *domain.InsightBatch) error {
	args, err := storage.InsightArgs(batch)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO insight_batches (`+storage.InsightColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, args...)
	return err
}

// ListInsightBatches returns the newest insight sets first
func (s *postgresStorage) ListInsightBatches(ctx context.Context, limit int) ([]*domain.InsightBatch, error) {
	query := `SELECT ` + storage.InsightColumns + ` FROM insight_batches ORDER BY created_at DESC, batch_number DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT $1`
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
func (s *postgresStorage) Close() error {
	return s.db.Close()
}
