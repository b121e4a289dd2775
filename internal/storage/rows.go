package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kurihiro0119/github-issue-insights/internal/domain"
)

// Columns selected by every adapter, in scan order.
const (
	RunColumns         = `id, task, provider, input_path, output_path, resumed, status, stop_reason, total, eligible, already_done, precomputed, processed, failed, remaining, batches, requests, gate_accuracy, started_at, finished_at`
	BatchResultColumns = `run_id, batch_number, size, indices, outcome, attempts, error, duration_ns, created_at`
	InsightColumns     = `id, run_id, batch_number, issue_numbers, business, technical, raw, model, created_at`
)

// Scanner is satisfied by *sql.Row and *sql.Rows
type Scanner interface {
	Scan(dest ...interface{}) error
}

// RunArgs returns the column values of run in RunColumns order
func RunArgs(run *domain.Run) []interface{} {
	var accuracy sql.NullFloat64
	if run.GateAccuracy != nil {
		accuracy = sql.NullFloat64{Float64: *run.GateAccuracy, Valid: true}
	}
	var finished sql.NullTime
	if run.FinishedAt != nil {
		finished = sql.NullTime{Time: run.FinishedAt.UTC(), Valid: true}
	}
	return []interface{}{
		run.ID, run.Task, run.Provider, run.InputPath, run.OutputPath, run.Resumed,
		string(run.Status), string(run.StopReason),
		run.Total, run.Eligible, run.Done, run.Precomputed, run.Processed,
		run.Failed, run.Remaining, run.Batches, run.Requests,
		accuracy, run.StartedAt.UTC(), finished,
	}
}

// ScanRun reads one row selected with RunColumns
func ScanRun(row Scanner) (*domain.Run, error) {
	var r domain.Run
	var status, stop string
	var accuracy sql.NullFloat64
	var finished sql.NullTime
	err := row.Scan(
		&r.ID, &r.Task, &r.Provider, &r.InputPath, &r.OutputPath, &r.Resumed,
		&status, &stop,
		&r.Total, &r.Eligible, &r.Done, &r.Precomputed, &r.Processed,
		&r.Failed, &r.Remaining, &r.Batches, &r.Requests,
		&accuracy, &r.StartedAt, &finished,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Status = domain.RunStatus(status)
	r.StopReason = domain.StopReason(stop)
	if accuracy.Valid {
		v := accuracy.Float64
		r.GateAccuracy = &v
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

// BatchResultArgs returns the column values of res in BatchResultColumns order
func BatchResultArgs(res *domain.BatchResult) ([]interface{}, error) {
	indices, err := json.Marshal(orEmptyInts(res.Indices))
	if err != nil {
		return nil, err
	}
	return []interface{}{
		res.RunID, res.BatchNumber, res.Size, string(indices), string(res.Outcome),
		res.Attempts, res.Error, int64(res.Duration), res.CreatedAt.UTC(),
	}, nil
}

// ScanBatchResult reads one row selected with BatchResultColumns
func ScanBatchResult(row Scanner) (*domain.BatchResult, error) {
	var b domain.BatchResult
	var indices, outcome string
	var duration int64
	if err := row.Scan(&b.RunID, &b.BatchNumber, &b.Size, &indices, &outcome, &b.Attempts, &b.Error, &duration, &b.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(indices), &b.Indices); err != nil {
		return nil, fmt.Errorf("decode indices of batch %d: %w", b.BatchNumber, err)
	}
	b.Outcome = domain.BatchOutcome(outcome)
	b.Duration = time.Duration(duration)
	return &b, nil
}

// InsightArgs returns the column values of batch in InsightColumns order
func InsightArgs(batch *domain.InsightBatch) ([]interface{}, error) {
	issues, err := json.Marshal(orEmptyInts(batch.IssueNumbers))
	if err != nil {
		return nil, err
	}
	business, err := json.Marshal(orEmptyStrings(batch.Business))
	if err != nil {
		return nil, err
	}
	technical, err := json.Marshal(orEmptyStrings(batch.Technical))
	if err != nil {
		return nil, err
	}
	return []interface{}{
		batch.ID, batch.RunID, batch.BatchNumber, string(issues), string(business),
		string(technical), batch.Raw, batch.Model, batch.CreatedAt.UTC(),
	}, nil
}

// ScanInsight reads one row selected with InsightColumns
func ScanInsight(row Scanner) (*domain.InsightBatch, error) {
	var b domain.InsightBatch
	var issues, business, technical string
	if err := row.Scan(&b.ID, &b.RunID, &b.BatchNumber, &issues, &business, &technical, &b.Raw, &b.Model, &b.CreatedAt); err != nil {
		return nil, err
	}
	for _, col := range []struct {
		raw string
		dst interface{}
	}{{issues, &b.IssueNumbers}, {business, &b.Business}, {technical, &b.Technical}} {
		if err := json.Unmarshal([]byte(col.raw), col.dst); err != nil {
			return nil, fmt.Errorf("decode insight batch %s: %w", b.ID, err)
		}
	}
	return &b, nil
}

func orEmptyInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

func orEmptyStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
