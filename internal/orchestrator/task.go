// Package orchestrator drives the resumable batch loop shared by every
// LLM-backed stage: load records, partition pending ones into FIFO batches,
// admit each call through the rate limiter, invoke the generator with
// bounded retry, merge parsed results and persist after every batch.
package orchestrator

import (
	"context"
	"time"

	"github.com/kurihiro0119/github-issue-insights/internal/domain"
	"github.com/kurihiro0119/github-issue-insights/internal/record"
)

// Generator produces text for a prompt
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Task parameterizes the loop for one stage
type Task interface {
	// Name identifies the task in logs and the run journal.
	Name() string
	// ResultField is the record field whose presence marks a record done.
	ResultField() string
	// Eligible filters records that should be processed at all.
	Eligible(r *record.Record) bool
	// Prompt renders the request for an ordered batch.
	Prompt(batch []*record.Record) (string, error)
	// Parse turns a reply into exactly one value per batch record.
	Parse(text string, batch []*record.Record) (*Result, error)
	// Fallback supplies values once every attempt failed to parse, or nil
	// to leave the records unset.
	Fallback(batch []*record.Record) *Result
}

// Result is the parsed outcome of one batch
type Result struct {
	// Values holds one result per batch record, in batch order. A nil
	// entry leaves that record pending and counts it as failed.
	Values []interface{}
	// Artifact is an optional batch-level product handed to the Sink.
	Artifact interface{}
}

// Precomputer resolves trivial records without a remote call
type Precomputer interface {
	Precompute(r *record.Record) (interface{}, bool)
}

// ClassifyFunc runs one batch through the generator, rate limiter and retry policy
type ClassifyFunc func(ctx context.Context, batch []*record.Record) (*Result, error)

// GateResult summarizes an accuracy check
type GateResult struct {
	Passed   bool
	Correct  int
	Total    int
	Accuracy float64
}

// Gate is a pre-flight check run on fresh (non-resumed) runs before bulk processing
type Gate interface {
	Check(ctx context.Context, records []*record.Record, pending []int, classify ClassifyFunc) (GateResult, error)
}

// BatchInfo describes a completed batch for a Sink
type BatchInfo struct {
	RunID   string
	Number  int
	Indices []int
	Records []*record.Record
	Model   string
}

// Sink receives batch artifacts before their results are merged into the records
type Sink interface {
	Consume(ctx context.Context, info BatchInfo, artifact interface{}) error
}

// Journal records run and batch outcomes outside the record file
type Journal interface {
	SaveRun(ctx context.Context, run *domain.Run) error
	SaveBatchResult(ctx context.Context, result *domain.BatchResult) error
}

// Config holds the per-task loop settings
type Config struct {
	InputPath  string
	OutputPath string
	BatchSize  int
	// InterBatchDelay is slept between batches; negative disables it.
	InterBatchDelay time.Duration
	// MaxFailures skips records that failed in this many earlier runs; 0 disables.
	MaxFailures int
	Retry       RetryPolicy
}

// DefaultConfig returns the defaults New applies to zero-valued batch size,
// inter-batch delay and retry settings. MaxFailures is kept as given since
// zero disables the cap.
func DefaultConfig() Config {
	return Config{
		BatchSize:       3,
		InterBatchDelay: time.Second,
		MaxFailures:     3,
		Retry:           DefaultRetryPolicy(),
	}
}
