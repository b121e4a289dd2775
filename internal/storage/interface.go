package storage

import (
	"context"
	"errors"

	"github.com/kurihiro0119/github-issue-insights/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// Storage is the abstract interface for the persistence layer
type Storage interface {
	// Run journal
	SaveRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	ListRuns(ctx context.Context, task string, limit int) ([]*domain.Run, error)

	// Batch history
	SaveBatchResult(ctx context.Context, result *domain.BatchResult) error
	ListBatchResults(ctx context.Context, runID string) ([]*domain.BatchResult, error)

	// Insight sets
	SaveInsightBatch(ctx context.Context, batch *domain.InsightBatch) error
	ListInsightBatches(ctx context.Context, limit int) ([]*domain.InsightBatch, error)

	// Migration
	Migrate(ctx context.Context) error

	// Connection management
	Close() error
}
