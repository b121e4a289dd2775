package collector

import (
	"context"

	"github.com/kurihiro0119/github-issue-insights/internal/domain"
	"github.com/kurihiro0119/github-issue-insights/internal/recordstore"
)

// Collector defines the interface for collecting GitHub issue data
type Collector interface {
	// GetIssues retrieves issues (never pull requests) in every state, newest
	// first, reading at most maxPages pages of 100; 0 reads all pages.
	GetIssues(ctx context.Context, repo domain.Repository, maxPages int) ([]*domain.RawIssue, error)

	// GetComments retrieves every comment of one issue
	GetComments(ctx context.Context, repo domain.Repository, issueNumber int) ([]*domain.RawComment, error)

	// CollectRepositoryData collects issues and their comments
	CollectRepositoryData(ctx context.Context, repo domain.Repository, maxPages int, onProgress ProgressCallback) (*Dataset, error)
}

// Dataset is the raw ingest result
type Dataset struct {
	Issues   []*domain.RawIssue
	Comments []*domain.RawComment
}

// ProgressCallback is a callback function for reporting progress
type ProgressCallback func(done, total int)

// Save writes issues and comments as JSON lines
func (d *Dataset) Save(issuesPath, commentsPath string) error {
	if err := recordstore.WriteJSONL(issuesPath, len(d.Issues), func(i int) (interface{}, error) {
		return d.Issues[i], nil
	}); err != nil {
		return err
	}
	return recordstore.WriteJSONL(commentsPath, len(d.Comments), func(i int) (interface{}, error) {
		return d.Comments[i], nil
	})
}
