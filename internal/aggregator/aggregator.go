package aggregator

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"

	"github.com/kurihiro0119/github-issue-insights/internal/domain"
	apperrors "github.com/kurihiro0119/github-issue-insights/internal/errors"
	"github.com/kurihiro0119/github-issue-insights/internal/storage"
)

// DefaultTop bounds each ranked list of a digest
const DefaultTop = 20

// Aggregator defines the read side over the run journal and insight sets
type Aggregator interface {
	// ListRuns returns recent runs, newest first
	ListRuns(ctx context.Context, task string, limit int) ([]*domain.Run, error)

	// GetRunDetail returns a run with its batch history
	GetRunDetail(ctx context.Context, id string) (*domain.RunDetail, error)

	// InsightDigest merges the newest insight sets into ranked lists
	InsightDigest(ctx context.Context, batches, top int) (*domain.InsightDigest, error)
}

// aggregator implements the Aggregator interface
type aggregator struct {
	storage storage.Storage
}

// NewAggregator creates a new aggregator
func NewAggregator(storage storage.Storage) Aggregator {
	return &aggregator{
		storage: storage,
	}
}

// ListRuns returns recent runs, newest first
func (a *aggregator) ListRuns(ctx context.Context, task string, limit int) ([]*domain.Run, error) {
	runs, err := a.storage.ListRuns(ctx, task, limit)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list runs", err)
	}
	if runs == nil {
		runs = []*domain.Run{}
	}
	return runs, nil
}

// GetRunDetail returns a run with its batch history
func (a *aggregator) GetRunDetail(ctx context.Context, id string) (*domain.RunDetail, error) {
	run, err := a.storage.GetRun(ctx, id)
	if stderrors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("run " + id)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load run", err)
	}

	batches, err := a.storage.ListBatchResults(ctx, id)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load batch results", err)
	}
	if batches == nil {
		batches = []*domain.BatchResult{}
	}
	return &domain.RunDetail{Run: run, Batches: batches}, nil
}

// InsightDigest merges the newest insight sets into ranked lists. Insights
// are matched case-insensitively after whitespace is collapsed, and each
// distinct insight counts once per batch.
func (a *aggregator) InsightDigest(ctx context.Context, batches, top int) (*domain.InsightDigest, error) {
	sets, err := a.storage.ListInsightBatches(ctx, batches)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list insight batches", err)
	}
	return Digest(sets, top), nil
}

// Digest ranks the insights of sets; top <= 0 uses DefaultTop
func Digest(sets []*domain.InsightBatch, top int) *domain.InsightDigest {
	if top <= 0 {
		top = DefaultTop
	}

	business := newTally()
	technical := newTally()
	issues := make(map[int]struct{})

	for _, set := range sets {
		business.addBatch(set.Business)
		technical.addBatch(set.Technical)
		for _, n := range set.IssueNumbers {
			issues[n] = struct{}{}
		}
	}

	return &domain.InsightDigest{
		Batches:   len(sets),
		Issues:    len(issues),
		Business:  business.ranked(top),
		Technical: technical.ranked(top),
	}
}

type tally struct {
	entries []*domain.RankedInsight
	byKey   map[string]*domain.RankedInsight
}

func newTally() *tally {
	return &tally{byKey: make(map[string]*domain.RankedInsight)}
}

func (t *tally) addBatch(insights []string) {
	seen := make(map[string]bool, len(insights))
	for _, text := range insights {
		text = strings.Join(strings.Fields(text), " ")
		key := strings.ToLower(text)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		entry, ok := t.byKey[key]
		if !ok {
			entry = &domain.RankedInsight{Text: text}
			t.byKey[key] = entry
			t.entries = append(t.entries, entry)
		}
		entry.Count++
	}
}

// ranked orders by count, ties keep first-seen order
func (t *tally) ranked(top int) []domain.RankedInsight {
	sorted := make([]*domain.RankedInsight, len(t.entries))
	copy(sorted, t.entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Count > sorted[j].Count
	})
	if len(sorted) > top {
		sorted = sorted[:top]
	}

	out := make([]domain.RankedInsight, len(sorted))
	for i, e := range sorted {
		out[i] = *e
	}
	return out
}
