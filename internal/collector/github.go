package collector

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/google/go-github/v55/github"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/kurihiro0119/github-issue-insights/internal/domain"
)

const perPage = 100

// githubCollector implements Collector using GitHub API
type githubCollector struct {
	client      *github.Client
	rateLimiter RateLimiter
	concurrency int
	log         zerolog.Logger
}

// Options tunes the GitHub collector
type Options struct {
	// BaseURL points the client at another API root, e.g. a test server.
	BaseURL string
	// RequestsPerSecond throttles calls proactively; 0 disables the throttle.
	RequestsPerSecond float64
	// Concurrency bounds parallel comment fetches.
	Concurrency int
	Logger      zerolog.Logger
}

// NewGitHubCollector creates a new GitHub collector
func NewGitHubCollector(token string, opts Options) (Collector, error) {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	client := github.NewClient(tc)

	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL: %w", err)
		}
		client.BaseURL = u
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}

	return &githubCollector{
		client:      client,
		rateLimiter: NewRateLimiter(opts.RequestsPerSecond, opts.Logger),
		concurrency: opts.Concurrency,
		log:         opts.Logger,
	}, nil
}

// GetIssues retrieves issues for a repository
func (c *githubCollector) GetIssues(ctx context.Context, repo domain.Repository, maxPages int) ([]*domain.RawIssue, error) {
	var allIssues []*domain.RawIssue
	opts := &github.IssueListByRepoOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	for page := 1; maxPages <= 0 || page <= maxPages; page++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		issues, resp, err := c.client.Issues.ListByRepo(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list issues for %s: %w", repo, err)
		}

		c.updateRateLimitFromResponse(resp)

		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			allIssues = append(allIssues, toRawIssue(issue))
		}

		c.log.Debug().Str("repo", repo.String()).Int("page", page).Int("issues", len(allIssues)).Msg("fetched issue page")

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allIssues, nil
}

// GetComments retrieves the comments of one issue
func (c *githubCollector) GetComments(ctx context.Context, repo domain.Repository, issueNumber int) ([]*domain.RawComment, error) {
	var allComments []*domain.RawComment
	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		comments, resp, err := c.client.Issues.ListComments(ctx, repo.Owner, repo.Name, issueNumber, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list comments for %s#%d: %w", repo, issueNumber, err)
		}

		c.updateRateLimitFromResponse(resp)

		for _, comment := range comments {
			allComments = append(allComments, &domain.RawComment{
				IssueNumber: issueNumber,
				CommentID:   comment.GetID(),
				User:        comment.GetUser().GetLogin(),
				Body:        comment.GetBody(),
				CreatedAt:   comment.GetCreatedAt().Time,
				URL:         comment.GetHTMLURL(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allComments, nil
}

// CollectRepositoryData collects issues, then their comments concurrently.
// A failed comment fetch is logged and skipped; comments keep issue order.
func (c *githubCollector) CollectRepositoryData(ctx context.Context, repo domain.Repository, maxPages int, onProgress ProgressCallback) (*Dataset, error) {
	issues, err := c.GetIssues(ctx, repo, maxPages)
	if err != nil {
		return nil, err
	}

	perIssue := make([][]*domain.RawComment, len(issues))
	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, issue := range issues {
		i, issue := i, issue
		g.Go(func() error {
			if issue.Comments > 0 {
				comments, err := c.GetComments(gctx, repo, issue.Number)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					c.log.Warn().Err(err).Int("issue", issue.Number).Msg("skipping comments")
				}
				perIssue[i] = comments
			}

			if onProgress != nil {
				mu.Lock()
				done++
				onProgress(done, len(issues))
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	data := &Dataset{Issues: issues}
	for _, cs := range perIssue {
		data.Comments = append(data.Comments, cs...)
	}
	return data, nil
}

func toRawIssue(issue *github.Issue) *domain.RawIssue {
	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}
	return &domain.RawIssue{
		ID:          issue.GetID(),
		Number:      issue.GetNumber(),
		Title:       issue.GetTitle(),
		Body:        issue.GetBody(),
		Labels:      labels,
		State:       issue.GetState(),
		CreatedAt:   issue.GetCreatedAt().Time,
		UpdatedAt:   issue.GetUpdatedAt().Time,
		User:        issue.GetUser().GetLogin(),
		URL:         issue.GetHTMLURL(),
		CommentsURL: issue.GetCommentsURL(),
		Comments:    issue.GetComments(),
	}
}

// updateRateLimitFromResponse updates the rate limiter from API response
func (c *githubCollector) updateRateLimitFromResponse(resp *github.Response) {
	if resp != nil && resp.Rate.Limit > 0 {
		c.rateLimiter.UpdateLimit(resp.Rate.Remaining, resp.Rate.Reset.Time)
	}
}
