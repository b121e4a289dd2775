package collector

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// githubHourlyLimit is the authenticated REST quota.
	githubHourlyLimit = 5000
	// minRemaining is the reserve below which callers wait for the reset.
	minRemaining = 10
)

// RateLimiter manages GitHub API rate limiting
type RateLimiter interface {
	Wait(ctx context.Context) error
	CheckLimit() (remaining int, resetTime time.Time, err error)
	UpdateLimit(remaining int, resetTime time.Time)
}

// githubRateLimiter throttles proactively with a token bucket and waits for
// the quota reset when the reported remaining count runs low
type githubRateLimiter struct {
	mu        sync.Mutex
	remaining int
	resetTime time.Time
	bucket    *rate.Limiter
	log       zerolog.Logger
}

// NewRateLimiter creates a limiter allowing rps requests per second
func NewRateLimiter(rps float64, log zerolog.Logger) RateLimiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &githubRateLimiter{
		remaining: githubHourlyLimit,
		resetTime: time.Now().Add(time.Hour),
		bucket:    rate.NewLimiter(limit, 1),
		log:       log,
	}
}

// Wait waits until it's safe to make another API call
func (r *githubRateLimiter) Wait(ctx context.Context) error {
	if err := r.bucket.Wait(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	remaining, resetTime := r.remaining, r.resetTime
	r.mu.Unlock()

	if remaining > minRemaining {
		return nil
	}
	waitDuration := time.Until(resetTime)
	if waitDuration > 0 {
		r.log.Warn().Int("remaining", remaining).Dur("wait", waitDuration.Round(time.Second)).
			Msg("GitHub rate limit low, waiting for reset")
		timer := time.NewTimer(waitDuration)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	r.mu.Lock()
	r.remaining = githubHourlyLimit
	r.resetTime = time.Now().Add(time.Hour)
	r.mu.Unlock()
	return nil
}

// CheckLimit returns the current rate limit status
func (r *githubRateLimiter) CheckLimit() (remaining int, resetTime time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining, r.resetTime, nil
}

// UpdateLimit updates the rate limit from API response headers
func (r *githubRateLimiter) UpdateLimit(remaining int, resetTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remaining = remaining
	r.resetTime = resetTime
}
