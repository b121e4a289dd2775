package orchestrator

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	apperrors "github.com/kurihiro0119/github-issue-insights/internal/errors"
)

// RetryPolicy bounds the attempts made for one batch
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	// RateLimitCooldown is slept after an HTTP 429, on top of the backoff;
	// negative disables it.
	RateLimitCooldown time.Duration
}

// DefaultRetryPolicy is 3 attempts, 1s initial delay, 60s cooldown after a 429
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		RateLimitCooldown: 60 * time.Second,
	}
}

// newBackOff yields InitialDelay * 2^k for the k-th retry, without jitter
func (p RetryPolicy) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = time.Duration(math.MaxInt64)
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Delays returns the backoff slept before each retry of a full attempt budget
func (p RetryPolicy) Delays() []time.Duration {
	if p.MaxAttempts <= 1 {
		return nil
	}
	b := p.newBackOff()
	out := make([]time.Duration, 0, p.MaxAttempts-1)
	for i := 0; i < p.MaxAttempts-1; i++ {
		out = append(out, b.NextBackOff())
	}
	return out
}

// invoke sends one prompt and parses the reply, retrying transient and parse
// failures. Every call is admitted through the limiter; a 429 is rolled back
// out of the limiter's history. Only QUOTA_EXHAUSTED and context errors are
// returned unwrapped; anything else comes back after the attempt budget.
func (s *Scheduler) invoke(ctx context.Context, prompt string, parse func(string) (*Result, error)) (*Result, int, error) {
	maxAttempts := s.cfg.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	bo := s.cfg.Retry.newBackOff()

	attempts := 0
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempts, err
		}
		if err := s.admit(ctx); err != nil {
			return nil, attempts, err
		}

		stamp := s.clock.Now()
		s.limiter.Record(stamp)
		s.requests++
		attempts++

		text, err := s.gen.Generate(ctx, prompt)
		if err == nil {
			var res *Result
			res, err = parse(text)
			if err == nil {
				return res, attempts, nil
			}
			if !apperrors.IsParse(err) {
				err = apperrors.NewParseError("parse reply", err)
			}
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, attempts, ctxErr
		}

		if apperrors.IsRateLimited(err) {
			// The rejected call did not consume real quota.
			s.limiter.Rollback(stamp)
			s.requests--
			s.log.Warn().Str("task", s.task.Name()).Dur("cooldown", s.cfg.Retry.RateLimitCooldown).
				Msg("rate limited by provider, cooling down")
			if s.cfg.Retry.RateLimitCooldown > 0 {
				if err := s.clock.Sleep(ctx, s.cfg.Retry.RateLimitCooldown); err != nil {
					return nil, attempts, err
				}
			}
		}

		if apperrors.IsPermanent(err) {
			return nil, attempts, err
		}
		if attempt == maxAttempts-1 {
			break
		}

		delay := bo.NextBackOff()
		s.log.Warn().Err(err).Str("task", s.task.Name()).
			Int("attempt", attempts).Int("max_attempts", maxAttempts).Dur("retry_in", delay).
			Msg("generation attempt failed")
		if err := s.clock.Sleep(ctx, delay); err != nil {
			return nil, attempts, err
		}
	}

	return nil, attempts, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// admit blocks until the limiter lets the next request through
func (s *Scheduler) admit(ctx context.Context) error {
	for {
		wait, err := s.limiter.Admit(s.clock.Now())
		if err != nil {
			return err
		}
		if wait <= 0 {
			return nil
		}
		s.log.Info().Str("task", s.task.Name()).Dur("wait", wait).Msg("rate limit reached, waiting")
		if err := s.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}
