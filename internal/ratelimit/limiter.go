// Package ratelimit enforces request caps over one or more rolling windows.
//
// Soft windows (e.g. 10 per minute) ask the caller to wait; hard windows
// (e.g. 1500 per day) end the run with a QUOTA_EXHAUSTED error instead of
// sleeping until the window rolls over.
package ratelimit

import (
	"fmt"
	"time"

	apperrors "github.com/kurihiro0119/github-issue-insights/internal/errors"
)

// Window configures one rolling window
type Window struct {
	Name   string
	Limit  int
	Period time.Duration
	// Hard marks the window as a quota: reaching it stops the run.
	Hard bool
}

func (w Window) String() string {
	return fmt.Sprintf("%s(%d/%s)", w.Name, w.Limit, w.Period)
}

type window struct {
	Window
	stamps []time.Time // ascending
}

// Limiter tracks request timestamps against every configured window.
// It is not safe for concurrent use; the batch loop owns it.
type Limiter struct {
	windows []*window
}

// New creates a limiter. Windows with a non-positive limit or period are ignored.
func New(windows ...Window) *Limiter {
	l := &Limiter{}
	for _, w := range windows {
		if w.Limit <= 0 || w.Period <= 0 {
			continue
		}
		l.windows = append(l.windows, &window{Window: w})
	}
	return l
}

// PerMinuteAndDay is the common soft-minute plus hard-day policy
func PerMinuteAndDay(perMinute, perDay int) *Limiter {
	return New(
		Window{Name: "minute", Limit: perMinute, Period: time.Minute},
		Window{Name: "day", Limit: perDay, Period: 24 * time.Hour, Hard: true},
	)
}

// Admit purges expired timestamps and reports how long the caller must wait
// before the next request. A zero duration means go now. A full hard window
// returns a QUOTA_EXHAUSTED error.
func (l *Limiter) Admit(now time.Time) (time.Duration, error) {
	var wait time.Duration
	for _, w := range l.windows {
		w.purge(now)
		if len(w.stamps) < w.Limit {
			continue
		}
		if w.Hard {
			return 0, apperrors.NewQuotaExhaustedError(
				fmt.Sprintf("%s quota of %d requests reached", w.Name, w.Limit))
		}
		// The window frees a slot when its oldest retained stamp expires.
		d := w.stamps[len(w.stamps)-w.Limit].Add(w.Period).Sub(now)
		if d > wait {
			wait = d
		}
	}
	return wait, nil
}

// Record appends a request timestamp to every window
func (l *Limiter) Record(t time.Time) {
	for _, w := range l.windows {
		w.stamps = append(w.stamps, t)
	}
}

// Rollback removes one occurrence of t, undoing a Record for a request that
// did not consume quota (HTTP 429).
func (l *Limiter) Rollback(t time.Time) {
	for _, w := range l.windows {
		for i := len(w.stamps) - 1; i >= 0; i-- {
			if w.stamps[i].Equal(t) {
				w.stamps = append(w.stamps[:i], w.stamps[i+1:]...)
				break
			}
		}
	}
}

// Count returns the timestamps held by the named window as of now
func (l *Limiter) Count(name string, now time.Time) int {
	for _, w := range l.windows {
		if w.Name == name {
			w.purge(now)
			return len(w.stamps)
		}
	}
	return 0
}

// Windows returns the configured windows
func (l *Limiter) Windows() []Window {
	out := make([]Window, 0, len(l.windows))
	for _, w := range l.windows {
		out = append(out, w.Window)
	}
	return out
}

func (w *window) purge(now time.Time) {
	keep := 0
	for keep < len(w.stamps) && now.Sub(w.stamps[keep]) >= w.Period {
		keep++
	}
	if keep > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[keep:]...)
	}
}
