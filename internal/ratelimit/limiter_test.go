package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kurihiro0119/github-issue-insights/internal/errors"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestAdmitWaitsOnlyAtCap(t *testing.T) {
	const limit = 5
	for n := 0; n <= limit+2; n++ {
		l := New(Window{Name: "minute", Limit: limit, Period: time.Minute})
		for i := 0; i < n; i++ {
			l.Record(t0.Add(time.Duration(i) * time.Second))
		}
		now := t0.Add(10 * time.Second)

		wait, err := l.Admit(now)
		require.NoError(t, err)
		if n >= limit {
			assert.Greater(t, wait, time.Duration(0), "n=%d", n)
		} else {
			assert.Zero(t, wait, "n=%d", n)
		}

		// Past the window every timestamp has expired.
		wait, err = l.Admit(now.Add(time.Minute))
		require.NoError(t, err)
		assert.Zero(t, wait, "n=%d after window", n)
	}
}

func TestAdmitWaitUntilOldestExpires(t *testing.T) {
	l := New(Window{Name: "minute", Limit: 2, Period: time.Minute})
	l.Record(t0)
	l.Record(t0.Add(20 * time.Second))

	wait, err := l.Admit(t0.Add(30 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, wait)

	// Deterministic for the same state and time.
	again, err := l.Admit(t0.Add(30 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, wait, again)

	wait, err = l.Admit(t0.Add(60 * time.Second))
	require.NoError(t, err)
	assert.Zero(t, wait)
	assert.Equal(t, 1, l.Count("minute", t0.Add(60*time.Second)))
}

func TestAdmitTakesMostConstrainedWindow(t *testing.T) {
	l := New(
		Window{Name: "minute", Limit: 2, Period: time.Minute},
		Window{Name: "five", Limit: 3, Period: 5 * time.Minute},
	)
	l.Record(t0)
	l.Record(t0.Add(10 * time.Second))
	l.Record(t0.Add(70 * time.Second))

	wait, err := l.Admit(t0.Add(80 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute-80*time.Second, wait)
}

func TestHardWindowIsQuotaExhausted(t *testing.T) {
	l := PerMinuteAndDay(100, 2)
	l.Record(t0)
	l.Record(t0.Add(time.Second))

	wait, err := l.Admit(t0.Add(2 * time.Second))
	require.Error(t, err)
	assert.True(t, apperrors.IsQuotaExhausted(err))
	assert.False(t, apperrors.IsRateLimited(err))
	assert.Zero(t, wait)

	wait, err = l.Admit(t0.Add(25 * time.Hour))
	require.NoError(t, err)
	assert.Zero(t, wait)
}

func TestRollbackRemovesSpeculativeRecord(t *testing.T) {
	l := New(Window{Name: "minute", Limit: 1, Period: time.Minute})
	l.Record(t0)

	wait, err := l.Admit(t0.Add(time.Second))
	require.NoError(t, err)
	require.Greater(t, wait, time.Duration(0))

	l.Rollback(t0)
	wait, err = l.Admit(t0.Add(time.Second))
	require.NoError(t, err)
	assert.Zero(t, wait)
	assert.Zero(t, l.Count("minute", t0.Add(time.Second)))
}

func TestNewIgnoresDisabledWindows(t *testing.T) {
	l := New(Window{Name: "off", Limit: 0, Period: time.Minute}, Window{Name: "bad", Limit: 3})
	assert.Empty(t, l.Windows())

	l.Record(t0)
	wait, err := l.Admit(t0)
	require.NoError(t, err)
	assert.Zero(t, wait)
}
