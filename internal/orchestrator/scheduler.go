package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kurihiro0119/github-issue-insights/internal/clock"
	"github.com/kurihiro0119/github-issue-insights/internal/domain"
	apperrors "github.com/kurihiro0119/github-issue-insights/internal/errors"
	"github.com/kurihiro0119/github-issue-insights/internal/ratelimit"
	"github.com/kurihiro0119/github-issue-insights/internal/record"
	"github.com/kurihiro0119/github-issue-insights/internal/recordstore"
)

// Scheduler runs one task over a record file
type Scheduler struct {
	task    Task
	gen     Generator
	limiter *ratelimit.Limiter
	cfg     Config
	clock   clock.Clock
	log     zerolog.Logger
	gate    Gate
	sink    Sink
	journal Journal

	requests int
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock replaces the wall clock, mainly for tests
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithGate runs g before the first batch of a fresh run
func WithGate(g Gate) Option {
	return func(s *Scheduler) { s.gate = g }
}

// WithSink hands batch artifacts to sink
func WithSink(sink Sink) Option {
	return func(s *Scheduler) { s.sink = sink }
}

// WithJournal records run and batch outcomes to j
func WithJournal(j Journal) Option {
	return func(s *Scheduler) { s.journal = j }
}

// New creates a Scheduler. Zero-valued settings take DefaultConfig values.
// A nil limiter admits everything.
func New(task Task, gen Generator, limiter *ratelimit.Limiter, cfg Config, opts ...Option) *Scheduler {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.InterBatchDelay == 0 {
		cfg.InterBatchDelay = def.InterBatchDelay
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if cfg.Retry.InitialDelay <= 0 {
		cfg.Retry.InitialDelay = def.Retry.InitialDelay
	}
	if cfg.Retry.RateLimitCooldown == 0 {
		cfg.Retry.RateLimitCooldown = def.Retry.RateLimitCooldown
	}
	if limiter == nil {
		limiter = ratelimit.New()
	}

	s := &Scheduler{
		task:    task,
		gen:     gen,
		limiter: limiter,
		cfg:     cfg,
		clock:   clock.Real(),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run loads the records (resuming from the output file when it exists),
// processes every pending record and returns the run summary. A run that
// stops on quota or a failed gate returns a report with a StopReason and a
// nil error; I/O failures and cancellation return an error alongside the
// partial report.
func (s *Scheduler) Run(ctx context.Context) (*domain.Run, error) {
	records, resuming, err := recordstore.Load(s.cfg.InputPath, s.cfg.OutputPath)
	if err != nil {
		return nil, err
	}
	return s.Process(ctx, records, resuming)
}

// Process runs the loop over already loaded records
func (s *Scheduler) Process(ctx context.Context, records []*record.Record, resuming bool) (*domain.Run, error) {
	field := s.task.ResultField()
	s.requests = 0

	run := &domain.Run{
		ID:         uuid.NewString(),
		Task:       s.task.Name(),
		Provider:   s.gen.Name(),
		InputPath:  s.cfg.InputPath,
		OutputPath: s.cfg.OutputPath,
		Resumed:    resuming,
		Status:     domain.RunStatusInProgress,
		Total:      len(records),
		Done:       recordstore.CountWith(records, field),
		StartedAt:  s.clock.Now(),
	}
	log := s.log.With().Str("task", run.Task).Str("run_id", run.ID).Logger()

	pending := recordstore.PendingIndices(records, field, s.task.Eligible, s.cfg.MaxFailures)
	run.Eligible = len(pending)
	if resuming {
		log.Info().Int("done", run.Done).Int("pending", len(pending)).Msg("resuming from existing output")
	}

	var err error
	pending, err = s.precompute(records, pending, run)
	if err != nil {
		return s.finish(ctx, run, records, domain.RunStatusFailed, domain.StopNone), err
	}
	s.saveRun(ctx, run)

	if len(pending) == 0 {
		log.Info().Msg("nothing to process")
		if !resuming && run.Precomputed == 0 {
			if err := recordstore.Persist(records, s.cfg.OutputPath); err != nil {
				return s.finish(ctx, run, records, domain.RunStatusFailed, domain.StopNone), err
			}
		}
		return s.finish(ctx, run, records, domain.RunStatusCompleted, domain.StopNone), nil
	}

	if s.gate != nil && !resuming {
		res, err := s.gate.Check(ctx, records, pending, s.classify)
		run.Requests = s.requests
		switch {
		case apperrors.IsQuotaExhausted(err):
			log.Warn().Err(err).Msg("quota exhausted during accuracy check")
			return s.finish(ctx, run, records, domain.RunStatusStopped, domain.StopQuotaExhausted), nil
		case ctx.Err() != nil:
			return s.finish(ctx, run, records, domain.RunStatusFailed, domain.StopCancelled), ctx.Err()
		case err != nil:
			log.Error().Err(err).Msg("accuracy check failed to run")
			return s.finish(ctx, run, records, domain.RunStatusStopped, domain.StopGateFailed), nil
		}
		acc := res.Accuracy
		run.GateAccuracy = &acc
		if !res.Passed {
			log.Warn().Int("correct", res.Correct).Int("total", res.Total).Float64("accuracy", res.Accuracy).
				Msg("accuracy below threshold, not processing")
			return s.finish(ctx, run, records, domain.RunStatusStopped, domain.StopGateFailed), nil
		}
		log.Info().Int("correct", res.Correct).Int("total", res.Total).Float64("accuracy", res.Accuracy).
			Msg("accuracy check passed")
	}

	batches := Partition(pending, s.cfg.BatchSize)
	log.Info().Int("pending", len(pending)).Int("batches", len(batches)).Int("batch_size", s.cfg.BatchSize).
		Msg("starting batches")

	for n, indices := range batches {
		if n > 0 && s.cfg.InterBatchDelay > 0 {
			if err := s.clock.Sleep(ctx, s.cfg.InterBatchDelay); err != nil {
				return s.finish(ctx, run, records, domain.RunStatusFailed, domain.StopCancelled), err
			}
		}

		result, err := s.runBatch(ctx, run, n+1, indices, records)
		run.Batches++
		run.Requests = s.requests

		if apperrors.IsQuotaExhausted(err) {
			log.Warn().Err(err).Int("batch", n+1).Msg("daily quota exhausted, stopping")
			return s.finish(ctx, run, records, domain.RunStatusStopped, domain.StopQuotaExhausted), nil
		}
		if ctx.Err() != nil {
			return s.finish(ctx, run, records, domain.RunStatusFailed, domain.StopCancelled), ctx.Err()
		}
		if err != nil {
			return s.finish(ctx, run, records, domain.RunStatusFailed, domain.StopNone), err
		}

		if err := recordstore.Persist(records, s.cfg.OutputPath); err != nil {
			log.Error().Err(err).Int("batch", n+1).Msg("failed to persist records")
			return s.finish(ctx, run, records, domain.RunStatusFailed, domain.StopNone), err
		}
		s.saveBatch(ctx, result)

		log.Info().
			Int("batch", n+1).
			Int("of", len(batches)).
			Str("outcome", string(result.Outcome)).
			Int("attempts", result.Attempts).
			Int("processed", run.Processed).
			Int("requests", run.Requests).
			Msg("batch saved")
	}

	return s.finish(ctx, run, records, domain.RunStatusCompleted, domain.StopNone), nil
}

// runBatch submits one batch and merges its outcome into the records. The
// returned error is only set for quota exhaustion and cancellation, in which
// case the records are left untouched.
func (s *Scheduler) runBatch(ctx context.Context, run *domain.Run, number int, indices []int, records []*record.Record) (*domain.BatchResult, error) {
	field := s.task.ResultField()
	batch := make([]*record.Record, len(indices))
	for i, idx := range indices {
		batch[i] = records[idx]
	}

	start := s.clock.Now()
	result := &domain.BatchResult{
		RunID:       run.ID,
		BatchNumber: number,
		Size:        len(batch),
		Indices:     indices,
		CreatedAt:   start,
	}

	res, attempts, err := s.call(ctx, batch)
	result.Attempts = attempts
	result.Duration = s.clock.Now().Sub(start)

	if err != nil && (apperrors.IsQuotaExhausted(err) || ctx.Err() != nil) {
		result.Outcome = domain.BatchFailed
		result.Error = err.Error()
		return result, err
	}

	outcome := domain.BatchCompleted
	if err != nil && apperrors.IsParse(err) {
		if fb := s.task.Fallback(batch); fb != nil {
			s.log.Warn().Err(err).Str("task", s.task.Name()).Int("batch", number).Msg("reply never parsed, applying defaults")
			res, outcome = fb, domain.BatchDefaulted
			result.Error = err.Error()
			err = nil
		}
	}

	if err == nil && res.Artifact != nil && s.sink != nil {
		info := BatchInfo{RunID: run.ID, Number: number, Indices: indices, Records: batch, Model: s.gen.Name()}
		if sinkErr := s.sink.Consume(ctx, info, res.Artifact); sinkErr != nil {
			err = fmt.Errorf("consume batch artifact: %w", sinkErr)
		}
	}

	if err != nil {
		s.log.Error().Err(err).Str("task", s.task.Name()).Int("batch", number).Ints("indices", indices).
			Msg("batch failed, records left for a later run")
		for _, r := range batch {
			if markErr := recordstore.MarkFailed(r, field); markErr != nil {
				s.log.Error().Err(markErr).Msg("failed to mark record")
			}
		}
		run.Failed += len(batch)
		result.Outcome = domain.BatchFailed
		result.Error = err.Error()
		return result, nil
	}

	missing := 0
	for i, r := range batch {
		if res.Values[i] == nil {
			missing++
			if markErr := recordstore.MarkFailed(r, field); markErr != nil {
				s.log.Error().Err(markErr).Msg("failed to mark record")
			}
			continue
		}
		if setErr := r.Set(field, res.Values[i]); setErr != nil {
			return result, apperrors.NewInternalError("store batch result", setErr)
		}
		recordstore.ClearFailures(r, field)
	}
	run.Processed += len(batch) - missing
	run.Failed += missing
	result.Outcome = outcome
	if missing > 0 {
		result.Outcome = domain.BatchPartial
		result.Error = fmt.Sprintf("%d of %d results missing", missing, len(batch))
		s.log.Warn().Str("task", s.task.Name()).Int("batch", number).Int("missing", missing).
			Msg("reply covered part of the batch, missing records left for a later run")
	}
	return result, nil
}

// call renders, sends and parses one batch
func (s *Scheduler) call(ctx context.Context, batch []*record.Record) (*Result, int, error) {
	prompt, err := s.task.Prompt(batch)
	if err != nil {
		return nil, 0, apperrors.NewPermanentError("render prompt", err)
	}
	return s.invoke(ctx, prompt, func(text string) (*Result, error) {
		res, err := s.task.Parse(text, batch)
		if err != nil {
			return nil, err
		}
		if res == nil || len(res.Values) != len(batch) {
			got := 0
			if res != nil {
				got = len(res.Values)
			}
			return nil, apperrors.NewParseError(fmt.Sprintf("expected %d results, got %d", len(batch), got), nil)
		}
		return res, nil
	})
}

// classify is handed to gates so their sample calls share limiter and retries
func (s *Scheduler) classify(ctx context.Context, batch []*record.Record) (*Result, error) {
	res, _, err := s.call(ctx, batch)
	return res, err
}

// precompute resolves records the task can answer locally and returns the
// indices still needing a remote call
func (s *Scheduler) precompute(records []*record.Record, pending []int, run *domain.Run) ([]int, error) {
	p, ok := s.task.(Precomputer)
	if !ok {
		return pending, nil
	}

	field := s.task.ResultField()
	remaining := make([]int, 0, len(pending))
	for _, idx := range pending {
		v, ok := p.Precompute(records[idx])
		if !ok {
			remaining = append(remaining, idx)
			continue
		}
		if err := records[idx].Set(field, v); err != nil {
			return nil, apperrors.NewInternalError("store precomputed result", err)
		}
		recordstore.ClearFailures(records[idx], field)
		run.Precomputed++
	}

	if run.Precomputed > 0 {
		if err := recordstore.Persist(records, s.cfg.OutputPath); err != nil {
			return nil, err
		}
		s.log.Info().Str("task", s.task.Name()).Int("records", run.Precomputed).Msg("resolved records locally")
	}
	return remaining, nil
}

func (s *Scheduler) finish(ctx context.Context, run *domain.Run, records []*record.Record, status domain.RunStatus, reason domain.StopReason) *domain.Run {
	run.Status = status
	run.StopReason = reason
	run.Requests = s.requests
	run.Remaining = len(recordstore.PendingIndices(records, s.task.ResultField(), s.task.Eligible, 0))
	finished := s.clock.Now()
	run.FinishedAt = &finished

	// The journal outlives cancellation of the run itself.
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	s.saveRun(ctx, run)

	s.log.Info().
		Str("task", run.Task).
		Str("status", string(run.Status)).
		Str("stop_reason", string(run.StopReason)).
		Int("processed", run.Processed).
		Int("precomputed", run.Precomputed).
		Int("failed", run.Failed).
		Int("remaining", run.Remaining).
		Int("requests", run.Requests).
		Dur("elapsed", finished.Sub(run.StartedAt)).
		Msg("run finished")
	return run
}

func (s *Scheduler) saveRun(ctx context.Context, run *domain.Run) {
	if s.journal == nil {
		return
	}
	if err := s.journal.SaveRun(ctx, run); err != nil {
		s.log.Warn().Err(err).Str("run_id", run.ID).Msg("failed to journal run")
	}
}

func (s *Scheduler) saveBatch(ctx context.Context, result *domain.BatchResult) {
	if s.journal == nil {
		return
	}
	if err := s.journal.SaveBatchResult(ctx, result); err != nil {
		s.log.Warn().Err(err).Int("batch", result.BatchNumber).Msg("failed to journal batch")
	}
}

// Partition splits indices into consecutive groups of at most size, keeping order
func Partition(indices []int, size int) [][]int {
	if size <= 0 {
		size = 1
	}
	var out [][]int
	for start := 0; start < len(indices); start += size {
		end := start + size
		if end > len(indices) {
			end = len(indices)
		}
		out = append(out, indices[start:end])
	}
	return out
}

// Elapsed is a convenience for callers printing run duration
func Elapsed(run *domain.Run) time.Duration {
	if run == nil || run.FinishedAt == nil {
		return 0
	}
	return run.FinishedAt.Sub(run.StartedAt)
}
