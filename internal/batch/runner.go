// Package batch drives the fetch/persist loop shared by all pipeline
// commands: targets are fetched by a bounded worker pool, then saved
// sequentially so no two workers ever write the same game concurrently.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/observability"
	"game-catalog-pipeline/internal/persist"
)

// Worker pool bounds.
const (
	DefaultWorkers = 4
	MaxWorkers     = 8
)

// Default chunk sizes.
const (
	DefaultFetchSize = 1000
	DefaultSaveSize  = 1000
)

// State is the runner's lifecycle phase.
type State string

const (
	StatePreparing  State = "preparing"
	StateFetching   State = "fetching"
	StatePersisting State = "persisting"
	StateFinalizing State = "finalizing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Target is one unit of work: a source record or catalog row to fetch.
type Target struct {
	Type domain.TargetType
	ID   int64
}

// Totals aggregates the outcome of a whole run.
type Totals struct {
	Targets       int
	Fetched       int
	Created       int
	Updated       int
	Skipped       int
	Failed        int
	Failures      []domain.FailureDetail
	FetchFailures []domain.FailureDetail
}

// Hooks are optional per-phase callbacks. All run on the runner's
// goroutine, never concurrently.
type Hooks struct {
	OnStateChange   func(State)
	OnSaveResult    func(persist.BatchResult)
	OnFetchFailure  func(domain.FailureDetail)
	OnBatchComplete func(Totals)
}

// Job describes one batch run. Fetch reports per-target failures as
// FailureDetail rather than aborting; Save never returns an error.
type Job struct {
	Targets   []Target
	FetchSize int
	SaveSize  int
	Workers   int
	Fetch     func(ctx context.Context, t Target) (*domain.ProcessedGame, *domain.FailureDetail)
	Save      func(ctx context.Context, recs []*domain.ProcessedGame) persist.BatchResult
	Hooks     Hooks
}

// RunStats is the terminal report of a run.
type RunStats struct {
	State     State
	Totals    Totals
	Cancelled bool
	Message   string
}

// Runner executes batch jobs.
type Runner struct {
	logger zerolog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger injects the runner's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{logger: log.Logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the job. Only setup problems return an error; per-target
// failures land in the totals. Cancellation stops dispatch, persists
// what was already fetched, and completes with a "cancelled" message.
func (r *Runner) Run(ctx context.Context, job Job) (*RunStats, error) {
	stats := &RunStats{State: StatePreparing}
	r.transition(stats, StatePreparing, job.Hooks)

	if job.Fetch == nil || job.Save == nil {
		stats.State = StateFailed
		return stats, fmt.Errorf("batch job needs both fetch and save functions")
	}
	fetchSize := defaulted(job.FetchSize, DefaultFetchSize)
	saveSize := defaulted(job.SaveSize, DefaultSaveSize)
	workers := defaulted(job.Workers, DefaultWorkers)
	if workers > MaxWorkers {
		workers = MaxWorkers
	}

	stats.Totals.Targets = len(job.Targets)
	observability.SetActiveWorkers(workers)
	defer observability.SetActiveWorkers(0)

	for start := 0; start < len(job.Targets); start += fetchSize {
		if ctx.Err() != nil {
			stats.Cancelled = true
			break
		}
		end := min(start+fetchSize, len(job.Targets))
		chunk := job.Targets[start:end]

		r.transition(stats, StateFetching, job.Hooks)
		fetched, cancelled := r.fetchChunk(ctx, chunk, workers, job, &stats.Totals)

		r.transition(stats, StatePersisting, job.Hooks)
		r.persistChunk(ctx, fetched, saveSize, job, &stats.Totals)

		if cancelled {
			stats.Cancelled = true
			break
		}
	}

	r.transition(stats, StateFinalizing, job.Hooks)
	if job.Hooks.OnBatchComplete != nil {
		job.Hooks.OnBatchComplete(stats.Totals)
	}
	if stats.Cancelled {
		stats.Message = "cancelled"
	}
	r.transition(stats, StateCompleted, job.Hooks)

	r.logger.Info().
		Int("targets", stats.Totals.Targets).
		Int("fetched", stats.Totals.Fetched).
		Int("created", stats.Totals.Created).
		Int("updated", stats.Totals.Updated).
		Int("skipped", stats.Totals.Skipped).
		Int("failed", stats.Totals.Failed).
		Bool("cancelled", stats.Cancelled).
		Msg("batch run finished")
	return stats, nil
}

// fetchChunk fans the chunk out over the worker pool. Results land in
// an index-addressed slice, so their order matches the targets.
func (r *Runner) fetchChunk(ctx context.Context, chunk []Target, workers int, job Job, totals *Totals) ([]*domain.ProcessedGame, bool) {
	results := make([]*domain.ProcessedGame, len(chunk))
	failures := make([]*domain.FailureDetail, len(chunk))

	var next atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				i := int(next.Add(1)) - 1
				if i >= len(chunk) {
					return nil
				}
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i], failures[i] = job.Fetch(gctx, chunk[i])
			}
		})
	}
	err := g.Wait()
	cancelled := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)

	var fetched []*domain.ProcessedGame
	for i, rec := range results {
		switch {
		case rec != nil:
			fetched = append(fetched, rec)
		case failures[i] != nil:
			totals.FetchFailures = append(totals.FetchFailures, *failures[i])
			totals.Failed++
			if job.Hooks.OnFetchFailure != nil {
				job.Hooks.OnFetchFailure(*failures[i])
			}
		}
	}
	totals.Fetched += len(fetched)
	return fetched, cancelled
}

// persistChunk saves fetched records sequentially in SaveSize slices.
// Saves run even after cancellation so fetched work is not discarded.
func (r *Runner) persistChunk(ctx context.Context, recs []*domain.ProcessedGame, saveSize int, job Job, totals *Totals) {
	for start := 0; start < len(recs); start += saveSize {
		end := min(start+saveSize, len(recs))

		result := job.Save(context.WithoutCancel(ctx), recs[start:end])
		totals.Created += result.Created
		totals.Updated += result.Updated
		totals.Skipped += result.Skipped
		totals.Failed += result.Failed
		totals.Failures = append(totals.Failures, result.Failures...)
		if job.Hooks.OnSaveResult != nil {
			job.Hooks.OnSaveResult(result)
		}
	}
}

func (r *Runner) transition(stats *RunStats, to State, hooks Hooks) {
	if stats.State == to && to != StateFetching {
		return
	}
	stats.State = to
	r.logger.Debug().Str("state", string(to)).Msg("batch state")
	if hooks.OnStateChange != nil {
		hooks.OnStateChange(to)
	}
}

func defaulted(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
