// Package runlog records pipeline run and item bookkeeping. Runs are
// append-only rows; item rows for successful saves are written inside
// the save transaction by the caller, the registry only covers the rest.
package runlog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/observability"
	"game-catalog-pipeline/internal/storage"
)

// maxFailureDetails caps the failures carried on a run summary; the
// failure counter keeps counting past the cap.
const maxFailureDetails = 100

// Registry creates and finalizes pipeline runs.
type Registry struct {
	runs   storage.PipelineRunStore
	items  storage.PipelineItemStore
	clock  clockwork.Clock
	logger zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock injects the registry's clock.
func WithClock(clock clockwork.Clock) Option {
	return func(r *Registry) {
		r.clock = clock
	}
}

// WithLogger injects the registry's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates a Registry over the given stores.
func NewRegistry(runs storage.PipelineRunStore, items storage.PipelineItemStore, opts ...Option) *Registry {
	r := &Registry{
		runs:   runs,
		items:  items,
		clock:  clockwork.NewRealClock(),
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run is one live pipeline run. Counter methods are safe for concurrent
// use from batch workers.
type Run struct {
	ID           string
	PipelineType domain.PipelineType
	StartedAt    time.Time

	registry *Registry

	created atomic.Int64
	updated atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64

	mu       sync.Mutex
	failures []domain.FailureDetail
}

// Begin inserts a running pipeline_runs row and returns its handle.
func (r *Registry) Begin(ctx context.Context, pt domain.PipelineType, trigger string) (*Run, error) {
	run := &domain.PipelineRun{
		ID:           uuid.NewString(),
		PipelineType: pt,
		Trigger:      trigger,
		Status:       domain.RunStatusRunning,
		StartedAt:    r.clock.Now().UTC(),
	}
	if err := r.runs.Insert(ctx, run); err != nil {
		return nil, err
	}

	observability.AddActiveRun(1)
	r.logger.Info().
		Str("run_id", run.ID).
		Str("pipeline", pt.String()).
		Str("trigger", trigger).
		Msg("pipeline run started")

	return &Run{ID: run.ID, PipelineType: pt, StartedAt: run.StartedAt, registry: r}, nil
}

// Created records one created game.
func (run *Run) Created() { run.created.Add(1) }

// Updated records one updated game.
func (run *Run) Updated() { run.updated.Add(1) }

// Skipped records one intentionally skipped record.
func (run *Run) Skipped() { run.skipped.Add(1) }

// Failed records one classified per-record failure and writes its item
// row best-effort. Failures never abort the run.
func (run *Run) Failed(ctx context.Context, detail domain.FailureDetail) {
	run.failed.Add(1)
	run.mu.Lock()
	if len(run.failures) < maxFailureDetails {
		run.failures = append(run.failures, detail)
	}
	run.mu.Unlock()

	reason := string(detail.Reason)
	item := &domain.PipelineItem{
		RunID:      run.ID,
		TargetType: detail.TargetType,
		TargetID:   detail.TargetID,
		Action:     domain.ItemActionSkipped,
		Status:     domain.ItemStatusFailed,
		Reason:     &reason,
	}
	if err := run.registry.items.Insert(ctx, item); err != nil {
		run.registry.logger.Warn().
			Err(err).
			Str("run_id", run.ID).
			Str("target_id", detail.TargetID).
			Msg("failed to record pipeline item")
	}
	observability.RecordItemProcessed(run.PipelineType.String(), string(domain.ItemStatusFailed))
}

// Total returns the number of records accounted for so far.
func (run *Run) Total() int {
	return int(run.created.Load() + run.updated.Load() + run.skipped.Load() + run.failed.Load())
}

// Summary snapshots the run counters into a caller-facing summary.
func (run *Run) Summary() domain.RunSummary {
	run.mu.Lock()
	failures := append([]domain.FailureDetail(nil), run.failures...)
	run.mu.Unlock()

	return domain.RunSummary{
		RunID:          run.ID,
		TotalProcessed: run.Total(),
		Created:        int(run.created.Load()),
		Updated:        int(run.updated.Load()),
		Skipped:        int(run.skipped.Load()),
		Failed:         int(run.failed.Load()),
		Failures:       failures,
		FinishedAt:     run.registry.clock.Now().UTC(),
	}
}

// Finalize writes the terminal run row. Safe to call from a defer; a
// non-nil runErr marks the run failed. Finalization errors are logged,
// not returned, so they never mask the run's own outcome.
func (run *Run) Finalize(ctx context.Context, runErr error) domain.RunSummary {
	summary := run.Summary()

	status := domain.RunStatusCompleted
	var message *string
	if runErr != nil {
		status = domain.RunStatusFailed
		msg := runErr.Error()
		message = &msg
	}

	completed := summary.Created + summary.Updated + summary.Skipped
	err := run.registry.runs.Finalize(
		ctx, run.ID, status,
		summary.TotalProcessed, completed, summary.Failed,
		summary.FinishedAt, message,
	)
	if err != nil {
		run.registry.logger.Error().
			Err(err).
			Str("run_id", run.ID).
			Msg("failed to finalize pipeline run")
	}

	observability.AddActiveRun(-1)
	observability.RecordPipelineRun(run.PipelineType.String(), string(status), summary.FinishedAt.Sub(run.StartedAt).Seconds())
	run.registry.logger.Info().
		Str("run_id", run.ID).
		Str("status", status.String()).
		Int("total", summary.TotalProcessed).
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("pipeline run finished")

	return summary
}
