// Package persist turns normalized records into transactional catalog
// mutations. One record is exactly one database transaction; a failed
// record never rolls back its neighbours.
package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/matching"
	"game-catalog-pipeline/internal/observability"
	"game-catalog-pipeline/internal/report"
	"game-catalog-pipeline/internal/source"
	"game-catalog-pipeline/internal/storage"
)

// Deadlock handling: up to two retries with a short pause.
const (
	maxDeadlockRetries = 2
	deadlockBackoff    = 50 * time.Millisecond
)

// errDryRunRollback aborts a dry-run transaction after the full save
// logic has executed.
var errDryRunRollback = errors.New("dry run rollback")

// candidateLimit caps the cross-source candidates fetched per record.
const candidateLimit = 10

// Orchestrator persists ProcessedGame records.
type Orchestrator struct {
	tx       storage.TxRunner
	engine   *matching.Engine
	trailers TrailerResolver
	audit    *report.Writer
	clock    clockwork.Clock
	logger   zerolog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTrailerResolver injects the trailer lookup used at detail creation.
func WithTrailerResolver(tr TrailerResolver) Option {
	return func(o *Orchestrator) {
		o.trailers = tr
	}
}

// WithAuditWriter injects the matching audit stream.
func WithAuditWriter(w *report.Writer) Option {
	return func(o *Orchestrator) {
		o.audit = w
	}
}

// WithClock injects the orchestrator's clock.
func WithClock(clock clockwork.Clock) Option {
	return func(o *Orchestrator) {
		o.clock = clock
	}
}

// WithLogger injects the orchestrator's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// NewOrchestrator creates an Orchestrator over the given transaction
// runner and matching engine.
func NewOrchestrator(tx storage.TxRunner, engine *matching.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		tx:       tx,
		engine:   engine,
		trailers: NopTrailerResolver{},
		clock:    clockwork.NewRealClock(),
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SaveOne persists a single record in one transaction, retrying
// deadlocks. The result always classifies; SaveOne never panics a batch.
func (o *Orchestrator) SaveOne(ctx context.Context, rec *domain.ProcessedGame, opts SaveOptions) SaveResult {
	started := o.clock.Now()

	if err := rec.Validate(); err != nil {
		res := o.failure(rec, domain.FailureValidationFailed, err)
		o.writeAudit(opts.RunID, rec, res)
		return res
	}

	var result SaveResult
	var err error
	for attempt := 0; ; attempt++ {
		err = o.tx.InTx(ctx, func(st storage.Stores) error {
			var txErr error
			result, txErr = o.saveTx(ctx, st, rec, opts)
			if txErr != nil {
				return txErr
			}
			if opts.DryRun {
				return errDryRunRollback
			}
			return nil
		})
		if errors.Is(err, storage.ErrDeadlock) && attempt < maxDeadlockRetries {
			observability.RecordDeadlockRetry()
			o.logger.Warn().
				Str("target_id", rec.TargetID()).
				Int("attempt", attempt+1).
				Msg("deadlock, retrying save")
			select {
			case <-ctx.Done():
				err = ctx.Err()
			case <-time.After(deadlockBackoff):
				continue
			}
		}
		break
	}
	if errors.Is(err, errDryRunRollback) {
		err = nil
	}
	if err != nil {
		reason := classifyError(rec, err)
		res := o.failure(rec, reason, err)
		res.Decision = result.Decision
		o.writeAudit(opts.RunID, rec, res)
		return res
	}

	o.writeAudit(opts.RunID, rec, result)
	observability.RecordSave(string(result.Action), o.clock.Since(started).Seconds())
	return result
}

// SaveMany persists records sequentially. Individual failures are
// collected, never propagated.
func (o *Orchestrator) SaveMany(ctx context.Context, recs []*domain.ProcessedGame, opts SaveOptions) BatchResult {
	var batch BatchResult
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			batch.add(o.failure(rec, domain.FailureUnknown, err))
			continue
		}
		batch.add(o.SaveOne(ctx, rec, opts))
	}
	return batch
}

func (o *Orchestrator) failure(rec *domain.ProcessedGame, reason domain.SaveFailureReason, err error) SaveResult {
	observability.RecordSaveFailure(string(reason))
	o.logger.Warn().
		Err(err).
		Str("target_id", rec.TargetID()).
		Str("reason", string(reason)).
		Msg("save failed")
	return SaveResult{
		Failure: &domain.FailureDetail{
			TargetType: rec.TargetType(),
			TargetID:   rec.TargetID(),
			Reason:     reason,
			Message:    err.Error(),
		},
	}
}

// writeAudit emits the matching decision or the failure to the JSONL
// audit streams. Audit write failures are logged, never propagated.
func (o *Orchestrator) writeAudit(runID string, rec *domain.ProcessedGame, res SaveResult) {
	if o.audit == nil {
		return
	}
	var err error
	switch {
	case res.Failure != nil:
		err = o.audit.WriteError(runID, rec, res.Failure.Reason, errors.New(res.Failure.Message))
	case res.Decision != nil:
		err = o.audit.WriteDecision(runID, rec, *res.Decision)
	}
	if err != nil {
		o.logger.Error().Err(err).Str("target_id", rec.TargetID()).Msg("audit write failed")
	}
}

// classifyError maps a save error to the per-record failure taxonomy.
func classifyError(rec *domain.ProcessedGame, err error) domain.SaveFailureReason {
	switch {
	case errors.Is(err, domain.ErrInvalidRecord):
		return domain.FailureValidationFailed
	case errors.Is(err, storage.ErrDuplicateKey):
		return domain.FailureDuplicateConstraint
	case source.IsNotFound(err):
		if rec.DataSource == domain.DataSourceMeta {
			return domain.FailureMetaGameNotFound
		}
		return domain.FailureStoreAppNotFound
	case source.IsRateLimited(err):
		return domain.FailureRateLimit
	default:
		return domain.FailureUnknown
	}
}

// itemReason renders the optional item-row reason for a save result.
func itemReason(res SaveResult) *string {
	if res.Decision == nil {
		return nil
	}
	s := fmt.Sprintf("match:%s", res.Decision.Status)
	return &s
}
