// Package pipeline exposes the catalog commands: each one selects
// targets, fans fetches out through the batch runner, and persists the
// normalized records under a registered pipeline run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"game-catalog-pipeline/internal/batch"
	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/normalize"
	"game-catalog-pipeline/internal/persist"
	"game-catalog-pipeline/internal/report"
	"game-catalog-pipeline/internal/runlog"
	"game-catalog-pipeline/internal/selector"
	"game-catalog-pipeline/internal/source"
	"game-catalog-pipeline/internal/source/meta"
	"game-catalog-pipeline/internal/source/store"
	"game-catalog-pipeline/internal/storage"
)

// StoreCatalog is the store-source surface the pipeline consumes.
type StoreCatalog interface {
	ListApps(ctx context.Context) ([]store.AppEntry, error)
	FetchApp(ctx context.Context, appID int64) (*store.AppDetails, error)
}

// MetaCatalog is the meta-source surface the pipeline consumes.
type MetaCatalog interface {
	FetchGame(ctx context.Context, id int64) (*meta.Game, error)
	SearchByName(ctx context.Context, name string) ([]meta.Game, error)
	FetchWindow(ctx context.Context, filter source.WindowFilter) ([]meta.Game, error)
}

// Limiter gates one source's outbound requests.
type Limiter interface {
	Take(ctx context.Context) error
}

// Pipeline wires the command layer together.
type Pipeline struct {
	db        storage.TxRunner
	storeSrc  StoreCatalog
	metaSrc   MetaCatalog
	orc       *persist.Orchestrator
	registry  *runlog.Registry
	sel       *selector.Selector
	runner    *batch.Runner
	reports   *report.Writer
	storeGate Limiter
	metaGate  Limiter
	clock     clockwork.Clock
	logger    zerolog.Logger

	workers   int
	fetchSize int
	saveSize  int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithGates installs the per-source rate limiters.
func WithGates(storeGate, metaGate Limiter) Option {
	return func(p *Pipeline) {
		p.storeGate = storeGate
		p.metaGate = metaGate
	}
}

// WithReportWriter installs the matching audit writer. The orchestrator
// appends to it; the pipeline flushes summary.json after each run.
func WithReportWriter(w *report.Writer) Option {
	return func(p *Pipeline) {
		p.reports = w
	}
}

// WithBatchSizes overrides the fetch/save chunk sizes and worker count.
func WithBatchSizes(workers, fetchSize, saveSize int) Option {
	return func(p *Pipeline) {
		p.workers = workers
		p.fetchSize = fetchSize
		p.saveSize = saveSize
	}
}

// WithClock injects the pipeline's clock.
func WithClock(clock clockwork.Clock) Option {
	return func(p *Pipeline) {
		p.clock = clock
	}
}

// WithLogger injects the pipeline's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New assembles a Pipeline over shared stores, source clients, the save
// orchestrator and the run registry.
func New(db storage.TxRunner, storeSrc StoreCatalog, metaSrc MetaCatalog, orc *persist.Orchestrator, registry *runlog.Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		db:        db,
		storeSrc:  storeSrc,
		metaSrc:   metaSrc,
		orc:       orc,
		registry:  registry,
		clock:     clockwork.NewRealClock(),
		logger:    log.Logger,
		workers:   batch.DefaultWorkers,
		fetchSize: batch.DefaultFetchSize,
		saveSize:  batch.DefaultSaveSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	var lister selector.AppLister
	if storeSrc != nil {
		lister = appLister{storeSrc}
	}
	p.sel = selector.New(db.Stores(), lister, selector.WithClock(p.clock), selector.WithLogger(p.logger))
	p.runner = batch.NewRunner(batch.WithLogger(p.logger))
	return p
}

// RefreshWindow re-fetches and upserts games inside the release window.
func (p *Pipeline) RefreshWindow(ctx context.Context, cmd RefreshWindowCommand) (domain.RunSummary, error) {
	if err := validateCommand(cmd); err != nil {
		return domain.RunSummary{}, err
	}
	run, err := p.registry.Begin(ctx, domain.PipelineRefreshWindow, TriggerManual)
	if err != nil {
		return domain.RunSummary{}, err
	}

	games, err := p.sel.RefreshWindow(ctx, cmd.Limit)
	if err != nil {
		return p.finish(ctx, run, cmd.DryRun, err)
	}
	opts := persist.SaveOptions{RunID: run.ID, DryRun: cmd.DryRun}
	_, err = p.runner.Run(ctx, p.job(ctx, run, gameTargets(games, nil), opts, p.workers, nil))
	return p.finish(ctx, run, cmd.DryRun, err)
}

// IngestNew fetches store IDs absent from the catalog. Operational mode
// subtracts the persisted exclusion bitmap; bootstrap re-evaluates
// everything and rebuilds it.
func (p *Pipeline) IngestNew(ctx context.Context, cmd IngestNewCommand) (domain.RunSummary, error) {
	if err := validateCommand(cmd); err != nil {
		return domain.RunSummary{}, err
	}
	run, err := p.registry.Begin(ctx, domain.PipelineIngestNew, TriggerManual)
	if err != nil {
		return domain.RunSummary{}, err
	}

	var exclusions *selector.Bitset
	if cmd.Mode == ModeOperational {
		if exclusions, err = p.sel.LoadExclusions(ctx); err != nil {
			return p.finish(ctx, run, cmd.DryRun, err)
		}
	}
	ids, err := p.sel.NewStoreIDs(ctx, cmd.Limit, exclusions)
	if err != nil {
		return p.finish(ctx, run, cmd.DryRun, err)
	}
	targets := make([]batch.Target, len(ids))
	for i, id := range ids {
		targets[i] = batch.Target{Type: domain.TargetStoreApp, ID: id}
	}

	var mu sync.Mutex
	added := selector.NewBitset()
	onExcluded := func(id int64) {
		mu.Lock()
		added.Add(id)
		mu.Unlock()
	}

	opts := persist.SaveOptions{RunID: run.ID, AllowCreate: true, DryRun: cmd.DryRun}
	_, err = p.runner.Run(ctx, p.job(ctx, run, targets, opts, p.workers, onExcluded))
	if err == nil && !cmd.DryRun {
		err = p.sel.PersistExclusions(context.WithoutCancel(ctx), added)
	}
	return p.finish(ctx, run, cmd.DryRun, err)
}

// Single refreshes exactly one record, addressed by internal, store or
// meta identifier.
func (p *Pipeline) Single(ctx context.Context, cmd SingleCommand) (domain.RunSummary, error) {
	if err := validateCommand(cmd); err != nil {
		return domain.RunSummary{}, err
	}
	run, err := p.registry.Begin(ctx, domain.PipelineSingle, TriggerManual)
	if err != nil {
		return domain.RunSummary{}, err
	}

	var targets []batch.Target
	switch cmd.IDKind {
	case "internal":
		g, lookupErr := p.db.Stores().Games.GetByID(ctx, cmd.ID)
		if lookupErr != nil {
			return p.finish(ctx, run, cmd.DryRun, fmt.Errorf("game %d: %w", cmd.ID, lookupErr))
		}
		targets = gameTargets([]*domain.Game{g}, cmd.Sources)
	case "store":
		if sourceAllowed(cmd.Sources, "store") {
			targets = []batch.Target{{Type: domain.TargetStoreApp, ID: cmd.ID}}
		}
	case "meta":
		if sourceAllowed(cmd.Sources, "meta") {
			targets = []batch.Target{{Type: domain.TargetMetaGame, ID: cmd.ID}}
		}
	}

	opts := persist.SaveOptions{RunID: run.ID, AllowCreate: true, DryRun: cmd.DryRun}
	_, err = p.runner.Run(ctx, p.job(ctx, run, targets, opts, 1, nil))
	return p.finish(ctx, run, cmd.DryRun, err)
}

// FullRefresh iterates the whole catalog in keyset pages.
func (p *Pipeline) FullRefresh(ctx context.Context, cmd FullRefreshCommand) (domain.RunSummary, error) {
	if err := validateCommand(cmd); err != nil {
		return domain.RunSummary{}, err
	}
	run, err := p.registry.Begin(ctx, domain.PipelineFullRefresh, TriggerManual)
	if err != nil {
		return domain.RunSummary{}, err
	}

	opts := persist.SaveOptions{
		RunID:       run.ID,
		AllowCreate: cmd.Mode == ModeBootstrap,
		DryRun:      cmd.DryRun,
	}
	afterID := int64(0)
	for {
		page, pageErr := p.sel.FullRefresh(ctx, afterID, cmd.BatchSize)
		if pageErr != nil {
			return p.finish(ctx, run, cmd.DryRun, pageErr)
		}
		if len(page) == 0 {
			break
		}

		stats, runErr := p.runner.Run(ctx, p.job(ctx, run, gameTargets(page, nil), opts, p.workers, nil))
		if runErr != nil {
			return p.finish(ctx, run, cmd.DryRun, runErr)
		}
		afterID = page[len(page)-1].ID
		if stats.Cancelled || len(page) < cmd.BatchSize {
			break
		}
	}
	return p.finish(ctx, run, cmd.DryRun, nil)
}

// BackfillDetails re-fetches popular base games missing a detail or
// release row.
func (p *Pipeline) BackfillDetails(ctx context.Context, cmd BackfillDetailsCommand) (domain.RunSummary, error) {
	if err := validateCommand(cmd); err != nil {
		return domain.RunSummary{}, err
	}
	run, err := p.registry.Begin(ctx, domain.PipelineBackfillDetails, TriggerManual)
	if err != nil {
		return domain.RunSummary{}, err
	}

	games, err := p.sel.BackfillMissingDetails(ctx, cmd.Limit)
	if err != nil {
		return p.finish(ctx, run, false, err)
	}
	opts := persist.SaveOptions{RunID: run.ID}
	_, err = p.runner.Run(ctx, p.job(ctx, run, gameTargets(games, nil), opts, cmd.Concurrency, nil))
	return p.finish(ctx, run, false, err)
}

// MergeDuplicates collapses suffixed duplicate rows whose profiles the
// matching engine scores as automatic matches.
func (p *Pipeline) MergeDuplicates(ctx context.Context, cmd MergeDuplicatesCommand) (domain.RunSummary, error) {
	if err := validateCommand(cmd); err != nil {
		return domain.RunSummary{}, err
	}
	run, err := p.registry.Begin(ctx, domain.PipelineMergeDuplicates, TriggerManual)
	if err != nil {
		return domain.RunSummary{}, err
	}

	candidates, err := p.orc.ScanDuplicates(ctx, cmd.Limit)
	if err != nil {
		return p.finish(ctx, run, cmd.DryRun, err)
	}
	for _, cand := range candidates {
		if ctx.Err() != nil {
			break
		}
		if cmd.DryRun {
			p.logger.Info().
				Int64("keep_id", cand.KeepID).
				Int64("drop_id", cand.DropID).
				Str("base_slug", cand.BaseSlug).
				Float64("score", cand.Decision.Score).
				Msg("dry-run: would merge duplicate")
			run.Skipped()
			continue
		}
		if mergeErr := p.orc.MergeGames(ctx, cand.KeepID, cand.DropID); mergeErr != nil {
			run.Failed(context.WithoutCancel(ctx), domain.FailureDetail{
				TargetType: domain.TargetGame,
				TargetID:   strconv.FormatInt(cand.DropID, 10),
				Reason:     domain.FailureUnknown,
				Message:    mergeErr.Error(),
			})
			continue
		}
		run.Updated()
	}
	return p.finish(ctx, run, cmd.DryRun, nil)
}

// job builds the batch job for one run: fetch under the source gates,
// save through the orchestrator, failures into the run registry.
func (p *Pipeline) job(ctx context.Context, run *runlog.Run, targets []batch.Target, opts persist.SaveOptions, workers int, onExcluded func(int64)) batch.Job {
	itemCtx := context.WithoutCancel(ctx)
	return batch.Job{
		Targets:   targets,
		FetchSize: p.fetchSize,
		SaveSize:  p.saveSize,
		Workers:   workers,
		Fetch:     p.fetcher(run, onExcluded),
		Save:      p.saver(run, opts),
		Hooks: batch.Hooks{
			OnFetchFailure: func(f domain.FailureDetail) { run.Failed(itemCtx, f) },
		},
	}
}

// fetcher fetches one target from its source and normalizes it.
// Excluded products are counted as skipped, never as failures.
func (p *Pipeline) fetcher(run *runlog.Run, onExcluded func(int64)) func(ctx context.Context, t batch.Target) (*domain.ProcessedGame, *domain.FailureDetail) {
	return func(ctx context.Context, t batch.Target) (*domain.ProcessedGame, *domain.FailureDetail) {
		var (
			rec *domain.ProcessedGame
			err error
		)
		switch t.Type {
		case domain.TargetStoreApp:
			if err = p.take(ctx, p.storeGate); err != nil {
				return nil, nil
			}
			var app *store.AppDetails
			if app, err = p.storeSrc.FetchApp(ctx, t.ID); err == nil {
				rec, err = normalize.FromStoreApp(app, p.clock.Now().UTC())
			}
		case domain.TargetMetaGame:
			if err = p.take(ctx, p.metaGate); err != nil {
				return nil, nil
			}
			var g *meta.Game
			if g, err = p.metaSrc.FetchGame(ctx, t.ID); err == nil {
				rec, err = normalize.FromMetaGame(g, p.clock.Now().UTC())
			}
		default:
			err = fmt.Errorf("unsupported target type %q", t.Type)
		}

		if err != nil {
			if errors.Is(err, normalize.ErrExcludedProduct) {
				if onExcluded != nil {
					onExcluded(t.ID)
				}
				run.Skipped()
				return nil, nil
			}
			if ctx.Err() != nil {
				return nil, nil
			}
			return nil, fetchFailure(t, err)
		}
		return rec, nil
	}
}

// saver persists records one transaction each and mirrors the outcome
// into the run registry.
func (p *Pipeline) saver(run *runlog.Run, opts persist.SaveOptions) func(ctx context.Context, recs []*domain.ProcessedGame) persist.BatchResult {
	return func(ctx context.Context, recs []*domain.ProcessedGame) persist.BatchResult {
		var out persist.BatchResult
		for _, rec := range recs {
			res := p.orc.SaveOne(ctx, rec, opts)
			switch {
			case res.Failed():
				out.Failed++
				out.Failures = append(out.Failures, *res.Failure)
				run.Failed(ctx, *res.Failure)
			case res.Action == domain.ItemActionCreated:
				out.Created++
				run.Created()
			case res.Action == domain.ItemActionUpdated:
				out.Updated++
				run.Updated()
			default:
				out.Skipped++
				run.Skipped()
			}
		}
		return out
	}
}

// finish applies the failure-rate guard, finalizes the run row and
// flushes the on-disk report.
func (p *Pipeline) finish(ctx context.Context, run *runlog.Run, dryRun bool, runErr error) (domain.RunSummary, error) {
	if runErr == nil && !dryRun {
		s := run.Summary()
		if s.TotalProcessed > 0 && s.Failed*2 > s.TotalProcessed {
			runErr = fmt.Errorf("failure rate %d/%d exceeds 50%%", s.Failed, s.TotalProcessed)
		}
	}

	summary := run.Finalize(context.WithoutCancel(ctx), runErr)
	summary.Phase = run.PipelineType.String()
	if p.reports != nil {
		if err := p.reports.Flush(); err != nil {
			p.logger.Warn().Err(err).Msg("failed to flush matching report")
		}
	}
	return summary, runErr
}

func (p *Pipeline) take(ctx context.Context, gate Limiter) error {
	if gate == nil {
		return ctx.Err()
	}
	return gate.Take(ctx)
}

// fetchFailure classifies a fetch error into a per-record failure.
func fetchFailure(t batch.Target, err error) *domain.FailureDetail {
	reason := domain.FailureUnknown
	switch {
	case source.IsNotFound(err):
		if t.Type == domain.TargetMetaGame {
			reason = domain.FailureMetaGameNotFound
		} else {
			reason = domain.FailureStoreAppNotFound
		}
	case source.IsRateLimited(err):
		reason = domain.FailureRateLimit
	case errors.Is(err, normalize.ErrMalformedRecord):
		reason = domain.FailureValidationFailed
	}
	return &domain.FailureDetail{
		TargetType: t.Type,
		TargetID:   strconv.FormatInt(t.ID, 10),
		Reason:     reason,
		Message:    err.Error(),
	}
}

// gameTargets expands catalog rows into per-source fetch targets.
func gameTargets(games []*domain.Game, sources []string) []batch.Target {
	var targets []batch.Target
	for _, g := range games {
		if g.StoreID != nil && sourceAllowed(sources, "store") {
			targets = append(targets, batch.Target{Type: domain.TargetStoreApp, ID: *g.StoreID})
		}
		if g.MetaID != nil && sourceAllowed(sources, "meta") {
			targets = append(targets, batch.Target{Type: domain.TargetMetaGame, ID: *g.MetaID})
		}
	}
	return targets
}

// sourceAllowed treats an empty source list as "all sources".
func sourceAllowed(sources []string, name string) bool {
	if len(sources) == 0 {
		return true
	}
	for _, s := range sources {
		if s == name {
			return true
		}
	}
	return false
}

// appLister adapts the store catalog to the selector's lister.
type appLister struct {
	catalog StoreCatalog
}

func (a appLister) ListAppIDs(ctx context.Context) ([]int64, error) {
	entries, err := a.catalog.ListApps(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.AppID
	}
	return ids, nil
}
