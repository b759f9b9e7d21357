// Command pipeline runs the catalog ingestion commands: refresh-window,
// ingest-new, single, full-refresh, backfill-details, merge-duplicates.
// The run summary is printed as JSON on stdout; diagnostics go to
// stderr and the rotating pipeline.log.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"game-catalog-pipeline/internal/config"
	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/logging"
	"game-catalog-pipeline/internal/matching"
	"game-catalog-pipeline/internal/observability"
	"game-catalog-pipeline/internal/persist"
	"game-catalog-pipeline/internal/pipeline"
	"game-catalog-pipeline/internal/ratelimit"
	"game-catalog-pipeline/internal/report"
	"game-catalog-pipeline/internal/runlog"
	"game-catalog-pipeline/internal/source/meta"
	"game-catalog-pipeline/internal/source/store"
	"game-catalog-pipeline/internal/storage/postgres"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitUsage   = 2
)

var errUnknownCommand = errors.New("unknown command")

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		usage()
		return exitUsage
	}
	command, args := os.Args[1], os.Args[2:]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		return exitUsage
	}

	logCloser, err := logging.Setup(cfg.LogBaseDir, cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup: %v\n", err)
		return exitRuntime
	}
	defer logCloser.Close()

	log.Info().
		Str("command", command).
		Str("db_host", cfg.DBHost).
		Str("meta_api_key", config.MaskSecret(cfg.MetaAPIKey)).
		Msg("pipeline starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig, ok := <-sigCh
		if !ok {
			return
		}
		log.Warn().Str("signal", sig.String()).Msg("shutdown requested, cancelling run")
		cancel()
	}()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseDSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "database: %v\n", err)
		return exitRuntime
	}
	defer pool.Close()

	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr)
		defer stop()
	}

	reports := report.NewWriter(cfg.LogBaseDir)
	defer func() {
		if err := reports.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close matching report")
		}
	}()

	pl := buildPipeline(cfg, postgres.NewDB(pool), reports)

	summary, err := dispatch(ctx, pl, command, args)
	switch {
	case errors.Is(err, errUnknownCommand):
		fmt.Fprintf(os.Stderr, "%v: %s\n", err, command)
		usage()
		return exitUsage
	case errors.Is(err, pipeline.ErrInvalidCommand):
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	printSummary(summary)
	if err != nil {
		log.Error().Err(err).Str("run_id", summary.RunID).Msg("run failed")
		return exitRuntime
	}
	return exitOK
}

// buildPipeline assembles the command layer over a live database.
func buildPipeline(cfg *config.Config, db *postgres.DB, reports *report.Writer) *pipeline.Pipeline {
	storeClient := store.NewClient(cfg.StoreBaseURL, store.WithAPIKey(cfg.StoreAPIKey))
	metaClient := meta.NewClient(cfg.MetaBaseURL, cfg.MetaAPIKey)

	storeGate := ratelimit.NewFixedWindow(store.SourceName, cfg.StoreRateLimitN, cfg.StoreRateLimitWindow)
	metaGate := ratelimit.NewFixedWindow(meta.SourceName, cfg.MetaRateLimitN, cfg.MetaRateLimitWindow)

	orc := persist.NewOrchestrator(db, matching.NewEngine(), persist.WithAuditWriter(reports))
	registry := runlog.NewRegistry(db.Stores().Runs, db.Stores().Items)

	return pipeline.New(db, storeClient, metaClient, orc, registry,
		pipeline.WithGates(storeGate, metaGate),
		pipeline.WithReportWriter(reports),
		pipeline.WithBatchSizes(cfg.BatchConcurrency, cfg.FetchBatchSize, cfg.SaveBatchSize),
	)
}

// dispatch parses the subcommand flags and runs the command.
func dispatch(ctx context.Context, pl *pipeline.Pipeline, command string, args []string) (domain.RunSummary, error) {
	switch command {
	case "refresh-window":
		fs := flag.NewFlagSet(command, flag.ContinueOnError)
		limit := fs.Int("limit", 500, "maximum games to refresh")
		dryRun := fs.Bool("dry-run", false, "execute saves, then roll back")
		if err := fs.Parse(args); err != nil {
			return domain.RunSummary{}, fmt.Errorf("%w: %v", pipeline.ErrInvalidCommand, err)
		}
		return pl.RefreshWindow(ctx, pipeline.RefreshWindowCommand{Limit: *limit, DryRun: *dryRun})

	case "ingest-new":
		fs := flag.NewFlagSet(command, flag.ContinueOnError)
		mode := fs.String("mode", pipeline.ModeOperational, "bootstrap or operational")
		limit := fs.Int("limit", 1000, "maximum new store IDs to fetch")
		dryRun := fs.Bool("dry-run", false, "execute saves, then roll back")
		if err := fs.Parse(args); err != nil {
			return domain.RunSummary{}, fmt.Errorf("%w: %v", pipeline.ErrInvalidCommand, err)
		}
		return pl.IngestNew(ctx, pipeline.IngestNewCommand{Mode: *mode, Limit: *limit, DryRun: *dryRun})

	case "single":
		fs := flag.NewFlagSet(command, flag.ContinueOnError)
		idKind := fs.String("id-kind", "store", "internal, store or meta")
		id := fs.Int64("id", 0, "identifier to refresh")
		sources := fs.String("sources", "", "comma-separated source filter (store,meta)")
		dryRun := fs.Bool("dry-run", false, "execute saves, then roll back")
		if err := fs.Parse(args); err != nil {
			return domain.RunSummary{}, fmt.Errorf("%w: %v", pipeline.ErrInvalidCommand, err)
		}
		return pl.Single(ctx, pipeline.SingleCommand{
			IDKind:  *idKind,
			ID:      *id,
			Sources: splitSources(*sources),
			DryRun:  *dryRun,
		})

	case "full-refresh":
		fs := flag.NewFlagSet(command, flag.ContinueOnError)
		mode := fs.String("mode", pipeline.ModeOperational, "bootstrap or operational")
		batchSize := fs.Int("batch-size", 500, "keyset page size")
		dryRun := fs.Bool("dry-run", false, "execute saves, then roll back")
		if err := fs.Parse(args); err != nil {
			return domain.RunSummary{}, fmt.Errorf("%w: %v", pipeline.ErrInvalidCommand, err)
		}
		return pl.FullRefresh(ctx, pipeline.FullRefreshCommand{Mode: *mode, BatchSize: *batchSize, DryRun: *dryRun})

	case "backfill-details":
		fs := flag.NewFlagSet(command, flag.ContinueOnError)
		limit := fs.Int("limit", 500, "maximum games to backfill")
		concurrency := fs.Int("concurrency", 4, "fetch workers")
		if err := fs.Parse(args); err != nil {
			return domain.RunSummary{}, fmt.Errorf("%w: %v", pipeline.ErrInvalidCommand, err)
		}
		return pl.BackfillDetails(ctx, pipeline.BackfillDetailsCommand{Limit: *limit, Concurrency: *concurrency})

	case "merge-duplicates":
		fs := flag.NewFlagSet(command, flag.ContinueOnError)
		limit := fs.Int("limit", 100, "maximum pairs to merge")
		dryRun := fs.Bool("dry-run", false, "report mergeable pairs without merging")
		if err := fs.Parse(args); err != nil {
			return domain.RunSummary{}, fmt.Errorf("%w: %v", pipeline.ErrInvalidCommand, err)
		}
		return pl.MergeDuplicates(ctx, pipeline.MergeDuplicatesCommand{Limit: *limit, DryRun: *dryRun})
	}
	return domain.RunSummary{}, errUnknownCommand
}

// serveMetrics exposes /metrics and /healthz until the returned stop
// function runs.
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics listener failed")
		}
	}()
	log.Info().Str("addr", addr).Msg("metrics listener started")

	return func() {
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("metrics listener shutdown")
		}
	}
}

func printSummary(summary domain.RunSummary) {
	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode summary: %v\n", err)
		return
	}
	fmt.Println(string(out))
}

func splitSources(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: pipeline <command> [flags]

commands:
  refresh-window    re-fetch games inside the release window
  ingest-new        fetch store IDs absent from the catalog
  single            refresh exactly one record
  full-refresh      iterate the entire catalog
  backfill-details  recover missing detail and release rows
  merge-duplicates  collapse suffixed duplicate rows

run "pipeline <command> -h" for the command's flags.
`)
}
