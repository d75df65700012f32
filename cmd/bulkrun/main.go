// Command bulkrun coordinates large batches of asynchronous task-group
// jobs: it submits each input CSV as one remote task group, polls until
// every group finishes, fetches the structured outputs, and merges them
// back onto the input rows. All stage state lives in durable artifacts,
// so killing and re-invoking the command resumes instead of
// re-submitting.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bulkrun/bulkrun/internal/api"
	"github.com/bulkrun/bulkrun/internal/batch"
	"github.com/bulkrun/bulkrun/internal/config"
	"github.com/bulkrun/bulkrun/internal/matching"
	"github.com/bulkrun/bulkrun/internal/platform/logger"
	"github.com/bulkrun/bulkrun/internal/platform/parallelapi"
	"github.com/bulkrun/bulkrun/internal/store/postgres"
)

func main() {
	if err := run(); err != nil {
		slog.Error("batch run failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.Setup(cfg.Log)
	log.Info("configuration loaded",
		"input_dir", cfg.Pipeline.InputDir,
		"output_dir", cfg.Pipeline.OutputDir,
		"task", cfg.Pipeline.Task,
		"processor", cfg.Pipeline.Processor,
		"dry_run", cfg.Pipeline.DryRun,
		"store_driver", cfg.Store.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	builder, err := newTaskBuilder(cfg.Pipeline)
	if err != nil {
		return err
	}

	client, err := parallelapi.NewClient(parallelapi.Config{
		APIKey:  cfg.API.Key,
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create api client: %w", err)
	}

	var store batch.StateStore
	switch cfg.Store.Driver {
	case "postgres":
		pg, err := postgres.Open(ctx, cfg.Store.DatabaseURL, log)
		if err != nil {
			return fmt.Errorf("failed to open postgres state store: %w", err)
		}
		defer func() { _ = pg.Close() }()
		store = pg
	default:
		store = batch.NewFSStore(cfg.Pipeline.OutputDir)
	}

	catalog := batch.NewCatalog(cfg.Pipeline.InputDir, builder.MergeKeyColumn())
	submitter := batch.NewSubmitter(batch.SubmitterConfig{
		DryRun:      cfg.Pipeline.DryRun,
		SkipInvalid: cfg.Pipeline.SkipInvalid,
	}, catalog, store, client, builder, log)
	fetcher := batch.NewFetcher(store, client, builder, log)
	merger := batch.NewMerger(catalog, store, builder, log)
	coordinator := batch.NewCoordinator(batch.CoordinatorConfig{
		DryRun:          cfg.Pipeline.DryRun,
		EnqueueInterval: cfg.Pipeline.EnqueueInterval,
		PollInterval:    cfg.Pipeline.PollInterval,
	}, catalog, store, submitter, fetcher, merger, log)

	if cfg.Status.Addr != "" {
		go api.NewStatusHandler(coordinator, log).Serve(ctx, cfg.Status.Addr)
	}

	return coordinator.Run(ctx)
}

// newTaskBuilder resolves the configured task selector to a registered
// task builder.
func newTaskBuilder(cfg config.PipelineConfig) (batch.TaskBuilder, error) {
	switch cfg.Task {
	case matching.TaskName:
		return matching.NewBuilder(cfg.Processor, cfg.SourceName), nil
	default:
		return nil, fmt.Errorf("unknown task %q", cfg.Task)
	}
}
