package batch

import (
	"context"
	"log/slog"
	"time"
)

// CoordinatorConfig holds the pacing and mode settings for a pipeline
// run.
type CoordinatorConfig struct {
	// DryRun validates every file and stops before any remote call or
	// state write; the enqueue loop breaks after one pass.
	DryRun bool

	// EnqueueInterval is the sleep between full submission passes while
	// some files are still failing transiently.
	EnqueueInterval time.Duration

	// PollInterval is the sleep between fetch polling passes while some
	// task groups are still active.
	PollInterval time.Duration
}

// DefaultCoordinatorConfig returns a CoordinatorConfig with the pacing
// used by live runs.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		EnqueueInterval: 5 * time.Second,
		PollInterval:    60 * time.Second,
	}
}

// Coordinator drives the three pipeline stages in order: submit every
// input file, poll and fetch every task group, then merge once. Every
// stage re-derives "is this done" from the state store, so the whole
// run can be killed and re-invoked at any point and it resumes instead
// of re-submitting.
type Coordinator struct {
	cfg       CoordinatorConfig
	catalog   *Catalog
	store     StateStore
	submitter *Submitter
	fetcher   *Fetcher
	merger    *Merger
	logger    *slog.Logger
}

// NewCoordinator wires the stages into a pipeline.
func NewCoordinator(
	cfg CoordinatorConfig,
	catalog *Catalog,
	store StateStore,
	submitter *Submitter,
	fetcher *Fetcher,
	merger *Merger,
	logger *slog.Logger,
) *Coordinator {
	if cfg.EnqueueInterval == 0 {
		cfg.EnqueueInterval = DefaultCoordinatorConfig().EnqueueInterval
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultCoordinatorConfig().PollInterval
	}
	return &Coordinator{
		cfg:       cfg,
		catalog:   catalog,
		store:     store,
		submitter: submitter,
		fetcher:   fetcher,
		merger:    merger,
		logger:    logger,
	}
}

// Run executes the full pipeline. Validation failures abort with an
// error; transient failures keep the loops going until the underlying
// condition resolves or ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.enqueueAll(ctx); err != nil {
		return err
	}
	if c.cfg.DryRun {
		c.logger.Info("dry run complete")
		return nil
	}

	c.logger.Info("fetching results")
	if err := c.fetcher.FetchAll(ctx, c.cfg.PollInterval); err != nil {
		return err
	}

	c.logger.Info("merging results")
	return c.merger.Merge(ctx)
}

// enqueueAll submits every catalog file, re-scanning until all files
// report completion. Already-enqueued files are skipped via the state
// store, which is what makes re-invocation free of duplicate batches.
func (c *Coordinator) enqueueAll(ctx context.Context) error {
	if c.cfg.DryRun {
		c.logger.Info("starting dry run")
	} else {
		c.logger.Info("starting live run")
	}

	for {
		allDone := true
		files, err := c.catalog.ListFiles()
		if err != nil {
			return err
		}
		for _, path := range files {
			enqueued, err := c.store.IsStageComplete(ctx, FileID(path), StageRuns)
			if err != nil {
				return err
			}
			if enqueued {
				c.logger.Info("file already enqueued, skipping", "file", path)
				continue
			}
			done, err := c.submitter.SubmitFile(ctx, path)
			if err != nil {
				return err
			}
			if !done {
				allDone = false
			}
		}

		if allDone {
			c.logger.Info("all files enqueued")
			return nil
		}
		if c.cfg.DryRun {
			c.logger.Info("stopping enqueue loop after dry run pass")
			return nil
		}
		c.logger.Info("some files failed to enqueue, waiting before retry",
			"interval", c.cfg.EnqueueInterval)
		if err := sleepCtx(ctx, c.cfg.EnqueueInterval); err != nil {
			return err
		}
	}
}

// Progress reports pipeline progress derived from durable state, the
// same way the stages themselves decide what is left to do.
type Progress struct {
	TotalFiles int  `json:"total_files"`
	Enqueued   int  `json:"enqueued"`
	Fetched    int  `json:"fetched"`
	Merged     bool `json:"merged"`
}

// Progress computes the current pipeline progress from the catalog and
// state store.
func (c *Coordinator) Progress(ctx context.Context) (Progress, error) {
	files, err := c.catalog.ListFiles()
	if err != nil {
		return Progress{}, err
	}
	p := Progress{TotalFiles: len(files)}
	for _, path := range files {
		fileID := FileID(path)
		enqueued, err := c.store.IsStageComplete(ctx, fileID, StageRuns)
		if err != nil {
			return Progress{}, err
		}
		if enqueued {
			p.Enqueued++
		}
		fetched, err := c.store.IsStageComplete(ctx, fileID, StageResults)
		if err != nil {
			return Progress{}, err
		}
		if fetched {
			p.Fetched++
		}
	}
	merged, err := c.store.IsStageComplete(ctx, MergedFileID, StageResults)
	if err != nil {
		return Progress{}, err
	}
	p.Merged = merged
	return p, nil
}

// sleepCtx sleeps for d or until ctx is cancelled, whichever comes
// first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
