package batch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bulkrun/bulkrun/internal/tabular"
)

// SubmitterConfig holds the operator policies threaded into the
// submission stage.
type SubmitterConfig struct {
	// DryRun stops each file after validation, before any remote call
	// or state write. Used to verify inputs cheaply before committing
	// cost.
	DryRun bool

	// SkipInvalid tolerates unparseable files by marking them done
	// without submission instead of aborting the whole run.
	SkipInvalid bool
}

// Submitter turns validated input files into submitted task groups, one
// group per file, and persists the merge-key to run-id mapping as the
// file's run-state artifact.
type Submitter struct {
	cfg     SubmitterConfig
	catalog *Catalog
	store   StateStore
	client  GroupClient
	builder TaskBuilder
	logger  *slog.Logger
}

// NewSubmitter creates a submission stage with explicit dependencies.
func NewSubmitter(
	cfg SubmitterConfig,
	catalog *Catalog,
	store StateStore,
	client GroupClient,
	builder TaskBuilder,
	logger *slog.Logger,
) *Submitter {
	return &Submitter{
		cfg:     cfg,
		catalog: catalog,
		store:   store,
		client:  client,
		builder: builder,
		logger:  logger,
	}
}

// SubmitFile submits one input file and reports whether the file needs
// no further action: submitted, already done, or skipped. Validation
// failures propagate so the caller aborts instead of looping forever on
// a structurally broken file; every other error is logged and reported
// as incomplete, leaving recovery to the caller's retry loop.
func (s *Submitter) SubmitFile(ctx context.Context, path string) (bool, error) {
	done, err := s.submitFile(ctx, path)
	if err != nil {
		if IsValidationError(err) {
			return false, err
		}
		s.logger.Error("failed to submit file, will retry",
			"file", path,
			"error", err)
		return false, nil
	}
	return done, nil
}

func (s *Submitter) submitFile(ctx context.Context, path string) (bool, error) {
	input, err := s.catalog.ValidateFile(path)
	if err != nil {
		if IsNonRetryableError(err) {
			if !s.cfg.SkipInvalid {
				return false, fmt.Errorf("%w: file %s is not fixable by retry: %v", ErrValidation, path, err)
			}
			s.logger.Warn("skipping invalid file without submission",
				"file", path,
				"error", err)
			return true, nil
		}
		s.logger.Error("file failed validation", "file", path, "error", err)
		return false, err
	}

	if s.cfg.DryRun {
		s.logger.Info("dry run, validated file without submitting", "file", path)
		return true, nil
	}

	mergeKey := s.builder.MergeKeyColumn()
	inputs := make([]RunInput, 0, input.Len())
	keys := make([]string, 0, input.Len())
	for i := 0; i < input.Len(); i++ {
		payload, err := s.builder.BuildInput(input.RowMap(i))
		if err != nil {
			return false, fmt.Errorf("%w: row %d of %s: %v", ErrValidation, i, path, err)
		}
		inputs = append(inputs, payload)
		keys = append(keys, input.Get(i, mergeKey))
	}

	groupID, err := s.client.CreateGroup(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to create task group for %s: %w", path, err)
	}
	runIDs, err := s.client.AddRuns(ctx, groupID, inputs)
	if err != nil {
		return false, fmt.Errorf("failed to add runs to group %s for %s: %w", groupID, path, err)
	}
	// Run ids come back in submission order; the pairing below is the
	// only record correlating rows with runs.
	if len(runIDs) != len(inputs) {
		return false, fmt.Errorf("group %s returned %d run ids for %d payloads", groupID, len(runIDs), len(inputs))
	}

	state := tabular.New(mergeKey, ColRunID, ColTaskGroupID)
	for i, key := range keys {
		state.AppendRow(map[string]string{
			mergeKey:       key,
			ColRunID:       runIDs[i],
			ColTaskGroupID: groupID,
		})
	}
	if err := s.store.WriteStageArtifact(ctx, FileID(path), StageRuns, state); err != nil {
		return false, fmt.Errorf("failed to write run state for %s: %w", path, err)
	}

	s.logger.Info("submitted file",
		"file", path,
		"task_group_id", groupID,
		"runs", len(runIDs))
	return true, nil
}
