package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/bulkrun/bulkrun/internal/tabular"
)

// Fetcher retrieves the outputs of finished task groups and persists
// them as results artifacts keyed by the same merge keys the submitter
// recorded.
type Fetcher struct {
	store   StateStore
	client  GroupClient
	builder TaskBuilder
	logger  *slog.Logger
}

// NewFetcher creates a fetch stage with explicit dependencies.
func NewFetcher(store StateStore, client GroupClient, builder TaskBuilder, logger *slog.Logger) *Fetcher {
	return &Fetcher{store: store, client: client, builder: builder, logger: logger}
}

// FetchFile attempts to fetch results for one submitted file and
// reports whether the file's results artifact now exists. A still
// active group or any transient error reports false; the caller's
// polling loop is the retry mechanism.
func (f *Fetcher) FetchFile(ctx context.Context, fileID string) bool {
	done, err := f.fetchFile(ctx, fileID)
	if err != nil {
		f.logger.Error("failed to fetch results, will retry",
			"file_id", fileID,
			"error", err)
		return false
	}
	return done
}

func (f *Fetcher) fetchFile(ctx context.Context, fileID string) (bool, error) {
	state, err := f.store.ReadStageArtifact(ctx, fileID, StageRuns)
	if err != nil {
		return false, fmt.Errorf("failed to read run state: %w", err)
	}

	mergeKey := f.builder.MergeKeyColumn()
	results := tabular.New(append([]string{mergeKey, ColRunID, ColTaskGroupID}, f.builder.OutputColumns()...)...)

	if state.Len() == 0 {
		f.logger.Warn("run state has no runs, recording empty results", "file_id", fileID)
		return true, f.store.WriteStageArtifact(ctx, fileID, StageResults, results)
	}

	// One group per file, so the first row carries the group id.
	groupID := state.Get(0, ColTaskGroupID)
	status, err := f.client.GroupStatus(ctx, groupID)
	if err != nil {
		return false, fmt.Errorf("failed to get status of group %s: %w", groupID, err)
	}
	if status.IsActive {
		f.logger.Info("task group still active, skipping",
			"file_id", fileID,
			"task_group_id", groupID)
		return false, nil
	}

	for i := 0; i < state.Len(); i++ {
		runID := state.Get(i, ColRunID)
		output, err := f.client.RunResult(ctx, runID)
		if err != nil {
			// The group is done, so a missing result means the run
			// failed remotely, not that it is still pending.
			f.logger.Warn("run failed, dropping row",
				"file_id", fileID,
				"run_id", runID,
				"error", err)
			continue
		}
		if !output.IsJSON() {
			f.logger.Warn("run output is not structured JSON, dropping row",
				"file_id", fileID,
				"run_id", runID,
				"output_type", output.Type)
			continue
		}

		row := map[string]string{
			mergeKey:       state.Get(i, mergeKey),
			ColRunID:       runID,
			ColTaskGroupID: groupID,
		}
		for _, col := range f.builder.OutputColumns() {
			row[col] = encodeOutputCell(output.Content[col])
		}
		results.AppendRow(row)
	}

	if err := f.store.WriteStageArtifact(ctx, fileID, StageResults, results); err != nil {
		return false, fmt.Errorf("failed to write results: %w", err)
	}
	f.logger.Info("fetched results",
		"file_id", fileID,
		"task_group_id", groupID,
		"rows", results.Len(),
		"dropped", state.Len()-results.Len())
	return true, nil
}

// FetchAll polls every submitted file until all results artifacts
// exist. A pass walks the run-state artifacts in listing order and
// stops at the first file that is not ready, then sleeps and rescans
// from the top. That spends fewer status calls per pass, at the cost
// that a later group finishing early still waits on the groups before
// it.
func (f *Fetcher) FetchAll(ctx context.Context, interval time.Duration) error {
	for {
		allDone := true
		ids, err := f.store.ListStageArtifacts(ctx, StageRuns)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fetched, err := f.store.IsStageComplete(ctx, id, StageResults)
			if err != nil {
				return err
			}
			if fetched {
				f.logger.Info("results already fetched, skipping", "file_id", id)
				continue
			}
			f.logger.Info("fetching results", "file_id", id)
			if !f.FetchFile(ctx, id) {
				allDone = false
				break
			}
		}
		if allDone {
			return nil
		}
		if err := sleepCtx(ctx, interval); err != nil {
			return err
		}
	}
}

// encodeOutputCell flattens one structured output value into a CSV
// cell: strings pass through, anything else is JSON-encoded, missing
// values become empty cells.
func encodeOutputCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}
