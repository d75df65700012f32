package batch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bulkrun/bulkrun/internal/tabular"
)

// Merger left-joins fetched results back onto the original input rows
// and writes the single consolidated artifact. It makes no remote calls
// and always re-derives its output from the input files and results
// artifacts, so re-running it is free.
type Merger struct {
	catalog *Catalog
	store   StateStore
	builder TaskBuilder
	logger  *slog.Logger
}

// NewMerger creates a merge stage with explicit dependencies.
func NewMerger(catalog *Catalog, store StateStore, builder TaskBuilder, logger *slog.Logger) *Merger {
	return &Merger{catalog: catalog, store: store, builder: builder, logger: logger}
}

// Merge joins every fetched input file with its results artifact on the
// merge key and writes the concatenation under MergedFileID. Input rows
// without a matching result keep empty output fields; files not yet
// fetched are skipped with a log line and simply do not appear in the
// merged output.
func (m *Merger) Merge(ctx context.Context) error {
	files, err := m.catalog.ListFiles()
	if err != nil {
		return err
	}

	mergeKey := m.builder.MergeKeyColumn()
	var frames []*tabular.Table
	for _, path := range files {
		fileID := FileID(path)
		fetched, err := m.store.IsStageComplete(ctx, fileID, StageResults)
		if err != nil {
			return err
		}
		if !fetched {
			m.logger.Info("results not fetched, skipping for merge", "file", path)
			continue
		}

		results, err := m.store.ReadStageArtifact(ctx, fileID, StageResults)
		if err != nil {
			return fmt.Errorf("failed to read results for %s: %w", path, err)
		}
		input, err := tabular.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read input file %s: %w", path, err)
		}
		joined, err := tabular.LeftJoin(input, results, mergeKey)
		if err != nil {
			return fmt.Errorf("failed to join results for %s: %w", path, err)
		}
		frames = append(frames, joined)
	}

	if len(frames) == 0 {
		m.logger.Warn("no fetched files to merge")
		return nil
	}

	merged := tabular.Concat(frames...)
	if err := m.store.WriteStageArtifact(ctx, MergedFileID, StageResults, merged); err != nil {
		return fmt.Errorf("failed to write merged artifact: %w", err)
	}
	m.logger.Info("merged results", "files", len(frames), "rows", merged.Len())
	return nil
}
