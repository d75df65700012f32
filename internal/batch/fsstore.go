package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bulkrun/bulkrun/internal/tabular"
)

// Artifact name suffixes. The run-state suffix doubles as the catalog's
// exclusion marker, so run-state files landing next to input files are
// never themselves treated as input.
const (
	RunStateSuffix = "_tgrp_runs.csv"
	ResultsSuffix  = "_results.csv"
)

// FSStore is the filesystem StateStore: one artifact file per
// (file, stage), named from the input file's base name plus a stage
// suffix, under a runs/ or results/ subdirectory of the output root.
// Path mapping is a pure function of the inputs; stage subdirectories
// are created lazily on first write.
type FSStore struct {
	outputDir string
}

// NewFSStore creates a store rooted at outputDir. The directory itself
// must already exist; stage subdirectories are created on demand.
func NewFSStore(outputDir string) *FSStore {
	return &FSStore{outputDir: outputDir}
}

// StageDir returns the directory that holds the stage's artifacts.
func (s *FSStore) StageDir(stage Stage) string {
	return filepath.Join(s.outputDir, string(stage))
}

// ArtifactPath returns the artifact path for the file and stage.
func (s *FSStore) ArtifactPath(fileID string, stage Stage) string {
	switch stage {
	case StageRuns:
		return filepath.Join(s.StageDir(stage), fileID+RunStateSuffix)
	default:
		return filepath.Join(s.StageDir(stage), fileID+ResultsSuffix)
	}
}

// IsStageComplete reports artifact existence with a single stat call.
func (s *FSStore) IsStageComplete(_ context.Context, fileID string, stage Stage) (bool, error) {
	_, err := os.Stat(s.ArtifactPath(fileID, stage))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat artifact for %s/%s: %w", stage, fileID, err)
}

// WriteStageArtifact writes the artifact via temp file and rename, so
// the artifact path only ever holds a complete file.
func (s *FSStore) WriteStageArtifact(_ context.Context, fileID string, stage Stage, t *tabular.Table) error {
	dir := s.StageDir(stage)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create stage directory %s: %w", dir, err)
	}
	return tabular.WriteFileAtomic(s.ArtifactPath(fileID, stage), t)
}

// ReadStageArtifact loads the artifact for the file and stage.
func (s *FSStore) ReadStageArtifact(_ context.Context, fileID string, stage Stage) (*tabular.Table, error) {
	return tabular.ReadFile(s.ArtifactPath(fileID, stage))
}

// ListStageArtifacts returns file ids for the stage's artifacts in
// lexical name order. A missing stage directory means no artifacts yet,
// not an error.
func (s *FSStore) ListStageArtifacts(_ context.Context, stage Stage) ([]string, error) {
	entries, err := os.ReadDir(s.StageDir(stage))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s artifacts: %w", stage, err)
	}

	suffix := ResultsSuffix
	if stage == StageRuns {
		suffix = RunStateSuffix
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), suffix))
	}
	sort.Strings(ids)
	return ids, nil
}
