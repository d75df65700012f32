package batch

import (
	"context"

	"github.com/bulkrun/bulkrun/internal/tabular"
)

// Stage identifies one of the two durable handoff points in the
// pipeline. A file's progress through the pipeline is derived entirely
// from which stage artifacts exist for it.
type Stage string

const (
	// StageRuns holds the run-state artifacts written by the submitter.
	StageRuns Stage = "runs"

	// StageResults holds the results artifacts written by the fetcher,
	// plus the final merged artifact.
	StageResults Stage = "results"
)

// Artifact column names shared by the run-state and results artifacts.
// The merge-key column name comes from the TaskBuilder and is prepended
// to these.
const (
	ColRunID       = "run_id"
	ColTaskGroupID = "task_group_id"
)

// MergedFileID is the pseudo file id under which the consolidated
// merged artifact is stored in the results stage.
const MergedFileID = "merged"

// StateStore is the durability layer behind the pipeline's state
// machine. Completion checks are side-effect-free and cheap enough to
// sit inside polling loops; artifact writes are all-or-nothing, so a
// concurrent reader never observes a partially written stage.
//
// Implementations: FSStore (local disk) and postgres.Store.
type StateStore interface {
	// IsStageComplete reports whether the stage's artifact exists for
	// the file. It never mutates state.
	IsStageComplete(ctx context.Context, fileID string, stage Stage) (bool, error)

	// WriteStageArtifact durably records the stage's artifact for the
	// file in a single atomic write, marking the stage complete.
	WriteStageArtifact(ctx context.Context, fileID string, stage Stage, t *tabular.Table) error

	// ReadStageArtifact loads a previously written stage artifact.
	ReadStageArtifact(ctx context.Context, fileID string, stage Stage) (*tabular.Table, error)

	// ListStageArtifacts returns the file ids with a complete artifact
	// for the stage, in stable listing order. The fetch stage's
	// short-circuit heuristic depends on this order being consistent
	// between passes.
	ListStageArtifacts(ctx context.Context, stage Stage) ([]string, error)
}
