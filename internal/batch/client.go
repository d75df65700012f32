package batch

import "context"

// RunInput is one outbound task payload, built from a single input row.
type RunInput struct {
	// Input carries the row's fields as the task input object.
	Input map[string]any `json:"input"`

	// Processor selects the remote processor that executes the task.
	Processor string `json:"processor"`

	// TaskSpec declares the input and output JSON schemas for the task.
	TaskSpec map[string]any `json:"task_spec,omitempty"`

	// Metadata is free-form correlation data echoed back by the API.
	Metadata map[string]string `json:"metadata,omitempty"`

	// SourcePolicy restricts which domains the task may draw from.
	SourcePolicy map[string]any `json:"source_policy,omitempty"`
}

// GroupStatus is the batch-level state reported by the remote API. The
// coordinator only cares whether the group is still running; all other
// remote states are opaque to it.
type GroupStatus struct {
	IsActive bool
}

// RunOutput is the retrieved result of a single finished run.
type RunOutput struct {
	// Type discriminates the output shape. Only "json" outputs carry a
	// usable Content map; anything else is dropped by the fetch stage.
	Type string

	// Content holds the structured output fields when Type is "json".
	Content map[string]any
}

// IsJSON reports whether the output carries structured JSON content.
func (o *RunOutput) IsJSON() bool {
	return o != nil && o.Type == "json"
}

// GroupClient is the capability contract for the remote task-execution
// API. One group is created per input file; runs are added in bulk and
// their ids come back in submission order, which is what lets the
// submitter correlate merge keys to run ids positionally.
//
// Implementations: parallelapi.Client (HTTP) and MockGroupClient (tests).
type GroupClient interface {
	// CreateGroup creates a new empty task group and returns its id.
	CreateGroup(ctx context.Context) (string, error)

	// AddRuns submits the payloads to the group and returns one run id
	// per payload, in the same order the payloads were given.
	AddRuns(ctx context.Context, groupID string, inputs []RunInput) ([]string, error)

	// GroupStatus reports whether the group still has active runs.
	GroupStatus(ctx context.Context, groupID string) (GroupStatus, error)

	// RunResult retrieves the output of a finished run. It returns an
	// error when the run failed remotely; once the owning group is no
	// longer active, a result fetch error can only mean run failure.
	RunResult(ctx context.Context, runID string) (*RunOutput, error)
}
