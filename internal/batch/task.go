package batch

// TaskBuilder maps input rows onto remote task payloads for one kind of
// task. The coordinator itself is schema-agnostic: which column
// correlates rows with runs, which output fields come back, and how a
// row becomes a payload all live behind this interface.
type TaskBuilder interface {
	// MergeKeyColumn names the input column whose value correlates a
	// row with its run and its fetched result. Values are assumed
	// unique within a file; the catalog rejects duplicates up front.
	MergeKeyColumn() string

	// OutputColumns names the structured output fields recorded in the
	// results artifact, in column order.
	OutputColumns() []string

	// BuildInput converts one input row into an outbound task payload.
	// A row that cannot produce a payload is a validation failure for
	// the whole file.
	BuildInput(row map[string]string) (RunInput, error)
}
