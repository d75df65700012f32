package batch

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// testMergeKey is the merge-key column used by the stub task builder.
const testMergeKey = "part"

// stubBuilder is a minimal TaskBuilder for coordinator tests.
type stubBuilder struct{}

func (stubBuilder) MergeKeyColumn() string { return testMergeKey }

func (stubBuilder) OutputColumns() []string { return []string{"match_1"} }

func (stubBuilder) BuildInput(row map[string]string) (RunInput, error) {
	if row[testMergeKey] == "" {
		return RunInput{}, fmt.Errorf("row has no %s value", testMergeKey)
	}
	return RunInput{
		Input:     map[string]any{testMergeKey: row[testMergeKey]},
		Processor: "core",
	}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// writeInputFile writes a CSV input file and returns its path.
func writeInputFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

// inputWithParts writes an input file with one "part" column and the
// given merge key values.
func inputWithParts(t *testing.T, dir, name string, parts ...string) string {
	t.Helper()
	lines := append([]string{testMergeKey}, parts...)
	return writeInputFile(t, dir, name, lines...)
}
