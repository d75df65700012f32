package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bulkrun/bulkrun/internal/tabular"
)

// RowLimit is the per-file row ceiling. Oversized inputs must be split
// before they reach the pipeline, so this is a partitioning contract
// with the caller rather than configuration.
const RowLimit = 1000

// InputExtension is the recognized input file extension.
const InputExtension = ".csv"

// Catalog enumerates and validates the input files of one batch run. It
// knows nothing about run state; whether a file has already been
// processed is the StateStore's business.
type Catalog struct {
	inputDir string
	mergeKey string
}

// NewCatalog creates a catalog over inputDir. mergeKeyColumn is the
// column validated for presence and uniqueness in every file.
func NewCatalog(inputDir, mergeKeyColumn string) *Catalog {
	return &Catalog{inputDir: inputDir, mergeKey: mergeKeyColumn}
}

// InputDir returns the directory the catalog scans.
func (c *Catalog) InputDir() string {
	return c.inputDir
}

// FileID derives the state-store file id from an input path: the base
// name without the input extension.
func FileID(path string) string {
	base := filepath.Base(path)
	if strings.HasSuffix(base, RunStateSuffix) {
		return strings.TrimSuffix(base, RunStateSuffix)
	}
	return strings.TrimSuffix(base, InputExtension)
}

// ListFiles returns the eligible input files in lexical order. Files
// carrying the run-state suffix are excluded so previously written
// artifacts sitting next to the inputs are never re-submitted. A
// missing directory or an empty candidate set is fatal
// misconfiguration, not something a retry can fix.
func (c *Catalog) ListFiles() ([]string, error) {
	entries, err := os.ReadDir(c.inputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: directory %s does not exist", ErrValidation, c.inputDir)
		}
		return nil, fmt.Errorf("failed to read input directory %s: %w", c.inputDir, err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, InputExtension) {
			continue
		}
		if strings.HasSuffix(name, RunStateSuffix) {
			continue
		}
		files = append(files, filepath.Join(c.inputDir, name))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no %s files found in %s", ErrValidation, InputExtension, c.inputDir)
	}
	sort.Strings(files)
	return files, nil
}

// ValidateFile checks one input file and returns its parsed rows.
// Structural corruption (unparseable CSV) is ErrNonRetryable; policy
// violations (missing file, row ceiling, merge-key problems) are
// ErrValidation.
func (c *Catalog) ValidateFile(path string) (*tabular.Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: file %s does not exist", ErrValidation, path)
	}

	t, err := tabular.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNonRetryable, err)
	}
	if t.Len() > RowLimit {
		return nil, fmt.Errorf("%w: file %s has more than %d rows (len=%d)", ErrValidation, path, RowLimit, t.Len())
	}
	if t.ColumnIndex(c.mergeKey) < 0 {
		return nil, fmt.Errorf("%w: file %s is missing merge key column %q", ErrValidation, path, c.mergeKey)
	}

	seen := make(map[string]bool, t.Len())
	for i := 0; i < t.Len(); i++ {
		key := t.Get(i, c.mergeKey)
		if seen[key] {
			return nil, fmt.Errorf("%w: file %s has duplicate merge key %q", ErrValidation, path, key)
		}
		seen[key] = true
	}
	return t, nil
}
