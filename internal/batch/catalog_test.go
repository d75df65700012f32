package batch

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_ListFiles(t *testing.T) {
	t.Parallel()

	t.Run("missing directory", func(t *testing.T) {
		t.Parallel()

		catalog := NewCatalog(filepath.Join(t.TempDir(), "absent"), testMergeKey)
		_, err := catalog.ListFiles()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("no eligible files", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeInputFile(t, dir, "notes.txt", "not a csv")
		catalog := NewCatalog(dir, testMergeKey)
		_, err := catalog.ListFiles()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("excludes run state artifacts", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		inputWithParts(t, dir, "b.csv", "B")
		inputWithParts(t, dir, "a.csv", "A")
		writeInputFile(t, dir, "a"+RunStateSuffix, testMergeKey+",run_id,task_group_id", "A,r1,g1")
		writeInputFile(t, dir, "readme.md", "docs")

		catalog := NewCatalog(dir, testMergeKey)
		files, err := catalog.ListFiles()
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(dir, "a.csv"),
			filepath.Join(dir, "b.csv"),
		}, files)
	})
}

func TestCatalog_ValidateFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	catalog := NewCatalog(dir, testMergeKey)

	t.Run("valid file", func(t *testing.T) {
		path := inputWithParts(t, dir, "ok.csv", "A", "B")
		tbl, err := catalog.ValidateFile(path)
		require.NoError(t, err)
		assert.Equal(t, 2, tbl.Len())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := catalog.ValidateFile(filepath.Join(dir, "ghost.csv"))
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("malformed csv", func(t *testing.T) {
		path := writeInputFile(t, dir, "broken.csv", testMergeKey+",name", "A,widget,extra")
		_, err := catalog.ValidateFile(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNonRetryable)
		assert.NotErrorIs(t, err, ErrValidation)
	})

	t.Run("row ceiling", func(t *testing.T) {
		atLimit := makeParts(RowLimit)
		path := inputWithParts(t, dir, "at_limit.csv", atLimit...)
		_, err := catalog.ValidateFile(path)
		assert.NoError(t, err, "a file with exactly %d rows must pass", RowLimit)

		overLimit := makeParts(RowLimit + 1)
		path = inputWithParts(t, dir, "over_limit.csv", overLimit...)
		_, err = catalog.ValidateFile(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrValidation)
		assert.Contains(t, err.Error(), fmt.Sprintf("more than %d rows", RowLimit))
	})

	t.Run("missing merge key column", func(t *testing.T) {
		path := writeInputFile(t, dir, "no_key.csv", "name", "widget")
		_, err := catalog.ValidateFile(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("duplicate merge key", func(t *testing.T) {
		path := inputWithParts(t, dir, "dupes.csv", "A", "B", "A")
		_, err := catalog.ValidateFile(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrValidation)
		assert.Contains(t, err.Error(), "duplicate merge key")
	})
}

func TestFileID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "parts_batch_01", FileID("/in/parts_batch_01.csv"))
	assert.Equal(t, "parts_batch_01", FileID("/out/runs/parts_batch_01"+RunStateSuffix))
}

func makeParts(n int) []string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("P%04d", i)
	}
	return parts
}
