package tabular

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("header and rows", func(t *testing.T) {
		t.Parallel()

		tbl, err := Parse([]byte("part,name\nA,widget\nB,gadget\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"part", "name"}, tbl.Columns)
		assert.Equal(t, 2, tbl.Len())
		assert.Equal(t, "widget", tbl.Get(0, "name"))
		assert.Equal(t, "B", tbl.Get(1, "part"))
	})

	t.Run("header only", func(t *testing.T) {
		t.Parallel()

		tbl, err := Parse([]byte("part,name\n"))
		require.NoError(t, err)
		assert.Equal(t, 0, tbl.Len())
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()

		_, err := Parse(nil)
		assert.Error(t, err)
	})

	t.Run("ragged rows", func(t *testing.T) {
		t.Parallel()

		_, err := Parse([]byte("part,name\nA,widget,extra\n"))
		assert.Error(t, err)
	})
}

func TestGet_MissingColumnAndRow(t *testing.T) {
	t.Parallel()

	tbl, err := Parse([]byte("part\nA\n"))
	require.NoError(t, err)
	assert.Equal(t, "", tbl.Get(0, "absent"))
	assert.Equal(t, "", tbl.Get(5, "part"))
}

func TestAppendRowAndRowMap(t *testing.T) {
	t.Parallel()

	tbl := New("part", "run_id")
	tbl.AppendRow(map[string]string{"part": "A", "run_id": "r1"})
	tbl.AppendRow(map[string]string{"part": "B"})

	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, map[string]string{"part": "A", "run_id": "r1"}, tbl.RowMap(0))
	assert.Equal(t, "", tbl.Get(1, "run_id"))
}

func TestEncodeRoundTrip(t *testing.T) {
	t.Parallel()

	tbl := New("part", "desc")
	tbl.AppendRow(map[string]string{"part": "A", "desc": "has, comma"})
	tbl.AppendRow(map[string]string{"part": "B", "desc": `has "quotes"`})

	data, err := tbl.Encode()
	require.NoError(t, err)

	decoded, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, tbl.Columns, decoded.Columns)
	assert.Equal(t, tbl.Rows, decoded.Rows)
}

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")

	tbl := New("part")
	tbl.AppendRow(map[string]string{"part": "A"})
	require.NoError(t, WriteFileAtomic(path, tbl))

	read, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, tbl.Rows, read.Rows)

	// No temp files are left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.csv", entries[0].Name())

	// Overwrite replaces the content.
	tbl.AppendRow(map[string]string{"part": "B"})
	require.NoError(t, WriteFileAtomic(path, tbl))
	read, err = ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, read.Len())
}

func TestLeftJoin(t *testing.T) {
	t.Parallel()

	t.Run("matching and missing keys", func(t *testing.T) {
		t.Parallel()

		left, err := Parse([]byte("part,name\nA,widget\nB,gadget\n"))
		require.NoError(t, err)
		right, err := Parse([]byte("part,match_1\nA,x\n"))
		require.NoError(t, err)

		joined, err := LeftJoin(left, right, "part")
		require.NoError(t, err)
		assert.Equal(t, []string{"part", "name", "match_1"}, joined.Columns)
		require.Equal(t, 2, joined.Len())
		assert.Equal(t, "x", joined.Get(0, "match_1"))
		assert.Equal(t, "", joined.Get(1, "match_1"))
		assert.Equal(t, "gadget", joined.Get(1, "name"))
	})

	t.Run("missing key column", func(t *testing.T) {
		t.Parallel()

		left, _ := Parse([]byte("part\nA\n"))
		right, _ := Parse([]byte("other\nA\n"))
		_, err := LeftJoin(left, right, "part")
		assert.Error(t, err)
	})

	t.Run("duplicate right keys resolve to first", func(t *testing.T) {
		t.Parallel()

		left, _ := Parse([]byte("part\nA\n"))
		right, _ := Parse([]byte("part,match_1\nA,first\nA,second\n"))
		joined, err := LeftJoin(left, right, "part")
		require.NoError(t, err)
		assert.Equal(t, "first", joined.Get(0, "match_1"))
	})
}

func TestConcat(t *testing.T) {
	t.Parallel()

	a, _ := Parse([]byte("part,name\nA,widget\n"))
	b, _ := Parse([]byte("part,match_1\nB,x\n"))

	out := Concat(a, b)
	assert.Equal(t, []string{"part", "name", "match_1"}, out.Columns)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, "widget", out.Get(0, "name"))
	assert.Equal(t, "", out.Get(0, "match_1"))
	assert.Equal(t, "x", out.Get(1, "match_1"))
	assert.Equal(t, "", out.Get(1, "name"))
}
