// Package tabular provides a minimal in-memory model for CSV data:
// loading, atomic writing, and the left join used to reconcile results
// against input rows.
package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Table holds CSV data as a header plus rows of string cells.
// Cell values are never reinterpreted as other types; empty cells
// stay empty strings.
type Table struct {
	Columns []string
	Rows    [][]string
}

// New creates an empty table with the given columns.
func New(columns ...string) *Table {
	return &Table{Columns: columns}
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column, or -1 if absent.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Get returns the cell at the given row for the named column.
// Missing columns and short rows read as the empty string.
func (t *Table) Get(row int, column string) string {
	i := t.ColumnIndex(column)
	if i < 0 || row < 0 || row >= len(t.Rows) || i >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][i]
}

// AppendRow adds a row built from a column->value map. Columns absent
// from the map are written as empty strings.
func (t *Table) AppendRow(values map[string]string) {
	row := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		row[i] = values[c]
	}
	t.Rows = append(t.Rows, row)
}

// RowMap returns the given row as a column->value map.
func (t *Table) RowMap(row int) map[string]string {
	m := make(map[string]string, len(t.Columns))
	for i, c := range t.Columns {
		if i < len(t.Rows[row]) {
			m[c] = t.Rows[row][i]
		} else {
			m[c] = ""
		}
	}
	return m
}

// ReadFile loads a CSV file into a Table. The first record is taken as
// the header. A file with only a header yields a table with zero rows.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	t, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes CSV bytes into a Table, with the same header handling
// as ReadFile.
func Parse(data []byte) (*Table, error) {
	t, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv data: %w", err)
	}
	return t, nil
}

func decode(r io.Reader) (*Table, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("missing header row")
	}
	return &Table{Columns: records[0], Rows: records[1:]}, nil
}

// Encode serializes the table as CSV bytes, header first.
func (t *Table) Encode() ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(t.Columns); err != nil {
		return nil, err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return nil, err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFileAtomic writes the table as CSV at path via a temp file and
// rename, so a concurrent reader either sees the complete artifact or
// nothing at all.
func WriteFileAtomic(path string, t *Table) error {
	data, err := t.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename %s to %s: %w", tmp, path, err)
	}
	return nil
}

// LeftJoin joins right onto left by the named key column. Every left
// row appears exactly once; right columns other than the key are
// appended, empty when the key has no match. Duplicate keys on the
// right resolve to the first occurrence.
func LeftJoin(left, right *Table, key string) (*Table, error) {
	li := left.ColumnIndex(key)
	if li < 0 {
		return nil, fmt.Errorf("left table has no column %q", key)
	}
	ri := right.ColumnIndex(key)
	if ri < 0 {
		return nil, fmt.Errorf("right table has no column %q", key)
	}

	var rightCols []string
	for _, c := range right.Columns {
		if c != key {
			rightCols = append(rightCols, c)
		}
	}

	byKey := make(map[string]int, right.Len())
	for i := range right.Rows {
		k := right.Get(i, key)
		if _, ok := byKey[k]; !ok {
			byKey[k] = i
		}
	}

	out := &Table{Columns: append(append([]string{}, left.Columns...), rightCols...)}
	for i := range left.Rows {
		row := make([]string, 0, len(out.Columns))
		row = append(row, left.Rows[i]...)
		for len(row) < len(left.Columns) {
			row = append(row, "")
		}
		if j, ok := byKey[left.Get(i, key)]; ok {
			for _, c := range rightCols {
				row = append(row, right.Get(j, c))
			}
		} else {
			for range rightCols {
				row = append(row, "")
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// Concat stacks tables with identical or differing columns into one
// table whose columns are the union in first-seen order. Cells for
// columns a source table lacks are empty.
func Concat(tables ...*Table) *Table {
	out := &Table{}
	seen := make(map[string]bool)
	for _, t := range tables {
		for _, c := range t.Columns {
			if !seen[c] {
				seen[c] = true
				out.Columns = append(out.Columns, c)
			}
		}
	}
	for _, t := range tables {
		for i := range t.Rows {
			out.AppendRow(t.RowMap(i))
		}
	}
	return out
}
