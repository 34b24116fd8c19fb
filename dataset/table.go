// Package dataset loads tabular student records from CSV or XLSX files and
// audits them before modeling. Cells are kept as strings until the pipeline
// decides how each column is repaired and encoded.
package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/edustats/dropout/pkg/errors"
)

// Table is an in-memory tabular dataset: a header and row-major string cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int { return len(t.Rows) }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.Columns) }

// ColumnIndex returns the index of a named column. Unknown names return a
// ValueError listing the available columns, mirroring the original pandas
// utility's ValueError.
func (t *Table) ColumnIndex(name string) (int, error) {
	for i, c := range t.Columns {
		if c == name {
			return i, nil
		}
	}
	return 0, errors.NewValueError("ColumnIndex",
		fmt.Sprintf("column '%s' does not exist. Available columns: %v", name, t.Columns))
}

// Column returns the cells of a named column.
func (t *Table) Column(name string) ([]string, error) {
	idx, err := t.ColumnIndex(name)
	if err != nil {
		return nil, err
	}
	col := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		col[i] = row[idx]
	}
	return col, nil
}

// Drop returns a copy of the table without the named columns. Unknown names
// are an error so config typos surface early.
func (t *Table) Drop(names ...string) (*Table, error) {
	dropIdx := make(map[int]bool, len(names))
	for _, name := range names {
		idx, err := t.ColumnIndex(name)
		if err != nil {
			return nil, err
		}
		dropIdx[idx] = true
	}

	out := &Table{}
	for i, c := range t.Columns {
		if !dropIdx[i] {
			out.Columns = append(out.Columns, c)
		}
	}
	for _, row := range t.Rows {
		newRow := make([]string, 0, len(out.Columns))
		for i, cell := range row {
			if !dropIdx[i] {
				newRow = append(newRow, cell)
			}
		}
		out.Rows = append(out.Rows, newRow)
	}
	return out, nil
}

// Select returns a copy of the table containing only the named columns, in
// the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	idxs := make([]int, len(names))
	for i, name := range names {
		idx, err := t.ColumnIndex(name)
		if err != nil {
			return nil, err
		}
		idxs[i] = idx
	}

	out := &Table{Columns: append([]string(nil), names...)}
	for _, row := range t.Rows {
		newRow := make([]string, len(idxs))
		for i, idx := range idxs {
			newRow[i] = row[idx]
		}
		out.Rows = append(out.Rows, newRow)
	}
	return out, nil
}

// SetColumn replaces the cells of a named column.
func (t *Table) SetColumn(name string, cells []string) error {
	idx, err := t.ColumnIndex(name)
	if err != nil {
		return err
	}
	if len(cells) != len(t.Rows) {
		return errors.NewDimensionError("SetColumn", len(t.Rows), len(cells), 0)
	}
	for i := range t.Rows {
		t.Rows[i][idx] = cells[i]
	}
	return nil
}

// IsMissing reports whether a cell holds one of the recognized missing-value
// tokens: the empty string, NA, N/A, NaN, null (case-insensitive).
func IsMissing(cell string) bool {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "", "na", "n/a", "nan", "null":
		return true
	}
	return false
}

// ParseCell parses a cell as a float after trimming whitespace.
func ParseCell(cell string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	return v, err == nil
}

// Matrix materializes the named columns into a dense matrix. Missing or
// non-numeric cells are an error; the pipeline is expected to impute and
// encode first.
func (t *Table) Matrix(names []string) (*mat.Dense, error) {
	if len(t.Rows) == 0 {
		return nil, errors.ErrEmptyData
	}
	idxs := make([]int, len(names))
	for i, name := range names {
		idx, err := t.ColumnIndex(name)
		if err != nil {
			return nil, err
		}
		idxs[i] = idx
	}

	out := mat.NewDense(len(t.Rows), len(names), nil)
	for i, row := range t.Rows {
		for j, idx := range idxs {
			v, ok := ParseCell(row[idx])
			if !ok {
				return nil, errors.NewValueError("Matrix",
					fmt.Sprintf("row %d, column '%s': cell %q is not numeric", i, names[j], row[idx]))
			}
			out.Set(i, j, v)
		}
	}
	return out, nil
}
