package dataset

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var ErrEmptyTable = errors.New("dataset: table has no rows or no columns")

// Table is a numeric feature matrix with named columns.
type Table struct {
	columns []string
	data    *mat.Dense
}

// NewTable builds a table from row-major values. The slice is copied.
func NewTable(columns []string, rows [][]float64) (*Table, error) {
	if len(rows) == 0 || len(columns) == 0 {
		return nil, ErrEmptyTable
	}
	flat := make([]float64, 0, len(rows)*len(columns))
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("dataset: row %d has %d values, want %d", i, len(r), len(columns))
		}
		flat = append(flat, r...)
	}
	return &Table{
		columns: append([]string(nil), columns...),
		data:    mat.NewDense(len(rows), len(columns), flat),
	}, nil
}

// FromColumns builds a table from column-major values.
func FromColumns(columns []string, cols [][]float64) (*Table, error) {
	if len(cols) != len(columns) || len(cols) == 0 || len(cols[0]) == 0 {
		return nil, ErrEmptyTable
	}
	n := len(cols[0])
	d := mat.NewDense(n, len(cols), nil)
	for j, c := range cols {
		if len(c) != n {
			return nil, fmt.Errorf("dataset: column %q has %d values, want %d", columns[j], len(c), n)
		}
		d.SetCol(j, c)
	}
	return &Table{columns: append([]string(nil), columns...), data: d}, nil
}

func (t *Table) Dims() (rows, cols int) { return t.data.Dims() }

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string { return append([]string(nil), t.columns...) }

func (t *Table) At(i, j int) float64 { return t.data.At(i, j) }

func (t *Table) Set(i, j int, v float64) { t.data.Set(i, j, v) }

func (t *Table) Row(i int) []float64 { return mat.Row(nil, i, t.data) }

func (t *Table) Col(j int) []float64 { return mat.Col(nil, j, t.data) }

// Rows returns a row-major copy of the values.
func (t *Table) Rows() [][]float64 {
	r, _ := t.data.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = t.Row(i)
	}
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	return &Table{columns: t.Columns(), data: mat.DenseCopyOf(t.data)}
}

// Bounds returns the minimum and maximum over every cell.
func (t *Table) Bounds() (lo, hi float64) {
	return mat.Min(t.data), mat.Max(t.data)
}

// SelectRows returns a new table holding the given rows in order.
func (t *Table) SelectRows(idx []int) (*Table, error) {
	if len(idx) == 0 {
		return nil, ErrEmptyTable
	}
	_, c := t.data.Dims()
	d := mat.NewDense(len(idx), c, nil)
	for k, i := range idx {
		d.SetRow(k, t.Row(i))
	}
	return &Table{columns: t.Columns(), data: d}, nil
}

// Equal reports whether both tables have the same columns and values.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if len(t.columns) != len(o.columns) {
		return false
	}
	for i := range t.columns {
		if t.columns[i] != o.columns[i] {
			return false
		}
	}
	return mat.Equal(t.data, o.data)
}

// Labels is the ground-truth class per row.
type Labels []string

func (l Labels) Clone() Labels { return append(Labels(nil), l...) }

func (l Labels) Select(idx []int) Labels {
	out := make(Labels, len(idx))
	for k, i := range idx {
		out[k] = l[i]
	}
	return out
}

func (l Labels) Equal(o Labels) bool {
	if len(l) != len(o) {
		return false
	}
	for i := range l {
		if l[i] != o[i] {
			return false
		}
	}
	return true
}
