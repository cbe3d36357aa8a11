package dataset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

var (
	ErrMissingValue = errors.New("dataset: missing value")
	ErrNonNumeric   = errors.New("dataset: non-numeric feature column")
	ErrNoColumn     = errors.New("dataset: column not found")
)

// Iris column names, features first and the label last.
var IrisColumns = []string{"sepal_length", "sepal_width", "petal_length", "petal_width", "species"}

// IrisFeatures are the four measurement columns.
var IrisFeatures = IrisColumns[:4:4]

// Dataset pairs a feature table with its labels.
type Dataset struct {
	Features    *Table
	Labels      Labels
	LabelColumn string
}

func (d *Dataset) Len() int {
	r, _ := d.Features.Dims()
	return r
}

// Columns returns feature columns followed by the label column.
func (d *Dataset) Columns() []string {
	return append(d.Features.Columns(), d.LabelColumn)
}

// ReadCSV parses a headed CSV. An empty labelColumn selects the last column.
// Every other column becomes a numeric feature.
func ReadCSV(r io.Reader, labelColumn string) (*Dataset, error) {
	df := dataframe.ReadCSV(r)
	if df.Err != nil {
		return nil, fmt.Errorf("dataset: read csv: %w", df.Err)
	}
	names := df.Names()
	if len(names) < 2 {
		return nil, fmt.Errorf("dataset: need at least one feature and a label column, got %d columns", len(names))
	}
	if labelColumn == "" {
		labelColumn = names[len(names)-1]
	}
	if !slices.Contains(names, labelColumn) {
		return nil, fmt.Errorf("%w: %q", ErrNoColumn, labelColumn)
	}

	var (
		features []string
		cols     [][]float64
	)
	for _, name := range names {
		if name == labelColumn {
			continue
		}
		s := df.Col(name)
		if t := s.Type(); t != series.Float && t != series.Int {
			return nil, fmt.Errorf("%w: %q is %s", ErrNonNumeric, name, t)
		}
		if i := firstNaN(s); i >= 0 {
			return nil, fmt.Errorf("%w: column %q row %d", ErrMissingValue, name, i)
		}
		features = append(features, name)
		cols = append(cols, s.Float())
	}
	ls := df.Col(labelColumn)
	if i := firstNaN(ls); i >= 0 {
		return nil, fmt.Errorf("%w: label column %q row %d", ErrMissingValue, labelColumn, i)
	}
	tbl, err := FromColumns(features, cols)
	if err != nil {
		return nil, err
	}
	return &Dataset{Features: tbl, Labels: Labels(ls.Records()), LabelColumn: labelColumn}, nil
}

// Load reads a CSV dataset from disk.
func Load(path, labelColumn string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ds, err := ReadCSV(f, labelColumn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// WriteCSV writes features followed by the label column. Features use the
// shortest representation that parses back to the same float64.
func WriteCSV(w io.Writer, d *Dataset) error {
	cols := d.Features.Columns()
	ss := make([]series.Series, 0, len(cols)+1)
	for j, name := range cols {
		ss = append(ss, series.New(formatColumn(d.Features.Col(j)), series.String, name))
	}
	ss = append(ss, series.New([]string(d.Labels), series.String, d.LabelColumn))
	df := dataframe.New(ss...)
	if df.Err != nil {
		return fmt.Errorf("dataset: build frame: %w", df.Err)
	}
	return df.WriteCSV(w)
}

// Save writes the dataset to path, truncating any existing file.
func Save(path string, d *Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, d); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func formatColumn(vals []float64) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}

func firstNaN(s series.Series) int {
	for i, nan := range s.IsNaN() {
		if nan {
			return i
		}
	}
	return -1
}
