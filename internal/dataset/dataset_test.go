package dataset

import (
	"bytes"
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const irisSample = `sepal_length,sepal_width,petal_length,petal_width,species
5.1,3.5,1.4,0.2,setosa
4.9,3.0,1.4,0.2,setosa
7.0,3.2,4.7,1.4,versicolor
6.4,3.2,4.5,1.5,versicolor
6.3,3.3,6.0,2.5,virginica
5.8,2.7,5.1,1.9,virginica
`

func TestReadCSV_IrisColumns(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(irisSample), "")
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if ds.LabelColumn != "species" {
		t.Fatalf("want label column species, got %q", ds.LabelColumn)
	}
	r, c := ds.Features.Dims()
	if r != 6 || c != 4 {
		t.Fatalf("want 6x4 features, got %dx%d", r, c)
	}
	if err := Validate(ds, IrisColumns); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if ds.Labels[2] != "versicolor" {
		t.Fatalf("unexpected label: %q", ds.Labels[2])
	}
	if got := ds.Features.At(4, 2); got != 6.0 {
		t.Fatalf("want petal_length 6.0 at row 4, got %v", got)
	}
}

func TestReadCSV_NamedLabelColumn(t *testing.T) {
	in := "species,a,b\nx,1,2\ny,3,4\n"
	ds, err := ReadCSV(strings.NewReader(in), "species")
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if got := ds.Features.Columns(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected feature columns: %v", got)
	}
	if !ds.Labels.Equal(Labels{"x", "y"}) {
		t.Fatalf("unexpected labels: %v", ds.Labels)
	}
}

func TestReadCSV_Rejects(t *testing.T) {
	cases := map[string]struct {
		in    string
		label string
		want  error
	}{
		"non-numeric feature": {in: "a,b,label\n1,x,p\n2,y,q\n", want: ErrNonNumeric},
		"missing feature":     {in: "a,b,label\n1,NaN,p\n2,3,q\n", want: ErrMissingValue},
		"unknown label":       {in: "a,b,label\n1,2,p\n", label: "species", want: ErrNoColumn},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tc.in), tc.label)
			if !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestValidate_ColumnMismatch(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader("a,b,c,d,label\n1,2,3,4,x\n"), "")
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if err := Validate(ds, IrisColumns); err == nil {
		t.Fatal("expected column mismatch error")
	}
	if err := Validate(ds, nil); err != nil {
		t.Fatalf("Validate without expected columns: %v", err)
	}
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(irisSample), "")
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := Save(path, ds); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte("sepal_length,sepal_width,petal_length,petal_width,species")) {
		t.Fatalf("unexpected header: %q", raw)
	}
	back, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !back.Labels.Equal(ds.Labels) {
		t.Fatalf("labels changed: %v vs %v", back.Labels, ds.Labels)
	}
	r, c := ds.Features.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if d := math.Abs(back.Features.At(i, j) - ds.Features.At(i, j)); d > 1e-6 {
				t.Fatalf("cell (%d,%d) drifted by %v", i, j, d)
			}
		}
	}
}

func TestWriteCSV_KeepsFullPrecision(t *testing.T) {
	rows := [][]float64{{0.123456789, 7.25}, {1.0000001, 2}, {-3.3e-9, 1e21}}
	tbl, err := NewTable([]string{"a", "b"}, rows)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	ds := &Dataset{Features: tbl, Labels: Labels{"x", "y", "z"}, LabelColumn: "label"}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, ds); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if !strings.Contains(buf.String(), "0.123456789,7.25,x") {
		t.Fatalf("values were rounded on write:\n%s", buf.String())
	}
	back, err := ReadCSV(&buf, "label")
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	for i, row := range rows {
		for j, want := range row {
			if got := back.Features.At(i, j); got != want {
				t.Fatalf("cell (%d,%d): got %v want %v", i, j, got, want)
			}
		}
	}
}

func TestSplit(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(irisSample), "")
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	train, test, err := Split(ds, 0.5, rand.NewPCG(1, 2))
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if train.Len() != 3 || test.Len() != 3 {
		t.Fatalf("want 3/3 split, got %d/%d", train.Len(), test.Len())
	}
	seen := map[float64]bool{}
	for _, part := range []*Dataset{train, test} {
		for i := 0; i < part.Len(); i++ {
			seen[part.Features.At(i, 0)*100+part.Features.At(i, 2)] = true
		}
	}
	if len(seen) != 6 {
		t.Fatalf("split lost or duplicated rows: %d distinct", len(seen))
	}

	same, none, err := Split(ds, 0.1, rand.NewPCG(1, 2))
	if err != nil {
		t.Fatalf("Split small: %v", err)
	}
	if same != ds || none != nil {
		t.Fatal("a holdout rounding to zero rows should return the dataset unchanged")
	}

	if _, _, err := Split(ds, 1, rand.NewPCG(1, 2)); err == nil {
		t.Fatal("expected error for test fraction 1")
	}
}

func TestTable_CloneAndBounds(t *testing.T) {
	tbl, err := NewTable([]string{"a", "b"}, [][]float64{{1, -2}, {3.5, 0}})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	lo, hi := tbl.Bounds()
	if lo != -2 || hi != 3.5 {
		t.Fatalf("want bounds [-2, 3.5], got [%v, %v]", lo, hi)
	}
	cp := tbl.Clone()
	cp.Set(0, 0, 99)
	if tbl.At(0, 0) != 1 {
		t.Fatal("Clone shares storage with the original")
	}
	if tbl.Equal(cp) {
		t.Fatal("tables should differ after Set on the clone")
	}
	if _, err := NewTable([]string{"a"}, nil); !errors.Is(err, ErrEmptyTable) {
		t.Fatalf("want ErrEmptyTable, got %v", err)
	}
	if _, err := NewTable([]string{"a", "b"}, [][]float64{{1}}); err == nil {
		t.Fatal("expected ragged row error")
	}
}
