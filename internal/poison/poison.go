// Package poison corrupts a fraction of feature cells with values drawn from
// the table's overall value range. Labels are never modified.
package poison

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"irisml/internal/dataset"
)

var ErrInvalidFraction = errors.New("poison: fraction must be within [0, 1]")

// Assignment is one cell overwrite.
type Assignment struct {
	Row   int
	Col   int
	Value float64
}

// Poisoner draws corruption plans from a seedable source.
// It holds no state between calls beyond the random source.
type Poisoner struct {
	src rand.Source
}

// New returns a Poisoner reading from src. A nil src is seeded randomly.
func New(src rand.Source) *Poisoner {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Poisoner{src: src}
}

// CellCount is floor(rows*cols*fraction).
func CellCount(rows, cols int, fraction float64) int {
	return int(math.Floor(float64(rows*cols) * fraction))
}

func checkFraction(fraction float64) error {
	if math.IsNaN(fraction) || fraction < 0 || fraction > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidFraction, fraction)
	}
	return nil
}

// Plan draws the overwrites for x without applying them. Row indices, column
// indices and values are drawn as three independent batches, in that order.
// Cells may repeat.
func (p *Poisoner) Plan(x *dataset.Table, fraction float64) ([]Assignment, error) {
	if err := checkFraction(fraction); err != nil {
		return nil, err
	}
	rows, cols := x.Dims()
	n := CellCount(rows, cols, fraction)
	if n == 0 {
		return nil, nil
	}

	lo, hi := x.Bounds()
	rng := rand.New(p.src)
	plan := make([]Assignment, n)
	for i := range plan {
		plan[i].Row = rng.IntN(rows)
	}
	for i := range plan {
		plan[i].Col = rng.IntN(cols)
	}
	values := distuv.Uniform{Min: lo, Max: hi, Src: p.src}
	for i := range plan {
		plan[i].Value = values.Rand()
	}
	return plan, nil
}

// Poison returns a corrupted copy of x and y as given. A zero fraction
// returns x itself.
func (p *Poisoner) Poison(x *dataset.Table, y dataset.Labels, fraction float64) (*dataset.Table, dataset.Labels, error) {
	if err := checkFraction(fraction); err != nil {
		return nil, nil, err
	}
	if fraction == 0 {
		return x, y, nil
	}
	plan, err := p.Plan(x, fraction)
	if err != nil {
		return nil, nil, err
	}
	return Apply(x, plan), y, nil
}

// Apply writes plan into a copy of x. Later assignments to the same cell win.
func Apply(x *dataset.Table, plan []Assignment) *dataset.Table {
	out := x.Clone()
	for _, a := range plan {
		out.Set(a.Row, a.Col, a.Value)
	}
	return out
}
