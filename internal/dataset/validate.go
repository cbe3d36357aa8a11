package dataset

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Validate checks column order, completeness and numeric features.
// A nil expected slice skips the column check.
func Validate(d *Dataset, expected []string) error {
	if expected != nil {
		got := d.Columns()
		if !slices.Equal(got, expected) {
			return fmt.Errorf("dataset: columns [%s] do not match expected [%s]",
				strings.Join(got, ", "), strings.Join(expected, ", "))
		}
	}
	r, c := d.Features.Dims()
	if len(d.Labels) != r {
		return fmt.Errorf("dataset: %d labels for %d rows", len(d.Labels), r)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := d.Features.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: row %d column %q", ErrMissingValue, i, d.Features.columns[j])
			}
		}
		if d.Labels[i] == "" {
			return fmt.Errorf("%w: row %d label", ErrMissingValue, i)
		}
	}
	return nil
}
