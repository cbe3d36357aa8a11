package dataset

import (
	"fmt"
	"math/rand/v2"
)

// Split shuffles rows and holds out floor(n*testFraction) of them.
// test is nil when the holdout rounds down to zero rows.
func Split(d *Dataset, testFraction float64, src rand.Source) (train, test *Dataset, err error) {
	if testFraction < 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("dataset: test fraction %v outside [0, 1)", testFraction)
	}
	n := d.Len()
	perm := rand.New(src).Perm(n)
	nTest := int(float64(n) * testFraction)
	if nTest == 0 {
		return d, nil, nil
	}
	if nTest == n {
		return nil, nil, fmt.Errorf("dataset: holdout of %d rows leaves nothing to train on", nTest)
	}
	if train, err = d.subset(perm[nTest:]); err != nil {
		return nil, nil, err
	}
	if test, err = d.subset(perm[:nTest]); err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

func (d *Dataset) subset(idx []int) (*Dataset, error) {
	t, err := d.Features.SelectRows(idx)
	if err != nil {
		return nil, err
	}
	return &Dataset{Features: t, Labels: d.Labels.Select(idx), LabelColumn: d.LabelColumn}, nil
}
