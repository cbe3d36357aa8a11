package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

var (
	ErrNotFitted     = errors.New("model: tree not fitted")
	ErrFeatureWidth  = errors.New("model: feature width mismatch")
	ErrEmptyTraining = errors.New("model: empty training set")
)

const (
	CriterionGini    = "gini"
	CriterionEntropy = "entropy"
)

// Params are the tree hyperparameters. MaxDepth 0 means unlimited.
// RandomState is recorded with the model; the split search itself is
// deterministic.
type Params struct {
	MaxDepth        int    `json:"max_depth"`
	Criterion       string `json:"criterion"`
	RandomState     int64  `json:"random_state"`
	MinSamplesSplit int    `json:"min_samples_split"`
	MinSamplesLeaf  int    `json:"min_samples_leaf"`
}

func (p Params) withDefaults() Params {
	if p.Criterion == "" {
		p.Criterion = CriterionGini
	}
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}
	return p
}

func (p Params) Validate() error {
	if p.MaxDepth < 0 {
		return fmt.Errorf("model: max_depth %d is negative", p.MaxDepth)
	}
	switch p.Criterion {
	case "", CriterionGini, CriterionEntropy:
		return nil
	default:
		return fmt.Errorf("model: unknown criterion %q", p.Criterion)
	}
}

// Node is a split (Leaf false) or a leaf holding class probabilities.
// Rows with x[Feature] <= Threshold go left.
type Node struct {
	Leaf      bool      `json:"leaf,omitempty"`
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      *Node     `json:"left,omitempty"`
	Right     *Node     `json:"right,omitempty"`
	Samples   int       `json:"samples"`
	Probas    []float64 `json:"probas,omitempty"`
}

// DecisionTree is a CART classifier over string labels.
type DecisionTree struct {
	Params   Params   `json:"params"`
	Features []string `json:"features"`
	Classes  []string `json:"classes"`
	Root     *Node    `json:"root"`
}

// Fit trains a tree on X (n×p) and labels y. features names the p columns.
func Fit(X [][]float64, y []string, features []string, params Params) (*DecisionTree, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(X) == 0 {
		return nil, ErrEmptyTraining
	}
	if len(y) != len(X) {
		return nil, fmt.Errorf("model: %d rows but %d labels", len(X), len(y))
	}
	p := len(features)
	for i := range X {
		if len(X[i]) != p {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrFeatureWidth, i, len(X[i]), p)
		}
	}

	t := &DecisionTree{Params: params.withDefaults(), Features: append([]string(nil), features...)}
	index := map[string]int{}
	yi := make([]int, len(y))
	for i, lab := range y {
		ci, ok := index[lab]
		if !ok {
			ci = len(t.Classes)
			index[lab] = ci
			t.Classes = append(t.Classes, lab)
		}
		yi[i] = ci
	}

	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	b := builder{tree: t, X: X, y: yi, nClasses: len(t.Classes)}
	if t.Params.Criterion == CriterionEntropy {
		b.impurity = entropy
	} else {
		b.impurity = gini
	}
	t.Root = b.build(idx, 0)
	return t, nil
}

// Predict returns the most probable class per row.
func (t *DecisionTree) Predict(X [][]float64) ([]string, error) {
	if t == nil || t.Root == nil {
		return nil, ErrNotFitted
	}
	out := make([]string, len(X))
	for i, x := range X {
		probs, err := t.proba(x)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = t.Classes[argmax(probs)]
	}
	return out, nil
}

// Depth is the number of edges on the longest root-to-leaf path.
func (t *DecisionTree) Depth() int { return depth(t.Root) }

func (t *DecisionTree) MarshalBinary() ([]byte, error) { return json.Marshal(t) }

func (t *DecisionTree) UnmarshalBinary(data []byte) error {
	if err := json.Unmarshal(data, t); err != nil {
		return fmt.Errorf("model: decode tree: %w", err)
	}
	if t.Root == nil || len(t.Classes) == 0 {
		return ErrNotFitted
	}
	return nil
}

func (t *DecisionTree) proba(x []float64) ([]float64, error) {
	if len(x) != len(t.Features) {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrFeatureWidth, len(x), len(t.Features))
	}
	n := t.Root
	for !n.Leaf {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Probas, nil
}

type builder struct {
	tree     *DecisionTree
	X        [][]float64
	y        []int
	nClasses int
	impurity func([]int) float64
}

type split struct {
	gain        float64
	feature     int
	threshold   float64
	left, right []int
}

func (b *builder) build(idx []int, d int) *Node {
	counts := b.counts(idx)
	node := &Node{Samples: len(idx)}
	p := b.tree.Params
	if isPure(counts) || len(idx) < p.MinSamplesSplit || (p.MaxDepth > 0 && d >= p.MaxDepth) {
		return leaf(node, counts)
	}

	parent := b.impurity(counts)
	nFeat := len(b.tree.Features)
	results := make([]split, nFeat)
	var wg sync.WaitGroup
	for f := 0; f < nFeat; f++ {
		wg.Add(1)
		go func(f int) {
			defer wg.Done()
			results[f] = b.bestSplit(idx, f, parent)
		}(f)
	}
	wg.Wait()

	// ties keep the lowest feature index
	best := split{feature: -1}
	for _, r := range results {
		if r.feature >= 0 && r.gain > best.gain {
			best = r
		}
	}
	if best.feature < 0 || best.gain <= 0 {
		return leaf(node, counts)
	}
	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = b.build(best.left, d+1)
	node.Right = b.build(best.right, d+1)
	return node
}

func (b *builder) bestSplit(idx []int, f int, parent float64) split {
	res := split{feature: -1}
	sorted := append([]int(nil), idx...)
	sort.SliceStable(sorted, func(i, j int) bool { return b.X[sorted[i]][f] < b.X[sorted[j]][f] })

	n := len(sorted)
	minLeaf := b.tree.Params.MinSamplesLeaf
	left := make([]int, b.nClasses)
	right := b.counts(sorted)
	for s := 1; s < n; s++ {
		c := b.y[sorted[s-1]]
		left[c]++
		right[c]--
		lo, hi := b.X[sorted[s-1]][f], b.X[sorted[s]][f]
		if lo == hi || s < minLeaf || n-s < minLeaf {
			continue
		}
		w := float64(s)/float64(n)*b.impurity(left) + float64(n-s)/float64(n)*b.impurity(right)
		if gain := parent - w; gain > res.gain {
			res.gain = gain
			res.feature = f
			res.threshold = (lo + hi) / 2
			res.left = append([]int(nil), sorted[:s]...)
			res.right = append([]int(nil), sorted[s:]...)
		}
	}
	return res
}

func (b *builder) counts(idx []int) []int {
	c := make([]int, b.nClasses)
	for _, i := range idx {
		c[b.y[i]]++
	}
	return c
}

func leaf(n *Node, counts []int) *Node {
	n.Leaf = true
	n.Probas = make([]float64, len(counts))
	total := 0
	for _, c := range counts {
		total += c
	}
	for i, c := range counts {
		if total > 0 {
			n.Probas[i] = float64(c) / float64(total)
		}
	}
	return n
}

func gini(counts []int) float64 {
	n := 0.0
	for _, c := range counts {
		n += float64(c)
	}
	if n == 0 {
		return 0
	}
	res := 1.0
	for _, c := range counts {
		p := float64(c) / n
		res -= p * p
	}
	return res
}

func entropy(counts []int) float64 {
	n := 0.0
	for _, c := range counts {
		n += float64(c)
	}
	if n == 0 {
		return 0
	}
	res := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		res -= p * math.Log2(p)
	}
	return res
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func depth(n *Node) int {
	if n == nil || n.Leaf {
		return 0
	}
	return 1 + max(depth(n.Left), depth(n.Right))
}
