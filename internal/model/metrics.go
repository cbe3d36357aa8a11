package model

// Accuracy is the share of positions where yPred equals yTrue.
// Empty or mismatched inputs score 0.
func Accuracy(yTrue, yPred []string) float64 {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return 0
	}
	c := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			c++
		}
	}
	return float64(c) / float64(len(yTrue))
}

// Classifier is what the prediction path needs from a fitted model.
type Classifier interface {
	Predict(X [][]float64) ([]string, error)
}

var _ Classifier = (*DecisionTree)(nil)
