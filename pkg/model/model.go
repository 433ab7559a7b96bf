package model

import "errors"

// ErrNotFitted is returned when a model is used before Fit.
var ErrNotFitted = errors.New("model: not fitted")

// Classifier is a supervised learner over integer class labels.
type Classifier interface {
	Fit(X [][]float64, y []int) error
	Predict(X [][]float64) []int
}

// ProbabilisticClassifier also exposes per-class probabilities.
type ProbabilisticClassifier interface {
	Classifier
	PredictProba(X [][]float64) [][]float64
}

var (
	_ ProbabilisticClassifier = (*DecisionTreeClassifier)(nil)
	_ ProbabilisticClassifier = (*RandomForest)(nil)
)
