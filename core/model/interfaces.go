package model

import (
	"gonum.org/v1/gonum/mat"
)

// Classifier is a trained multi-class model over flattened image rows.
type Classifier interface {
	// PredictProba returns an (n_samples × n_classes) matrix of class probabilities.
	PredictProba(X mat.Matrix) (*mat.Dense, error)

	// Predict returns the arg-max class index per row.
	Predict(X mat.Matrix) ([]int, error)

	// NumClasses is the width of the probability rows.
	NumClasses() int
}

// Summarizer is implemented by models that can describe their layers.
type Summarizer interface {
	Summary() string
	NumParams() int
}
