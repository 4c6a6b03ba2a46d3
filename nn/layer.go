package nn

import (
	"encoding/gob"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Activation names accepted by Dense and Conv2D.
const (
	Linear = ""
	ReLU   = "relu"
)

// Layer is one stage of a Network.
type Layer interface {
	// Kind is the layer type, e.g. "dense".
	Kind() string

	// Init allocates parameters for the given input shape and returns the output shape.
	Init(in Shape, rng *rand.Rand) (Shape, error)

	// Forward maps a batch (one sample per row) to the layer output.
	Forward(x *mat.Dense, training bool) *mat.Dense

	// Backward takes dLoss/dOutput for the last Forward batch, stores parameter
	// gradients and returns dLoss/dInput.
	Backward(dy *mat.Dense) *mat.Dense

	// Params returns the layer's weights in a fixed order.
	Params() []*Param

	// Spec describes the layer's configuration without its weights.
	Spec() LayerSpec

	// OutputShape is the shape computed by Init.
	OutputShape() Shape
}

// regularized layers add a weight penalty to the loss.
type regularized interface {
	Penalty() float64
}

func init() {
	gob.Register(&Dense{})
	gob.Register(&Conv2D{})
	gob.Register(&MaxPool2D{})
	gob.Register(&BatchNorm{})
	gob.Register(&Dropout{})
	gob.Register(&Flatten{})
}

func relu(v []float64) {
	for i, x := range v {
		if x < 0 {
			v[i] = 0
		}
	}
}

// reluGrad returns dy masked where the activated output y is not positive.
func reluGrad(dy, y *mat.Dense) *mat.Dense {
	g := mat.DenseCopyOf(dy)
	r, c := g.Dims()
	for i := 0; i < r; i++ {
		gr, yr := g.RawRowView(i), y.RawRowView(i)
		for j := 0; j < c; j++ {
			if yr[j] <= 0 {
				gr[j] = 0
			}
		}
	}
	return g
}

func addBias(m *mat.Dense, b []float64) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		for j := range row {
			row[j] += b[j%len(b)]
		}
	}
}
