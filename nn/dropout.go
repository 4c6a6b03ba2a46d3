package nn

import (
	"math/rand"

	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Dropout zeroes a Rate fraction of activations during training and scales the
// survivors by 1/(1-Rate). It is the identity at inference.
type Dropout struct {
	Rate float64
	Out  Shape

	rng  *rand.Rand
	mask []float64
}

// NewDropout creates a Dropout layer.
func NewDropout(rate float64) *Dropout {
	return &Dropout{Rate: rate}
}

func (d *Dropout) Kind() string { return "dropout" }

func (d *Dropout) Init(in Shape, rng *rand.Rand) (Shape, error) {
	if d.Rate < 0 || d.Rate >= 1 {
		return Shape{}, errors.NewValidationError("dropout.rate", "must be in [0, 1)", d.Rate)
	}
	d.Out = in
	d.rng = rand.New(rand.NewSource(rng.Int63()))
	return in, nil
}

func (d *Dropout) Forward(x *mat.Dense, training bool) *mat.Dense {
	if !training || d.Rate == 0 {
		d.mask = nil
		return x
	}
	if d.rng == nil {
		d.rng = rand.New(rand.NewSource(1))
	}
	n, f := x.Dims()
	scale := 1 / (1 - d.Rate)
	mask := make([]float64, n*f)
	y := mat.NewDense(n, f, nil)
	for i := 0; i < n; i++ {
		src, dst := x.RawRowView(i), y.RawRowView(i)
		for j, v := range src {
			if d.rng.Float64() >= d.Rate {
				mask[i*f+j] = scale
				dst[j] = v * scale
			}
		}
	}
	d.mask = mask
	return y
}

func (d *Dropout) Backward(dy *mat.Dense) *mat.Dense {
	if d.mask == nil {
		return dy
	}
	n, f := dy.Dims()
	dx := mat.NewDense(n, f, nil)
	for i := 0; i < n; i++ {
		g, out := dy.RawRowView(i), dx.RawRowView(i)
		for j, v := range g {
			out[j] = v * d.mask[i*f+j]
		}
	}
	return dx
}

func (d *Dropout) Params() []*Param { return nil }

func (d *Dropout) OutputShape() Shape { return d.Out }

func (d *Dropout) Spec() LayerSpec {
	return LayerSpec{Kind: d.Kind(), Rate: d.Rate}
}

// Flatten collapses a spatial shape to a vector. Rows are already stored
// flat, so the data passes through unchanged.
type Flatten struct {
	In, Out Shape
}

// NewFlatten creates a Flatten layer.
func NewFlatten() *Flatten { return &Flatten{} }

func (l *Flatten) Kind() string { return "flatten" }

func (l *Flatten) Init(in Shape, _ *rand.Rand) (Shape, error) {
	l.In = in
	l.Out = Shape{H: 1, W: 1, C: in.Size()}
	return l.Out, nil
}

func (l *Flatten) Forward(x *mat.Dense, _ bool) *mat.Dense { return x }

func (l *Flatten) Backward(dy *mat.Dense) *mat.Dense { return dy }

func (l *Flatten) Params() []*Param { return nil }

func (l *Flatten) OutputShape() Shape { return l.Out }

func (l *Flatten) Spec() LayerSpec { return LayerSpec{Kind: l.Kind()} }
