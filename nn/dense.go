package nn

import (
	"math"
	"math/rand"

	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Dense is a fully connected layer y = act(x·W + b) with an optional
// L1/L2 kernel penalty.
type Dense struct {
	Units      int
	Activation string
	L1, L2     float64

	In  int
	Out Shape
	W   *Param // In × Units
	B   *Param // Units

	x, y *mat.Dense
}

// NewDense creates a Dense layer.
func NewDense(units int, activation string) *Dense {
	return &Dense{Units: units, Activation: activation}
}

// WithL1L2 sets the kernel penalty l1·Σ|w| + l2·Σw².
func (d *Dense) WithL1L2(l1, l2 float64) *Dense {
	d.L1, d.L2 = l1, l2
	return d
}

func (d *Dense) Kind() string { return "dense" }

func (d *Dense) Init(in Shape, rng *rand.Rand) (Shape, error) {
	if in.H != 1 || in.W != 1 {
		return Shape{}, errors.NewValidationError("dense.input", "spatial input must be flattened first", in.Dims())
	}
	if d.Units <= 0 {
		return Shape{}, errors.NewValidationError("dense.units", "must be positive", d.Units)
	}
	d.In = in.C
	d.W = newParam("kernel", true, d.In, d.Units)
	d.W.glorotUniform(rng, d.In, d.Units)
	d.B = newParam("bias", true, d.Units)
	d.Out = Shape{H: 1, W: 1, C: d.Units}
	return d.Out, nil
}

func (d *Dense) Forward(x *mat.Dense, training bool) *mat.Dense {
	n, _ := x.Dims()
	w := mat.NewDense(d.In, d.Units, d.W.Value)
	y := mat.NewDense(n, d.Units, nil)
	y.Mul(x, w)
	addBias(y, d.B.Value)
	if d.Activation == ReLU {
		relu(y.RawMatrix().Data)
	}
	if training {
		d.x, d.y = x, y
	}
	return y
}

func (d *Dense) Backward(dy *mat.Dense) *mat.Dense {
	g := dy
	if d.Activation == ReLU {
		g = reluGrad(dy, d.y)
	}

	dw := mat.NewDense(d.In, d.Units, d.W.Grad())
	dw.Mul(d.x.T(), g)
	if d.L1 != 0 || d.L2 != 0 {
		grad := d.W.Grad()
		for i, w := range d.W.Value {
			grad[i] += d.L1*sign(w) + 2*d.L2*w
		}
	}

	db := d.B.Grad()
	for j := range db {
		db[j] = 0
	}
	n, _ := g.Dims()
	for i := 0; i < n; i++ {
		for j, v := range g.RawRowView(i) {
			db[j] += v
		}
	}

	w := mat.NewDense(d.In, d.Units, d.W.Value)
	dx := mat.NewDense(n, d.In, nil)
	dx.Mul(g, w.T())
	return dx
}

// Penalty returns l1·Σ|w| + l2·Σw².
func (d *Dense) Penalty() float64 {
	if d.L1 == 0 && d.L2 == 0 {
		return 0
	}
	var p float64
	for _, w := range d.W.Value {
		p += d.L1*math.Abs(w) + d.L2*w*w
	}
	return p
}

func (d *Dense) Params() []*Param { return []*Param{d.W, d.B} }

func (d *Dense) OutputShape() Shape { return d.Out }

func (d *Dense) Spec() LayerSpec {
	return LayerSpec{Kind: d.Kind(), Units: d.Units, Activation: d.Activation, L1: d.L1, L2: d.L2}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
