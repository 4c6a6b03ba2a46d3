package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Default batch-normalization constants.
const (
	DefaultMomentum = 0.99
	DefaultEpsilon  = 1e-3
)

// BatchNorm normalizes each channel over the batch and spatial positions,
// then applies a learned scale and shift. Inference uses moving statistics.
type BatchNorm struct {
	Momentum float64
	Epsilon  float64

	Out        Shape
	Gamma      *Param
	Beta       *Param
	MovingMean *Param
	MovingVar  *Param

	xhat   *mat.Dense
	invStd []float64
}

// NewBatchNorm creates a BatchNorm layer with the default constants.
func NewBatchNorm() *BatchNorm {
	return &BatchNorm{Momentum: DefaultMomentum, Epsilon: DefaultEpsilon}
}

func (b *BatchNorm) Kind() string { return "batchnorm" }

func (b *BatchNorm) Init(in Shape, _ *rand.Rand) (Shape, error) {
	b.Out = in
	b.Gamma = newParam("gamma", true, in.C)
	b.Gamma.fill(1)
	b.Beta = newParam("beta", true, in.C)
	b.MovingMean = newParam("moving_mean", false, in.C)
	b.MovingVar = newParam("moving_variance", false, in.C)
	b.MovingVar.fill(1)
	return in, nil
}

func (b *BatchNorm) Forward(x *mat.Dense, training bool) *mat.Dense {
	n, f := x.Dims()
	C := b.Out.C
	mean := b.MovingMean.Value
	variance := b.MovingVar.Value

	if training {
		m := float64(n * (f / C))
		mean = make([]float64, C)
		variance = make([]float64, C)
		for i := 0; i < n; i++ {
			for j, v := range x.RawRowView(i) {
				mean[j%C] += v
			}
		}
		for c := range mean {
			mean[c] /= m
		}
		for i := 0; i < n; i++ {
			for j, v := range x.RawRowView(i) {
				d := v - mean[j%C]
				variance[j%C] += d * d
			}
		}
		for c := range variance {
			variance[c] /= m
			b.MovingMean.Value[c] = b.Momentum*b.MovingMean.Value[c] + (1-b.Momentum)*mean[c]
			b.MovingVar.Value[c] = b.Momentum*b.MovingVar.Value[c] + (1-b.Momentum)*variance[c]
		}
	}

	invStd := make([]float64, C)
	for c := range invStd {
		invStd[c] = 1 / math.Sqrt(variance[c]+b.Epsilon)
	}
	xhat := mat.NewDense(n, f, nil)
	y := mat.NewDense(n, f, nil)
	for i := 0; i < n; i++ {
		src, xh, dst := x.RawRowView(i), xhat.RawRowView(i), y.RawRowView(i)
		for j, v := range src {
			c := j % C
			xh[j] = (v - mean[c]) * invStd[c]
			dst[j] = b.Gamma.Value[c]*xh[j] + b.Beta.Value[c]
		}
	}
	if training {
		b.xhat, b.invStd = xhat, invStd
	}
	return y
}

func (b *BatchNorm) Backward(dy *mat.Dense) *mat.Dense {
	n, f := dy.Dims()
	C := b.Out.C
	m := float64(n * (f / C))

	dgamma := b.Gamma.Grad()
	dbeta := b.Beta.Grad()
	for c := 0; c < C; c++ {
		dgamma[c], dbeta[c] = 0, 0
	}
	for i := 0; i < n; i++ {
		g, xh := dy.RawRowView(i), b.xhat.RawRowView(i)
		for j, v := range g {
			dgamma[j%C] += v * xh[j]
			dbeta[j%C] += v
		}
	}

	dx := mat.NewDense(n, f, nil)
	for i := 0; i < n; i++ {
		g, xh, d := dy.RawRowView(i), b.xhat.RawRowView(i), dx.RawRowView(i)
		for j, v := range g {
			c := j % C
			d[j] = b.Gamma.Value[c] * b.invStd[c] / m * (m*v - dbeta[c] - xh[j]*dgamma[c])
		}
	}
	return dx
}

func (b *BatchNorm) Params() []*Param {
	return []*Param{b.Gamma, b.Beta, b.MovingMean, b.MovingVar}
}

func (b *BatchNorm) OutputShape() Shape { return b.Out }

func (b *BatchNorm) Spec() LayerSpec {
	return LayerSpec{Kind: b.Kind(), Momentum: b.Momentum, Epsilon: b.Epsilon}
}
