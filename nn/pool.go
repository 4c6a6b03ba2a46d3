package nn

import (
	"math"
	"math/rand"

	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// MaxPool2D takes the maximum over non-overlapping Size × Size windows per
// channel. Trailing rows and columns that do not fill a window are dropped.
type MaxPool2D struct {
	Size int

	In, Out Shape

	argmax []int
}

// NewMaxPool2D creates a pooling layer.
func NewMaxPool2D(size int) *MaxPool2D {
	return &MaxPool2D{Size: size}
}

func (p *MaxPool2D) Kind() string { return "maxpool2d" }

func (p *MaxPool2D) Init(in Shape, _ *rand.Rand) (Shape, error) {
	if p.Size <= 0 {
		return Shape{}, errors.NewValidationError("maxpool2d.size", "must be positive", p.Size)
	}
	if in.H < p.Size || in.W < p.Size {
		return Shape{}, errors.NewValidationError("maxpool2d.input", "smaller than the pool window", in.Dims())
	}
	p.In = in
	p.Out = Shape{H: in.H / p.Size, W: in.W / p.Size, C: in.C}
	return p.Out, nil
}

func (p *MaxPool2D) Forward(x *mat.Dense, training bool) *mat.Dense {
	n, _ := x.Dims()
	outSize := p.Out.Size()
	y := mat.NewDense(n, outSize, nil)
	var argmax []int
	if training {
		argmax = make([]int, n*outSize)
	}
	C := p.In.C
	for i := 0; i < n; i++ {
		in, out := x.RawRowView(i), y.RawRowView(i)
		for oy := 0; oy < p.Out.H; oy++ {
			for ox := 0; ox < p.Out.W; ox++ {
				for c := 0; c < C; c++ {
					best, bestIdx := math.Inf(-1), -1
					for ky := 0; ky < p.Size; ky++ {
						for kx := 0; kx < p.Size; kx++ {
							idx := ((oy*p.Size+ky)*p.In.W+ox*p.Size+kx)*C + c
							if in[idx] > best {
								best, bestIdx = in[idx], idx
							}
						}
					}
					o := (oy*p.Out.W+ox)*C + c
					out[o] = best
					if training {
						argmax[i*outSize+o] = bestIdx
					}
				}
			}
		}
	}
	if training {
		p.argmax = argmax
	}
	return y
}

func (p *MaxPool2D) Backward(dy *mat.Dense) *mat.Dense {
	n, outSize := dy.Dims()
	dx := mat.NewDense(n, p.In.Size(), nil)
	for i := 0; i < n; i++ {
		g, d := dy.RawRowView(i), dx.RawRowView(i)
		for o := 0; o < outSize; o++ {
			if idx := p.argmax[i*outSize+o]; idx >= 0 {
				d[idx] += g[o]
			}
		}
	}
	return dx
}

func (p *MaxPool2D) Params() []*Param { return nil }

func (p *MaxPool2D) OutputShape() Shape { return p.Out }

func (p *MaxPool2D) Spec() LayerSpec {
	return LayerSpec{Kind: p.Kind(), Pool: p.Size}
}
