package nn

import (
	"math/rand"
	"sync"

	"github.com/YuminosukeSato/dermnet/core/parallel"
	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Conv2D is a stride-1 valid-padding 2-D convolution over HWC samples.
// Samples of a batch are processed in parallel.
type Conv2D struct {
	Filters    int
	Kernel     int
	Activation string

	In, Out Shape
	W       *Param // (Kernel·Kernel·In.C) × Filters
	B       *Param // Filters

	cols []*mat.Dense
	y    *mat.Dense
}

// NewConv2D creates a square-kernel convolution.
func NewConv2D(filters, kernel int, activation string) *Conv2D {
	return &Conv2D{Filters: filters, Kernel: kernel, Activation: activation}
}

func (c *Conv2D) Kind() string { return "conv2d" }

func (c *Conv2D) Init(in Shape, rng *rand.Rand) (Shape, error) {
	if c.Filters <= 0 || c.Kernel <= 0 {
		return Shape{}, errors.NewValidationError("conv2d", "filters and kernel must be positive", []int{c.Filters, c.Kernel})
	}
	if in.H < c.Kernel || in.W < c.Kernel {
		return Shape{}, errors.NewValidationError("conv2d.input", "smaller than the kernel", in.Dims())
	}
	c.In = in
	c.Out = Shape{H: in.H - c.Kernel + 1, W: in.W - c.Kernel + 1, C: c.Filters}
	k := c.Kernel * c.Kernel * in.C
	c.W = newParam("kernel", true, c.Kernel, c.Kernel, in.C, c.Filters)
	c.W.glorotUniform(rng, k, c.Kernel*c.Kernel*c.Filters)
	c.B = newParam("bias", true, c.Filters)
	return c.Out, nil
}

func (c *Conv2D) patch() int { return c.Kernel * c.Kernel * c.In.C }

func (c *Conv2D) Forward(x *mat.Dense, training bool) *mat.Dense {
	n, _ := x.Dims()
	outHW := c.Out.H * c.Out.W
	w := mat.NewDense(c.patch(), c.Filters, c.W.Value)
	y := mat.NewDense(n, c.Out.Size(), nil)
	if training {
		c.cols = make([]*mat.Dense, n)
	}

	parallel.Parallelize(n, func(start, end int) {
		for i := start; i < end; i++ {
			col := c.im2col(x.RawRowView(i))
			o := mat.NewDense(outHW, c.Filters, y.RawRowView(i))
			o.Mul(col, w)
			if training {
				c.cols[i] = col
			}
		}
	})
	addBias(y, c.B.Value)
	if c.Activation == ReLU {
		relu(y.RawMatrix().Data)
	}
	if training {
		c.y = y
	}
	return y
}

func (c *Conv2D) Backward(dy *mat.Dense) *mat.Dense {
	g := dy
	if c.Activation == ReLU {
		g = reluGrad(dy, c.y)
	}
	n, _ := g.Dims()
	outHW := c.Out.H * c.Out.W
	k := c.patch()
	w := mat.NewDense(k, c.Filters, c.W.Value)
	dx := mat.NewDense(n, c.In.Size(), nil)

	var mu sync.Mutex
	dw := mat.NewDense(k, c.Filters, nil)
	db := make([]float64, c.Filters)

	parallel.Parallelize(n, func(start, end int) {
		localW := mat.NewDense(k, c.Filters, nil)
		localB := make([]float64, c.Filters)
		var tmp mat.Dense
		dcol := mat.NewDense(outHW, k, nil)
		for i := start; i < end; i++ {
			gi := mat.NewDense(outHW, c.Filters, g.RawRowView(i))
			tmp.Mul(c.cols[i].T(), gi)
			localW.Add(localW, &tmp)
			for j, v := range g.RawRowView(i) {
				localB[j%c.Filters] += v
			}
			dcol.Mul(gi, w.T())
			c.col2im(dcol, dx.RawRowView(i))
		}
		mu.Lock()
		dw.Add(dw, localW)
		for j, v := range localB {
			db[j] += v
		}
		mu.Unlock()
	})

	copy(c.W.Grad(), dw.RawMatrix().Data)
	copy(c.B.Grad(), db)
	return dx
}

// im2col lays out every kernel window of one sample as a row.
func (c *Conv2D) im2col(in []float64) *mat.Dense {
	k, kc := c.patch(), c.Kernel*c.In.C
	col := make([]float64, c.Out.H*c.Out.W*k)
	for oy := 0; oy < c.Out.H; oy++ {
		for ox := 0; ox < c.Out.W; ox++ {
			row := (oy*c.Out.W + ox) * k
			for ky := 0; ky < c.Kernel; ky++ {
				src := ((oy+ky)*c.In.W + ox) * c.In.C
				copy(col[row+ky*kc:row+(ky+1)*kc], in[src:src+kc])
			}
		}
	}
	return mat.NewDense(c.Out.H*c.Out.W, k, col)
}

// col2im accumulates window gradients back into the sample gradient dx.
func (c *Conv2D) col2im(dcol *mat.Dense, dx []float64) {
	kc := c.Kernel * c.In.C
	for oy := 0; oy < c.Out.H; oy++ {
		for ox := 0; ox < c.Out.W; ox++ {
			row := dcol.RawRowView(oy*c.Out.W + ox)
			for ky := 0; ky < c.Kernel; ky++ {
				dst := dx[((oy+ky)*c.In.W+ox)*c.In.C:]
				for j, v := range row[ky*kc : (ky+1)*kc] {
					dst[j] += v
				}
			}
		}
	}
}

func (c *Conv2D) Params() []*Param { return []*Param{c.W, c.B} }

func (c *Conv2D) OutputShape() Shape { return c.Out }

func (c *Conv2D) Spec() LayerSpec {
	return LayerSpec{Kind: c.Kind(), Filters: c.Filters, Kernel: c.Kernel, Activation: c.Activation}
}
