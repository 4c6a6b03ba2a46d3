package nn

import (
	"math"
	"math/rand"
)

// Shape is the per-sample shape of a layer's input or output.
// Dense activations use H = W = 1 and C = units.
type Shape struct {
	H, W, C int
}

// Size returns H × W × C.
func (s Shape) Size() int {
	return s.H * s.W * s.C
}

// Dims returns the shape as a slice.
func (s Shape) Dims() []int {
	return []int{s.H, s.W, s.C}
}

// Param is a named weight tensor stored flat. Non-trainable params such as
// batch-norm moving statistics are updated by their layer, not the optimizer.
type Param struct {
	Name      string
	Dims      []int
	Value     []float64
	Trainable bool

	grad []float64
}

func newParam(name string, trainable bool, dims ...int) *Param {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return &Param{Name: name, Dims: dims, Value: make([]float64, n), Trainable: trainable}
}

// Size returns the number of elements.
func (p *Param) Size() int {
	return len(p.Value)
}

// Grad returns the gradient buffer, allocating it on first use.
func (p *Param) Grad() []float64 {
	if len(p.grad) != len(p.Value) {
		p.grad = make([]float64, len(p.Value))
	}
	return p.grad
}

func (p *Param) fill(v float64) {
	for i := range p.Value {
		p.Value[i] = v
	}
}

// glorotUniform draws from U(-l, l) with l = sqrt(6 / (fanIn + fanOut)).
func (p *Param) glorotUniform(rng *rand.Rand, fanIn, fanOut int) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range p.Value {
		p.Value[i] = (rng.Float64()*2 - 1) * limit
	}
}
