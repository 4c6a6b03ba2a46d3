package nn

import (
	"math"

	"github.com/YuminosukeSato/dermnet/pkg/errors"
)

// Adam implements the Adam optimizer with the Keras default constants.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	// ClipNorm, when positive, rescales gradients to this global L2 norm.
	ClipNorm float64

	t int
	m map[*Param][]float64
	v map[*Param][]float64
}

// NewAdam returns Adam with beta1 0.9, beta2 0.999 and epsilon 1e-7.
func NewAdam(learningRate float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-7,
		m:            make(map[*Param][]float64),
		v:            make(map[*Param][]float64),
	}
}

// Step applies one update to every trainable param using its stored gradient.
func (a *Adam) Step(params []*Param) error {
	if a.m == nil {
		a.m = make(map[*Param][]float64)
		a.v = make(map[*Param][]float64)
	}
	trainable := make([]*Param, 0, len(params))
	grads := make([][]float64, 0, len(params))
	for _, p := range params {
		if p.Trainable {
			trainable = append(trainable, p)
			grads = append(grads, p.Grad())
		}
	}
	norm := errors.ClipByGlobalNorm(grads, a.ClipNorm)
	if math.IsNaN(norm) || math.IsInf(norm, 0) {
		return errors.NewNumericalInstabilityError("Adam.Step", []float64{norm}, a.t)
	}

	a.t++
	c1 := 1 - math.Pow(a.Beta1, float64(a.t))
	c2 := 1 - math.Pow(a.Beta2, float64(a.t))
	lr := a.LearningRate * math.Sqrt(c2) / c1
	for _, p := range trainable {
		m, ok := a.m[p]
		if !ok {
			m = make([]float64, p.Size())
			a.m[p] = m
			a.v[p] = make([]float64, p.Size())
		}
		v := a.v[p]
		g := p.Grad()
		for i := range p.Value {
			m[i] = a.Beta1*m[i] + (1-a.Beta1)*g[i]
			v[i] = a.Beta2*v[i] + (1-a.Beta2)*g[i]*g[i]
			p.Value[i] -= lr * m[i] / (math.Sqrt(v[i]) + a.Epsilon)
		}
	}
	return nil
}

// Iterations returns the number of steps taken.
func (a *Adam) Iterations() int { return a.t }
