// Package linear provides a multinomial logistic regression baseline for
// flattened image rows.
package linear

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/YuminosukeSato/dermnet/core/model"
	"github.com/YuminosukeSato/dermnet/nn"
	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// SoftmaxRegression is multinomial logistic regression fitted by full-batch
// gradient descent on the softmax cross-entropy with an L2 penalty of
// 1/(2C)·‖W‖². It implements model.Classifier.
type SoftmaxRegression struct {
	model.StateManager

	C            float64
	FitIntercept bool
	MaxIter      int
	Tol          float64
	LearningRate float64
	RandomState  int64

	// Coef is nFeatures × nClasses in row-major order.
	Coef      []float64
	Intercept []float64
	Classes   int
	NIter     int
}

// NewSoftmaxRegression creates an unfitted model.
func NewSoftmaxRegression(opts ...Option) *SoftmaxRegression {
	s := &SoftmaxRegression{
		C:            1.0,
		FitIntercept: true,
		MaxIter:      100,
		Tol:          1e-4,
		LearningRate: 1.0,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fit learns the weights from X (samples × features) and one-hot targets Y
// (samples × classes).
func (s *SoftmaxRegression) Fit(X mat.Matrix, Y mat.Matrix) (err error) {
	defer errors.Recover(&err, "SoftmaxRegression.Fit")

	nSamples, nFeatures := X.Dims()
	yRows, k := Y.Dims()
	switch {
	case nSamples == 0 || nFeatures == 0:
		return errors.NewModelError("SoftmaxRegression.Fit", "empty data", errors.ErrEmptyData)
	case yRows != nSamples:
		return errors.NewDimensionError("SoftmaxRegression.Fit", nSamples, yRows, 0)
	case k < 2:
		return errors.NewValidationError("classes", "need at least two columns of targets", k)
	case s.MaxIter <= 0:
		return errors.NewValidationError("max_iter", "must be positive", s.MaxIter)
	case s.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", s.LearningRate)
	}

	s.Reset()
	s.Classes = k
	s.initializeWeights(nFeatures)

	x := mat.DenseCopyOf(X)
	y := mat.DenseCopyOf(Y)

	// The softmax cross-entropy Hessian is bounded by ½·XᵀX/n, so steps are
	// divided by ½·mean‖x‖².
	var sq float64
	for _, v := range x.RawMatrix().Data {
		sq += v * v
	}
	smooth := math.Max(1, 0.5*sq/float64(nSamples))

	var lambda float64
	if s.C > 0 {
		lambda = 1 / s.C
	}

	w := mat.NewDense(nFeatures, k, s.Coef)
	gradW := mat.NewDense(nFeatures, k, nil)
	gradB := make([]float64, k)
	converged := false
	for iter := 0; iter < s.MaxIter; iter++ {
		p := s.probabilities(x)

		// p ← (p − y)/n
		p.Sub(p, y)
		p.Scale(1/float64(nSamples), p)

		gradW.Mul(x.T(), p)
		for j := range gradB {
			gradB[j] = 0
		}
		for i := 0; i < nSamples; i++ {
			for j, v := range p.RawRowView(i) {
				gradB[j] += v
			}
		}
		if lambda > 0 {
			gradW.Apply(func(i, j int, g float64) float64 {
				return g + lambda*w.At(i, j)
			}, gradW)
		}

		step := s.LearningRate / (1.0 + 0.1*float64(iter)) / smooth
		w.Apply(func(i, j int, v float64) float64 {
			return v - step*gradW.At(i, j)
		}, w)
		var maxGrad float64
		for _, g := range gradW.RawMatrix().Data {
			maxGrad = math.Max(maxGrad, math.Abs(g))
		}
		if s.FitIntercept {
			for j := range s.Intercept {
				s.Intercept[j] -= step * gradB[j]
				maxGrad = math.Max(maxGrad, math.Abs(gradB[j]))
			}
		}
		s.NIter = iter + 1

		if err := errors.CheckNumericalStability("SoftmaxRegression.Fit", s.Coef, iter); err != nil {
			return err
		}
		if maxGrad < s.Tol {
			converged = true
			break
		}
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("SoftmaxRegression", s.NIter,
			fmt.Sprintf("gradient did not fall below tol=%g", s.Tol)))
	}

	s.SetDimensions(nFeatures, nSamples)
	s.SetFitted()
	return nil
}

func (s *SoftmaxRegression) initializeWeights(nFeatures int) {
	rng := rand.New(rand.NewSource(s.RandomState))
	s.Coef = make([]float64, nFeatures*s.Classes)
	for i := range s.Coef {
		s.Coef[i] = rng.NormFloat64() * 0.01
	}
	s.Intercept = make([]float64, s.Classes)
}

func (s *SoftmaxRegression) probabilities(x *mat.Dense) *mat.Dense {
	n, f := x.Dims()
	logits := mat.NewDense(n, s.Classes, nil)
	logits.Mul(x, mat.NewDense(f, s.Classes, s.Coef))
	for i := 0; i < n; i++ {
		row := logits.RawRowView(i)
		for j := range row {
			row[j] += s.Intercept[j]
		}
	}
	return nn.SoftmaxRows(logits)
}

// PredictProba returns class probabilities per row.
func (s *SoftmaxRegression) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if err := s.RequireFitted("SoftmaxRegression", "PredictProba"); err != nil {
		return nil, err
	}
	nFeatures, _ := s.GetDimensions()
	if _, c := X.Dims(); c != nFeatures {
		return nil, errors.NewDimensionError("SoftmaxRegression.PredictProba", nFeatures, c, 1)
	}
	return s.probabilities(mat.DenseCopyOf(X)), nil
}

// Predict returns the most probable class per row.
func (s *SoftmaxRegression) Predict(X mat.Matrix) ([]int, error) {
	proba, err := s.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := proba.Dims()
	out := make([]int, n)
	for i := range out {
		row := proba.RawRowView(i)
		for j, v := range row {
			if v > row[out[i]] {
				out[i] = j
			}
		}
	}
	return out, nil
}

// NumClasses returns the number of fitted classes.
func (s *SoftmaxRegression) NumClasses() int { return s.Classes }

// ToNetwork returns an equivalent Flatten → Dense network for input images of
// the given shape, so the model can be exported like the other architectures.
func (s *SoftmaxRegression) ToNetwork(arch string, input nn.Shape) (*nn.Network, error) {
	if err := s.RequireFitted("SoftmaxRegression", "ToNetwork"); err != nil {
		return nil, err
	}
	nFeatures, _ := s.GetDimensions()
	if input.Size() != nFeatures {
		return nil, errors.NewDimensionError("SoftmaxRegression.ToNetwork", nFeatures, input.Size(), 1)
	}
	specs := []nn.LayerSpec{{Kind: "flatten"}, {Kind: "dense", Units: s.Classes}}
	values := [][]float64{
		append([]float64(nil), s.Coef...),
		append([]float64(nil), s.Intercept...),
	}
	return nn.FromSpecs(arch, input, specs, values)
}

// String returns a short description of the model.
func (s *SoftmaxRegression) String() string {
	return fmt.Sprintf("SoftmaxRegression(C=%g, max_iter=%d, tol=%g)", s.C, s.MaxIter, s.Tol)
}
