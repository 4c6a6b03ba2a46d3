package linear

import (
	"math/rand"
	"testing"

	"github.com/YuminosukeSato/dermnet/nn"
	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// clusters returns n rows per class around well separated centers in a
// 2×2×1 image, with one-hot targets.
func clusters(n int, seed int64) (*mat.Dense, *mat.Dense, []int) {
	centers := [][]float64{
		{0.9, 0.1, 0.1, 0.1},
		{0.1, 0.9, 0.1, 0.9},
		{0.1, 0.1, 0.9, 0.5},
	}
	rng := rand.New(rand.NewSource(seed))
	k := len(centers)
	x := mat.NewDense(n*k, 4, nil)
	y := mat.NewDense(n*k, k, nil)
	labels := make([]int, n*k)
	for c, center := range centers {
		for i := 0; i < n; i++ {
			row := c*n + i
			for j, v := range center {
				x.Set(row, j, v+rng.NormFloat64()*0.05)
			}
			y.Set(row, c, 1)
			labels[row] = c
		}
	}
	return x, y, labels
}

func TestSoftmaxRegressionFit(t *testing.T) {
	x, y, labels := clusters(30, 1)
	m := NewSoftmaxRegression(WithMaxIter(500), WithC(100), WithRandomState(3))
	if err := m.Fit(x, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	pred, err := m.Predict(x)
	if err != nil {
		t.Fatal(err)
	}
	correct := 0
	for i, p := range pred {
		if p == labels[i] {
			correct++
		}
	}
	if acc := float64(correct) / float64(len(pred)); acc < 0.95 {
		t.Errorf("training accuracy = %.3f, want >= 0.95", acc)
	}
	if m.NumClasses() != 3 || m.NIter == 0 {
		t.Errorf("classes %d, iterations %d", m.NumClasses(), m.NIter)
	}
}

func TestSoftmaxRegressionDeterministic(t *testing.T) {
	x, y, _ := clusters(10, 2)
	a := NewSoftmaxRegression(WithMaxIter(20), WithRandomState(5))
	b := NewSoftmaxRegression(WithMaxIter(20), WithRandomState(5))
	if err := a.Fit(x, y); err != nil {
		t.Fatal(err)
	}
	if err := b.Fit(x, y); err != nil {
		t.Fatal(err)
	}
	for i := range a.Coef {
		if a.Coef[i] != b.Coef[i] {
			t.Fatalf("coef[%d] differs: %g vs %g", i, a.Coef[i], b.Coef[i])
		}
	}
}

func TestSoftmaxRegressionToNetwork(t *testing.T) {
	x, y, _ := clusters(10, 3)
	m := NewSoftmaxRegression(WithMaxIter(50))
	if err := m.Fit(x, y); err != nil {
		t.Fatal(err)
	}
	net, err := m.ToNetwork("logreg", nn.Shape{H: 2, W: 2, C: 1})
	if err != nil {
		t.Fatalf("ToNetwork: %v", err)
	}
	want, _ := m.PredictProba(x)
	got, err := net.PredictProba(x)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(want, got, 1e-12) {
		t.Error("network probabilities differ from the regression")
	}

	var dimErr *errors.DimensionError
	if _, err := m.ToNetwork("logreg", nn.Shape{H: 3, W: 3, C: 1}); !errors.As(err, &dimErr) {
		t.Errorf("wrong input shape error = %v, want DimensionError", err)
	}
}

func TestSoftmaxRegressionErrors(t *testing.T) {
	m := NewSoftmaxRegression()
	var nf *errors.NotFittedError
	if _, err := m.PredictProba(mat.NewDense(1, 4, nil)); !errors.As(err, &nf) {
		t.Errorf("unfitted PredictProba = %v, want NotFittedError", err)
	}

	x, y, _ := clusters(5, 4)
	tests := []struct {
		name string
		x, y mat.Matrix
	}{
		{"row mismatch", x, mat.NewDense(3, 3, nil)},
		{"single class", x, mat.NewDense(15, 1, nil)},
	}
	for _, tt := range tests {
		if err := m.Fit(tt.x, tt.y); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}

	if err := m.Fit(x, y); err != nil {
		t.Fatal(err)
	}
	var dimErr *errors.DimensionError
	if _, err := m.Predict(mat.NewDense(2, 3, nil)); !errors.As(err, &dimErr) {
		t.Errorf("wrong width = %v, want DimensionError", err)
	}
}

func TestSoftmaxRegressionConvergenceWarning(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	t.Cleanup(func() { errors.SetWarningHandler(nil) })

	x, y, _ := clusters(5, 5)
	m := NewSoftmaxRegression(WithMaxIter(1), WithTol(1e-12))
	if err := m.Fit(x, y); err != nil {
		t.Fatal(err)
	}
	var cw *errors.ConvergenceWarning
	if len(warnings) != 1 || !errors.As(warnings[0], &cw) {
		t.Errorf("warnings = %v, want one ConvergenceWarning", warnings)
	}
}
