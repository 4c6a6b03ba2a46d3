// Package metrics evaluates multi-class classifiers.
package metrics

import (
	"fmt"
	"math"
	"strings"

	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// epsilon keeps log(p) finite for zero probabilities.
const epsilon = 1e-7

// Accuracy returns the fraction of positions where yPred equals yTrue.
func Accuracy(yTrue, yPred []int) (float64, error) {
	n := len(yTrue)
	if n == 0 {
		return 0, errors.NewValueError("Accuracy", "empty labels")
	}
	if len(yPred) != n {
		return 0, errors.NewDimensionError("Accuracy", n, len(yPred), 0)
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// CategoricalAccuracy compares the arg-max of each row of yTrue (one-hot) with
// the arg-max of the same row of proba.
func CategoricalAccuracy(yTrue, proba mat.Matrix) (float64, error) {
	if err := sameShape("CategoricalAccuracy", yTrue, proba); err != nil {
		return 0, err
	}
	return Accuracy(ArgMax(yTrue), ArgMax(proba))
}

// CategoricalCrossEntropy returns the mean of -Σ y·log(p) over rows.
func CategoricalCrossEntropy(yTrue, proba mat.Matrix) (float64, error) {
	if err := sameShape("CategoricalCrossEntropy", yTrue, proba); err != nil {
		return 0, err
	}
	r, c := yTrue.Dims()
	var sum float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			y := yTrue.At(i, j)
			if y == 0 {
				continue
			}
			p := math.Min(math.Max(proba.At(i, j), epsilon), 1-epsilon)
			sum -= y * math.Log(p)
		}
	}
	loss := sum / float64(r)
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return 0, errors.NewNumericalInstabilityError("CategoricalCrossEntropy", []float64{loss}, 0)
	}
	return loss, nil
}

// ArgMax returns the column index of the largest value in each row.
// Ties resolve to the lowest index.
func ArgMax(m mat.Matrix) []int {
	r, c := m.Dims()
	out := make([]int, r)
	for i := 0; i < r; i++ {
		best := 0
		for j := 1; j < c; j++ {
			if m.At(i, j) > m.At(i, best) {
				best = j
			}
		}
		out[i] = best
	}
	return out
}

// ConfusionMatrix counts (true, predicted) pairs. Entry [i][j] is the number of
// samples of class i predicted as class j.
type ConfusionMatrix struct {
	Counts *mat.Dense
	K      int
}

// NewConfusionMatrix builds the k×k confusion matrix for the given labels.
func NewConfusionMatrix(yTrue, yPred []int, k int) (*ConfusionMatrix, error) {
	if k <= 0 {
		return nil, errors.NewValidationError("k", "must be positive", k)
	}
	if len(yTrue) == 0 {
		return nil, errors.NewValueError("ConfusionMatrix", "empty labels")
	}
	if len(yPred) != len(yTrue) {
		return nil, errors.NewDimensionError("ConfusionMatrix", len(yTrue), len(yPred), 0)
	}
	counts := mat.NewDense(k, k, nil)
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t < 0 || t >= k {
			return nil, errors.NewUnknownLabelError(fmt.Sprint(t), nil)
		}
		if p < 0 || p >= k {
			return nil, errors.NewUnknownLabelError(fmt.Sprint(p), nil)
		}
		counts.Set(t, p, counts.At(t, p)+1)
	}
	return &ConfusionMatrix{Counts: counts, K: k}, nil
}

// Accuracy returns trace / total.
func (c *ConfusionMatrix) Accuracy() float64 {
	total := mat.Sum(c.Counts)
	if total == 0 {
		return 0
	}
	return mat.Trace(c.Counts) / total
}

// Recall returns, per class, correct predictions over the class support.
// Classes without support get 0.
func (c *ConfusionMatrix) Recall() []float64 {
	out := make([]float64, c.K)
	for i := 0; i < c.K; i++ {
		support := mat.Sum(c.Counts.RowView(i))
		if support > 0 {
			out[i] = c.Counts.At(i, i) / support
		}
	}
	return out
}

// Precision returns, per class, correct predictions over all predictions of that class.
func (c *ConfusionMatrix) Precision() []float64 {
	out := make([]float64, c.K)
	for j := 0; j < c.K; j++ {
		predicted := mat.Sum(c.Counts.ColView(j))
		if predicted > 0 {
			out[j] = c.Counts.At(j, j) / predicted
		}
	}
	return out
}

// Format renders the matrix with class names on both axes.
func (c *ConfusionMatrix) Format(classes []string) string {
	var b strings.Builder
	name := func(i int) string {
		if i < len(classes) {
			return classes[i]
		}
		return fmt.Sprint(i)
	}
	fmt.Fprintf(&b, "%8s", "")
	for j := 0; j < c.K; j++ {
		fmt.Fprintf(&b, "%8s", name(j))
	}
	b.WriteByte('\n')
	for i := 0; i < c.K; i++ {
		fmt.Fprintf(&b, "%8s", name(i))
		for j := 0; j < c.K; j++ {
			fmt.Fprintf(&b, "%8d", int(c.Counts.At(i, j)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func sameShape(op string, a, b mat.Matrix) error {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ra == 0 || ca == 0 {
		return errors.NewValueError(op, "empty matrix")
	}
	if ra != rb {
		return errors.NewDimensionError(op, ra, rb, 0)
	}
	if ca != cb {
		return errors.NewDimensionError(op, ca, cb, 1)
	}
	return nil
}
