package nn

import (
	"math"

	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const probFloor = 1e-7

// SoftmaxRows returns the row-wise softmax of logits.
func SoftmaxRows(logits *mat.Dense) *mat.Dense {
	p := mat.DenseCopyOf(logits)
	r, _ := p.Dims()
	for i := 0; i < r; i++ {
		row := p.RawRowView(i)
		errors.Softmax(row, row)
	}
	return p
}

// SoftmaxCrossEntropy returns the mean categorical cross-entropy of
// softmax(logits) against one-hot targets and its gradient with respect to the
// logits, (softmax(logits) - y) / n.
func SoftmaxCrossEntropy(logits, y *mat.Dense) (float64, *mat.Dense, error) {
	n, k := logits.Dims()
	if yr, yc := y.Dims(); yr != n || yc != k {
		return 0, nil, errors.NewDimensionError("SoftmaxCrossEntropy", k, yc, 1)
	}
	p := SoftmaxRows(logits)
	var loss float64
	grad := mat.NewDense(n, k, nil)
	inv := 1 / float64(n)
	for i := 0; i < n; i++ {
		pr, yr, gr := p.RawRowView(i), y.RawRowView(i), grad.RawRowView(i)
		for j := 0; j < k; j++ {
			if yr[j] != 0 {
				loss -= yr[j] * math.Log(math.Max(pr[j], probFloor))
			}
			gr[j] = (pr[j] - yr[j]) * inv
		}
	}
	loss *= inv
	if err := errors.CheckScalar("SoftmaxCrossEntropy", loss, 0); err != nil {
		return 0, nil, err
	}
	return loss, grad, nil
}

func logFloor(p float64) float64 {
	return math.Log(math.Max(p, probFloor))
}
