package preprocessing

import (
	"fmt"

	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// OneHot encodes labels as an (len(labels) × numClasses) indicator matrix.
// Row i has a single 1 in column labels[i].
func OneHot(labels []int, numClasses int) (*mat.Dense, error) {
	if numClasses <= 0 {
		return nil, errors.NewValidationError("numClasses", "must be positive", numClasses)
	}
	if len(labels) == 0 {
		return nil, errors.NewModelError("OneHot", "empty data", errors.ErrEmptyData)
	}
	out := mat.NewDense(len(labels), numClasses, nil)
	for i, l := range labels {
		if l < 0 || l >= numClasses {
			return nil, errors.NewUnknownLabelError(fmt.Sprint(l), labelRange(numClasses))
		}
		out.Set(i, l, 1)
	}
	return out, nil
}

func labelRange(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprint(i)
	}
	return out
}
