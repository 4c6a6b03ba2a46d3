package dataset

import (
	"math"
	"math/rand"

	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"github.com/YuminosukeSato/dermnet/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// Split is a seeded train/test partition of an assembled dataset.
// TrainIndex and TestIndex are row indices into the tensors it was cut from.
type Split struct {
	XTrain *ImageTensor
	YTrain *mat.Dense
	XTest  *ImageTensor
	YTest  *mat.Dense

	TrainIndex []int
	TestIndex  []int
}

// NumClasses returns the width of the label matrices.
func (s *Split) NumClasses() int {
	_, c := s.YTrain.Dims()
	return c
}

// TrainTestSplit shuffles row indices with seed and holds out
// ceil(count × fraction) rows for testing. Image and label rows stay paired.
func TrainTestSplit(x *ImageTensor, y *mat.Dense, fraction float64, seed int64) (*Split, error) {
	if fraction <= 0 || fraction >= 1 || math.IsNaN(fraction) {
		return nil, errors.NewValidationError("test_fraction", "must be in (0, 1)", fraction)
	}
	n := x.Count()
	if yr, _ := y.Dims(); yr != n {
		return nil, errors.NewDimensionError("TrainTestSplit", n, yr, 0)
	}
	nTest := int(math.Ceil(float64(n) * fraction))
	if nTest >= n || nTest == 0 {
		return nil, errors.NewValidationError("test_fraction", "split leaves an empty partition", n)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	test := append([]int(nil), perm[:nTest]...)
	train := append([]int(nil), perm[nTest:]...)

	s := &Split{
		XTrain:     x.Rows(train),
		YTrain:     selectRows(y, train),
		XTest:      x.Rows(test),
		YTest:      selectRows(y, test),
		TrainIndex: train,
		TestIndex:  test,
	}
	log.Component("dataset").Info("train/test split",
		log.StageKey, log.StageSplit,
		"train."+log.SamplesKey, len(train),
		"test."+log.SamplesKey, len(test),
		log.RandomSeedKey, seed,
	)
	return s, nil
}

// Split partitions the dataset. See TrainTestSplit.
func (d *Dataset) Split(fraction float64, seed int64) (*Split, error) {
	return TrainTestSplit(d.X, d.Y, fraction, seed)
}
