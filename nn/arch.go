package nn

import (
	"github.com/YuminosukeSato/dermnet/pkg/errors"
)

// Architecture names.
const (
	CNN = "cnn"
	ANN = "ann"
	FNN = "fnn"
)

// ArchOptions sizes the built-in architectures.
type ArchOptions struct {
	// Filters are the widths of the three convolution blocks (cnn only).
	Filters []int
	// Units are the widths of the three hidden dense blocks (ann, fnn).
	Units []int
	// Dropout is the rate applied after every block.
	Dropout float64
	// Head is the width of the dense layer before the output.
	Head int
	// L1 and L2 penalize the output layer kernel.
	L1, L2 float64
}

// DefaultArchOptions returns the HAM10000 experiment settings, with the convolution
// pyramid narrowed to 64/32/16 filters.
func DefaultArchOptions() ArchOptions {
	return ArchOptions{
		Filters: []int{64, 32, 16},
		Units:   []int{512, 256, 128},
		Dropout: 0.3,
		Head:    64,
		L1:      0.01,
		L2:      0.01,
	}
}

// NewArchitecture returns an unbuilt network of the named architecture for
// input images of the given shape and numClasses outputs.
//
//	cnn: 3 × [Conv2D 3×3 relu, BatchNorm, MaxPool 2, Dropout], Flatten, Dense(head), Dense(k, l1_l2)
//	ann: Flatten, 3 × [Dense relu, BatchNorm, Dropout], Dense(head), Dense(k, l1_l2)
//	fnn: as ann with a relu head
func NewArchitecture(name string, input Shape, numClasses int, opts ArchOptions) (*Network, error) {
	if numClasses <= 0 {
		return nil, errors.NewValidationError("numClasses", "must be positive", numClasses)
	}
	if opts.Head <= 0 {
		opts.Head = 64
	}

	var layers []Layer
	switch name {
	case CNN:
		if len(opts.Filters) == 0 {
			return nil, errors.NewValidationError("filters", "cnn needs at least one block", opts.Filters)
		}
		for _, f := range opts.Filters {
			layers = append(layers,
				NewConv2D(f, 3, ReLU),
				NewBatchNorm(),
				NewMaxPool2D(2),
				NewDropout(opts.Dropout),
			)
		}
		layers = append(layers, NewFlatten(), NewDense(opts.Head, Linear))
	case ANN, FNN:
		if len(opts.Units) == 0 {
			return nil, errors.NewValidationError("units", "dense stack needs at least one block", opts.Units)
		}
		layers = append(layers, NewFlatten())
		for _, u := range opts.Units {
			layers = append(layers,
				NewDense(u, ReLU),
				NewBatchNorm(),
				NewDropout(opts.Dropout),
			)
		}
		head := Linear
		if name == FNN {
			head = ReLU
		}
		layers = append(layers, NewDense(opts.Head, head))
	default:
		return nil, errors.NewValidationError("architecture", "must be one of cnn, ann, fnn", name)
	}
	layers = append(layers, NewDense(numClasses, Linear).WithL1L2(opts.L1, opts.L2))
	return NewNetwork(name, input, layers...), nil
}
