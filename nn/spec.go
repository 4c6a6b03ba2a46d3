package nn

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/dermnet/pkg/errors"
)

// LayerSpec is the weight-free configuration of a layer. Together with the
// input shape and the flat param values it is enough to rebuild a Network.
type LayerSpec struct {
	Kind       string
	Units      int
	Filters    int
	Kernel     int
	Pool       int
	Activation string
	Rate       float64
	Momentum   float64
	Epsilon    float64
	L1, L2     float64
}

// Specs returns the configuration of every layer.
func (n *Network) Specs() []LayerSpec {
	out := make([]LayerSpec, len(n.Layers))
	for i, l := range n.Layers {
		out[i] = l.Spec()
	}
	return out
}

// LayerFromSpec creates an uninitialized layer from its configuration.
func LayerFromSpec(s LayerSpec) (Layer, error) {
	switch s.Kind {
	case "dense":
		return NewDense(s.Units, s.Activation).WithL1L2(s.L1, s.L2), nil
	case "conv2d":
		return NewConv2D(s.Filters, s.Kernel, s.Activation), nil
	case "maxpool2d":
		return NewMaxPool2D(s.Pool), nil
	case "batchnorm":
		return &BatchNorm{Momentum: s.Momentum, Epsilon: s.Epsilon}, nil
	case "dropout":
		return NewDropout(s.Rate), nil
	case "flatten":
		return NewFlatten(), nil
	}
	return nil, errors.NewValidationError("layer.kind", "unknown layer kind", s.Kind)
}

// FromSpecs rebuilds a network and loads values, which must list every param
// in Params order.
func FromSpecs(arch string, input Shape, specs []LayerSpec, values [][]float64) (*Network, error) {
	if err := checkSpecs(input, specs, values); err != nil {
		return nil, err
	}
	layers := make([]Layer, len(specs))
	for i, s := range specs {
		l, err := LayerFromSpec(s)
		if err != nil {
			return nil, err
		}
		layers[i] = l
	}
	net := NewNetwork(arch, input, layers...)
	if err := net.Build(0); err != nil {
		return nil, err
	}
	if err := net.SetParamValues(values); err != nil {
		return nil, err
	}
	return net, nil
}

// MaxSpecDim bounds every dimension a serialized network may declare.
const MaxSpecDim = 1 << 16

// checkSpecs walks the layer shapes without allocating and verifies that
// values holds exactly the params the specs declare.
func checkSpecs(input Shape, specs []LayerSpec, values [][]float64) error {
	for _, d := range input.Dims() {
		if d <= 0 || d > MaxSpecDim {
			return errors.NewValidationError("input", "dimension out of range", input.Dims())
		}
	}
	shape := input
	next := 0
	for i, s := range specs {
		for _, d := range []int{s.Units, s.Filters, s.Kernel, s.Pool} {
			if d < 0 || d > MaxSpecDim {
				return errors.NewValidationError("layers", fmt.Sprintf("layer %d (%s) has a size out of range", i, s.Kind), d)
			}
		}
		out, sizes, err := specParamSizes(shape, s)
		if err != nil {
			return errors.Wrapf(err, "layer %d (%s)", i, s.Kind)
		}
		for _, n := range sizes {
			if next >= len(values) {
				return errors.NewDimensionError("FromSpecs", next+1, len(values), 0)
			}
			if len(values[next]) != n {
				return errors.NewValidationError("params",
					fmt.Sprintf("param %d of layer %d (%s) has %d values, want %d", next, i, s.Kind, len(values[next]), n), len(values[next]))
			}
			next++
		}
		shape = out
	}
	if next != len(values) {
		return errors.NewDimensionError("FromSpecs", next, len(values), 0)
	}
	return nil
}

// specParamSizes mirrors Layer.Init: it returns the output shape and the
// element count of every param the layer would allocate.
func specParamSizes(in Shape, s LayerSpec) (Shape, []int, error) {
	switch s.Kind {
	case "dense":
		if in.H != 1 || in.W != 1 || s.Units <= 0 {
			return Shape{}, nil, errors.NewValidationError("dense", "needs flat input and positive units", s.Units)
		}
		w, ok := mulSizes(in.C, s.Units)
		if !ok {
			return Shape{}, nil, errors.NewValidationError("dense.units", "kernel too large", s.Units)
		}
		return Shape{H: 1, W: 1, C: s.Units}, []int{w, s.Units}, nil
	case "conv2d":
		if s.Filters <= 0 || s.Kernel <= 0 || in.H < s.Kernel || in.W < s.Kernel {
			return Shape{}, nil, errors.NewValidationError("conv2d", "invalid filters or kernel", []int{s.Filters, s.Kernel})
		}
		w, ok := mulSizes(s.Kernel, s.Kernel, in.C, s.Filters)
		if !ok {
			return Shape{}, nil, errors.NewValidationError("conv2d", "kernel too large", []int{s.Filters, s.Kernel})
		}
		return Shape{H: in.H - s.Kernel + 1, W: in.W - s.Kernel + 1, C: s.Filters}, []int{w, s.Filters}, nil
	case "maxpool2d":
		if s.Pool <= 0 || in.H < s.Pool || in.W < s.Pool {
			return Shape{}, nil, errors.NewValidationError("maxpool2d.size", "invalid pool window", s.Pool)
		}
		return Shape{H: in.H / s.Pool, W: in.W / s.Pool, C: in.C}, nil, nil
	case "batchnorm":
		return in, []int{in.C, in.C, in.C, in.C}, nil
	case "dropout":
		return in, nil, nil
	case "flatten":
		n, ok := mulSizes(in.H, in.W, in.C)
		if !ok {
			return Shape{}, nil, errors.NewValidationError("flatten", "output too large", in.Dims())
		}
		return Shape{H: 1, W: 1, C: n}, nil, nil
	}
	return Shape{}, nil, errors.NewValidationError("layer.kind", "unknown layer kind", s.Kind)
}

func mulSizes(dims ...int) (int, bool) {
	n := 1
	for _, d := range dims {
		if d < 0 || (d > 0 && n > math.MaxInt32/d) {
			return 0, false
		}
		n *= d
	}
	return n, true
}

// ParamValues returns a copy of every param's values in Params order.
func (n *Network) ParamValues() [][]float64 {
	params := n.Params()
	out := make([][]float64, len(params))
	for i, p := range params {
		out[i] = append([]float64(nil), p.Value...)
	}
	return out
}

// SetParamValues overwrites every param with values given in Params order.
func (n *Network) SetParamValues(values [][]float64) error {
	params := n.Params()
	if len(values) != len(params) {
		return errors.NewDimensionError("SetParamValues", len(params), len(values), 0)
	}
	for i, p := range params {
		if len(values[i]) != p.Size() {
			return errors.NewValidationError("params",
				fmt.Sprintf("param %d (%s) has %d values, want %d", i, p.Name, len(values[i]), p.Size()), len(values[i]))
		}
	}
	for i, p := range params {
		copy(p.Value, values[i])
	}
	return nil
}
