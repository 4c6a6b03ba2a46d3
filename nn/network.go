package nn

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// predictBatch bounds the rows pushed through the network at once at inference.
const predictBatch = 256

// Network is a sequential stack of layers ending in class logits.
// It implements model.Classifier.
type Network struct {
	Arch    string
	Input   Shape
	Layers  []Layer
	Classes int
}

// NewNetwork creates an unbuilt network.
func NewNetwork(arch string, input Shape, layers ...Layer) *Network {
	return &Network{Arch: arch, Input: input, Layers: layers}
}

// Build initializes every layer in order with weights drawn from seed.
// The last layer must produce a flat vector, whose width becomes Classes.
func (n *Network) Build(seed int64) error {
	if len(n.Layers) == 0 {
		return errors.NewValidationError("layers", "network has no layers", 0)
	}
	rng := rand.New(rand.NewSource(seed))
	shape := n.Input
	for i, l := range n.Layers {
		out, err := l.Init(shape, rng)
		if err != nil {
			return errors.Wrapf(err, "build %s layer %d (%s)", n.Arch, i, l.Kind())
		}
		if out.Size() <= 0 {
			return errors.NewValidationError("layers", fmt.Sprintf("layer %d (%s) produces an empty output", i, l.Kind()), out.Dims())
		}
		shape = out
	}
	if shape.H != 1 || shape.W != 1 {
		return errors.NewValidationError("layers", "last layer must be flat", shape.Dims())
	}
	n.Classes = shape.C
	return nil
}

// Forward runs the batch through every layer and returns the logits.
func (n *Network) Forward(x *mat.Dense, training bool) *mat.Dense {
	for _, l := range n.Layers {
		x = l.Forward(x, training)
	}
	return x
}

// Backward propagates the logit gradient through every layer in reverse.
func (n *Network) Backward(grad *mat.Dense) {
	for i := len(n.Layers) - 1; i >= 0; i-- {
		grad = n.Layers[i].Backward(grad)
	}
}

// Penalty sums the weight penalties of regularized layers.
func (n *Network) Penalty() float64 {
	var p float64
	for _, l := range n.Layers {
		if r, ok := l.(regularized); ok {
			p += r.Penalty()
		}
	}
	return p
}

// TrainBatch runs one forward/backward pass on a mini-batch and applies opt.
// It returns the batch loss including weight penalties and the number of rows
// whose arg-max logit matched the target.
func (n *Network) TrainBatch(x, y *mat.Dense, opt *Adam) (loss float64, correct int, err error) {
	defer errors.Recover(&err, n.Arch+".TrainBatch")

	logits := n.Forward(x, true)
	loss, grad, err := SoftmaxCrossEntropy(logits, y)
	if err != nil {
		return 0, 0, err
	}
	rows, _ := logits.Dims()
	for i := 0; i < rows; i++ {
		if argmax(logits.RawRowView(i)) == argmax(y.RawRowView(i)) {
			correct++
		}
	}
	n.Backward(grad)
	if err := opt.Step(n.Params()); err != nil {
		return 0, 0, err
	}
	return loss + n.Penalty(), correct, nil
}

// Evaluate returns the mean loss (including penalties) and accuracy on x, y.
func (n *Network) Evaluate(x, y *mat.Dense) (loss, accuracy float64, err error) {
	rows, _ := y.Dims()
	proba, err := n.PredictProba(x)
	if err != nil {
		return 0, 0, err
	}
	correct := 0
	for i := 0; i < rows; i++ {
		p, t := proba.RawRowView(i), y.RawRowView(i)
		if argmax(p) == argmax(t) {
			correct++
		}
		for j, v := range t {
			if v != 0 {
				loss -= v * logFloor(p[j])
			}
		}
	}
	loss = loss/float64(rows) + n.Penalty()
	if err := errors.CheckScalar(n.Arch+".Evaluate", loss, 0); err != nil {
		return 0, 0, err
	}
	return loss, float64(correct) / float64(rows), nil
}

// PredictProba returns class probabilities, one row per input row.
func (n *Network) PredictProba(X mat.Matrix) (proba *mat.Dense, err error) {
	defer errors.Recover(&err, n.Arch+".PredictProba")

	rows, cols := X.Dims()
	if rows == 0 {
		return nil, errors.NewModelError(n.Arch+".PredictProba", "empty data", errors.ErrEmptyData)
	}
	if cols != n.Input.Size() {
		return nil, errors.NewDimensionError(n.Arch+".PredictProba", n.Input.Size(), cols, 1)
	}
	x, ok := X.(*mat.Dense)
	if !ok {
		x = mat.DenseCopyOf(X)
	}

	out := mat.NewDense(rows, n.Classes, nil)
	for start := 0; start < rows; start += predictBatch {
		end := start + predictBatch
		if end > rows {
			end = rows
		}
		batch := x.Slice(start, end, 0, cols).(*mat.Dense)
		p := SoftmaxRows(n.Forward(batch, false))
		for i := start; i < end; i++ {
			out.SetRow(i, p.RawRowView(i-start))
		}
	}
	return out, nil
}

// Predict returns the most probable class per row.
func (n *Network) Predict(X mat.Matrix) ([]int, error) {
	proba, err := n.PredictProba(X)
	if err != nil {
		return nil, err
	}
	rows, _ := proba.Dims()
	out := make([]int, rows)
	for i := range out {
		out[i] = argmax(proba.RawRowView(i))
	}
	return out, nil
}

// NumClasses returns the width of the output layer.
func (n *Network) NumClasses() int { return n.Classes }

// Params returns the params of every layer in layer order.
func (n *Network) Params() []*Param {
	var out []*Param
	for _, l := range n.Layers {
		out = append(out, l.Params()...)
	}
	return out
}

// NumParams counts trainable and non-trainable weights.
func (n *Network) NumParams() int {
	total := 0
	for _, p := range n.Params() {
		total += p.Size()
	}
	return total
}

// Summary renders one line per layer with its output shape and weight count.
func (n *Network) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Model: %q\n", n.Arch)
	fmt.Fprintf(&b, "%-4s %-12s %-16s %10s\n", "#", "Layer", "Output", "Params")
	for i, l := range n.Layers {
		count := 0
		for _, p := range l.Params() {
			count += p.Size()
		}
		o := l.OutputShape()
		fmt.Fprintf(&b, "%-4d %-12s %-16s %10d\n", i, l.Kind(), fmt.Sprintf("(%d, %d, %d)", o.H, o.W, o.C), count)
	}
	fmt.Fprintf(&b, "Total params: %d\n", n.NumParams())
	return b.String()
}

func argmax(v []float64) int {
	best := 0
	for j := 1; j < len(v); j++ {
		if v[j] > v[best] {
			best = j
		}
	}
	return best
}
