package export

import (
	"bytes"
	"io"
	"math"
	"os"
	"time"

	"github.com/YuminosukeSato/dermnet/nn"
	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"github.com/YuminosukeSato/dermnet/pkg/log"
	"github.com/dustin/go-humanize"
	"github.com/golang/snappy"
	"google.golang.org/protobuf/encoding/protowire"
)

// The mobile artifact is the magic header followed by a snappy block holding
// one protobuf-encoded model message:
//
//	model  { 1 version, 2 architecture, 3 image_size, 4 classes*, 5 input(packed),
//	         6 accuracy(double), 7 layers*, 8 interpolation, 9 created_unix }
//	layer  { 1 kind, 2 units, 3 filters, 4 kernel, 5 pool, 6 activation,
//	         7 rate, 8 momentum, 9 epsilon, 10 l1, 11 l2, 12 tensors* }
//	tensor { 1 name, 2 scale(double), 3 int8 data, 4 dims(packed), 5 float32 data(packed) }
//
// Tensors with at least quantizeMin elements are stored as symmetric int8
// with one scale per tensor; smaller ones (biases, normalization statistics)
// keep float32 precision.
var mobileMagic = []byte("DNM\x01")

const quantizeMin = 64

const (
	fModelVersion protowire.Number = iota + 1
	fModelArch
	fModelImageSize
	fModelClasses
	fModelInput
	fModelAccuracy
	fModelLayers
	fModelInterpolation
	fModelCreated
)

const (
	fLayerKind protowire.Number = iota + 1
	fLayerUnits
	fLayerFilters
	fLayerKernel
	fLayerPool
	fLayerActivation
	fLayerRate
	fLayerMomentum
	fLayerEpsilon
	fLayerL1
	fLayerL2
	fLayerTensors
)

const (
	fTensorName protowire.Number = iota + 1
	fTensorScale
	fTensorInt8
	fTensorDims
	fTensorFloat32
)

// WriteMobile writes the quantized artifact of b to w.
func WriteMobile(w io.Writer, b *Bundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	payload := encodeModel(b)
	if _, err := w.Write(mobileMagic); err != nil {
		return errors.Wrap(err, "write mobile header")
	}
	if _, err := w.Write(snappy.Encode(nil, payload)); err != nil {
		return errors.Wrap(err, "write mobile payload")
	}
	return nil
}

// SaveMobile writes the mobile artifact of b to path.
func SaveMobile(path string, b *Bundle) error {
	var buf bytes.Buffer
	if err := WriteMobile(&buf, b); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	log.Component("export").Info("mobile artifact saved",
		log.StageKey, log.StageExport,
		log.PathKey, path,
		log.ModelNameKey, b.Architecture,
		log.DataSizeKey, buf.Len(),
		log.DataSizeHumanKey, humanize.Bytes(uint64(buf.Len())),
	)
	return nil
}

// ReadMobile decodes an artifact written by WriteMobile and rebuilds a runnable
// network with dequantized weights.
func ReadMobile(r io.Reader) (*Bundle, error) {
	return readMobile(r, "mobile artifact")
}

// LoadMobile reads the mobile artifact at path.
func LoadMobile(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewDataSourceError(path, 0, "cannot open mobile artifact", err)
	}
	defer f.Close()
	return readMobile(f, path)
}

func readMobile(r io.Reader, name string) (*Bundle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewDataSourceError(name, 0, "cannot read", err)
	}
	if !bytes.HasPrefix(data, mobileMagic) {
		return nil, errors.NewDataSourceError(name, 0, "not a mobile artifact", nil)
	}
	payload, err := snappy.Decode(nil, data[len(mobileMagic):])
	if err != nil {
		return nil, errors.NewDataSourceError(name, 0, "corrupt compressed payload", err)
	}
	var b *Bundle
	err = errors.SafeExecute("ReadMobile", func() error {
		var derr error
		b, derr = decodeModel(payload)
		return derr
	})
	if err != nil {
		return nil, errors.NewDataSourceError(name, 0, "corrupt model message", err)
	}
	return b, nil
}

func encodeModel(b *Bundle) []byte {
	var out []byte
	out = protowire.AppendTag(out, fModelVersion, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(b.Version))
	out = appendString(out, fModelArch, b.Architecture)
	out = protowire.AppendTag(out, fModelImageSize, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(b.ImageSize))
	for _, c := range b.Classes {
		out = appendString(out, fModelClasses, c)
	}
	in := b.Network.Input
	out = appendPackedInts(out, fModelInput, []int{in.H, in.W, in.C})
	out = appendDouble(out, fModelAccuracy, b.Accuracy)

	params := b.Network.Params()
	next := 0
	for _, l := range b.Network.Layers {
		n := len(l.Params())
		out = protowire.AppendTag(out, fModelLayers, protowire.BytesType)
		out = protowire.AppendBytes(out, encodeLayer(l.Spec(), params[next:next+n]))
		next += n
	}
	out = appendString(out, fModelInterpolation, b.Interpolation)
	out = protowire.AppendTag(out, fModelCreated, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(b.CreatedAt.Unix()))
	return out
}

func encodeLayer(s nn.LayerSpec, params []*nn.Param) []byte {
	var out []byte
	out = appendString(out, fLayerKind, s.Kind)
	for _, f := range []struct {
		num protowire.Number
		v   int
	}{{fLayerUnits, s.Units}, {fLayerFilters, s.Filters}, {fLayerKernel, s.Kernel}, {fLayerPool, s.Pool}} {
		if f.v != 0 {
			out = protowire.AppendTag(out, f.num, protowire.VarintType)
			out = protowire.AppendVarint(out, uint64(f.v))
		}
	}
	if s.Activation != "" {
		out = appendString(out, fLayerActivation, s.Activation)
	}
	for _, f := range []struct {
		num protowire.Number
		v   float64
	}{{fLayerRate, s.Rate}, {fLayerMomentum, s.Momentum}, {fLayerEpsilon, s.Epsilon}, {fLayerL1, s.L1}, {fLayerL2, s.L2}} {
		if f.v != 0 {
			out = appendDouble(out, f.num, f.v)
		}
	}
	for _, p := range params {
		out = protowire.AppendTag(out, fLayerTensors, protowire.BytesType)
		out = protowire.AppendBytes(out, encodeTensor(p))
	}
	return out
}

func encodeTensor(p *nn.Param) []byte {
	var out []byte
	out = appendString(out, fTensorName, p.Name)
	out = appendPackedInts(out, fTensorDims, p.Dims)
	if p.Size() >= quantizeMin {
		q, scale := Quantize(p.Value)
		out = appendDouble(out, fTensorScale, scale)
		raw := make([]byte, len(q))
		for i, v := range q {
			raw[i] = byte(v)
		}
		out = protowire.AppendTag(out, fTensorInt8, protowire.BytesType)
		out = protowire.AppendBytes(out, raw)
		return out
	}
	var packed []byte
	for _, v := range p.Value {
		packed = protowire.AppendFixed32(packed, math.Float32bits(float32(v)))
	}
	out = protowire.AppendTag(out, fTensorFloat32, protowire.BytesType)
	out = protowire.AppendBytes(out, packed)
	return out
}

// Quantize maps values to int8 with a symmetric per-tensor scale max|v|/127.
func Quantize(values []float64) ([]int8, float64) {
	var maxAbs float64
	for _, v := range values {
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}
	q := make([]int8, len(values))
	if maxAbs == 0 {
		return q, 0
	}
	scale := maxAbs / 127
	for i, v := range values {
		r := math.Round(v / scale)
		q[i] = int8(math.Max(-127, math.Min(127, r)))
	}
	return q, scale
}

// Dequantize inverts Quantize.
func Dequantize(q []int8, scale float64) []float64 {
	out := make([]float64, len(q))
	for i, v := range q {
		out[i] = float64(v) * scale
	}
	return out
}

type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// walk calls fn for every field in b. fn returns the bytes consumed, or -1 to
// skip the field.
func walk(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m < 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		b = b[m:]
	}
	return nil
}

func decodeModel(payload []byte) (*Bundle, error) {
	b := &Bundle{}
	var (
		input  []int
		specs  []nn.LayerSpec
		values [][]float64
	)
	err := walk(payload, func(num protowire.Number, typ protowire.Type, buf []byte) (int, error) {
		switch {
		case num == fModelVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(buf)
			b.Version = int(v)
			return n, nil
		case num == fModelArch && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(buf)
			b.Architecture = v
			return n, nil
		case num == fModelImageSize && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(buf)
			b.ImageSize = int(v)
			return n, nil
		case num == fModelClasses && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(buf)
			b.Classes = append(b.Classes, v)
			return n, nil
		case num == fModelInput && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			ints, err := unpackInts(v)
			input = ints
			return n, err
		case num == fModelAccuracy && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(buf)
			b.Accuracy = math.Float64frombits(v)
			return n, nil
		case num == fModelLayers && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return n, nil
			}
			spec, vals, err := decodeLayer(v)
			if err != nil {
				return 0, err
			}
			specs = append(specs, spec)
			values = append(values, vals...)
			return n, nil
		case num == fModelInterpolation && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(buf)
			b.Interpolation = v
			return n, nil
		case num == fModelCreated && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(buf)
			b.CreatedAt = time.Unix(int64(v), 0).UTC()
			return n, nil
		}
		return -1, nil
	})
	if err != nil {
		return nil, err
	}
	if b.Version != BundleVersion {
		return nil, errors.Newf("unsupported artifact version %d", b.Version)
	}
	if len(input) != 3 {
		return nil, errors.New("missing input shape")
	}
	for _, d := range input {
		if d <= 0 || d > nn.MaxSpecDim {
			return nil, errors.Newf("input dimension out of range: %v", input)
		}
	}
	net, err := nn.FromSpecs(b.Architecture, nn.Shape{H: input[0], W: input[1], C: input[2]}, specs, values)
	if err != nil {
		return nil, err
	}
	b.Network = net
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func decodeLayer(buf []byte) (nn.LayerSpec, [][]float64, error) {
	var (
		s      nn.LayerSpec
		values [][]float64
	)
	ints := map[protowire.Number]*int{fLayerUnits: &s.Units, fLayerFilters: &s.Filters, fLayerKernel: &s.Kernel, fLayerPool: &s.Pool}
	floats := map[protowire.Number]*float64{fLayerRate: &s.Rate, fLayerMomentum: &s.Momentum, fLayerEpsilon: &s.Epsilon, fLayerL1: &s.L1, fLayerL2: &s.L2}
	err := walk(buf, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if p, ok := ints[num]; ok && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			if n >= 0 && v > nn.MaxSpecDim {
				return 0, errors.Newf("layer field %d out of range: %d", num, v)
			}
			*p = int(v)
			return n, nil
		}
		if p, ok := floats[num]; ok && typ == protowire.Fixed64Type {
			v, n := protowire.ConsumeFixed64(b)
			*p = math.Float64frombits(v)
			return n, nil
		}
		switch {
		case num == fLayerKind && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			s.Kind = v
			return n, nil
		case num == fLayerActivation && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			s.Activation = v
			return n, nil
		case num == fLayerTensors && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			vals, err := decodeTensor(v)
			if err != nil {
				return 0, err
			}
			values = append(values, vals)
			return n, nil
		}
		return -1, nil
	})
	return s, values, err
}

func decodeTensor(buf []byte) ([]float64, error) {
	var (
		scale   float64
		q       []int8
		f32     []float64
		hasInt8 bool
	)
	err := walk(buf, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fTensorScale && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			scale = math.Float64frombits(v)
			return n, nil
		case num == fTensorInt8 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			q = make([]int8, len(v))
			for i, x := range v {
				q[i] = int8(x)
			}
			hasInt8 = true
			return n, nil
		case num == fTensorFloat32 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if len(v)%4 != 0 {
				return 0, errors.New("truncated float32 tensor")
			}
			f32 = make([]float64, 0, len(v)/4)
			for len(v) > 0 {
				bits, m := protowire.ConsumeFixed32(v)
				f32 = append(f32, float64(math.Float32frombits(bits)))
				v = v[m:]
			}
			return n, nil
		}
		return -1, nil
	})
	if err != nil {
		return nil, err
	}
	if hasInt8 {
		return Dequantize(q, scale), nil
	}
	return f32, nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendPackedInts(b []byte, num protowire.Number, vals []int) []byte {
	var packed []byte
	for _, v := range vals {
		packed = protowire.AppendVarint(packed, uint64(v))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}

func unpackInts(b []byte) ([]int, error) {
	var out []int
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		out = append(out, int(v))
		b = b[n:]
	}
	return out, nil
}
