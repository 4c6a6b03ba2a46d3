package dataset

import (
	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"github.com/YuminosukeSato/dermnet/pkg/log"
	"github.com/YuminosukeSato/dermnet/preprocessing"
	"gonum.org/v1/gonum/mat"
)

// ImageTensor is a batch of images flattened to one row per image.
// Row i holds height × width × channels values in HWC order.
type ImageTensor struct {
	Data     *mat.Dense
	Height   int
	Width    int
	Channels int
}

// Count returns the number of images.
func (t *ImageTensor) Count() int {
	r, _ := t.Data.Dims()
	return r
}

// Features returns height × width × channels.
func (t *ImageTensor) Features() int {
	return t.Height * t.Width * t.Channels
}

// Shape returns [count, height, width, channels].
func (t *ImageTensor) Shape() []int {
	return []int{t.Count(), t.Height, t.Width, t.Channels}
}

// Rows returns a new tensor holding the given rows in order.
func (t *ImageTensor) Rows(idx []int) *ImageTensor {
	return &ImageTensor{
		Data:     selectRows(t.Data, idx),
		Height:   t.Height,
		Width:    t.Width,
		Channels: t.Channels,
	}
}

// Dataset is the assembled model input: images scaled to [0, 1] and one-hot
// labels, row-aligned with Labels and IDs.
type Dataset struct {
	X      *ImageTensor
	Y      *mat.Dense
	Labels []int
	IDs    []string
}

// Assemble stacks the images of records into a tensor, rescales pixels to
// [0, 1] and one-hot encodes labels into numClasses columns.
//
// Every image must be size × size × 3; the first record that is not fails with
// a ShapeMismatchError and no tensor is produced.
func Assemble(records []Record, size, numClasses int) (*Dataset, error) {
	if len(records) == 0 {
		return nil, errors.NewModelError("Assemble", "empty data", errors.ErrEmptyData)
	}
	want := []int{size, size, Channels}
	for _, r := range records {
		got := r.Image.Shape()
		if got == nil {
			got = []int{}
		}
		if !sameInts(got, want) || len(r.Image.Pix) != size*size*Channels {
			return nil, errors.NewShapeMismatchError(r.ImageID, want, got)
		}
	}

	labels := Labels(records)
	y, err := preprocessing.OneHot(labels, numClasses)
	if err != nil {
		var unknown *errors.UnknownLabelError
		if errors.As(err, &unknown) {
			for _, r := range records {
				if r.Label < 0 || r.Label >= numClasses {
					return nil, errors.NewUnknownLabelErrorForRecord(r.ImageID, unknown.Label, unknown.Known)
				}
			}
		}
		return nil, err
	}

	features := size * size * Channels
	data := make([]float64, len(records)*features)
	rescaler := preprocessing.NewPixelRescaler()
	for i, r := range records {
		rescaler.RescaleInto(data[i*features:(i+1)*features], r.Image.Pix)
	}

	ds := &Dataset{
		X: &ImageTensor{
			Data:     mat.NewDense(len(records), features, data),
			Height:   size,
			Width:    size,
			Channels: Channels,
		},
		Y:      y,
		Labels: labels,
		IDs:    ImageIDs(records),
	}
	log.Component("dataset").Info("dataset assembled",
		log.StageKey, log.StageAssemble,
		log.ShapeKey, ds.X.Shape(),
		log.ClassesKey, numClasses,
	)
	return ds, nil
}

func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func selectRows(m *mat.Dense, idx []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, src := range idx {
		out.SetRow(i, m.RawRowView(src))
	}
	return out
}
