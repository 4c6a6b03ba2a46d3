package export

import (
	"image"
	"sort"

	"github.com/YuminosukeSato/dermnet/dataset"
	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"github.com/YuminosukeSato/dermnet/preprocessing"
	"gonum.org/v1/gonum/mat"
)

// Prediction is the classification of one image.
type Prediction struct {
	ImageID     string
	Label       int
	Code        string
	Probability float64
	// Probabilities holds one entry per class in label order.
	Probabilities []float64
}

// Predictor classifies image files with the preprocessing a bundle was
// trained with.
type Predictor struct {
	bundle   *Bundle
	resizer  dataset.Resizer
	rescaler preprocessing.PixelRescaler
	encoder  *preprocessing.LabelEncoder
}

// NewPredictor prepares b for inference.
func NewPredictor(b *Bundle) (*Predictor, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	resizer, err := dataset.NewResizer(b.ImageSize, b.Interpolation)
	if err != nil {
		return nil, err
	}
	enc, err := b.Encoder()
	if err != nil {
		return nil, err
	}
	return &Predictor{
		bundle:   b,
		resizer:  resizer,
		rescaler: preprocessing.NewPixelRescaler(),
		encoder:  enc,
	}, nil
}

// Classes returns the label table in label order.
func (p *Predictor) Classes() []string {
	return p.encoder.Classes()
}

// PredictFile decodes, resizes and classifies the image at path. id names
// the image in errors.
func (p *Predictor) PredictFile(id, path string) (*Prediction, error) {
	img, err := p.resizer.Load(id, path)
	if err != nil {
		return nil, err
	}
	return p.predict(id, img)
}

// PredictImage classifies an already decoded image.
func (p *Predictor) PredictImage(id string, src image.Image) (*Prediction, error) {
	return p.predict(id, p.resizer.Resize(src))
}

func (p *Predictor) predict(id string, img *dataset.Image) (*Prediction, error) {
	row := make([]float64, len(img.Pix))
	p.rescaler.RescaleInto(row, img.Pix)
	proba, err := p.bundle.Network.PredictProba(mat.NewDense(1, len(row), row))
	if err != nil {
		return nil, errors.Wrapf(err, "predict %s", id)
	}
	probs := mat.Row(nil, 0, proba)
	best := 0
	for j, v := range probs {
		if v > probs[best] {
			best = j
		}
	}
	code, err := p.encoder.Code(best)
	if err != nil {
		return nil, err
	}
	return &Prediction{
		ImageID:       id,
		Label:         best,
		Code:          code,
		Probability:   probs[best],
		Probabilities: probs,
	}, nil
}

// ClassProbability pairs a diagnosis code with its predicted probability.
type ClassProbability struct {
	Code        string
	Probability float64
}

// Top returns the n most probable classes, highest first.
func (p *Predictor) Top(pred *Prediction, n int) []ClassProbability {
	classes := p.encoder.Classes()
	out := make([]ClassProbability, len(pred.Probabilities))
	for i, v := range pred.Probabilities {
		out[i] = ClassProbability{Code: classes[i], Probability: v}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Probability > out[j].Probability })
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
