// Package export persists trained models: a full-precision gob bundle that
// can be reloaded for inference, and a compact quantized mobile artifact.
package export

import (
	"time"

	"github.com/YuminosukeSato/dermnet/core/model"
	"github.com/YuminosukeSato/dermnet/nn"
	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"github.com/YuminosukeSato/dermnet/pkg/log"
	"github.com/YuminosukeSato/dermnet/preprocessing"
	"github.com/YuminosukeSato/dermnet/training"
)

// BundleVersion is bumped whenever the bundle layout changes.
const BundleVersion = 1

// Bundle is everything needed to classify a new image: the architecture and
// weights, the label table and the preprocessing settings.
type Bundle struct {
	Version       int
	Architecture  string
	Network       *nn.Network
	Classes       []string
	ImageSize     int
	Interpolation string
	Accuracy      float64
	CreatedAt     time.Time
}

// NewBundle packages a training result. The result's model must be an nn.Network.
func NewBundle(res *training.Result, classes []string, imageSize int, interpolation string) (*Bundle, error) {
	net, ok := res.Network()
	if !ok {
		return nil, errors.NewValueError("NewBundle", "model "+res.Name+" is not exportable")
	}
	b := &Bundle{
		Version:       BundleVersion,
		Architecture:  res.Name,
		Network:       net,
		Classes:       append([]string(nil), classes...),
		ImageSize:     imageSize,
		Interpolation: interpolation,
		Accuracy:      res.TestAccuracy,
		CreatedAt:     time.Now().UTC(),
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks that the label table matches the network output and that
// the input shape matches the image size.
func (b *Bundle) Validate() error {
	if b.Network == nil {
		return errors.NewValidationError("network", "missing", nil)
	}
	if len(b.Classes) != b.Network.NumClasses() {
		return errors.NewDimensionError("Bundle.Classes", b.Network.NumClasses(), len(b.Classes), 0)
	}
	in := b.Network.Input
	if in.H != b.ImageSize || in.W != b.ImageSize {
		return errors.NewValidationError("image_size", "does not match the network input", in.Dims())
	}
	return nil
}

// Encoder rebuilds the label encoder from the stored class table.
func (b *Bundle) Encoder() (*preprocessing.LabelEncoder, error) {
	return preprocessing.NewLabelEncoderFromClasses(b.Classes)
}

// SaveBundle writes b to path with gob.
func SaveBundle(path string, b *Bundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if err := model.SaveModel(b, path); err != nil {
		return errors.Wrapf(err, "save bundle %s", path)
	}
	log.Component("export").Info("model bundle saved",
		log.StageKey, log.StageExport,
		log.PathKey, path,
		log.ModelNameKey, b.Architecture,
		log.ParamsKey, b.Network.NumParams(),
	)
	return nil
}

// LoadBundle reads a bundle written by SaveBundle.
func LoadBundle(path string) (*Bundle, error) {
	var b Bundle
	if err := model.LoadModel(&b, path); err != nil {
		return nil, err
	}
	if b.Version != BundleVersion {
		return nil, errors.NewDataSourceError(path, 0, "unsupported bundle version", nil)
	}
	if err := b.Validate(); err != nil {
		return nil, errors.NewDataSourceError(path, 0, "inconsistent bundle", err)
	}
	return &b, nil
}
