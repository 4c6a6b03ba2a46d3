// Package config holds the run configuration: dataset locations, the
// preprocessing and split knobs, and the training hyper-parameters.
//
// Values are layered: Default, then an optional YAML file (Load), then
// command-line flags applied by the caller. Validate must pass before a run.
package config

import (
	"bytes"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"gopkg.in/yaml.v3"
)

// HAM10000Classes are the seven diagnosis codes of the HAM10000 dataset.
var HAM10000Classes = []string{"akiec", "bcc", "bkl", "df", "mel", "nv", "vasc"}

// KnownArchitectures lists the models the trainer can build: the three
// networks and the logistic regression baseline.
var KnownArchitectures = []string{"cnn", "ann", "fnn", "logreg"}

// DefaultArchitectures are the networks compared when none are configured.
var DefaultArchitectures = []string{"cnn", "ann", "fnn"}

// KnownInterpolators lists the resampling kernels accepted by the resizer.
var KnownInterpolators = []string{"nearest", "approxbilinear", "bilinear", "catmullrom"}

// MinCNNImageSize is the smallest input that survives three 3×3 valid
// convolutions each followed by 2×2 pooling.
const MinCNNImageSize = 22

// Config is a complete run configuration.
type Config struct {
	MetadataPath string `yaml:"metadata_path"`
	ImageDir     string `yaml:"image_dir"`

	ImageSize       int      `yaml:"image_size"`
	Interpolation   string   `yaml:"interpolation"`
	SamplesPerClass int      `yaml:"samples_per_class"`
	TestFraction    float64  `yaml:"test_fraction"`
	Seed            int64    `yaml:"seed"`
	NumClasses      int      `yaml:"num_classes"`
	Classes         []string `yaml:"classes"`
	Workers         int      `yaml:"workers"`

	Architectures []string `yaml:"architectures"`
	BatchSize     int      `yaml:"batch_size"`
	Epochs        int      `yaml:"epochs"`
	LearningRate  float64  `yaml:"learning_rate"`
	Dropout       float64  `yaml:"dropout"`
	CNNFilters    []int    `yaml:"cnn_filters"`
	DenseUnits    []int    `yaml:"dense_units"`
	ClipNorm      float64  `yaml:"clip_norm"`

	ReportDir string `yaml:"report_dir"`
	ModelOut  string `yaml:"model_out"`
	MobileOut string `yaml:"mobile_out"`
	Progress  bool   `yaml:"progress"`
}

// Default returns the HAM10000 experiment settings.
func Default() *Config {
	return &Config{
		MetadataPath:    "HAM10000_metadata.csv",
		ImageDir:        "HAM10000_images",
		ImageSize:       32,
		Interpolation:   "approxbilinear",
		SamplesPerClass: 500,
		TestFraction:    0.25,
		Seed:            42,
		NumClasses:      len(HAM10000Classes),
		Classes:         append([]string(nil), HAM10000Classes...),
		Workers:         runtime.NumCPU(),
		Architectures:   append([]string(nil), DefaultArchitectures...),
		BatchSize:       16,
		Epochs:          60,
		LearningRate:    0.001,
		Dropout:         0.3,
		CNNFilters:      []int{64, 32, 16},
		DenseUnits:      []int{512, 256, 128},
		ClipNorm:        0,
		ModelOut:        "my_model.gob",
		MobileOut:       "model.dnm",
		Progress:        false,
	}
}

// Load reads a YAML file on top of Default. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewDataSourceError(path, 0, "cannot open config file", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return nil, errors.NewDataSourceError(path, 0, "invalid config file", err)
	}
	return cfg, nil
}

// Decode reads YAML from r on top of Default.
func Decode(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return cfg, nil
}

// Write encodes cfg as YAML.
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return errors.Wrap(err, "encode config")
	}
	return errors.Wrap(enc.Close(), "encode config")
}

// Validate checks every knob and returns the first ValidationError found.
func (c *Config) Validate() error {
	switch {
	case c.MetadataPath == "":
		return errors.NewValidationError("metadata_path", "must be set", c.MetadataPath)
	case c.ImageDir == "":
		return errors.NewValidationError("image_dir", "must be set", c.ImageDir)
	case c.ImageSize <= 0:
		return errors.NewValidationError("image_size", "must be positive", c.ImageSize)
	case !contains(KnownInterpolators, strings.ToLower(c.Interpolation)):
		return errors.NewValidationError("interpolation", "must be one of "+strings.Join(KnownInterpolators, ","), c.Interpolation)
	case c.SamplesPerClass <= 0:
		return errors.NewValidationError("samples_per_class", "must be positive", c.SamplesPerClass)
	case c.TestFraction <= 0 || c.TestFraction >= 1:
		return errors.NewValidationError("test_fraction", "must be in (0, 1)", c.TestFraction)
	case c.NumClasses <= 0:
		return errors.NewValidationError("num_classes", "must be positive", c.NumClasses)
	case len(c.Classes) > 0 && len(c.Classes) != c.NumClasses:
		return errors.NewValidationError("classes", "length must equal num_classes", len(c.Classes))
	case c.Workers < 0:
		return errors.NewValidationError("workers", "must not be negative", c.Workers)
	case c.BatchSize <= 0:
		return errors.NewValidationError("batch_size", "must be positive", c.BatchSize)
	case c.Epochs <= 0:
		return errors.NewValidationError("epochs", "must be positive", c.Epochs)
	case c.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", c.LearningRate)
	case c.Dropout < 0 || c.Dropout >= 1:
		return errors.NewValidationError("dropout", "must be in [0, 1)", c.Dropout)
	case c.ClipNorm < 0:
		return errors.NewValidationError("clip_norm", "must not be negative", c.ClipNorm)
	case len(c.Architectures) == 0:
		return errors.NewValidationError("architectures", "at least one is required", c.Architectures)
	}

	seen := make(map[string]bool, len(c.Classes))
	for _, cl := range c.Classes {
		if cl == "" || seen[cl] {
			return errors.NewValidationError("classes", "must be distinct and non-empty", c.Classes)
		}
		seen[cl] = true
	}
	for _, a := range c.Architectures {
		if !contains(KnownArchitectures, a) {
			return errors.NewValidationError("architectures", "must be one of "+strings.Join(KnownArchitectures, ","), a)
		}
	}
	if len(c.CNNFilters) != 3 || !allPositive(c.CNNFilters) {
		return errors.NewValidationError("cnn_filters", "need three positive widths", c.CNNFilters)
	}
	if len(c.DenseUnits) != 3 || !allPositive(c.DenseUnits) {
		return errors.NewValidationError("dense_units", "need three positive widths", c.DenseUnits)
	}
	if c.ImageSize < MinCNNImageSize && contains(c.Architectures, "cnn") {
		return errors.NewValidationError("image_size", "cnn needs at least 22 pixels for three conv/pool blocks", c.ImageSize)
	}
	return nil
}

// EffectiveWorkers returns Workers, or the CPU count when it is zero.
func (c *Config) EffectiveWorkers() int {
	if c.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.Workers
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func allPositive(v []int) bool {
	for _, x := range v {
		if x <= 0 {
			return false
		}
	}
	return true
}
