package main

import (
	"github.com/YuminosukeSato/dermnet/config"
	"github.com/spf13/pflag"
)

// dataFlags are the config knobs exposed on the command line. They are bound
// to a scratch config and copied over the loaded one only when set, so an
// unset flag never hides a config file value.
type dataFlags struct {
	v config.Config
}

func (f *dataFlags) register(fs *pflag.FlagSet, training bool) {
	d := config.Default()
	fs.StringVar(&f.v.MetadataPath, "metadata", d.MetadataPath, "HAM10000 metadata CSV")
	fs.StringVar(&f.v.ImageDir, "images", d.ImageDir, "directory holding the lesion images")
	fs.IntVar(&f.v.ImageSize, "image-size", d.ImageSize, "side length images are resized to")
	fs.StringVar(&f.v.Interpolation, "interpolation", d.Interpolation, "resize kernel: nearest, approxbilinear, bilinear, catmullrom")
	fs.IntVar(&f.v.SamplesPerClass, "samples-per-class", d.SamplesPerClass, "records drawn per class when balancing")
	fs.Float64Var(&f.v.TestFraction, "test-fraction", d.TestFraction, "holdout fraction")
	fs.Int64Var(&f.v.Seed, "seed", d.Seed, "seed for balancing, splitting and training")
	fs.IntVar(&f.v.NumClasses, "num-classes", d.NumClasses, "number of diagnosis classes")
	fs.StringSliceVar(&f.v.Classes, "classes", d.Classes, "declared diagnosis codes; empty uses the codes found in the metadata")
	fs.IntVar(&f.v.Workers, "workers", d.Workers, "concurrent image decoders, 0 for one per CPU")
	fs.StringVar(&f.v.ReportDir, "report-dir", d.ReportDir, "write charts and the sample grid here")
	fs.BoolVar(&f.v.Progress, "progress", d.Progress, "show progress bars")
	if !training {
		return
	}
	fs.StringSliceVar(&f.v.Architectures, "arch", d.Architectures, "architectures to train: cnn, ann, fnn")
	fs.IntVar(&f.v.BatchSize, "batch-size", d.BatchSize, "mini-batch size")
	fs.IntVar(&f.v.Epochs, "epochs", d.Epochs, "training epochs")
	fs.Float64Var(&f.v.LearningRate, "learning-rate", d.LearningRate, "Adam learning rate")
	fs.Float64Var(&f.v.Dropout, "dropout", d.Dropout, "dropout rate after every block")
	fs.IntSliceVar(&f.v.CNNFilters, "cnn-filters", d.CNNFilters, "filters of the three convolution blocks")
	fs.IntSliceVar(&f.v.DenseUnits, "dense-units", d.DenseUnits, "units of the three dense blocks")
	fs.Float64Var(&f.v.ClipNorm, "clip-norm", d.ClipNorm, "global gradient norm limit, 0 disables clipping")
	fs.StringVar(&f.v.ModelOut, "model-out", d.ModelOut, "model bundle path, empty to skip")
	fs.StringVar(&f.v.MobileOut, "mobile-out", d.MobileOut, "quantized mobile artifact path, empty to skip")
}

// apply copies every flag the user set onto cfg.
func (f *dataFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	set := map[string]func(){
		"metadata":          func() { cfg.MetadataPath = f.v.MetadataPath },
		"images":            func() { cfg.ImageDir = f.v.ImageDir },
		"image-size":        func() { cfg.ImageSize = f.v.ImageSize },
		"interpolation":     func() { cfg.Interpolation = f.v.Interpolation },
		"samples-per-class": func() { cfg.SamplesPerClass = f.v.SamplesPerClass },
		"test-fraction":     func() { cfg.TestFraction = f.v.TestFraction },
		"seed":              func() { cfg.Seed = f.v.Seed },
		"num-classes":       func() { cfg.NumClasses = f.v.NumClasses },
		"classes":           func() { cfg.Classes = f.v.Classes },
		"workers":           func() { cfg.Workers = f.v.Workers },
		"report-dir":        func() { cfg.ReportDir = f.v.ReportDir },
		"progress":          func() { cfg.Progress = f.v.Progress },
		"arch":              func() { cfg.Architectures = f.v.Architectures },
		"batch-size":        func() { cfg.BatchSize = f.v.BatchSize },
		"epochs":            func() { cfg.Epochs = f.v.Epochs },
		"learning-rate":     func() { cfg.LearningRate = f.v.LearningRate },
		"dropout":           func() { cfg.Dropout = f.v.Dropout },
		"cnn-filters":       func() { cfg.CNNFilters = f.v.CNNFilters },
		"dense-units":       func() { cfg.DenseUnits = f.v.DenseUnits },
		"clip-norm":         func() { cfg.ClipNorm = f.v.ClipNorm },
		"model-out":         func() { cfg.ModelOut = f.v.ModelOut },
		"mobile-out":        func() { cfg.MobileOut = f.v.MobileOut },
	}
	fs.Visit(func(fl *pflag.Flag) {
		if fn, ok := set[fl.Name]; ok {
			fn()
		}
	})
}

// resolveConfig loads the config file, or the defaults without one, and
// applies the flags on top.
func resolveConfig(path string, fs *pflag.FlagSet, f *dataFlags) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	f.apply(fs, cfg)
	return cfg, nil
}
