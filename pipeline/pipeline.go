// Package pipeline wires the stages together: metadata, label encoding,
// balancing, image loading, assembly and split, then training, comparison
// and export. Every stage runs to completion before the next one starts and
// the first failure aborts the run.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/dermnet/config"
	"github.com/YuminosukeSato/dermnet/dataset"
	"github.com/YuminosukeSato/dermnet/export"
	"github.com/YuminosukeSato/dermnet/linear"
	"github.com/YuminosukeSato/dermnet/metrics"
	"github.com/YuminosukeSato/dermnet/nn"
	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"github.com/YuminosukeSato/dermnet/pkg/log"
	"github.com/YuminosukeSato/dermnet/preprocessing"
	"github.com/YuminosukeSato/dermnet/report"
	"github.com/YuminosukeSato/dermnet/training"
)

// samplesPerRow is the number of images per class in the sample grid.
const samplesPerRow = 5

// Prepared is the output of the data-preparation stages.
type Prepared struct {
	Metadata []dataset.Record
	Encoder  *preprocessing.LabelEncoder
	// Balanced holds the resampled records with their images loaded, in the
	// row order of Dataset.
	Balanced []dataset.Record
	Dataset  *dataset.Dataset
	Split    *dataset.Split
}

// Outcome is the output of a full run.
type Outcome struct {
	*Prepared
	Results    []*training.Result
	Comparison *training.Comparison
	// Confusion is the best model's confusion matrix on the holdout.
	Confusion *metrics.ConfusionMatrix
	Bundle    *export.Bundle
}

// Pipeline runs the stages with one configuration.
type Pipeline struct {
	Config *config.Config
	Logger log.Logger

	// Trainers overrides the trainers built from Config.Architectures.
	Trainers []training.Trainer
}

// New validates cfg and returns a pipeline for it.
func New(cfg *config.Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{Config: cfg, Logger: log.Component("pipeline")}, nil
}

func (p *Pipeline) stage(name string, fn func() error) error {
	start := time.Now()
	p.Logger.Debug("stage started", log.StageKey, name)
	if err := fn(); err != nil {
		p.Logger.Error("stage failed", log.StageKey, name, log.ErrAttrKey, err)
		return err
	}
	p.Logger.Info("stage finished", log.StageKey, name, log.DurationMsKey, time.Since(start).Milliseconds())
	return nil
}

// Prepare loads the metadata and images and produces the train/test split.
func (p *Pipeline) Prepare(ctx context.Context) (*Prepared, error) {
	cfg := p.Config
	out := &Prepared{}

	err := p.stage(log.StageMetadata, func() error {
		records, err := dataset.LoadMetadata(cfg.MetadataPath)
		out.Metadata = records
		return err
	})
	if err != nil {
		return nil, err
	}

	var encoded []dataset.Record
	err = p.stage(log.StageEncode, func() error {
		enc, err := dataset.FitEncoder(out.Metadata, cfg.Classes)
		if err != nil {
			return err
		}
		if enc.NumClasses() != cfg.NumClasses {
			return errors.NewValidationError("num_classes",
				"does not match the classes in "+cfg.MetadataPath+": "+enc.String(), cfg.NumClasses)
		}
		out.Encoder = enc
		encoded, err = dataset.EncodeLabels(out.Metadata, enc)
		return err
	})
	if err != nil {
		return nil, err
	}

	var balanced []dataset.Record
	err = p.stage(log.StageBalance, func() error {
		var err error
		balanced, err = dataset.Balance(encoded, cfg.NumClasses, cfg.SamplesPerClass, cfg.Seed)
		var empty *errors.EmptyClassError
		if errors.As(err, &empty) && empty.Class == "" {
			code, _ := out.Encoder.Code(empty.Label)
			return errors.NewEmptyClassError(empty.Label, code)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(log.StageImages, func() error {
		ix, err := dataset.IndexImages(cfg.ImageDir)
		if err != nil {
			return err
		}
		resolved, err := dataset.ResolvePaths(balanced, ix)
		if err != nil {
			return err
		}
		resizer, err := dataset.NewResizer(cfg.ImageSize, cfg.Interpolation)
		if err != nil {
			return err
		}
		out.Balanced, err = dataset.LoadImages(ctx, resolved, resizer, dataset.LoadOptions{
			Workers:  cfg.EffectiveWorkers(),
			Progress: cfg.Progress,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(log.StageAssemble, func() error {
		ds, err := dataset.Assemble(out.Balanced, cfg.ImageSize, cfg.NumClasses)
		out.Dataset = ds
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(log.StageSplit, func() error {
		split, err := out.Dataset.Split(cfg.TestFraction, cfg.Seed)
		out.Split = split
		return err
	})
	if err != nil {
		return nil, err
	}

	if cfg.ReportDir != "" {
		if err := p.writeDataReports(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *Pipeline) writeDataReports(prep *Prepared) error {
	dir := p.Config.ReportDir
	if _, err := report.WriteDistributions(dir, prep.Metadata); err != nil {
		return err
	}
	ages := report.Ages(prep.Metadata)
	p.Logger.Info("age distribution",
		log.SamplesKey, ages.Count,
		"age.missing", ages.Missing,
		"age.mean", ages.Mean,
		"age.stddev", ages.StdDev,
	)
	return report.WriteSampleGrid(filepath.Join(dir, "samples.png"), prep.Balanced, samplesPerRow, report.SampleGridSeed)
}

// NewTrainers builds one trainer per configured architecture. The logreg
// baseline runs one full-batch step per epoch.
func NewTrainers(cfg *config.Config) []training.Trainer {
	opts := nn.DefaultArchOptions()
	opts.Filters = append([]int(nil), cfg.CNNFilters...)
	opts.Units = append([]int(nil), cfg.DenseUnits...)
	opts.Dropout = cfg.Dropout
	tc := training.Config{
		BatchSize:    cfg.BatchSize,
		Epochs:       cfg.Epochs,
		LearningRate: cfg.LearningRate,
		ClipNorm:     cfg.ClipNorm,
		Seed:         cfg.Seed,
		Progress:     cfg.Progress,
	}
	trainers := make([]training.Trainer, len(cfg.Architectures))
	for i, arch := range cfg.Architectures {
		if arch == training.LogReg {
			trainers[i] = training.NewLinearTrainer(
				linear.WithMaxIter(cfg.Epochs),
				linear.WithRandomState(cfg.Seed),
			)
			continue
		}
		trainers[i] = training.NewNetworkTrainer(arch, opts, tc)
	}
	return trainers
}

// Train fits every trainer on prep, ranks the results and exports the best
// model to Config.ModelOut and Config.MobileOut when they are set.
func (p *Pipeline) Train(ctx context.Context, prep *Prepared) (*Outcome, error) {
	cfg := p.Config
	out := &Outcome{Prepared: prep}
	trainers := p.Trainers
	if trainers == nil {
		trainers = NewTrainers(cfg)
	}

	err := p.stage(log.StageTrain, func() error {
		results, err := training.FitAll(ctx, trainers, prep.Split)
		out.Results = results
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(log.StageCompare, func() error {
		c, err := training.Compare(out.Results)
		if err != nil {
			return err
		}
		out.Comparison = c
		out.Confusion, err = p.holdoutConfusion(c.Best(), prep)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(log.StageExport, func() error {
		b, err := export.NewBundle(out.Comparison.Best(), prep.Encoder.Classes(), cfg.ImageSize, cfg.Interpolation)
		if err != nil {
			return err
		}
		out.Bundle = b
		if cfg.ModelOut != "" {
			if err := ensureDir(cfg.ModelOut); err != nil {
				return err
			}
			if err := export.SaveBundle(cfg.ModelOut, b); err != nil {
				return err
			}
		}
		if cfg.MobileOut != "" {
			if err := ensureDir(cfg.MobileOut); err != nil {
				return err
			}
			if err := export.SaveMobile(cfg.MobileOut, b); err != nil {
				return err
			}
		}
		if cfg.ReportDir != "" {
			return report.WriteAccuracy(filepath.Join(cfg.ReportDir, "accuracy.png"), out.Comparison)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// holdoutConfusion scores best on the test split and logs one line per class.
func (p *Pipeline) holdoutConfusion(best *training.Result, prep *Prepared) (*metrics.ConfusionMatrix, error) {
	pred, err := best.Model.Predict(prep.Split.XTest.Data)
	if err != nil {
		return nil, err
	}
	k := prep.Encoder.NumClasses()
	cm, err := metrics.NewConfusionMatrix(metrics.ArgMax(prep.Split.YTest), pred, k)
	if err != nil {
		return nil, err
	}
	recall, precision := cm.Recall(), cm.Precision()
	for i, code := range prep.Encoder.Classes() {
		row := make([]int, k)
		for j := range row {
			row[j] = int(cm.Counts.At(i, j))
		}
		p.Logger.Info("holdout class",
			log.ModelNameKey, best.Name,
			log.ClassKey, code,
			log.LabelKey, i,
			log.RecallKey, recall[i],
			log.PrecisionKey, precision[i],
			log.ConfusionRowKey, row,
		)
	}
	return cm, nil
}

// Run prepares the data and trains.
func (p *Pipeline) Run(ctx context.Context) (*Outcome, error) {
	prep, err := p.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	return p.Train(ctx, prep)
}

func ensureDir(file string) error {
	dir := filepath.Dir(file)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	return nil
}
