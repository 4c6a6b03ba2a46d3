// Package training fits classifiers on a prepared split and compares them.
package training

import (
	"context"
	"math/rand"
	"time"

	"github.com/YuminosukeSato/dermnet/core/model"
	"github.com/YuminosukeSato/dermnet/dataset"
	"github.com/YuminosukeSato/dermnet/nn"
	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"github.com/YuminosukeSato/dermnet/pkg/log"
	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/gonum/mat"
)

// Trainer fits one model on a train/test split.
type Trainer interface {
	Name() string
	Fit(ctx context.Context, split *dataset.Split) (*Result, error)
}

// EpochStats are the metrics recorded after one epoch.
type EpochStats struct {
	Epoch       int
	Loss        float64
	Accuracy    float64
	ValLoss     float64
	ValAccuracy float64
}

// Result is a fitted model and its holdout score.
type Result struct {
	Name         string
	Model        model.Classifier
	TestAccuracy float64
	TestLoss     float64
	History      []EpochStats
	Duration     time.Duration
}

// Network returns the fitted network when Model is one.
func (r *Result) Network() (*nn.Network, bool) {
	net, ok := r.Model.(*nn.Network)
	return net, ok
}

// Config holds the optimisation settings shared by network trainers.
type Config struct {
	BatchSize    int
	Epochs       int
	LearningRate float64
	ClipNorm     float64
	Seed         int64
	Progress     bool
}

// NetworkTrainer trains one of the built-in architectures with mini-batch Adam
// on softmax cross-entropy, validating on the holdout after every epoch.
type NetworkTrainer struct {
	Arch    string
	Options nn.ArchOptions
	Config  Config
	Logger  log.Logger
}

// NewNetworkTrainer creates a trainer for the named architecture.
func NewNetworkTrainer(arch string, opts nn.ArchOptions, cfg Config) *NetworkTrainer {
	return &NetworkTrainer{Arch: arch, Options: opts, Config: cfg}
}

// Name returns the architecture name.
func (t *NetworkTrainer) Name() string { return t.Arch }

func (t *NetworkTrainer) logger() log.Logger {
	l := t.Logger
	if l == nil {
		l = log.GetLogger()
	}
	return l.With(log.ComponentKey, "training", log.ModelNameKey, t.Arch)
}

// Fit builds and trains the network. It stops early on context cancellation
// or a non-finite loss; panics in the numeric code are returned as errors.
func (t *NetworkTrainer) Fit(ctx context.Context, split *dataset.Split) (res *Result, err error) {
	defer errors.Recover(&err, "NetworkTrainer.Fit")

	cfg := t.Config
	switch {
	case cfg.BatchSize <= 0:
		return nil, errors.NewValidationError("batch_size", "must be positive", cfg.BatchSize)
	case cfg.Epochs <= 0:
		return nil, errors.NewValidationError("epochs", "must be positive", cfg.Epochs)
	case cfg.LearningRate <= 0:
		return nil, errors.NewValidationError("learning_rate", "must be positive", cfg.LearningRate)
	}

	logger := t.logger()
	input := nn.Shape{H: split.XTrain.Height, W: split.XTrain.Width, C: split.XTrain.Channels}
	net, err := nn.NewArchitecture(t.Arch, input, split.NumClasses(), t.Options)
	if err != nil {
		return nil, err
	}
	if err := net.Build(cfg.Seed); err != nil {
		return nil, err
	}
	logBuilt(logger, net)

	opt := nn.NewAdam(cfg.LearningRate)
	opt.ClipNorm = cfg.ClipNorm
	rng := rand.New(rand.NewSource(cfg.Seed))

	xTrain, yTrain := split.XTrain.Data, split.YTrain
	xTest, yTest := split.XTest.Data, split.YTest
	n, _ := xTrain.Dims()

	var bar *progressbar.ProgressBar
	if cfg.Progress {
		bar = progressbar.Default(int64(cfg.Epochs), "training "+t.Arch)
		defer bar.Close()
	}

	start := time.Now()
	history := make([]EpochStats, 0, cfg.Epochs)
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		epochStart := time.Now()
		perm := rng.Perm(n)
		var lossSum float64
		correct := 0
		for b := 0; b < n; b += cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrapf(err, "%s training interrupted at epoch %d", t.Arch, epoch)
			}
			end := b + cfg.BatchSize
			if end > n {
				end = n
			}
			idx := perm[b:end]
			loss, c, err := net.TrainBatch(gatherRows(xTrain, idx), gatherRows(yTrain, idx), opt)
			if err != nil {
				return nil, errors.Wrapf(err, "%s epoch %d", t.Arch, epoch)
			}
			if err := errors.CheckScalar(t.Arch+".loss", loss, opt.Iterations()); err != nil {
				return nil, err
			}
			lossSum += loss * float64(len(idx))
			correct += c
		}

		valLoss, valAcc, err := net.Evaluate(xTest, yTest)
		if err != nil {
			return nil, errors.Wrapf(err, "%s validation at epoch %d", t.Arch, epoch)
		}
		stats := EpochStats{
			Epoch:       epoch,
			Loss:        lossSum / float64(n),
			Accuracy:    float64(correct) / float64(n),
			ValLoss:     valLoss,
			ValAccuracy: valAcc,
		}
		history = append(history, stats)
		logger.Info("epoch finished",
			log.EpochKey, epoch,
			log.EpochsKey, cfg.Epochs,
			log.LossKey, stats.Loss,
			log.AccuracyKey, stats.Accuracy,
			log.ValLossKey, stats.ValLoss,
			log.ValAccuracyKey, stats.ValAccuracy,
			log.DurationMsKey, time.Since(epochStart).Milliseconds(),
		)
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	if len(history) > 1 && history[len(history)-1].Loss >= history[0].Loss {
		errors.Warn(errors.NewConvergenceWarning(t.Arch, cfg.Epochs, "training loss did not decrease"))
	}

	last := history[len(history)-1]
	res = &Result{
		Name:         t.Arch,
		Model:        net,
		TestAccuracy: last.ValAccuracy,
		TestLoss:     last.ValLoss,
		History:      history,
		Duration:     time.Since(start),
	}
	logger.Info("model evaluated",
		log.AccuracyKey, res.TestAccuracy,
		log.LossKey, res.TestLoss,
		log.DurationMsKey, res.Duration.Milliseconds(),
	)
	return res, nil
}

func gatherRows(m *mat.Dense, idx []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, src := range idx {
		copy(out.RawRowView(i), m.RawRowView(src))
	}
	return out
}

// FitAll runs every trainer in order and stops at the first failure.
func FitAll(ctx context.Context, trainers []Trainer, split *dataset.Split) ([]*Result, error) {
	results := make([]*Result, 0, len(trainers))
	for _, tr := range trainers {
		res, err := tr.Fit(ctx, split)
		if err != nil {
			return nil, errors.Wrapf(err, "train %s", tr.Name())
		}
		results = append(results, res)
	}
	return results, nil
}

// logBuilt reports a model's size, and its layer table at debug level when
// the model can describe itself.
func logBuilt(logger log.Logger, m model.Classifier) {
	s, ok := m.(model.Summarizer)
	if !ok {
		logger.Info("model built", log.ClassesKey, m.NumClasses())
		return
	}
	logger.Info("model built", log.ParamsKey, s.NumParams(), log.ClassesKey, m.NumClasses())
	logger.Debug(s.Summary())
}
