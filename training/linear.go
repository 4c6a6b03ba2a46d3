package training

import (
	"context"
	"time"

	"github.com/YuminosukeSato/dermnet/dataset"
	"github.com/YuminosukeSato/dermnet/linear"
	"github.com/YuminosukeSato/dermnet/metrics"
	"github.com/YuminosukeSato/dermnet/nn"
	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"github.com/YuminosukeSato/dermnet/pkg/log"
)

// LogReg names the softmax regression baseline.
const LogReg = "logreg"

// LinearTrainer fits a multinomial logistic regression on the raw pixel rows.
// The fitted model is returned as an equivalent network so it can be
// compared and exported like the others.
type LinearTrainer struct {
	Options []linear.Option
	Logger  log.Logger
}

// NewLinearTrainer creates the baseline trainer.
func NewLinearTrainer(opts ...linear.Option) *LinearTrainer {
	return &LinearTrainer{Options: opts}
}

// Name returns LogReg.
func (t *LinearTrainer) Name() string { return LogReg }

// Fit trains on split.XTrain and scores on split.XTest.
func (t *LinearTrainer) Fit(ctx context.Context, split *dataset.Split) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "logreg training interrupted")
	}
	logger := t.Logger
	if logger == nil {
		logger = log.GetLogger()
	}
	logger = logger.With(log.ComponentKey, "training", log.ModelNameKey, LogReg)

	start := time.Now()
	m := linear.NewSoftmaxRegression(t.Options...)
	if err := m.Fit(split.XTrain.Data, split.YTrain); err != nil {
		return nil, err
	}

	input := nn.Shape{H: split.XTrain.Height, W: split.XTrain.Width, C: split.XTrain.Channels}
	logBuilt(logger, m)
	net, err := m.ToNetwork(LogReg, input)
	if err != nil {
		return nil, err
	}

	trainProba, err := m.PredictProba(split.XTrain.Data)
	if err != nil {
		return nil, err
	}
	testProba, err := m.PredictProba(split.XTest.Data)
	if err != nil {
		return nil, err
	}
	stats := EpochStats{Epoch: m.NIter}
	if stats.Loss, err = metrics.CategoricalCrossEntropy(split.YTrain, trainProba); err != nil {
		return nil, err
	}
	if stats.Accuracy, err = metrics.CategoricalAccuracy(split.YTrain, trainProba); err != nil {
		return nil, err
	}
	if stats.ValLoss, err = metrics.CategoricalCrossEntropy(split.YTest, testProba); err != nil {
		return nil, err
	}
	if stats.ValAccuracy, err = metrics.CategoricalAccuracy(split.YTest, testProba); err != nil {
		return nil, err
	}

	res := &Result{
		Name:         LogReg,
		Model:        net,
		TestAccuracy: stats.ValAccuracy,
		TestLoss:     stats.ValLoss,
		History:      []EpochStats{stats},
		Duration:     time.Since(start),
	}
	logger.Info("model evaluated",
		log.EpochsKey, m.NIter,
		log.LossKey, stats.Loss,
		log.AccuracyKey, res.TestAccuracy,
		log.ValLossKey, res.TestLoss,
		log.DurationMsKey, res.Duration.Milliseconds(),
	)
	return res, nil
}
