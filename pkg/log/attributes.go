// Package log defines standard attribute keys for pipeline and training logs.
//
// Keys follow a hierarchical naming convention ("data.samples",
// "record.id") so that log lines from every stage can be filtered the same way.

package log

// Operation context
const (
	// ComponentKey identifies the package emitting the record.
	// Examples: "dataset", "training", "export"
	ComponentKey = "ml.component"

	// StageKey identifies the pipeline stage.
	StageKey = "ml.stage"

	// OperationKey specifies the ML operation being performed.
	OperationKey = "ml.operation"

	// PhaseKey indicates the lifecycle phase.
	PhaseKey = "ml.phase"

	// ModelNameKey identifies an architecture, e.g. "cnn".
	ModelNameKey = "model.name"

	// ParamsKey records the number of trainable parameters.
	ParamsKey = "model.params"
)

// Data shape and provenance
const (
	// SamplesKey is the number of rows in the dataset at this stage.
	SamplesKey = "data.samples"

	// FeaturesKey is the flattened width of an image row.
	FeaturesKey = "data.features"

	// ClassesKey is the number of encoded classes.
	ClassesKey = "data.classes"

	// ShapeKey is a tensor shape such as [3500 32 32 3].
	ShapeKey = "data.shape"

	// DataSizeKey is a memory size in bytes.
	DataSizeKey = "data.size_bytes"

	// DataSizeHumanKey is DataSizeKey formatted for humans.
	DataSizeHumanKey = "data.size"

	// BatchSizeKey is the mini-batch size.
	BatchSizeKey = "data.batch_size"

	// PathKey is a file or directory path.
	PathKey = "data.path"

	// ColumnKey names a metadata column.
	ColumnKey = "data.column"

	// RecordIDKey identifies a lesion record by image id.
	RecordIDKey = "record.id"

	// ClassKey is a diagnosis code.
	ClassKey = "class.code"

	// LabelKey is an encoded class index.
	LabelKey = "class.label"

	// CountKey is a per-class or per-value count.
	CountKey = "class.count"
)

// Performance and training metrics
const (
	// DurationMsKey is the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// WorkersKey is the degree of parallelism.
	WorkersKey = "perf.workers"

	// AccuracyKey is classification accuracy in [0, 1].
	AccuracyKey = "metrics.accuracy"

	// LossKey is the mean loss.
	LossKey = "metrics.loss"

	// ValAccuracyKey is holdout accuracy measured at the end of an epoch.
	ValAccuracyKey = "metrics.val_accuracy"

	// ValLossKey is holdout loss measured at the end of an epoch.
	ValLossKey = "metrics.val_loss"

	// RecallKey is per-class recall on the holdout.
	RecallKey = "metrics.recall"

	// PrecisionKey is per-class precision on the holdout.
	PrecisionKey = "metrics.precision"

	// ConfusionRowKey is one row of a confusion matrix: predicted counts for a true class.
	ConfusionRowKey = "metrics.confusion_row"

	// EpochKey is the 1-based epoch number.
	EpochKey = "training.epoch"

	// EpochsKey is the epoch budget.
	EpochsKey = "training.epochs"

	// LearningRateKey is the optimizer step size.
	LearningRateKey = "hyperparams.learning_rate"

	// RandomSeedKey is the seed used for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Error context
const (
	// ErrAttrKey carries the error value itself.
	ErrAttrKey = "error"

	// ErrorTypeKey categorizes the failure.
	ErrorTypeKey = "error.type"

	// StacktraceKey holds the stack extracted from a cockroachdb error.
	StacktraceKey = "error.stacktrace"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationEvaluate  = "evaluate"
	OperationExport    = "export"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"

	StageMetadata = "metadata"
	StageEncode   = "encode"
	StageBalance  = "balance"
	StageImages   = "images"
	StageAssemble = "assemble"
	StageSplit    = "split"
	StageTrain    = "train"
	StageCompare  = "compare"
	StageExport   = "export"
)
