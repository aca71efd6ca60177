// Package log defines standard attribute keys for pipeline and estimator
// logging. Keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples") so log output can be filtered per concern.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the model family or estimator type.
	// Examples: "knn_classifier", "gbm_binary", "KNeighborsRegressor"
	ModelNameKey = "model.name"

	// EstimatorIDKey provides a unique identifier for a specific model instance.
	EstimatorIDKey = "estimator.id"

	// OperationKey specifies the machine learning operation being performed.
	// Standard values: "fit", "predict", "transform", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the model lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// ClassesKey indicates the number of distinct target classes.
	ClassesKey = "data.classes"
)

// Pipeline Context
const (
	// RunIDKey identifies one pipeline run; every record of a run carries it.
	RunIDKey = "run.id"

	// StageKey names the pipeline stage: "load", "normalize", "merge", ...
	StageKey = "pipeline.stage"

	// SourceKey names the input table a record refers to.
	SourceKey = "pipeline.source"

	// RowsInKey and RowsOutKey record the row counts around a stage.
	RowsInKey  = "pipeline.rows_in"
	RowsOutKey = "pipeline.rows_out"

	// TargetKey names the target column used for a model.
	TargetKey = "pipeline.target"
)

// Performance and Selection Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records model accuracy for evaluation operations.
	AccuracyKey = "metrics.accuracy"

	// ScoreKey records a cross-validation or grid-scan score.
	ScoreKey = "metrics.score"

	// ScoringKey names the metric used for model selection.
	ScoringKey = "metrics.scoring"

	// FoldKey records the cross-validation fold index.
	FoldKey = "cv.fold"

	// HyperParamsKey contains hyperparameters of a candidate.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Error Context
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhasePreprocessing = "preprocessing"
)
