// Package log defines standard attribute keys for pipeline operations.
//
// Keys follow a hierarchical naming convention ("model.name", "data.samples")
// so that records from the loader, the feature stages, the solver and the
// cross-validator can be filtered together.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator or stage type.
	// Examples: "PoissonRegressor", "OneHotEncode", "NormalizeMinMax"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "score", "save", "load"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	// Examples: "pipeline", "model_selection", "linear_model"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the run.
	PhaseKey = "ml.phase"

	// RunIDKey is the identifier stamped on every record of one training run
	// and embedded in the saved artifact.
	RunIDKey = "run.id"

	// StageKey names a feature stage in the pipeline.
	StageKey = "pipeline.stage"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of rows in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the width of the feature vector.
	FeaturesKey = "data.features"

	// PathKey is the file path being read or written.
	PathKey = "data.path"

	// FractionKey is the test fraction of a train/test split.
	FractionKey = "data.test_fraction"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// LossKey records the final objective value of the solver.
	LossKey = "metrics.loss"

	// R2ScoreKey records R² coefficient of determination for regression.
	// Range typically [-∞, 1.0], with 1.0 being perfect prediction.
	R2ScoreKey = "metrics.r2_score"

	// MAEKey records the mean absolute error.
	MAEKey = "metrics.mae"

	// RMSEKey records the root mean squared error.
	RMSEKey = "metrics.rmse"

	// IterationKey records the number of solver iterations.
	IterationKey = "training.iteration"

	// FoldKey records the cross-validation fold index.
	FoldKey = "training.fold"
)

// Error and Configuration Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// ConfigVersionKey tracks the artifact format version.
	ConfigVersionKey = "config.version"
)

// Standard attribute value constants.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"
	OperationSave      = "save"
	OperationLoad      = "load"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhasePreprocessing = "preprocessing"

	ErrorEmptyData   = "EMPTY_DATA"
	ErrorConvergence = "CONVERGENCE_FAILURE"
)
