package log

// Standard attribute keys for pipeline logging. Keeping the keys hierarchical
// ("model.name", "data.samples") makes the JSON logs filterable.
const (
	// ModelNameKey identifies the estimator type, e.g. "KNNClassifier".
	ModelNameKey = "model.name"

	// OperationKey names the operation: "fit", "predict", "transform", "score".
	OperationKey = "ml.operation"

	// PhaseKey marks the pipeline phase: "audit", "preprocessing", "training",
	// "evaluation", "serving".
	PhaseKey = "ml.phase"

	// SamplesKey is the number of rows being processed.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of feature columns.
	FeaturesKey = "data.features"

	// DatasetKey is the dataset file path.
	DatasetKey = "data.path"

	// DurationMsKey is the elapsed time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey is the held-out accuracy of a fitted model.
	AccuracyKey = "metrics.accuracy"

	// IterationKey is the solver iteration count reached during fitting.
	IterationKey = "training.iteration"
)
