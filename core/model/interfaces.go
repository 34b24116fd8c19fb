package model

import "gonum.org/v1/gonum/mat"

// Fitter is implemented by estimators that learn from labeled data.
type Fitter interface {
	// Fit trains the estimator. y must be a column vector of class codes.
	Fit(X, y mat.Matrix) error
}

// Predictor is implemented by estimators that produce predictions.
type Predictor interface {
	// Predict returns an n×1 matrix of predicted class codes.
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Scorer reports a single-number quality score for labeled data. For
// classifiers the score is mean accuracy.
type Scorer interface {
	Score(X, y mat.Matrix) (float64, error)
}

// Classifier is the full surface the pipeline expects from each of the three
// models (KNN, logistic regression, linear SVC).
type Classifier interface {
	Fitter
	Predictor
	Scorer

	// PredictProba returns an n×nClasses matrix of class probabilities, with
	// columns ordered as Classes().
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the sorted unique class codes seen during fitting.
	Classes() []int
}

// Transformer is implemented by preprocessing steps (scalers, encoders,
// imputers).
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter exposes hyperparameters for reporting and persistence.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}
