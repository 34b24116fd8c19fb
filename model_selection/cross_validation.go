package model_selection

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/edustats/dropout/core/model"
	"github.com/edustats/dropout/metrics"
	"github.com/edustats/dropout/pkg/errors"
)

// Scoring metric names accepted by CrossValidate.
const (
	MetricAccuracy = "accuracy"
	MetricF1Macro  = "f1_macro"
)

// Splitter yields cross-validation folds for a dataset.
type Splitter interface {
	Split(X, y mat.Matrix) ([]Fold, error)
}

// CVResult holds the per-fold scores of a cross-validation run.
type CVResult struct {
	Metric string
	Scores []float64
}

// Mean returns the average fold score.
func (r *CVResult) Mean() float64 {
	var sum float64
	for _, s := range r.Scores {
		sum += s
	}
	return sum / float64(len(r.Scores))
}

// Std returns the population standard deviation of the fold scores.
func (r *CVResult) Std() float64 {
	mean := r.Mean()
	var sqSum float64
	for _, s := range r.Scores {
		d := s - mean
		sqSum += d * d
	}
	return math.Sqrt(sqSum / float64(len(r.Scores)))
}

// CrossValidate fits a fresh classifier per fold and scores it on the fold's
// held-out samples. newClassifier must return an unfitted estimator each
// call so folds don't leak state into each other.
func CrossValidate(newClassifier func() model.Classifier, X, y mat.Matrix, splitter Splitter, metric string) (*CVResult, error) {
	if metric == "" {
		metric = MetricAccuracy
	}
	if metric != MetricAccuracy && metric != MetricF1Macro {
		return nil, errors.NewValidationError("metric", "must be accuracy or f1_macro", metric)
	}

	folds, err := splitter.Split(X, y)
	if err != nil {
		return nil, err
	}

	result := &CVResult{Metric: metric, Scores: make([]float64, 0, len(folds))}
	for _, fold := range folds {
		XTrain, yTrain := Subset(X, y, fold.TrainIndices)
		XTest, yTest := Subset(X, y, fold.TestIndices)

		clf := newClassifier()
		if err := clf.Fit(XTrain, yTrain); err != nil {
			return nil, errors.Wrap(err, "cross-validation fold fit failed")
		}

		score, err := scoreFold(clf, XTest, yTest, metric)
		if err != nil {
			return nil, err
		}
		result.Scores = append(result.Scores, score)
	}
	return result, nil
}

func scoreFold(clf model.Classifier, XTest, yTest mat.Matrix, metric string) (float64, error) {
	preds, err := clf.Predict(XTest)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.Vec(yTest)
	if err != nil {
		return 0, err
	}
	yPred, err := metrics.Vec(preds)
	if err != nil {
		return 0, err
	}

	switch metric {
	case MetricF1Macro:
		return metrics.MacroF1(yTrue, yPred)
	default:
		return metrics.Accuracy(yTrue, yPred)
	}
}
