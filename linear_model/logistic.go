// Package linear_model implements logistic regression for dropout
// classification.
package linear_model

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/edustats/dropout/core/model"
	"github.com/edustats/dropout/pkg/errors"
)

// LogisticRegression is a linear classifier fitted by full-batch gradient
// descent with an adaptive learning rate. Binary problems train a single
// weight vector; multiclass problems train one-vs-rest.
type LogisticRegression struct {
	State *model.StateManager

	// Hyperparameters
	Penalty      string  // "l2" or "none"
	C            float64 // inverse regularization strength
	FitIntercept bool
	MaxIter      int
	Tol          float64
	RandomState  int64 // seed for weight initialization, -1 for nondeterministic

	// Fitted parameters, public for gob encoding. Coef has one row per
	// classifier: a single row for binary problems, one per class for OVR.
	Coef      [][]float64
	Intercept []float64
	ClassSet  []int
	NIter     []int

	rng *rand.Rand
}

// Option is a functional option for LogisticRegression.
type Option func(*LogisticRegression)

// WithPenalty sets the regularization type: "l2" (default) or "none".
func WithPenalty(penalty string) Option {
	return func(lr *LogisticRegression) { lr.Penalty = penalty }
}

// WithC sets the inverse regularization strength (default 1.0).
func WithC(c float64) Option {
	return func(lr *LogisticRegression) { lr.C = c }
}

// WithFitIntercept sets whether an intercept term is trained (default true).
func WithFitIntercept(fit bool) Option {
	return func(lr *LogisticRegression) { lr.FitIntercept = fit }
}

// WithMaxIter sets the gradient descent iteration budget (default 100).
func WithMaxIter(maxIter int) Option {
	return func(lr *LogisticRegression) { lr.MaxIter = maxIter }
}

// WithTol sets the gradient infinity-norm stopping tolerance (default 1e-4).
func WithTol(tol float64) Option {
	return func(lr *LogisticRegression) { lr.Tol = tol }
}

// WithRandomState seeds weight initialization for reproducible fits.
func WithRandomState(seed int64) Option {
	return func(lr *LogisticRegression) { lr.RandomState = seed }
}

// NewLogisticRegression creates a logistic regression classifier with
// scikit-learn-like defaults.
func NewLogisticRegression(opts ...Option) *LogisticRegression {
	lr := &LogisticRegression{
		State:        model.NewStateManager(),
		Penalty:      "l2",
		C:            1.0,
		FitIntercept: true,
		MaxIter:      100,
		Tol:          1e-4,
		RandomState:  -1,
	}
	for _, opt := range opts {
		opt(lr)
	}

	if lr.RandomState >= 0 {
		lr.rng = rand.New(rand.NewSource(lr.RandomState))
	} else {
		lr.rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return lr
}

// Fit trains the model. y must be a column vector of integer class codes.
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if lr.Penalty != "l2" && lr.Penalty != "none" {
		return errors.NewValidationError("penalty", "must be l2 or none", lr.Penalty)
	}
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	if lr.MaxIter < 1 {
		return errors.NewValidationError("max_iter", "must be at least 1", lr.MaxIter)
	}

	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 {
		return errors.ErrEmptyData
	}
	if yRows != nSamples {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("LogisticRegression.Fit", "y must be a column vector")
	}

	lr.extractClasses(y)
	if len(lr.ClassSet) < 2 {
		return errors.NewValueError("LogisticRegression.Fit", "need at least 2 classes in y")
	}

	// Gob skips unexported fields, so a restored model has no rng. Seed it
	// here the same way the constructor does.
	if lr.rng == nil {
		if lr.RandomState >= 0 {
			lr.rng = rand.New(rand.NewSource(lr.RandomState))
		} else {
			lr.rng = rand.New(rand.NewSource(rand.Int63()))
		}
	}
	lr.initializeWeights(nFeatures)

	if len(lr.ClassSet) == 2 {
		// Binary: one classifier scoring ClassSet[1] as the positive class.
		lr.fitOne(X, lr.binaryTargets(y, lr.ClassSet[1]), 0)
	} else {
		for idx, class := range lr.ClassSet {
			lr.fitOne(X, lr.binaryTargets(y, class), idx)
		}
	}

	lr.State.SetDimensions(nFeatures, nSamples)
	lr.State.SetFitted()
	return nil
}

func (lr *LogisticRegression) extractClasses(y mat.Matrix) {
	rows, _ := y.Dims()
	seen := make(map[int]bool)
	for i := 0; i < rows; i++ {
		seen[int(y.At(i, 0))] = true
	}

	lr.ClassSet = make([]int, 0, len(seen))
	for c := range seen {
		lr.ClassSet = append(lr.ClassSet, c)
	}
	sort.Ints(lr.ClassSet)
}

func (lr *LogisticRegression) initializeWeights(nFeatures int) {
	nClassifiers := len(lr.ClassSet)
	if nClassifiers == 2 {
		nClassifiers = 1
	}

	lr.Coef = make([][]float64, nClassifiers)
	lr.Intercept = make([]float64, nClassifiers)
	lr.NIter = make([]int, nClassifiers)
	for i := range lr.Coef {
		lr.Coef[i] = make([]float64, nFeatures)
		for j := range lr.Coef[i] {
			lr.Coef[i][j] = lr.rng.NormFloat64() * 0.01
		}
	}
}

// binaryTargets builds 0/1 targets for a one-vs-rest round.
func (lr *LogisticRegression) binaryTargets(y mat.Matrix, positive int) []float64 {
	rows, _ := y.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		if int(y.At(i, 0)) == positive {
			out[i] = 1
		}
	}
	return out
}

// fitOne runs gradient descent for one classifier, updating Coef[idx] and
// Intercept[idx] in place.
func (lr *LogisticRegression) fitOne(X mat.Matrix, target []float64, idx int) {
	nSamples, nFeatures := X.Dims()
	weights := lr.Coef[idx]
	intercept := &lr.Intercept[idx]

	const baseLearningRate = 1.0
	converged := false

	for iter := 0; iter < lr.MaxIter; iter++ {
		gradWeights := make([]float64, nFeatures)
		gradIntercept := 0.0

		for i := 0; i < nSamples; i++ {
			z := *intercept
			for j := 0; j < nFeatures; j++ {
				z += X.At(i, j) * weights[j]
			}
			residual := sigmoid(z) - target[i]
			gradIntercept += residual
			for j := 0; j < nFeatures; j++ {
				gradWeights[j] += residual * X.At(i, j)
			}
		}

		for j := range gradWeights {
			gradWeights[j] /= float64(nSamples)
		}
		gradIntercept /= float64(nSamples)

		if lr.Penalty == "l2" {
			lambda := 1.0 / lr.C
			for j := range weights {
				gradWeights[j] += lambda * weights[j]
			}
		}

		learningRate := baseLearningRate / (1.0 + 0.1*float64(iter))
		for j := range weights {
			weights[j] -= learningRate * gradWeights[j]
		}
		if lr.FitIntercept {
			*intercept -= learningRate * gradIntercept
		}

		lr.NIter[idx] = iter + 1

		maxGrad := math.Abs(gradIntercept)
		for _, g := range gradWeights {
			if math.Abs(g) > maxGrad {
				maxGrad = math.Abs(g)
			}
		}
		if maxGrad < lr.Tol {
			converged = true
			break
		}
	}

	if !converged {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.MaxIter, ""))
	}
}

// decision computes the raw score of classifier idx for one sample.
func (lr *LogisticRegression) decision(X mat.Matrix, i, idx int) float64 {
	z := lr.Intercept[idx]
	for j := range lr.Coef[idx] {
		z += X.At(i, j) * lr.Coef[idx][j]
	}
	return z
}

// Predict returns the predicted class codes as an n×1 matrix.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.State.RequireFitted("LogisticRegression", "Predict"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := lr.State.ValidateFeatures("LogisticRegression.Predict", nFeatures); err != nil {
		return nil, err
	}

	out := mat.NewDense(nSamples, 1, nil)
	if len(lr.ClassSet) == 2 {
		for i := 0; i < nSamples; i++ {
			if sigmoid(lr.decision(X, i, 0)) >= 0.5 {
				out.Set(i, 0, float64(lr.ClassSet[1]))
			} else {
				out.Set(i, 0, float64(lr.ClassSet[0]))
			}
		}
		return out, nil
	}

	for i := 0; i < nSamples; i++ {
		best, bestScore := 0, math.Inf(-1)
		for idx := range lr.ClassSet {
			if score := lr.decision(X, i, idx); score > bestScore {
				best, bestScore = idx, score
			}
		}
		out.Set(i, 0, float64(lr.ClassSet[best]))
	}
	return out, nil
}

// PredictProba returns class probabilities: sigmoid for binary problems,
// softmax over the per-class scores for multiclass.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.State.RequireFitted("LogisticRegression", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := lr.State.ValidateFeatures("LogisticRegression.PredictProba", nFeatures); err != nil {
		return nil, err
	}

	probas := mat.NewDense(nSamples, len(lr.ClassSet), nil)
	if len(lr.ClassSet) == 2 {
		for i := 0; i < nSamples; i++ {
			p := sigmoid(lr.decision(X, i, 0))
			probas.Set(i, 0, 1-p)
			probas.Set(i, 1, p)
		}
		return probas, nil
	}

	for i := 0; i < nSamples; i++ {
		scores := make([]float64, len(lr.ClassSet))
		maxScore := math.Inf(-1)
		for idx := range lr.ClassSet {
			scores[idx] = lr.decision(X, i, idx)
			if scores[idx] > maxScore {
				maxScore = scores[idx]
			}
		}

		var sum float64
		for idx := range scores {
			scores[idx] = math.Exp(scores[idx] - maxScore)
			sum += scores[idx]
		}
		for idx := range scores {
			probas.Set(i, idx, scores[idx]/sum)
		}
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data.
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	preds, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}

	nSamples, _ := X.Dims()
	correct := 0
	for i := 0; i < nSamples; i++ {
		if preds.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples), nil
}

// Classes returns the sorted unique class codes seen during fitting.
func (lr *LogisticRegression) Classes() []int {
	return lr.ClassSet
}

// GetParams returns the hyperparameters.
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.Penalty,
		"C":             lr.C,
		"fit_intercept": lr.FitIntercept,
		"max_iter":      lr.MaxIter,
		"tol":           lr.Tol,
		"random_state":  lr.RandomState,
	}
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

var _ model.Classifier = (*LogisticRegression)(nil)
