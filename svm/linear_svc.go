// Package svm implements a linear support vector classifier for dropout
// prediction.
package svm

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/edustats/dropout/core/model"
	"github.com/edustats/dropout/pkg/errors"
)

// LinearSVC is an L2-regularized linear classifier trained on the hinge loss
// by stochastic gradient descent. Binary problems train one weight vector on
// ±1 targets; multiclass problems train one-vs-rest. Features should be
// scaled first.
type LinearSVC struct {
	State *model.StateManager

	// Hyperparameters
	C           float64 // inverse regularization strength
	MaxIter     int     // epochs over the training set
	Tol         float64 // stop when the epoch's mean weight update drops below this
	RandomState int64   // seed for sample shuffling, -1 for nondeterministic

	// Fitted parameters, public for gob encoding.
	Coef      [][]float64
	Intercept []float64
	ClassSet  []int
	NIter     []int

	rng *rand.Rand
}

// Option is a functional option for LinearSVC.
type Option func(*LinearSVC)

// WithC sets the inverse regularization strength (default 1.0).
func WithC(c float64) Option {
	return func(s *LinearSVC) { s.C = c }
}

// WithMaxIter sets the epoch budget (default 1000).
func WithMaxIter(maxIter int) Option {
	return func(s *LinearSVC) { s.MaxIter = maxIter }
}

// WithTol sets the stopping tolerance (default 1e-4).
func WithTol(tol float64) Option {
	return func(s *LinearSVC) { s.Tol = tol }
}

// WithRandomState seeds the SGD shuffle for reproducible fits.
func WithRandomState(seed int64) Option {
	return func(s *LinearSVC) { s.RandomState = seed }
}

// NewLinearSVC creates a linear SVC with scikit-learn-like defaults.
func NewLinearSVC(opts ...Option) *LinearSVC {
	svc := &LinearSVC{
		State:       model.NewStateManager(),
		C:           1.0,
		MaxIter:     1000,
		Tol:         1e-4,
		RandomState: -1,
	}
	for _, opt := range opts {
		opt(svc)
	}

	if svc.RandomState >= 0 {
		svc.rng = rand.New(rand.NewSource(svc.RandomState))
	} else {
		svc.rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return svc
}

// Fit trains the model. y must be a column vector of integer class codes.
func (s *LinearSVC) Fit(X, y mat.Matrix) error {
	if s.C <= 0 {
		return errors.NewValidationError("C", "must be positive", s.C)
	}
	if s.MaxIter < 1 {
		return errors.NewValidationError("max_iter", "must be at least 1", s.MaxIter)
	}

	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 {
		return errors.ErrEmptyData
	}
	if yRows != nSamples {
		return errors.NewDimensionError("LinearSVC.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("LinearSVC.Fit", "y must be a column vector")
	}

	seen := make(map[int]bool)
	for i := 0; i < nSamples; i++ {
		seen[int(y.At(i, 0))] = true
	}
	s.ClassSet = make([]int, 0, len(seen))
	for c := range seen {
		s.ClassSet = append(s.ClassSet, c)
	}
	sort.Ints(s.ClassSet)
	if len(s.ClassSet) < 2 {
		return errors.NewValueError("LinearSVC.Fit", "need at least 2 classes in y")
	}

	nClassifiers := len(s.ClassSet)
	if nClassifiers == 2 {
		nClassifiers = 1
	}
	s.Coef = make([][]float64, nClassifiers)
	s.Intercept = make([]float64, nClassifiers)
	s.NIter = make([]int, nClassifiers)
	for i := range s.Coef {
		s.Coef[i] = make([]float64, nFeatures)
	}

	// Gob skips unexported fields, so a restored model has no rng. Seed it
	// here the same way the constructor does.
	if s.rng == nil {
		if s.RandomState >= 0 {
			s.rng = rand.New(rand.NewSource(s.RandomState))
		} else {
			s.rng = rand.New(rand.NewSource(rand.Int63()))
		}
	}

	if len(s.ClassSet) == 2 {
		s.fitOne(X, s.signedTargets(y, s.ClassSet[1]), 0)
	} else {
		for idx, class := range s.ClassSet {
			s.fitOne(X, s.signedTargets(y, class), idx)
		}
	}

	s.State.SetDimensions(nFeatures, nSamples)
	s.State.SetFitted()
	return nil
}

// signedTargets builds ±1 targets for a one-vs-rest round.
func (s *LinearSVC) signedTargets(y mat.Matrix, positive int) []float64 {
	rows, _ := y.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		if int(y.At(i, 0)) == positive {
			out[i] = 1
		} else {
			out[i] = -1
		}
	}
	return out
}

// fitOne runs SGD on the hinge loss for one classifier. Each epoch visits the
// samples in a fresh shuffle; margin violators pull the weights toward the
// sample, and the L2 term shrinks them every step.
func (s *LinearSVC) fitOne(X mat.Matrix, target []float64, idx int) {
	nSamples, nFeatures := X.Dims()
	weights := s.Coef[idx]
	intercept := &s.Intercept[idx]

	lambda := 1.0 / (s.C * float64(nSamples))
	step := 0
	converged := false

	order := make([]int, nSamples)
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < s.MaxIter; epoch++ {
		s.rng.Shuffle(nSamples, func(i, j int) { order[i], order[j] = order[j], order[i] })

		var updateNorm float64
		for _, i := range order {
			step++
			eta := 1.0 / (lambda * float64(step+1))

			margin := *intercept
			for j := 0; j < nFeatures; j++ {
				margin += X.At(i, j) * weights[j]
			}
			margin *= target[i]

			for j := 0; j < nFeatures; j++ {
				grad := lambda * weights[j]
				if margin < 1 {
					grad -= target[i] * X.At(i, j)
				}
				delta := eta * grad
				weights[j] -= delta
				updateNorm += delta * delta
			}
			if margin < 1 {
				*intercept += eta * target[i]
			}
		}

		s.NIter[idx] = epoch + 1
		if math.Sqrt(updateNorm/float64(nSamples)) < s.Tol {
			converged = true
			break
		}
	}

	if !converged {
		errors.Warn(errors.NewConvergenceWarning("LinearSVC", s.MaxIter, ""))
	}
}

// DecisionFunction returns the signed margins, one column per trained
// classifier (a single column for binary problems).
func (s *LinearSVC) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	if err := s.State.RequireFitted("LinearSVC", "DecisionFunction"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := s.State.ValidateFeatures("LinearSVC.DecisionFunction", nFeatures); err != nil {
		return nil, err
	}

	out := mat.NewDense(nSamples, len(s.Coef), nil)
	for i := 0; i < nSamples; i++ {
		for idx := range s.Coef {
			z := s.Intercept[idx]
			for j := 0; j < nFeatures; j++ {
				z += X.At(i, j) * s.Coef[idx][j]
			}
			out.Set(i, idx, z)
		}
	}
	return out, nil
}

// Predict returns the predicted class codes as an n×1 matrix.
func (s *LinearSVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	margins, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	out := mat.NewDense(nSamples, 1, nil)
	if len(s.ClassSet) == 2 {
		for i := 0; i < nSamples; i++ {
			if margins.At(i, 0) >= 0 {
				out.Set(i, 0, float64(s.ClassSet[1]))
			} else {
				out.Set(i, 0, float64(s.ClassSet[0]))
			}
		}
		return out, nil
	}

	for i := 0; i < nSamples; i++ {
		best, bestScore := 0, math.Inf(-1)
		for idx := range s.ClassSet {
			if score := margins.At(i, idx); score > bestScore {
				best, bestScore = idx, score
			}
		}
		out.Set(i, 0, float64(s.ClassSet[best]))
	}
	return out, nil
}

// PredictProba maps margins through a logistic link. This is a fixed-scale
// approximation, not full Platt scaling; it preserves ranking, which is what
// the ROC/AUC reporting needs.
func (s *LinearSVC) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	margins, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	probas := mat.NewDense(nSamples, len(s.ClassSet), nil)
	if len(s.ClassSet) == 2 {
		for i := 0; i < nSamples; i++ {
			p := 1 / (1 + math.Exp(-margins.At(i, 0)))
			probas.Set(i, 0, 1-p)
			probas.Set(i, 1, p)
		}
		return probas, nil
	}

	for i := 0; i < nSamples; i++ {
		var sum float64
		row := make([]float64, len(s.ClassSet))
		for idx := range s.ClassSet {
			row[idx] = 1 / (1 + math.Exp(-margins.At(i, idx)))
			sum += row[idx]
		}
		for idx := range row {
			probas.Set(i, idx, row[idx]/sum)
		}
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data.
func (s *LinearSVC) Score(X, y mat.Matrix) (float64, error) {
	preds, err := s.Predict(X)
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
func (s *LinearSVC) Classes() []int {
	return s.ClassSet
}

// GetParams returns the hyperparameters.
func (s *LinearSVC) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":            s.C,
		"max_iter":     s.MaxIter,
		"tol":          s.Tol,
		"random_state": s.RandomState,
	}
}

var _ model.Classifier = (*LinearSVC)(nil)
