// Package preprocessing provides the feature-preparation steps the training
// pipeline runs before fitting classifiers: scaling, categorical encoding,
// and missing-value imputation.
package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/edustats/dropout/core/model"
	"github.com/edustats/dropout/pkg/errors"
)

// StandardScaler standardizes features to zero mean and unit variance.
// Distance-based models (KNN) and gradient-descent solvers both need this;
// fit it on the training split only.
type StandardScaler struct {
	State *model.StateManager

	// Mean and Scale hold the per-feature statistics learned by Fit.
	Mean  []float64
	Scale []float64
}

// NewStandardScaler creates an unfitted StandardScaler.
func NewStandardScaler() *StandardScaler {
	return &StandardScaler{State: model.NewStateManager()}
}

// Fit computes per-feature mean and standard deviation. Features with zero
// variance get scale 1 so Transform leaves them centered but unscaled.
func (s *StandardScaler) Fit(X mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.ErrEmptyData
	}

	s.Mean = make([]float64, nFeatures)
	s.Scale = make([]float64, nFeatures)

	for j := 0; j < nFeatures; j++ {
		var sum float64
		for i := 0; i < nSamples; i++ {
			sum += X.At(i, j)
		}
		mean := sum / float64(nSamples)

		var sqSum float64
		for i := 0; i < nSamples; i++ {
			d := X.At(i, j) - mean
			sqSum += d * d
		}
		std := math.Sqrt(sqSum / float64(nSamples))
		if std == 0 {
			std = 1
		}

		s.Mean[j] = mean
		s.Scale[j] = std
	}

	s.State.SetDimensions(nFeatures, nSamples)
	s.State.SetFitted()
	return nil
}

// Transform standardizes X using the fitted statistics.
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.State.RequireFitted("StandardScaler", "Transform"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := s.State.ValidateFeatures("StandardScaler.Transform", nFeatures); err != nil {
		return nil, err
	}

	out := mat.NewDense(nSamples, nFeatures, nil)
	for i := 0; i < nSamples; i++ {
		for j := 0; j < nFeatures; j++ {
			out.Set(i, j, (X.At(i, j)-s.Mean[j])/s.Scale[j])
		}
	}
	return out, nil
}

// FitTransform fits the scaler and transforms X in one call.
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform maps standardized values back to the original scale.
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.State.RequireFitted("StandardScaler", "InverseTransform"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := s.State.ValidateFeatures("StandardScaler.InverseTransform", nFeatures); err != nil {
		return nil, err
	}

	out := mat.NewDense(nSamples, nFeatures, nil)
	for i := 0; i < nSamples; i++ {
		for j := 0; j < nFeatures; j++ {
			out.Set(i, j, X.At(i, j)*s.Scale[j]+s.Mean[j])
		}
	}
	return out, nil
}

// MinMaxScaler rescales features to a fixed range, by default [0, 1].
type MinMaxScaler struct {
	State *model.StateManager

	// FeatureMin and FeatureMax are the target range bounds.
	FeatureMin float64
	FeatureMax float64

	// DataMin and DataRange hold per-feature statistics learned by Fit.
	// Constant features get range 1 so Transform maps them to FeatureMin.
	DataMin   []float64
	DataRange []float64
}

// NewMinMaxScaler creates a scaler targeting [0, 1].
func NewMinMaxScaler() *MinMaxScaler {
	return &MinMaxScaler{State: model.NewStateManager(), FeatureMin: 0, FeatureMax: 1}
}

// NewMinMaxScalerRange creates a scaler targeting [min, max].
func NewMinMaxScalerRange(min, max float64) (*MinMaxScaler, error) {
	if min >= max {
		return nil, errors.NewValidationError("feature_range", "min must be below max", [2]float64{min, max})
	}
	return &MinMaxScaler{State: model.NewStateManager(), FeatureMin: min, FeatureMax: max}, nil
}

// Fit learns the per-feature minimum and range.
func (s *MinMaxScaler) Fit(X mat.Matrix) error {
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.ErrEmptyData
	}

	s.DataMin = make([]float64, nFeatures)
	s.DataRange = make([]float64, nFeatures)

	for j := 0; j < nFeatures; j++ {
		lo, hi := X.At(0, j), X.At(0, j)
		for i := 1; i < nSamples; i++ {
			v := X.At(i, j)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		s.DataMin[j] = lo
		if hi == lo {
			s.DataRange[j] = 1
		} else {
			s.DataRange[j] = hi - lo
		}
	}

	s.State.SetDimensions(nFeatures, nSamples)
	s.State.SetFitted()
	return nil
}

// Transform rescales X into the target range.
func (s *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.State.RequireFitted("MinMaxScaler", "Transform"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := s.State.ValidateFeatures("MinMaxScaler.Transform", nFeatures); err != nil {
		return nil, err
	}

	span := s.FeatureMax - s.FeatureMin
	out := mat.NewDense(nSamples, nFeatures, nil)
	for i := 0; i < nSamples; i++ {
		for j := 0; j < nFeatures; j++ {
			unit := (X.At(i, j) - s.DataMin[j]) / s.DataRange[j]
			out.Set(i, j, s.FeatureMin+unit*span)
		}
	}
	return out, nil
}

// FitTransform fits the scaler and transforms X in one call.
func (s *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

var (
	_ model.Transformer = (*StandardScaler)(nil)
	_ model.Transformer = (*MinMaxScaler)(nil)
)
