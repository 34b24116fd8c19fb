// Package model provides the shared estimator plumbing: fitted-state
// tracking, the estimator interfaces, and gob persistence.
package model

import (
	"sync"

	"github.com/edustats/dropout/pkg/errors"
)

// StateManager tracks the fitted state of an estimator in a thread-safe
// manner. Estimators hold it by composition rather than embedding.
type StateManager struct {
	Fitted bool // public for gob encoding
	mu     sync.RWMutex

	// Dimensions seen at fit time. Public for gob encoding.
	NFeatures int
	NSamples  int
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the estimator has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// SetFitted marks the estimator as fitted.
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = true
}

// Reset clears the fitted state and recorded dimensions.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = false
	s.NFeatures = 0
	s.NSamples = 0
}

// SetDimensions records the shape of the training data.
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NFeatures = nFeatures
	s.NSamples = nSamples
}

// GetDimensions returns the shape recorded at fit time.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NFeatures, s.NSamples
}

// RequireFitted returns a NotFittedError naming the estimator and method if
// the estimator has not been fitted.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(modelName, method)
	}
	return nil
}

// ValidateFeatures checks that the input feature count matches what was seen
// at fit time.
func (s *StateManager) ValidateFeatures(op string, got int) error {
	nFeatures, _ := s.GetDimensions()
	if nFeatures != 0 && got != nFeatures {
		return errors.NewDimensionError(op, nFeatures, got, 1)
	}
	return nil
}
