package model

import (
	"sync"

	"github.com/YuminosukeSato/bechdel/pkg/errors"
)

// StateManager manages the fitted state of a model in a thread-safe manner.
// Estimators hold it by composition; cross-validation fits many estimators
// concurrently, each with its own StateManager.
type StateManager struct {
	mu sync.RWMutex

	fitted    bool
	nFeatures int
	nSamples  int
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitted
}

// SetFitted marks the model as fitted with the training shape.
func (s *StateManager) SetFitted(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = true
	s.nFeatures = nFeatures
	s.nSamples = nSamples
}

// Reset resets the fitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = false
	s.nFeatures = 0
	s.nSamples = 0
}

// GetDimensions returns the number of features and samples seen during fitting.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nFeatures, s.nSamples
}

// RequireFitted returns a NotFittedError if the model has not been fitted,
// and a DimensionError if X has a different number of features than the
// training data.
func (s *StateManager) RequireFitted(modelName, method string, X dimensioned) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.fitted {
		return errors.NewNotFittedError(modelName, method)
	}
	if X != nil {
		if _, c := X.Dims(); c != s.nFeatures {
			return errors.NewDimensionError(modelName+"."+method, s.nFeatures, c, 1)
		}
	}
	return nil
}

// dimensioned is the subset of gonum's mat.Matrix that RequireFitted needs.
type dimensioned interface {
	Dims() (r, c int)
}
