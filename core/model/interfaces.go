// Package model defines the estimator interfaces shared by every model
// family, and the thread-safe fitted-state bookkeeping they embed.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Fitter is the interface for models that can be trained.
type Fitter interface {
	// Fit trains the model on X (n_samples × n_features) and y (n_samples × 1).
	Fit(X, y mat.Matrix) error
}

// Predictor is the interface for models that can predict.
type Predictor interface {
	// Predict returns an n_samples × 1 matrix of predictions.
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator is a supervised model: it can be fitted and then predict.
type Estimator interface {
	Fitter
	Predictor
}

// Classifier combines interfaces for classification models.
type Classifier interface {
	Estimator

	// PredictProba returns an n_samples × n_classes matrix of class
	// probabilities. Columns follow the order of Classes().
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the sorted class labels seen during fitting.
	Classes() []int
}

// Regressor is an estimator whose predictions are continuous.
type Regressor interface {
	Estimator

	// Score returns the coefficient of determination R² of the prediction.
	Score(X, y mat.Matrix) (float64, error)
}

// ParameterGetter is the interface for models that expose their hyperparameters.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}
