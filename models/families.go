// Package models defines the five model families compared by the pipeline.
// Each family lists its hyperparameter candidates in a fixed order and
// builds a fresh, unfitted estimator per candidate.
package models

import (
	"github.com/YuminosukeSato/bechdel/core/model"
	"github.com/YuminosukeSato/bechdel/pkg/log"
	"github.com/YuminosukeSato/bechdel/preprocessing"
	"github.com/YuminosukeSato/bechdel/sklearn/ensemble"
	"github.com/YuminosukeSato/bechdel/sklearn/linear_model"
	"github.com/YuminosukeSato/bechdel/sklearn/model_selection"
	"github.com/YuminosukeSato/bechdel/sklearn/neighbors"
)

// Parameter names used in candidates.
const (
	ParamNeighbors    = "n_neighbors"
	ParamNEstimators  = "n_estimators"
	ParamMaxDepth     = "max_depth"
	ParamLearningRate = "learning_rate"
	ParamDecay        = "decay"
)

// KNNClassifier is standardized k-nearest-neighbor classification over the
// k grid Ks. Values of k above MaxSamples are left out; when none fit, the
// single candidate k = MaxSamples is used.
type KNNClassifier struct {
	Ks         []int
	MaxSamples int // 0 means no cap
}

// CappedAt returns a copy whose candidates never exceed n neighbors.
func (f KNNClassifier) CappedAt(n int) KNNClassifier {
	f.MaxSamples = n
	return f
}

// Bounded implements model_selection.SampleBounded.
func (f KNNClassifier) Bounded(n int) model_selection.Family { return f.CappedAt(n) }

// Name implements model_selection.Family.
func (f KNNClassifier) Name() string { return "knn_classifier" }

// Candidates implements model_selection.Family.
func (f KNNClassifier) Candidates() []model_selection.Params {
	out := make([]model_selection.Params, 0, len(f.Ks))
	for _, k := range f.Ks {
		if f.MaxSamples > 0 && k > f.MaxSamples {
			continue
		}
		out = append(out, model_selection.Params{ParamNeighbors: float64(k)})
	}
	if len(out) == 0 && len(f.Ks) > 0 && f.MaxSamples > 0 {
		out = append(out, model_selection.Params{ParamNeighbors: float64(f.MaxSamples)})
	}
	return out
}

// New implements model_selection.Family.
func (f KNNClassifier) New(p model_selection.Params) model.Estimator {
	return preprocessing.NewScaled(neighbors.NewKNeighborsClassifier(p.Int(ParamNeighbors)))
}

// KNNRegressor is standardized k-nearest-neighbor regression on the ordinal
// score, k scanned over [KMin, KMax] and never above MaxSamples.
type KNNRegressor struct {
	KMin, KMax int
	MaxSamples int // 0 means no cap
}

// CappedAt returns a copy whose candidates never exceed n neighbors.
func (f KNNRegressor) CappedAt(n int) KNNRegressor {
	f.MaxSamples = n
	return f
}

// Bounded implements model_selection.SampleBounded.
func (f KNNRegressor) Bounded(n int) model_selection.Family { return f.CappedAt(n) }

// Name implements model_selection.Family.
func (f KNNRegressor) Name() string { return "knn_regressor" }

// Candidates implements model_selection.Family.
func (f KNNRegressor) Candidates() []model_selection.Params {
	hi := f.KMax
	if f.MaxSamples > 0 && hi > f.MaxSamples {
		hi = f.MaxSamples
	}
	lo := max(f.KMin, 1)

	var out []model_selection.Params
	for k := lo; k <= hi; k++ {
		out = append(out, model_selection.Params{ParamNeighbors: float64(k)})
	}
	return out
}

// New implements model_selection.Family.
func (f KNNRegressor) New(p model_selection.Params) model.Estimator {
	return preprocessing.NewScaled(neighbors.NewKNeighborsRegressor(p.Int(ParamNeighbors)))
}

// GradientBoosting is boosted trees over the grid NEstimators × MaxDepths.
type GradientBoosting struct {
	NEstimators    []int
	MaxDepths      []int
	LearningRate   float64
	MinSamplesLeaf int
	Logger         log.Logger // nil uses the estimator default
}

// Name implements model_selection.Family.
func (f GradientBoosting) Name() string { return "gradient_boosting" }

// Candidates implements model_selection.Family. The number of trees varies
// fastest.
func (f GradientBoosting) Candidates() []model_selection.Params {
	var out []model_selection.Params
	for _, d := range f.MaxDepths {
		for _, n := range f.NEstimators {
			out = append(out, model_selection.Params{
				ParamNEstimators:  float64(n),
				ParamMaxDepth:     float64(d),
				ParamLearningRate: f.LearningRate,
			})
		}
	}
	return out
}

// New implements model_selection.Family.
func (f GradientBoosting) New(p model_selection.Params) model.Estimator {
	return ensemble.NewGradientBoostingClassifier(
		ensemble.WithGBNEstimators(p.Int(ParamNEstimators)),
		ensemble.WithGBMaxDepth(p.Int(ParamMaxDepth)),
		ensemble.WithGBLearningRate(p[ParamLearningRate]),
		ensemble.WithGBMinSamplesLeaf(f.MinSamplesLeaf),
		ensemble.WithGBLogger(f.Logger),
	)
}

// Multinomial is standardized softmax regression over a weight-decay grid.
type Multinomial struct {
	Decays  []float64
	MaxIter int
	Seed    uint64
	Logger  log.Logger
}

// Name implements model_selection.Family.
func (f Multinomial) Name() string { return "multinomial" }

// Candidates implements model_selection.Family.
func (f Multinomial) Candidates() []model_selection.Params {
	out := make([]model_selection.Params, len(f.Decays))
	for i, d := range f.Decays {
		out[i] = model_selection.Params{ParamDecay: d}
	}
	return out
}

// New implements model_selection.Family.
func (f Multinomial) New(p model_selection.Params) model.Estimator {
	return preprocessing.NewScaled(linear_model.NewLogisticRegression(
		linear_model.WithLRMultiClass("multinomial"),
		linear_model.WithLRDecay(p[ParamDecay]),
		linear_model.WithLRMaxIter(f.MaxIter),
		linear_model.WithLRRandomState(f.Seed),
		linear_model.WithLRLogger(f.Logger),
	))
}

// Logistic is unpenalized standardized binary logistic regression. It has a
// single candidate, so cross validation only estimates its score.
type Logistic struct {
	MaxIter int
	Seed    uint64
	Logger  log.Logger
}

// Name implements model_selection.Family.
func (f Logistic) Name() string { return "logistic" }

// Candidates implements model_selection.Family.
func (f Logistic) Candidates() []model_selection.Params {
	return []model_selection.Params{{ParamDecay: 0}}
}

// New implements model_selection.Family.
func (f Logistic) New(p model_selection.Params) model.Estimator {
	return preprocessing.NewScaled(linear_model.NewLogisticRegression(
		linear_model.WithLRPenalty("none"),
		linear_model.WithLRMaxIter(f.MaxIter),
		linear_model.WithLRRandomState(f.Seed),
		linear_model.WithLRLogger(f.Logger),
	))
}
