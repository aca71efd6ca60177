// Package ensemble implements gradient-boosted decision trees for
// classification.
//
// Trees are grown on second-order statistics of the loss: binary targets use
// the logistic loss with one tree per round, three or more classes use the
// softmax loss with one tree per class per round.
package ensemble

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/bechdel/core/model"
	"github.com/YuminosukeSato/bechdel/core/parallel"
	scigoErrors "github.com/YuminosukeSato/bechdel/pkg/errors"
	"github.com/YuminosukeSato/bechdel/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// GradientBoostingClassifier is a gradient-boosted tree ensemble.
type GradientBoostingClassifier struct {
	state *model.StateManager

	// Hyperparameters
	nEstimators    int
	learningRate   float64
	maxDepth       int
	minSamplesLeaf int
	lambda         float64
	minGainToSplit float64

	// Fitted state
	classes_    []int
	initScores_ []float64 // one per output
	trees_      [][]*Tree // [round][output]
	importance_ []float64

	logger log.Logger
}

// GradientBoostingOption is a functional option for GradientBoostingClassifier
type GradientBoostingOption func(*GradientBoostingClassifier)

// NewGradientBoostingClassifier creates a classifier with 100 depth-3 trees,
// learning rate 0.1 and at least 10 samples per leaf.
func NewGradientBoostingClassifier(opts ...GradientBoostingOption) *GradientBoostingClassifier {
	gb := &GradientBoostingClassifier{
		state:          model.NewStateManager(),
		nEstimators:    100,
		learningRate:   0.1,
		maxDepth:       3,
		minSamplesLeaf: 10,
		lambda:         1.0,
		logger:         log.GetLoggerWithName("GradientBoostingClassifier"),
	}
	for _, opt := range opts {
		opt(gb)
	}
	return gb
}

// WithGBNEstimators sets the number of boosting rounds
func WithGBNEstimators(n int) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) {
		gb.nEstimators = n
	}
}

// WithGBLearningRate sets the shrinkage applied to every tree
func WithGBLearningRate(rate float64) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) {
		gb.learningRate = rate
	}
}

// WithGBMaxDepth sets the interaction depth of each tree
func WithGBMaxDepth(depth int) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) {
		gb.maxDepth = depth
	}
}

// WithGBMinSamplesLeaf sets the minimum number of samples in a leaf
func WithGBMinSamplesLeaf(n int) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) {
		gb.minSamplesLeaf = n
	}
}

// WithGBLambda sets the L2 regularization on leaf values
func WithGBLambda(lambda float64) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) {
		gb.lambda = lambda
	}
}

// WithGBLogger sets the logger. A nil logger keeps the default.
func WithGBLogger(l log.Logger) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) {
		if l != nil {
			gb.logger = l
		}
	}
}

func (gb *GradientBoostingClassifier) validate() error {
	switch {
	case gb.nEstimators < 1:
		return scigoErrors.NewValidationError("n_estimators", "must be at least 1", gb.nEstimators)
	case gb.maxDepth < 1:
		return scigoErrors.NewValidationError("max_depth", "must be at least 1", gb.maxDepth)
	case gb.learningRate <= 0:
		return scigoErrors.NewValidationError("learning_rate", "must be positive", gb.learningRate)
	case gb.minSamplesLeaf < 1:
		return scigoErrors.NewValidationError("min_samples_leaf", "must be at least 1", gb.minSamplesLeaf)
	case gb.lambda < 0:
		return scigoErrors.NewValidationError("lambda", "must not be negative", gb.lambda)
	}
	return nil
}

// nOutputs is 1 for binary problems and the number of classes otherwise.
func (gb *GradientBoostingClassifier) nOutputs() int {
	if len(gb.classes_) == 2 {
		return 1
	}
	return len(gb.classes_)
}

// Fit trains the ensemble.
func (gb *GradientBoostingClassifier) Fit(X, y mat.Matrix) (err error) {
	defer scigoErrors.Recover(&err, "GradientBoostingClassifier.Fit")

	nSamples, nFeatures, err := model.CheckXY("GradientBoostingClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := gb.validate(); err != nil {
		return err
	}

	gb.classes_ = model.UniqueClasses(y)
	if len(gb.classes_) < 2 {
		return scigoErrors.NewValueError("GradientBoostingClassifier.Fit",
			fmt.Sprintf("needs at least 2 classes, got %d", len(gb.classes_)))
	}

	Xd := mat.DenseCopyOf(X)
	target := gb.encodeTarget(y)
	k := gb.nOutputs()

	gb.initScores_ = gb.initialScores(target, nSamples)
	gb.trees_ = make([][]*Tree, 0, gb.nEstimators)
	gb.importance_ = make([]float64, nFeatures)

	// raw[i*k+c] is the current margin of sample i for output c
	raw := make([]float64, nSamples*k)
	for i := 0; i < nSamples; i++ {
		copy(raw[i*k:(i+1)*k], gb.initScores_)
	}

	params := treeParams{
		maxDepth:       gb.maxDepth,
		minSamplesLeaf: gb.minSamplesLeaf,
		lambda:         gb.lambda,
		minGainToSplit: gb.minGainToSplit,
		shrinkage:      gb.learningRate,
	}

	for round := 0; round < gb.nEstimators; round++ {
		grads, hess := gb.gradients(raw, target, nSamples)

		trees := make([]*Tree, k)
		importances := make([][]float64, k)
		// outputs of one round are independent given the gradients
		parallel.Parallelize(k, func(start, end int) {
			for c := start; c < end; c++ {
				builder := newTreeBuilder(params, Xd, grads[c], hess[c])
				trees[c] = builder.build()
				importances[c] = builder.importance
			}
		})

		row := make([]float64, nFeatures)
		for i := 0; i < nSamples; i++ {
			mat.Row(row, i, Xd)
			for c := 0; c < k; c++ {
				raw[i*k+c] += trees[c].Predict(row)
			}
		}
		for c := 0; c < k; c++ {
			for j, v := range importances[c] {
				gb.importance_[j] += v
			}
		}
		gb.trees_ = append(gb.trees_, trees)
	}

	if err := scigoErrors.CheckNumericalStability("GradientBoostingClassifier.Fit", raw, gb.nEstimators); err != nil {
		return err
	}

	gb.state.SetFitted(nFeatures, nSamples)
	gb.logger.Debug("model fitted",
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.ClassesKey, len(gb.classes_),
		"n_estimators", gb.nEstimators,
		"max_depth", gb.maxDepth,
	)
	return nil
}

// encodeTarget maps labels to class indices.
func (gb *GradientBoostingClassifier) encodeTarget(y mat.Matrix) []int {
	index := make(map[int]int, len(gb.classes_))
	for i, c := range gb.classes_ {
		index[c] = i
	}
	rows, _ := y.Dims()
	out := make([]int, rows)
	for i := range out {
		out[i] = index[int(y.At(i, 0))]
	}
	return out
}

// initialScores are the log-odds (binary) or log class priors (multiclass).
func (gb *GradientBoostingClassifier) initialScores(target []int, n int) []float64 {
	counts := make([]float64, len(gb.classes_))
	for _, t := range target {
		counts[t]++
	}

	if gb.nOutputs() == 1 {
		p := scigoErrors.ClipValue(counts[1]/float64(n), 1e-15, 1-1e-15)
		return []float64{math.Log(p / (1 - p))}
	}

	out := make([]float64, len(counts))
	for c, cnt := range counts {
		out[c] = math.Log(scigoErrors.ClipValue(cnt/float64(n), 1e-15, 1))
	}
	return out
}

// gradients returns per-output gradient and hessian vectors of the loss at raw.
func (gb *GradientBoostingClassifier) gradients(raw []float64, target []int, n int) ([][]float64, [][]float64) {
	k := gb.nOutputs()
	grads := make([][]float64, k)
	hess := make([][]float64, k)
	for c := range grads {
		grads[c] = make([]float64, n)
		hess[c] = make([]float64, n)
	}

	probs := make([]float64, k)
	for i := 0; i < n; i++ {
		if k == 1 {
			p := sigmoid(raw[i])
			grads[0][i] = p - float64(target[i])
			hess[0][i] = math.Max(p*(1-p), 1e-16)
			continue
		}
		softmaxInto(probs, raw[i*k:(i+1)*k])
		for c := 0; c < k; c++ {
			y := 0.0
			if target[i] == c {
				y = 1
			}
			grads[c][i] = probs[c] - y
			hess[c][i] = math.Max(probs[c]*(1-probs[c]), 1e-16)
		}
	}
	return grads, hess
}

// decision returns the raw margins of every sample.
func (gb *GradientBoostingClassifier) decision(X mat.Matrix) *mat.Dense {
	nSamples, nFeatures := X.Dims()
	k := gb.nOutputs()
	out := mat.NewDense(nSamples, k, nil)

	parallel.ParallelizeWithThreshold(nSamples, 256, func(start, end int) {
		row := make([]float64, nFeatures)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			for c := 0; c < k; c++ {
				v := gb.initScores_[c]
				for _, trees := range gb.trees_ {
					v += trees[c].Predict(row)
				}
				out.Set(i, c, v)
			}
		}
	})
	return out
}

// PredictProba returns class probabilities, columns ordered as Classes().
func (gb *GradientBoostingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := gb.state.RequireFitted("GradientBoostingClassifier", "PredictProba", X); err != nil {
		return nil, err
	}

	raw := gb.decision(X)
	nSamples, _ := X.Dims()
	probas := mat.NewDense(nSamples, len(gb.classes_), nil)

	probs := make([]float64, len(gb.classes_))
	for i := 0; i < nSamples; i++ {
		if gb.nOutputs() == 1 {
			p := sigmoid(raw.At(i, 0))
			probas.Set(i, 0, 1-p)
			probas.Set(i, 1, p)
			continue
		}
		softmaxInto(probs, raw.RawRowView(i))
		probas.SetRow(i, probs)
	}
	return probas, nil
}

// Predict returns the most probable class; ties go to the lower class.
func (gb *GradientBoostingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := gb.PredictProba(X)
	if err != nil {
		return nil, err
	}

	nSamples, nClasses := probas.Dims()
	out := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best := 0
		for c := 1; c < nClasses; c++ {
			if probas.At(i, c) > probas.At(i, best) {
				best = c
			}
		}
		out.Set(i, 0, float64(gb.classes_[best]))
	}
	return out, nil
}

// Classes returns the sorted class labels seen during Fit.
func (gb *GradientBoostingClassifier) Classes() []int {
	return append([]int(nil), gb.classes_...)
}

// FeatureImportances returns the total split gain per feature, normalized to sum to 1.
func (gb *GradientBoostingClassifier) FeatureImportances() []float64 {
	out := make([]float64, len(gb.importance_))
	total := 0.0
	for _, v := range gb.importance_ {
		total += v
	}
	if total == 0 {
		return out
	}
	for j, v := range gb.importance_ {
		out[j] = v / total
	}
	return out
}

// NumTrees returns the number of fitted trees over all rounds and outputs.
func (gb *GradientBoostingClassifier) NumTrees() int {
	n := 0
	for _, round := range gb.trees_ {
		n += len(round)
	}
	return n
}

// GetParams returns the model hyperparameters
func (gb *GradientBoostingClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     gb.nEstimators,
		"learning_rate":    gb.learningRate,
		"max_depth":        gb.maxDepth,
		"min_samples_leaf": gb.minSamplesLeaf,
		"lambda":           gb.lambda,
	}
}

// String returns a short description of the model
func (gb *GradientBoostingClassifier) String() string {
	return fmt.Sprintf("GradientBoostingClassifier(n_estimators=%d, max_depth=%d, learning_rate=%g)",
		gb.nEstimators, gb.maxDepth, gb.learningRate)
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// softmaxInto writes softmax(x) into dst.
func softmaxInto(dst, x []float64) {
	norm := scigoErrors.LogSumExp(x)
	for c, v := range x {
		dst[c] = math.Exp(v - norm)
	}
}
