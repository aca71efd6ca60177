// Package neighbors implements k-nearest-neighbor classification and
// regression with Euclidean distance.
//
// Neighbors are ordered by distance and then by training row, so results do
// not depend on scheduling when prediction runs in parallel.
package neighbors

import (
	"fmt"
	"sort"

	"github.com/YuminosukeSato/bechdel/core/model"
	"github.com/YuminosukeSato/bechdel/core/parallel"
	"github.com/YuminosukeSato/bechdel/metrics"
	scigoErrors "github.com/YuminosukeSato/bechdel/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// parallelThreshold is the number of query rows below which prediction runs sequentially.
const parallelThreshold = 64

// base holds the training data shared by the classifier and the regressor.
type base struct {
	state *model.StateManager
	k     int

	xTrain [][]float64
	yTrain []float64
}

func (b *base) fit(op string, X, y mat.Matrix) error {
	nSamples, nFeatures, err := model.CheckXY(op, X, y)
	if err != nil {
		return err
	}
	if b.k < 1 {
		return scigoErrors.NewValidationError("n_neighbors", "must be at least 1", b.k)
	}
	if b.k > nSamples {
		return scigoErrors.NewValidationError("n_neighbors",
			fmt.Sprintf("must not exceed the number of training samples (%d)", nSamples), b.k)
	}

	b.xTrain = make([][]float64, nSamples)
	for i := range b.xTrain {
		b.xTrain[i] = mat.Row(nil, i, X)
	}
	b.yTrain = model.Column(y)

	if err := scigoErrors.CheckNumericalStability(op, mat.DenseCopyOf(X).RawMatrix().Data, 0); err != nil {
		return err
	}

	b.state.SetFitted(nFeatures, nSamples)
	return nil
}

// neighbors returns the training indices of the k nearest rows to x.
func (b *base) neighbors(x []float64) []int {
	type cand struct {
		dist float64
		idx  int
	}
	cands := make([]cand, len(b.xTrain))
	for i, row := range b.xTrain {
		cands[i] = cand{dist: floats.Distance(x, row, 2), idx: i}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].idx < cands[j].idx
	})

	out := make([]int, b.k)
	for i := range out {
		out[i] = cands[i].idx
	}
	return out
}

// forEachRow runs fn on every query row, in parallel for larger inputs.
func (b *base) forEachRow(X mat.Matrix, fn func(i int, row []float64)) {
	nSamples, nFeatures := X.Dims()
	parallel.ParallelizeWithThreshold(nSamples, parallelThreshold, func(start, end int) {
		row := make([]float64, nFeatures)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			fn(i, row)
		}
	})
}

// KNeighborsClassifier predicts the majority class among the k nearest
// training rows. Vote ties go to the smallest class label.
type KNeighborsClassifier struct {
	base
	classes_ []int
}

// NewKNeighborsClassifier creates a classifier with k neighbors.
func NewKNeighborsClassifier(k int) *KNeighborsClassifier {
	return &KNeighborsClassifier{base: base{state: model.NewStateManager(), k: k}}
}

// Fit stores the training data.
func (c *KNeighborsClassifier) Fit(X, y mat.Matrix) error {
	if err := c.fit("KNeighborsClassifier.Fit", X, y); err != nil {
		return err
	}
	c.classes_ = model.UniqueClasses(y)
	return nil
}

// PredictProba returns the fraction of neighbor votes per class.
func (c *KNeighborsClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := c.state.RequireFitted("KNeighborsClassifier", "PredictProba", X); err != nil {
		return nil, err
	}

	classIndex := make(map[int]int, len(c.classes_))
	for i, cl := range c.classes_ {
		classIndex[cl] = i
	}

	nSamples, _ := X.Dims()
	probas := mat.NewDense(nSamples, len(c.classes_), nil)
	c.forEachRow(X, func(i int, row []float64) {
		votes := make([]int, len(c.classes_))
		for _, idx := range c.neighbors(row) {
			votes[classIndex[int(c.yTrain[idx])]]++
		}
		for col, v := range votes {
			probas.Set(i, col, float64(v)/float64(c.k))
		}
	})
	return probas, nil
}

// Predict returns the majority vote of the k nearest neighbors.
func (c *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}

	nSamples, nClasses := probas.Dims()
	out := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best := 0
		for cl := 1; cl < nClasses; cl++ {
			if probas.At(i, cl) > probas.At(i, best) {
				best = cl
			}
		}
		out.Set(i, 0, float64(c.classes_[best]))
	}
	return out, nil
}

// Classes returns the sorted class labels seen during Fit.
func (c *KNeighborsClassifier) Classes() []int {
	return append([]int(nil), c.classes_...)
}

// GetParams returns the model hyperparameters
func (c *KNeighborsClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{"n_neighbors": c.k}
}

// String returns a short description of the model
func (c *KNeighborsClassifier) String() string {
	return fmt.Sprintf("KNeighborsClassifier(n_neighbors=%d)", c.k)
}

// KNeighborsRegressor predicts the mean target of the k nearest training rows.
type KNeighborsRegressor struct {
	base
}

// NewKNeighborsRegressor creates a regressor with k neighbors.
func NewKNeighborsRegressor(k int) *KNeighborsRegressor {
	return &KNeighborsRegressor{base: base{state: model.NewStateManager(), k: k}}
}

// Fit stores the training data.
func (r *KNeighborsRegressor) Fit(X, y mat.Matrix) error {
	return r.fit("KNeighborsRegressor.Fit", X, y)
}

// Predict returns the neighbor mean for every row of X.
func (r *KNeighborsRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := r.state.RequireFitted("KNeighborsRegressor", "Predict", X); err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	out := mat.NewDense(nSamples, 1, nil)
	r.forEachRow(X, func(i int, row []float64) {
		sum := 0.0
		for _, idx := range r.neighbors(row) {
			sum += r.yTrain[idx]
		}
		out.Set(i, 0, sum/float64(r.k))
	})
	return out, nil
}

// Score returns the coefficient of determination R² on X and y.
func (r *KNeighborsRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := r.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, pred)
}

// GetParams returns the model hyperparameters
func (r *KNeighborsRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{"n_neighbors": r.k}
}

// String returns a short description of the model
func (r *KNeighborsRegressor) String() string {
	return fmt.Sprintf("KNeighborsRegressor(n_neighbors=%d)", r.k)
}
