package evaluation

import (
	"math"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bechdel/features"
	scigoErrors "github.com/YuminosukeSato/bechdel/pkg/errors"
	"github.com/YuminosukeSato/bechdel/pkg/log"
)

func init() {
	scigoErrors.SetWarningHandler(func(error) {})
}

// fixed returns preset predictions regardless of X.
type fixed struct {
	pred []float64
}

func (f *fixed) Fit(X, y mat.Matrix) error { return nil }

func (f *fixed) Predict(X mat.Matrix) (mat.Matrix, error) {
	return mat.NewDense(len(f.pred), 1, append([]float64(nil), f.pred...)), nil
}

type fixedClassifier struct {
	fixed
	classes []int
}

func (f *fixedClassifier) Classes() []int { return f.classes }

func (f *fixedClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	out := mat.NewDense(len(f.pred), 2, nil)
	for i, p := range f.pred {
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

// budgetThreshold predicts 1 when the first feature exceeds limit.
type budgetThreshold struct {
	limit float64
}

func (b budgetThreshold) Fit(X, y mat.Matrix) error { return nil }

func (b budgetThreshold) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		if X.At(i, 0) > b.limit {
			out.Set(i, 0, 1)
		}
	}
	return out, nil
}

func (b budgetThreshold) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	pred, _ := b.Predict(X)
	r, _ := X.Dims()
	out := mat.NewDense(r, 2, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, 1-pred.At(i, 0))
		out.Set(i, 1, pred.At(i, 0))
	}
	return out, nil
}

func (b budgetThreshold) Classes() []int { return []int{0, 1} }

func column(vals ...float64) *mat.Dense {
	return mat.NewDense(len(vals), 1, vals)
}

func TestEvaluateBinary(t *testing.T) {
	y := column(1, 1, 1, 0, 0, 1, 0, 1)
	est := &fixedClassifier{fixed: fixed{pred: []float64{1, 0, 1, 0, 1, 1, 0, 1}}, classes: []int{0, 1}}
	X := mat.NewDense(8, 1, nil)
	logger, _ := log.NewTestLogger(log.LevelDebug)

	ev, err := Evaluate(est, X, y, WithModelName("fixed"), WithLogger(logger))
	require.NoError(t, err)

	assert.True(t, ev.Binary)
	assert.Equal(t, 8, ev.N)
	assert.Equal(t, ev.N, ev.Confusion.Total())
	assert.Equal(t, [][]int{{2, 1}, {1, 4}}, ev.Confusion.Counts)
	assert.Equal(t, []int{3, 5}, ev.ClassCounts)
	assert.InDelta(t, 0.75, ev.Accuracy, 1e-12)
	assert.InDelta(t, 5.0/8, ev.NoInformationRate, 1e-12)
	assert.InDelta(t, 0.8, ev.Sensitivity, 1e-12)
	assert.InDelta(t, 2.0/3, ev.Specificity, 1e-12)
	assert.InDelta(t, 11.0/15, ev.AUC, 1e-12)
	assert.False(t, ev.Rounded)
	assert.True(t, logger.ContainsMessage("model evaluated"))
	assert.True(t, logger.ContainsField(log.ModelNameKey, "fixed"))
}

func TestEvaluatePositiveClassZero(t *testing.T) {
	y := column(1, 1, 1, 0, 0, 1, 0, 1)
	est := &fixedClassifier{fixed: fixed{pred: []float64{1, 0, 1, 0, 1, 1, 0, 1}}, classes: []int{0, 1}}

	ev, err := Evaluate(est, mat.NewDense(8, 1, nil), y, WithPositiveClass(0))
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3, ev.Sensitivity, 1e-12)
	assert.InDelta(t, 0.8, ev.Specificity, 1e-12)
}

func TestEvaluateRoundsRegressorOutput(t *testing.T) {
	y := column(0, 1, 2, 3, 1)
	est := &fixed{pred: []float64{-0.4, 0.6, 2.4, 3.7, 1.5}}

	ev, err := Evaluate(est, mat.NewDense(5, 1, nil), y)
	require.NoError(t, err)

	assert.True(t, ev.Rounded)
	assert.False(t, ev.Binary)
	assert.Equal(t, []int{0, 1, 2, 3}, ev.Confusion.Labels)
	assert.InDelta(t, 0.8, ev.Accuracy, 1e-12)
	assert.InDelta(t, 0.4, ev.NoInformationRate, 1e-12)
	assert.True(t, math.IsNaN(ev.AUC))

	// classes 0 and 3 are perfect; 1 has recall 1/2 and 2 has recall 1
	assert.InDelta(t, (1+0.5+1+1)/4.0, ev.Sensitivity, 1e-12)
}

func TestEvaluateMulticlassMacro(t *testing.T) {
	y := column(0, 1, 2, 0, 1, 2)
	est := &fixedClassifier{fixed: fixed{pred: []float64{0, 1, 2, 0, 1, 2}}, classes: []int{0, 1, 2}}

	ev, err := Evaluate(est, mat.NewDense(6, 1, nil), y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, ev.Accuracy)
	assert.Equal(t, 1.0, ev.Sensitivity)
	assert.Equal(t, 1.0, ev.Specificity)
	assert.InDelta(t, 1.0/3, ev.NoInformationRate, 1e-12)
}

func TestEvaluateErrors(t *testing.T) {
	_, err := Evaluate(nil, mat.NewDense(1, 1, nil), column(1))
	assert.Error(t, err)

	est := &fixed{pred: []float64{1, 0}}
	_, err = Evaluate(est, mat.NewDense(3, 1, nil), column(1, 0))
	assert.Error(t, err)
}

func derivedMovies(t *testing.T) dataframe.DataFrame {
	t.Helper()
	df := dataframe.New(
		series.New([]int{3, 0, 3, 1, 3, 2}, series.Int, features.ColBechdel),
		series.New([]float64{5e6, 2e5, 8e6, 3e6, 1e5, 9e6}, series.Float, features.ColBudget),
		series.New([]float64{100, 90, 110, 95, 85, 120}, series.Float, features.ColRuntime),
		series.New([]int{2000, 2001, 2002, 2003, 2004, 2005}, series.Int, features.ColYear),
		series.New([]float64{0.4, 0.2, 0.5, 0.1, 0.3, 0.2}, series.Float, features.ColFemaleRatio),
		series.New([]int{1, 0, 1, 0, 0, 0}, series.Int, features.ColFemaleDirector),
		series.New([]string{"Drama", "Action", "Comedy", "Action", "Drama", "War"}, series.String, features.ColGenres),
	)
	out, err := features.Derive(df)
	require.NoError(t, err)
	return out
}

func TestEvaluateSubsets(t *testing.T) {
	df := derivedMovies(t)
	est := budgetThreshold{limit: 1e6}

	subsets, err := EvaluateSubsets(est, df, features.ColBechdelBin, features.ColFemaleDirector)
	require.NoError(t, err)
	require.Len(t, subsets, 2)

	assert.Equal(t, features.FemaleDirector, subsets[0].Value)
	assert.Equal(t, features.MaleDirector, subsets[1].Value)

	female := subsets[0].Evaluation
	assert.Equal(t, 2, female.N)
	assert.Equal(t, 1.0, female.Accuracy)
	assert.Equal(t, []int{0, 1}, female.Confusion.Labels, "labels from the whole table")
	assert.Equal(t, features.FemaleDirector, female.Subset)

	// male rows: budgets 2e5, 3e6, 1e5, 9e6 with targets 0, 0, 1, 0
	male := subsets[1].Evaluation
	assert.Equal(t, 4, male.N)
	assert.InDelta(t, 0.25, male.Accuracy, 1e-12)
	assert.Equal(t, female.N+male.N, df.Nrow())
}

func TestEvaluateSubsetsUnknownColumn(t *testing.T) {
	_, err := EvaluateSubsets(budgetThreshold{}, derivedMovies(t), features.ColBechdelBin, "nope")
	assert.ErrorIs(t, err, scigoErrors.ErrSchemaMismatch)
}
