package features

import (
	"math"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scigoErrors "github.com/YuminosukeSato/bechdel/pkg/errors"
	"github.com/YuminosukeSato/bechdel/pkg/log"
)

func movies() dataframe.DataFrame {
	return dataframe.New(
		series.New([]int{3, 0, 1, 3, 2}, series.Int, ColBechdel),
		series.New([]float64{5e6, 9999, 10000, 2e7, math.NaN()}, series.Float, ColBudget),
		series.New([]float64{120, 90, math.NaN(), 100, 80}, series.Float, ColRuntime),
		series.New([]int{1999, 2001, 2003, 2005, 2007}, series.Int, ColYear),
		series.New([]float64{0.5, 0.1, 0.2, 0.3, 0.4}, series.Float, ColFemaleRatio),
		series.New([]int{1, 0, 0, 1, 0}, series.Int, ColFemaleDirector),
		series.New([]string{
			"[{'id': 18, 'name': 'Drama'}, {'id': 878, 'name': 'Science Fiction'}]",
			"[{'id': 35, 'name': 'Comedy'}]",
			"",
			"[{'id': 10752, 'name': 'War'}, {'id': 28, 'name': 'Action'}]",
			"[{'id': 10402, 'name': 'Music'}]",
		}, series.String, ColGenres),
	)
}

func TestFilterBudget(t *testing.T) {
	out, err := FilterBudget(movies(), DefaultMinBudget)
	require.NoError(t, err)

	assert.Equal(t, 3, out.Nrow())
	for _, b := range out.Col(ColBudget).Float() {
		assert.GreaterOrEqual(t, b, float64(DefaultMinBudget))
	}
}

func TestFilterBudgetWithLogger(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)

	_, err := FilterBudget(movies(), DefaultMinBudget, WithLogger(logger.With(log.RunIDKey, "r1")))
	require.NoError(t, err)
	assert.True(t, logger.ContainsMessage("budget filter applied"))
	assert.True(t, logger.ContainsField(log.RunIDKey, "r1"))
	assert.True(t, logger.ContainsField(log.RowsOutKey, 3.0))
}

func TestFilterBudgetMissingColumn(t *testing.T) {
	df := dataframe.New(series.New([]int{1}, series.Int, ColBechdel))
	_, err := FilterBudget(df, DefaultMinBudget)
	assert.ErrorIs(t, err, scigoErrors.ErrSchemaMismatch)
}

func TestDerive(t *testing.T) {
	in := movies()
	out, err := Derive(in)
	require.NoError(t, err)

	assert.Equal(t, in.Nrow(), out.Nrow())
	assert.NotContains(t, out.Names(), ColGenres)
	assert.Contains(t, in.Names(), ColGenres, "input unchanged")

	bin, err := out.Col(ColBechdelBin).Int()
	require.NoError(t, err)
	scores, err := out.Col(ColBechdel).Int()
	require.NoError(t, err)
	for i := range scores {
		assert.Equal(t, scores[i] == 3, bin[i] == 1)
	}

	assert.Equal(t,
		[]string{FemaleDirector, MaleDirector, MaleDirector, FemaleDirector, MaleDirector},
		out.Col(ColFemaleDirector).Records())

	for _, g := range Genres {
		assert.Equal(t, series.Bool, out.Col(GenreColumn(g)).Type(), g)
	}
	assert.Equal(t, []string{"true", "false", "false", "false", "false"}, out.Col("science_fiction").Records())
	assert.Equal(t, []string{"true", "false", "false", "false", "false"}, out.Col("drama").Records())
	assert.Equal(t, []string{"false", "false", "false", "true", "false"}, out.Col("war").Records())
	assert.Equal(t, []string{"false", "false", "false", "true", "false"}, out.Col("action").Records())
	assert.Equal(t, []string{"false", "false", "false", "false", "true"}, out.Col("music").Records())
	assert.Equal(t, []string{"false", "false", "false", "false", "false"}, out.Col("western").Records())
}

func TestGenreColumn(t *testing.T) {
	assert.Equal(t, "science_fiction", GenreColumn("Science Fiction"))
	assert.Equal(t, "action", GenreColumn("Action"))
	assert.Len(t, Genres, 19)
}

func TestCompleteCases(t *testing.T) {
	out, dropped, err := CompleteCases(movies(), NumericPredictors)
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)
	assert.Equal(t, 3, out.Nrow())

	same, dropped, err := CompleteCases(out, NumericPredictors)
	require.NoError(t, err)
	assert.Zero(t, dropped)
	assert.Equal(t, out.Nrow(), same.Nrow())

	_, _, err = CompleteCases(out, []string{"missing"})
	assert.ErrorIs(t, err, scigoErrors.ErrSchemaMismatch)
}

func TestDesign(t *testing.T) {
	derived, err := Derive(movies())
	require.NoError(t, err)
	complete, _, err := CompleteCases(derived, NumericPredictors)
	require.NoError(t, err)

	X, y, names, err := Design(complete, ColBechdelBin)
	require.NoError(t, err)

	r, c := X.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 24, c)
	assert.Equal(t, FeatureNames(), names)

	// rows: budgets 5e6, 9999, 2e7
	assert.Equal(t, 5e6, X.At(0, 0))
	assert.Equal(t, 120.0, X.At(0, 1))
	assert.Equal(t, 1999.0, X.At(0, 2))
	assert.Equal(t, 1.0, X.At(0, 4), "female director")
	assert.Equal(t, 0.0, X.At(1, 4))
	assert.Equal(t, 1.0, X.At(2, 4))

	warCol := 5 + 17
	assert.Equal(t, "war", names[warCol])
	assert.Equal(t, 1.0, X.At(2, warCol))
	assert.Equal(t, 0.0, X.At(0, warCol))

	assert.Equal(t, []float64{1, 0, 1}, []float64{y.At(0, 0), y.At(1, 0), y.At(2, 0)})
}

func TestDesignErrors(t *testing.T) {
	_, _, _, err := Design(movies(), ColBechdelBin)
	assert.ErrorIs(t, err, scigoErrors.ErrSchemaMismatch)

	derived, err := Derive(movies())
	require.NoError(t, err)
	empty := derived.Subset([]int{})
	_, _, _, err = Design(empty, ColBechdel)
	assert.Error(t, err)
}
