// Package features filters the merged movie table and derives the modeling
// columns: binary target, director label, genre indicators and the numeric
// design matrix.
package features

import (
	"math"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/mat"

	scigoErrors "github.com/YuminosukeSato/bechdel/pkg/errors"
	"github.com/YuminosukeSato/bechdel/pkg/log"
)

// Column names produced or consumed here.
const (
	ColBechdel        = "bechdel"
	ColBechdelBin     = "bechdel_bin"
	ColBudget         = "budget"
	ColRuntime        = "runtime"
	ColYear           = "year"
	ColFemaleRatio    = "female_ratio"
	ColFemaleDirector = "female_director"
	ColGenres         = "genres"
)

// Director labels.
const (
	FemaleDirector = "female director"
	MaleDirector   = "male director"
)

// DefaultMinBudget is the smallest budget kept by FilterBudget.
const DefaultMinBudget = 10000

// Genres are matched literally against the genres column.
var Genres = []string{
	"Action", "Adventure", "Animation", "Comedy", "Crime", "Documentary",
	"Drama", "Family", "Fantasy", "Foreign", "History", "Horror", "Music",
	"Mystery", "Romance", "Science Fiction", "Thriller", "War", "Western",
}

// NumericPredictors are the continuous columns of the design matrix.
var NumericPredictors = []string{ColBudget, ColRuntime, ColYear, ColFemaleRatio}

// GenreColumn returns the indicator column name for a genre,
// e.g. "Science Fiction" -> "science_fiction".
func GenreColumn(genre string) string {
	return strings.ReplaceAll(strings.ToLower(genre), " ", "_")
}

// FilterBudget keeps rows with budget >= min. Missing budgets are dropped.
func FilterBudget(df dataframe.DataFrame, min float64, opts ...Option) (dataframe.DataFrame, error) {
	if !hasColumn(df, ColBudget) {
		return dataframe.DataFrame{}, scigoErrors.NewSchemaMismatchError("features", []string{ColBudget})
	}
	out := df.Filter(dataframe.F{Colname: ColBudget, Comparator: series.GreaterEq, Comparando: min})
	if out.Err != nil {
		return dataframe.DataFrame{}, scigoErrors.Wrap(out.Err, "features: filter budget")
	}

	loggerFrom(opts).Info("budget filter applied",
		log.StageKey, "filter",
		log.RowsInKey, df.Nrow(),
		log.RowsOutKey, out.Nrow(),
		"min_budget", min,
	)
	return out, nil
}

// Derive adds bechdel_bin, recodes female_director to a two-level label,
// adds one Bool indicator per genre and drops genres. Every input row yields
// one output row. A missing director flag is recoded as male director.
func Derive(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if missing := missingColumns(df, ColBechdel, ColFemaleDirector, ColGenres); len(missing) > 0 {
		return dataframe.DataFrame{}, scigoErrors.NewSchemaMismatchError("features", missing)
	}

	scores := df.Col(ColBechdel).Float()
	bin := make([]int, len(scores))
	for i, s := range scores {
		if s == 3 {
			bin[i] = 1
		}
	}

	flags := df.Col(ColFemaleDirector).Float()
	labels := make([]string, len(flags))
	for i, f := range flags {
		if f == 1 {
			labels[i] = FemaleDirector
		} else {
			labels[i] = MaleDirector
		}
	}

	cols := []series.Series{
		series.New(bin, series.Int, ColBechdelBin),
		series.New(labels, series.String, ColFemaleDirector),
	}

	genres := df.Col(ColGenres).Records()
	for _, g := range Genres {
		ind := make([]bool, len(genres))
		for i, text := range genres {
			ind[i] = strings.Contains(text, g)
		}
		cols = append(cols, series.New(ind, series.Bool, GenreColumn(g)))
	}

	out := df
	for _, s := range cols {
		out = out.Mutate(s)
		if out.Err != nil {
			return dataframe.DataFrame{}, scigoErrors.Wrapf(out.Err, "features: set %s", s.Name)
		}
	}
	out = out.Drop(ColGenres)
	if out.Err != nil {
		return dataframe.DataFrame{}, scigoErrors.Wrap(out.Err, "features: drop genres")
	}
	return out, nil
}

// CompleteCases drops rows with a missing value in any of cols and returns
// the number of rows dropped.
func CompleteCases(df dataframe.DataFrame, cols []string, opts ...Option) (dataframe.DataFrame, int, error) {
	if missing := missingColumns(df, cols...); len(missing) > 0 {
		return dataframe.DataFrame{}, 0, scigoErrors.NewSchemaMismatchError("features", missing)
	}

	keep := make([]int, 0, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		complete := true
		for _, c := range cols {
			if df.Col(c).Elem(i).IsNA() {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, i)
		}
	}

	dropped := df.Nrow() - len(keep)
	if dropped == 0 {
		return df, 0, nil
	}

	loggerFrom(opts).Warn("incomplete rows dropped",
		log.StageKey, "complete_cases",
		log.RowsInKey, df.Nrow(),
		log.RowsOutKey, len(keep),
	)
	out := df.Subset(keep)
	if out.Err != nil {
		return dataframe.DataFrame{}, 0, scigoErrors.Wrap(out.Err, "features: complete cases")
	}
	return out, dropped, nil
}

// FeatureNames lists the design matrix columns in order.
func FeatureNames() []string {
	names := append([]string{}, NumericPredictors...)
	names = append(names, ColFemaleDirector)
	for _, g := range Genres {
		names = append(names, GenreColumn(g))
	}
	return names
}

// Design converts a derived table into a predictor matrix and a single
// target column. female_director is 1 for a female director; genre
// indicators are 0/1.
func Design(df dataframe.DataFrame, target string) (*mat.Dense, *mat.Dense, []string, error) {
	names := FeatureNames()
	if missing := missingColumns(df, append(names, target)...); len(missing) > 0 {
		return nil, nil, nil, scigoErrors.NewSchemaMismatchError("features", missing)
	}
	n := df.Nrow()
	if n == 0 {
		return nil, nil, nil, scigoErrors.NewModelError("features.Design", "empty data", scigoErrors.ErrEmptyData)
	}

	X := mat.NewDense(n, len(names), nil)
	for j, name := range names {
		col := df.Col(name)
		switch {
		case name == ColFemaleDirector:
			for i, label := range col.Records() {
				if label == FemaleDirector {
					X.Set(i, j, 1)
				}
			}
		case col.Type() == series.Bool:
			for i := 0; i < n; i++ {
				if b, err := col.Elem(i).Bool(); err == nil && b {
					X.Set(i, j, 1)
				}
			}
		default:
			X.SetCol(j, col.Float())
		}
	}

	yVals := df.Col(target).Float()
	for _, v := range yVals {
		if math.IsNaN(v) {
			return nil, nil, nil, scigoErrors.NewValueError("features.Design", "target "+target+" has missing values")
		}
	}
	y := mat.NewDense(n, 1, yVals)

	return X, y, names, nil
}

func missingColumns(df dataframe.DataFrame, cols ...string) []string {
	have := make(map[string]bool)
	for _, n := range df.Names() {
		have[n] = true
	}
	var missing []string
	for _, c := range cols {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

func hasColumn(df dataframe.DataFrame, name string) bool {
	return len(missingColumns(df, name)) == 0
}
