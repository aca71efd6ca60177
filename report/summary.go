package report

import (
	"io"
	"math"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	scigoErrors "github.com/YuminosukeSato/bechdel/pkg/errors"
)

// Summary describes one numeric column, ignoring missing values.
type Summary struct {
	Column  string
	N       int
	Missing int
	Mean    float64
	Std     float64
	Min     float64
	Q1      float64
	Median  float64
	Q3      float64
	Max     float64
}

// Summarize computes summaries for the given numeric columns.
func Summarize(df dataframe.DataFrame, cols ...string) ([]Summary, error) {
	names := make(map[string]bool)
	for _, n := range df.Names() {
		names[n] = true
	}

	out := make([]Summary, 0, len(cols))
	for _, c := range cols {
		if !names[c] {
			return nil, scigoErrors.NewSchemaMismatchError("report", []string{c})
		}
		raw := df.Col(c).Float()
		vals := make([]float64, 0, len(raw))
		for _, v := range raw {
			if !math.IsNaN(v) {
				vals = append(vals, v)
			}
		}
		s := Summary{Column: c, N: len(vals), Missing: len(raw) - len(vals)}
		if len(vals) == 0 {
			s.Mean, s.Std, s.Min, s.Q1, s.Median, s.Q3, s.Max = nan7()
			out = append(out, s)
			continue
		}
		sort.Float64s(vals)
		s.Mean, s.Std = stat.MeanStdDev(vals, nil)
		s.Min = floats.Min(vals)
		s.Max = floats.Max(vals)
		s.Q1 = stat.Quantile(0.25, stat.Empirical, vals, nil)
		s.Median = stat.Quantile(0.5, stat.Empirical, vals, nil)
		s.Q3 = stat.Quantile(0.75, stat.Empirical, vals, nil)
		out = append(out, s)
	}
	return out, nil
}

func nan7() (a, b, c, d, e, f, g float64) {
	n := math.NaN()
	return n, n, n, n, n, n, n
}

// WriteSummaries prints summaries as a text table.
func WriteSummaries(w io.Writer, sums []Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	writeLine(tw, []string{"column", "n", "missing", "mean", "std", "min", "q1", "median", "q3", "max"})
	for _, s := range sums {
		writeLine(tw, []string{
			s.Column, strconv.Itoa(s.N), strconv.Itoa(s.Missing),
			formatNumber(s.Mean), formatNumber(s.Std), formatNumber(s.Min),
			formatNumber(s.Q1), formatNumber(s.Median), formatNumber(s.Q3), formatNumber(s.Max),
		})
	}
	return tw.Flush()
}

func formatNumber(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}
