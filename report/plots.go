package report

import (
	"image/color"
	"math"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/bechdel/features"
	scigoErrors "github.com/YuminosukeSato/bechdel/pkg/errors"
)

// Plot file names written by WritePlots.
const (
	ScoreDistributionFile = "bechdel_scores.png"
	PassRateByGenreFile   = "pass_rate_by_genre.png"
	FemaleRatioHistFile   = "female_ratio_hist.png"
	BudgetScatterFile     = "budget_vs_female_ratio.png"
)

var (
	passColor = color.RGBA{G: 150, B: 80, A: 255}
	failColor = color.RGBA{R: 200, G: 40, B: 40, A: 255}
)

// WritePlots renders the exploratory plots of a derived movie table into dir
// and returns the written paths.
func WritePlots(dir string, df dataframe.DataFrame) ([]string, error) {
	steps := []struct {
		file string
		fn   func(dataframe.DataFrame, string) error
	}{
		{ScoreDistributionFile, ScoreDistribution},
		{PassRateByGenreFile, PassRateByGenre},
		{FemaleRatioHistFile, FemaleRatioHistogram},
		{BudgetScatterFile, BudgetVsFemaleRatio},
	}
	var written []string
	for _, s := range steps {
		path := filepath.Join(dir, s.file)
		if err := s.fn(df, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// ScoreDistribution draws the number of movies per Bechdel score.
func ScoreDistribution(df dataframe.DataFrame, path string) error {
	if err := requireColumns(df, features.ColBechdel); err != nil {
		return err
	}
	counts := make(plotter.Values, 4)
	for _, v := range df.Col(features.ColBechdel).Float() {
		if v >= 0 && v <= 3 {
			counts[int(v)]++
		}
	}

	p := plot.New()
	p.Title.Text = "Bechdel score distribution"
	p.X.Label.Text = "Score"
	p.Y.Label.Text = "Movies"

	bars, err := plotter.NewBarChart(counts, vg.Points(30))
	if err != nil {
		return scigoErrors.Wrap(err, "report: score bars")
	}
	bars.Color = passColor
	p.Add(bars)
	p.NominalX("0", "1", "2", "3")

	return save(p, 5*vg.Inch, 4*vg.Inch, path)
}

// PassRateByGenre draws the share of movies passing the test per genre.
// Genres without movies are left out.
func PassRateByGenre(df dataframe.DataFrame, path string) error {
	if err := requireColumns(df, features.ColBechdelBin); err != nil {
		return err
	}
	pass := df.Col(features.ColBechdelBin).Float()

	var rates plotter.Values
	var labels []string
	for _, g := range features.Genres {
		col := features.GenreColumn(g)
		if err := requireColumns(df, col); err != nil {
			return err
		}
		var n, passed float64
		for i, rec := range df.Col(col).Records() {
			if rec != "true" {
				continue
			}
			n++
			passed += pass[i]
		}
		if n == 0 {
			continue
		}
		rates = append(rates, passed/n)
		labels = append(labels, g)
	}
	if len(rates) == 0 {
		return scigoErrors.NewValueError("report.PassRateByGenre", "no genre has any movie")
	}

	p := plot.New()
	p.Title.Text = "Bechdel pass rate by genre"
	p.Y.Label.Text = "Pass rate"
	p.Y.Min, p.Y.Max = 0, 1

	bars, err := plotter.NewBarChart(rates, vg.Points(14))
	if err != nil {
		return scigoErrors.Wrap(err, "report: genre bars")
	}
	bars.Color = passColor
	p.Add(bars)
	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = math.Pi / 3
	p.X.Tick.Label.XAlign = draw.XRight

	return save(p, 9*vg.Inch, 5*vg.Inch, path)
}

// FemaleRatioHistogram draws the distribution of female_ratio.
func FemaleRatioHistogram(df dataframe.DataFrame, path string) error {
	if err := requireColumns(df, features.ColFemaleRatio); err != nil {
		return err
	}
	vals := finite(df.Col(features.ColFemaleRatio).Float())
	if len(vals) == 0 {
		return scigoErrors.NewValueError("report.FemaleRatioHistogram", "no female_ratio values")
	}

	p := plot.New()
	p.Title.Text = "Female cast/crew ratio"
	p.X.Label.Text = "female_ratio"
	p.Y.Label.Text = "Movies"

	h, err := plotter.NewHist(plotter.Values(vals), 20)
	if err != nil {
		return scigoErrors.Wrap(err, "report: histogram")
	}
	h.FillColor = passColor
	p.Add(h)

	return save(p, 5*vg.Inch, 4*vg.Inch, path)
}

// BudgetVsFemaleRatio draws budget against female_ratio, colored by whether
// the movie passes the test.
func BudgetVsFemaleRatio(df dataframe.DataFrame, path string) error {
	if err := requireColumns(df, features.ColBudget, features.ColFemaleRatio, features.ColBechdelBin); err != nil {
		return err
	}
	budget := df.Col(features.ColBudget).Float()
	ratio := df.Col(features.ColFemaleRatio).Float()
	pass := df.Col(features.ColBechdelBin).Float()

	var passed, failed plotter.XYs
	for i := range budget {
		if math.IsNaN(budget[i]) || math.IsNaN(ratio[i]) {
			continue
		}
		pt := plotter.XY{X: budget[i] / 1e6, Y: ratio[i]}
		if pass[i] == 1 {
			passed = append(passed, pt)
		} else {
			failed = append(failed, pt)
		}
	}
	if len(passed)+len(failed) == 0 {
		return scigoErrors.NewValueError("report.BudgetVsFemaleRatio", "no complete rows")
	}

	p := plot.New()
	p.Title.Text = "Budget vs female ratio"
	p.X.Label.Text = "Budget (million USD)"
	p.Y.Label.Text = "female_ratio"

	for _, group := range []struct {
		name string
		pts  plotter.XYs
		c    color.Color
	}{
		{"fail", failed, failColor},
		{"pass", passed, passColor},
	} {
		if len(group.pts) == 0 {
			continue
		}
		s, err := plotter.NewScatter(group.pts)
		if err != nil {
			return scigoErrors.Wrap(err, "report: scatter")
		}
		s.Color = group.c
		s.Radius = vg.Points(2)
		p.Add(s)
		p.Legend.Add(group.name, s)
	}

	return save(p, 6*vg.Inch, 4*vg.Inch, path)
}

func save(p *plot.Plot, w, h vg.Length, path string) error {
	if err := p.Save(w, h, path); err != nil {
		return scigoErrors.Wrapf(err, "report: save %s", path)
	}
	return nil
}

func finite(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

func requireColumns(df dataframe.DataFrame, cols ...string) error {
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
	if len(missing) > 0 {
		return scigoErrors.NewSchemaMismatchError("report", missing)
	}
	return nil
}
