// Package report renders model evaluations and exploratory views of the
// movie table: console tables, CSV, an XLSX workbook, PNG plots and summary
// statistics.
package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"

	"github.com/YuminosukeSato/bechdel/evaluation"
	scigoErrors "github.com/YuminosukeSato/bechdel/pkg/errors"
)

// Row is one line of the results table.
type Row struct {
	Model       string
	Subset      string
	Accuracy    float64
	Sensitivity float64
	Specificity float64
	NIR         float64
	AUC         float64
	N           int
}

// Header is the column order used by every results output.
var Header = []string{"model", "subset", "accuracy", "sensitivity", "specificity", "nir", "auc", "n"}

// Rows flattens evaluations into table rows, in order.
func Rows(evals []*evaluation.Evaluation) []Row {
	rows := make([]Row, 0, len(evals))
	for _, ev := range evals {
		if ev == nil {
			continue
		}
		subset := ev.Subset
		if subset == "" {
			subset = "all"
		}
		rows = append(rows, Row{
			Model:       ev.Model,
			Subset:      subset,
			Accuracy:    ev.Accuracy,
			Sensitivity: ev.Sensitivity,
			Specificity: ev.Specificity,
			NIR:         ev.NoInformationRate,
			AUC:         ev.AUC,
			N:           ev.N,
		})
	}
	return rows
}

func (r Row) cells() []string {
	return []string{
		r.Model, r.Subset,
		formatMetric(r.Accuracy), formatMetric(r.Sensitivity), formatMetric(r.Specificity),
		formatMetric(r.NIR), formatMetric(r.AUC), strconv.Itoa(r.N),
	}
}

func formatMetric(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// WriteTable prints the results as an aligned text table.
func WriteTable(w io.Writer, rows []Row) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	writeLine(tw, Header)
	for _, r := range rows {
		writeLine(tw, r.cells())
	}
	return tw.Flush()
}

// WriteConfusion prints a confusion matrix with predictions as rows and
// actual labels as columns.
func WriteConfusion(w io.Writer, ev *evaluation.Evaluation) error {
	if ev == nil || ev.Confusion == nil {
		return scigoErrors.NewValueError("report.WriteConfusion", "no confusion matrix")
	}
	title := ev.Model
	if ev.Subset != "" {
		title += " [" + ev.Subset + "]"
	}
	if _, err := fmt.Fprintf(w, "%s\n", title); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := []string{"pred\\actual"}
	for _, l := range ev.Confusion.Labels {
		header = append(header, strconv.Itoa(l))
	}
	writeLine(tw, header)
	for p, l := range ev.Confusion.Labels {
		line := []string{strconv.Itoa(l)}
		for _, v := range ev.Confusion.Counts[p] {
			line = append(line, strconv.Itoa(v))
		}
		writeLine(tw, line)
	}
	return tw.Flush()
}

func writeLine(w io.Writer, cells []string) {
	for i, c := range cells {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, c)
	}
	fmt.Fprintln(w, "\t")
}

// ResultsFrame converts rows into a DataFrame with the Header columns.
func ResultsFrame(rows []Row) dataframe.DataFrame {
	n := len(rows)
	models := make([]string, n)
	subsets := make([]string, n)
	acc := make([]float64, n)
	sens := make([]float64, n)
	spec := make([]float64, n)
	nir := make([]float64, n)
	auc := make([]float64, n)
	counts := make([]int, n)
	for i, r := range rows {
		models[i], subsets[i] = r.Model, r.Subset
		acc[i], sens[i], spec[i], nir[i], auc[i] = r.Accuracy, r.Sensitivity, r.Specificity, r.NIR, r.AUC
		counts[i] = r.N
	}
	return dataframe.New(
		series.New(models, series.String, Header[0]),
		series.New(subsets, series.String, Header[1]),
		series.New(acc, series.Float, Header[2]),
		series.New(sens, series.Float, Header[3]),
		series.New(spec, series.Float, Header[4]),
		series.New(nir, series.Float, Header[5]),
		series.New(auc, series.Float, Header[6]),
		series.New(counts, series.Int, Header[7]),
	)
}

// WriteCSV writes the results table as CSV.
func WriteCSV(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return scigoErrors.Wrapf(err, "report: create %s", path)
	}
	defer f.Close()

	if err := ResultsFrame(rows).WriteCSV(f); err != nil {
		return scigoErrors.Wrapf(err, "report: write %s", path)
	}
	return f.Close()
}

// ResultsSheet is the workbook sheet holding the results table.
const ResultsSheet = "results"

// WriteXLSX writes a workbook with the results table on the first sheet and
// one sheet per confusion matrix.
func WriteXLSX(path string, evals []*evaluation.Evaluation) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ResultsSheet); err != nil {
		return scigoErrors.Wrap(err, "report: rename sheet")
	}
	if err := setRow(f, ResultsSheet, 1, toAny(Header)); err != nil {
		return err
	}
	for i, r := range Rows(evals) {
		values := []interface{}{r.Model, r.Subset, cellFloat(r.Accuracy), cellFloat(r.Sensitivity),
			cellFloat(r.Specificity), cellFloat(r.NIR), cellFloat(r.AUC), r.N}
		if err := setRow(f, ResultsSheet, i+2, values); err != nil {
			return err
		}
	}

	used := map[string]int{ResultsSheet: 1}
	for _, ev := range evals {
		if ev == nil || ev.Confusion == nil {
			continue
		}
		name := sheetName(ev, used)
		if _, err := f.NewSheet(name); err != nil {
			return scigoErrors.Wrapf(err, "report: add sheet %s", name)
		}
		header := []interface{}{"pred\\actual"}
		for _, l := range ev.Confusion.Labels {
			header = append(header, l)
		}
		if err := setRow(f, name, 1, header); err != nil {
			return err
		}
		for p, l := range ev.Confusion.Labels {
			line := []interface{}{l}
			for _, v := range ev.Confusion.Counts[p] {
				line = append(line, v)
			}
			if err := setRow(f, name, p+2, line); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return scigoErrors.Wrapf(err, "report: save %s", path)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return scigoErrors.Wrap(err, "report: cell name")
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return scigoErrors.Wrapf(err, "report: write %s!%s", sheet, cell)
	}
	return nil
}

// cellFloat leaves undefined metrics as the text NA.
func cellFloat(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "NA"
	}
	return v
}

func toAny(xs []string) []interface{} {
	out := make([]interface{}, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

// sheetName builds a unique sheet name within Excel's 31 character limit.
func sheetName(ev *evaluation.Evaluation, used map[string]int) string {
	base := ev.Model
	if ev.Subset != "" {
		base += " " + ev.Subset
	}
	base = sanitizeSheet(base)
	if base == "" {
		base = "model"
	}
	used[base]++
	if n := used[base]; n > 1 {
		suffix := fmt.Sprintf("_%d", n)
		return truncate(base, maxSheetName-len(suffix)) + suffix
	}
	return truncate(base, maxSheetName)
}

const maxSheetName = 31

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func sanitizeSheet(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
