// Package pipeline wires the stages of a Bechdel modeling run: load,
// normalize, merge, filter and derive features, split, select and fit the
// model families, evaluate them on held-out rows and write the report.
package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bechdel/dataset"
	"github.com/YuminosukeSato/bechdel/evaluation"
	"github.com/YuminosukeSato/bechdel/features"
	"github.com/YuminosukeSato/bechdel/models"
	scigoErrors "github.com/YuminosukeSato/bechdel/pkg/errors"
	"github.com/YuminosukeSato/bechdel/pkg/log"
	"github.com/YuminosukeSato/bechdel/report"
	"github.com/YuminosukeSato/bechdel/sklearn/model_selection"
	"github.com/YuminosukeSato/bechdel/split"
)

// StageCount records the number of rows leaving a stage.
type StageCount struct {
	Stage string
	Rows  int
}

// ModelResult is the selection and held-out evaluation of one model.
type ModelResult struct {
	Name       string
	Target     string
	Selection  *model_selection.SearchResult
	Evaluation *evaluation.Evaluation
	Subsets    []evaluation.Subset
}

// Result is everything a run produced.
type Result struct {
	RunID     string
	Stages    []StageCount
	Merge     *dataset.MergeReport
	Partition *split.Partition
	Summaries []report.Summary
	Models    []ModelResult
	Outputs   []string // files written
}

// Evaluations returns the overall evaluations followed by the subset
// evaluations of every model.
func (r *Result) Evaluations() []*evaluation.Evaluation {
	var out []*evaluation.Evaluation
	for _, m := range r.Models {
		out = append(out, m.Evaluation)
	}
	for _, m := range r.Models {
		for _, s := range m.Subsets {
			out = append(out, s.Evaluation)
		}
	}
	return out
}

// SubsetColumn is the column used for subgroup evaluation.
const SubsetColumn = features.ColFemaleDirector

type runConfig struct {
	console io.Writer
	logger  log.Logger
}

// Option configures Run.
type Option func(*runConfig)

// WithConsole sets where console tables are printed (default os.Stdout).
func WithConsole(w io.Writer) Option {
	return func(c *runConfig) { c.console = w }
}

// WithLogger sets the run logger.
func WithLogger(l log.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// Run executes one full run. Any stage error aborts the run.
func Run(ctx context.Context, cfg Config, opts ...Option) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rc := &runConfig{console: os.Stdout}
	for _, opt := range opts {
		opt(rc)
	}
	if rc.logger == nil {
		rc.logger = log.GetLoggerWithName("pipeline")
	}

	res := &Result{RunID: uuid.NewString()}
	logger := rc.logger.With(log.RunIDKey, res.RunID)
	logger.Info("run started", log.RandomSeedKey, cfg.Seed, "models", cfg.Models)
	started := time.Now()

	r := &runner{cfg: cfg, rc: rc, res: res, logger: logger}
	if err := r.run(ctx); err != nil {
		logger.Error("run failed", err)
		return nil, err
	}

	logger.Info("run finished", log.DurationMsKey, time.Since(started).Milliseconds())
	return res, nil
}

type runner struct {
	cfg    Config
	rc     *runConfig
	res    *Result
	logger log.Logger
}

func (r *runner) stage(name string, rows int, began time.Time) {
	r.res.Stages = append(r.res.Stages, StageCount{Stage: name, Rows: rows})
	r.logger.Info("stage finished",
		log.StageKey, name,
		log.RowsOutKey, rows,
		log.DurationMsKey, time.Since(began).Milliseconds(),
	)
}

func (r *runner) run(ctx context.Context) error {
	t := time.Now()
	raw, err := dataset.Load(r.cfg.Inputs, dataset.WithLogger(r.logger))
	if err != nil {
		return err
	}
	r.stage("load", raw.Bechdel.Nrow(), t)

	t = time.Now()
	norm, err := dataset.Normalize(raw, dataset.NormalizeOptions{SkipMalformedKeys: r.cfg.SkipMalformedKeys}, dataset.WithLogger(r.logger))
	if err != nil {
		return err
	}
	r.stage("normalize", norm.Bechdel.Nrow(), t)

	t = time.Now()
	merged, mergeReport, err := dataset.Merge(norm, dataset.WithLogger(r.logger))
	if err != nil {
		return err
	}
	r.res.Merge = mergeReport
	r.stage("merge", merged.Nrow(), t)

	if err := ctx.Err(); err != nil {
		return err
	}

	t = time.Now()
	filtered, err := features.FilterBudget(merged, r.cfg.MinBudget, features.WithLogger(r.logger))
	if err != nil {
		return err
	}
	r.stage("filter", filtered.Nrow(), t)

	t = time.Now()
	derived, err := features.Derive(filtered)
	if err != nil {
		return err
	}
	complete, _, err := features.CompleteCases(derived, features.NumericPredictors, features.WithLogger(r.logger))
	if err != nil {
		return err
	}
	r.stage("derive", complete.Nrow(), t)

	r.res.Summaries, err = report.Summarize(complete, features.NumericPredictors...)
	if err != nil {
		return err
	}

	t = time.Now()
	part, err := split.TrainTest(complete, r.cfg.TrainProportion, r.cfg.Seed, split.WithLogger(r.logger))
	if err != nil {
		return err
	}
	r.res.Partition = part
	r.stage("split", part.Train.Nrow(), t)

	for _, spec := range r.specs() {
		if !r.cfg.enabled(spec.name) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		mr, err := r.model(ctx, spec, part)
		if err != nil {
			return scigoErrors.Wrapf(err, "pipeline: model %s", spec.name)
		}
		r.res.Models = append(r.res.Models, *mr)
	}

	return r.write(complete)
}

type modelSpec struct {
	name     string
	target   string
	scoring  model_selection.Scoring
	gridScan bool
	family   model_selection.Family
}

func (r *runner) specs() []modelSpec {
	cfg := r.cfg
	knnClf := models.KNNClassifier{Ks: cfg.KNNClassifierKs}
	gbm := models.GradientBoosting{
		NEstimators:    cfg.GBM.NEstimators,
		MaxDepths:      cfg.GBM.MaxDepths,
		LearningRate:   cfg.GBM.LearningRate,
		MinSamplesLeaf: cfg.GBM.MinSamplesLeaf,
		Logger:         r.logger,
	}
	return []modelSpec{
		{
			name: ModelKNNRegression, target: features.ColBechdel,
			scoring: model_selection.ScoringRMSE, gridScan: true,
			family: models.KNNRegressor{KMin: cfg.KNNRegression.Min, KMax: cfg.KNNRegression.Max},
		},
		{name: ModelKNNMulticlass, target: features.ColBechdel, scoring: model_selection.ScoringAccuracy, family: knnClf},
		{name: ModelKNNBinary, target: features.ColBechdelBin, scoring: model_selection.ScoringROCAUC, family: knnClf},
		{name: ModelGBMMulticlass, target: features.ColBechdel, scoring: model_selection.ScoringAccuracy, family: gbm},
		{name: ModelGBMBinary, target: features.ColBechdelBin, scoring: model_selection.ScoringROCAUC, family: gbm},
		{
			name: ModelMultinomial, target: features.ColBechdel, scoring: model_selection.ScoringAccuracy,
			family: models.Multinomial{Decays: cfg.MultinomialDecays, MaxIter: cfg.MaxIter, Seed: cfg.Seed, Logger: r.logger},
		},
		{
			name: ModelLogistic, target: features.ColBechdelBin, scoring: model_selection.ScoringROCAUC,
			family: models.Logistic{MaxIter: cfg.MaxIter, Seed: cfg.Seed, Logger: r.logger},
		},
	}
}

func (r *runner) model(ctx context.Context, spec modelSpec, part *split.Partition) (*ModelResult, error) {
	logger := r.logger.With(log.ModelNameKey, spec.name, log.TargetKey, spec.target)

	XTrain, yTrain, _, err := features.Design(part.Train, spec.target)
	if err != nil {
		return nil, err
	}
	XTest, yTest, _, err := features.Design(part.Test, spec.target)
	if err != nil {
		return nil, err
	}

	opts := []model_selection.SearchOption{
		model_selection.WithScoring(spec.scoring),
		model_selection.WithSeed(r.cfg.Seed),
		model_selection.WithFolds(r.cfg.Folds),
		model_selection.WithParallel(r.cfg.Parallel),
		model_selection.WithPositiveClass(r.cfg.PositiveClass),
		model_selection.WithLogger(logger),
	}
	var sel *model_selection.SearchResult
	if spec.gridScan {
		sel, err = model_selection.GridScan(ctx, spec.family, XTrain, yTrain, opts...)
	} else {
		sel, err = model_selection.CrossValidate(ctx, spec.family, XTrain, yTrain, opts...)
	}
	if err != nil {
		return nil, err
	}

	labels := classLabels(spec.target, yTrain, yTest)
	evalOpts := []evaluation.Option{
		evaluation.WithModelName(spec.name),
		evaluation.WithPositiveClass(r.cfg.PositiveClass),
		evaluation.WithLabels(labels),
		evaluation.WithLogger(logger),
	}
	ev, err := evaluation.Evaluate(sel.Estimator, XTest, yTest, evalOpts...)
	if err != nil {
		return nil, err
	}
	subsets, err := evaluation.EvaluateSubsets(sel.Estimator, part.Test, spec.target, SubsetColumn, evalOpts...)
	if err != nil {
		return nil, err
	}

	return &ModelResult{
		Name:       spec.name,
		Target:     spec.target,
		Selection:  sel,
		Evaluation: ev,
		Subsets:    subsets,
	}, nil
}

// classLabels is the label set of a target: always {0, 1} for the binary
// target, otherwise the labels seen in training or test rows.
func classLabels(target string, ys ...mat.Matrix) []int {
	if target == features.ColBechdelBin {
		return []int{0, 1}
	}
	seen := make(map[int]bool)
	var labels []int
	for _, y := range ys {
		r, _ := y.Dims()
		for i := 0; i < r; i++ {
			l := int(y.At(i, 0))
			if !seen[l] {
				seen[l] = true
				labels = append(labels, l)
			}
		}
	}
	return labels
}

func (r *runner) write(complete dataframe.DataFrame) error {
	t := time.Now()
	evals := r.res.Evaluations()
	rows := report.Rows(evals)

	if r.cfg.wants(FormatConsole) && r.rc.console != nil {
		if err := report.WriteSummaries(r.rc.console, r.res.Summaries); err != nil {
			return err
		}
		if err := report.WriteTable(r.rc.console, rows); err != nil {
			return err
		}
		for _, m := range r.res.Models {
			if err := report.WriteConfusion(r.rc.console, m.Evaluation); err != nil {
				return err
			}
		}
	}

	needsDir := r.cfg.wants(FormatCSV) || r.cfg.wants(FormatXLSX) || r.cfg.wants(FormatPlots)
	if needsDir {
		if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
			return scigoErrors.Wrapf(err, "pipeline: create %s", r.cfg.OutputDir)
		}
	}
	if r.cfg.wants(FormatCSV) {
		path := filepath.Join(r.cfg.OutputDir, "results.csv")
		if err := report.WriteCSV(path, rows); err != nil {
			return err
		}
		r.res.Outputs = append(r.res.Outputs, path)
	}
	if r.cfg.wants(FormatXLSX) {
		path := filepath.Join(r.cfg.OutputDir, "results.xlsx")
		if err := report.WriteXLSX(path, evals); err != nil {
			return err
		}
		r.res.Outputs = append(r.res.Outputs, path)
	}
	if r.cfg.wants(FormatPlots) {
		paths, err := report.WritePlots(r.cfg.OutputDir, complete)
		if err != nil {
			return err
		}
		r.res.Outputs = append(r.res.Outputs, paths...)
	}

	r.stage("report", len(rows), t)
	return nil
}
