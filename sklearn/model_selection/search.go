package model_selection

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/bechdel/core/model"
	"github.com/YuminosukeSato/bechdel/metrics"
	scigoErrors "github.com/YuminosukeSato/bechdel/pkg/errors"
	"github.com/YuminosukeSato/bechdel/pkg/log"
)

// Params is one hyperparameter combination, e.g. {"n_neighbors": 5}.
type Params map[string]float64

// Int returns the named parameter as an int.
func (p Params) Int(name string) int {
	return int(math.Round(p[name]))
}

// String renders the parameters sorted by name.
func (p Params) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, p[k])
	}
	return strings.Join(parts, ", ")
}

// Family is a model family: a name, an ordered candidate list and a
// constructor for an unfitted estimator from one candidate.
type Family interface {
	Name() string
	Candidates() []Params
	New(p Params) model.Estimator
}

// SampleBounded is a Family whose candidates depend on the number of rows an
// estimator is fitted on, such as k-nearest neighbors where k cannot exceed
// the training size.
type SampleBounded interface {
	Family
	Bounded(n int) Family
}

// bound restricts fam to estimators that can be fitted on n rows.
func bound(fam Family, n int, logger log.Logger) Family {
	sb, ok := fam.(SampleBounded)
	if !ok {
		return fam
	}
	before := len(fam.Candidates())
	bounded := sb.Bounded(n)
	if after := len(bounded.Candidates()); after != before {
		logger.Warn("candidates limited by training rows",
			log.SamplesKey, n,
			"candidates", before,
			"kept", after,
		)
	}
	return bounded
}

// Scoring names the metric used to compare candidates.
type Scoring string

const (
	// ScoringAccuracy is the fraction of correctly predicted labels.
	ScoringAccuracy Scoring = "accuracy"
	// ScoringROCAUC is the area under the ROC curve of the positive class.
	ScoringROCAUC Scoring = "roc_auc"
	// ScoringRMSE is the root mean squared error of the predictions.
	ScoringRMSE Scoring = "rmse"
)

// GreaterIsBetter reports whether higher scores win.
func (s Scoring) GreaterIsBetter() bool {
	return s != ScoringRMSE
}

// CandidateResult holds the evaluation of one candidate.
type CandidateResult struct {
	Params     Params
	FoldScores []float64 // one per fold; a single entry for grid scans
	Mean       float64
	Std        float64 // sample standard deviation over folds, 0 for one score
}

// SearchResult is the outcome of a selection.
type SearchResult struct {
	Family     string
	Method     string // "grid_scan" or "cv"
	Scoring    Scoring
	Candidates []CandidateResult
	BestIndex  int
	BestParams Params
	BestScore  float64
	// Estimator is the winning candidate refitted on all training rows.
	Estimator model.Estimator
}

type searchConfig struct {
	folds         int
	seed          uint64
	scoring       Scoring
	stratified    bool
	parallel      bool
	positiveClass int
	logger        log.Logger
}

// SearchOption configures GridScan and CrossValidate.
type SearchOption func(*searchConfig)

// WithFolds sets the number of cross-validation folds (default 5).
func WithFolds(n int) SearchOption {
	return func(c *searchConfig) { c.folds = n }
}

// WithSeed sets the seed of the fold shuffle.
func WithSeed(seed uint64) SearchOption {
	return func(c *searchConfig) { c.seed = seed }
}

// WithScoring sets the comparison metric.
func WithScoring(s Scoring) SearchOption {
	return func(c *searchConfig) { c.scoring = s }
}

// WithStratified toggles stratified folds (default true).
func WithStratified(on bool) SearchOption {
	return func(c *searchConfig) { c.stratified = on }
}

// WithParallel toggles concurrent fold evaluation (default true).
func WithParallel(on bool) SearchOption {
	return func(c *searchConfig) { c.parallel = on }
}

// WithPositiveClass sets the label treated as positive by roc_auc (default 1).
func WithPositiveClass(label int) SearchOption {
	return func(c *searchConfig) { c.positiveClass = label }
}

// WithLogger overrides the logger.
func WithLogger(l log.Logger) SearchOption {
	return func(c *searchConfig) { c.logger = l }
}

func newSearchConfig(defaultScoring Scoring, opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		folds:         5,
		seed:          1234,
		scoring:       defaultScoring,
		stratified:    true,
		parallel:      true,
		positiveClass: 1,
		logger:        log.GetLoggerWithName("model_selection"),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// GridScan fits every candidate on X, scores it on the same X and keeps the
// best one (ties go to the earlier candidate). The default metric is RMSE.
// Scores measure training fit, not generalization.
func GridScan(ctx context.Context, fam Family, X, y mat.Matrix, opts ...SearchOption) (*SearchResult, error) {
	cfg := newSearchConfig(ScoringRMSE, opts)
	logger := cfg.logger.With(log.ModelNameKey, fam.Name(), log.ScoringKey, string(cfg.scoring))

	fam = bound(fam, rows(X), logger)
	candidates := fam.Candidates()
	if len(candidates) == 0 {
		return nil, scigoErrors.NewValueError("GridScan", fmt.Sprintf("family %s has no candidates", fam.Name()))
	}

	logger.Warn("grid scan scores candidates on the training data", log.SamplesKey, rows(X))

	results := make([]CandidateResult, len(candidates))
	for i, p := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		est := fam.New(p)
		if err := est.Fit(X, y); err != nil {
			return nil, scigoErrors.Wrapf(err, "%s: fit candidate %s", fam.Name(), p)
		}
		score, err := Score(cfg.scoring, est, X, y, cfg.positiveClass)
		if err != nil {
			return nil, scigoErrors.Wrapf(err, "%s: score candidate %s", fam.Name(), p)
		}
		results[i] = CandidateResult{Params: p, FoldScores: []float64{score}, Mean: score}
		logger.Debug("candidate scored", log.HyperParamsKey, p.String(), log.ScoreKey, score)
	}

	return finish(ctx, fam, "grid_scan", cfg, results, X, y, logger)
}

// CrossValidate scores every candidate with k-fold cross validation and
// refits the candidate with the best mean score on all of X. The default
// metric is accuracy. Fold assignment is fixed before any model is fitted
// and fold scores are stored by position, so parallel and sequential runs
// return identical results.
func CrossValidate(ctx context.Context, fam Family, X, y mat.Matrix, opts ...SearchOption) (*SearchResult, error) {
	cfg := newSearchConfig(ScoringAccuracy, opts)
	if cfg.folds < 2 {
		return nil, scigoErrors.NewValidationError("folds", "must be at least 2", cfg.folds)
	}
	if n := rows(X); n < cfg.folds {
		return nil, scigoErrors.NewValidationError("folds", fmt.Sprintf("exceeds the number of samples (%d)", n), cfg.folds)
	}

	var splitter KFoldSplitter = NewKFold(cfg.folds, true, cfg.seed)
	if cfg.stratified {
		splitter = NewStratifiedKFold(cfg.folds, true, cfg.seed)
	}
	folds := splitter.Split(X, y)

	logger := cfg.logger.With(log.ModelNameKey, fam.Name(), log.ScoringKey, string(cfg.scoring))
	started := time.Now()

	minTrain := rows(X)
	for _, fold := range folds {
		minTrain = min(minTrain, len(fold.TrainIndices))
	}
	fam = bound(fam, minTrain, logger)
	candidates := fam.Candidates()
	if len(candidates) == 0 {
		return nil, scigoErrors.NewValueError("CrossValidate", fmt.Sprintf("family %s has no candidates", fam.Name()))
	}

	scores := make([][]float64, len(candidates))
	for i := range scores {
		scores[i] = make([]float64, len(folds))
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.parallel {
		g.SetLimit(runtime.NumCPU())
	} else {
		g.SetLimit(1)
	}

	for ci, p := range candidates {
		for fi, fold := range folds {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				var score float64
				err := scigoErrors.SafeExecute("CrossValidate", func() (err error) {
					score, err = scoreFold(fam, p, fold, fi, X, y, cfg)
					return err
				})
				if err != nil {
					return scigoErrors.Wrapf(err, "%s: candidate %s fold %d", fam.Name(), p, fi)
				}
				scores[ci][fi] = score
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]CandidateResult, len(candidates))
	for i, p := range candidates {
		res := CandidateResult{Params: p, FoldScores: scores[i]}
		res.Mean, res.Std = stat.MeanStdDev(scores[i], nil)
		results[i] = res
		logger.Debug("candidate scored",
			log.HyperParamsKey, p.String(),
			log.ScoreKey, res.Mean,
			"score_std", res.Std,
		)
	}
	logger.Debug("cross validation finished",
		log.DurationMsKey, time.Since(started).Milliseconds(),
		"folds", len(folds),
		"candidates", len(candidates),
	)

	return finish(ctx, fam, "cv", cfg, results, X, y, logger)
}

// scoreFold fits on the fold's training rows and scores its held-out rows.
// A NaN or Inf score is an error so that it can never win the search.
func scoreFold(fam Family, p Params, fold CVFold, fi int, X, y mat.Matrix, cfg *searchConfig) (float64, error) {
	est := fam.New(p)
	if err := est.Fit(takeRows(X, fold.TrainIndices), takeRows(y, fold.TrainIndices)); err != nil {
		return 0, err
	}
	score, err := Score(cfg.scoring, est, takeRows(X, fold.TestIndices), takeRows(y, fold.TestIndices), cfg.positiveClass)
	if err != nil {
		return 0, err
	}
	return score, scigoErrors.CheckScalar(string(cfg.scoring), score, fi)
}

// finish picks the winner and refits it on all rows.
func finish(ctx context.Context, fam Family, method string, cfg *searchConfig, results []CandidateResult, X, y mat.Matrix, logger log.Logger) (*SearchResult, error) {
	best := 0
	for i := 1; i < len(results); i++ {
		if better(cfg.scoring, results[i].Mean, results[best].Mean) {
			best = i
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	est := fam.New(results[best].Params)
	if err := est.Fit(X, y); err != nil {
		return nil, scigoErrors.Wrapf(err, "%s: refit %s", fam.Name(), results[best].Params)
	}

	logger.Info("model selected",
		log.HyperParamsKey, results[best].Params.String(),
		log.ScoreKey, results[best].Mean,
		"method", method,
	)

	return &SearchResult{
		Family:     fam.Name(),
		Method:     method,
		Scoring:    cfg.scoring,
		Candidates: results,
		BestIndex:  best,
		BestParams: results[best].Params,
		BestScore:  results[best].Mean,
		Estimator:  est,
	}, nil
}

// better reports whether a strictly beats b; NaN never wins.
func better(s Scoring, a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	if s.GreaterIsBetter() {
		return a > b
	}
	return a < b
}

// Score evaluates a fitted estimator on X, y with the given metric.
func Score(s Scoring, est model.Estimator, X, y mat.Matrix, positiveClass int) (float64, error) {
	switch s {
	case ScoringRMSE:
		pred, err := est.Predict(X)
		if err != nil {
			return 0, err
		}
		return metrics.RMSE(y, pred)

	case ScoringAccuracy:
		pred, err := est.Predict(X)
		if err != nil {
			return 0, err
		}
		return metrics.Accuracy(toVec(y), toVec(pred))

	case ScoringROCAUC:
		clf, ok := est.(model.Classifier)
		if !ok {
			return 0, scigoErrors.NewValueError("Score", fmt.Sprintf("roc_auc needs class probabilities, %T has none", est))
		}
		proba, err := clf.PredictProba(X)
		if err != nil {
			return 0, err
		}
		col := -1
		for i, c := range clf.Classes() {
			if c == positiveClass {
				col = i
			}
		}
		if col < 0 {
			return 0, scigoErrors.NewValueError("Score", fmt.Sprintf("positive class %d not seen during fit", positiveClass))
		}

		n := rows(X)
		yBin := mat.NewVecDense(n, nil)
		scores := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			if int(y.At(i, 0)) == positiveClass {
				yBin.SetVec(i, 1)
			}
			scores.SetVec(i, proba.At(i, col))
		}
		return metrics.AUC(yBin, scores)
	}
	return 0, scigoErrors.NewValueError("Score", fmt.Sprintf("unknown scoring %q", s))
}

func toVec(m mat.Matrix) *mat.VecDense {
	return mat.NewVecDense(rows(m), model.Column(m))
}

func rows(m mat.Matrix) int {
	r, _ := m.Dims()
	return r
}
