// Package evaluation scores fitted models on held-out rows: confusion
// matrix, accuracy, sensitivity, specificity and the no-information rate,
// overall and per subgroup.
package evaluation

import (
	"math"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bechdel/core/model"
	"github.com/YuminosukeSato/bechdel/features"
	"github.com/YuminosukeSato/bechdel/metrics"
	scigoErrors "github.com/YuminosukeSato/bechdel/pkg/errors"
	"github.com/YuminosukeSato/bechdel/pkg/log"
)

// Evaluation holds the held-out metrics of one model.
//
// For two classes Sensitivity and Specificity refer to PositiveClass; with
// more classes they are one-vs-rest macro averages. Undefined values are NaN.
type Evaluation struct {
	Model             string
	Subset            string
	Confusion         *metrics.ConfusionMatrix
	Accuracy          float64
	Sensitivity       float64
	Specificity       float64
	NoInformationRate float64
	AUC               float64 // binary classifiers only, NaN otherwise
	ClassCounts       []int   // actual count per label, aligned with Confusion.Labels
	N                 int
	Binary            bool
	PositiveClass     int
	Rounded           bool // predictions were rounded regressor output
}

type config struct {
	modelName     string
	positiveClass int
	labels        []int
	logger        log.Logger
}

// Option configures Evaluate.
type Option func(*config)

// WithModelName labels the evaluation.
func WithModelName(name string) Option {
	return func(c *config) { c.modelName = name }
}

// WithPositiveClass sets the label treated as positive in binary problems.
func WithPositiveClass(label int) Option {
	return func(c *config) { c.positiveClass = label }
}

// WithLabels fixes the label set of the confusion matrix. Rounded regressor
// predictions are clamped to its range.
func WithLabels(labels []int) Option {
	return func(c *config) {
		c.labels = append([]int(nil), labels...)
		sort.Ints(c.labels)
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(c *config) { c.logger = l }
}

func newConfig(opts []Option) *config {
	c := &config{positiveClass: 1}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.GetLoggerWithName("evaluation")
	}
	return c
}

// Evaluate predicts X with a fitted estimator and compares against yTrue.
// Estimators that are not classifiers are treated as regressors on the class
// labels: predictions are rounded to the nearest label and clamped to the
// observed label range.
func Evaluate(est model.Estimator, X, yTrue mat.Matrix, opts ...Option) (*Evaluation, error) {
	cfg := newConfig(opts)
	if est == nil {
		return nil, scigoErrors.NewValueError("evaluation.Evaluate", "estimator is nil")
	}
	n, _, err := model.CheckXY("evaluation.Evaluate", X, yTrue)
	if err != nil {
		return nil, err
	}

	actual := toLabels(model.Column(yTrue))

	pred, err := est.Predict(X)
	if err != nil {
		return nil, scigoErrors.Wrap(err, "evaluation: predict")
	}
	raw := model.Column(pred)

	// Wrappers such as preprocessing.Scaled expose Classes on any estimator;
	// an empty label list marks a regressor.
	clf, isClassifier := est.(model.Classifier)
	isClassifier = isClassifier && len(clf.Classes()) > 0

	labels := cfg.labels
	if labels == nil {
		var seen [][]int
		seen = append(seen, actual)
		if isClassifier {
			seen = append(seen, clf.Classes())
		}
		labels = unique(seen...)
	}

	var predicted []int
	if isClassifier {
		predicted = toLabels(raw)
		labels = unique(labels, predicted)
	} else {
		predicted = make([]int, n)
		lo, hi := labels[0], labels[len(labels)-1]
		for i, v := range raw {
			predicted[i] = clamp(int(math.Round(v)), lo, hi)
		}
		labels = unique(labels, predicted)
	}

	cm, err := metrics.NewConfusionMatrix(actual, predicted, labels)
	if err != nil {
		return nil, err
	}

	ev := &Evaluation{
		Model:             cfg.modelName,
		Confusion:         cm,
		Accuracy:          cm.Accuracy(),
		NoInformationRate: cm.NoInformationRate(),
		ClassCounts:       cm.ActualCounts(),
		N:                 n,
		Binary:            len(labels) == 2,
		PositiveClass:     cfg.positiveClass,
		Rounded:           !isClassifier,
		AUC:               math.NaN(),
	}
	if ev.Binary {
		ev.Sensitivity = cm.Sensitivity(cfg.positiveClass)
		ev.Specificity = cm.Specificity(cfg.positiveClass)
		if isClassifier {
			ev.AUC, err = binaryAUC(clf, X, actual, cfg.positiveClass)
			if err != nil {
				return nil, err
			}
		}
	} else {
		ev.Sensitivity = cm.MacroSensitivity()
		ev.Specificity = cm.MacroSpecificity()
	}

	cfg.logger.Info("model evaluated",
		log.ModelNameKey, cfg.modelName,
		log.SamplesKey, n,
		log.AccuracyKey, ev.Accuracy,
		"sensitivity", ev.Sensitivity,
		"specificity", ev.Specificity,
		"nir", ev.NoInformationRate,
	)
	return ev, nil
}

// Subset is the evaluation on the rows sharing one value of a column.
type Subset struct {
	Value      string
	Evaluation *Evaluation
}

// EvaluateSubsets evaluates a fitted estimator on each distinct value of
// column without refitting. Values are visited in sorted order. The label
// set is taken from the whole table so the matrices line up.
func EvaluateSubsets(est model.Estimator, df dataframe.DataFrame, target, column string, opts ...Option) ([]Subset, error) {
	if df.Nrow() == 0 {
		return nil, scigoErrors.NewModelError("evaluation.EvaluateSubsets", "empty data", scigoErrors.ErrEmptyData)
	}
	found := false
	for _, name := range df.Names() {
		if name == column {
			found = true
			break
		}
	}
	if !found {
		return nil, scigoErrors.NewSchemaMismatchError("evaluation", []string{column})
	}

	_, yAll, _, err := features.Design(df, target)
	if err != nil {
		return nil, err
	}
	cfg := newConfig(opts)
	labels := cfg.labels
	if labels == nil {
		labels = unique(toLabels(model.Column(yAll)))
	}

	groups := make(map[string][]int)
	for i, v := range df.Col(column).Records() {
		groups[v] = append(groups[v], i)
	}
	values := make([]string, 0, len(groups))
	for v := range groups {
		values = append(values, v)
	}
	sort.Strings(values)

	out := make([]Subset, 0, len(values))
	for _, v := range values {
		sub := df.Subset(groups[v])
		if sub.Err != nil {
			return nil, scigoErrors.Wrap(sub.Err, "evaluation: subset")
		}
		X, y, _, err := features.Design(sub, target)
		if err != nil {
			return nil, err
		}
		subOpts := append(append([]Option{}, opts...), WithLabels(labels))
		ev, err := Evaluate(est, X, y, subOpts...)
		if err != nil {
			return nil, scigoErrors.Wrapf(err, "evaluation: subset %s=%s", column, v)
		}
		ev.Subset = v
		out = append(out, Subset{Value: v, Evaluation: ev})
	}
	return out, nil
}

func binaryAUC(clf model.Classifier, X mat.Matrix, actual []int, positive int) (float64, error) {
	col := -1
	for i, c := range clf.Classes() {
		if c == positive {
			col = i
		}
	}
	if col < 0 {
		return math.NaN(), nil
	}
	proba, err := clf.PredictProba(X)
	if err != nil {
		return 0, scigoErrors.Wrap(err, "evaluation: predict proba")
	}

	yBin := mat.NewVecDense(len(actual), nil)
	score := mat.NewVecDense(len(actual), nil)
	for i, a := range actual {
		if a == positive {
			yBin.SetVec(i, 1)
		}
		score.SetVec(i, proba.At(i, col))
	}
	return metrics.AUC(yBin, score)
}

func toLabels(vals []float64) []int {
	out := make([]int, len(vals))
	for i, v := range vals {
		out[i] = int(math.Round(v))
	}
	return out
}

func unique(xs ...[]int) []int {
	seen := make(map[int]struct{})
	for _, s := range xs {
		for _, v := range s {
			seen[v] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
