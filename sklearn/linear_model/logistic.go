package linear_model

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/bechdel/core/model"
	scigoErrors "github.com/YuminosukeSato/bechdel/pkg/errors"
	"github.com/YuminosukeSato/bechdel/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// LogisticRegression implements logistic regression for classification.
// Two classes are fitted with a single sigmoid output; more classes are fitted
// either as a multinomial (softmax) model or one-vs-rest.
type LogisticRegression struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	penalty      string  // Regularization: "l2" or "none"
	C            float64 // Inverse regularization strength (1/decay)
	fitIntercept bool    // Whether to fit intercept
	randomState  uint64  // Seed for the weight initialization
	maxIter      int     // Maximum iterations
	multiClass   string  // Multi-class: "multinomial" or "ovr"
	learningRate float64 // Base step size of gradient descent
	tol          float64 // Tolerance for stopping

	// Model parameters
	coef_      [][]float64 // Coefficients (n_classes x n_features or 1 x n_features for binary)
	intercept_ []float64   // Intercept terms
	classes_   []int       // Unique class labels
	nClasses_  int         // Number of classes
	nFeatures_ int         // Number of features
	nIter_     []int       // Actual iterations per weight vector

	rand   *rand.Rand
	logger log.Logger
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		maxIter:      100,
		multiClass:   "multinomial",
		learningRate: 1.0,
		tol:          1e-4,
		logger:       log.GetLoggerWithName("LogisticRegression"),
	}

	for _, opt := range opts {
		opt(lr)
	}
	lr.rand = rand.New(rand.NewPCG(lr.randomState, lr.randomState))

	return lr
}

// WithLRPenalty sets the regularization type ("l2" or "none")
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLRDecay sets an L2 weight decay. A decay of 0 disables the penalty.
func WithLRDecay(decay float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		if decay <= 0 {
			lr.penalty = "none"
			return
		}
		lr.penalty = "l2"
		lr.C = 1.0 / decay
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRMultiClass selects "multinomial" or "ovr" for more than two classes
func WithLRMultiClass(multiClass string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.multiClass = multiClass
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRLogger sets the logger. A nil logger keeps the default.
func WithLRLogger(l log.Logger) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		if l != nil {
			lr.logger = l
		}
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithLRLearningRate sets the base step size
func WithLRLearningRate(rate float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.learningRate = rate
	}
}

// WithLRRandomState sets the random seed
func WithLRRandomState(seed uint64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.randomState = seed
	}
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) (err error) {
	defer scigoErrors.Recover(&err, "LogisticRegression.Fit")

	nSamples, nFeatures, err := model.CheckXY("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}
	if lr.penalty == "l2" && lr.C <= 0 {
		return scigoErrors.NewValidationError("C", "must be positive", lr.C)
	}

	lr.classes_ = model.UniqueClasses(y)
	lr.nClasses_ = len(lr.classes_)
	lr.nFeatures_ = nFeatures
	if lr.nClasses_ < 2 {
		return scigoErrors.NewValueError("LogisticRegression.Fit",
			fmt.Sprintf("needs at least 2 classes, got %d", lr.nClasses_))
	}

	lr.rand = rand.New(rand.NewPCG(lr.randomState, lr.randomState))
	lr.initializeWeights(nFeatures)

	Xd := mat.DenseCopyOf(X)
	switch {
	case lr.nClasses_ == 2:
		yBinary := lr.indicator(y, lr.classes_[1])
		lr.fitBinaryForClass(Xd, yBinary, 0)
	case lr.multiClass == "ovr":
		for classIdx, class := range lr.classes_ {
			lr.fitBinaryForClass(Xd, lr.indicator(y, class), classIdx)
		}
	default:
		lr.fitMultinomial(Xd, y)
	}

	for _, coef := range lr.coef_ {
		if err := scigoErrors.CheckNumericalStability("LogisticRegression.Fit", coef, lr.nIter_[0]); err != nil {
			return err
		}
	}

	lr.state.SetFitted(nFeatures, nSamples)
	lr.logger.Debug("model fitted",
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.ClassesKey, lr.nClasses_,
		"iterations", lr.nIter_[0],
	)
	return nil
}

// initializeWeights initializes model weights with small seeded values
func (lr *LogisticRegression) initializeWeights(nFeatures int) {
	nVectors := lr.nClasses_
	if lr.nClasses_ == 2 {
		nVectors = 1
	}

	lr.coef_ = make([][]float64, nVectors)
	for i := range lr.coef_ {
		lr.coef_[i] = make([]float64, nFeatures)
		for j := range lr.coef_[i] {
			lr.coef_[i][j] = lr.rand.NormFloat64() * 0.01
		}
	}
	lr.intercept_ = make([]float64, nVectors)
	lr.nIter_ = make([]int, nVectors)
}

// indicator returns 1 where y equals class, 0 elsewhere
func (lr *LogisticRegression) indicator(y mat.Matrix, class int) []float64 {
	rows, _ := y.Dims()
	out := make([]float64, rows)
	for i := range out {
		if int(y.At(i, 0)) == class {
			out[i] = 1
		}
	}
	return out
}

// lambda is the L2 strength applied to the coefficients (never the intercept)
func (lr *LogisticRegression) lambda() float64 {
	if lr.penalty != "l2" {
		return 0
	}
	return 1.0 / lr.C
}

// fitBinaryForClass fits one sigmoid output by batch gradient descent
func (lr *LogisticRegression) fitBinaryForClass(X *mat.Dense, yBinary []float64, classIdx int) {
	nSamples, nFeatures := X.Dims()
	weights := lr.coef_[classIdx]
	intercept := &lr.intercept_[classIdx]
	lambda := lr.lambda()

	w := mat.NewVecDense(nFeatures, weights)
	z := mat.NewVecDense(nSamples, nil)
	residual := mat.NewVecDense(nSamples, nil)
	grad := mat.NewVecDense(nFeatures, nil)

	converged := false
	for iter := 0; iter < lr.maxIter; iter++ {
		z.MulVec(X, w)
		gradIntercept := 0.0
		for i := 0; i < nSamples; i++ {
			r := sigmoid(z.AtVec(i)+*intercept) - yBinary[i]
			residual.SetVec(i, r)
			gradIntercept += r
		}

		grad.MulVec(X.T(), residual)
		grad.ScaleVec(1/float64(nSamples), grad)
		gradIntercept /= float64(nSamples)
		if lambda > 0 {
			grad.AddScaledVec(grad, lambda, w)
		}

		step := lr.learningRate / (1.0 + 0.1*float64(iter))
		w.AddScaledVec(w, -step, grad)
		if lr.fitIntercept {
			*intercept -= step * gradIntercept
		}
		lr.nIter_[classIdx] = iter + 1

		maxGrad := math.Max(math.Abs(gradIntercept), mat.Norm(grad, math.Inf(1)))
		if maxGrad < lr.tol {
			converged = true
			break
		}
	}

	if !converged {
		scigoErrors.Warn(scigoErrors.NewConvergenceWarning("LogisticRegression", lr.maxIter,
			"gradient descent did not reach tol; increase max_iter"))
	}
}

// fitMultinomial fits a softmax model over all classes by batch gradient
// descent on the mean cross-entropy plus the L2 penalty.
func (lr *LogisticRegression) fitMultinomial(X *mat.Dense, y mat.Matrix) {
	nSamples, nFeatures := X.Dims()
	k := lr.nClasses_
	lambda := lr.lambda()

	classIndex := make(map[int]int, k)
	for i, c := range lr.classes_ {
		classIndex[c] = i
	}
	Y := mat.NewDense(nSamples, k, nil)
	for i := 0; i < nSamples; i++ {
		Y.Set(i, classIndex[int(y.At(i, 0))], 1)
	}

	// W is k × nFeatures, backed by coef_ rows
	W := mat.NewDense(k, nFeatures, nil)
	for c := 0; c < k; c++ {
		W.SetRow(c, lr.coef_[c])
	}

	scores := mat.NewDense(nSamples, k, nil)
	gradW := mat.NewDense(k, nFeatures, nil)
	gradB := make([]float64, k)

	converged := false
	for iter := 0; iter < lr.maxIter; iter++ {
		scores.Mul(X, W.T())
		lr.softmaxRows(scores)
		// scores now holds P - Y
		scores.Sub(scores, Y)

		gradW.Mul(scores.T(), X)
		gradW.Scale(1/float64(nSamples), gradW)
		if lambda > 0 {
			gradW.Apply(func(i, j int, v float64) float64 {
				return v + lambda*W.At(i, j)
			}, gradW)
		}
		for c := 0; c < k; c++ {
			col := mat.Col(nil, c, scores)
			sum := 0.0
			for _, v := range col {
				sum += v
			}
			gradB[c] = sum / float64(nSamples)
		}

		step := lr.learningRate / (1.0 + 0.1*float64(iter))
		W.Apply(func(i, j int, v float64) float64 {
			return v - step*gradW.At(i, j)
		}, W)
		if lr.fitIntercept {
			for c := range gradB {
				lr.intercept_[c] -= step * gradB[c]
			}
		}
		for c := range lr.nIter_ {
			lr.nIter_[c] = iter + 1
		}

		maxGrad := maxAbs(gradW.RawMatrix().Data)
		for _, g := range gradB {
			maxGrad = math.Max(maxGrad, math.Abs(g))
		}
		if maxGrad < lr.tol {
			converged = true
			break
		}
	}

	for c := 0; c < k; c++ {
		mat.Row(lr.coef_[c], c, W)
	}

	if !converged {
		scigoErrors.Warn(scigoErrors.NewConvergenceWarning("LogisticRegression(multinomial)", lr.maxIter,
			"gradient descent did not reach tol; increase max_iter"))
	}
}

// softmaxRows adds the intercepts to raw scores and replaces each row by its softmax
func (lr *LogisticRegression) softmaxRows(scores *mat.Dense) {
	rows, k := scores.Dims()
	row := make([]float64, k)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, scores)
		for c := range row {
			row[c] += lr.intercept_[c]
		}
		norm := scigoErrors.LogSumExp(row)
		for c := range row {
			row[c] = math.Exp(row[c] - norm)
		}
		scores.SetRow(i, row)
	}
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := probas.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		best := 0
		for c := 1; c < lr.nClasses_; c++ {
			// ties go to the lower class
			if probas.At(i, c) > probas.At(i, best) {
				best = c
			}
		}
		predictions.Set(i, 0, float64(lr.classes_[best]))
	}

	return predictions, nil
}

// PredictProba returns probability estimates for each class
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "PredictProba", X); err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	probas := mat.NewDense(nSamples, lr.nClasses_, nil)

	for i := 0; i < nSamples; i++ {
		scores := make([]float64, len(lr.coef_))
		for c := range lr.coef_ {
			score := lr.intercept_[c]
			for j := 0; j < lr.nFeatures_; j++ {
				score += X.At(i, j) * lr.coef_[c][j]
			}
			scores[c] = score
		}

		switch {
		case lr.nClasses_ == 2:
			p1 := sigmoid(scores[0])
			probas.Set(i, 0, 1.0-p1)
			probas.Set(i, 1, p1)
		case lr.multiClass == "ovr":
			sum := 0.0
			for c := range scores {
				scores[c] = sigmoid(scores[c])
				sum += scores[c]
			}
			for c := range scores {
				probas.Set(i, c, scores[c]/sum)
			}
		default:
			norm := scigoErrors.LogSumExp(scores)
			for c := range scores {
				probas.Set(i, c, math.Exp(scores[c]-norm))
			}
		}
	}

	return probas, nil
}

// Classes returns the sorted class labels seen during Fit
func (lr *LogisticRegression) Classes() []int {
	out := make([]int, len(lr.classes_))
	copy(out, lr.classes_)
	return out
}

// Coef returns a copy of the fitted coefficients
func (lr *LogisticRegression) Coef() [][]float64 {
	out := make([][]float64, len(lr.coef_))
	for i := range lr.coef_ {
		out[i] = append([]float64(nil), lr.coef_[i]...)
	}
	return out
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}

	nSamples, _ := X.Dims()
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}

	return float64(correct) / float64(nSamples), nil
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"random_state":  lr.randomState,
		"max_iter":      lr.maxIter,
		"multi_class":   lr.multiClass,
		"learning_rate": lr.learningRate,
		"tol":           lr.tol,
	}
}

// String returns a short description of the model
func (lr *LogisticRegression) String() string {
	return fmt.Sprintf("LogisticRegression(penalty=%s, C=%g, multi_class=%s)", lr.penalty, lr.C, lr.multiClass)
}

func maxAbs(xs []float64) float64 {
	m := 0.0
	for _, v := range xs {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

// sigmoid computes the sigmoid function
func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
