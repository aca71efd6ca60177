package metrics

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/bechdel/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Accuracy は正解率（一致したラベルの割合）を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// AUC はROC曲線下面積を Mann-Whitney U 統計量として計算する。
// 同順位のスコアは平均順位で扱うため、同点の正例・負例の組は 0.5 として数えられる。
// 正例または負例しか存在しない場合は未定義であり、警告を出して 0.5 を返す。
func AUC(yTrue, yScore *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yScore)
	if err != nil {
		return 0, err
	}
	if err := checkBinaryLabels("AUC", yTrue); err != nil {
		return 0, err
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return yScore.AtVec(idx[a]) < yScore.AtVec(idx[b])
	})

	// 平均順位（1始まり）
	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && yScore.AtVec(idx[j+1]) == yScore.AtVec(idx[i]) {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}

	var nPos, nNeg int
	var rankSum float64
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == 1 {
			nPos++
			rankSum += ranks[i]
		} else {
			nNeg++
		}
	}

	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("AUC", "only one class present in y_true", 0.5))
		return 0.5, nil
	}

	u := rankSum - float64(nPos*(nPos+1))/2
	return u / float64(nPos*nNeg), nil
}

// ConfusionMatrix は混同行列。Counts[p][a] は予測ラベル Labels[p]、
// 実ラベル Labels[a] の件数を表す（行 = 予測、列 = 実測）。
type ConfusionMatrix struct {
	Labels []int
	Counts [][]int
}

// NewConfusionMatrix は予測ラベルと実ラベルから混同行列を作る。
// labels が nil の場合は両者に現れるラベルの昇順を使う。
func NewConfusionMatrix(yTrue, yPred []int, labels []int) (*ConfusionMatrix, error) {
	if len(yTrue) == 0 {
		return nil, errors.NewValueError("NewConfusionMatrix", "empty labels")
	}
	if len(yTrue) != len(yPred) {
		return nil, errors.NewDimensionError("NewConfusionMatrix", len(yTrue), len(yPred), 0)
	}

	if labels == nil {
		labels = uniqueSorted(yTrue, yPred)
	}
	pos := make(map[int]int, len(labels))
	for i, l := range labels {
		pos[l] = i
	}

	counts := make([][]int, len(labels))
	for i := range counts {
		counts[i] = make([]int, len(labels))
	}
	for i := range yTrue {
		a, okA := pos[yTrue[i]]
		p, okP := pos[yPred[i]]
		if !okA || !okP {
			return nil, errors.NewValueError("NewConfusionMatrix", "label outside the label set")
		}
		counts[p][a]++
	}

	return &ConfusionMatrix{Labels: labels, Counts: counts}, nil
}

// Total は全件数を返す。
func (c *ConfusionMatrix) Total() int {
	total := 0
	for _, row := range c.Counts {
		for _, v := range row {
			total += v
		}
	}
	return total
}

// Accuracy は対角成分の合計 / 全件数。
func (c *ConfusionMatrix) Accuracy() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	diag := 0
	for i := range c.Counts {
		diag += c.Counts[i][i]
	}
	return float64(diag) / float64(total)
}

// ActualCounts はラベルごとの実測件数（列和）を返す。
func (c *ConfusionMatrix) ActualCounts() []int {
	out := make([]int, len(c.Labels))
	for p := range c.Counts {
		for a, v := range c.Counts[p] {
			out[a] += v
		}
	}
	return out
}

// NoInformationRate は最多クラスの割合（常に最多クラスを予測した場合の正解率）。
func (c *ConfusionMatrix) NoInformationRate() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	best := 0
	for _, v := range c.ActualCounts() {
		if v > best {
			best = v
		}
	}
	return float64(best) / float64(total)
}

// Sensitivity は label を陽性とした再現率 TP / (TP + FN)。
// 該当する実測がない場合は NaN。
func (c *ConfusionMatrix) Sensitivity(label int) float64 {
	k := c.indexOf(label)
	if k < 0 {
		return math.NaN()
	}
	tp, fn := 0, 0
	for p := range c.Counts {
		if p == k {
			tp += c.Counts[p][k]
		} else {
			fn += c.Counts[p][k]
		}
	}
	if tp+fn == 0 {
		return math.NaN()
	}
	return float64(tp) / float64(tp+fn)
}

// Specificity は label を陽性とした特異度 TN / (TN + FP)。
func (c *ConfusionMatrix) Specificity(label int) float64 {
	k := c.indexOf(label)
	if k < 0 {
		return math.NaN()
	}
	tn, fp := 0, 0
	for p := range c.Counts {
		for a, v := range c.Counts[p] {
			if a == k {
				continue
			}
			if p == k {
				fp += v
			} else {
				tn += v
			}
		}
	}
	if tn+fp == 0 {
		return math.NaN()
	}
	return float64(tn) / float64(tn+fp)
}

// MacroSensitivity は one-vs-rest 再現率のクラス平均（NaN のクラスは除く）。
func (c *ConfusionMatrix) MacroSensitivity() float64 {
	return c.macro(c.Sensitivity)
}

// MacroSpecificity は one-vs-rest 特異度のクラス平均（NaN のクラスは除く）。
func (c *ConfusionMatrix) MacroSpecificity() float64 {
	return c.macro(c.Specificity)
}

func (c *ConfusionMatrix) macro(fn func(int) float64) float64 {
	var sum float64
	n := 0
	for _, l := range c.Labels {
		v := fn(l)
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

func (c *ConfusionMatrix) indexOf(label int) int {
	for i, l := range c.Labels {
		if l == label {
			return i
		}
	}
	return -1
}

func checkPair(op string, a, b *mat.VecDense) (int, error) {
	if a == nil || b == nil || a.Len() == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if a.Len() != b.Len() {
		return 0, errors.NewDimensionError(op, a.Len(), b.Len(), 0)
	}
	return a.Len(), nil
}

func checkBinaryLabels(op string, y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		if v := y.AtVec(i); v != 0 && v != 1 {
			return errors.NewModelError(op, "labels must be 0 or 1", errors.ErrNotBinary)
		}
	}
	return nil
}

func uniqueSorted(xs ...[]int) []int {
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
