// Package model_selection chooses hyperparameters for a model family, either
// by scanning a grid on the training data or by k-fold cross validation.
package model_selection

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// KFoldSplitter defines interface for cross-validation splitters
type KFoldSplitter interface {
	Split(X, y mat.Matrix) []CVFold
	GetNSplits() int
}

// CVFold represents a single fold in cross-validation
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold implements k-fold cross-validation splitter
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed uint64
}

// NewKFold creates a new k-fold splitter
func NewKFold(nSplits int, shuffle bool, randomSeed uint64) *KFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &KFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of splits
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split generates train/test indices for each fold. The first
// n % NSplits folds get one extra test sample.
func (kf *KFold) Split(X, _ mat.Matrix) []CVFold {
	nSamples, _ := X.Dims()

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(kf.RandomSeed, kf.RandomSeed))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	assign := make([]int, nSamples)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits
	current := 0
	for f := 0; f < kf.NSplits; f++ {
		size := foldSize
		if f < remainder {
			size++
		}
		for _, idx := range indices[current : current+size] {
			assign[idx] = f
		}
		current += size
	}

	return foldsFromAssignment(assign, kf.NSplits)
}

// StratifiedKFold implements stratified k-fold cross-validation: each fold
// keeps roughly the class proportions of y.
type StratifiedKFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed uint64
}

// NewStratifiedKFold creates a new stratified k-fold splitter
func NewStratifiedKFold(nSplits int, shuffle bool, randomSeed uint64) *StratifiedKFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &StratifiedKFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of splits
func (skf *StratifiedKFold) GetNSplits() int {
	return skf.NSplits
}

// Split generates stratified train/test indices for each fold. Classes are
// dealt in ascending label order and each class continues where the previous
// one stopped, so fold sizes differ by at most one.
func (skf *StratifiedKFold) Split(X, y mat.Matrix) []CVFold {
	nSamples, _ := X.Dims()

	classIndices := make(map[float64][]int)
	for i := 0; i < nSamples; i++ {
		label := y.At(i, 0)
		classIndices[label] = append(classIndices[label], i)
	}
	labels := make([]float64, 0, len(classIndices))
	for label := range classIndices {
		labels = append(labels, label)
	}
	sort.Float64s(labels)

	var r *rand.Rand
	if skf.Shuffle {
		r = rand.New(rand.NewPCG(skf.RandomSeed, skf.RandomSeed))
	}

	assign := make([]int, nSamples)
	next := 0
	for _, label := range labels {
		indices := classIndices[label]
		if r != nil {
			r.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}
		for _, idx := range indices {
			assign[idx] = next
			next = (next + 1) % skf.NSplits
		}
	}

	return foldsFromAssignment(assign, skf.NSplits)
}

// foldsFromAssignment turns a fold number per sample into index lists, both
// sorted ascending.
func foldsFromAssignment(assign []int, nSplits int) []CVFold {
	folds := make([]CVFold, nSplits)
	for f := range folds {
		folds[f] = CVFold{TrainIndices: []int{}, TestIndices: []int{}}
	}
	for idx, f := range assign {
		for g := range folds {
			if g == f {
				folds[g].TestIndices = append(folds[g].TestIndices, idx)
			} else {
				folds[g].TrainIndices = append(folds[g].TrainIndices, idx)
			}
		}
	}
	return folds
}

// takeRows copies the given rows of m into a new matrix.
func takeRows(m mat.Matrix, rows []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for i, r := range rows {
		for j := 0; j < c; j++ {
			out.Set(i, j, m.At(r, j))
		}
	}
	return out
}
