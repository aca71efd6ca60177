package model

import (
	"sort"

	"github.com/YuminosukeSato/bechdel/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// CheckXY validates the shapes passed to Fit: same number of rows, y a
// single column, and at least one sample.
func CheckXY(op string, X, y mat.Matrix) (nSamples, nFeatures int, err error) {
	nSamples, nFeatures = X.Dims()
	yRows, yCols := y.Dims()

	if nSamples == 0 || nFeatures == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return 0, 0, errors.NewDimensionError(op, nSamples, yRows, 0)
	}
	if yCols != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yCols, 1)
	}
	return nSamples, nFeatures, nil
}

// UniqueClasses returns the sorted distinct integer labels in column 0 of y.
func UniqueClasses(y mat.Matrix) []int {
	rows, _ := y.Dims()
	seen := make(map[int]struct{})
	for i := 0; i < rows; i++ {
		seen[int(y.At(i, 0))] = struct{}{}
	}

	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes
}

// Column copies column 0 of y into a slice.
func Column(y mat.Matrix) []float64 {
	rows, _ := y.Dims()
	out := make([]float64, rows)
	for i := range out {
		out[i] = y.At(i, 0)
	}
	return out
}
