package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/bechdel/pkg/errors"
)

// columnPair は n×1 の正解と予測を同じ長さのスライスに展開する
func columnPair(op string, yTrue, yPred mat.Matrix) ([]float64, []float64, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if rTrue == 0 {
		return nil, nil, errors.NewValueError(op, "empty target")
	}
	if cTrue != 1 || cPred != 1 {
		return nil, nil, errors.NewValueError(op, "targets must be column vectors (n×1)")
	}
	if rPred != rTrue {
		return nil, nil, errors.NewDimensionError(op, rTrue, rPred, 0)
	}

	a := make([]float64, rTrue)
	b := make([]float64, rTrue)
	for i := range a {
		a[i] = yTrue.At(i, 0)
		b[i] = yPred.At(i, 0)
	}
	return a, b, nil
}

// MSE は平均二乗誤差
func MSE(yTrue, yPred mat.Matrix) (float64, error) {
	a, b, err := columnPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	d := floats.Distance(a, b, 2)
	return d * d / float64(len(a)), nil
}

// RMSE は平方根平均二乗誤差。kNN 回帰のグリッドスキャンで使う
func RMSE(yTrue, yPred mat.Matrix) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差
func MAE(yTrue, yPred mat.Matrix) (float64, error) {
	a, b, err := columnPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return floats.Distance(a, b, 1) / float64(len(a)), nil
}

// R2Score は決定係数 R²。yTrue に分散がない場合はエラー
func R2Score(yTrue, yPred mat.Matrix) (float64, error) {
	a, b, err := columnPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if len(a) < 2 || stat.Variance(a, nil) == 0 {
		return 0, errors.NewValueError("R2Score", "no variance in yTrue")
	}
	return stat.RSquaredFrom(b, a, nil), nil
}
