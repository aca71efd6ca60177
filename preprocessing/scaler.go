package preprocessing

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/bechdel/core/model"
	"github.com/YuminosukeSato/bechdel/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// StandardScaler はscikit-learn互換の標準化スケーラー
// データを平均0、標準偏差1に変換する
type StandardScaler struct {
	state *model.StateManager

	// Mean は各特徴量の平均値
	Mean []float64

	// Scale は各特徴量の標準偏差（母標準偏差）
	Scale []float64

	// NFeatures は特徴量の数
	NFeatures int

	// WithMean は平均を引くかどうか (デフォルト: true)
	WithMean bool

	// WithStd は標準偏差で割るかどうか (デフォルト: true)
	WithStd bool
}

// NewStandardScaler は新しいStandardScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	err := scaler.Fit(X)
//	XScaled, err := scaler.Transform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		state:    model.NewStateManager(),
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit は訓練データから統計情報（平均、標準偏差）を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	s.NFeatures = c
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)

	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)

		if s.WithMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1.0
		// 定数列はそのまま（ゼロ除算を避ける）
		if s.WithStd && std > 1e-8 {
			s.Scale[j] = std
		}
	}

	s.state.SetFitted(c, r)
	return nil
}

// IsFitted はスケーラーが学習済みかどうかを返す
func (s *StandardScaler) IsFitted() bool {
	return s.state.IsFitted()
}

// Transform は学習済みの統計情報を使ってデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("StandardScaler", "Transform", X); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)

	if err := errors.CheckNumericalStability("StandardScaler.Transform", result.RawMatrix().Data, 0); err != nil {
		return nil, err
	}
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("StandardScaler", "InverseTransform", X); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return v*s.Scale[j] + s.Mean[j]
	}, X)
	return result, nil
}

// GetParams はスケーラーのパラメータを取得する
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
	}
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.WithMean, s.WithStd, s.NFeatures)
}

// Scaled は推定器の前段に StandardScaler を置くパイプライン。
// スケーラーは Fit に渡された訓練データだけで学習され、Predict 時の入力には
// 同じ統計量が適用される。
type Scaled struct {
	Scaler    *StandardScaler
	Estimator model.Estimator
}

// NewScaled は est を標準化付きでラップする
func NewScaled(est model.Estimator) *Scaled {
	return &Scaled{Scaler: NewStandardScalerDefault(), Estimator: est}
}

// Fit はスケーラーを X で学習し、標準化後のデータで推定器を学習する
func (p *Scaled) Fit(X, y mat.Matrix) error {
	Xs, err := p.Scaler.FitTransform(X)
	if err != nil {
		return errors.Wrap(err, "Scaled.Fit")
	}
	return p.Estimator.Fit(Xs, y)
}

// Predict implements model.Predictor.
func (p *Scaled) Predict(X mat.Matrix) (mat.Matrix, error) {
	Xs, err := p.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	return p.Estimator.Predict(Xs)
}

// PredictProba は内部の推定器が分類器の場合にクラス確率を返す
func (p *Scaled) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	clf, ok := p.Estimator.(model.Classifier)
	if !ok {
		return nil, errors.NewValueError("Scaled.PredictProba",
			fmt.Sprintf("%T does not predict probabilities", p.Estimator))
	}
	Xs, err := p.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	return clf.PredictProba(Xs)
}

// Classes は内部の分類器のクラスラベルを返す。回帰器の場合は nil。
func (p *Scaled) Classes() []int {
	if clf, ok := p.Estimator.(model.Classifier); ok {
		return clf.Classes()
	}
	return nil
}

// Score は内部の推定器が回帰器の場合に R² を返す
func (p *Scaled) Score(X, y mat.Matrix) (float64, error) {
	reg, ok := p.Estimator.(model.Regressor)
	if !ok {
		return math.NaN(), errors.NewValueError("Scaled.Score",
			fmt.Sprintf("%T is not a regressor", p.Estimator))
	}
	Xs, err := p.Scaler.Transform(X)
	if err != nil {
		return math.NaN(), err
	}
	return reg.Score(Xs, y)
}

// GetParams は内部の推定器のパラメータにスケーラーのパラメータを加えて返す
func (p *Scaled) GetParams() map[string]interface{} {
	params := map[string]interface{}{"scaler": p.Scaler.String()}
	if pg, ok := p.Estimator.(model.ParameterGetter); ok {
		for k, v := range pg.GetParams() {
			params[k] = v
		}
	}
	return params
}

// Unwrap は内部の推定器を返す
func (p *Scaled) Unwrap() model.Estimator {
	return p.Estimator
}
