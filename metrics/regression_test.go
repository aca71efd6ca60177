package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func col(v ...float64) *mat.Dense { return mat.NewDense(len(v), 1, v) }

func TestRegressionMetrics(t *testing.T) {
	tests := []struct {
		name         string
		yTrue, yPred *mat.Dense
		mse, mae     float64
	}{
		{"perfect", col(1, 2, 3, 4, 5), col(1, 2, 3, 4, 5), 0, 0},
		{"half off", col(1, 2, 3, 4), col(1.5, 2.5, 2.5, 3.5), 0.25, 0.5},
		{"larger errors", col(10, 20, 30), col(12, 18, 33), 17.0 / 3, 7.0 / 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mse, err := MSE(tt.yTrue, tt.yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.mse, mse, 1e-12)

			rmse, err := RMSE(tt.yTrue, tt.yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.mse, rmse*rmse, 1e-12)

			mae, err := MAE(tt.yTrue, tt.yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.mae, mae, 1e-12)
		})
	}
}

func TestRMSEBechdelScores(t *testing.T) {
	// errors 1, 0, 2, 1 → sqrt(6/4)
	got, err := RMSE(col(3, 0, 1, 2), col(2, 0, 3, 3))
	require.NoError(t, err)
	assert.InDelta(t, 1.224744871391589, got, 1e-12)
}

func TestR2Score(t *testing.T) {
	got, err := R2Score(col(1, 2, 3, 4), col(1, 2, 3, 4))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 1e-12)

	// mean prediction scores 0
	got, err = R2Score(col(1, 2, 3, 4), col(2.5, 2.5, 2.5, 2.5))
	require.NoError(t, err)
	assert.InDelta(t, 0.0, got, 1e-12)

	// SSres = 1, SStot = 5
	got, err = R2Score(col(1, 2, 3, 4), col(1, 2, 3, 5))
	require.NoError(t, err)
	assert.InDelta(t, 0.8, got, 1e-12)

	_, err = R2Score(col(2, 2, 2), col(1, 2, 3))
	assert.Error(t, err)
}

func TestRegressionMetricErrors(t *testing.T) {
	_, err := MSE(col(1, 2, 3), col(1, 2))
	assert.Error(t, err)

	_, err = RMSE(mat.NewDense(2, 2, []float64{1, 2, 3, 4}), mat.NewDense(2, 2, []float64{1, 2, 3, 4}))
	assert.Error(t, err)

	_, err = MAE(&mat.Dense{}, &mat.Dense{})
	assert.Error(t, err)
}
