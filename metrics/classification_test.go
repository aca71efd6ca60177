package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestAUC(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{
			name:  "Perfect classifier",
			yTrue: []float64{0, 0, 0, 1, 1, 1},
			yPred: []float64{0.1, 0.2, 0.3, 0.7, 0.8, 0.9},
			want:  1.0,
		},
		{
			name:  "Worst classifier",
			yTrue: []float64{0, 0, 0, 1, 1, 1},
			yPred: []float64{0.9, 0.8, 0.7, 0.3, 0.2, 0.1},
			want:  0.0,
		},
		{
			name:  "Random classifier",
			yTrue: []float64{0, 1, 0, 1},
			yPred: []float64{0.5, 0.5, 0.5, 0.5},
			want:  0.5,
		},
		{
			name:  "Typical case",
			yTrue: []float64{0, 0, 1, 1},
			yPred: []float64{0.1, 0.4, 0.35, 0.8},
			want:  0.75,
		},
		{
			name:  "All positive labels",
			yTrue: []float64{1, 1, 1, 1},
			yPred: []float64{0.1, 0.4, 0.35, 0.8},
			want:  0.5, // Undefined case, returns 0.5
		},
		{
			name:  "All negative labels",
			yTrue: []float64{0, 0, 0, 0},
			yPred: []float64{0.1, 0.4, 0.35, 0.8},
			want:  0.5, // Undefined case, returns 0.5
		},
		{
			name:    "Non-binary labels",
			yTrue:   []float64{0, 0.5, 1},
			yPred:   []float64{0.1, 0.5, 0.9},
			wantErr: true,
		},
		{
			name:    "Dimension mismatch",
			yTrue:   []float64{0, 1},
			yPred:   []float64{0.5},
			wantErr: true,
		},
		{
			name:    "Empty vectors",
			yTrue:   []float64{},
			yPred:   []float64{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var yTrue, yPred *mat.VecDense
			if len(tt.yTrue) > 0 {
				yTrue = mat.NewVecDense(len(tt.yTrue), tt.yTrue)
			}
			if len(tt.yPred) > 0 {
				yPred = mat.NewVecDense(len(tt.yPred), tt.yPred)
			}

			got, err := AUC(yTrue, yPred)
			if (err != nil) != tt.wantErr {
				t.Errorf("AUC() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("AUC() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{
			name:  "Perfect accuracy",
			yTrue: []float64{0, 1, 2, 1, 0},
			yPred: []float64{0, 1, 2, 1, 0},
			want:  1.0,
		},
		{
			name:  "80% accuracy",
			yTrue: []float64{0, 1, 2, 1, 0},
			yPred: []float64{0, 1, 1, 1, 0},
			want:  0.8,
		},
		{
			name:  "Zero accuracy",
			yTrue: []float64{0, 0, 0},
			yPred: []float64{1, 1, 1},
			want:  0.0,
		},
		{
			name:    "Empty vectors",
			yTrue:   []float64{},
			yPred:   []float64{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var yTrue, yPred *mat.VecDense
			if len(tt.yTrue) > 0 {
				yTrue = mat.NewVecDense(len(tt.yTrue), tt.yTrue)
			}
			if len(tt.yPred) > 0 {
				yPred = mat.NewVecDense(len(tt.yPred), tt.yPred)
			}

			got, err := Accuracy(yTrue, yPred)
			if (err != nil) != tt.wantErr {
				t.Errorf("Accuracy() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Accuracy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAUCTiesCountHalf(t *testing.T) {
	// 正例 0.5 と負例 0.5 の組は 0.5、それ以外の組は正しく順序付けられている
	yTrue := mat.NewVecDense(4, []float64{0, 0, 1, 1})
	yScore := mat.NewVecDense(4, []float64{0.1, 0.5, 0.5, 0.9})

	got, err := AUC(yTrue, yScore)
	require.NoError(t, err)
	assert.InDelta(t, 3.5/4.0, got, 1e-12)
}

func TestConfusionMatrix(t *testing.T) {
	yTrue := []int{0, 0, 1, 1, 1, 2}
	yPred := []int{0, 1, 1, 1, 0, 2}

	cm, err := NewConfusionMatrix(yTrue, yPred, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, cm.Labels)
	// 行 = 予測, 列 = 実測
	assert.Equal(t, [][]int{
		{1, 1, 0},
		{1, 2, 0},
		{0, 0, 1},
	}, cm.Counts)
	assert.Equal(t, 6, cm.Total())
	assert.InDelta(t, 4.0/6.0, cm.Accuracy(), 1e-12)
	assert.Equal(t, []int{2, 3, 1}, cm.ActualCounts())
	assert.InDelta(t, 0.5, cm.NoInformationRate(), 1e-12)

	assert.InDelta(t, 2.0/3.0, cm.Sensitivity(1), 1e-12)
	assert.InDelta(t, 2.0/3.0, cm.Specificity(1), 1e-12)
	assert.InDelta(t, (0.5+2.0/3.0+1.0)/3, cm.MacroSensitivity(), 1e-12)
	assert.True(t, math.IsNaN(cm.Sensitivity(7)))
}

func TestConfusionMatrixFixedLabels(t *testing.T) {
	cm, err := NewConfusionMatrix([]int{1, 1}, []int{1, 1}, []int{0, 1})
	require.NoError(t, err)

	assert.Equal(t, [][]int{{0, 0}, {0, 2}}, cm.Counts)
	assert.InDelta(t, 1.0, cm.Sensitivity(1), 1e-12)
	assert.True(t, math.IsNaN(cm.Specificity(1)))

	_, err = NewConfusionMatrix([]int{1, 2}, []int{1, 1}, []int{0, 1})
	assert.Error(t, err)
	_, err = NewConfusionMatrix([]int{1}, []int{1, 1}, nil)
	assert.Error(t, err)
	_, err = NewConfusionMatrix(nil, nil, nil)
	assert.Error(t, err)
}

func BenchmarkAUC(b *testing.B) {
	// Create test data
	n := 1000
	yTrue := make([]float64, n)
	yPred := make([]float64, n)
	for i := 0; i < n; i++ {
		if i < n/2 {
			yTrue[i] = 0
			yPred[i] = float64(i) / float64(n)
		} else {
			yTrue[i] = 1
			yPred[i] = float64(i) / float64(n)
		}
	}
	yTrueVec := mat.NewVecDense(n, yTrue)
	yPredVec := mat.NewVecDense(n, yPred)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = AUC(yTrueVec, yPredVec)
	}
}
