package split

import (
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scigoErrors "github.com/YuminosukeSato/bechdel/pkg/errors"
	"github.com/YuminosukeSato/bechdel/pkg/log"
)

func table(n int) dataframe.DataFrame {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i * 10
	}
	return dataframe.New(series.New(ids, series.Int, "row"))
}

func TestTrainTest(t *testing.T) {
	tests := []struct {
		name      string
		rows      int
		p         float64
		wantTrain int
	}{
		{"even", 10, 0.8, 8},
		{"ceil", 11, 0.8, 9},
		{"half", 7, 0.5, 4},
		{"large", 1003, 0.8, 803},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			df := table(tt.rows)
			part, err := TrainTest(df, tt.p, 1234)
			require.NoError(t, err)

			assert.Len(t, part.TrainIdx, tt.wantTrain)
			assert.Len(t, part.TestIdx, tt.rows-tt.wantTrain)
			assert.Equal(t, tt.wantTrain, part.Train.Nrow())
			assert.Equal(t, tt.rows-tt.wantTrain, part.Test.Nrow())

			seen := make(map[int]bool)
			for _, i := range append(append([]int{}, part.TrainIdx...), part.TestIdx...) {
				assert.False(t, seen[i], "row %d in both partitions", i)
				seen[i] = true
			}
			assert.Len(t, seen, tt.rows)

			rows, err := part.Train.Col("row").Int()
			require.NoError(t, err)
			for k, i := range part.TrainIdx {
				assert.Equal(t, i*10, rows[k])
			}
		})
	}
}

func TestTrainTestReproducible(t *testing.T) {
	df := table(50)
	a, err := TrainTest(df, 0.8, 99)
	require.NoError(t, err)
	b, err := TrainTest(df, 0.8, 99)
	require.NoError(t, err)
	assert.Equal(t, a.TrainIdx, b.TrainIdx)
	assert.Equal(t, a.TestIdx, b.TestIdx)

	c, err := TrainTest(df, 0.8, 100)
	require.NoError(t, err)
	assert.NotEqual(t, a.TrainIdx, c.TrainIdx)
}

func TestTrainTestDegenerate(t *testing.T) {
	_, err := TrainTest(table(1), 0.8, 1)
	assert.ErrorIs(t, err, scigoErrors.ErrDegenerateSplit)

	_, err = TrainTest(table(0), 0.8, 1)
	assert.ErrorIs(t, err, scigoErrors.ErrDegenerateSplit)

	_, err = TrainTest(table(10), 1.0, 1)
	assert.Error(t, err)
	_, err = TrainTest(table(10), 0, 1)
	assert.Error(t, err)
}

func TestTrainTestWithLogger(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)

	_, err := TrainTest(table(10), 0.8, 1, WithLogger(logger.With(log.RunIDKey, "r1")))
	require.NoError(t, err)
	assert.True(t, logger.ContainsMessage("train/test split"))
	assert.True(t, logger.ContainsField(log.RunIDKey, "r1"))
	assert.True(t, logger.ContainsField("train_rows", 8.0))
}
