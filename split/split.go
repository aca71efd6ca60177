// Package split partitions a table into training and test rows.
package split

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/go-gota/gota/dataframe"

	scigoErrors "github.com/YuminosukeSato/bechdel/pkg/errors"
	"github.com/YuminosukeSato/bechdel/pkg/log"
)

// DefaultProportion is the share of rows used for training.
const DefaultProportion = 0.8

// Partition is a disjoint train/test split of one table. The index slices
// refer to rows of the input table and are sorted ascending.
type Partition struct {
	Train    dataframe.DataFrame
	Test     dataframe.DataFrame
	TrainIdx []int
	TestIdx  []int
}

// TrainTest shuffles the row indices with a PCG source seeded by seed and
// takes the first ceil(p*N) as training rows. The same seed and table always
// give the same partition.
func TrainTest(df dataframe.DataFrame, p float64, seed uint64, opts ...Option) (*Partition, error) {
	if math.IsNaN(p) || p <= 0 || p >= 1 {
		return nil, scigoErrors.NewValidationError("proportion", "must be in (0, 1)", p)
	}

	n := df.Nrow()
	nTrain := int(math.Ceil(p * float64(n)))
	if nTrain == 0 || nTrain >= n {
		return nil, scigoErrors.NewDegenerateSplitError(n, p, nTrain, n-nTrain)
	}

	r := rand.New(rand.NewPCG(seed, seed))
	perm := r.Perm(n)

	trainIdx := append([]int(nil), perm[:nTrain]...)
	testIdx := append([]int(nil), perm[nTrain:]...)
	sort.Ints(trainIdx)
	sort.Ints(testIdx)

	train := df.Subset(trainIdx)
	if train.Err != nil {
		return nil, scigoErrors.Wrap(train.Err, "split: train subset")
	}
	test := df.Subset(testIdx)
	if test.Err != nil {
		return nil, scigoErrors.Wrap(test.Err, "split: test subset")
	}

	loggerFrom(opts).Info("train/test split",
		log.StageKey, "split",
		log.RowsInKey, n,
		"train_rows", nTrain,
		"test_rows", n-nTrain,
		log.RandomSeedKey, seed,
	)

	return &Partition{Train: train, Test: test, TrainIdx: trainIdx, TestIdx: testIdx}, nil
}
