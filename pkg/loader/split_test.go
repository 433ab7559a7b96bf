package loader

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleXY(n int) ([][]float64, []int) {
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range n {
		X[i] = []float64{float64(i)}
		y[i] = i % 3
	}
	return X, y
}

func TestTrainTestSplitIsSeededAndDisjoint(t *testing.T) {
	X, y := sampleXY(100)
	xtr, xte, ytr, yte, err := TrainTestSplit(X, y, 0.3, 42)
	require.NoError(t, err)
	require.Len(t, xte, 30)
	require.Len(t, xtr, 70)
	require.Len(t, yte, 30)
	require.Len(t, ytr, 70)

	seen := map[float64]bool{}
	for _, row := range append(append([][]float64{}, xtr...), xte...) {
		require.False(t, seen[row[0]], "row %v appears twice", row[0])
		seen[row[0]] = true
	}
	require.Len(t, seen, 100)

	xtr2, _, _, _, err := TrainTestSplit(X, y, 0.3, 42)
	require.NoError(t, err)
	require.Equal(t, xtr, xtr2)
}

func TestTrainTestSplitRejectsBadInput(t *testing.T) {
	X, y := sampleXY(10)
	_, _, _, _, err := TrainTestSplit(X, y[:5], 0.3, 1)
	require.Error(t, err)
	_, _, _, _, err = TrainTestSplit(X, y, 1.5, 1)
	require.Error(t, err)
	_, _, _, _, err = TrainTestSplit(X[:2], y[:2], 0.3, 1)
	require.Error(t, err)
}

func TestStratifiedKFoldKeepsProportions(t *testing.T) {
	y := make([]int, 0, 60)
	for range 40 {
		y = append(y, 0)
	}
	for range 20 {
		y = append(y, 1)
	}
	folds, err := StratifiedKFoldSplit(y, 5, 3)
	require.NoError(t, err)
	for _, f := range folds {
		ones := 0
		for _, i := range f.Test {
			ones += y[i]
		}
		require.Len(t, f.Test, 12)
		require.Equal(t, 4, ones)
	}

	again, err := StratifiedKFoldSplit(y, 5, 3)
	require.NoError(t, err)
	require.Equal(t, folds, again)

	_, err = StratifiedKFoldSplit(y, 1, 3)
	require.Error(t, err)
}

func TestSubset(t *testing.T) {
	X, y := sampleXY(5)
	xs, ys := Subset(X, y, []int{4, 0, 4})
	require.Equal(t, [][]float64{{4}, {0}, {4}}, xs)
	require.Equal(t, []int{1, 0, 1}, ys)
}
