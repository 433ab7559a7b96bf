package loader

import (
	"fmt"
	"math/rand"
	"sort"
)

// SplitIndices shuffles 0..n-1 with seed and cuts off the first
// int(n*testRatio) positions as the test set.
func SplitIndices(n int, testRatio float64, seed int64) (train, test []int, err error) {
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, fmt.Errorf("loader: test ratio %v outside (0,1)", testRatio)
	}
	nTest := int(float64(n) * testRatio)
	if nTest == 0 || nTest == n {
		return nil, nil, fmt.Errorf("loader: %d rows cannot be split at ratio %v", n, testRatio)
	}
	indices := rand.New(rand.NewSource(seed)).Perm(n)
	return indices[nTest:], indices[:nTest], nil
}

// TrainTestSplit splits X, y into train and test sets by ratio. The shuffle
// is driven by seed, so equal inputs always produce equal splits.
func TrainTestSplit(X [][]float64, y []int, testRatio float64, seed int64) (XTrain, XTest [][]float64, yTrain, yTest []int, err error) {
	if len(y) != len(X) {
		return nil, nil, nil, nil, fmt.Errorf("loader: X has %d rows, y has %d", len(X), len(y))
	}
	train, test, err := SplitIndices(len(X), testRatio, seed)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	XTrain, yTrain = Subset(X, y, train)
	XTest, yTest = Subset(X, y, test)
	return XTrain, XTest, yTrain, yTest, nil
}

// Fold is one train/test partition of row indices.
type Fold struct {
	Train []int
	Test  []int
}

// StratifiedKFoldSplit deals each class's shuffled rows round-robin across k
// folds so every fold keeps roughly the overall class proportions. Classes
// with fewer than k rows simply miss some folds.
func StratifiedKFoldSplit(y []int, k int, seed int64) ([]Fold, error) {
	n := len(y)
	if k < 2 || k > n {
		return nil, fmt.Errorf("loader: cannot make %d folds from %d rows", k, n)
	}
	byClass := map[int][]int{}
	for i, lab := range y {
		byClass[lab] = append(byClass[lab], i)
	}
	labels := make([]int, 0, len(byClass))
	for lab := range byClass {
		labels = append(labels, lab)
	}
	sort.Ints(labels)

	rnd := rand.New(rand.NewSource(seed))
	tests := make([][]int, k)
	next := 0
	for _, lab := range labels {
		rows := byClass[lab]
		rnd.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		for _, r := range rows {
			tests[next%k] = append(tests[next%k], r)
			next++
		}
	}
	return foldsFromTests(n, tests), nil
}

func foldsFromTests(n int, tests [][]int) []Fold {
	folds := make([]Fold, len(tests))
	for f, test := range tests {
		inTest := make([]bool, n)
		for _, i := range test {
			inTest[i] = true
		}
		train := make([]int, 0, n-len(test))
		for i := range n {
			if !inTest[i] {
				train = append(train, i)
			}
		}
		sort.Ints(test)
		folds[f] = Fold{Train: train, Test: test}
	}
	return folds
}

// Subset gathers the rows of X and y named by idx.
func Subset(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for k, i := range idx {
		xs[k] = X[i]
		ys[k] = y[i]
	}
	return xs, ys
}
