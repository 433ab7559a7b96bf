package model

import (
	"bytes"
	"context"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// blobs returns three well separated clusters labelled 10, 20 and 30.
func blobs(n int, seed int64) ([][]float64, []int) {
	r := rand.New(rand.NewSource(seed))
	centers := [][2]float64{{0, 0}, {6, 6}, {0, 8}}
	labels := []int{10, 20, 30}
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range n {
		c := i % 3
		X[i] = []float64{centers[c][0] + r.NormFloat64()*0.5, centers[c][1] + r.NormFloat64()*0.5, r.Float64()}
		y[i] = labels[c]
	}
	return X, y
}

type ForestSuite struct {
	suite.Suite
	X      [][]float64
	labels []int
	Xtest  [][]float64
	ytest  []int
}

func (s *ForestSuite) SetupSuite() {
	X, y := blobs(300, 1)
	s.X, s.labels = X, y
	s.Xtest, s.ytest = blobs(90, 2)
}

func TestForestSuite(t *testing.T) { suite.Run(t, new(ForestSuite)) }

func (s *ForestSuite) TestTreeFitsSeparableData() {
	tree := NewDecisionTreeClassifier(WithRandomState(1))
	s.Require().NoError(tree.Fit(s.X, s.labels))
	s.Require().Equal(1.0, Accuracy(s.labels, tree.Predict(s.X)))
	s.Require().Greater(Accuracy(s.ytest, tree.Predict(s.Xtest)), 0.95)
}

func (s *ForestSuite) TestForestAccuracyAndProba() {
	rf := NewRandomForest(WithNEstimators(25), WithForestRandomState(7))
	s.Require().NoError(rf.Fit(s.X, s.labels))
	s.Require().Equal([]int{10, 20, 30}, rf.Classes)
	s.Require().Greater(Accuracy(s.ytest, rf.Predict(s.Xtest)), 0.95)

	for _, row := range rf.PredictProba(s.Xtest) {
		s.Require().Len(row, 3)
		sum := 0.0
		for _, v := range row {
			s.Require().GreaterOrEqual(v, 0.0)
			sum += v
		}
		s.Require().InDelta(1.0, sum, 1e-9)
	}
}

func (s *ForestSuite) TestForestIsDeterministicForSeed() {
	a := NewRandomForest(WithNEstimators(10), WithForestRandomState(3), WithNJobs(4))
	b := NewRandomForest(WithNEstimators(10), WithForestRandomState(3), WithNJobs(1))
	s.Require().NoError(a.Fit(s.X, s.labels))
	s.Require().NoError(b.Fit(s.X, s.labels))
	s.Require().Equal(a.PredictProba(s.Xtest), b.PredictProba(s.Xtest))
}

func (s *ForestSuite) TestForestGobRoundTrip() {
	rf := NewRandomForest(WithNEstimators(8), WithForestRandomState(5), WithClassWeight(ClassWeightBalanced))
	s.Require().NoError(rf.Fit(s.X, s.labels))
	data, err := rf.MarshalBinary()
	s.Require().NoError(err)

	var back RandomForest
	s.Require().NoError(back.UnmarshalBinary(data))
	s.Require().Equal(rf.Classes, back.Classes)
	s.Require().Equal(rf.ClassWeight, back.ClassWeight)
	s.Require().Equal(rf.Predict(s.Xtest), back.Predict(s.Xtest))
	s.Require().Equal(rf.PredictProba(s.Xtest), back.PredictProba(s.Xtest))

	s.Require().Error(back.UnmarshalBinary([]byte("junk")))
}

func TestTreeHandlesMissingValues(t *testing.T) {
	X := [][]float64{{1}, {2}, {math.NaN()}, {8}, {9}, {math.NaN()}}
	y := []int{0, 0, 0, 1, 1, 1}
	tree := NewDecisionTreeClassifier(WithRandomState(1))
	require.NoError(t, tree.Fit(X, y))
	require.Equal(t, []int{0, 1}, tree.Predict([][]float64{{1.5}, {8.5}}))
	require.Len(t, tree.Predict([][]float64{{math.NaN()}}), 1)
}

func TestTreeFitIndicesUsesOnlySample(t *testing.T) {
	X := [][]float64{{0}, {1}, {2}, {3}}
	y := []int{5, 5, 7, 7}
	tree := NewDecisionTreeClassifier()
	require.NoError(t, tree.FitIndices(X, y, []int{0, 0, 1}))
	require.Equal(t, []int{5}, tree.Classes())
	require.Equal(t, []int{5, 5}, tree.Predict([][]float64{{0}, {3}}))

	require.Error(t, tree.FitIndices(X, y, []int{9}))
	require.Error(t, tree.FitIndices(X, y, nil))
}

func TestTreeMaxDepthAndGob(t *testing.T) {
	X, y := blobs(120, 4)
	tree := NewDecisionTreeClassifier(WithMaxDepth(1), WithCriterion("entropy"), WithRandomState(2))
	require.NoError(t, tree.Fit(X, y))
	data, err := tree.MarshalBinary()
	require.NoError(t, err)

	var back DecisionTreeClassifier
	require.NoError(t, back.UnmarshalBinary(data))
	require.Equal(t, 1, back.MaxDepth)
	require.Equal(t, "entropy", back.Criterion)
	require.Equal(t, tree.Predict(X), back.Predict(X))

	// a stump can separate at most two of three classes
	require.Less(t, Accuracy(y, tree.Predict(X)), 0.99)
}

func TestPruneReducedError(t *testing.T) {
	r := rand.New(rand.NewSource(9))
	X := make([][]float64, 200)
	y := make([]int, 200)
	for i := range X {
		X[i] = []float64{r.Float64(), r.Float64()}
		if X[i][0] > 0.5 {
			y[i] = 1
		}
		if r.Float64() < 0.1 {
			y[i] = 1 - y[i]
		}
	}
	tree := NewDecisionTreeClassifier(WithRandomState(1))
	require.NoError(t, tree.Fit(X[:150], y[:150]))
	before := Accuracy(y[150:], tree.Predict(X[150:]))
	n, err := tree.PruneReducedError(X[150:], y[150:])
	require.NoError(t, err)
	require.Positive(t, n)
	require.GreaterOrEqual(t, Accuracy(y[150:], tree.Predict(X[150:])), before)

	_, err = NewDecisionTreeClassifier().PruneReducedError(X, y)
	require.ErrorIs(t, err, ErrNotFitted)
}

func TestForestPruneReducedError(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	X := make([][]float64, 300)
	y := make([]int, 300)
	for i := range X {
		X[i] = []float64{r.Float64(), r.Float64()}
		if X[i][1] > 0.4 {
			y[i] = 1
		}
		if r.Float64() < 0.15 {
			y[i] = 1 - y[i]
		}
	}
	rf := NewRandomForest(WithNEstimators(5), WithForestRandomState(3))
	require.NoError(t, rf.Fit(X[:200], y[:200]))
	n, err := rf.PruneReducedError(X[200:], y[200:])
	require.NoError(t, err)
	require.Positive(t, n)
	require.Len(t, rf.Predict(X[200:]), 100)

	_, err = NewRandomForest().PruneReducedError(X, y)
	require.ErrorIs(t, err, ErrNotFitted)
}

func TestForestVoteTieGoesToSmallestLabel(t *testing.T) {
	leaf := func(classes []int) *DecisionTreeClassifier {
		return &DecisionTreeClassifier{
			classes: classes,
			root:    &dtNode{isLeaf: true, n: 1, probas: []float64{1}},
		}
	}
	rf := &RandomForest{Classes: []int{1, 2}, Trees: []*DecisionTreeClassifier{leaf([]int{2}), leaf([]int{1})}}
	require.Equal(t, []int{1}, rf.Predict([][]float64{{0}}))
	require.Equal(t, [][]float64{{0.5, 0.5}}, rf.PredictProba([][]float64{{0}}))
}

func TestResolveMaxFeatures(t *testing.T) {
	cases := []struct {
		mode string
		k    int
		p    int
		want int
	}{
		{MaxFeaturesSqrt, 0, 30, 5},
		{MaxFeaturesLog2, 0, 30, 4},
		{MaxFeaturesAll, 0, 30, 0},
		{MaxFeaturesSqrt, 0, 1, 1},
		{MaxFeaturesSqrt, 50, 30, 30},
	}
	for _, c := range cases {
		rf := &RandomForest{MaxFeaturesMode: c.mode, MaxFeatures: c.k}
		got, err := rf.ResolveMaxFeatures(c.p)
		require.NoError(t, err)
		require.Equal(t, c.want, got, "%+v", c)
	}
	_, err := (&RandomForest{MaxFeaturesMode: "half"}).ResolveMaxFeatures(4)
	require.Error(t, err)
}

func TestForestRejectsBadConfig(t *testing.T) {
	X, y := blobs(30, 1)
	require.Error(t, NewRandomForest(WithNEstimators(0)).Fit(X, y))
	require.Error(t, NewRandomForest(WithClassWeight("inverse")).Fit(X, y))
	require.Error(t, NewRandomForest().Fit(nil, nil))
	require.Error(t, NewRandomForest().Fit(X, y[:3]))
}

func TestBalancedBootstrapLiftsMinority(t *testing.T) {
	y := make([]int, 100)
	for i := 90; i < 100; i++ {
		y[i] = 1
	}
	rf := &RandomForest{ClassWeight: ClassWeightBalanced, Bootstrap: true}
	cum := rf.sampleWeights(y)
	require.Len(t, cum, 100)
	require.InDelta(t, 100.0, cum[99], 1e-9)

	r := rand.New(rand.NewSource(1))
	minority := 0
	for range 10000 {
		if y[drawWeighted(r, cum)] == 1 {
			minority++
		}
	}
	require.InDelta(t, 0.5, float64(minority)/10000, 0.03)

	require.Nil(t, (&RandomForest{Bootstrap: true}).sampleWeights(y))
}

func TestClassificationReport(t *testing.T) {
	yTrue := []int{0, 0, 1, 1, 1, 2}
	yPred := []int{0, 1, 1, 1, 0, 2}
	names := map[int]string{0: "Eating", 1: "Sleeping", 2: "Walking"}
	r := ClassificationReport(yTrue, yPred, func(l int) string { return names[l] })

	require.Len(t, r.Classes, 3)
	require.InDelta(t, 4.0/6.0, r.Accuracy, 1e-9)
	sleeping := r.Classes[1]
	require.Equal(t, "Sleeping", sleeping.Name)
	require.InDelta(t, 2.0/3.0, sleeping.Precision, 1e-9)
	require.InDelta(t, 2.0/3.0, sleeping.Recall, 1e-9)
	require.Equal(t, 3, sleeping.Support)
	require.InDelta(t, 1.0, r.Classes[2].F1, 1e-9)

	// (0.5*2 + 2/3*3 + 1*1) / 6
	require.InDelta(t, (1.0+2.0+1.0)/6.0, r.WeightedF1, 1e-9)
	require.InDelta(t, r.WeightedF1, WeightedF1(yTrue, yPred), 1e-12)

	var buf bytes.Buffer
	_, err := r.WriteTo(&buf)
	require.NoError(t, err)
	out := buf.String()
	require.True(t, strings.Contains(out, "Sleeping"))
	require.True(t, strings.Contains(out, "weighted avg"))
}

func TestConfusionMatrix(t *testing.T) {
	yTrue := []int{0, 0, 1, 1, 1, 2}
	yPred := []int{0, 1, 1, 1, 0, 2}
	c := ConfusionMatrix(yTrue, yPred)
	require.Equal(t, []int{0, 1, 2}, c.Labels)
	require.Equal(t, []int{
		1, 1, 0,
		1, 2, 0,
		0, 0, 1,
	}, c.Counts)
	require.Equal(t, 2, c.At(1, 1))

	var buf bytes.Buffer
	_, err := c.WriteTo(&buf, func(l int) string { return []string{"Eating", "Sleeping", "Walking"}[l] })
	require.NoError(t, err)
	require.Contains(t, buf.String(), "1 Sleeping")
}

func TestLogLoss(t *testing.T) {
	classes := []int{10, 20}
	perfect := [][]float64{{1, 0}, {0, 1}}
	require.Less(t, LogLoss([]int{10, 20}, perfect, classes), 1e-9)

	even := [][]float64{{0.5, 0.5}, {0.5, 0.5}}
	require.InDelta(t, math.Log(2), LogLoss([]int{10, 20}, even, classes), 1e-12)

	// a confident miss is clipped, not infinite
	miss := LogLoss([]int{10}, [][]float64{{0, 1}}, classes)
	require.InDelta(t, -math.Log(1e-12), miss, 1e-6)
	// unseen label behaves like a zero probability
	require.InDelta(t, miss, LogLoss([]int{99}, [][]float64{{0.5, 0.5}}, classes), 1e-9)
	require.Zero(t, LogLoss(nil, nil, classes))
}

func TestParamGridCombinations(t *testing.T) {
	combos := DefaultParamGrid().Combinations()
	require.Len(t, combos, 72)
	require.Equal(t, Params{NEstimators: 100, MaxDepth: 5, MinSamplesSplit: 2, MaxFeatures: MaxFeaturesSqrt}, combos[0])
	require.Contains(t, combos[3].String(), "max_depth=5")
	require.Contains(t, Params{MaxDepth: 0}.String(), "max_depth=None")
}

func TestGridSearchPicksAndRefits(t *testing.T) {
	X, y := blobs(90, 11)
	gs := &GridSearch{
		Grid: ParamGrid{
			NEstimators:     []int{5},
			MaxDepth:        []int{1, 0},
			MinSamplesSplit: []int{2},
			MaxFeatures:     []string{MaxFeaturesSqrt},
		},
		Folds:       3,
		Jobs:        2,
		ClassWeight: ClassWeightBalanced,
		RandomState: 42,
	}
	res, err := gs.Fit(context.Background(), X, y)
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	for _, r := range res.Results {
		require.Len(t, r.FoldScores, 3)
	}
	require.Equal(t, 0, res.Best.MaxDepth)
	require.NotNil(t, res.Model)
	require.Len(t, res.Model.Trees, 5)
	require.Greater(t, res.BestScore, 0.9)
}

func TestGridSearchHonoursCancellation(t *testing.T) {
	X, y := blobs(60, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gs := &GridSearch{Grid: DefaultParamGrid(), Folds: 3, RandomState: 1}
	_, err := gs.Fit(ctx, X, y)
	require.ErrorIs(t, err, context.Canceled)

	_, err = (&GridSearch{Folds: 3}).Fit(context.Background(), X, y)
	require.Error(t, err)
}
