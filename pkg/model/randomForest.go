package model

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"
)

// Max-features modes understood by RandomForest.MaxFeaturesMode.
const (
	MaxFeaturesAll  = ""
	MaxFeaturesSqrt = "sqrt"
	MaxFeaturesLog2 = "log2"
)

// ClassWeightBalanced reweights bootstrap draws inversely to class frequency.
const ClassWeightBalanced = "balanced"

// RandomForest for classification
type RandomForest struct {
	// Hyperparameters / options
	NEstimators     int
	MaxDepth        int // 0 => unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int    // explicit count, wins over MaxFeaturesMode when > 0
	MaxFeaturesMode string // "", "sqrt" or "log2"
	Criterion       string
	Bootstrap       bool
	ClassWeight     string // "" or "balanced"
	NJobs           int    // concurrent tree fits, 0 => GOMAXPROCS
	RandomState     int64

	// Internal state
	Trees   []*DecisionTreeClassifier
	Classes []int // sorted labels seen in Fit
}

// Option functional config for RandomForest
type RandomForestOption func(*RandomForest)

func WithNEstimators(n int) RandomForestOption { return func(rf *RandomForest) { rf.NEstimators = n } }
func WithBootstrap(b bool) RandomForestOption  { return func(rf *RandomForest) { rf.Bootstrap = b } }
func WithForestMaxDepth(d int) RandomForestOption {
	return func(rf *RandomForest) { rf.MaxDepth = d }
}
func WithForestMinSamplesSplit(n int) RandomForestOption {
	return func(rf *RandomForest) { rf.MinSamplesSplit = n }
}
func WithMaxFeaturesMode(m string) RandomForestOption {
	return func(rf *RandomForest) { rf.MaxFeaturesMode = m }
}
func WithClassWeight(w string) RandomForestOption {
	return func(rf *RandomForest) { rf.ClassWeight = w }
}
func WithNJobs(n int) RandomForestOption { return func(rf *RandomForest) { rf.NJobs = n } }
func WithForestRandomState(seed int64) RandomForestOption {
	return func(rf *RandomForest) { rf.RandomState = seed }
}

// NewRandomForest initializes the forest with sensible defaults.
func NewRandomForest(opts ...RandomForestOption) *RandomForest {
	rf := &RandomForest{
		NEstimators:     100,
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeaturesMode: MaxFeaturesSqrt,
		Criterion:       "gini",
		Bootstrap:       true,
		RandomState:     time.Now().UnixNano(),
	}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

// ResolveMaxFeatures returns the per-split feature count for p features.
// Zero means every feature is considered.
func (rf *RandomForest) ResolveMaxFeatures(p int) (int, error) {
	if rf.MaxFeatures > 0 {
		return min(rf.MaxFeatures, p), nil
	}
	switch rf.MaxFeaturesMode {
	case MaxFeaturesAll, "all":
		return 0, nil
	case MaxFeaturesSqrt:
		return max(1, int(math.Sqrt(float64(p)))), nil
	case MaxFeaturesLog2:
		return max(1, int(math.Log2(float64(p)))), nil
	default:
		return 0, fmt.Errorf("randomforest: unknown max_features %q", rf.MaxFeaturesMode)
	}
}

// Fit trains the random forest.
// It uses index-based sampling for memory efficiency.
func (rf *RandomForest) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return errors.New("randomforest: empty X")
	}
	n := len(X)
	if len(y) != n {
		return errors.New("randomforest: X and y length mismatch")
	}
	if rf.NEstimators < 1 {
		return errors.New("randomforest: n_estimators must be positive")
	}
	if rf.ClassWeight != "" && rf.ClassWeight != ClassWeightBalanced {
		return fmt.Errorf("randomforest: unknown class_weight %q", rf.ClassWeight)
	}
	maxFeatures, err := rf.ResolveMaxFeatures(len(X[0]))
	if err != nil {
		return err
	}

	rf.Classes = uniqueLabels(y)
	cumWeights := rf.sampleWeights(y)

	jobs := rf.NJobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	sem := make(chan struct{}, jobs)

	rf.Trees = make([]*DecisionTreeClassifier, rf.NEstimators)
	var wg sync.WaitGroup
	errCh := make(chan error, rf.NEstimators)

	for i := 0; i < rf.NEstimators; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			// Use a new rand source for each goroutine to avoid contention
			treeRand := rand.New(rand.NewSource(rf.RandomState + int64(idx)))

			// Bootstrap sampling: create an index slice, not a copy of the data.
			sampleIndices := make([]int, n)
			for j := 0; j < n; j++ {
				switch {
				case !rf.Bootstrap:
					sampleIndices[j] = j
				case cumWeights != nil:
					sampleIndices[j] = drawWeighted(treeRand, cumWeights)
				default:
					sampleIndices[j] = treeRand.Intn(n)
				}
			}

			tree := NewDecisionTreeClassifier(
				WithMaxDepth(rf.MaxDepth),
				WithMinSamplesSplit(rf.MinSamplesSplit),
				WithMinSamplesLeaf(max(1, rf.MinSamplesLeaf)),
				WithCriterion(rf.Criterion),
				WithMaxFeatures(maxFeatures),
				WithRandomState(rf.RandomState+int64(idx)), // unique seed for each tree
			)
			if err := tree.FitIndices(X, y, sampleIndices); err != nil {
				errCh <- err
				return
			}
			rf.Trees[idx] = tree
		}(i)
	}
	wg.Wait()
	close(errCh)

	// Check for any errors from goroutines.
	for err := range errCh {
		if err != nil {
			rf.Trees = nil
			return err
		}
	}
	return nil
}

// sampleWeights returns cumulative draw weights for balanced bootstrap, or
// nil when draws are uniform. Each class then contributes equal expected mass.
func (rf *RandomForest) sampleWeights(y []int) []float64 {
	if rf.ClassWeight != ClassWeightBalanced || !rf.Bootstrap {
		return nil
	}
	freq := map[int]int{}
	for _, lab := range y {
		freq[lab]++
	}
	k := float64(len(freq))
	n := float64(len(y))
	cum := make([]float64, len(y))
	acc := 0.0
	for i, lab := range y {
		acc += n / (k * float64(freq[lab]))
		cum[i] = acc
	}
	return cum
}

func drawWeighted(r *rand.Rand, cum []float64) int {
	u := r.Float64() * cum[len(cum)-1]
	i := sort.SearchFloat64s(cum, u)
	if i >= len(cum) {
		i = len(cum) - 1
	}
	return i
}

// Predict returns the majority vote of all trees. Ties go to the smallest label.
func (rf *RandomForest) Predict(X [][]float64) []int {
	allPreds := rf.treePredictions(X)
	finalPred := make([]int, len(X))
	counts := make(map[int]int, len(rf.Classes))
	for i := range X {
		clear(counts)
		for _, preds := range allPreds {
			counts[preds[i]]++
		}
		bestClass, maxCount := 0, -1
		for _, cls := range rf.Classes {
			if cnt := counts[cls]; cnt > maxCount {
				bestClass, maxCount = cls, cnt
			}
		}
		finalPred[i] = bestClass
	}
	return finalPred
}

// treePredictions fans out per-tree prediction and keeps results in tree order.
func (rf *RandomForest) treePredictions(X [][]float64) [][]int {
	allPreds := make([][]int, len(rf.Trees))
	var wg sync.WaitGroup
	for j, tree := range rf.Trees {
		wg.Add(1)
		go func(j int, t *DecisionTreeClassifier) {
			defer wg.Done()
			allPreds[j] = t.Predict(X)
		}(j, tree)
	}
	wg.Wait()
	return allPreds
}

// PredictProba averages tree probabilities; columns follow rf.Classes.
func (rf *RandomForest) PredictProba(X [][]float64) [][]float64 {
	pos := make(map[int]int, len(rf.Classes))
	for i, c := range rf.Classes {
		pos[c] = i
	}
	out := make([][]float64, len(X))
	for i := range out {
		out[i] = make([]float64, len(rf.Classes))
	}
	if len(rf.Trees) == 0 {
		return out
	}
	for _, tree := range rf.Trees {
		cols := make([]int, len(tree.classes))
		for k, c := range tree.classes {
			cols[k] = pos[c]
		}
		for i, p := range tree.PredictProba(X) {
			for k, v := range p {
				out[i][cols[k]] += v
			}
		}
	}
	inv := 1.0 / float64(len(rf.Trees))
	for i := range out {
		for k := range out[i] {
			out[i][k] *= inv
		}
	}
	return out
}

// PruneReducedError prunes every tree against the validation rows and
// returns the total number of collapsed nodes.
func (rf *RandomForest) PruneReducedError(Xval [][]float64, yval []int) (int, error) {
	if len(rf.Trees) == 0 {
		return 0, ErrNotFitted
	}
	counts := make([]int, len(rf.Trees))
	errs := make([]error, len(rf.Trees))
	var wg sync.WaitGroup
	for j, tree := range rf.Trees {
		wg.Add(1)
		go func(j int, t *DecisionTreeClassifier) {
			defer wg.Done()
			counts[j], errs[j] = t.PruneReducedError(Xval, yval)
		}(j, tree)
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return 0, fmt.Errorf("randomforest: prune: %w", err)
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}

type forestState struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	MaxFeaturesMode string
	Criterion       string
	Bootstrap       bool
	ClassWeight     string
	RandomState     int64
	Classes         []int
	Trees           [][]byte
}

// MarshalBinary implements encoding.BinaryMarshaler using gob.
func (rf *RandomForest) MarshalBinary() ([]byte, error) {
	st := forestState{
		NEstimators:     rf.NEstimators,
		MaxDepth:        rf.MaxDepth,
		MinSamplesSplit: rf.MinSamplesSplit,
		MinSamplesLeaf:  rf.MinSamplesLeaf,
		MaxFeatures:     rf.MaxFeatures,
		MaxFeaturesMode: rf.MaxFeaturesMode,
		Criterion:       rf.Criterion,
		Bootstrap:       rf.Bootstrap,
		ClassWeight:     rf.ClassWeight,
		RandomState:     rf.RandomState,
		Classes:         rf.Classes,
	}
	for _, t := range rf.Trees {
		b, err := t.MarshalBinary()
		if err != nil {
			return nil, err
		}
		st.Trees = append(st.Trees, b)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, fmt.Errorf("randomforest: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using gob.
func (rf *RandomForest) UnmarshalBinary(data []byte) error {
	var st forestState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return fmt.Errorf("randomforest: decode: %w", err)
	}
	trees := make([]*DecisionTreeClassifier, len(st.Trees))
	for i, b := range st.Trees {
		t := &DecisionTreeClassifier{}
		if err := t.UnmarshalBinary(b); err != nil {
			return fmt.Errorf("randomforest: tree %d: %w", i, err)
		}
		trees[i] = t
	}
	*rf = RandomForest{
		NEstimators:     st.NEstimators,
		MaxDepth:        st.MaxDepth,
		MinSamplesSplit: st.MinSamplesSplit,
		MinSamplesLeaf:  st.MinSamplesLeaf,
		MaxFeatures:     st.MaxFeatures,
		MaxFeaturesMode: st.MaxFeaturesMode,
		Criterion:       st.Criterion,
		Bootstrap:       st.Bootstrap,
		ClassWeight:     st.ClassWeight,
		RandomState:     st.RandomState,
		Classes:         st.Classes,
		Trees:           trees,
	}
	return nil
}

func uniqueLabels(y []int) []int {
	seen := map[int]struct{}{}
	out := make([]int, 0, 8)
	for _, v := range y {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}
