package model

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// ---------------------------
// Types & options
// ---------------------------

// DecisionTreeClassifier is a CART-style classifier.
type DecisionTreeClassifier struct {
	// Hyperparameters / options
	MaxDepth            int     // maximum depth (root depth = 0). 0 => no limit
	MinSamplesSplit     int     // minimum samples to attempt a split
	MinSamplesLeaf      int     // minimum samples required in each leaf
	Criterion           string  // "gini" (default) or "entropy"
	MaxFeatures         int     // 0 => use all features, >0 => number of features to sample when looking for split
	MinImpurityDecrease float64 // minimal impurity decrease to accept a split
	RandomState         int64   // seed for randomness (feature subsampling)

	// internals
	root    *dtNode
	classes []int // unique class labels (order used by probas)
}

// dtNode holds a node in the tree.
type dtNode struct {
	// internal node fields
	isLeaf    bool
	feature   int
	threshold float64 // numeric threshold: x <= threshold => left
	isCat     bool    // true if this split is a categorical equality split (x == threshold)
	left      *dtNode
	right     *dtNode

	// leaf data
	n         int
	probas    []float64 // probability distribution across classes (aligned with tree.classes)
	predIndex int       // index into classes for predicted class (majority)
}

// Option functional config
type Option func(*DecisionTreeClassifier)

func WithMaxDepth(d int) Option { return func(t *DecisionTreeClassifier) { t.MaxDepth = d } }
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeClassifier) { t.MinSamplesSplit = n }
}
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeClassifier) { t.MinSamplesLeaf = n }
}
func WithCriterion(c string) Option { return func(t *DecisionTreeClassifier) { t.Criterion = c } }
func WithMaxFeatures(k int) Option  { return func(t *DecisionTreeClassifier) { t.MaxFeatures = k } }
func WithMinImpurityDecrease(v float64) Option {
	return func(t *DecisionTreeClassifier) { t.MinImpurityDecrease = v }
}
func WithRandomState(seed int64) Option {
	return func(t *DecisionTreeClassifier) { t.RandomState = seed }
}

// parallelSplitMin is the node size from which candidate features are
// scanned concurrently.
const parallelSplitMin = 2048

// NewDecisionTreeClassifier returns a classifier with sensible defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	d := &DecisionTreeClassifier{
		MaxDepth:            0, // 0 => no explicit max (stopping by other criteria)
		MinSamplesSplit:     2,
		MinSamplesLeaf:      1,
		Criterion:           "gini",
		MaxFeatures:         0,
		MinImpurityDecrease: 0.0,
		RandomState:         time.Now().UnixNano(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// ---------------------------
// Public API: Fit / Predict / PredictProba / Prune / Save/Load
// ---------------------------

// Fit trains the decision tree on X (n x p) and y (n labels as ints).
// Missing values must be math.NaN(). Categorical features:
// encode categories as integers (0,1,2...) in the corresponding float64 entry.
func (t *DecisionTreeClassifier) Fit(X [][]float64, y []int) error {
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	return t.FitIndices(X, y, idx)
}

// FitIndices trains on the rows of X named by idx. Indices may repeat,
// which is how bootstrap samples are passed without copying X.
func (t *DecisionTreeClassifier) FitIndices(X [][]float64, y []int, idx []int) error {
	if len(X) == 0 {
		return errors.New("dtree: empty X")
	}
	if len(y) != len(X) {
		return errors.New("dtree: X and y length mismatch")
	}
	if len(idx) == 0 {
		return errors.New("dtree: empty sample")
	}
	p := len(X[0])
	for i := range X {
		if len(X[i]) != p {
			return errors.New("dtree: inconsistent number of features in X rows")
		}
	}

	// collect classes present in the sample
	classMap := map[int]int{}
	t.classes = nil
	for _, ii := range idx {
		if ii < 0 || ii >= len(X) {
			return fmt.Errorf("dtree: sample index %d out of range", ii)
		}
		lab := y[ii]
		if _, ok := classMap[lab]; !ok {
			classMap[lab] = len(t.classes)
			t.classes = append(t.classes, lab)
		}
	}

	ci := make([]int, len(y))
	for i, lab := range y {
		ci[i] = classMap[lab]
	}

	rnd := rand.New(rand.NewSource(t.RandomState))

	impurityFunc := giniFromCounts
	if t.Criterion == "entropy" {
		impurityFunc = entropyFromCounts
	}

	b := &treeBuilder{t: t, X: X, ci: ci, p: p, nClasses: len(t.classes), impurity: impurityFunc, rnd: rnd}
	t.root = b.buildNode(append([]int(nil), idx...), 0)
	return nil
}

// Classes returns the labels the tree was trained on, in probability order.
func (t *DecisionTreeClassifier) Classes() []int { return append([]int(nil), t.classes...) }

// Predict returns predicted class labels aligned with the labels the tree was trained on.
func (t *DecisionTreeClassifier) Predict(X [][]float64) []int {
	out := make([]int, len(X))
	for i := range X {
		out[i] = t.classes[argmaxFloat(t.predictProbaSingle(X[i]))]
	}
	return out
}

// PredictProba returns the per-class probability vectors for rows in X.
func (t *DecisionTreeClassifier) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i := range X {
		out[i] = t.predictProbaSingle(X[i])
	}
	return out
}

// PruneReducedError performs reduced-error post-pruning using validation data (Xval,yval).
// It will attempt to prune internal nodes if pruning does not reduce accuracy on validation set.
// Returns number of pruned nodes.
func (t *DecisionTreeClassifier) PruneReducedError(Xval [][]float64, yval []int) (int, error) {
	if t.root == nil {
		return 0, ErrNotFitted
	}
	if len(Xval) == 0 || len(yval) != len(Xval) {
		return 0, errors.New("dtree: invalid validation set")
	}
	pruned := 0
	for {
		// each pass may expose new prunable parents
		baseline := Accuracy(yval, t.Predict(Xval))
		n := t.pruneNodeReducedError(t.root, Xval, yval, &baseline)
		if n == 0 {
			return pruned, nil
		}
		pruned += n
	}
}

// ---------------------------
// Gob persistence
// ---------------------------

// gobNode is the exported, flattened form of dtNode. Left and Right index
// into the node slice, -1 for none.
type gobNode struct {
	Leaf      bool
	Feature   int
	Threshold float64
	IsCat     bool
	Left      int
	Right     int
	N         int
	Probas    []float64
	PredIndex int
}

type treeState struct {
	MaxDepth            int
	MinSamplesSplit     int
	MinSamplesLeaf      int
	Criterion           string
	MaxFeatures         int
	MinImpurityDecrease float64
	RandomState         int64
	Classes             []int
	Nodes               []gobNode
}

// MarshalBinary implements encoding.BinaryMarshaler using gob.
func (t *DecisionTreeClassifier) MarshalBinary() ([]byte, error) {
	st := treeState{
		MaxDepth:            t.MaxDepth,
		MinSamplesSplit:     t.MinSamplesSplit,
		MinSamplesLeaf:      t.MinSamplesLeaf,
		Criterion:           t.Criterion,
		MaxFeatures:         t.MaxFeatures,
		MinImpurityDecrease: t.MinImpurityDecrease,
		RandomState:         t.RandomState,
		Classes:             t.classes,
	}
	if t.root != nil {
		flatten(t.root, &st.Nodes)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, fmt.Errorf("dtree: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using gob.
func (t *DecisionTreeClassifier) UnmarshalBinary(data []byte) error {
	var st treeState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return fmt.Errorf("dtree: decode: %w", err)
	}
	t.MaxDepth = st.MaxDepth
	t.MinSamplesSplit = st.MinSamplesSplit
	t.MinSamplesLeaf = st.MinSamplesLeaf
	t.Criterion = st.Criterion
	t.MaxFeatures = st.MaxFeatures
	t.MinImpurityDecrease = st.MinImpurityDecrease
	t.RandomState = st.RandomState
	t.classes = st.Classes
	t.root = nil
	if len(st.Nodes) > 0 {
		root, err := unflatten(st.Nodes, 0, 0)
		if err != nil {
			return err
		}
		t.root = root
	}
	return nil
}

func flatten(n *dtNode, out *[]gobNode) int {
	pos := len(*out)
	*out = append(*out, gobNode{
		Leaf: n.isLeaf, Feature: n.feature, Threshold: n.threshold, IsCat: n.isCat,
		Left: -1, Right: -1, N: n.n, Probas: n.probas, PredIndex: n.predIndex,
	})
	if n.left != nil {
		l := flatten(n.left, out)
		(*out)[pos].Left = l
	}
	if n.right != nil {
		r := flatten(n.right, out)
		(*out)[pos].Right = r
	}
	return pos
}

func unflatten(nodes []gobNode, i, depth int) (*dtNode, error) {
	if i < 0 || i >= len(nodes) || depth > len(nodes) {
		return nil, errors.New("dtree: corrupt node table")
	}
	g := nodes[i]
	n := &dtNode{
		isLeaf: g.Leaf, feature: g.Feature, threshold: g.Threshold, isCat: g.IsCat,
		n: g.N, probas: g.Probas, predIndex: g.PredIndex,
	}
	if g.Leaf {
		return n, nil
	}
	var err error
	if n.left, err = unflatten(nodes, g.Left, depth+1); err != nil {
		return nil, err
	}
	if n.right, err = unflatten(nodes, g.Right, depth+1); err != nil {
		return nil, err
	}
	return n, nil
}

// ---------------------------
// Internal builders & helpers
// ---------------------------

type treeBuilder struct {
	t        *DecisionTreeClassifier
	X        [][]float64
	ci       []int // class index per row of X
	p        int
	nClasses int
	impurity func([]int) float64
	rnd      *rand.Rand
}

// splitResult holds the best split found for one feature. Index lists are
// materialised only for the winning split.
type splitResult struct {
	gain      float64
	feature   int
	threshold float64
	isCat     bool
	nanLeft   bool
}

// pair is a named type for a value and its original index.
type pair struct {
	v float64
	i int
}

func (b *treeBuilder) leaf(node *dtNode, counts []int) *dtNode {
	node.isLeaf = true
	node.probas = countsToProbas(counts)
	node.predIndex = argmax(counts)
	return node
}

func (b *treeBuilder) buildNode(idx []int, depth int) *dtNode {
	t := b.t
	node := &dtNode{n: len(idx)}

	counts := b.counts(idx)
	// make leaf if pure or too few samples or depth reached
	if isPure(counts) || (t.MinSamplesSplit > 0 && len(idx) < t.MinSamplesSplit) {
		return b.leaf(node, counts)
	}
	if t.MaxDepth > 0 && depth >= t.MaxDepth {
		return b.leaf(node, counts)
	}

	// determine features to try
	featIndices := make([]int, b.p)
	for j := 0; j < b.p; j++ {
		featIndices[j] = j
	}
	if t.MaxFeatures > 0 && t.MaxFeatures < b.p {
		for i := 0; i < t.MaxFeatures; i++ {
			j := i + b.rnd.Intn(b.p-i)
			featIndices[i], featIndices[j] = featIndices[j], featIndices[i]
		}
		featIndices = featIndices[:t.MaxFeatures]
	}

	parentImpurity := b.impurity(counts)
	results := make([]splitResult, len(featIndices))
	if len(idx) >= parallelSplitMin {
		var wg sync.WaitGroup
		for k, f := range featIndices {
			wg.Add(1)
			go func(k, f int) {
				defer wg.Done()
				results[k] = b.bestSplitForFeature(idx, f, parentImpurity)
			}(k, f)
		}
		wg.Wait()
	} else {
		for k, f := range featIndices {
			results[k] = b.bestSplitForFeature(idx, f, parentImpurity)
		}
	}

	// first feature in sampling order wins ties
	best := splitResult{feature: -1}
	for _, r := range results {
		if r.feature >= 0 && r.gain > best.gain {
			best = r
		}
	}

	if best.feature == -1 || best.gain <= t.MinImpurityDecrease {
		return b.leaf(node, counts)
	}

	leftIdx, rightIdx := b.partition(idx, best)
	node.isLeaf = false
	node.feature = best.feature
	node.threshold = best.threshold
	node.isCat = best.isCat
	node.left = b.buildNode(leftIdx, depth+1)
	node.right = b.buildNode(rightIdx, depth+1)
	return node
}

func (b *treeBuilder) counts(idx []int) []int {
	counts := make([]int, b.nClasses)
	for _, ii := range idx {
		counts[b.ci[ii]]++
	}
	return counts
}

func (b *treeBuilder) partition(idx []int, s splitResult) (left, right []int) {
	left = make([]int, 0, len(idx))
	right = make([]int, 0, len(idx))
	for _, ii := range idx {
		v := b.X[ii][s.feature]
		var goLeft bool
		switch {
		case math.IsNaN(v):
			goLeft = s.nanLeft
		case s.isCat:
			goLeft = v == s.threshold
		default:
			goLeft = v <= s.threshold
		}
		if goLeft {
			left = append(left, ii)
		} else {
			right = append(right, ii)
		}
	}
	return left, right
}

// bestSplitForFeature scans equality splits (for small integer-like value
// sets) and threshold splits on feature f, trying missing values on both
// sides. It only reads shared state and is safe to run concurrently.
func (b *treeBuilder) bestSplitForFeature(idx []int, f int, parentImpurity float64) splitResult {
	result := splitResult{gain: 0.0, feature: -1}
	minLeaf := b.t.MinSamplesLeaf
	n := float64(len(idx))

	valid := make([]pair, 0, len(idx))
	nanCounts := make([]int, b.nClasses)
	nNaN := 0
	validCounts := make([]int, b.nClasses)
	for _, ii := range idx {
		v := b.X[ii][f]
		if math.IsNaN(v) {
			nanCounts[b.ci[ii]]++
			nNaN++
			continue
		}
		valid = append(valid, pair{v, ii})
		validCounts[b.ci[ii]]++
	}
	if len(valid) == 0 {
		return result
	}

	left := make([]int, b.nClasses)
	right := make([]int, b.nClasses)
	try := func(eqCounts []int, nEq int, thr float64, isCat bool) {
		for _, nanLeft := range [2]bool{true, false} {
			nl, nr := nEq, len(valid)-nEq
			for c := range left {
				left[c] = eqCounts[c]
				right[c] = validCounts[c] - eqCounts[c]
				if nanLeft {
					left[c] += nanCounts[c]
				} else {
					right[c] += nanCounts[c]
				}
			}
			if nanLeft {
				nl += nNaN
			} else {
				nr += nNaN
			}
			if nl < minLeaf || nr < minLeaf || nl == 0 || nr == 0 {
				continue
			}
			weighted := float64(nl)/n*b.impurity(left) + float64(nr)/n*b.impurity(right)
			gain := parentImpurity - weighted
			if gain > result.gain {
				result = splitResult{gain: gain, feature: f, threshold: thr, isCat: isCat, nanLeft: nanLeft}
			}
			if nNaN == 0 {
				// both placements are identical
				return
			}
		}
	}

	sort.Slice(valid, func(a, c int) bool {
		if valid[a].v != valid[c].v {
			return valid[a].v < valid[c].v
		}
		return valid[a].i < valid[c].i
	})

	// ---- categorical equality splits on small integer-like value sets ----
	uniqueVals := uniqueSorted(valid)
	if len(uniqueVals) <= 30 && len(uniqueVals) > 2 && allIntLike(uniqueVals) {
		eq := make([]int, b.nClasses)
		s := 0
		for _, uv := range uniqueVals {
			for c := range eq {
				eq[c] = 0
			}
			nEq := 0
			for s < len(valid) && valid[s].v == uv {
				eq[b.ci[valid[s].i]]++
				nEq++
				s++
			}
			try(eq, nEq, uv, true)
		}
	}

	// ---- NUMERIC splits: sweep sorted values keeping running left counts ----
	running := make([]int, b.nClasses)
	for s := 1; s < len(valid); s++ {
		running[b.ci[valid[s-1].i]]++
		if valid[s].v == valid[s-1].v {
			continue
		}
		thr := (valid[s-1].v + valid[s].v) / 2.0
		try(running, s, thr, false)
	}
	return result
}

// ---------------------------
// Helpers used in buildNode
// ---------------------------

func almostInt(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	_, frac := math.Modf(math.Abs(v))
	return frac < 1e-9 || frac > 1-1e-9
}

func allIntLike(vals []float64) bool {
	for _, v := range vals {
		if !almostInt(v) {
			return false
		}
	}
	return true
}

// uniqueSorted returns the distinct values of an already sorted slice.
func uniqueSorted(pairs []pair) []float64 {
	out := make([]float64, 0, 8)
	for i, p := range pairs {
		if i == 0 || p.v != pairs[i-1].v {
			out = append(out, p.v)
		}
	}
	return out
}

// ---------------------------
// Prediction helper
// ---------------------------

func (t *DecisionTreeClassifier) predictProbaSingle(x []float64) []float64 {
	if t.root == nil {
		p := make([]float64, len(t.classes))
		for i := range p {
			p[i] = 1.0 / float64(len(p))
		}
		return p
	}
	node := t.root
	for !node.isLeaf {
		val := x[node.feature]
		if math.IsNaN(val) {
			// missing: choose branch with more samples (heuristic)
			if node.left.n >= node.right.n {
				node = node.left
			} else {
				node = node.right
			}
			continue
		}
		if node.isCat {
			if val == node.threshold {
				node = node.left
			} else {
				node = node.right
			}
		} else {
			if val <= node.threshold {
				node = node.left
			} else {
				node = node.right
			}
		}
	}
	return node.probas
}

// ---------------------------
// Utilities: impurity & misc
// ---------------------------

func giniFromCounts(counts []int) float64 {
	n := 0.0
	for _, c := range counts {
		n += float64(c)
	}
	if n == 0 {
		return 0
	}
	res := 0.0
	for _, c := range counts {
		p := float64(c) / n
		res += p * (1 - p)
	}
	return res
}

func entropyFromCounts(counts []int) float64 {
	n := 0.0
	for _, c := range counts {
		n += float64(c)
	}
	if n == 0 {
		return 0
	}
	res := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		res -= p * math.Log2(p)
	}
	return res
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func countsToProbas(counts []int) []float64 {
	n := 0
	for _, c := range counts {
		n += c
	}
	p := make([]float64, len(counts))
	if n == 0 {
		return p
	}
	for i := range counts {
		p[i] = float64(counts[i]) / float64(n)
	}
	return p
}

func argmax(counts []int) int {
	best := 0
	for i := 1; i < len(counts); i++ {
		if counts[i] > counts[best] {
			best = i
		}
	}
	return best
}

func argmaxFloat(arr []float64) int {
	best := 0
	for i := 1; i < len(arr); i++ {
		if arr[i] > arr[best] {
			best = i
		}
	}
	return best
}

// ---------------------------
// Reduced-error pruning implementation
// ---------------------------

// pruneNodeReducedError traverses post-order and collapses an internal node
// whose children are both leaves when that does not lower validation accuracy.
func (t *DecisionTreeClassifier) pruneNodeReducedError(node *dtNode, Xval [][]float64, yval []int, baseline *float64) int {
	if node == nil || node.isLeaf {
		return 0
	}
	pruned := 0
	pruned += t.pruneNodeReducedError(node.left, Xval, yval, baseline)
	pruned += t.pruneNodeReducedError(node.right, Xval, yval, baseline)

	if node.left != nil && node.right != nil && node.left.isLeaf && node.right.isLeaf {
		origLeft, origRight := node.left, node.right

		nLeft := node.left.n
		nRight := node.right.n
		combined := make([]float64, len(node.left.probas))
		for i := range combined {
			combined[i] = (node.left.probas[i]*float64(nLeft) + node.right.probas[i]*float64(nRight)) / float64(nLeft+nRight)
		}
		node.isLeaf = true
		node.left = nil
		node.right = nil
		node.probas = combined
		node.predIndex = argmaxFloat(combined)
		newAcc := Accuracy(yval, t.Predict(Xval))
		if newAcc >= *baseline {
			*baseline = newAcc
			return pruned + 1
		}
		// revert
		node.left = origLeft
		node.right = origRight
		node.isLeaf = false
		node.probas = nil
		node.predIndex = 0
	}
	return pruned
}
