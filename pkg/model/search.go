package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"mochi/pkg/loader"
	"mochi/pkg/logging"
	"mochi/pkg/stats"
)

// Params is one random-forest hyperparameter combination.
type Params struct {
	NEstimators     int    `json:"n_estimators"`
	MaxDepth        int    `json:"max_depth"` // 0 => unlimited
	MinSamplesSplit int    `json:"min_samples_split"`
	MaxFeatures     string `json:"max_features"`
}

func (p Params) String() string {
	depth := "None"
	if p.MaxDepth > 0 {
		depth = fmt.Sprint(p.MaxDepth)
	}
	return fmt.Sprintf("n_estimators=%d max_depth=%s min_samples_split=%d max_features=%s",
		p.NEstimators, depth, p.MinSamplesSplit, p.MaxFeatures)
}

// ParamGrid lists candidate values per hyperparameter.
type ParamGrid struct {
	NEstimators     []int    `json:"n_estimators" yaml:"n_estimators"`
	MaxDepth        []int    `json:"max_depth" yaml:"max_depth"`
	MinSamplesSplit []int    `json:"min_samples_split" yaml:"min_samples_split"`
	MaxFeatures     []string `json:"max_features" yaml:"max_features"`
}

// DefaultParamGrid is the 3x4x3x2 grid used for the activity classifier.
func DefaultParamGrid() ParamGrid {
	return ParamGrid{
		NEstimators:     []int{100, 150, 200},
		MaxDepth:        []int{5, 8, 10, 0},
		MinSamplesSplit: []int{2, 5, 10},
		MaxFeatures:     []string{MaxFeaturesSqrt, MaxFeaturesLog2},
	}
}

// Combinations expands the grid in a fixed nesting order.
func (g ParamGrid) Combinations() []Params {
	var out []Params
	for _, ne := range g.NEstimators {
		for _, md := range g.MaxDepth {
			for _, ms := range g.MinSamplesSplit {
				for _, mf := range g.MaxFeatures {
					out = append(out, Params{NEstimators: ne, MaxDepth: md, MinSamplesSplit: ms, MaxFeatures: mf})
				}
			}
		}
	}
	return out
}

// CVResult is the cross-validated score of one combination.
type CVResult struct {
	Params     Params    `json:"params"`
	MeanScore  float64   `json:"mean_score"`
	StdScore   float64   `json:"std_score"`
	FoldScores []float64 `json:"fold_scores"`
}

// SearchResult carries every combination's score and the refit best model.
type SearchResult struct {
	Best      Params        `json:"best"`
	BestScore float64       `json:"best_score"`
	Results   []CVResult    `json:"results"`
	Model     *RandomForest `json:"-"`
}

// GridSearch scores every grid combination with stratified k-fold
// cross-validation on weighted F1, then refits the winner on all rows.
type GridSearch struct {
	Grid        ParamGrid
	Folds       int
	Jobs        int // concurrent combinations, 0 => GOMAXPROCS
	ClassWeight string
	RandomState int64
	Logger      *slog.Logger
}

// Fit runs the search. It stops early with ctx.Err() when ctx is cancelled.
func (gs *GridSearch) Fit(ctx context.Context, X [][]float64, y []int) (*SearchResult, error) {
	combos := gs.Grid.Combinations()
	if len(combos) == 0 {
		return nil, errors.New("gridsearch: empty parameter grid")
	}
	folds, err := loader.StratifiedKFoldSplit(y, gs.Folds, gs.RandomState)
	if err != nil {
		return nil, fmt.Errorf("gridsearch: %w", err)
	}
	logger := gs.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	jobs := gs.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	jobs = min(jobs, len(combos))

	results := make([]CVResult, len(combos))
	work := make(chan int)
	errCh := make(chan error, jobs)
	var wg sync.WaitGroup

	for w := 0; w < jobs; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ci := range work {
				res, err := gs.crossValidate(ctx, combos[ci], X, y, folds)
				if err != nil {
					errCh <- err
					return
				}
				results[ci] = res
				logger.Debug("grid combination scored",
					"params", res.Params.String(), "mean_f1", res.MeanScore, "std_f1", res.StdScore)
			}
		}()
	}

feed:
	for ci := range combos {
		select {
		case work <- ci:
		case <-ctx.Done():
			break feed
		case err := <-errCh:
			// put it back for the collector below
			errCh <- err
			break feed
		}
	}
	close(work)
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// earliest combination wins ties
	best := 0
	for i := range results {
		if results[i].MeanScore > results[best].MeanScore {
			best = i
		}
	}

	rf := gs.forest(combos[best], 0)
	if err := rf.Fit(X, y); err != nil {
		return nil, fmt.Errorf("gridsearch: refit: %w", err)
	}
	logger.Info("grid search finished",
		"combinations", len(combos), "folds", gs.Folds, "best", combos[best].String(), "best_f1", results[best].MeanScore)

	return &SearchResult{
		Best:      combos[best],
		BestScore: results[best].MeanScore,
		Results:   results,
		Model:     rf,
	}, nil
}

func (gs *GridSearch) forest(p Params, njobs int) *RandomForest {
	return NewRandomForest(
		WithNEstimators(p.NEstimators),
		WithForestMaxDepth(p.MaxDepth),
		WithForestMinSamplesSplit(p.MinSamplesSplit),
		WithMaxFeaturesMode(p.MaxFeatures),
		WithClassWeight(gs.ClassWeight),
		WithNJobs(njobs),
		WithForestRandomState(gs.RandomState),
	)
}

func (gs *GridSearch) crossValidate(ctx context.Context, p Params, X [][]float64, y []int, folds []loader.Fold) (CVResult, error) {
	scores := make([]float64, 0, len(folds))
	for _, f := range folds {
		if err := ctx.Err(); err != nil {
			return CVResult{}, err
		}
		xtr, ytr := loader.Subset(X, y, f.Train)
		xte, yte := loader.Subset(X, y, f.Test)
		// combinations already run in parallel
		rf := gs.forest(p, 1)
		if err := rf.Fit(xtr, ytr); err != nil {
			return CVResult{}, fmt.Errorf("gridsearch: %s: %w", p, err)
		}
		scores = append(scores, WeightedF1(yte, rf.Predict(xte)))
	}
	return CVResult{
		Params:     p,
		MeanScore:  stats.Mean(scores),
		StdScore:   stats.Std(scores),
		FoldScores: scores,
	}, nil
}
