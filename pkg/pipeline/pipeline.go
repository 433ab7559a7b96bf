// Package pipeline turns synthetic records into feature vectors and wraps
// the fitted encoders and forest into one persistable predictor.
package pipeline

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"mochi/pkg/dataprep"
	"mochi/pkg/loader"
	"mochi/pkg/logging"
	"mochi/pkg/model"
	"mochi/pkg/synth"
)

// ErrNotFitted is returned when predicting with an untrained pipeline.
var ErrNotFitted = errors.New("pipeline: not fitted")

// Pipeline chains feature encoding and the activity classifier.
type Pipeline struct {
	Encoder *dataprep.OneHotEncoder
	Labels  dataprep.LabelEncoder
	Forest  *model.RandomForest
}

// New returns an unfitted pipeline around forest.
func New(forest *model.RandomForest) *Pipeline {
	return &Pipeline{Forest: forest}
}

// Fit learns the encoders from records and trains the forest.
func (p *Pipeline) Fit(records []synth.Record) error {
	if len(records) == 0 {
		return errors.New("pipeline: no records")
	}
	if p.Forest == nil {
		p.Forest = model.NewRandomForest()
	}
	X, y, err := p.fitTransform(records)
	if err != nil {
		return err
	}
	return p.Forest.Fit(X, y)
}

// fitTransform fits the encoders and returns the design matrix and labels.
func (p *Pipeline) fitTransform(records []synth.Record) ([][]float64, []int, error) {
	cats := make([][]string, len(records))
	names := make([]string, len(records))
	for i, r := range records {
		cats[i] = categorical(r)
		names[i] = r.Activity
	}
	p.Encoder = dataprep.NewOneHotEncoder(categoricalColumns...)
	if err := p.Encoder.Fit(cats); err != nil {
		return nil, nil, fmt.Errorf("pipeline: %w", err)
	}
	p.Labels.Fit(names)
	y, err := p.Labels.Transform(names)
	if err != nil {
		return nil, nil, err
	}
	X, err := p.Matrix(records)
	if err != nil {
		return nil, nil, err
	}
	return X, y, nil
}

// Matrix encodes records with the fitted encoders.
func (p *Pipeline) Matrix(records []synth.Record) ([][]float64, error) {
	if p.Encoder == nil {
		return nil, ErrNotFitted
	}
	width := len(numericColumns) + p.Encoder.Width()
	X := make([][]float64, len(records))
	for i, r := range records {
		row := numeric(make([]float64, 0, width), r)
		X[i] = p.Encoder.Transform(row, categorical(r))
	}
	return X, nil
}

// Targets encodes the activity of each record with the fitted label encoder.
func (p *Pipeline) Targets(records []synth.Record) ([]int, error) {
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Activity
	}
	return p.Labels.Transform(names)
}

// Predict returns the predicted activity name for each record. The
// Activity field of the input is ignored.
func (p *Pipeline) Predict(records []synth.Record) ([]string, error) {
	if p.Forest == nil || len(p.Forest.Trees) == 0 {
		return nil, ErrNotFitted
	}
	X, err := p.Matrix(records)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(records))
	for i, lab := range p.Forest.Predict(X) {
		if out[i], err = p.Labels.Inverse(lab); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// PredictQuery predicts the activity for a single partial observation.
func (p *Pipeline) PredictQuery(q Query) (string, error) {
	out, err := p.Predict([]synth.Record{q.Record()})
	if err != nil {
		return "", err
	}
	return out[0], nil
}

// Classes returns the activity names the pipeline can predict.
func (p *Pipeline) Classes() []string { return append([]string(nil), p.Labels.Classes...) }

// ---------------------------
// Training workflow
// ---------------------------

// TrainOptions controls Train.
type TrainOptions struct {
	TestRatio   float64
	Seed        int64
	Search      bool            // run a grid search instead of fitting Forest directly
	Grid        model.ParamGrid // used when Search is set
	Folds       int
	Jobs        int
	ClassWeight string
	Forest      model.Params // used when Search is unset
	// PruneRatio holds back this share of the training rows, fits on the
	// rest, then prunes every tree against the held-back rows. 0 disables.
	PruneRatio float64
	Logger     *slog.Logger
}

// TrainResult summarises a Train run.
type TrainResult struct {
	TrainRows      int                 `json:"train_rows"`
	TestRows       int                 `json:"test_rows"`
	ValidationRows int                 `json:"validation_rows,omitempty"`
	PrunedNodes    int                 `json:"pruned_nodes"`
	Features       []string            `json:"features"`
	Params         model.Params        `json:"params"`
	Search         *model.SearchResult `json:"search,omitempty"`
	Report         model.Report        `json:"report"`
	Confusion      *model.Confusion    `json:"confusion"`
	LogLoss        float64             `json:"log_loss"`
}

// Train splits records, fits the encoders on the training part, fits or
// searches the forest, and scores the held-out part.
func Train(ctx context.Context, records []synth.Record, opts TrainOptions) (*Pipeline, *TrainResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if len(records) == 0 {
		return nil, nil, errors.New("pipeline: no records")
	}

	p := &Pipeline{}
	trIdx, teIdx, err := loader.SplitIndices(len(records), opts.TestRatio, opts.Seed)
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: %w", err)
	}
	train := pick(records, trIdx)
	test := pick(records, teIdx)

	Xtr, ytr, err := p.fitTransform(train)
	if err != nil {
		return nil, nil, err
	}
	res := &TrainResult{TrainRows: len(train), TestRows: len(test), Features: p.Schema().FeatureNames}
	logger.Info("training", "train_rows", len(train), "test_rows", len(test),
		"features", len(res.Features), "classes", len(p.Labels.Classes))

	var Xval [][]float64
	var yval []int
	if opts.PruneRatio > 0 {
		Xtr, Xval, ytr, yval, err = loader.TrainTestSplit(Xtr, ytr, opts.PruneRatio, opts.Seed+1)
		if err != nil {
			return nil, nil, fmt.Errorf("pipeline: prune split: %w", err)
		}
		res.ValidationRows = len(yval)
	}

	if opts.Search {
		gs := &model.GridSearch{
			Grid:        opts.Grid,
			Folds:       opts.Folds,
			Jobs:        opts.Jobs,
			ClassWeight: opts.ClassWeight,
			RandomState: opts.Seed,
			Logger:      logger,
		}
		sr, err := gs.Fit(ctx, Xtr, ytr)
		if err != nil {
			return nil, nil, err
		}
		p.Forest = sr.Model
		res.Params = sr.Best
		res.Search = sr
	} else {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		fp := opts.Forest
		p.Forest = model.NewRandomForest(
			model.WithNEstimators(fp.NEstimators),
			model.WithForestMaxDepth(fp.MaxDepth),
			model.WithForestMinSamplesSplit(fp.MinSamplesSplit),
			model.WithMaxFeaturesMode(fp.MaxFeatures),
			model.WithClassWeight(opts.ClassWeight),
			model.WithNJobs(opts.Jobs),
			model.WithForestRandomState(opts.Seed),
		)
		if err := p.Forest.Fit(Xtr, ytr); err != nil {
			return nil, nil, err
		}
		res.Params = fp
	}

	if opts.PruneRatio > 0 {
		n, err := p.Forest.PruneReducedError(Xval, yval)
		if err != nil {
			return nil, nil, err
		}
		res.PrunedNodes = n
		logger.Info("pruned forest", "validation_rows", len(yval), "pruned_nodes", n)
	}

	// activities absent from the training split cannot be scored
	scored := test[:0:0]
	for _, r := range test {
		if _, err := p.Labels.Transform([]string{r.Activity}); err == nil {
			scored = append(scored, r)
		}
	}
	Xte, err := p.Matrix(scored)
	if err != nil {
		return nil, nil, err
	}
	yte, err := p.Targets(scored)
	if err != nil {
		return nil, nil, err
	}
	ypred := p.Forest.Predict(Xte)
	res.Report = model.ClassificationReport(yte, ypred, p.Labels.Name)
	res.Confusion = model.ConfusionMatrix(yte, ypred)
	res.LogLoss = model.LogLoss(yte, p.Forest.PredictProba(Xte), p.Forest.Classes)
	logger.Info("evaluation", "accuracy", res.Report.Accuracy, "weighted_f1", res.Report.WeightedF1, "log_loss", res.LogLoss)
	return p, res, nil
}

func pick(records []synth.Record, idx []int) []synth.Record {
	out := make([]synth.Record, len(idx))
	for i, j := range idx {
		out[i] = records[j]
	}
	return out
}

// ---------------------------
// Persistence
// ---------------------------

type pipelineState struct {
	Encoder *dataprep.OneHotEncoder
	Labels  dataprep.LabelEncoder
	Forest  []byte
}

// MarshalBinary implements encoding.BinaryMarshaler using gob.
func (p *Pipeline) MarshalBinary() ([]byte, error) {
	if p.Forest == nil || p.Encoder == nil {
		return nil, ErrNotFitted
	}
	forest, err := p.Forest.MarshalBinary()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(pipelineState{Encoder: p.Encoder, Labels: p.Labels, Forest: forest}); err != nil {
		return nil, fmt.Errorf("pipeline: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using gob.
func (p *Pipeline) UnmarshalBinary(data []byte) error {
	var st pipelineState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return fmt.Errorf("pipeline: decode: %w", err)
	}
	forest := &model.RandomForest{}
	if err := forest.UnmarshalBinary(st.Forest); err != nil {
		return err
	}
	p.Encoder, p.Labels, p.Forest = st.Encoder, st.Labels, forest
	return nil
}

// Save writes the fitted pipeline to path.
func (p *Pipeline) Save(path string) error {
	data, err := p.MarshalBinary()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads a pipeline written by Save.
func Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	p := &Pipeline{}
	if err := p.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return p, nil
}
