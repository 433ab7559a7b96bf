package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"mochi/pkg/model"
	"mochi/pkg/synth"
)

func records() []synth.Record {
	var out []synth.Record
	for i := range 60 {
		out = append(out,
			synth.Record{Day: "Monday", Time: 8 + float64(i%10)/10, DurationMinutes: 10, Location: "Kitchen",
				Weather: "Sunny", PeopleHome: 2, Mood: "Hungry", Trigger: "Food bowl filled", Activity: "Eating"},
			synth.Record{Day: "Sunday", Time: 23 + float64(i%9)/10, DurationMinutes: 300, Location: "Living room",
				Weather: "Cloudy", PeopleHome: 4, Mood: "Sleepy", Activity: "Sleeping"},
			synth.Record{Day: "Saturday", Time: 15 + float64(i%10)/10, DurationMinutes: 40, Location: "Front yard",
				Weather: "Sunny", PeopleHome: 1, Mood: "Happy", Trigger: "Leash shown", RewardGiven: 1, Activity: "Walking"},
		)
	}
	return out
}

func TestFitPredictAndSchema(t *testing.T) {
	p := New(model.NewRandomForest(model.WithNEstimators(10), model.WithForestRandomState(1)))
	recs := records()
	require.NoError(t, p.Fit(recs))
	require.Equal(t, []string{"Eating", "Sleeping", "Walking"}, p.Classes())

	pred, err := p.Predict(recs[:3])
	require.NoError(t, err)
	require.Equal(t, []string{"Eating", "Sleeping", "Walking"}, pred)

	s := p.Schema()
	require.Equal(t, []string{"hour_sin", "hour_cos", "Duration_minutes", "People_home", "is_weekend"}, s.FeatureNames[:5])
	require.Contains(t, s.FeatureNames, "Trigger_None")
	require.Contains(t, s.FeatureNames, "Reward_given_1")
	require.Len(t, s.Types, len(s.FeatureNames))

	X, err := p.Matrix(recs[:1])
	require.NoError(t, err)
	require.Len(t, X[0], len(s.FeatureNames))
}

func TestPredictQueryUnknownCategories(t *testing.T) {
	p := New(model.NewRandomForest(model.WithNEstimators(10), model.WithForestRandomState(1)))
	require.NoError(t, p.Fit(records()))
	q := NewQuery(8.3, "Monday")
	q.Location = "Garage"
	act, err := p.PredictQuery(q)
	require.NoError(t, err)
	require.Contains(t, p.Classes(), act)
}

func TestUnfittedPipeline(t *testing.T) {
	_, err := (&Pipeline{}).PredictQuery(NewQuery(8, "Monday"))
	require.ErrorIs(t, err, ErrNotFitted)
	require.ErrorIs(t, (&Pipeline{}).Save(filepath.Join(t.TempDir(), "m.gob")), ErrNotFitted)
	require.Error(t, (&Pipeline{}).Fit(nil))
}

func TestSaveLoad(t *testing.T) {
	p := New(model.NewRandomForest(model.WithNEstimators(5), model.WithForestRandomState(2)))
	require.NoError(t, p.Fit(records()))
	path := filepath.Join(t.TempDir(), "mochi.gob")
	require.NoError(t, p.Save(path))

	back, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, p.Classes(), back.Classes())
	q := NewQuery(15.5, "Saturday")
	want, err := p.PredictQuery(q)
	require.NoError(t, err)
	got, err := back.PredictQuery(q)
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = Load(filepath.Join(t.TempDir(), "missing.gob"))
	require.Error(t, err)
}

func TestTrainWithAndWithoutSearch(t *testing.T) {
	recs := records()
	p, res, err := Train(context.Background(), recs, TrainOptions{
		TestRatio: 0.3,
		Seed:      42,
		Forest:    model.Params{NEstimators: 10, MinSamplesSplit: 2, MaxFeatures: model.MaxFeaturesSqrt},
	})
	require.NoError(t, err)
	require.Equal(t, 126, res.TrainRows)
	require.Equal(t, 54, res.TestRows)
	require.Greater(t, res.Report.Accuracy, 0.9)
	require.NotNil(t, res.Confusion)
	require.Len(t, res.Confusion.Counts, len(res.Confusion.Labels)*len(res.Confusion.Labels))
	require.Greater(t, res.LogLoss, 0.0)
	require.NotNil(t, p.Forest)
	require.Nil(t, res.Search)

	_, res, err = Train(context.Background(), recs, TrainOptions{
		TestRatio:   0.3,
		Seed:        42,
		Search:      true,
		Folds:       3,
		ClassWeight: model.ClassWeightBalanced,
		Grid: model.ParamGrid{
			NEstimators: []int{5}, MaxDepth: []int{3}, MinSamplesSplit: []int{2, 5},
			MaxFeatures: []string{model.MaxFeaturesSqrt},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Search)
	require.Len(t, res.Search.Results, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = Train(ctx, recs, TrainOptions{TestRatio: 0.3, Forest: model.Params{NEstimators: 1}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestTrainPrunesAgainstHeldBackRows(t *testing.T) {
	p, res, err := Train(context.Background(), records(), TrainOptions{
		TestRatio:  0.3,
		Seed:       7,
		PruneRatio: 0.25,
		Forest:     model.Params{NEstimators: 8, MinSamplesSplit: 2},
	})
	require.NoError(t, err)
	require.Equal(t, 126, res.TrainRows)
	require.Equal(t, 31, res.ValidationRows)
	require.GreaterOrEqual(t, res.PrunedNodes, 0)
	require.Equal(t, p.Schema().FeatureNames, res.Features)
	require.Greater(t, res.Report.Accuracy, 0.9)

	_, _, err = Train(context.Background(), records()[:6], TrainOptions{
		TestRatio: 0.5, PruneRatio: 0.1, Forest: model.Params{NEstimators: 2},
	})
	require.Error(t, err)
}

func TestParseDayAndClock(t *testing.T) {
	for in, want := range map[string]string{"mon": "Monday", "SUN": "Sunday", "Thursday": "Thursday", " wed ": "Wednesday"} {
		got, err := ParseDay(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ParseDay("mo")
	require.Error(t, err)

	h, err := ParseClock("08:30")
	require.NoError(t, err)
	require.InDelta(t, 8.5, h, 1e-9)
	for _, bad := range []string{"8", "24:00", "12:60", "aa:10"} {
		_, err := ParseClock(bad)
		require.Error(t, err, bad)
	}

	h, err = ParseHours("23.9")
	require.NoError(t, err)
	require.InDelta(t, 23.9, h, 1e-9)
	_, err = ParseHours("24")
	require.Error(t, err)
	_, err = ParseHours("x")
	require.Error(t, err)
}
