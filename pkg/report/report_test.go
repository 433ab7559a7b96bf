package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"mochi/pkg/data"
	"mochi/pkg/model"
	"mochi/pkg/synth"
)

var pngMagic = []byte("\x89PNG")

func requirePNG(t *testing.T, path string) {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(b, pngMagic), "%s is not a PNG", path)
}

func TestActivityCounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts", "activities.png")
	counts := []data.ActivityCount{{Activity: "Sleeping", Count: 40}, {Activity: "Eating", Count: 25}, {Activity: "Barking", Count: 3}}
	require.NoError(t, ActivityCounts(counts, path))
	requirePNG(t, path)

	require.ErrorIs(t, ActivityCounts(nil, path), ErrNoData)
}

func TestHourHistogram(t *testing.T) {
	recs := []synth.Record{
		{Time: 7.5, Activity: "Eating"},
		{Time: 23.9, Activity: "Sleeping"},
		{Time: 0.2, Activity: "Sleeping"},
		{Time: 14, Activity: "Sleeping"},
	}
	dir := t.TempDir()
	all := filepath.Join(dir, "hours.png")
	require.NoError(t, HourHistogram(recs, "", all))
	requirePNG(t, all)

	one := filepath.Join(dir, "sleeping.png")
	require.NoError(t, HourHistogram(recs, "Sleeping", one))
	requirePNG(t, one)

	require.ErrorIs(t, HourHistogram(recs, "Zoomies", filepath.Join(dir, "z.png")), ErrNoData)
}

func TestSearchScores(t *testing.T) {
	results := []model.CVResult{
		{Params: model.Params{NEstimators: 50, MaxDepth: 5, MinSamplesSplit: 2, MaxFeatures: "sqrt"}, MeanScore: 0.71},
		{Params: model.Params{NEstimators: 100, MaxDepth: 0, MinSamplesSplit: 2, MaxFeatures: "sqrt"}, MeanScore: 0.83},
		{Params: model.Params{NEstimators: 200, MaxDepth: 8, MinSamplesSplit: 5, MaxFeatures: "log2"}, MeanScore: 0.79},
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "search.png")
	require.NoError(t, SearchScores(results, 2, path))
	requirePNG(t, path)

	svg := filepath.Join(dir, "search.svg")
	require.NoError(t, SearchScores(results[:1], 0, svg))
	b, err := os.ReadFile(svg)
	require.NoError(t, err)
	require.Contains(t, string(b), "<svg")

	require.ErrorIs(t, SearchScores(nil, 0, path), ErrNoData)
}
