package stats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	s := Describe([]float64{4, 1, 3, 2, 5})
	require.Equal(t, 5, s.Count)
	require.InDelta(t, 3.0, s.Mean, 1e-12)
	require.InDelta(t, 1.4142135, s.Std, 1e-6)
	require.Equal(t, 1.0, s.Min)
	require.Equal(t, 3.0, s.Median)
	require.InDelta(t, 4.6, s.P90, 1e-12)
	require.Equal(t, 5.0, s.Max)

	require.Equal(t, Summary{}, Describe(nil))
}

func TestMedianEvenAndPercentileBounds(t *testing.T) {
	x := []float64{10, 2, 8, 4}
	require.Equal(t, 6.0, Median(x))
	require.Equal(t, []float64{10, 2, 8, 4}, x, "input must not be reordered")
	require.Equal(t, 2.0, Percentile(x, 0))
	require.Equal(t, 10.0, Percentile(x, 100))
}

func TestVarianceOfConstantIsZero(t *testing.T) {
	require.Equal(t, 0.0, Variance([]float64{0.1, 0.1, 0.1}))
	require.Equal(t, 0.0, Std(nil))
}
