package dataprep

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOneHotEncoder(t *testing.T) {
	enc := NewOneHotEncoder("Location", "Weather")
	require.NoError(t, enc.Fit([][]string{
		{"Kitchen", "Sunny"},
		{"Front yard", "Rainy"},
		{"Kitchen", "Cloudy"},
	}))
	require.Equal(t, 5, enc.Width())
	require.Equal(t, []string{
		"Location_Kitchen", "Location_Front yard",
		"Weather_Sunny", "Weather_Rainy", "Weather_Cloudy",
	}, enc.FeatureNames())

	got := enc.Transform([]float64{9}, []string{"Front yard", "Cloudy"})
	require.Equal(t, []float64{9, 0, 1, 0, 0, 1}, got)

	// unseen categories encode as zeros for their column
	got = enc.Transform(nil, []string{"Garage", "Sunny"})
	require.Equal(t, []float64{0, 0, 1, 0, 0}, got)
}

func TestOneHotEncoderRejectsRaggedRows(t *testing.T) {
	enc := NewOneHotEncoder("a", "b")
	require.Error(t, enc.Fit(nil))
	require.Error(t, enc.Fit([][]string{{"x", "y"}, {"x"}}))
}

func TestLabelEncoder(t *testing.T) {
	var l LabelEncoder
	l.Fit([]string{"Walking", "Eating", "Sleeping", "Eating"})
	require.Equal(t, []string{"Eating", "Sleeping", "Walking"}, l.Classes)

	ys, err := l.Transform([]string{"Sleeping", "Eating"})
	require.NoError(t, err)
	require.Equal(t, []int{1, 0}, ys)

	_, err = l.Transform([]string{"Flying"})
	require.Error(t, err)

	name, err := l.Inverse(2)
	require.NoError(t, err)
	require.Equal(t, "Walking", name)
	_, err = l.Inverse(3)
	require.Error(t, err)
}

func TestCyclicalHour(t *testing.T) {
	s, c := CyclicalHour(6)
	assert.InDelta(t, 1.0, s, 1e-12)
	assert.InDelta(t, 0.0, c, 1e-12)

	s0, c0 := CyclicalHour(0)
	s24, c24 := CyclicalHour(23.99)
	assert.Less(t, math.Hypot(s0-s24, c0-c24), 0.01)
}

func TestIsWeekendAndImpute(t *testing.T) {
	require.Equal(t, 1.0, IsWeekend("Sunday"))
	require.Equal(t, 0.0, IsWeekend("Friday"))

	col := ImputeConstant([]string{"Bored", "", "NA"}, MissingCategory)
	require.Equal(t, []string{"Bored", "None", "None"}, col)
	require.Equal(t, "Treat", ImputeValue("Treat", MissingCategory))
}
