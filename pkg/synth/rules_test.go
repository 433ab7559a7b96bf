package synth_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"mochi/pkg/synth"
)

const jsonRules = `[
  {"activity": "Eating", "probability": 1, "time_range": [7, 9], "location": ["Kitchen"],
   "people_home_min": 1, "people_home_max": 2},
  {"activity": "Shower", "probability": 0.5, "day": [6, 7], "time_range": [10, 18],
   "location": ["Bathroom"], "weather": ["Sunny"], "reward_given": 0},
  {"activity": "Haircut", "probability": 0.1, "day": 6, "time_range": [11, 15], "location": ["Bathroom"]}
]`

const yamlRules = `
- activity: Eating
  probability: 1
  time_range: [7, 9]
  location: [Kitchen]
  people_home_min: 1
  people_home_max: 2
- activity: Shower
  probability: 0.5
  day: [6, 7]
  time_range: [10, 18]
  location: [Bathroom]
  weather: [Sunny]
  reward_given: 0
- activity: Haircut
  probability: 0.1
  day: 6
  time_range: [11, 15]
  location: [Bathroom]
`

func TestParseRulesJSONAndYAMLAgree(t *testing.T) {
	fromJSON, err := synth.ParseRules([]byte(jsonRules), ".json")
	require.NoError(t, err)
	fromYAML, err := synth.ParseRules([]byte(yamlRules), ".yaml")
	require.NoError(t, err)
	require.Equal(t, fromJSON, fromYAML)

	require.Len(t, fromJSON, 3)
	require.False(t, fromJSON[0].Day.Pinned())
	require.Equal(t, []int{6, 7}, fromJSON[1].Day.Days)
	require.Equal(t, []int{6}, fromJSON[2].Day.Days)
	lo, hi := fromJSON[0].PeopleBounds()
	require.Equal(t, 1, lo)
	require.Equal(t, 2, hi)
	lo, hi = fromJSON[2].PeopleBounds()
	require.Equal(t, synth.MinPeopleHome, lo)
	require.Equal(t, synth.MaxPeopleHome, hi)
	require.NotNil(t, fromJSON[1].RewardGiven)
	require.Nil(t, fromJSON[0].Weather)
}

func TestParseRulesUnknownExtensionFallsBack(t *testing.T) {
	rules, err := synth.ParseRules([]byte(jsonRules), ".rules")
	require.NoError(t, err)
	require.Len(t, rules, 3)

	_, err = synth.ParseRules([]byte("{not: [valid"), ".rules")
	require.Error(t, err)
}

func TestLoadRulesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Mochi.json")
	require.NoError(t, os.WriteFile(path, []byte(jsonRules), 0o644))

	rules, err := synth.LoadRules(path)
	require.NoError(t, err)
	require.NoError(t, synth.Validate(rules))

	_, err = synth.LoadRules(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestDaySpecRoundTrip(t *testing.T) {
	single := synth.DaySpec{Days: []int{3}}
	data, err := json.Marshal(single)
	require.NoError(t, err)
	require.Equal(t, "3", string(data))

	out, err := yaml.Marshal(synth.DaySpec{Days: []int{1, 2}})
	require.NoError(t, err)
	var back synth.DaySpec
	require.NoError(t, yaml.Unmarshal(out, &back))
	require.Equal(t, []int{1, 2}, back.Days)

	var bad synth.DaySpec
	require.Error(t, json.Unmarshal([]byte(`"monday"`), &bad))
}

func TestValidateReportsEveryProblem(t *testing.T) {
	rules := []synth.ActivityRule{
		{Activity: "", Probability: 1, TimeRange: []float64{1, 2}, Location: []string{"Kitchen"}},
		{Activity: "Eating", Probability: -1, TimeRange: []float64{9, 7}, Location: nil},
		{Activity: "Walking", Probability: 1, Day: synth.DaySpec{Days: []int{8}}, TimeRange: []float64{7, 19},
			Location: []string{"Moon"}, Weather: []string{"Hail"}, PeopleHomeMin: intp(4), PeopleHomeMax: intp(3)},
		{Activity: "Trick", Probability: 1, TimeRange: []float64{17, 21}, Location: []string{"Kitchen"}, RewardGiven: intp(2)},
	}
	err := synth.Validate(rules)
	require.Error(t, err)
	require.ErrorIs(t, err, synth.ErrConfiguration)

	fields := map[string]int{}
	var joined interface{ Unwrap() []error }
	require.True(t, errors.As(err, &joined))
	for _, e := range joined.Unwrap() {
		var ce *synth.ConfigError
		require.True(t, errors.As(e, &ce))
		fields[ce.Field]++
	}
	require.Equal(t, 1, fields["activity"])
	require.Equal(t, 1, fields["probability"])
	require.Equal(t, 1, fields["time_range"])
	require.Equal(t, 2, fields["location"])
	require.Equal(t, 1, fields["weather"])
	require.Equal(t, 1, fields["day"])
	require.Equal(t, 1, fields["people_home"])
	require.Equal(t, 1, fields["reward_given"])
}

func TestValidateSleepingNeedsNoTimeRange(t *testing.T) {
	rules := []synth.ActivityRule{{Activity: synth.ActivitySleeping, Probability: 1, Location: []string{"Living room"}}}
	require.NoError(t, synth.Validate(rules))
	rec, err := synth.NewGenerator(synth.WithSeed(2)).Generate(rules)
	require.NoError(t, err)
	require.Equal(t, synth.ActivitySleeping, rec.Activity)
}

func TestValidateEmptyTable(t *testing.T) {
	err := synth.Validate(nil)
	var ce *synth.ConfigError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, -1, ce.Index)
	require.Contains(t, err.Error(), "empty")
}
