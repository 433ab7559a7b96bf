package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"mochi/pkg/synth"
)

// DefaultDuration is the duration assumed when a query does not give one.
const DefaultDuration = 5

// Query is a partial observation to classify. Categorical fields left empty
// encode as unknown.
type Query struct {
	Time       float64 `json:"time"`
	Day        string  `json:"day"`
	Duration   int     `json:"duration_minutes"`
	PeopleHome int     `json:"people_home"`
	Location   string  `json:"location"`
	Weather    string  `json:"weather"`
	Mood       string  `json:"mood"`
	Trigger    string  `json:"trigger"`
	Reward     int     `json:"reward_given"`
}

// NewQuery returns a query for time and day with the serving defaults.
func NewQuery(time float64, day string) Query {
	return Query{Time: time, Day: day, Duration: DefaultDuration}
}

// Record converts q to a record with an empty activity.
func (q Query) Record() synth.Record {
	return synth.Record{
		Day:             q.Day,
		Time:            q.Time,
		DurationMinutes: q.Duration,
		Location:        q.Location,
		Weather:         q.Weather,
		PeopleHome:      q.PeopleHome,
		Mood:            q.Mood,
		Trigger:         q.Trigger,
		RewardGiven:     q.Reward,
	}
}

// ParseDay accepts a weekday as a full name or three-letter code in any case
// ("mon", "Monday") and returns the full name.
func ParseDay(s string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, d := range synth.Weekdays {
		full := strings.ToLower(d)
		if v == full || (len(v) == 3 && strings.HasPrefix(full, v)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown day %q", s)
}

// ParseClock parses "HH:MM" into fractional hours in [0,24).
func ParseClock(s string) (float64, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("time %q is not HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("time %q has a bad hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q has a bad minute", s)
	}
	return float64(h) + float64(m)/60, nil
}

// ParseHours parses a decimal hour such as "8.5" into [0,24).
func ParseHours(s string) (float64, error) {
	t, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("time %q is not a number", s)
	}
	if t < 0 || t >= 24 {
		return 0, fmt.Errorf("time %v outside [0,24)", t)
	}
	return t, nil
}
