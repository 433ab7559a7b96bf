// Package synth produces synthetic, labeled observations of a pet's day
// from a table of weighted activity rules.
package synth

import (
	"math"
	"math/rand"
	"time"
)

// Record is one fully resolved observation. An empty Trigger means the
// activity has no trigger.
type Record struct {
	Day             string  `json:"day"`
	Time            float64 `json:"time"`
	DurationMinutes int     `json:"duration_minutes"`
	Location        string  `json:"location"`
	Weather         string  `json:"weather"`
	PeopleHome      int     `json:"people_home"`
	Mood            string  `json:"mood"`
	Trigger         string  `json:"trigger,omitempty"`
	RewardGiven     int     `json:"reward_given"`
	Activity        string  `json:"activity"`
}

// Generator draws records. It is not safe for concurrent use; give each
// goroutine its own Generator (see GenerateParallel).
type Generator struct {
	RandomState int64

	rng *rand.Rand
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed fixes the random stream so runs are reproducible.
func WithSeed(seed int64) Option { return func(g *Generator) { g.RandomState = seed } }

// NewGenerator returns a generator seeded from the clock unless WithSeed is given.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{RandomState: time.Now().UnixNano()}
	for _, o := range opts {
		o(g)
	}
	g.rng = rand.New(rand.NewSource(g.RandomState))
	return g
}

// Generate draws one record from rules. rules is only read. Every rule's
// names are checked, including rules that cannot be drawn.
func (g *Generator) Generate(rules []ActivityRule) (Record, error) {
	if err := checkTable(rules); err != nil {
		return Record{}, err
	}
	return g.generate(rules)
}

func (g *Generator) generate(rules []ActivityRule) (Record, error) {
	idx, err := g.pickRule(rules)
	if err != nil {
		return Record{}, err
	}
	rule := &rules[idx]

	dayIdx, err := g.resolveDay(idx, rule)
	if err != nil {
		return Record{}, err
	}

	t, err := g.resolveTime(idx, rule)
	if err != nil {
		return Record{}, err
	}

	people, err := g.resolveOccupancy(idx, rule, t, dayIdx)
	if err != nil {
		return Record{}, err
	}

	location, err := g.resolveLocation(idx, rule)
	if err != nil {
		return Record{}, err
	}

	weather, err := g.resolveWeather(idx, rule)
	if err != nil {
		return Record{}, err
	}

	policy, ok := moodTable[rule.Activity]
	if !ok {
		return Record{}, ruleError(idx, rule, "activity", "no mood policy for this activity")
	}
	mood := policy.resolve(g.rng, moodContext{time: t, peopleHome: people})

	var trigger string
	if opts, ok := triggerTable[rule.Activity]; ok {
		trigger = opts[g.rng.Intn(len(opts))]
	}

	reward := 0
	switch {
	case rewardedActivities[rule.Activity]:
		reward = 1
	case rule.RewardGiven != nil:
		reward = *rule.RewardGiven
	}

	d := DurationFor(rule.Activity)
	duration := d.Min + g.rng.Intn(d.Max-d.Min+1)

	return Record{
		Day:             Weekdays[dayIdx-1],
		Time:            t,
		DurationMinutes: duration,
		Location:        location,
		Weather:         weather,
		PeopleHome:      people,
		Mood:            mood,
		Trigger:         trigger,
		RewardGiven:     reward,
		Activity:        rule.Activity,
	}, nil
}

// GenerateN draws n records from a single stream.
func (g *Generator) GenerateN(rules []ActivityRule, n int) ([]Record, error) {
	if err := checkTable(rules); err != nil {
		return nil, err
	}
	out := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		rec, err := g.generate(rules)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// checkTable rejects an empty table and any rule naming an activity,
// location or weather the lookup tables do not know.
func checkTable(rules []ActivityRule) error {
	if len(rules) == 0 {
		return tableError("rules", "rule table is empty")
	}
	for i := range rules {
		r := &rules[i]
		if !KnownActivity(r.Activity) {
			return ruleError(i, r, "activity", "no mood policy for this activity")
		}
		if len(r.Location) == 0 {
			return ruleError(i, r, "location", "location list is empty")
		}
		for _, loc := range r.Location {
			if _, ok := LocationWeights[loc]; !ok {
				return ruleError(i, r, "location", "unknown location %q", loc)
			}
		}
		if r.Weather != nil && len(r.Weather) == 0 {
			return ruleError(i, r, "weather", "weather list is empty")
		}
		for _, w := range r.Weather {
			if _, ok := WeatherWeights[w]; !ok {
				return ruleError(i, r, "weather", "unknown weather %q", w)
			}
		}
	}
	return nil
}

func (g *Generator) pickRule(rules []ActivityRule) (int, error) {
	weights := make([]float64, len(rules))
	total := 0.0
	for i := range rules {
		p := rules[i].Probability
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return 0, ruleError(i, &rules[i], "probability", "weight must be a finite non-negative number, got %v", p)
		}
		weights[i] = p
		total += p
	}
	if total <= 0 {
		return 0, tableError("probability", "all rule weights are zero")
	}
	return weightedIndex(g.rng, weights, total), nil
}

func (g *Generator) resolveDay(idx int, rule *ActivityRule) (int, error) {
	var day int
	switch len(rule.Day.Days) {
	case 0:
		day = 1 + g.rng.Intn(7)
	case 1:
		day = rule.Day.Days[0]
	default:
		day = rule.Day.Days[g.rng.Intn(len(rule.Day.Days))]
	}
	if day < 1 || day > 7 {
		return 0, ruleError(idx, rule, "day", "day index %d outside 1..7", day)
	}
	return day, nil
}

func (g *Generator) resolveTime(idx int, rule *ActivityRule) (float64, error) {
	if rule.Activity == ActivitySleeping {
		if g.rng.Float64() < nightSleepShare {
			t := nightSleepStart + g.rng.Float64()*nightSleepSpan
			return wrapDay(tenth(t, nightSleepStart, nightSleepStart+nightSleepSpan)), nil
		}
		return tenth(napStart+g.rng.Float64()*napSpan, napStart, napStart+napSpan), nil
	}

	if len(rule.TimeRange) != 2 {
		return 0, ruleError(idx, rule, "time_range", "expected [start, end], got %d values", len(rule.TimeRange))
	}
	start, end := rule.TimeRange[0], rule.TimeRange[1]
	if !(start < end) {
		return 0, ruleError(idx, rule, "time_range", "start %v is not before end %v", start, end)
	}
	t := wrapDay(tenth(start+g.rng.Float64()*(end-start), start, end))
	if t < 0 || t >= 24 {
		return 0, ruleError(idx, rule, "time_range", "[%v, %v) does not map into a single day", start, end)
	}
	return t, nil
}

// tenth rounds an hour drawn from [start, end) to one decimal. A value that
// rounds up to end is pulled back to the last tenth below it, and one that
// rounds below start is pushed up to the first tenth at or above it.
func tenth(t, start, end float64) float64 {
	r := math.Round(t*10) / 10
	if r >= end {
		r = math.Ceil(end*10-1) / 10
	}
	if r < start {
		if up := math.Ceil(start*10) / 10; up < end {
			r = up
		}
	}
	return r
}

// wrapDay maps an hour past midnight back into [0, 24) and keeps it on a tenth.
func wrapDay(t float64) float64 {
	if t >= 24 {
		return math.Round((t-24)*10) / 10
	}
	return t
}

// OccupancyWindow narrows configured occupancy bounds by time of day and
// weekday: night hours hold 1–3 people, weekend days at least 2, weekday
// days at most 2.
func OccupancyWindow(t float64, dayIdx, lo, hi int) (int, int) {
	switch {
	case t < 8 || t > 20:
		return max(1, lo), min(3, hi)
	case IsWeekendIndex(dayIdx):
		return max(2, lo), hi
	default:
		return lo, min(2, hi)
	}
}

func (g *Generator) resolveOccupancy(idx int, rule *ActivityRule, t float64, dayIdx int) (int, error) {
	lo, hi := rule.PeopleBounds()
	wlo, whi := OccupancyWindow(t, dayIdx, lo, hi)
	if wlo > whi {
		return 0, ruleError(idx, rule, "people_home", "bounds [%d,%d] leave no valid occupancy at %.1fh on %s (window [%d,%d])",
			lo, hi, t, Weekdays[dayIdx-1], wlo, whi)
	}
	return wlo + g.rng.Intn(whi-wlo+1), nil
}

func (g *Generator) resolveLocation(idx int, rule *ActivityRule) (string, error) {
	if len(rule.Location) == 0 {
		return "", ruleError(idx, rule, "location", "location list is empty")
	}
	weights := make([]float64, len(rule.Location))
	total := 0.0
	for i, loc := range rule.Location {
		w, ok := LocationWeights[loc]
		if !ok {
			return "", ruleError(idx, rule, "location", "unknown location %q", loc)
		}
		weights[i] = w
		total += w
	}
	return rule.Location[weightedIndex(g.rng, weights, total)], nil
}

func (g *Generator) resolveWeather(idx int, rule *ActivityRule) (string, error) {
	options := WeatherNames
	if rule.Weather != nil {
		if len(rule.Weather) == 0 {
			return "", ruleError(idx, rule, "weather", "weather list is empty")
		}
		options = rule.Weather
	}
	weights := make([]float64, len(options))
	total := 0.0
	for i, w := range options {
		p, ok := WeatherWeights[w]
		if !ok {
			return "", ruleError(idx, rule, "weather", "unknown weather %q", w)
		}
		weights[i] = p
		total += p
	}
	return options[weightedIndex(g.rng, weights, total)], nil
}

// weightedIndex picks i with probability weights[i]/total. total must be > 0.
func weightedIndex(rng *rand.Rand, weights []float64, total float64) int {
	r := rng.Float64() * total
	last := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		if r < w {
			return i
		}
		r -= w
		last = i
	}
	return last
}
