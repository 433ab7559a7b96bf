package synth

import "math/rand"

// Activity names with special handling in the resolution steps.
const (
	ActivitySleeping    = "Sleeping"
	ActivityZoomies     = "Zoomies"
	ActivityBarking     = "Barking"
	ActivityOnTheCouch  = "On the couch"
	ActivityEating      = "Eating"
	ActivityWalking     = "Walking"
	ActivityCuttingNail = "Cutting nails"
	ActivityShower      = "Shower"
	ActivityHaircut     = "Haircut"
	ActivityTrick       = "Trick"
)

const (
	MinPeopleHome = 0
	MaxPeopleHome = 7

	nightSleepShare = 0.7
	nightSleepStart = 22.0
	nightSleepSpan  = 8.0
	napStart        = 13.0
	napSpan         = 3.0

	barkAnnoyedShare = 0.7
)

// Weekdays maps day index-1 to its name (Monday=1 … Sunday=7).
var Weekdays = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DayIndex returns the 1-based index of a weekday name, or 0 if unknown.
func DayIndex(name string) int {
	for i, d := range Weekdays {
		if d == name {
			return i + 1
		}
	}
	return 0
}

// IsWeekendIndex reports whether idx is Saturday or Sunday.
func IsWeekendIndex(idx int) bool { return idx == 6 || idx == 7 }

// LocationWeights is the global location prior. Keys are the only valid
// location names.
var LocationWeights = map[string]float64{
	"Living room":    40,
	"Kitchen":        30,
	"Jasmine's room": 15,
	"Parent's room":  10,
	"Bathroom":       5,
	"Front yard":     20,
	"Mailbox":        5,
	"Lily's room":    5,
}

// WeatherNames is the weather vocabulary in prior order.
var WeatherNames = []string{"Sunny", "Cloudy", "Rainy", "Snowy"}

// WeatherWeights is the global weather prior.
var WeatherWeights = map[string]float64{
	"Sunny":  0.6,
	"Cloudy": 0.25,
	"Rainy":  0.1,
	"Snowy":  0.05,
}

// moodContext carries the already-resolved fields a gated mood depends on.
type moodContext struct {
	time       float64
	peopleHome int
}

// moodPolicy is either a uniform set (pick == nil) or a gate that returns a
// single value. options always lists every value the policy can emit.
type moodPolicy struct {
	options []string
	pick    func(rng *rand.Rand, c moodContext) string
}

func uniformMood(options ...string) moodPolicy {
	return moodPolicy{options: options}
}

func (p moodPolicy) resolve(rng *rand.Rand, c moodContext) string {
	if p.pick != nil {
		return p.pick(rng, c)
	}
	return p.options[rng.Intn(len(p.options))]
}

var moodTable = map[string]moodPolicy{
	ActivitySleeping:   uniformMood("Sleepy", "Lazy"),
	"Begging for food": uniformMood("Excited", "Savage"),
	ActivityZoomies: {
		options: []string{"Excited", "Savage"},
		pick: func(rng *rand.Rand, c moodContext) string {
			if c.peopleHome > 3 {
				return "Excited"
			}
			if rng.Intn(2) == 0 {
				return "Excited"
			}
			return "Savage"
		},
	},
	"Playing fetch": uniformMood("Excited"),
	ActivityBarking: {
		options: []string{"Annoyed", "Scared"},
		pick: func(rng *rand.Rand, _ moodContext) string {
			if rng.Float64() < barkAnnoyedShare {
				return "Annoyed"
			}
			return "Scared"
		},
	},
	ActivityCuttingNail: uniformMood("Annoyed", "Scared"),
	ActivityShower:      uniformMood("Annoyed"),
	ActivityEating:      uniformMood("Excited"),
	ActivityOnTheCouch: {
		options: []string{"Lazy", "Excited"},
		pick: func(_ *rand.Rand, c moodContext) string {
			if c.time > 20 {
				return "Lazy"
			}
			return "Excited"
		},
	},
	"Pooping":       uniformMood("Relieved"),
	"Peeing":        uniformMood("Relieved"),
	ActivityHaircut: uniformMood("Savage", "Annoyed"),
	ActivityWalking: uniformMood("Energetic", "Excited"),
	ActivityTrick:   uniformMood("Excited"),
}

// MoodOptions returns every mood the activity can produce, or nil when the
// activity has no mood policy.
func MoodOptions(activity string) []string {
	p, ok := moodTable[activity]
	if !ok {
		return nil
	}
	return append([]string(nil), p.options...)
}

// KnownActivity reports whether the activity has a mood policy, which every
// generated record needs.
func KnownActivity(activity string) bool {
	_, ok := moodTable[activity]
	return ok
}

var triggerTable = map[string][]string{
	"Begging for food":  {"Someone cooking", "Someone eating"},
	ActivitySleeping:    {"Mochi tired"},
	ActivityZoomies:     {"Just pooped", "Shower", "Playing fetch"},
	"Playing fetch":     {"Someone throws toy"},
	ActivityBarking:     {"Hears doorbell", "Someone comes home", "Someone goes downstairs"},
	ActivityCuttingNail: {"Routine grooming"},
	ActivityShower:      {"Bath day"},
	ActivityHaircut:     {"Hair too long"},
	ActivityEating:      {"Meal time"},
	ActivityOnTheCouch:  {"Mom sits down"},
	"Pooping":           {"Morning walk", "Ate food"},
	"Peeing":            {"Bored"},
	ActivityWalking:     {"Bored"},
	ActivityTrick:       {"Treat"},
}

// TriggerOptions returns the triggers an activity can have. A nil result
// means records for that activity carry no trigger.
func TriggerOptions(activity string) []string {
	opts, ok := triggerTable[activity]
	if !ok {
		return nil
	}
	return append([]string(nil), opts...)
}

// rewardedActivities always get a reward regardless of the rule.
var rewardedActivities = map[string]bool{
	ActivityCuttingNail: true,
	ActivityShower:      true,
	ActivityHaircut:     true,
	ActivityTrick:       true,
}

// AlwaysRewarded reports whether the activity forces reward_given=1.
func AlwaysRewarded(activity string) bool { return rewardedActivities[activity] }

// DurationRange is an inclusive range of minutes.
type DurationRange struct {
	Min, Max int
}

// Contains reports whether m lies in the range.
func (d DurationRange) Contains(m int) bool { return m >= d.Min && m <= d.Max }

var defaultDuration = DurationRange{1, 10}

var durationTable = map[string]DurationRange{
	ActivitySleeping:    {30, 480},
	ActivityOnTheCouch:  {15, 180},
	ActivityWalking:     {20, 60},
	"Playing fetch":     {10, 30},
	ActivityZoomies:     {5, 15},
	ActivityEating:      {5, 20},
	ActivityCuttingNail: {10, 30},
	ActivityShower:      {15, 45},
	ActivityHaircut:     {20, 60},
	ActivityBarking:     {1, 5},
	ActivityTrick:       {1, 5},
}

// DurationFor returns the duration range used for an activity.
func DurationFor(activity string) DurationRange {
	if d, ok := durationTable[activity]; ok {
		return d
	}
	return defaultDuration
}
