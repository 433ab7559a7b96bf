package data

import (
	"sort"

	"mochi/pkg/stats"
	"mochi/pkg/synth"
)

// ActivityCount is the number of rows labeled with one activity.
type ActivityCount struct {
	Activity string  `json:"activity"`
	Count    int     `json:"count"`
	Share    float64 `json:"share"`
}

// Summary describes a dataset for the describe command.
type Summary struct {
	Rows       int                      `json:"rows"`
	Activities []ActivityCount          `json:"activities"`
	Numeric    map[string]stats.Summary `json:"numeric"`
}

// RankActivities turns per-activity counts into shares, most frequent
// first with ties broken by name.
func RankActivities(counts map[string]int) []ActivityCount {
	total := 0
	for _, c := range counts {
		total += c
	}
	acts := make([]ActivityCount, 0, len(counts))
	for a, c := range counts {
		acts = append(acts, ActivityCount{Activity: a, Count: c, Share: float64(c) / float64(total)})
	}
	sort.Slice(acts, func(i, j int) bool {
		if acts[i].Count != acts[j].Count {
			return acts[i].Count > acts[j].Count
		}
		return acts[i].Activity < acts[j].Activity
	})
	return acts
}

// Summarize counts activities (most frequent first, ties by name) and
// describes the numeric columns.
func Summarize(records []synth.Record) Summary {
	counts := map[string]int{}
	times := make([]float64, len(records))
	durations := make([]float64, len(records))
	people := make([]float64, len(records))
	for i, r := range records {
		counts[r.Activity]++
		times[i] = r.Time
		durations[i] = float64(r.DurationMinutes)
		people[i] = float64(r.PeopleHome)
	}

	return Summary{
		Rows:       len(records),
		Activities: RankActivities(counts),
		Numeric: map[string]stats.Summary{
			"Time":             stats.Describe(times),
			"Duration_minutes": stats.Describe(durations),
			"People_home":      stats.Describe(people),
		},
	}
}
