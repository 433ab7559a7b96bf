package synth

import "errors"

// Validate checks a rule table once, up front, and reports every problem it
// finds. A table that passes can still fail at generation time when a rule's
// occupancy bounds are incompatible with the time and day that were drawn.
func Validate(rules []ActivityRule) error {
	if len(rules) == 0 {
		return tableError("rules", "rule table is empty")
	}

	var errs []error
	total := 0.0
	for i := range rules {
		r := &rules[i]
		if r.Activity == "" {
			errs = append(errs, ruleError(i, r, "activity", "activity name is empty"))
		} else if !KnownActivity(r.Activity) {
			errs = append(errs, ruleError(i, r, "activity", "no mood policy for this activity"))
		}

		if r.Probability < 0 {
			errs = append(errs, ruleError(i, r, "probability", "weight %v is negative", r.Probability))
		} else {
			total += r.Probability
		}

		for _, d := range r.Day.Days {
			if d < 1 || d > 7 {
				errs = append(errs, ruleError(i, r, "day", "day index %d outside 1..7", d))
			}
		}

		if r.Activity != ActivitySleeping || len(r.TimeRange) > 0 {
			if err := validateTimeRange(i, r); err != nil {
				errs = append(errs, err)
			}
		}

		if len(r.Location) == 0 {
			errs = append(errs, ruleError(i, r, "location", "location list is empty"))
		}
		for _, loc := range r.Location {
			if _, ok := LocationWeights[loc]; !ok {
				errs = append(errs, ruleError(i, r, "location", "unknown location %q", loc))
			}
		}

		if r.Weather != nil && len(r.Weather) == 0 {
			errs = append(errs, ruleError(i, r, "weather", "weather list is empty"))
		}
		for _, w := range r.Weather {
			if _, ok := WeatherWeights[w]; !ok {
				errs = append(errs, ruleError(i, r, "weather", "unknown weather %q", w))
			}
		}

		lo, hi := r.PeopleBounds()
		if lo < MinPeopleHome || hi > MaxPeopleHome {
			errs = append(errs, ruleError(i, r, "people_home", "bounds [%d,%d] outside [%d,%d]", lo, hi, MinPeopleHome, MaxPeopleHome))
		}
		if lo > hi {
			errs = append(errs, ruleError(i, r, "people_home", "min %d exceeds max %d", lo, hi))
		}

		if r.RewardGiven != nil && *r.RewardGiven != 0 && *r.RewardGiven != 1 {
			errs = append(errs, ruleError(i, r, "reward_given", "must be 0 or 1, got %d", *r.RewardGiven))
		}
	}
	if total == 0 && len(errs) == 0 {
		errs = append(errs, tableError("probability", "all rule weights are zero"))
	}
	return errors.Join(errs...)
}

func validateTimeRange(i int, r *ActivityRule) error {
	if len(r.TimeRange) != 2 {
		return ruleError(i, r, "time_range", "expected [start, end], got %d values", len(r.TimeRange))
	}
	start, end := r.TimeRange[0], r.TimeRange[1]
	switch {
	case start < 0 || start >= 24:
		return ruleError(i, r, "time_range", "start %v outside [0,24)", start)
	case end <= start:
		return ruleError(i, r, "time_range", "end %v is not after start %v", end, start)
	case end-start > 24:
		return ruleError(i, r, "time_range", "[%v, %v) spans more than a day", start, end)
	}
	return nil
}
