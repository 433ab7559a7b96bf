package synth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ActivityRule describes one activity the pet can be doing and the
// constraints used to fill in the rest of a record.
type ActivityRule struct {
	Activity    string    `json:"activity" yaml:"activity"`
	Probability float64   `json:"probability" yaml:"probability"`
	Day         DaySpec   `json:"day,omitempty" yaml:"day,omitempty"`
	TimeRange   []float64 `json:"time_range" yaml:"time_range"`
	Location    []string  `json:"location" yaml:"location"`
	Weather     []string  `json:"weather,omitempty" yaml:"weather,omitempty"`

	PeopleHomeMin *int `json:"people_home_min,omitempty" yaml:"people_home_min,omitempty"`
	PeopleHomeMax *int `json:"people_home_max,omitempty" yaml:"people_home_max,omitempty"`
	RewardGiven   *int `json:"reward_given,omitempty" yaml:"reward_given,omitempty"`
}

// PeopleBounds returns the configured occupancy bounds, defaulting to [0,7].
func (r *ActivityRule) PeopleBounds() (lo, hi int) {
	lo, hi = MinPeopleHome, MaxPeopleHome
	if r.PeopleHomeMin != nil {
		lo = *r.PeopleHomeMin
	}
	if r.PeopleHomeMax != nil {
		hi = *r.PeopleHomeMax
	}
	return lo, hi
}

// DaySpec pins a rule to one weekday or a set of weekdays (Monday=1).
// The zero value means any day.
//
// In both JSON and YAML it is written either as a bare integer or as a list.
type DaySpec struct {
	Days []int
}

// Pinned reports whether the rule restricts the day at all.
func (d DaySpec) Pinned() bool { return len(d.Days) > 0 }

// Allows reports whether day index idx is permitted by d.
func (d DaySpec) Allows(idx int) bool {
	if !d.Pinned() {
		return idx >= 1 && idx <= 7
	}
	for _, v := range d.Days {
		if v == idx {
			return true
		}
	}
	return false
}

func (d DaySpec) MarshalJSON() ([]byte, error) {
	if len(d.Days) == 1 {
		return json.Marshal(d.Days[0])
	}
	return json.Marshal(d.Days)
}

func (d *DaySpec) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		d.Days = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var days []int
		if err := json.Unmarshal(data, &days); err != nil {
			return fmt.Errorf("day: %w", err)
		}
		d.Days = days
		return nil
	}
	var day int
	if err := json.Unmarshal(data, &day); err != nil {
		return fmt.Errorf("day: %w", err)
	}
	d.Days = []int{day}
	return nil
}

func (d DaySpec) MarshalYAML() (any, error) {
	if len(d.Days) == 1 {
		return d.Days[0], nil
	}
	return d.Days, nil
}

func (d *DaySpec) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			d.Days = nil
			return nil
		}
		var day int
		if err := value.Decode(&day); err != nil {
			return fmt.Errorf("day: %w", err)
		}
		d.Days = []int{day}
	case yaml.SequenceNode:
		var days []int
		if err := value.Decode(&days); err != nil {
			return fmt.Errorf("day: %w", err)
		}
		d.Days = days
	default:
		return fmt.Errorf("day: line %d: expected an integer or a list of integers", value.Line)
	}
	return nil
}

// LoadRules reads a rule table from path. The format follows the extension:
// .json is JSON, .yaml/.yml is YAML, anything else is tried as YAML first
// and then as JSON.
func LoadRules(path string) ([]ActivityRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	rules, err := ParseRules(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}
	return rules, nil
}

// ParseRules decodes a rule table. ext selects the format as in LoadRules.
func ParseRules(data []byte, ext string) ([]ActivityRule, error) {
	var rules []ActivityRule
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &rules); err != nil {
			return nil, fmt.Errorf("parse JSON rules: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &rules); err != nil {
			return nil, fmt.Errorf("parse YAML rules: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &rules); err != nil {
			if jsonErr := json.Unmarshal(data, &rules); jsonErr != nil {
				return nil, fmt.Errorf("parse rules (tried YAML and JSON): YAML error: %w, JSON error: %v", err, jsonErr)
			}
		}
	}
	return rules, nil
}
