package pipeline

import (
	"strconv"

	"mochi/pkg/dataprep"
	"mochi/pkg/synth"
)

// Column types reported by Schema.
const (
	TypeFloat    = "float"
	TypeCategory = "category"
)

// Schema describes the structure of a dataset.
type Schema struct {
	FeatureNames []string
	Types        []string // e.g., "float", "category"
}

// numericColumns come first in every feature vector.
var numericColumns = []string{"hour_sin", "hour_cos", "Duration_minutes", "People_home", "is_weekend"}

// categoricalColumns are one-hot encoded after the numeric block.
var categoricalColumns = []string{"Location", "Weather", "Mood", "Trigger", "Reward_given"}

// numeric writes the numeric block of r into dst.
func numeric(dst []float64, r synth.Record) []float64 {
	s, c := dataprep.CyclicalHour(r.Time)
	return append(dst, s, c, float64(r.DurationMinutes), float64(r.PeopleHome), dataprep.IsWeekend(r.Day))
}

// categorical returns the raw categorical cells of r with missing triggers
// imputed.
func categorical(r synth.Record) []string {
	return []string{
		r.Location,
		r.Weather,
		r.Mood,
		dataprep.ImputeValue(r.Trigger, dataprep.MissingCategory),
		strconv.Itoa(r.RewardGiven),
	}
}

// Schema lists the fitted feature layout.
func (p *Pipeline) Schema() Schema {
	s := Schema{}
	for _, n := range numericColumns {
		s.FeatureNames = append(s.FeatureNames, n)
		s.Types = append(s.Types, TypeFloat)
	}
	if p.Encoder != nil {
		for _, n := range p.Encoder.FeatureNames() {
			s.FeatureNames = append(s.FeatureNames, n)
			s.Types = append(s.Types, TypeCategory)
		}
	}
	return s
}
