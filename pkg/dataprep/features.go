package dataprep

import "math"

// CyclicalHour maps an hour of day onto the unit circle so 23:59 and 00:00
// end up next to each other.
func CyclicalHour(hour float64) (sin, cos float64) {
	angle := 2 * math.Pi * hour / 24
	return math.Sin(angle), math.Cos(angle)
}

// IsWeekend is 1 for Saturday and Sunday and 0 otherwise.
func IsWeekend(day string) float64 {
	if day == "Saturday" || day == "Sunday" {
		return 1
	}
	return 0
}
