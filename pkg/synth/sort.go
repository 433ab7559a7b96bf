package synth

import "sort"

// SortRecords orders records by weekday and then time, in place. Records
// with the same key keep their relative order.
func SortRecords(records []Record) {
	sort.SliceStable(records, func(a, b int) bool {
		da, db := DayIndex(records[a].Day), DayIndex(records[b].Day)
		if da != db {
			return da < db
		}
		return records[a].Time < records[b].Time
	})
}
