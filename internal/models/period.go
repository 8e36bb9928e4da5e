package models

import "time"

// Period is a half-open time range [Start, End)
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the period
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// PeriodFor returns the fishing day containing t. A fishing day runs from
// noon to noon in t's location, so morning times belong to the day that
// started at noon yesterday.
func PeriodFor(t time.Time) Period {
	day := t
	if t.Hour() < 12 {
		day = t.AddDate(0, 0, -1)
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, t.Location())
	return Period{Start: start, End: start.AddDate(0, 0, 1)}
}
