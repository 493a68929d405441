package query

import (
	"time"

	"github.com/asaidimu/go-folio/core/schema"
)

// Interval is a half-open range of calendar dates, [Start, End), with both
// bounds at UTC midnight.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

var (
	minDate = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	maxDate = time.Date(10000, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// AllTime is the interval covering every date a record can hold.
func AllTime() Interval {
	return Interval{Start: minDate, End: maxDate}
}

// Contains reports whether t's calendar date lies inside the interval.
func (i Interval) Contains(t time.Time) bool {
	d := truncate(t)
	return !d.Before(i.Start) && d.Before(i.End)
}

// Unbounded reports whether the interval is the full representable range.
func (i Interval) Unbounded() bool {
	return !i.Start.After(minDate) && !i.End.Before(maxDate)
}

// Days is the number of calendar days in the interval.
func (i Interval) Days() int {
	return int(i.End.Sub(i.Start).Hours() / 24)
}

// Resolve turns a declarative range into a concrete interval relative to now.
// It returns false when the range cannot be resolved; callers then apply no
// time filtering. Only now's calendar date is used, so the result does not
// depend on its time of day.
func Resolve(r schema.TimeRange, now time.Time) (Interval, bool) {
	y, m, _ := now.Date()
	monthStart := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)

	switch r.Preset {
	case schema.PresetAllTime:
		return AllTime(), true
	case schema.PresetThisMonth:
		return Interval{Start: monthStart, End: monthStart.AddDate(0, 1, 0)}, true
	case schema.PresetLastMonth:
		return Interval{Start: monthStart.AddDate(0, -1, 0), End: monthStart}, true
	case schema.PresetThisYear:
		yearStart := time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
		return Interval{Start: yearStart, End: yearStart.AddDate(1, 0, 0)}, true
	case "":
	default:
		return Interval{}, false
	}

	from, ok := schema.ParseDate(r.From)
	if !ok {
		return Interval{}, false
	}
	to, ok := schema.ParseDate(r.To)
	if !ok {
		return Interval{}, false
	}
	return Interval{Start: from, End: to.AddDate(0, 0, 1)}, true
}

// truncate keeps t's calendar date as UTC midnight.
func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
