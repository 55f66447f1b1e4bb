// Package calendar derives heatmap data and date windows from events.
package calendar

import (
	"time"

	"github.com/and161185/whosfree/internal/model"
)

// DayLayout is the ISO date layout used for day keys.
const DayLayout = "2006-01-02"

// MonthLayout is the layout accepted for month selectors.
const MonthLayout = "2006-01"

// DailyDurations sums event durations in hours per calendar day of the event start,
// evaluated in loc. An event crossing midnight counts entirely towards its start day.
func DailyDurations(events []model.Event, loc *time.Location) map[string]float64 {
	if loc == nil {
		loc = time.UTC
	}
	out := make(map[string]float64)
	for _, e := range events {
		day := e.Start.In(loc).Format(DayLayout)
		out[day] += e.Duration().Hours()
	}
	return out
}

// DayWindow returns [midnight, next midnight) of the day containing t in loc.
func DayWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	from := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 0, 1)
}

// MonthWindow returns [first day, first day of next month) of the month containing t in loc.
func MonthWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 1, 0)
}

// ParseDay parses an ISO date in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DayLayout, s, loc)
}

// ParseMonth parses a YYYY-MM month selector in loc.
func ParseMonth(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(MonthLayout, s, loc)
}
