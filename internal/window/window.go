// Package window resolves an anchor date and a view granularity into the
// inclusive date range the calendar queries and renders.
package window

import "time"

// View is the calendar granularity.
type View string

const (
	ViewDay   View = "day"
	ViewWeek  View = "week"
	ViewMonth View = "month"
)

// Valid reports whether v is a known view.
func (v View) Valid() bool {
	return v == ViewDay || v == ViewWeek || v == ViewMonth
}

// Range is an inclusive time window. End sits on the last millisecond of the
// final day so that BETWEEN-style queries capture the whole day.
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Resolve computes the window for the given anchor and view. weekStart is the
// configured first day of the week (e.g. time.Sunday). Month windows are
// padded outward to whole weeks so a month grid renders without partial rows.
func Resolve(anchor time.Time, view View, weekStart time.Weekday) Range {
	switch view {
	case ViewWeek:
		start := StartOfWeek(anchor, weekStart)
		return Range{Start: start, End: endOfDay(start.AddDate(0, 0, 6))}
	case ViewMonth:
		first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, anchor.Location())
		last := first.AddDate(0, 1, -1)
		start := StartOfWeek(first, weekStart)
		end := StartOfWeek(last, weekStart).AddDate(0, 0, 6)
		return Range{Start: start, End: endOfDay(end)}
	default: // day
		start := StartOfDay(anchor)
		return Range{Start: start, End: endOfDay(start)}
	}
}

// StartOfDay returns midnight of t's date in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns midnight of the first day of t's week under the given
// week-start convention.
func StartOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	day := StartOfDay(t)
	back := (int(day.Weekday()) - int(weekStart) + 7) % 7
	return day.AddDate(0, 0, -back)
}

func endOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Millisecond)
}
