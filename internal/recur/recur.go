// Package recur expands repeating events into concrete occurrences inside a
// resolved window. Occurrences are render-only values: the base record in the
// store is never touched, and reconciliation always addresses base records.
package recur

import (
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"plancal/internal/models"
	"plancal/internal/window"
)

// maxOccurrencesPerEvent caps expansion so a pathological rule cannot flood a
// window.
const maxOccurrencesPerEvent = 1000

// Occurrence is one concrete instance of an event within a window. EventID
// refers to the base record; Start/End are the instance times with the base
// duration preserved.
type Occurrence struct {
	EventID string
	Event   *models.CalendarEvent
	Start   time.Time
	End     time.Time
}

// Expand returns the occurrences of a single event inside r, in start order.
// Non-repeating events yield at most one occurrence.
func Expand(ev *models.CalendarEvent, r window.Range) ([]Occurrence, error) {
	if ev.Repeat == "" || ev.Repeat == models.RepeatNone {
		if overlaps(ev.StartTime, ev.EndTime, r) {
			return []Occurrence{{EventID: ev.ID, Event: ev, Start: ev.StartTime, End: ev.EndTime}}, nil
		}
		return nil, nil
	}

	freq, err := frequency(ev.Repeat)
	if err != nil {
		return nil, err
	}
	rule, err := rrule.NewRRule(rrule.ROption{Freq: freq, Dtstart: ev.StartTime})
	if err != nil {
		return nil, fmt.Errorf("build rule for event %s: %w", ev.ID, err)
	}

	dur := ev.Duration()
	// Widen the lower bound by the duration so an instance that started
	// before the window but spills into it is still produced.
	starts := rule.Between(r.Start.Add(-dur), r.End, true)
	if len(starts) > maxOccurrencesPerEvent {
		starts = starts[:maxOccurrencesPerEvent]
	}

	out := make([]Occurrence, 0, len(starts))
	for _, s := range starts {
		e := s.Add(dur)
		if !overlaps(s, e, r) {
			continue
		}
		out = append(out, Occurrence{EventID: ev.ID, Event: ev, Start: s, End: e})
	}
	return out, nil
}

// ExpandAll expands every event into r and returns the merged occurrence list
// sorted by (start, event id).
func ExpandAll(events []models.CalendarEvent, r window.Range) ([]Occurrence, error) {
	var out []Occurrence
	for i := range events {
		occ, err := Expand(&events[i], r)
		if err != nil {
			return nil, err
		}
		out = append(out, occ...)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].EventID < out[j].EventID
	})
	return out, nil
}

func frequency(r models.Repeat) (rrule.Frequency, error) {
	switch r {
	case models.RepeatDaily:
		return rrule.DAILY, nil
	case models.RepeatWeekly:
		return rrule.WEEKLY, nil
	case models.RepeatMonthly:
		return rrule.MONTHLY, nil
	case models.RepeatYearly:
		return rrule.YEARLY, nil
	}
	return 0, fmt.Errorf("unknown repeat rule %q", r)
}

func overlaps(start, end time.Time, r window.Range) bool {
	return !end.Before(r.Start) && !start.After(r.End)
}
