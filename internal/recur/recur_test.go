package recur

import (
	"testing"
	"time"

	"plancal/internal/models"
	"plancal/internal/window"
)

func weeklyEvent(id string, start time.Time, dur time.Duration, repeat models.Repeat) models.CalendarEvent {
	return models.CalendarEvent{
		ID:        id,
		Title:     "standup",
		StartTime: start,
		EndTime:   start.Add(dur),
		Repeat:    repeat,
		Source:    models.SourceLocal,
	}
}

func TestExpandNonRepeating(t *testing.T) {
	base := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	ev := weeklyEvent("e1", base, time.Hour, models.RepeatNone)

	in := window.Resolve(base, window.ViewWeek, time.Sunday)
	occ, err := Expand(&ev, in)
	if err != nil {
		t.Fatal(err)
	}
	if len(occ) != 1 || !occ[0].Start.Equal(base) {
		t.Fatalf("got %v, want single occurrence at base start", occ)
	}

	out := window.Resolve(base.AddDate(0, 0, 14), window.ViewWeek, time.Sunday)
	occ, err = Expand(&ev, out)
	if err != nil {
		t.Fatal(err)
	}
	if len(occ) != 0 {
		t.Fatalf("non-repeating event produced %d occurrences outside its window", len(occ))
	}
}

func TestExpandWeeklyIntoLaterWindow(t *testing.T) {
	// Weekly event based weeks before the window must still appear in it.
	base := time.Date(2026, time.January, 6, 9, 0, 0, 0, time.UTC) // a Tuesday
	ev := weeklyEvent("e1", base, 90*time.Minute, models.RepeatWeekly)

	in := window.Resolve(time.Date(2026, time.March, 11, 0, 0, 0, 0, time.UTC), window.ViewWeek, time.Sunday)
	occ, err := Expand(&ev, in)
	if err != nil {
		t.Fatal(err)
	}
	if len(occ) != 1 {
		t.Fatalf("got %d occurrences in one week, want 1", len(occ))
	}
	got := occ[0]
	if got.Start.Weekday() != time.Tuesday || got.Start.Hour() != 9 {
		t.Errorf("occurrence at %v, want Tuesday 09:00", got.Start)
	}
	if got.End.Sub(got.Start) != 90*time.Minute {
		t.Errorf("occurrence duration = %v, base duration not preserved", got.End.Sub(got.Start))
	}
	if got.EventID != "e1" {
		t.Errorf("occurrence event id = %q", got.EventID)
	}
}

func TestExpandDailyCountInMonth(t *testing.T) {
	base := time.Date(2026, time.February, 3, 8, 0, 0, 0, time.UTC)
	ev := weeklyEvent("e1", base, 30*time.Minute, models.RepeatDaily)

	in := window.Resolve(base, window.ViewMonth, time.Sunday) // exactly Feb 1 .. Feb 28
	occ, err := Expand(&ev, in)
	if err != nil {
		t.Fatal(err)
	}
	if len(occ) != 26 { // Feb 3 through Feb 28
		t.Fatalf("got %d daily occurrences, want 26", len(occ))
	}
}

func TestExpandAllSortedAndStoreUntouched(t *testing.T) {
	base := time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC)
	events := []models.CalendarEvent{
		weeklyEvent("b", base.Add(10*time.Hour), time.Hour, models.RepeatNone),
		weeklyEvent("a", base.Add(10*time.Hour), time.Hour, models.RepeatNone),
		weeklyEvent("c", base.Add(-7*24*time.Hour).Add(9*time.Hour), time.Hour, models.RepeatDaily),
	}
	snapshot := make([]models.CalendarEvent, len(events))
	copy(snapshot, events)

	in := window.Resolve(base, window.ViewDay, time.Sunday)
	occ, err := ExpandAll(events, in)
	if err != nil {
		t.Fatal(err)
	}
	if len(occ) != 3 {
		t.Fatalf("got %d occurrences, want 3", len(occ))
	}
	if occ[0].EventID != "c" || occ[1].EventID != "a" || occ[2].EventID != "b" {
		t.Errorf("order = %s,%s,%s, want c,a,b (start then id)", occ[0].EventID, occ[1].EventID, occ[2].EventID)
	}
	for i := range events {
		if !events[i].StartTime.Equal(snapshot[i].StartTime) || !events[i].EndTime.Equal(snapshot[i].EndTime) {
			t.Errorf("expansion mutated event %s", events[i].ID)
		}
	}
}
