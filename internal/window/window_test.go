package window

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolveDay(t *testing.T) {
	anchor := time.Date(2026, time.March, 10, 14, 35, 12, 0, time.UTC)
	r := Resolve(anchor, ViewDay, time.Sunday)

	if !r.Start.Equal(date(2026, time.March, 10)) {
		t.Errorf("day start = %v, want midnight of anchor date", r.Start)
	}
	want := date(2026, time.March, 11).Add(-time.Millisecond)
	if !r.End.Equal(want) {
		t.Errorf("day end = %v, want %v", r.End, want)
	}
}

func TestResolveWeek(t *testing.T) {
	tests := []struct {
		name      string
		anchor    time.Time
		weekStart time.Weekday
		wantStart time.Time
	}{
		{
			name:      "sunday start, midweek anchor",
			anchor:    date(2026, time.March, 11), // a Wednesday
			weekStart: time.Sunday,
			wantStart: date(2026, time.March, 8),
		},
		{
			name:      "monday start, midweek anchor",
			anchor:    date(2026, time.March, 11),
			weekStart: time.Monday,
			wantStart: date(2026, time.March, 9),
		},
		{
			name:      "anchor on the week-start day itself",
			anchor:    date(2026, time.March, 8),
			weekStart: time.Sunday,
			wantStart: date(2026, time.March, 8),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Resolve(tt.anchor, ViewWeek, tt.weekStart)
			if !r.Start.Equal(tt.wantStart) {
				t.Errorf("week start = %v, want %v", r.Start, tt.wantStart)
			}
			wantEnd := tt.wantStart.AddDate(0, 0, 7).Add(-time.Millisecond)
			if !r.End.Equal(wantEnd) {
				t.Errorf("week end = %v, want %v", r.End, wantEnd)
			}
		})
	}
}

func TestResolveMonthPadsToWholeWeeks(t *testing.T) {
	// February 2026 starts on a Sunday and ends on a Saturday, so with a
	// Sunday week start the padded window is exactly the month.
	r := Resolve(date(2026, time.February, 15), ViewMonth, time.Sunday)
	if !r.Start.Equal(date(2026, time.February, 1)) {
		t.Errorf("month start = %v, want 2026-02-01", r.Start)
	}
	if wantEnd := date(2026, time.March, 1).Add(-time.Millisecond); !r.End.Equal(wantEnd) {
		t.Errorf("month end = %v, want %v", r.End, wantEnd)
	}

	// With a Monday week start the same month needs padding on both sides.
	r = Resolve(date(2026, time.February, 15), ViewMonth, time.Monday)
	if !r.Start.Equal(date(2026, time.January, 26)) {
		t.Errorf("padded month start = %v, want 2026-01-26 (Monday before Feb 1)", r.Start)
	}
	if wantEnd := date(2026, time.March, 2).Add(-time.Millisecond); !r.End.Equal(wantEnd) {
		t.Errorf("padded month end = %v, want Sunday after Feb 28, got %v", wantEnd, r.End)
	}
}

func TestMonthWindowSpansWholeWeeks(t *testing.T) {
	anchors := []time.Time{
		date(2026, time.January, 1),
		date(2026, time.April, 30),
		date(2024, time.February, 29),
		date(2026, time.December, 31),
	}
	for _, anchor := range anchors {
		for ws := time.Sunday; ws <= time.Saturday; ws++ {
			r := Resolve(anchor, ViewMonth, ws)
			if r.Start.Weekday() != ws {
				t.Errorf("anchor %v weekStart %v: window starts on %v", anchor, ws, r.Start.Weekday())
			}
			days := int(r.End.Sub(r.Start).Hours()/24) + 1
			if days%7 != 0 {
				t.Errorf("anchor %v weekStart %v: window spans %d days, not whole weeks", anchor, ws, days)
			}
			if !r.Contains(anchor) {
				t.Errorf("anchor %v weekStart %v: window does not contain the anchor", anchor, ws)
			}
		}
	}
}

func TestRangeContains(t *testing.T) {
	r := Resolve(date(2026, time.March, 10), ViewDay, time.Sunday)
	if !r.Contains(r.Start) || !r.Contains(r.End) {
		t.Error("range must be inclusive of both bounds")
	}
	if r.Contains(r.Start.Add(-time.Millisecond)) || r.Contains(r.End.Add(time.Millisecond)) {
		t.Error("range must exclude times outside the bounds")
	}
}
