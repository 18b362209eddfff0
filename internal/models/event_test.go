package models

import (
	"errors"
	"testing"
	"time"
)

func validEvent() CalendarEvent {
	return CalendarEvent{
		ID:        "ev-1",
		Title:     "review",
		StartTime: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC),
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CalendarEvent)
		field  string
	}{
		{"valid", func(e *CalendarEvent) {}, ""},
		{"zero duration ok", func(e *CalendarEvent) { e.EndTime = e.StartTime }, ""},
		{"missing times", func(e *CalendarEvent) { e.StartTime = time.Time{} }, "startTime"},
		{"inverted interval", func(e *CalendarEvent) {
			e.EndTime = e.StartTime.Add(-time.Minute)
		}, "endTime"},
		{"unknown repeat", func(e *CalendarEvent) { e.Repeat = "fortnightly" }, "repeat"},
		{"unknown color", func(e *CalendarEvent) { e.Color = "mauve" }, "color"},
		{"remote without external id", func(e *CalendarEvent) { e.Source = "google" }, "externalId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := validEvent()
			tt.mutate(&ev)
			err := ev.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestRemote(t *testing.T) {
	ev := validEvent()
	if ev.Remote() {
		t.Error("event without source counted as remote")
	}
	ev.Source = SourceLocal
	if ev.Remote() {
		t.Error("local event counted as remote")
	}
	ev.Source = "caldav"
	ev.ExternalID = "abc.ics"
	if !ev.Remote() {
		t.Error("provider-sourced event not counted as remote")
	}
}

func TestContentEqualsIgnoresBookkeeping(t *testing.T) {
	ev := validEvent()
	ev.Normalize()

	other := validEvent()
	other.ID = "different"
	other.Source = "google"
	other.ExternalID = "g-1"
	other.UpdatedAt = time.Now()
	if !ev.ContentEquals(&other) {
		t.Error("identity and bookkeeping fields must not affect equality")
	}

	other.Title = "changed"
	if ev.ContentEquals(&other) {
		t.Error("title change not detected")
	}
}

func TestContentEqualsTreatsZeroEnumsAsUnspecified(t *testing.T) {
	ev := validEvent()
	ev.Normalize()

	// A provider draft carries no repeat or color; normalized local
	// defaults must not register as a difference.
	draft := validEvent()
	if !ev.ContentEquals(&draft) {
		t.Error("zero-valued enums on the incoming copy should be ignored")
	}

	draft.Repeat = RepeatWeekly
	if ev.ContentEquals(&draft) {
		t.Error("explicit repeat difference not detected")
	}
}

func TestSyncErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := &SyncError{Op: "pull", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("SyncError must unwrap to its cause")
	}
}
