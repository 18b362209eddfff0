package models

import (
	"time"
)

// Source identifies the system of record for an event. Local events are owned
// here and never pushed outward unless they are explicitly mirrored to a
// provider on creation, at which point they become provider-sourced.
type Source string

// SourceLocal marks an event owned by this application.
const SourceLocal Source = "local"

// Repeat is the recurrence rule of an event.
type Repeat string

const (
	RepeatNone    Repeat = "none"
	RepeatDaily   Repeat = "daily"
	RepeatWeekly  Repeat = "weekly"
	RepeatMonthly Repeat = "monthly"
	RepeatYearly  Repeat = "yearly"
)

// Valid reports whether r is a known recurrence rule.
func (r Repeat) Valid() bool {
	switch r {
	case RepeatNone, RepeatDaily, RepeatWeekly, RepeatMonthly, RepeatYearly:
		return true
	}
	return false
}

// Color is the display color of an event.
type Color string

const (
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorRed    Color = "red"
	ColorYellow Color = "yellow"
	ColorPurple Color = "purple"
	ColorOrange Color = "orange"
	ColorGray   Color = "gray"
)

// Valid reports whether c is a known color.
func (c Color) Valid() bool {
	switch c {
	case ColorBlue, ColorGreen, ColorRed, ColorYellow, ColorPurple, ColorOrange, ColorGray:
		return true
	}
	return false
}

// CalendarEvent is the sole entity of the calendar core.
//
// Provider-sourced events carry a non-empty ExternalID, which is the join key
// for reconciliation; the (Source, ExternalID) pair is unique. Soft-deleted
// records stay in the store for audit and undo but are excluded from range
// queries and layout.
type CalendarEvent struct {
	ID string `json:"id"`

	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location,omitempty"`
	Guests      []string `json:"guests,omitempty"`
	// NotifyBefore is the reminder lead time in minutes; nil means no reminder.
	NotifyBefore *int     `json:"notifyBefore,omitempty"`
	Attachments  []string `json:"attachments,omitempty"`

	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	AllDay    bool      `json:"isAllDay"`
	Repeat    Repeat    `json:"repeat"`
	Color     Color     `json:"color"`

	Source     Source `json:"source"`
	ExternalID string `json:"externalId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is the last-write-wins conflict tiebreaker. Local edits set it
	// to now; pull reconciliation sets it to the remote modification time.
	UpdatedAt time.Time `json:"updatedAt"`

	Deleted bool `json:"isDeleted"`
}

// Duration returns EndTime - StartTime.
func (e *CalendarEvent) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

// Remote reports whether the event is owned by an external provider.
func (e *CalendarEvent) Remote() bool {
	return e.Source != "" && e.Source != SourceLocal
}

// Validate checks the interval invariant and enum fields. A zero-duration
// interval is permitted (point and all-day events).
func (e *CalendarEvent) Validate() error {
	if e.StartTime.IsZero() || e.EndTime.IsZero() {
		return &ValidationError{Field: "startTime", Reason: "start and end times are required"}
	}
	if e.EndTime.Before(e.StartTime) {
		return &ValidationError{Field: "endTime", Reason: "end time precedes start time"}
	}
	if e.Repeat != "" && !e.Repeat.Valid() {
		return &ValidationError{Field: "repeat", Reason: "unknown repeat rule"}
	}
	if e.Color != "" && !e.Color.Valid() {
		return &ValidationError{Field: "color", Reason: "unknown color"}
	}
	if e.Remote() && e.ExternalID == "" {
		return &ValidationError{Field: "externalId", Reason: "provider-sourced events need an external id"}
	}
	return nil
}

// Normalize fills enum zero values so records read back consistently.
func (e *CalendarEvent) Normalize() {
	if e.Source == "" {
		e.Source = SourceLocal
	}
	if e.Repeat == "" {
		e.Repeat = RepeatNone
	}
	if e.Color == "" {
		e.Color = ColorBlue
	}
}

// ContentEquals compares the user-visible fields of the incoming event o
// against e, ignoring identity, origin and bookkeeping timestamps. Pull
// reconciliation uses it to avoid bumping UpdatedAt when the remote payload
// has not actually changed. Zero-valued enum fields on o count as
// unspecified, since providers carry no repeat/color concept.
func (e *CalendarEvent) ContentEquals(o *CalendarEvent) bool {
	if e.Title != o.Title || e.Description != o.Description || e.Location != o.Location {
		return false
	}
	if !e.StartTime.Equal(o.StartTime) || !e.EndTime.Equal(o.EndTime) {
		return false
	}
	if e.AllDay != o.AllDay {
		return false
	}
	if o.Repeat != "" && e.Repeat != o.Repeat {
		return false
	}
	if o.Color != "" && e.Color != o.Color {
		return false
	}
	if len(e.Guests) != len(o.Guests) {
		return false
	}
	for i := range e.Guests {
		if e.Guests[i] != o.Guests[i] {
			return false
		}
	}
	return true
}
