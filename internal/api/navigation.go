package api

import (
	"time"

	"plancal/internal/window"
)

// NavCommand is a keyboard-driven navigation action.
type NavCommand string

const (
	NavNext      NavCommand = "next"
	NavPrev      NavCommand = "prev"
	NavToday     NavCommand = "today"
	NavViewDay   NavCommand = "view-day"
	NavViewWeek  NavCommand = "view-week"
	NavViewMonth NavCommand = "view-month"
)

// ViewState is the UI's current position in the calendar: which view is
// shown and which instant anchors it.
type ViewState struct {
	View      window.View
	Anchor    time.Time
	WeekStart time.Weekday
}

// Apply executes one navigation command against the state. Commands are
// suppressed while a text input holds focus, so typing an event title never
// flips the calendar page; the caller gets the unchanged state back with
// handled=false.
func (s ViewState) Apply(cmd NavCommand, inputFocused bool) (ViewState, bool) {
	if inputFocused {
		return s, false
	}
	switch cmd {
	case NavNext:
		s.Anchor = s.page(1)
	case NavPrev:
		s.Anchor = s.page(-1)
	case NavToday:
		s.Anchor = time.Now().In(s.Anchor.Location())
	case NavViewDay:
		s.View = window.ViewDay
	case NavViewWeek:
		s.View = window.ViewWeek
	case NavViewMonth:
		s.View = window.ViewMonth
	default:
		return s, false
	}
	return s, true
}

// page advances the anchor by one period of the current view.
func (s ViewState) page(dir int) time.Time {
	switch s.View {
	case window.ViewDay:
		return s.Anchor.AddDate(0, 0, dir)
	case window.ViewMonth:
		return s.Anchor.AddDate(0, dir, 0)
	default:
		return s.Anchor.AddDate(0, 0, 7*dir)
	}
}
