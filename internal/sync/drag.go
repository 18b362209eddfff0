package sync

import (
	"context"
	"errors"
	"time"

	"plancal/internal/models"
)

// DefaultDragSnap is the grid candidate times snap to during a drag.
const DefaultDragSnap = 15 * time.Minute

// DragSession models one drag-and-drop move as a provider-agnostic message
// sequence: Begin, any number of MoveTo calls, then Commit or Cancel. Nothing
// is written until Commit.
type DragSession struct {
	handler   *Rescheduler
	eventID   string
	snap      time.Duration
	candidate time.Time
	hasMove   bool
	done      bool
}

// BeginDrag opens a drag session for the event. snap <= 0 falls back to
// DefaultDragSnap.
func (h *Rescheduler) BeginDrag(eventID string, snap time.Duration) *DragSession {
	if snap <= 0 {
		snap = DefaultDragSnap
	}
	return &DragSession{handler: h, eventID: eventID, snap: snap}
}

// MoveTo records a candidate start time and returns it snapped to the grid,
// so the UI can preview the drop position.
func (d *DragSession) MoveTo(t time.Time) time.Time {
	snapped := t.Round(d.snap)
	if !d.done {
		d.candidate = snapped
		d.hasMove = true
	}
	return snapped
}

// Commit applies the last candidate time through the reschedule handler.
func (d *DragSession) Commit(ctx context.Context) (*models.CalendarEvent, error) {
	if d.done {
		return nil, errors.New("drag session already finished")
	}
	d.done = true
	if !d.hasMove {
		return nil, errors.New("drag session has no candidate time")
	}
	return d.handler.Move(ctx, d.eventID, d.candidate)
}

// Cancel discards the session without touching the event.
func (d *DragSession) Cancel() {
	d.done = true
}
