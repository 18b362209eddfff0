package sync

import (
	"context"
	"log/slog"
	"time"

	"plancal/internal/models"
	"plancal/internal/store"
)

// Rescheduler applies drag-initiated time changes while preserving the
// event's duration exactly, then propagates provider-sourced changes through
// the reconciler's push path.
type Rescheduler struct {
	logger     *slog.Logger
	store      store.Store
	reconciler *Reconciler
}

// NewRescheduler creates a Rescheduler.
func NewRescheduler(logger *slog.Logger, st store.Store, rec *Reconciler) *Rescheduler {
	return &Rescheduler{logger: logger, store: st, reconciler: rec}
}

// Move shifts the event to newStart, keeping endTime - startTime unchanged.
// The local write always stands: a failed push only produces a
// "rescheduled locally" notice.
func (h *Rescheduler) Move(ctx context.Context, id string, newStart time.Time) (*models.CalendarEvent, error) {
	ev, err := h.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ev.Deleted {
		return nil, models.ErrNotFound
	}

	duration := ev.Duration()
	ev.StartTime = newStart
	ev.EndTime = newStart.Add(duration)

	updated, err := h.store.Update(ctx, ev, true)
	if err != nil {
		return nil, err
	}

	if updated.Remote() {
		if pushErr := h.reconciler.PushUpdate(ctx, updated); pushErr != nil {
			h.logger.Warn("event rescheduled locally, remote propagation failed",
				"id", updated.ID, "error", pushErr)
		}
	}
	return updated, nil
}
