// Package store is the local authoritative record set for calendar events.
// Records are soft-deleted only; nothing in the application hard-deletes.
package store

import (
	"context"
	"time"

	"plancal/internal/models"
)

// Store is the EventStore contract. Query excludes soft-deleted records;
// GetByID does not, so callers can still inspect deleted records for undo and
// reconciliation. Lookups that match nothing return models.ErrNotFound.
type Store interface {
	// Query returns events relevant to the window: events whose interval
	// intersects [start, end], plus repeating events based at or before end
	// (occurrence expansion decides whether they actually land inside).
	Query(ctx context.Context, start, end time.Time) ([]models.CalendarEvent, error)
	GetByID(ctx context.Context, id string) (*models.CalendarEvent, error)
	GetBySourceExternalID(ctx context.Context, source models.Source, externalID string) (*models.CalendarEvent, error)

	// Create validates and inserts ev, assigning an ID and timestamps when
	// unset, and returns the stored record.
	Create(ctx context.Context, ev *models.CalendarEvent) (*models.CalendarEvent, error)
	// Update validates and replaces the record identified by ev.ID. When
	// bumpUpdated is set, UpdatedAt is moved to now; pull reconciliation
	// passes false and carries the remote modification time instead.
	Update(ctx context.Context, ev *models.CalendarEvent, bumpUpdated bool) (*models.CalendarEvent, error)
	SoftDelete(ctx context.Context, id string) error

	// UpsertBySourceAndExternalID creates or refreshes the local mirror of a
	// remote record. The (source, externalID) pair is the dedup guard: an
	// unchanged payload is a no-op, and a local record with a newer UpdatedAt
	// than the incoming one is left alone (last-write-wins). It returns the
	// stored record and whether anything was written.
	UpsertBySourceAndExternalID(ctx context.Context, source models.Source, externalID string, incoming *models.CalendarEvent) (*models.CalendarEvent, bool, error)

	Close() error
}

// resolveUpsert applies the shared upsert policy against the existing local
// record (nil when absent). It returns the record to write, or nil when
// nothing should change.
func resolveUpsert(existing, incoming *models.CalendarEvent) *models.CalendarEvent {
	if existing == nil {
		ev := *incoming
		return &ev
	}
	if existing.ContentEquals(incoming) {
		return nil
	}
	if existing.UpdatedAt.After(incoming.UpdatedAt) {
		// Local side changed more recently; the push path will carry it out.
		return nil
	}
	merged := *existing
	merged.Title = incoming.Title
	merged.Description = incoming.Description
	merged.Location = incoming.Location
	merged.Guests = incoming.Guests
	merged.StartTime = incoming.StartTime
	merged.EndTime = incoming.EndTime
	merged.AllDay = incoming.AllDay
	if incoming.Repeat != "" {
		merged.Repeat = incoming.Repeat
	}
	if incoming.Color != "" {
		merged.Color = incoming.Color
	}
	merged.UpdatedAt = incoming.UpdatedAt
	return &merged
}
