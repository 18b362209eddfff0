// Package provider defines the remote calendar contract the sync engine
// reconciles against, plus a generic HTTP/JSON client implementing it.
package provider

import (
	"context"
	"time"

	"plancal/internal/models"
)

// RemoteEvent is the provider-side representation of an event. ExternalID is
// assigned by the provider and joins remote records to their local mirrors.
type RemoteEvent struct {
	ExternalID  string    `json:"externalId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Guests      []string  `json:"guests,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"isAllDay,omitempty"`
	// Updated is the provider's modification timestamp, used as the
	// last-write-wins tiebreaker against the local UpdatedAt.
	Updated time.Time `json:"updated,omitempty"`
}

// Provider is the remote calendar API, assumed already authenticated.
// Implementations map a missing external id on Update/Delete to
// models.ErrNotFound so the sync layer can treat it as already resolved.
type Provider interface {
	// Name tags events imported from this provider as their Source.
	Name() models.Source
	List(ctx context.Context, start, end time.Time) ([]RemoteEvent, error)
	// Create pushes a new event and returns the assigned external id.
	Create(ctx context.Context, ev RemoteEvent) (string, error)
	Update(ctx context.Context, externalID string, ev RemoteEvent) error
	Delete(ctx context.Context, externalID string) error
}

// FromLocal converts a local record into its provider representation.
func FromLocal(ev *models.CalendarEvent) RemoteEvent {
	return RemoteEvent{
		ExternalID:  ev.ExternalID,
		Title:       ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		Guests:      ev.Guests,
		Start:       ev.StartTime,
		End:         ev.EndTime,
		AllDay:      ev.AllDay,
		Updated:     ev.UpdatedAt,
	}
}

// ToLocal converts a remote event into a local record draft for upsert. The
// store stamps Source and ExternalID; UpdatedAt carries the remote
// modification time so conflicts resolve by last write.
func ToLocal(ev RemoteEvent) *models.CalendarEvent {
	return &models.CalendarEvent{
		Title:       ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		Guests:      ev.Guests,
		StartTime:   ev.Start,
		EndTime:     ev.End,
		AllDay:      ev.AllDay,
		UpdatedAt:   ev.Updated,
	}
}
