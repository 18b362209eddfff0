package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"plancal/internal/models"
)

// MemoryStore is an in-memory EventStore for tests and ephemeral runs. It
// honors the same contract as the SQLite store.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]models.CalendarEvent
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string]models.CalendarEvent)}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Query(_ context.Context, start, end time.Time) ([]models.CalendarEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.CalendarEvent
	for _, ev := range s.events {
		if ev.Deleted || ev.StartTime.After(end) {
			continue
		}
		if ev.EndTime.Before(start) && (ev.Repeat == "" || ev.Repeat == models.RepeatNone) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*models.CalendarEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &ev, nil
}

func (s *MemoryStore) GetBySourceExternalID(_ context.Context, source models.Source, externalID string) (*models.CalendarEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ev := range s.events {
		if ev.Source == source && ev.ExternalID == externalID && externalID != "" {
			return &ev, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *MemoryStore) Create(_ context.Context, ev *models.CalendarEvent) (*models.CalendarEvent, error) {
	rec := *ev
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[rec.ID] = rec
	return &rec, nil
}

func (s *MemoryStore) Update(_ context.Context, ev *models.CalendarEvent, bumpUpdated bool) (*models.CalendarEvent, error) {
	rec := *ev
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if bumpUpdated {
		rec.UpdatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[rec.ID]; !ok {
		return nil, models.ErrNotFound
	}
	s.events[rec.ID] = rec
	return &rec, nil
}

func (s *MemoryStore) SoftDelete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return models.ErrNotFound
	}
	ev.Deleted = true
	ev.UpdatedAt = time.Now().UTC()
	s.events[id] = ev
	return nil
}

func (s *MemoryStore) UpsertBySourceAndExternalID(ctx context.Context, source models.Source, externalID string, incoming *models.CalendarEvent) (*models.CalendarEvent, bool, error) {
	existing, err := s.GetBySourceExternalID(ctx, source, externalID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, false, err
	}

	in := *incoming
	in.Source = source
	in.ExternalID = externalID
	in.Normalize()

	rec := resolveUpsert(existing, &in)
	if rec == nil {
		return existing, false, nil
	}
	if existing == nil {
		created, err := s.Create(ctx, rec)
		return created, err == nil, err
	}
	updated, err := s.Update(ctx, rec, false)
	return updated, err == nil, err
}
