package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"plancal/internal/models"
)

// SQLiteStore is the persistent EventStore backed by an embedded SQLite
// database. The schema is migrated on open.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate event store: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS events (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	location      TEXT NOT NULL DEFAULT '',
	guests        TEXT NOT NULL DEFAULT '[]',
	notify_before INTEGER,
	attachments   TEXT NOT NULL DEFAULT '[]',
	start_time    TIMESTAMP NOT NULL,
	end_time      TIMESTAMP NOT NULL,
	all_day       INTEGER NOT NULL DEFAULT 0,
	repeat        TEXT NOT NULL DEFAULT 'none',
	color         TEXT NOT NULL DEFAULT 'blue',
	source        TEXT NOT NULL DEFAULT 'local',
	external_id   TEXT,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL,
	deleted       INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_events_source_external
	ON events(source, external_id) WHERE external_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_events_window ON events(start_time, end_time);
`)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

const eventColumns = `id, title, description, location, guests, notify_before, attachments,
	start_time, end_time, all_day, repeat, color, source, external_id, created_at, updated_at, deleted`

func (s *SQLiteStore) Query(ctx context.Context, start, end time.Time) ([]models.CalendarEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+eventColumns+`
FROM events
WHERE deleted = 0
  AND start_time <= ?
  AND (end_time >= ? OR repeat != 'none')
ORDER BY start_time, id
`, end.UTC(), start.UTC())
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []models.CalendarEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*models.CalendarEvent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	return ev, err
}

func (s *SQLiteStore) GetBySourceExternalID(ctx context.Context, source models.Source, externalID string) (*models.CalendarEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE source = ? AND external_id = ?`,
		string(source), externalID)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	return ev, err
}

func (s *SQLiteStore) Create(ctx context.Context, ev *models.CalendarEvent) (*models.CalendarEvent, error) {
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
	if err := s.insert(ctx, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLiteStore) insert(ctx context.Context, rec *models.CalendarEvent) error {
	guests, attachments, notify := encodeAux(rec)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO events (`+eventColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		rec.ID, rec.Title, rec.Description, rec.Location, guests, notify, attachments,
		rec.StartTime.UTC(), rec.EndTime.UTC(), rec.AllDay, string(rec.Repeat), string(rec.Color),
		string(rec.Source), nullString(rec.ExternalID), rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(), rec.Deleted)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, ev *models.CalendarEvent, bumpUpdated bool) (*models.CalendarEvent, error) {
	rec := *ev
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if bumpUpdated {
		rec.UpdatedAt = time.Now().UTC()
	}
	guests, attachments, notify := encodeAux(&rec)
	res, err := s.db.ExecContext(ctx, `
UPDATE events SET
	title = ?, description = ?, location = ?, guests = ?, notify_before = ?, attachments = ?,
	start_time = ?, end_time = ?, all_day = ?, repeat = ?, color = ?,
	source = ?, external_id = ?, updated_at = ?, deleted = ?
WHERE id = ?
`,
		rec.Title, rec.Description, rec.Location, guests, notify, attachments,
		rec.StartTime.UTC(), rec.EndTime.UTC(), rec.AllDay, string(rec.Repeat), string(rec.Color),
		string(rec.Source), nullString(rec.ExternalID), rec.UpdatedAt.UTC(), rec.Deleted, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("update event %s: %w", rec.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, models.ErrNotFound
	}
	return &rec, nil
}

func (s *SQLiteStore) SoftDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET deleted = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) UpsertBySourceAndExternalID(ctx context.Context, source models.Source, externalID string, incoming *models.CalendarEvent) (*models.CalendarEvent, bool, error) {
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

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func encodeAux(rec *models.CalendarEvent) (guests, attachments string, notify sql.NullInt64) {
	g, _ := json.Marshal(rec.Guests)
	a, _ := json.Marshal(rec.Attachments)
	if rec.Guests == nil {
		g = []byte("[]")
	}
	if rec.Attachments == nil {
		a = []byte("[]")
	}
	if rec.NotifyBefore != nil {
		notify = sql.NullInt64{Int64: int64(*rec.NotifyBefore), Valid: true}
	}
	return string(g), string(a), notify
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*models.CalendarEvent, error) {
	var (
		ev         models.CalendarEvent
		guests     string
		attach     string
		notify     sql.NullInt64
		repeat     string
		color      string
		source     string
		externalID sql.NullString
	)
	err := row.Scan(
		&ev.ID, &ev.Title, &ev.Description, &ev.Location, &guests, &notify, &attach,
		&ev.StartTime, &ev.EndTime, &ev.AllDay, &repeat, &color,
		&source, &externalID, &ev.CreatedAt, &ev.UpdatedAt, &ev.Deleted,
	)
	if err != nil {
		return nil, err
	}
	if guests != "" {
		_ = json.Unmarshal([]byte(guests), &ev.Guests)
	}
	if attach != "" {
		_ = json.Unmarshal([]byte(attach), &ev.Attachments)
	}
	if notify.Valid {
		n := int(notify.Int64)
		ev.NotifyBefore = &n
	}
	ev.Repeat = models.Repeat(repeat)
	ev.Color = models.Color(color)
	ev.Source = models.Source(source)
	ev.ExternalID = externalID.String
	return &ev, nil
}
