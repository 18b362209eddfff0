// Package google implements the provider contract on top of the Google
// Calendar API.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"plancal/internal/models"
	"plancal/internal/provider"
)

// SourceName tags events imported from Google Calendar.
const SourceName = models.Source("google")

// Calendar is a Provider backed by one Google calendar.
type Calendar struct {
	service    *calendar.Service
	calendarID string
	logger     *slog.Logger
}

var _ provider.Provider = (*Calendar)(nil)

// New creates an authenticated Google Calendar provider. tokenFile is the
// JSON token produced by the auth flow.
func New(ctx context.Context, logger *slog.Logger, clientID, clientSecret, tokenFile, calendarID string) (*Calendar, error) {
	config := oauthConfig(clientID, clientSecret)
	token, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("could not load token from %s: %w (run the 'auth' command first)", tokenFile, err)
	}

	service, err := calendar.NewService(ctx, option.WithHTTPClient(config.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Calendar{service: service, calendarID: calendarID, logger: logger}, nil
}

func (c *Calendar) Name() models.Source { return SourceName }

// List fetches all events of the calendar intersecting [start, end].
func (c *Calendar) List(ctx context.Context, start, end time.Time) ([]provider.RemoteEvent, error) {
	c.logger.Debug("fetching google events", "calendarID", c.calendarID, "start", start, "end", end)

	call := c.service.Events.List(c.calendarID).
		Context(ctx).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(start.UTC().Format(time.RFC3339)).
		TimeMax(end.UTC().Format(time.RFC3339)).
		OrderBy("startTime")

	res, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}

	out := make([]provider.RemoteEvent, 0, len(res.Items))
	for _, item := range res.Items {
		ev, ok := toRemote(item)
		if !ok {
			continue
		}
		out = append(out, ev)
	}
	c.logger.Debug("fetched google events", "count", len(out))
	return out, nil
}

func (c *Calendar) Create(ctx context.Context, ev provider.RemoteEvent) (string, error) {
	created, err := c.service.Events.Insert(c.calendarID, fromRemote(ev)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to insert event: %w", err)
	}
	return created.Id, nil
}

func (c *Calendar) Update(ctx context.Context, externalID string, ev provider.RemoteEvent) error {
	_, err := c.service.Events.Update(c.calendarID, externalID, fromRemote(ev)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update event %s: %w", externalID, mapNotFound(err))
	}
	return nil
}

func (c *Calendar) Delete(ctx context.Context, externalID string) error {
	if err := c.service.Events.Delete(c.calendarID, externalID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete event %s: %w", externalID, mapNotFound(err))
	}
	return nil
}

// mapNotFound folds Google's 404/410 responses into models.ErrNotFound so the
// sync layer treats them as already resolved.
func mapNotFound(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == 404 || apiErr.Code == 410) {
		return models.ErrNotFound
	}
	return err
}

func toRemote(item *calendar.Event) (provider.RemoteEvent, bool) {
	ev := provider.RemoteEvent{
		ExternalID:  item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
	}
	for _, a := range item.Attendees {
		ev.Guests = append(ev.Guests, a.Email)
	}
	if item.Updated != "" {
		ev.Updated, _ = time.Parse(time.RFC3339, item.Updated)
	}

	switch {
	case item.Start == nil || item.End == nil:
		return ev, false
	case item.Start.DateTime != "":
		var err error
		if ev.Start, err = time.Parse(time.RFC3339, item.Start.DateTime); err != nil {
			return ev, false
		}
		if ev.End, err = time.Parse(time.RFC3339, item.End.DateTime); err != nil {
			return ev, false
		}
	default:
		// All-day events carry dates only; Google's End date is exclusive.
		start, err := time.Parse("2006-01-02", item.Start.Date)
		if err != nil {
			return ev, false
		}
		end, err := time.Parse("2006-01-02", item.End.Date)
		if err != nil {
			return ev, false
		}
		ev.Start, ev.End = start, end.AddDate(0, 0, -1)
		ev.AllDay = true
	}
	return ev, true
}

func fromRemote(ev provider.RemoteEvent) *calendar.Event {
	out := &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
	}
	for _, g := range ev.Guests {
		out.Attendees = append(out.Attendees, &calendar.EventAttendee{Email: g})
	}
	if ev.AllDay {
		out.Start = &calendar.EventDateTime{Date: ev.Start.Format("2006-01-02")}
		out.End = &calendar.EventDateTime{Date: ev.End.AddDate(0, 0, 1).Format("2006-01-02")}
	} else {
		out.Start = &calendar.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)}
		out.End = &calendar.EventDateTime{DateTime: ev.End.Format(time.RFC3339)}
	}
	return out
}

// OAuthConfig exposes the OAuth2 config for the interactive auth flow.
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return oauthConfig(clientID, clientSecret)
}

func oauthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
		Scopes:       []string{calendar.CalendarEventsScope},
		Endpoint:     googleoauth.Endpoint,
	}
}

// Exchange trades an authorization code for a token.
func Exchange(ctx context.Context, config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(ctx, authCode)
}

// SaveToken writes a token to path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}
