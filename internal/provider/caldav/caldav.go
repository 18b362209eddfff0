// Package caldav implements the provider contract against a CalDAV server.
package caldav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"plancal/internal/models"
	"plancal/internal/provider"
)

// SourceName tags events imported over CalDAV.
const SourceName = models.Source("caldav")

// basicAuthTransport adds Basic Auth and a client identifier to each request.
type basicAuthTransport struct {
	username  string
	password  string
	transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	req.Header.Set("User-Agent", "plancal/1.0")
	return t.transport.RoundTrip(req)
}

// Client is a Provider backed by one CalDAV calendar collection.
type Client struct {
	caldavClient *caldav.Client
	webdavClient *webdav.Client
	logger       *slog.Logger
	endpoint     string
	calendarPath string
}

var _ provider.Provider = (*Client)(nil)

// New discovers the named calendar on the server and returns a client bound
// to it.
func New(ctx context.Context, logger *slog.Logger, endpoint, username, password, calendarName string) (*Client, error) {
	httpClient := &http.Client{Transport: &basicAuthTransport{
		username:  username,
		password:  password,
		transport: http.DefaultTransport,
	}}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	webdavClient, err := webdav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}

	c := &Client{
		caldavClient: caldavClient,
		webdavClient: webdavClient,
		logger:       logger,
		endpoint:     endpoint,
	}
	calendarPath, err := c.findCalendar(ctx, calendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar %q: %w", calendarName, err)
	}
	c.calendarPath = calendarPath
	logger.Info("bound to caldav calendar", "path", calendarPath)
	return c, nil
}

func (c *Client) Name() models.Source { return SourceName }

// List runs a calendar-query REPORT limited to the window.
func (c *Client) List(ctx context.Context, start, end time.Time) ([]provider.RemoteEvent, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name: ical.CompCalendar,
			Comps: []caldav.CalendarCompRequest{{
				Name:     ical.CompEvent,
				AllProps: true,
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: start.UTC(),
				End:   end.UTC(),
			}},
		},
	}

	objects, err := c.caldavClient.QueryCalendar(ctx, c.calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("calendar query failed: %w", err)
	}

	var out []provider.RemoteEvent
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		for _, ev := range obj.Data.Events() {
			remote, ok := toRemote(ev, obj.ModTime)
			if !ok {
				continue
			}
			out = append(out, remote)
		}
	}
	c.logger.Debug("fetched caldav events", "count", len(out))
	return out, nil
}

func (c *Client) Create(ctx context.Context, ev provider.RemoteEvent) (string, error) {
	uid := uuid.New().String()
	if _, err := c.caldavClient.PutCalendarObject(ctx, c.objectPath(uid), buildCalendar(uid, ev)); err != nil {
		return "", fmt.Errorf("failed to create event on caldav server: %w", err)
	}
	return uid, nil
}

func (c *Client) Update(ctx context.Context, externalID string, ev provider.RemoteEvent) error {
	if _, err := c.caldavClient.PutCalendarObject(ctx, c.objectPath(externalID), buildCalendar(externalID, ev)); err != nil {
		return fmt.Errorf("failed to update event %s: %w", externalID, err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, externalID string) error {
	err := c.webdavClient.RemoveAll(ctx, c.objectPath(externalID))
	if err != nil {
		var httpErr *webdav.HTTPError
		if errors.As(err, &httpErr) && httpErr.Code == http.StatusNotFound {
			return models.ErrNotFound
		}
		return fmt.Errorf("failed to delete event %s: %w", externalID, err)
	}
	return nil
}

func (c *Client) objectPath(uid string) string {
	return path.Join(c.calendarPath, uid+".ics")
}

func buildCalendar(uid string, ev provider.RemoteEvent) *ical.Calendar {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, ev.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, ev.Start)
	ve.Props.SetDateTime(ical.PropDateTimeEnd, ev.End)
	if ev.Description != "" {
		ve.Props.SetText(ical.PropDescription, ev.Description)
	}
	if ev.Location != "" {
		ve.Props.SetText(ical.PropLocation, ev.Location)
	}
	for _, guest := range ev.Guests {
		p := ical.NewProp(ical.PropAttendee)
		p.SetText(fmt.Sprintf("mailto:%s", guest))
		ve.Props.Add(p)
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//plancal//EN")
	cal.Children = append(cal.Children, ve)
	return cal
}

func toRemote(ev ical.Event, modTime time.Time) (provider.RemoteEvent, bool) {
	uid := propValue(ev.Props, ical.PropUID)
	if uid == "" {
		return provider.RemoteEvent{}, false
	}
	start, err := ev.DateTimeStart(time.UTC)
	if err != nil {
		return provider.RemoteEvent{}, false
	}
	end, err := ev.DateTimeEnd(time.UTC)
	if err != nil {
		end = start
	}

	remote := provider.RemoteEvent{
		ExternalID:  uid,
		Title:       propValue(ev.Props, ical.PropSummary),
		Description: propValue(ev.Props, ical.PropDescription),
		Location:    propValue(ev.Props, ical.PropLocation),
		Start:       start,
		End:         end,
		Updated:     modTime,
	}
	for _, p := range ev.Props.Values(ical.PropAttendee) {
		remote.Guests = append(remote.Guests, strings.TrimPrefix(p.Value, "mailto:"))
	}
	if p := ev.Props.Get(ical.PropLastModified); p != nil {
		if t, err := p.DateTime(time.UTC); err == nil {
			remote.Updated = t
		}
	}
	return remote, true
}

func propValue(props ical.Props, name string) string {
	if p := props.Get(name); p != nil {
		return p.Value
	}
	return ""
}

func (c *Client) findCalendar(ctx context.Context, name string) (string, error) {
	principal, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}
	homeSet, err := c.caldavClient.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}
	calendars, err := c.caldavClient.FindCalendars(ctx, homeSet)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}
	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}
	return "", fmt.Errorf("no calendar found with name %q", name)
}
