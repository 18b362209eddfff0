package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"plancal/internal/models"
)

// RESTProvider talks to a calendar service exposing the plain events API:
//
//	GET    {base}/events?start=<RFC3339>&end=<RFC3339>
//	POST   {base}/events
//	PUT    {base}/events/{externalId}
//	DELETE {base}/events/{externalId}
//
// Authentication is a bearer token supplied by an oauth2.TokenSource, which
// keeps the token refreshed without this client knowing the grant flow.
type RESTProvider struct {
	name    models.Source
	baseURL string
	client  *http.Client
}

var _ Provider = (*RESTProvider)(nil)

// NewRESTProvider builds a client for the events API at baseURL. ts may be
// nil for unauthenticated endpoints (tests, local fixtures).
func NewRESTProvider(name models.Source, baseURL string, ts oauth2.TokenSource) *RESTProvider {
	client := &http.Client{Timeout: 15 * time.Second}
	if ts != nil {
		client = oauth2.NewClient(context.Background(), ts)
	}
	return &RESTProvider{name: name, baseURL: baseURL, client: client}
}

func (p *RESTProvider) Name() models.Source { return p.name }

func (p *RESTProvider) List(ctx context.Context, start, end time.Time) ([]RemoteEvent, error) {
	q := url.Values{}
	q.Set("start", start.UTC().Format(time.RFC3339))
	q.Set("end", end.UTC().Format(time.RFC3339))

	var out []RemoteEvent
	if err := p.do(ctx, http.MethodGet, "/events?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("list remote events: %w", err)
	}
	return out, nil
}

func (p *RESTProvider) Create(ctx context.Context, ev RemoteEvent) (string, error) {
	var created RemoteEvent
	if err := p.do(ctx, http.MethodPost, "/events", ev, &created); err != nil {
		return "", fmt.Errorf("create remote event: %w", err)
	}
	if created.ExternalID == "" {
		return "", fmt.Errorf("create remote event: provider returned no external id")
	}
	return created.ExternalID, nil
}

func (p *RESTProvider) Update(ctx context.Context, externalID string, ev RemoteEvent) error {
	if err := p.do(ctx, http.MethodPut, "/events/"+url.PathEscape(externalID), ev, nil); err != nil {
		return fmt.Errorf("update remote event %s: %w", externalID, err)
	}
	return nil
}

func (p *RESTProvider) Delete(ctx context.Context, externalID string) error {
	if err := p.do(ctx, http.MethodDelete, "/events/"+url.PathEscape(externalID), nil, nil); err != nil {
		return fmt.Errorf("delete remote event %s: %w", externalID, err)
	}
	return nil
}

func (p *RESTProvider) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("provider returned %s: %s", resp.Status, snippet)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
