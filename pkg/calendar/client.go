// Package calendar provides the calendar backend client and the
// availability search used by the scheduling agent.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"realtycrm/pkg/agent"
	"realtycrm/pkg/logx"
)

// Attendee is one event participant.
type Attendee struct {
	Email string `json:"email"`
}

// Event is the calendar backend's event representation.
type Event struct {
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	ID          string     `json:"id,omitempty"`
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Status      string     `json:"status,omitempty"`
	Attendees   []Attendee `json:"attendees,omitempty"`
}

// Provider defines the calendar operations the scheduling agent depends on.
// The backend is modeled as an opaque JSON-over-HTTP service.
type Provider interface {
	CreateEvent(ctx context.Context, event *Event) (*Event, error)
	ListEvents(ctx context.Context, from, to time.Time) ([]Event, error)
	UpdateEvent(ctx context.Context, eventID string, event *Event) (*Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// Client talks to the calendar backend.
type Client struct {
	baseURL    string
	calendarID string
	apiKey     string
	httpClient *http.Client
	logger     *logx.Logger
}

// NewClient creates a calendar client for the given backend.
func NewClient(baseURL, calendarID, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		calendarID: calendarID,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logx.NewLogger("calendar"),
	}
}

// CreateEvent books a new event.
func (c *Client) CreateEvent(ctx context.Context, event *Event) (*Event, error) {
	var created Event
	if err := c.doRequest(ctx, http.MethodPost, c.eventsPath(), event, &created); err != nil {
		return nil, err
	}
	c.logger.Info("created event %s (%s)", created.ID, created.Summary)
	return &created, nil
}

// ListEvents returns the events overlapping [from, to).
func (c *Client) ListEvents(ctx context.Context, from, to time.Time) ([]Event, error) {
	query := url.Values{}
	query.Set("time_min", from.UTC().Format(time.RFC3339))
	query.Set("time_max", to.UTC().Format(time.RFC3339))

	var listing struct {
		Items []Event `json:"items"`
	}
	if err := c.doRequest(ctx, http.MethodGet, c.eventsPath()+"?"+query.Encode(), nil, &listing); err != nil {
		return nil, err
	}
	return listing.Items, nil
}

// UpdateEvent moves or edits an existing event.
func (c *Client) UpdateEvent(ctx context.Context, eventID string, event *Event) (*Event, error) {
	var updated Event
	path := c.eventsPath() + "/" + url.PathEscape(eventID)
	if err := c.doRequest(ctx, http.MethodPatch, path, event, &updated); err != nil {
		return nil, err
	}
	c.logger.Info("updated event %s", eventID)
	return &updated, nil
}

// DeleteEvent cancels an event.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	path := c.eventsPath() + "/" + url.PathEscape(eventID)
	return c.doRequest(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) eventsPath() string {
	return fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(c.calendarID))
}

// doRequest executes one JSON round trip. Transport failures classify as
// collaborator-unavailable, non-2xx answers as collaborator-rejected (404
// stays not-found so missing events surface correctly).
func (c *Client) doRequest(ctx context.Context, method, rawURL string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return agent.NewError(agent.ErrorTypeUnavailable, "calendar",
			fmt.Errorf("backend unreachable: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return agent.Errorf(agent.ErrorTypeNotFound, "calendar", "event not found")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return agent.Errorf(agent.ErrorTypeRejected, "calendar",
			"backend returned %d: %s", resp.StatusCode, string(snippet))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return agent.NewError(agent.ErrorTypeRejected, "calendar",
			fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
