package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// CalendarEvent describes an appointment to put on the studio calendar.
type CalendarEvent struct {
	Summary        string `json:"summary"`
	Description    string `json:"description"`
	Start          string `json:"start"` // RFC3339
	End            string `json:"end"`
	AttendeeEmail  string `json:"attendee_email,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
}

// CalendarClient creates calendar entries and returns the provider's event id.
// An empty id with a nil error means no calendar is configured.
type CalendarClient interface {
	CreateEvent(ctx context.Context, ev CalendarEvent) (string, error)
}

// HTTPCalendarClient posts events to the calendar bridge service.
type HTTPCalendarClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPCalendarClient(baseURL, token string) *HTTPCalendarClient {
	return &HTTPCalendarClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *HTTPCalendarClient) CreateEvent(ctx context.Context, ev CalendarEvent) (string, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/events", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("calendar returned status %d", resp.StatusCode)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode calendar response: %w", err)
	}
	return out.ID, nil
}

// NoopCalendar is used when no calendar bridge is configured.
type NoopCalendar struct{}

func (NoopCalendar) CreateEvent(context.Context, CalendarEvent) (string, error) { return "", nil }

// slotWindow turns a business-local date and slot ("14:30" or "2:30 PM") into
// an RFC3339 start and end.
func slotWindow(date, slot string, minutes int, loc *time.Location) (string, string, error) {
	if loc == nil {
		loc = time.UTC
	}
	if minutes <= 0 {
		minutes = 60
	}
	slot = strings.TrimSpace(slot)
	var (
		start time.Time
		err   error
	)
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02 3:04 PM", "2006-01-02 3:04PM"} {
		start, err = time.ParseInLocation(layout, date+" "+strings.ToUpper(slot), loc)
		if err == nil {
			break
		}
	}
	if err != nil {
		return "", "", fmt.Errorf("parse slot %q on %q: %w", slot, date, err)
	}
	end := start.Add(time.Duration(minutes) * time.Minute)
	return start.Format(time.RFC3339), end.Format(time.RFC3339), nil
}
