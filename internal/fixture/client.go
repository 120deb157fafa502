package fixture

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/albapepper/kickoff-alerts/internal/provider"
)

// Client reads the scheduled-events and highlights feeds.
type Client struct {
	events        *provider.Client
	highlightsURL string
}

// NewClient creates a client. events is rooted at the fixtures API;
// highlightsURL is an absolute feed URL and may be empty.
func NewClient(events *provider.Client, highlightsURL string) *Client {
	return &Client{events: events, highlightsURL: highlightsURL}
}

type scheduledResponse struct {
	Data struct {
		Events []Event `json:"events"`
	} `json:"data"`
}

// ScheduledEvents returns every event scheduled on day's UTC date.
func (c *Client) ScheduledEvents(ctx context.Context, day time.Time) ([]Event, error) {
	date := day.UTC().Format(time.DateOnly)
	var resp scheduledResponse
	err := c.events.GetJSON(ctx, "/football/events/scheduled", url.Values{"date": {date}}, &resp)
	if err != nil {
		return nil, fmt.Errorf("scheduled events %s: %w", date, err)
	}
	return resp.Data.Events, nil
}

type highlightsResponse struct {
	Response []Highlight `json:"response"`
}

// Highlights returns the current highlights feed.
func (c *Client) Highlights(ctx context.Context) ([]Highlight, error) {
	if c.highlightsURL == "" {
		return nil, nil
	}
	var resp highlightsResponse
	if err := c.events.GetJSON(ctx, c.highlightsURL, nil, &resp); err != nil {
		return nil, fmt.Errorf("highlights: %w", err)
	}
	return resp.Response, nil
}
