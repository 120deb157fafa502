// Package live polls in-play matches for score and status changes and
// broadcasts goal alerts to Telegram.
package live

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/albapepper/kickoff-alerts/internal/provider"
)

// Normalized match statuses written back to the matches table.
const (
	StatusScheduled = "scheduled"
	StatusLive      = "live"
	StatusHalftime  = "halftime"
	StatusFinished  = "finished"
)

// Upstream status codes.
const (
	codeSecondHalf = 7
	codeHalftime   = 31
)

// Score is the live state of one event.
type Score struct {
	Home    int
	Away    int
	Status  string
	Minute  int
	Running bool
}

type eventResponse struct {
	Event *struct {
		HomeScore struct {
			Current int `json:"current"`
		} `json:"homeScore"`
		AwayScore struct {
			Current int `json:"current"`
		} `json:"awayScore"`
		Status eventStatus `json:"status"`
		Time   struct {
			CurrentPeriodStartTimestamp int64 `json:"currentPeriodStartTimestamp"`
		} `json:"time"`
	} `json:"event"`
}

type eventStatus struct {
	Code        int    `json:"code"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ScoreClient reads live event state from the score API.
type ScoreClient struct {
	http *provider.Client
	now  func() time.Time
}

// NewScoreClient creates a score client over a rate-limited provider client.
func NewScoreClient(c *provider.Client) *ScoreClient {
	return &ScoreClient{http: c, now: time.Now}
}

// Fetch returns the live score for eventID.
func (c *ScoreClient) Fetch(ctx context.Context, eventID string) (*Score, error) {
	var resp eventResponse
	if err := c.http.GetJSON(ctx, "/api/v1/event/"+eventID, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch event %s: %w", eventID, err)
	}
	if resp.Event == nil {
		return nil, fmt.Errorf("event %s: empty response", eventID)
	}
	ev := resp.Event

	minute := 0
	if start := ev.Time.CurrentPeriodStartTimestamp; start > 0 {
		minute = int((c.now().Unix() - start) / 60)
		if ev.Status.Type == "inprogress" && ev.Status.Code == codeSecondHalf {
			minute += 45
		}
	}

	return &Score{
		Home:    ev.HomeScore.Current,
		Away:    ev.AwayScore.Current,
		Status:  NormalizeStatus(ev.Status.Type, ev.Status.Code, ev.Status.Description),
		Minute:  max(minute, 0),
		Running: ev.Status.Type == "inprogress",
	}, nil
}

// NormalizeStatus maps an upstream status onto the matches lifecycle. It
// returns "" for statuses that carry no lifecycle change (postponed,
// cancelled, unknown).
func NormalizeStatus(typ string, code int, description string) string {
	if code == codeHalftime || strings.EqualFold(strings.TrimSpace(description), "halftime") {
		return StatusHalftime
	}
	switch strings.ToLower(typ) {
	case "inprogress":
		return StatusLive
	case "finished":
		return StatusFinished
	case "notstarted":
		return StatusScheduled
	default:
		return ""
	}
}
