package notifications

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

var whitespaceRun = regexp.MustCompile(`\s+`)

// Tracker builds attribution query strings for outbound links.
type Tracker struct {
	rng *Rand
	now func() time.Time
}

// NewTracker creates a tracker. now may be nil.
func NewTracker(rng *Rand, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{rng: rng, now: now}
}

// Params builds the tracking parameters for one send. Every call mints a
// fresh session id. userID may be empty.
func (tr *Tracker) Params(t Template, d Data, userID string) url.Values {
	now := tr.now()
	millis := now.UnixMilli()

	medium := d.Channel
	if medium == "" {
		medium = "push"
	}
	notificationType := "pre_match"
	if d.MinutesLeft == 0 {
		notificationType = "halftime"
	}
	variant := "default"
	if parts := strings.Split(t.ID, "_"); len(parts) > 1 && parts[1] != "" {
		variant = parts[1]
	}

	v := url.Values{}
	v.Set("utm_source", "notification")
	v.Set("utm_medium", medium)
	v.Set("utm_campaign", "match_alert_"+strconv.Itoa(d.MinutesLeft)+"min")
	v.Set("utm_content", t.ID)
	v.Set("utm_term", strings.Join(t.Triggers, "_"))

	v.Set("template_id", t.ID)
	v.Set("template_name", underscored(t.Name))
	v.Set("psychology", strings.Join(t.Triggers, ","))
	v.Set("urgency", string(t.Urgency))

	v.Set("viewer_count", strconv.Itoa(d.ViewerCount))
	v.Set("user_segment", string(d.Segment))
	v.Set("match_importance", string(d.Importance))

	v.Set("session_id", strconv.FormatInt(millis, 10)+"_"+tr.suffix(9))
	v.Set("timestamp", strconv.FormatInt(millis, 10))
	v.Set("notification_type", notificationType)

	v.Set("variant", variant)
	v.Set("test_group", string(d.Segment))

	v.Set("match_teams", underscored(d.HomeTeam+"_vs_"+d.AwayTeam))
	v.Set("kickoff_time", d.KickoffTime)

	v.Set("alert_timing", strconv.Itoa(d.MinutesLeft))
	v.Set("day_of_week", strconv.Itoa(int(now.Weekday())))
	v.Set("hour_of_day", strconv.Itoa(now.Hour()))

	if userID != "" {
		v.Set("user_id", userID)
	}
	return v
}

func (tr *Tracker) suffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = base36[tr.rng.IntN(len(base36))]
	}
	return string(b)
}

// TrackedLink appends params to link.
func TrackedLink(link string, params url.Values) string {
	sep := "?"
	if strings.Contains(link, "?") {
		sep = "&"
	}
	return link + sep + params.Encode()
}

// underscored lowercases s and replaces each whitespace run with "_".
func underscored(s string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(s), "_")
}
