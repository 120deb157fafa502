// Package notifications sends kickoff alerts for today's matches.
//
// Pipeline per tick: load matches → fire check → for each eligible user
// segment → select template → track link → render → personalize → deliver
// on every supported channel → record history.
package notifications

import (
	"errors"
	"math"
	"slices"
	"strconv"
	"time"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Minutes before kickoff at which an alert fires.
var firePoints = []int{60, 30, 5}

const (
	StatusScheduled = "scheduled"
	StatusLive      = "live"
	StatusHalftime  = "halftime"
	StatusFinished  = "finished"
)

const (
	fallbackUserID = "fallback-user"
	historyWindow  = 30 * 24 * time.Hour
)

var (
	// ErrNoTemplate is returned when a timing bucket has no candidates.
	ErrNoTemplate = errors.New("no template for timing bucket")
	// ErrUnknownTemplate is returned for a template id not in the registry.
	ErrUnknownTemplate = errors.New("unknown template")
)

// --------------------------------------------------------------------------
// Enumerations
// --------------------------------------------------------------------------

// Segment is a heuristic engagement class derived from notification history.
type Segment string

const (
	SegmentNew       Segment = "new"
	SegmentEngaged   Segment = "engaged"
	SegmentReturning Segment = "returning"
	SegmentVIP       Segment = "vip"
)

// Importance is the match tier used for viewer counts and analytics.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

// Urgency is a template's declared urgency level.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Preference is a user's notification intensity.
type Preference string

const (
	PreferenceMinimal    Preference = "minimal"
	PreferenceStandard   Preference = "standard"
	PreferenceAggressive Preference = "aggressive"
)

// Bucket is a timing window that templates belong to.
type Bucket string

const (
	Bucket60       Bucket = "60min"
	Bucket30       Bucket = "30min"
	Bucket5        Bucket = "5min"
	BucketHalftime Bucket = "halftime"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Match is the subset of a matches row the alert pipeline reads.
type Match struct {
	ID          string
	Slug        string
	EventID     string
	HomeTeam    string
	AwayTeam    string
	League      string
	Kickoff     time.Time
	Status      string
	PaymentLink string
}

// User is an alert recipient with at least one contact channel.
type User struct {
	ID               string
	Phone            string
	TelegramID       string
	Email            string
	EmailEnabled     bool
	EmailVerified    bool
	UnsubscribeToken string
	PreferredTeams   []string
	PreferredLeagues []string
	Preference       Preference
}

// Profile is the per-send view of a user used for selection and rewriting.
type Profile struct {
	UserID         string
	Segment        Segment
	PreferredTeams []string
	Preference     Preference
}

// ProfileFor builds a profile, defaulting the intensity to standard.
func ProfileFor(u User, seg Segment) Profile {
	pref := u.Preference
	if pref == "" {
		pref = PreferenceStandard
	}
	return Profile{
		UserID:         u.ID,
		Segment:        seg,
		PreferredTeams: u.PreferredTeams,
		Preference:     pref,
	}
}

// Data holds the values substituted into a template.
type Data struct {
	HomeTeam    string
	AwayTeam    string
	League      string
	MinutesLeft int
	MatchSlug   string
	PaymentLink string
	MatchLink   string
	ViewerCount int
	Segment     Segment
	Importance  Importance
	IsHalftime  bool
	Channel     string
	KickoffTime string
}

// --------------------------------------------------------------------------
// Timing
// --------------------------------------------------------------------------

// MinutesLeft rounds the time to kickoff to whole minutes, halves rounding up.
func MinutesLeft(kickoff, now time.Time) int {
	return int(math.Floor(kickoff.Sub(now).Minutes() + 0.5))
}

// ShouldFire reports whether an alert is due. Exact minute matches only, so
// a tick that lands between fire points skips them.
func ShouldFire(minutesLeft int, status string) bool {
	return status == StatusHalftime || slices.Contains(firePoints, minutesLeft)
}

// BucketFor maps the time to kickoff onto an inclusive timing bucket.
func BucketFor(minutesLeft int, halftime bool) Bucket {
	switch {
	case halftime:
		return BucketHalftime
	case minutesLeft <= 5:
		return Bucket5
	case minutesLeft <= 30:
		return Bucket30
	default:
		return Bucket60
	}
}

// EmailTemplateID returns the email catalog id for a timing bucket.
func EmailTemplateID(b Bucket) string {
	switch b {
	case BucketHalftime:
		return "match_halftime"
	case Bucket5:
		return "match_alert_5min"
	case Bucket30:
		return "match_alert_30min"
	default:
		return "match_alert_60min"
	}
}

// PushTitle builds the push notification title for a template urgency.
func PushTitle(u Urgency, home, away string, minutesLeft int) string {
	switch u {
	case UrgencyCritical:
		return "🚨 " + home + " vs " + away + " - STARTING NOW!"
	case UrgencyHigh:
		return "⚡ " + home + " vs " + away + " - " + strconv.Itoa(minutesLeft) + " MIN WARNING"
	default:
		return "🔥 " + home + " vs " + away
	}
}
