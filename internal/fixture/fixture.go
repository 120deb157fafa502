// Package fixture imports upcoming fixtures from the scheduled-events API
// into the matches table. Events outside the supported tournaments, or that
// have already started, are skipped. Each imported match gets a stable slug
// and its checkout, trial and highlight links.
package fixture

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultDays    = 14
	defaultWorkers = 2
)

// TopLeagues is the tournament allow-list, keyed by the API's exact names.
var TopLeagues = map[string]bool{
	// England
	"Premier League":   true,
	"Championship":     true,
	"League One":       true,
	"League Two":       true,
	"FA Cup":           true,
	"EFL Cup":          true,
	"Community Shield": true,

	// Spain
	"La Liga":          true,
	"Segunda División": true,
	"Copa del Rey":     true,

	// Italy
	"Serie A":      true,
	"Serie B":      true,
	"Coppa Italia": true,

	// Germany
	"Bundesliga":    true,
	"2. Bundesliga": true,
	"DFB Pokal":     true,

	// France
	"Ligue 1":         true,
	"Ligue 2":         true,
	"Coupe de France": true,

	// Europe
	"Champions League":         true,
	"Europa League":            true,
	"Europa Conference League": true,

	// Netherlands
	"VriendenLoterij Eredivisie": true,
	"Keuken Kampioen Divisie":    true,
	"KNVB Cup":                   true,

	// Portugal
	"Liga Portugal Betclic": true,
	"Liga Portugal 2":       true,
	"Taça de Portugal":      true,

	// Other
	"Scottish Premiership":     true,
	"Belgian Pro League":       true,
	"Turkish Süper Lig":        true,
	"Russian Premier League":   true,
	"Ukrainian Premier League": true,
}

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Event is one scheduled event from the fixtures API.
type Event struct {
	ID         int64 `json:"id"`
	Tournament struct {
		Name string `json:"name"`
	} `json:"tournament"`
	Status struct {
		Code int    `json:"code"`
		Type string `json:"type"`
	} `json:"status"`
	HomeTeam struct {
		Name string `json:"name"`
	} `json:"homeTeam"`
	AwayTeam struct {
		Name string `json:"name"`
	} `json:"awayTeam"`
	StartTimestamp int64 `json:"startTimestamp"`
}

// NotStarted reports whether the event is still upcoming.
func (e Event) NotStarted() bool {
	return e.Status.Type == "notstarted" || e.Status.Code == 0
}

// Kickoff returns the event start in UTC.
func (e Event) Kickoff() time.Time {
	return time.Unix(e.StartTimestamp, 0).UTC()
}

// Highlight is one entry of the highlights feed.
type Highlight struct {
	Title string `json:"title"`
	Embed string `json:"embed"`
}

// Match is the row written for an imported event.
type Match struct {
	Slug     string
	EventID  string
	HomeTeam string
	AwayTeam string
	League   string
	Kickoff  time.Time
}

// NewMatch converts an event into a match row.
func NewMatch(e Event) Match {
	kickoff := e.Kickoff()
	m := Match{
		Slug:     Slug(e.HomeTeam.Name, e.AwayTeam.Name, kickoff),
		HomeTeam: e.HomeTeam.Name,
		AwayTeam: e.AwayTeam.Name,
		League:   e.Tournament.Name,
		Kickoff:  kickoff,
	}
	if e.ID != 0 {
		m.EventID = strconv.FormatInt(e.ID, 10)
	}
	return m
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug derives the stable match slug from "home vs away YYYY-MM-DD".
func Slug(home, away string, kickoff time.Time) string {
	s := strings.ToLower(home + " vs " + away + " " + kickoff.UTC().Format(time.DateOnly))
	return strings.Trim(nonSlug.ReplaceAllString(s, "-"), "-")
}

// FindEmbed returns the embed of the first highlight whose title contains
// both team names, or "".
func FindEmbed(highlights []Highlight, home, away string) string {
	home, away = strings.ToLower(home), strings.ToLower(away)
	for _, h := range highlights {
		t := strings.ToLower(h.Title)
		if strings.Contains(t, home) && strings.Contains(t, away) {
			return h.Embed
		}
	}
	return ""
}

// --------------------------------------------------------------------------
// Results
// --------------------------------------------------------------------------

// ImportResult tracks one import run.
type ImportResult struct {
	Days        int
	Events      int
	Included    int
	Started     int
	Upserted    int
	Highlights  int
	Tournaments map[string]int
	Duration    time.Duration
	Errors      []string
}

// Summary returns a human-readable summary.
func (r *ImportResult) Summary() string {
	return fmt.Sprintf(
		"days=%d events=%d included=%d started=%d upserted=%d highlights=%d errors=%d dur=%s",
		r.Days, r.Events, r.Included, r.Started, r.Upserted, r.Highlights,
		len(r.Errors), r.Duration.Round(time.Millisecond))
}

// TournamentCount is an event count for one tournament.
type TournamentCount struct {
	Name  string
	Count int
}

// Filtered returns the tournaments left out of the run, most frequent first.
func (r *ImportResult) Filtered() []TournamentCount {
	var out []TournamentCount
	for name, n := range r.Tournaments {
		if !TopLeagues[name] {
			out = append(out, TournamentCount{name, n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
