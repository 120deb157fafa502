package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/kickoff-alerts/internal/provider"
	"github.com/albapepper/kickoff-alerts/internal/telegram"
)

var pollTime = time.Date(2026, 10, 14, 19, 30, 0, 0, time.UTC)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type update struct {
	slug       string
	home, away int
	status     string
}

type fakeStore struct {
	matches    []Match
	recipients []string
	recipErr   error
	updateErr  error
	updates    []update
}

func (f *fakeStore) LiveMatches(context.Context, time.Time) ([]Match, error) {
	return f.matches, nil
}

func (f *fakeStore) UpdateScore(_ context.Context, slug string, home, away int, status string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, update{slug, home, away, status})
	return nil
}

func (f *fakeStore) TelegramRecipients(context.Context) ([]string, error) {
	return f.recipients, f.recipErr
}

type fakeScores map[string]*Score

func (f fakeScores) Fetch(_ context.Context, eventID string) (*Score, error) {
	s, ok := f[eventID]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", eventID, provider.ErrNotFound)
	}
	return s, nil
}

type alert struct {
	goal       telegram.Goal
	recipients []string
}

type fakeNotifier struct {
	alerts []alert
	err    error
}

func (f *fakeNotifier) BroadcastGoalAlert(_ context.Context, g telegram.Goal, recipients []string) (int, error) {
	f.alerts = append(f.alerts, alert{g, recipients})
	if f.err != nil {
		return 0, f.err
	}
	return len(recipients), nil
}

func siteLink(path string) string { return "https://site.example" + path }

func newTestPoller(store Store, scores ScoreFetcher, n GoalNotifier) *Poller {
	p := NewPoller(store, scores, n, "admin", siteLink, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.now = func() time.Time { return pollTime }
	return p
}

var arsenal = Match{
	Slug: "arsenal-vs-chelsea-2026-10-14", EventID: "100",
	HomeTeam: "Arsenal", AwayTeam: "Chelsea", Status: StatusLive,
}

// ---------------------------------------------------------------------------
// Poller
// ---------------------------------------------------------------------------

func TestPoll_GoalAlertsAdminAndSubscribers(t *testing.T) {
	store := &fakeStore{matches: []Match{arsenal}, recipients: []string{"u1", "admin", "u2"}}
	n := &fakeNotifier{}
	p := newTestPoller(store, fakeScores{"100": {Home: 1, Away: 0, Status: StatusLive, Minute: 23}}, n)

	result, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Goals)
	assert.Equal(t, 3, result.AlertsSent)

	require.Len(t, store.updates, 1)
	assert.Equal(t, update{arsenal.Slug, 1, 0, StatusLive}, store.updates[0])

	require.Len(t, n.alerts, 1)
	assert.Equal(t, []string{"admin", "u1", "u2"}, n.alerts[0].recipients)
	assert.Equal(t, telegram.Goal{
		MatchSlug:   arsenal.Slug,
		HomeTeam:    "Arsenal",
		AwayTeam:    "Chelsea",
		ScoringTeam: "Arsenal",
		Minute:      23,
		Link:        "https://site.example/watch/" + arsenal.Slug,
	}, n.alerts[0].goal)
}

func TestPoll_StatusChangeWithoutGoal(t *testing.T) {
	store := &fakeStore{matches: []Match{arsenal}}
	n := &fakeNotifier{}
	p := newTestPoller(store, fakeScores{"100": {Status: StatusHalftime}}, n)

	result, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Zero(t, result.Goals)
	assert.Empty(t, n.alerts)
	assert.Equal(t, StatusHalftime, store.updates[0].status)
}

func TestPoll_NoChangeNoWrite(t *testing.T) {
	m := arsenal
	m.HomeScore = 2
	store := &fakeStore{matches: []Match{m}}
	p := newTestPoller(store, fakeScores{"100": {Home: 2, Status: ""}}, &fakeNotifier{})

	result, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Fetched)
	assert.Zero(t, result.Updated)
	assert.Empty(t, store.updates)
}

func TestPoll_FetchFailureIsIsolated(t *testing.T) {
	other := Match{Slug: "b", EventID: "200", HomeTeam: "Lyon", AwayTeam: "Nice", Status: StatusLive}
	store := &fakeStore{matches: []Match{arsenal, other}}
	n := &fakeNotifier{}
	p := newTestPoller(store, fakeScores{"200": {Away: 1, Status: StatusLive}}, n)

	result, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Goals)
	require.Len(t, n.alerts, 1)
	assert.Equal(t, "Nice", n.alerts[0].goal.ScoringTeam)
}

func TestPoll_RecipientErrorStillAlertsAdmin(t *testing.T) {
	store := &fakeStore{matches: []Match{arsenal}, recipErr: errors.New("db down")}
	n := &fakeNotifier{}
	p := newTestPoller(store, fakeScores{"100": {Home: 1, Status: StatusLive}}, n)

	result, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Errors, 1)
	require.Len(t, n.alerts, 1)
	assert.Equal(t, []string{"admin"}, n.alerts[0].recipients)
}

func TestPoll_UpdateFailureSkipsAlert(t *testing.T) {
	store := &fakeStore{matches: []Match{arsenal}, updateErr: errors.New("conflict")}
	n := &fakeNotifier{}
	p := newTestPoller(store, fakeScores{"100": {Home: 1, Status: StatusLive}}, n)

	result, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Errors, 1)
	assert.Empty(t, n.alerts)
}

func TestScoringTeam(t *testing.T) {
	assert.Equal(t, "Arsenal", scoringTeam(arsenal, &Score{Home: 1}))
	assert.Equal(t, "Chelsea", scoringTeam(arsenal, &Score{Away: 1}))
	assert.Equal(t, "Unknown", scoringTeam(Match{HomeScore: 1, HomeTeam: "A"}, &Score{Home: 0}))
}

func TestPollResult_Summary(t *testing.T) {
	r := &PollResult{Matches: 2, Fetched: 2, Updated: 1, Goals: 1, AlertsSent: 3, Errors: []string{"x"}}
	assert.Equal(t, "matches=2 fetched=2 updated=1 goals=1 alerts=3 errors=1", r.Summary())
}

// ---------------------------------------------------------------------------
// Score client
// ---------------------------------------------------------------------------

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		typ  string
		code int
		desc string
		want string
	}{
		{"inprogress", 31, "Halftime", StatusHalftime},
		{"inprogress", 0, "halftime", StatusHalftime},
		{"inprogress", 6, "1st half", StatusLive},
		{"inprogress", 7, "2nd half", StatusLive},
		{"finished", 100, "Ended", StatusFinished},
		{"notstarted", 0, "Not started", StatusScheduled},
		{"postponed", 60, "Postponed", ""},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeStatus(tt.typ, tt.code, tt.desc))
		})
	}
}

func TestScoreClient_Fetch(t *testing.T) {
	periodStart := pollTime.Add(-20 * time.Minute).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/event/100":
			fmt.Fprintf(w, `{"event":{"homeScore":{"current":2},"awayScore":{"current":1},
				"status":{"code":7,"type":"inprogress","description":"2nd half"},
				"time":{"currentPeriodStartTimestamp":%d}}}`, periodStart)
		case "/api/v1/event/200":
			_, _ = w.Write([]byte(`{}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewScoreClient(provider.NewClient(srv.URL, 6000, time.Second, nil))
	c.now = func() time.Time { return pollTime }
	ctx := context.Background()

	s, err := c.Fetch(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, &Score{Home: 2, Away: 1, Status: StatusLive, Minute: 65, Running: true}, s)

	_, err = c.Fetch(ctx, "200")
	assert.Error(t, err)

	_, err = c.Fetch(ctx, "300")
	assert.ErrorIs(t, err, provider.ErrNotFound)
}
