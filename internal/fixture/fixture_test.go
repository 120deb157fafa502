package fixture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/kickoff-alerts/internal/provider"
)

var importTime = time.Date(2026, 10, 14, 9, 15, 0, 0, time.UTC)

func event(id int64, league, home, away string, start time.Time, statusType string, code int) Event {
	var e Event
	e.ID = id
	e.Tournament.Name = league
	e.HomeTeam.Name = home
	e.AwayTeam.Name = away
	e.StartTimestamp = start.Unix()
	e.Status.Type = statusType
	e.Status.Code = code
	return e
}

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeSource struct {
	mu         sync.Mutex
	byDate     map[string][]Event
	failDates  map[string]bool
	highlights []Highlight
	requested  []string
}

func (f *fakeSource) ScheduledEvents(_ context.Context, day time.Time) ([]Event, error) {
	date := day.Format(time.DateOnly)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, date)
	if f.failDates[date] {
		return nil, fmt.Errorf("scheduled events %s: boom", date)
	}
	return f.byDate[date], nil
}

func (f *fakeSource) Highlights(context.Context) ([]Highlight, error) {
	return f.highlights, nil
}

type fakeStore struct {
	upserts   []Match
	links     map[string]Links
	upsertErr error
}

func (f *fakeStore) UpsertMatch(_ context.Context, m Match) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, m)
	return nil
}

func (f *fakeStore) SetLinks(_ context.Context, slug string, l Links) error {
	if f.links == nil {
		f.links = make(map[string]Links)
	}
	f.links[slug] = l
	return nil
}

func newTestImporter(src Source, store Store) *Importer {
	im := NewImporter(src, store, "https://checkout.example/pricing", "https://site.example/api/trial/start",
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	im.now = func() time.Time { return importTime }
	return im
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func TestSlug(t *testing.T) {
	kickoff := time.Date(2026, 10, 14, 19, 0, 0, 0, time.UTC)
	assert.Equal(t, "arsenal-vs-chelsea-2026-10-14", Slug("Arsenal", "Chelsea", kickoff))
	assert.Equal(t, "paris-saint-germain-vs-ol-2026-10-14", Slug("Paris Saint-Germain", "OL", kickoff))
	assert.Equal(t, "1-fc-k-ln-vs-fc-bayern-m-nchen-2026-10-14", Slug("1. FC Köln", "FC Bayern München", kickoff))
	assert.Equal(t, "a-vs-b-2026-10-14", Slug("  A!", "B?", kickoff))
}

func TestNotStarted(t *testing.T) {
	start := importTime.Add(time.Hour)
	assert.True(t, event(1, "Serie A", "a", "b", start, "notstarted", 0).NotStarted())
	assert.True(t, event(1, "Serie A", "a", "b", start, "", 0).NotStarted())
	assert.False(t, event(1, "Serie A", "a", "b", start, "inprogress", 6).NotStarted())
	assert.False(t, event(1, "Serie A", "a", "b", start, "finished", 100).NotStarted())
}

func TestFindEmbed(t *testing.T) {
	highlights := []Highlight{
		{Title: "Liverpool - Everton", Embed: "<iframe 1>"},
		{Title: "ARSENAL - CHELSEA", Embed: "<iframe 2>"},
	}
	assert.Equal(t, "<iframe 2>", FindEmbed(highlights, "Arsenal", "Chelsea"))
	assert.Empty(t, FindEmbed(highlights, "Arsenal", "Spurs"))
	assert.Empty(t, FindEmbed(nil, "Arsenal", "Chelsea"))
}

func TestNewMatch(t *testing.T) {
	kickoff := time.Date(2026, 10, 15, 18, 45, 0, 0, time.UTC)
	m := NewMatch(event(12345, "Champions League", "Inter", "Ajax", kickoff, "notstarted", 0))
	assert.Equal(t, Match{
		Slug:     "inter-vs-ajax-2026-10-15",
		EventID:  "12345",
		HomeTeam: "Inter",
		AwayTeam: "Ajax",
		League:   "Champions League",
		Kickoff:  kickoff,
	}, m)

	assert.Empty(t, NewMatch(event(0, "x", "a", "b", kickoff, "", 0)).EventID)
}

// ---------------------------------------------------------------------------
// Importer
// ---------------------------------------------------------------------------

func TestImport_FiltersAndUpserts(t *testing.T) {
	kickoff := importTime.Add(10 * time.Hour)
	tomorrow := importTime.AddDate(0, 0, 1)
	src := &fakeSource{
		byDate: map[string][]Event{
			"2026-10-14": {
				event(1, "Premier League", "Arsenal", "Chelsea", kickoff, "notstarted", 0),
				event(2, "Premier League", "Spurs", "Everton", importTime, "inprogress", 6),
				event(3, "Regionalliga", "X", "Y", kickoff, "notstarted", 0),
			},
			"2026-10-15": {
				event(4, "Serie A", "Roma", "Lazio", tomorrow, "notstarted", 0),
			},
		},
		failDates:  map[string]bool{"2026-10-16": true},
		highlights: []Highlight{{Title: "Arsenal vs Chelsea", Embed: "<embed>"}},
	}
	store := &fakeStore{}

	result := newTestImporter(src, store).Import(context.Background(), 3)

	assert.ElementsMatch(t, []string{"2026-10-14", "2026-10-15", "2026-10-16"}, src.requested)
	assert.Equal(t, 4, result.Events)
	assert.Equal(t, 3, result.Included)
	assert.Equal(t, 1, result.Started)
	assert.Equal(t, 2, result.Upserted)
	assert.Equal(t, 1, result.Highlights)
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, []TournamentCount{{"Regionalliga", 1}}, result.Filtered())

	// Upserts follow date order.
	require.Len(t, store.upserts, 2)
	assert.Equal(t, "arsenal-vs-chelsea-2026-10-14", store.upserts[0].Slug)
	assert.Equal(t, "roma-vs-lazio-2026-10-15", store.upserts[1].Slug)

	assert.Equal(t, Links{
		Embed:    "<embed>",
		Checkout: "https://checkout.example/pricing",
		Trial:    "https://site.example/api/trial/start",
	}, store.links["arsenal-vs-chelsea-2026-10-14"])
	assert.Empty(t, store.links["roma-vs-lazio-2026-10-15"].Embed)
}

func TestImport_UpsertFailureContinues(t *testing.T) {
	src := &fakeSource{byDate: map[string][]Event{
		"2026-10-14": {
			event(1, "Ligue 1", "Lyon", "Nice", importTime.Add(time.Hour), "notstarted", 0),
			event(2, "Ligue 1", "Lens", "Lille", importTime.Add(time.Hour), "notstarted", 0),
		},
	}}
	store := &fakeStore{upsertErr: errors.New("conn reset")}

	result := newTestImporter(src, store).Import(context.Background(), 1)
	assert.Zero(t, result.Upserted)
	assert.Len(t, result.Errors, 2)
	assert.Empty(t, store.links)
}

func TestImport_DefaultDays(t *testing.T) {
	src := &fakeSource{}
	result := newTestImporter(src, &fakeStore{}).Import(context.Background(), 0)
	assert.Equal(t, defaultDays, result.Days)
	assert.Len(t, src.requested, defaultDays)
}

func TestImportResult_Summary(t *testing.T) {
	r := &ImportResult{Days: 2, Events: 5, Included: 4, Started: 1, Upserted: 3, Highlights: 1,
		Errors: []string{"x"}, Duration: 1500 * time.Microsecond}
	assert.Equal(t, "days=2 events=5 included=4 started=1 upserted=3 highlights=1 errors=1 dur=2ms", r.Summary())
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

func TestClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/football/events/scheduled", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-10-14", r.URL.Query().Get("date"))
		_, _ = w.Write([]byte(`{"data":{"events":[{"id":7,"tournament":{"name":"La Liga"},
			"status":{"code":0,"type":"notstarted"},"homeTeam":{"name":"Betis"},
			"awayTeam":{"name":"Sevilla"},"startTimestamp":1792008000}]}}`))
	})
	mux.HandleFunc("/video-api/v3/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response":[{"title":"Betis - Sevilla","embed":"<div>"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(provider.NewClient(srv.URL, 6000, time.Second, nil), srv.URL+"/video-api/v3/")
	ctx := context.Background()

	events, err := c.ScheduledEvents(ctx, importTime)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(7), events[0].ID)
	assert.Equal(t, "La Liga", events[0].Tournament.Name)
	assert.True(t, events[0].NotStarted())
	assert.Equal(t, time.Unix(1792008000, 0).UTC(), events[0].Kickoff())

	highlights, err := c.Highlights(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Highlight{{Title: "Betis - Sevilla", Embed: "<div>"}}, highlights)

	none, err := NewClient(provider.NewClient(srv.URL, 6000, time.Second, nil), "").Highlights(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)
}
