package fixture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Source provides scheduled events and highlights.
type Source interface {
	ScheduledEvents(ctx context.Context, day time.Time) ([]Event, error)
	Highlights(ctx context.Context) ([]Highlight, error)
}

// Links are the per-match links written after the upsert.
type Links struct {
	Embed    string
	Checkout string
	Trial    string
}

// Importer fetches upcoming fixtures and writes them to the store.
type Importer struct {
	source   Source
	store    Store
	checkout string
	trial    string
	workers  int
	now      func() time.Time
	logger   *slog.Logger
}

// NewImporter creates an importer. checkout and trial are written to every
// imported match.
func NewImporter(source Source, store Store, checkout, trial string, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		source:   source,
		store:    store,
		checkout: checkout,
		trial:    trial,
		workers:  defaultWorkers,
		now:      time.Now,
		logger:   logger,
	}
}

type dayEvents struct {
	day    time.Time
	events []Event
	err    error
}

// Import fetches the next days (starting today) and upserts every upcoming
// event from a supported tournament. One failing day or row never aborts
// the run.
func (im *Importer) Import(ctx context.Context, days int) *ImportResult {
	start := time.Now()
	if days < 1 {
		days = defaultDays
	}
	result := &ImportResult{Days: days, Tournaments: make(map[string]int)}

	fetched := im.fetchDays(ctx, days)
	for _, d := range fetched {
		if d.err != nil {
			result.Errors = append(result.Errors, d.err.Error())
			im.logger.Warn("Fixture fetch failed", "date", d.day.Format(time.DateOnly), "error", d.err)
			continue
		}
		im.logger.Info("Fetched fixtures", "date", d.day.Format(time.DateOnly), "events", len(d.events))
	}

	highlights, err := im.source.Highlights(ctx)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		im.logger.Warn("Highlights fetch failed", "error", err)
	}

	for _, d := range fetched {
		for _, e := range d.events {
			if ctx.Err() != nil {
				result.Errors = append(result.Errors, ctx.Err().Error())
				result.Duration = time.Since(start)
				return result
			}
			im.importEvent(ctx, e, highlights, result)
		}
	}

	result.Duration = time.Since(start)
	im.logger.Info("Fixture import complete", "summary", result.Summary())
	for _, tc := range result.Filtered() {
		im.logger.Debug("Filtered tournament", "name", tc.Name, "events", tc.Count)
	}
	return result
}

func (im *Importer) importEvent(ctx context.Context, e Event, highlights []Highlight, result *ImportResult) {
	result.Events++
	result.Tournaments[e.Tournament.Name]++
	if !TopLeagues[e.Tournament.Name] {
		return
	}
	result.Included++
	if !e.NotStarted() {
		result.Started++
		return
	}
	if e.HomeTeam.Name == "" || e.AwayTeam.Name == "" {
		result.Errors = append(result.Errors, fmt.Sprintf("event %d: missing team names", e.ID))
		return
	}

	m := NewMatch(e)
	if err := im.store.UpsertMatch(ctx, m); err != nil {
		result.Errors = append(result.Errors, err.Error())
		im.logger.Warn("Fixture upsert failed", "match", m.Slug, "error", err)
		return
	}
	result.Upserted++

	links := Links{
		Embed:    FindEmbed(highlights, m.HomeTeam, m.AwayTeam),
		Checkout: im.checkout,
		Trial:    im.trial,
	}
	if links.Embed != "" {
		result.Highlights++
	}
	if err := im.store.SetLinks(ctx, m.Slug, links); err != nil {
		result.Errors = append(result.Errors, err.Error())
		im.logger.Warn("Fixture links failed", "match", m.Slug, "error", err)
	}
}

// fetchDays fetches each day on a small worker pool and returns the
// results in date order.
func (im *Importer) fetchDays(ctx context.Context, days int) []dayEvents {
	today := im.now().UTC().Truncate(24 * time.Hour)
	out := make([]dayEvents, days)

	workers := im.workers
	if workers < 1 {
		workers = 1
	}
	if workers > days {
		workers = days
	}

	ch := make(chan int, days)
	for i := range days {
		ch <- i
	}
	close(ch)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range ch {
				day := today.AddDate(0, 0, i)
				events, err := im.source.ScheduledEvents(ctx, day)
				out[i] = dayEvents{day: day, events: events, err: err}
			}
		}()
	}
	wg.Wait()
	return out
}
