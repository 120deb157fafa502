package live

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/albapepper/kickoff-alerts/internal/telegram"
)

// liveWindow bounds how long after kickoff a match is still polled.
const liveWindow = 120 * time.Minute

// Match is a fixture currently inside the live window.
type Match struct {
	Slug      string
	EventID   string
	HomeTeam  string
	AwayTeam  string
	Status    string
	HomeScore int
	AwayScore int
}

// Store loads live matches and persists score changes.
type Store interface {
	LiveMatches(ctx context.Context, now time.Time) ([]Match, error)
	UpdateScore(ctx context.Context, slug string, home, away int, status string) error
	TelegramRecipients(ctx context.Context) ([]string, error)
}

// ScoreFetcher returns the live state of an event.
type ScoreFetcher interface {
	Fetch(ctx context.Context, eventID string) (*Score, error)
}

// GoalNotifier broadcasts a goal alert to Telegram chats.
type GoalNotifier interface {
	BroadcastGoalAlert(ctx context.Context, g telegram.Goal, recipients []string) (int, error)
}

// LinkFunc builds an absolute site link from a path.
type LinkFunc func(path string) string

// PollResult tracks one live poll.
type PollResult struct {
	Matches    int
	Fetched    int
	Updated    int
	Goals      int
	AlertsSent int
	Errors     []string
}

// Summary returns a human-readable summary.
func (r *PollResult) Summary() string {
	return fmt.Sprintf("matches=%d fetched=%d updated=%d goals=%d alerts=%d errors=%d",
		r.Matches, r.Fetched, r.Updated, r.Goals, r.AlertsSent, len(r.Errors))
}

// Poller checks live matches and emits goal alerts.
type Poller struct {
	store     Store
	scores    ScoreFetcher
	notifier  GoalNotifier
	adminChat string
	link      LinkFunc
	now       func() time.Time
	logger    *slog.Logger
}

// NewPoller creates a poller. notifier may be nil to only track scores.
func NewPoller(store Store, scores ScoreFetcher, notifier GoalNotifier, adminChat string, link LinkFunc, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		store:     store,
		scores:    scores,
		notifier:  notifier,
		adminChat: adminChat,
		link:      link,
		now:       time.Now,
		logger:    logger,
	}
}

// Poll runs one pass over the live window. A failure on one match never
// stops the others.
func (p *Poller) Poll(ctx context.Context) (*PollResult, error) {
	matches, err := p.store.LiveMatches(ctx, p.now())
	if err != nil {
		return nil, fmt.Errorf("load live matches: %w", err)
	}
	result := &PollResult{Matches: len(matches)}
	if len(matches) == 0 {
		return result, nil
	}

	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		p.pollMatch(ctx, m, result)
	}

	p.logger.Info("Live poll complete", "summary", result.Summary())
	return result, nil
}

func (p *Poller) pollMatch(ctx context.Context, m Match, result *PollResult) {
	score, err := p.scores.Fetch(ctx, m.EventID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", m.Slug, err))
		p.logger.Warn("Live score fetch failed", "match", m.Slug, "error", err)
		return
	}
	result.Fetched++

	status := score.Status
	if status == "" {
		status = m.Status
	}
	scoreChanged := score.Home != m.HomeScore || score.Away != m.AwayScore
	if !scoreChanged && status == m.Status {
		return
	}

	if err := p.store.UpdateScore(ctx, m.Slug, score.Home, score.Away, status); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", m.Slug, err))
		p.logger.Warn("Live score update failed", "match", m.Slug, "error", err)
		return
	}
	result.Updated++
	if !scoreChanged {
		p.logger.Info("Match status changed", "match", m.Slug, "from", m.Status, "to", status)
		return
	}

	result.Goals++
	p.logger.Info("Goal detected", "match", m.Slug,
		"score", fmt.Sprintf("%d-%d", score.Home, score.Away))
	if p.notifier == nil {
		return
	}

	recipients, err := p.recipients(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", m.Slug, err))
		p.logger.Warn("Load goal recipients failed", "match", m.Slug, "error", err)
	}
	if len(recipients) == 0 {
		return
	}

	sent, err := p.notifier.BroadcastGoalAlert(ctx, telegram.Goal{
		MatchSlug:   m.Slug,
		HomeTeam:    m.HomeTeam,
		AwayTeam:    m.AwayTeam,
		ScoringTeam: scoringTeam(m, score),
		Minute:      score.Minute,
		Link:        p.link("/watch/" + m.Slug),
	}, recipients)
	result.AlertsSent += sent
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", m.Slug, err))
		p.logger.Warn("Goal alert partially failed", "match", m.Slug, "sent", sent, "error", err)
	}
}

// recipients returns the admin chat followed by every subscriber chat. The
// admin chat still receives alerts when the subscriber query fails.
func (p *Poller) recipients(ctx context.Context) ([]string, error) {
	var out []string
	if p.adminChat != "" {
		out = append(out, p.adminChat)
	}
	subs, err := p.store.TelegramRecipients(ctx)
	for _, id := range subs {
		if id != "" && id != p.adminChat {
			out = append(out, id)
		}
	}
	return out, err
}

// scoringTeam attributes a score change. A simultaneous change on both sides
// is attributed to the away team.
func scoringTeam(m Match, s *Score) string {
	team := "Unknown"
	if s.Home > m.HomeScore {
		team = m.HomeTeam
	}
	if s.Away > m.AwayScore {
		team = m.AwayTeam
	}
	return team
}

// --------------------------------------------------------------------------
// Postgres store
// --------------------------------------------------------------------------

// Querier is the subset of pgxpool.Pool the store uses.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGStore implements Store over the live_* prepared statements.
type PGStore struct {
	q Querier
}

// NewPGStore creates a store over a pool.
func NewPGStore(q Querier) *PGStore {
	return &PGStore{q: q}
}

// LiveMatches returns matches that kicked off within the last two hours.
func (s *PGStore) LiveMatches(ctx context.Context, now time.Time) ([]Match, error) {
	rows, err := s.q.Query(ctx, "live_matches", now.UTC(), now.Add(-liveWindow).UTC())
	if err != nil {
		return nil, fmt.Errorf("query live matches: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Match, error) {
		var m Match
		err := row.Scan(&m.Slug, &m.EventID, &m.HomeTeam, &m.AwayTeam,
			&m.Status, &m.HomeScore, &m.AwayScore)
		return m, err
	})
}

// UpdateScore writes the latest score and status.
func (s *PGStore) UpdateScore(ctx context.Context, slug string, home, away int, status string) error {
	if _, err := s.q.Exec(ctx, "live_update_score", slug, home, away, status); err != nil {
		return fmt.Errorf("update score for %s: %w", slug, err)
	}
	return nil
}

// TelegramRecipients returns every user chat id.
func (s *PGStore) TelegramRecipients(ctx context.Context) ([]string, error) {
	rows, err := s.q.Query(ctx, "live_telegram_recipients")
	if err != nil {
		return nil, fmt.Errorf("query telegram recipients: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
