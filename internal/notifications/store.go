package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool the stores use.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGStore implements MatchStore, UserStore and HistoryStore over the
// prepared statements registered in internal/db.
type PGStore struct {
	q Querier
}

// NewPGStore creates a store over a pool.
func NewPGStore(q Querier) *PGStore {
	return &PGStore{q: q}
}

// TodayMatches returns matches whose kickoff falls on now's calendar date.
// Both sides are dated in the database session time zone.
func (s *PGStore) TodayMatches(ctx context.Context, now time.Time) ([]Match, error) {
	rows, err := s.q.Query(ctx, "alert_today_matches", now)
	if err != nil {
		return nil, fmt.Errorf("query today's matches: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Slug, &m.EventID, &m.HomeTeam, &m.AwayTeam,
			&m.League, &m.Kickoff, &m.Status, &m.PaymentLink); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// EligibleUsers returns users with a Telegram id or a verified, enabled email.
func (s *PGStore) EligibleUsers(ctx context.Context) ([]User, error) {
	rows, err := s.q.Query(ctx, "alert_eligible_users")
	if err != nil {
		return nil, fmt.Errorf("query eligible users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Phone, &u.TelegramID, &u.Email,
			&u.EmailEnabled, &u.EmailVerified, &u.UnsubscribeToken); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Preference = PreferenceStandard
		users = append(users, u)
	}
	return users, rows.Err()
}

// Stats aggregates a user's history rows created after since.
func (s *PGStore) Stats(ctx context.Context, userID string, since time.Time) (Stats, error) {
	var st Stats
	var last *time.Time
	err := s.q.QueryRow(ctx, "alert_history_stats", userID, since).
		Scan(&st.Total, &st.Clicked, &st.Conversions, &last)
	if err != nil {
		return Stats{}, fmt.Errorf("query history stats: %w", err)
	}
	if last != nil {
		st.LastActivity = *last
	}
	return st, nil
}

// Insert appends one history row.
func (s *PGStore) Insert(ctx context.Context, rec Record) error {
	triggers, err := json.Marshal(rec.Triggers)
	if err != nil {
		return fmt.Errorf("encode triggers: %w", err)
	}
	params := make(map[string]string, len(rec.Params))
	for k := range rec.Params {
		params[k] = rec.Params.Get(k)
	}
	utm, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode utm params: %w", err)
	}

	_, err = s.q.Exec(ctx, "alert_insert_history",
		rec.ID, rec.UserID, rec.MatchID, rec.TemplateID, string(triggers),
		string(rec.Urgency), rec.ViewerCount, string(rec.Segment), string(rec.Importance),
		strconv.Itoa(rec.AlertTiming), strings.Join(rec.Channels, ","), utm,
		rec.SessionID, rec.NotificationType, rec.Variant, string(rec.Segment),
		rec.MatchTeams, rec.Kickoff, strconv.Itoa(rec.AlertTiming),
		strconv.Itoa(rec.DayOfWeek), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification history: %w", err)
	}
	return nil
}
