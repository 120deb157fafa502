package fixture

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Store persists imported matches.
type Store interface {
	UpsertMatch(ctx context.Context, m Match) error
	SetLinks(ctx context.Context, slug string, l Links) error
}

// Execer is the subset of pgxpool.Pool the store uses.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGStore writes matches through the fixture_* prepared statements.
type PGStore struct {
	db Execer
}

// NewPGStore creates a store over a pool.
func NewPGStore(db Execer) *PGStore {
	return &PGStore{db: db}
}

// UpsertMatch inserts or refreshes a match keyed by slug.
func (s *PGStore) UpsertMatch(ctx context.Context, m Match) error {
	var eventID *string
	if m.EventID != "" {
		eventID = &m.EventID
	}
	_, err := s.db.Exec(ctx, "fixture_upsert_match",
		m.Slug, eventID, m.HomeTeam, m.AwayTeam, m.League, m.Kickoff)
	if err != nil {
		return fmt.Errorf("upsert match %s: %w", m.Slug, err)
	}
	return nil
}

// SetLinks writes the embed, checkout and trial links.
func (s *PGStore) SetLinks(ctx context.Context, slug string, l Links) error {
	if _, err := s.db.Exec(ctx, "fixture_set_links", slug, l.Embed, l.Checkout, l.Trial); err != nil {
		return fmt.Errorf("set links for %s: %w", slug, err)
	}
	return nil
}
