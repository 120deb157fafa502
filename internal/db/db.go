// Package db provides a pgxpool-based connection pool with prepared statement
// registration, schema bootstrap and health checking.
package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/kickoff-alerts/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// EnsureSchema creates any missing tables and indexes. Idempotent.
func EnsureSchema(ctx context.Context, cfg *config.Config) error {
	conn, err := pgx.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Statements returns the prepared statement catalog keyed by name.
func Statements() map[string]string {
	return map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Alert scheduler
		"alert_today_matches": `SELECT id::text, slug, COALESCE(event_id, ''), home_team, away_team,
			COALESCE(league, ''), kickoff_iso, COALESCE(status, 'scheduled'), COALESCE(stripe_payment_link, '')
			FROM matches WHERE kickoff_iso::date = ($1::timestamptz)::date ORDER BY kickoff_iso`,
		"alert_eligible_users": `SELECT id::text, COALESCE(phone, ''), COALESCE(telegram_id, ''), COALESCE(email, ''),
			COALESCE(email_notifications_enabled, false), COALESCE(email_verified, false), COALESCE(unsubscribe_token, '')
			FROM app_users
			WHERE telegram_id IS NOT NULL
			   OR (email IS NOT NULL AND email_notifications_enabled AND email_verified)`,
		"alert_history_stats": `SELECT COUNT(*)::int,
			COUNT(*) FILTER (WHERE clicked)::int,
			COUNT(*) FILTER (WHERE converted)::int,
			MAX(created_at)
			FROM user_notification_history WHERE user_id = $1::uuid AND created_at > $2`,
		"alert_insert_history": `INSERT INTO user_notification_history (
			id, user_id, match_id, template_id, psychological_trigger, urgency_level, viewer_count,
			user_segment, match_importance, time_remaining, notification_channel, utm_params,
			session_id, notification_type, variant, test_group, match_teams, kickoff_time,
			alert_timing, day_of_week, created_at
			) VALUES ($1::uuid, NULLIF($2, '')::uuid, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8, $9, $10, $11,
			$12::jsonb, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,

		// Email channel
		"email_template_by_id": "SELECT id, name, subject, html_content, COALESCE(text_content, '') FROM email_templates WHERE id = $1",
		"email_upsert_template": `INSERT INTO email_templates (id, name, subject, html_content, text_content, variables, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6::jsonb, NOW())
			ON CONFLICT (id) DO UPDATE SET name = excluded.name, subject = excluded.subject,
			html_content = excluded.html_content, text_content = excluded.text_content,
			variables = excluded.variables, updated_at = NOW()`,
		"email_insert_history": `INSERT INTO email_notification_history (
			id, user_id, template_id, urgency_level, viewer_count, user_segment, match_importance,
			notification_channel, status, error_message, sent_at
			) VALUES ($1::uuid, NULLIF($2, '')::uuid, $3, $4, $5, $6, $7, 'email', $8, NULLIF($9, ''), NOW())`,
		"email_unsubscribe": "UPDATE app_users SET email_notifications_enabled = false WHERE unsubscribe_token = $1",

		// Trial jobs
		"trial_expire": "UPDATE trial_sessions SET status = 'expired' WHERE phone = $1 AND status = 'active'",

		// Live scores
		"live_matches": `SELECT slug, COALESCE(event_id, ''), home_team, away_team, COALESCE(status, 'scheduled'),
			COALESCE(home_score, 0), COALESCE(away_score, 0)
			FROM matches WHERE kickoff_iso < $1 AND kickoff_iso > $2 AND event_id IS NOT NULL`,
		"live_update_score":        "UPDATE matches SET home_score = $2, away_score = $3, status = $4 WHERE slug = $1",
		"live_telegram_recipients": "SELECT telegram_id FROM app_users WHERE telegram_id IS NOT NULL",

		// Fixture ingestion
		"fixture_upsert_match": `INSERT INTO matches (slug, event_id, home_team, away_team, league, kickoff_iso, status)
			VALUES ($1, $2, $3, $4, $5, $6, 'scheduled')
			ON CONFLICT (slug) DO UPDATE SET event_id = excluded.event_id, home_team = excluded.home_team,
			away_team = excluded.away_team, league = excluded.league, kickoff_iso = excluded.kickoff_iso`,
		"fixture_set_links": "UPDATE matches SET scorebat_embed = $2, stripe_payment_link = $3, trial_link = $4 WHERE slug = $1",
	}
}

// registerPreparedStatements registers every statement the worker, CLI and
// API use. Prepared statements eliminate parse overhead on every request.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	for name, sql := range Statements() {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
