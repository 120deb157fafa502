package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/albapepper/kickoff-alerts/internal/config"
)

func TestStatements_CoverStoreQueries(t *testing.T) {
	stmts := Statements()
	for _, name := range []string{
		"health_check",
		"alert_today_matches", "alert_eligible_users", "alert_history_stats", "alert_insert_history",
		"email_template_by_id", "email_upsert_template", "email_insert_history", "email_unsubscribe",
		"trial_expire",
		"live_matches", "live_update_score", "live_telegram_recipients",
		"fixture_upsert_match", "fixture_set_links",
	} {
		sql, ok := stmts[name]
		if assert.True(t, ok, "missing statement %s", name) {
			assert.NotEmpty(t, strings.TrimSpace(sql), name)
		}
	}
}

func TestStatements_UseKnownTables(t *testing.T) {
	tables := []string{
		config.MatchesTable, config.UsersTable, config.NotificationHistoryTable,
		config.EmailTemplatesTable, config.EmailHistoryTable, config.TrialSessionsTable,
	}
	for name, sql := range Statements() {
		if name == "health_check" {
			continue
		}
		found := false
		for _, tbl := range tables {
			if strings.Contains(sql, tbl) {
				found = true
				break
			}
		}
		assert.True(t, found, "%s references no known table", name)
	}
}

func TestSchema_CreatesEveryTable(t *testing.T) {
	for _, tbl := range []string{
		config.MatchesTable, config.UsersTable, config.NotificationHistoryTable,
		config.EmailTemplatesTable, config.EmailHistoryTable, config.TrialSessionsTable,
	} {
		assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS "+tbl+" (", tbl)
	}
}

func TestStatements_TodayMatchesDatesOnServer(t *testing.T) {
	sql := Statements()["alert_today_matches"]
	assert.Contains(t, sql, "kickoff_iso::date = ($1::timestamptz)::date")
}
