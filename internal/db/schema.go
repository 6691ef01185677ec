package db

import (
	"context"

	"github.com/rotisserie/eris"
)

// Column types are chosen so that both postgres and sqlite accept them and
// go-sqlite3 converts TIMESTAMP and BOOLEAN columns to time.Time and bool.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		email       TEXT NOT NULL DEFAULT '',
		demographic TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS tenant_preferences (
		tenant_id  TEXT PRIMARY KEY REFERENCES tenants(id) ON DELETE CASCADE,
		data       TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS properties (
		id                     TEXT PRIMARY KEY,
		agent_id               TEXT NOT NULL DEFAULT '',
		property_type          TEXT NOT NULL DEFAULT '',
		price                  NUMERIC(12,2) NOT NULL DEFAULT 0,
		bedrooms               INTEGER NOT NULL DEFAULT 0,
		address                TEXT NOT NULL DEFAULT '',
		city                   TEXT NOT NULL DEFAULT '',
		area                   TEXT NOT NULL DEFAULT '',
		university             TEXT,
		distance_to_university DOUBLE PRECISION,
		bills_included         BOOLEAN NOT NULL DEFAULT FALSE,
		included_bills         TEXT NOT NULL DEFAULT '[]',
		features               TEXT NOT NULL DEFAULT '[]',
		furnished              TEXT,
		available_date         TIMESTAMP,
		available              BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_properties_agent ON properties(agent_id)`,
	`CREATE TABLE IF NOT EXISTS targeting_campaigns (
		id                 TEXT PRIMARY KEY,
		name               TEXT NOT NULL,
		agent_id           TEXT NOT NULL,
		target_demographic TEXT NOT NULL,
		property_filter    TEXT,
		tenant_filter      TEXT,
		target_properties  TEXT NOT NULL DEFAULT '[]',
		matched_tenants    TEXT NOT NULL DEFAULT '[]',
		status             TEXT NOT NULL,
		generate_insights  BOOLEAN NOT NULL DEFAULT FALSE,
		insights           TEXT NOT NULL DEFAULT '[]',
		created_at         TIMESTAMP NOT NULL,
		updated_at         TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS property_tenant_matches (
		id          TEXT PRIMARY KEY,
		campaign_id TEXT NOT NULL REFERENCES targeting_campaigns(id) ON DELETE CASCADE,
		property_id TEXT NOT NULL,
		tenant_id   TEXT NOT NULL,
		score       INTEGER NOT NULL,
		reasons     TEXT NOT NULL DEFAULT '[]',
		created_at  TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_campaign ON property_tenant_matches(campaign_id)`,
	`CREATE TABLE IF NOT EXISTS campaign_runs (
		id                  TEXT PRIMARY KEY,
		campaign_id         TEXT NOT NULL REFERENCES targeting_campaigns(id) ON DELETE CASCADE,
		candidates          INTEGER NOT NULL,
		properties          INTEGER NOT NULL,
		pairs_scored        INTEGER NOT NULL,
		pairs_failed        INTEGER NOT NULL,
		estimation_failures INTEGER NOT NULL,
		tenants_matched     INTEGER NOT NULL,
		matches_persisted   INTEGER NOT NULL,
		persist_failures    INTEGER NOT NULL,
		insight_failures    INTEGER NOT NULL,
		cancelled           BOOLEAN NOT NULL,
		started_at          TIMESTAMP NOT NULL,
		finished_at         TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_campaign ON campaign_runs(campaign_id)`,
}

// EnsureSchema creates any missing tables and indexes.
func (c *Connection) EnsureSchema(ctx context.Context) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return eris.Wrapf(err, "failed to apply schema statement %.60q", stmt)
		}
	}
	return eris.Wrap(tx.Commit(), "failed to commit schema")
}

// Tables lists the tables created by EnsureSchema, in creation order.
func Tables() []string {
	return []string{"tenants", "tenant_preferences", "properties", "targeting_campaigns", "property_tenant_matches", "campaign_runs"}
}
