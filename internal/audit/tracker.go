// Package audit keeps a durable trail of campaign runs.
package audit

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lettings-match/internal/campaign"
	"github.com/lettings-match/internal/db"
)

// Tracker records run statistics in the campaign_runs table.
type Tracker struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
}

// NewTracker creates a new audit tracker
func NewTracker(conn *db.Connection, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{db: conn.DB, driver: conn.Driver, logger: logger.Named("audit")}
}

// RecordRun saves the statistics of one campaign run.
func (t *Tracker) RecordRun(ctx context.Context, campaignID string, s campaign.RunStats) error {
	_, err := t.db.ExecContext(ctx, db.Rebind(t.driver, `
		INSERT INTO campaign_runs (
			id, campaign_id, candidates, properties, pairs_scored, pairs_failed, estimation_failures,
			tenants_matched, matches_persisted, persist_failures, insight_failures, cancelled,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), s.RunID, campaignID, s.Candidates, s.Properties, s.PairsScored, s.PairsFailed, s.EstimationFailures,
		s.TenantsMatched, s.MatchesPersisted, s.PersistFailures, s.InsightFailures, s.Cancelled,
		s.StartedAt.UTC(), s.FinishedAt.UTC())
	if err != nil {
		return eris.Wrapf(err, "failed to record run %s", s.RunID)
	}

	t.logger.Debug("run recorded",
		zap.String("campaign_id", campaignID),
		zap.String("run_id", s.RunID),
		zap.Int("pairs_failed", s.PairsFailed),
		zap.Int("persist_failures", s.PersistFailures))
	return nil
}

// ListRuns returns the runs of a campaign, oldest first.
func (t *Tracker) ListRuns(ctx context.Context, campaignID string) ([]campaign.RunStats, error) {
	rows, err := t.db.QueryContext(ctx, db.Rebind(t.driver, `
		SELECT id, candidates, properties, pairs_scored, pairs_failed, estimation_failures,
			tenants_matched, matches_persisted, persist_failures, insight_failures, cancelled,
			started_at, finished_at
		FROM campaign_runs
		WHERE campaign_id = ?
		ORDER BY started_at ASC, id ASC
	`), campaignID)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to list runs of campaign %s", campaignID)
	}
	defer rows.Close()

	runs := []campaign.RunStats{}
	for rows.Next() {
		var s campaign.RunStats
		if err := rows.Scan(&s.RunID, &s.Candidates, &s.Properties, &s.PairsScored, &s.PairsFailed,
			&s.EstimationFailures, &s.TenantsMatched, &s.MatchesPersisted, &s.PersistFailures,
			&s.InsightFailures, &s.Cancelled, &s.StartedAt, &s.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "failed to scan run")
		}
		s.StartedAt = s.StartedAt.UTC()
		s.FinishedAt = s.FinishedAt.UTC()
		runs = append(runs, s)
	}
	return runs, eris.Wrap(rows.Err(), "failed to list runs")
}
