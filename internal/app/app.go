// Package app wires configuration, storage and services shared by the
// command line and the HTTP server.
package app

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lettings-match/internal/audit"
	"github.com/lettings-match/internal/campaign"
	"github.com/lettings-match/internal/config"
	"github.com/lettings-match/internal/db"
	"github.com/lettings-match/internal/insights"
	"github.com/lettings-match/internal/match"
	"github.com/lettings-match/internal/oracle"
	"github.com/lettings-match/internal/store"
)

// App holds the long-lived services of a process.
type App struct {
	Config       *config.AppConfig
	Logger       *zap.Logger
	Conn         *db.Connection
	Store        *store.SQL
	Tracker      *audit.Tracker
	Orchestrator *campaign.Orchestrator

	requester *insights.Requester
}

// New connects to the database and builds the orchestrator. Optional
// collaborators (oracle, broker) are skipped when not configured; a broker
// that cannot be reached is logged and skipped.
func New(cfg *config.AppConfig, logger *zap.Logger) (*App, error) {
	conn, err := db.NewConnection(cfg.Database)
	if err != nil {
		return nil, eris.Wrap(err, "connect to database")
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Conn:    conn,
		Store:   store.NewSQL(conn, logger),
		Tracker: audit.NewTracker(conn, logger),
	}

	var est match.Oracle
	if cfg.Oracle.URL != "" {
		est = oracle.NewClient(oracle.Config{URL: cfg.Oracle.URL, APIKey: cfg.Oracle.APIKey, Timeout: cfg.Oracle.Timeout}, logger)
	} else {
		logger.Info("no estimation oracle configured; tenants without preferences will score 0")
	}
	scorer := match.NewScorer(est, match.ScorerOptions{OracleTimeout: cfg.Oracle.Timeout}, logger)

	chain := insights.Chain{insights.Summarizer{}}
	if cfg.RabbitMQ.URL != "" {
		r, err := insights.Dial(insights.RequesterConfig{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
		}, logger)
		if err != nil {
			logger.Warn("content generation requests disabled", zap.Error(err))
		} else {
			a.requester = r
			chain = append(chain, r)
		}
	}

	a.Orchestrator = campaign.NewOrchestrator(campaign.Deps{
		Store:     a.Store,
		Directory: a.Store,
		Scorer:    scorer,
		Insights:  chain,
		Recorder:  a.Tracker,
	}, campaign.Options{
		Workers:     cfg.Matching.Workers,
		Threshold:   campaign.ScoreThreshold(cfg.Matching.Threshold),
		RerunPolicy: campaign.RerunPolicy(cfg.Matching.RerunPolicy),
	}, logger)

	return a, nil
}

// Ping checks the database.
func (a *App) Ping(ctx context.Context) error {
	return a.Conn.DB.PingContext(ctx)
}

// Close releases the broker and database connections.
func (a *App) Close() error {
	if a.requester != nil {
		if err := a.requester.Close(); err != nil {
			a.Logger.Warn("failed to close broker connection", zap.Error(err))
		}
	}
	return a.Conn.Close()
}
