package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/lettings-match/internal/app"
	"github.com/lettings-match/internal/config"
	"github.com/lettings-match/internal/debug"
	"github.com/lettings-match/internal/web"
)

func main() {
	// Load environment configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := debug.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.Conn.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to prepare schema", zap.Error(err))
	}

	logger.Info("database connected",
		zap.String("driver", cfg.Database.Driver),
		zap.Int("workers", cfg.Matching.Workers),
		zap.Int("threshold", cfg.Matching.Threshold),
		zap.String("rerun_policy", cfg.Matching.RerunPolicy))

	server := web.NewServer(cfg, web.Deps{
		Orchestrator: a.Orchestrator,
		Store:        a.Store,
		Runs:         a.Tracker,
		Ping:         a.Ping,
	}, logger)

	if err := server.Start(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
