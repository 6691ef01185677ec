// Package web exposes campaign targeting over HTTP.
package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/lettings-match/internal/campaign"
	"github.com/lettings-match/internal/config"
	"github.com/lettings-match/internal/web/handlers"
	"github.com/lettings-match/internal/web/middleware"
)

// Deps are the services the HTTP API is built on.
type Deps struct {
	Orchestrator *campaign.Orchestrator
	Store        campaign.Store
	Runs         handlers.RunLister // optional
	Ping         func(ctx context.Context) error
}

// Server represents the web server
type Server struct {
	config     *config.AppConfig
	deps       Deps
	logger     *zap.Logger
	httpServer *http.Server
	router     *mux.Router
}

// NewServer creates a new web server instance
func NewServer(cfg *config.AppConfig, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		config: cfg,
		deps:   deps,
		logger: logger,
	}

	// Setup routes
	s.setupRoutes()

	writeTimeout := cfg.Matching.RunTimeout + 15*time.Second
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	campaignHandler := &handlers.CampaignHandler{
		Orchestrator: s.deps.Orchestrator,
		Store:        s.deps.Store,
		Runs:         s.deps.Runs,
		RunTimeout:   s.config.Matching.RunTimeout,
		Logger:       s.logger.Named("api"),
	}

	s.router.HandleFunc("/health", s.health).Methods("GET")

	// API routes
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/campaigns", campaignHandler.CreateCampaign).Methods("POST")
	api.HandleFunc("/campaigns/{id}", campaignHandler.GetCampaign).Methods("GET")
	api.HandleFunc("/campaigns/{id}/ranked", campaignHandler.GetRanked).Methods("GET")
	api.HandleFunc("/campaigns/{id}/matches", campaignHandler.ListMatches).Methods("GET")
	api.HandleFunc("/campaigns/{id}/runs", campaignHandler.ListRuns).Methods("GET")
	api.HandleFunc("/campaigns/{id}/rerun", campaignHandler.Rerun).Methods("POST")
	api.HandleFunc("/score", campaignHandler.Score).Methods("POST")

	// Apply middleware
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.RequestLogging(s.logger))
	api.Use(middleware.Authentication(s.config.Server.APIKey))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.deps.Ping != nil {
		if err := s.deps.Ping(r.Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
	}
	w.Write([]byte(`{"status":"ok"}`))
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	// Setup graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return err
	}
	s.logger.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("server stopped")
	return nil
}
