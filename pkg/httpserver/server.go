package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/polyscope/polyscope/internal/scoring"
	"github.com/polyscope/polyscope/internal/storage"
	"github.com/polyscope/polyscope/pkg/cache"
	"github.com/polyscope/polyscope/pkg/healthprobe"
	"github.com/polyscope/polyscope/pkg/types"
)

// Store is the read surface the API serves from.
type Store interface {
	ListAlerts(ctx context.Context, f *storage.AlertFilter) ([]*types.Alert, error)
	DismissAlert(ctx context.Context, id int64) error
	ActiveCrossMarketAlerts(ctx context.Context) ([]*types.Alert, error)
	LatestRaw(ctx context.Context, tokenID string) (*types.OrderBookLatestRaw, error)
	LatestJobRuns(ctx context.Context) ([]*types.JobRun, error)
	VolumeStatsForToken(ctx context.Context, tokenID string, periodType types.PeriodType, limit int) ([]*types.VolumeStats, error)
}

// Scorer evaluates safe opportunities on demand.
type Scorer interface {
	Evaluate(ctx context.Context, now time.Time) (*scoring.Report, error)
}

// Server provides the read API plus metrics and health checks.
type Server struct {
	server        *http.Server
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	store         Store
	scorer        Scorer
	cache         cache.Cache
}

// Config holds server configuration.
type Config struct {
	Port          string
	Logger        *zap.Logger
	HealthChecker *healthprobe.HealthChecker
	Store         Store
	Scorer        Scorer
	Cache         cache.Cache // optional; caches scored opportunity reports
}

// New creates a new HTTP server.
func New(cfg *Config) *Server {
	s := &Server{
		logger:        cfg.Logger,
		healthChecker: cfg.HealthChecker,
		store:         cfg.Store,
		scorer:        cfg.Scorer,
		cache:         cfg.Cache,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", cfg.HealthChecker.Health())
	r.Get("/ready", cfg.HealthChecker.Ready())

	if s.store != nil {
		r.Route("/api", func(r chi.Router) {
			r.Get("/alerts", s.handleListAlerts)
			r.Post("/alerts/{id}/dismiss", s.handleDismissAlert)
			r.Get("/opportunities", s.handleOpportunities)
			if s.scorer != nil {
				r.Get("/opportunities/safe", s.handleSafeOpportunities)
			}
			r.Get("/orderbook/{tokenID}/slippage", s.handleSlippage)
			r.Get("/markets/{tokenID}/volume", s.handleVolumeStats)
			r.Get("/system/status", s.handleSystemStatus)
		})
	}

	s.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start starts the HTTP server.
// This is a blocking call that returns when the server stops or encounters an error.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		s.logger.Error("response-encode-failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, code int) {
	s.writeJSON(w, code, ErrorResponse{Error: message})
}
