package rest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coregmedia/rtb-exchange-backend/internal/infrastructure/config"
	"github.com/coregmedia/rtb-exchange-backend/internal/metrics"
	"github.com/coregmedia/rtb-exchange-backend/internal/service/auction"
)

// Server is the exchange's HTTP front: the serving API, tracking endpoints,
// metrics, and health checks.
type Server struct {
	config     *config.Config
	httpServer *http.Server
	handler    *Handler
	logger     *slog.Logger
	db         *sql.DB
	redis      *redis.Client
}

// NewServer assembles the HTTP server around an already wired auction
// service. db and redisClient may be nil in tests; health checks report
// them as skipped.
func NewServer(cfg *config.Config, svc *auction.Service, logger *slog.Logger, db *sql.DB, redisClient *redis.Client) *Server {
	s := &Server{
		config:  cfg,
		handler: NewHandler(svc, logger),
		logger:  logger,
		db:      db,
		redis:   redisClient,
	}

	trackingLimiter := newIPRateLimiter(
		float64(cfg.Tracking.RequestsPerSecond),
		cfg.Tracking.BurstSize,
	)
	trackingLimiter.cleanup()

	mux := s.setupRoutes(trackingLimiter)

	chain := []Middleware{
		requestIDMiddleware,
		loggingMiddleware(logger),
		recoveryMiddleware(logger),
	}
	var h http.Handler = mux
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        h,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    2 * cfg.Server.ReadTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	return s
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(trackingLimiter *ipRateLimiter) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /healthz", s.handleLiveness)
	mux.Handle("GET /metrics", metrics.Handler())

	// Serving API
	v1 := http.NewServeMux()
	v1.HandleFunc("POST /ad-requests", metrics.InstrumentHandler("ad_request", s.handler.handleAdRequest))
	v1.HandleFunc("GET /auctions/{requestID}", metrics.InstrumentHandler("get_auction", s.handler.handleGetAuction))
	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", v1))

	// Tracking endpoints, rate limited per client IP
	track := http.NewServeMux()
	track.HandleFunc("GET /impression", metrics.InstrumentHandler("track_impression", s.handler.handleImpression))
	track.HandleFunc("GET /click", metrics.InstrumentHandler("track_click", s.handler.handleClick))
	track.HandleFunc("GET /conversion", metrics.InstrumentHandler("track_conversion", s.handler.handleConversion))
	mux.Handle("/track/", http.StripPrefix("/track", rateLimitMiddleware(trackingLimiter)(track)))

	return mux
}

// handleHealth reports readiness including backing store checks
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			checks["database"] = "unhealthy: " + err.Error()
			healthy = false
		} else {
			checks["database"] = "healthy"
		}
	} else {
		checks["database"] = "skipped"
	}

	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
			healthy = false
		} else {
			checks["redis"] = "healthy"
		}
	} else {
		checks["redis"] = "skipped"
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  overall,
		"version": s.config.Version,
		"checks":  checks,
	})
}

// handleLiveness answers as long as the process is serving
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"alive"}`))
}

// Start runs the server until it fails or receives SIGINT/SIGTERM
func (s *Server) Start() error {
	s.logger.Info("starting exchange server",
		slog.String("addr", s.httpServer.Addr),
		slog.String("environment", s.config.Environment),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed to start: %w", err)
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		return s.Shutdown()
	}
}

// Shutdown drains in-flight requests and closes backing connections
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shutdown server", slog.Any("error", err))
		return err
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("failed to close database", slog.Any("error", err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("failed to close redis", slog.Any("error", err))
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}
