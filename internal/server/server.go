// Package server exposes the engine's read-only HTTP and websocket API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/server/handler"
	"github.com/alanyoungcy/triarb/internal/server/middleware"
	"github.com/alanyoungcy/triarb/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication
	RateLimit   int
	RateWindow  time.Duration
}

// Handlers aggregates the endpoints the server registers. Metrics and Hub
// may be nil.
type Handlers struct {
	Health  *handler.HealthHandler
	Status  *handler.StatusHandler
	Books   *handler.BookHandler
	Arb     *handler.ArbHandler
	Metrics http.Handler
	Hub     *ws.Hub
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in rate limiting, auth,
// logging and CORS, innermost first. limiter may be nil to disable rate
// limiting.
func NewServer(cfg Config, h Handlers, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", h.Status.GetStatus)
	mux.HandleFunc("GET /api/books", h.Books.ListBooks)
	mux.HandleFunc("GET /api/books/{symbol}", h.Books.GetBook)
	mux.HandleFunc("GET /api/opportunities/recent", h.Arb.ListRecent)
	mux.HandleFunc("GET /api/opportunities/stream", h.Arb.Stream)
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}
	if h.Hub != nil {
		mux.HandleFunc("GET /ws", h.Hub.HandleWS)
	}

	var chain http.Handler = mux
	if limiter != nil && cfg.RateLimit > 0 {
		chain = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(chain)
	}
	chain = middleware.Auth(cfg.APIKey, "/api/health", "/metrics")(chain)
	chain = middleware.Logging(logger)(chain)
	chain = middleware.CORS(cfg.CORSOrigins)(chain)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      chain,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then shuts down with a 10s grace period.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: listen: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return <-errCh
}
