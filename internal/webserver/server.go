// Package webserver provides the HTTP server that exposes the council
// REST API and the per-session event streams.
package webserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aspendos/council/internal/config"
	"github.com/aspendos/council/internal/stream"
	"github.com/aspendos/council/internal/webapi"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port           int
	Host           string
	AllowedOrigins []string
	Logger         *slog.Logger

	Council   *config.Config
	Session   webapi.Sessions
	Router    webapi.Router
	Broker    *stream.Broker
	Reminders webapi.Reminders
}

// Server wraps the HTTP server with configuration.
type Server struct {
	cfg    Config
	srv    *http.Server
	logger *slog.Logger
}

// New creates a new HTTP server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Session == nil || cfg.Router == nil || cfg.Broker == nil || cfg.Council == nil {
		return nil, fmt.Errorf("webserver requires session, router, broker, and config services")
	}

	mux := http.NewServeMux()
	webapi.RegisterRoutes(mux, cfg.Session, cfg.Router, cfg.Broker, cfg.Council, cfg.Reminders)

	var handler http.Handler = mux
	if len(cfg.AllowedOrigins) > 0 {
		handler = webapi.CORSMiddleware(mux, cfg.AllowedOrigins...)
	}

	return &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		srv: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			// No WriteTimeout: the SSE endpoint holds its connection
			// open for the life of a session.
		},
	}, nil
}

// ListenAndServe starts the HTTP server and shuts it down gracefully
// when the context is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.logger.Info("HTTP server starting", "address", s.srv.Addr)

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown error", "error", err)
		}
	}()

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Handler returns the underlying http.Handler (useful for testing).
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
