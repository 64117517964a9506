// Package server exposes the settings API over HTTP: bot registration,
// per-language profile listing and editing, refresh, and deletion.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"botadmin/internal/logger"
)

// Server wraps the HTTP server hosting the settings API.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// NewServer creates the HTTP server for the given handlers.
func NewServer(addr string, handlers *Handlers, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "http_server")

	mux := http.NewServeMux()
	handlers.Register(mux)

	srv := &http.Server{
		Addr:         addr,
		Handler:      logger.Middleware(log)(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		server: srv,
		logger: log,
	}
}

// Start runs the server and blocks until it stops. It returns nil after a
// graceful Shutdown and the listen error otherwise.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server stopped gracefully")
	return nil
}
