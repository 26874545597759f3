package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nDmitry/feedsky/internal/app"
)

// Server exposes the probe and control endpoints of a running mirror
type Server struct {
	mux     *http.ServeMux
	server  *http.Server
	logger  *slog.Logger
	runner  Runner
	history History
	info    FeedInfo
	port    string
}

// NewServer creates a new REST API server
func NewServer(runner Runner, history History, info FeedInfo, port string) *Server {
	mux := http.NewServeMux()

	server := &Server{
		mux:     mux,
		logger:  app.Logger(),
		runner:  runner,
		history: history,
		info:    info,
		port:    port,
		server: &http.Server{
			Addr:              ":" + port,
			Handler:           Logger(mux),
			ReadHeaderTimeout: 10 * time.Second, // Mitigate Slowloris
			ReadTimeout:       30 * time.Second,
			// A triggered sync can upload several images
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  120 * time.Second,
		},
	}

	NewMirrorHandler(mux, runner, history, info)

	return server
}

// Handler returns the routes wrapped in middleware
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run starts the server and blocks until the context is canceled
func (s *Server) Run(ctx context.Context) error {
	// Requests inherit the parent context so shutdown cancels a triggered sync
	s.server.BaseContext = func(_ net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("Starting HTTP server", "port", s.port)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info("Server exited gracefully")

	return nil
}
