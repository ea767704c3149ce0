package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pmpwsk/cocoding/internal/logger"
	"github.com/pmpwsk/cocoding/pkg/auth"
	"github.com/pmpwsk/cocoding/pkg/session"
	"github.com/pmpwsk/cocoding/pkg/store"
)

// Server is the HTTP server hosting the editor-hub websocket endpoint, the
// auth endpoints and the health/metrics routes. It supports graceful
// shutdown with a configurable timeout.
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer creates the API HTTP server in a stopped state; call Start to
// begin serving.
func NewServer(cfg Config, hub *session.Hub, authSvc *auth.Service, rel store.Store) *Server {
	cfg.ApplyDefaults()

	router := NewRouter(hub, authSvc, rel, cfg)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
		// ReadTimeout would kill long-lived websocket connections; gorilla
		// manages its own deadlines after the hijack, so only header reads
		// are bounded here.
		ReadHeaderTimeout: cfg.ReadTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	return &Server{server: server, config: cfg}
}

// Start serves requests and blocks until the context is cancelled or the
// listener fails. Cancellation triggers graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", s.config.Port)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// Fresh context: the cancelled one would abort the shutdown
		// immediately.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", logger.KeyError, err)
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server listens on.
func (s *Server) Port() int {
	return s.config.Port
}
