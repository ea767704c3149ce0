package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pmpwsk/cocoding/internal/logger"
	"github.com/pmpwsk/cocoding/pkg/auth"
	"github.com/pmpwsk/cocoding/pkg/metrics"
	"github.com/pmpwsk/cocoding/pkg/session"
	"github.com/pmpwsk/cocoding/pkg/store"
)

// NewRouter creates and configures the chi router with all middleware and
// routes.
//
// Routes:
//   - GET  /health        - liveness probe
//   - GET  /health/ready  - readiness probe (database connectivity)
//   - POST /api/auth/login     - credential login, issues a token
//   - POST /api/auth/register  - account creation
//   - GET  /editor-hub    - websocket endpoint for the relay protocol
//   - GET  /metrics       - Prometheus metrics (when enabled)
func NewRouter(hub *session.Hub, authSvc *auth.Service, rel store.Store, cfg Config) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	h := newHandlers(hub, authSvc, rel)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.liveness)
		r.Get("/ready", h.readiness)
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", h.login)
		r.Post("/register", h.register)
	})

	r.Get("/editor-hub", h.editorHub)

	if cfg.MetricsEnabled && metrics.IsEnabled() {
		r.Get("/metrics", metrics.Handler().ServeHTTP)
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger logs requests using the internal logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			logger.KeyRemote, r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDuration, time.Since(start).String(),
		)
	})
}
