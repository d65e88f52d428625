package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"city_router/pkg/config"
)

const requestIDHeader = "X-Request-ID"

type ctxKey struct{}

// requestID returns the id assigned to the request by the middleware.
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// NewServer creates an HTTP server with all routes and middleware.
func NewServer(cfg config.HTTPConfig, handlers *Handlers, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	// Concurrency limiter.
	sem := make(chan struct{}, cfg.MaxConcurrent)
	wrap := func(h http.HandlerFunc) http.HandlerFunc {
		return withMiddleware(h, sem, cfg, logger)
	}

	// Routes.
	mux.HandleFunc("POST /api/v1/route", wrap(handlers.HandleRoute))
	mux.HandleFunc("GET /api/v1/routes/{from}", wrap(handlers.HandleRoutesFrom))

	mux.HandleFunc("GET /api/v1/cities", wrap(handlers.HandleListCities))
	mux.HandleFunc("POST /api/v1/cities", wrap(handlers.HandleCreateCity))
	mux.HandleFunc("GET /api/v1/cities/nearest", wrap(handlers.HandleNearestCity))
	mux.HandleFunc("GET /api/v1/cities/{id}", wrap(handlers.HandleGetCity))
	mux.HandleFunc("PUT /api/v1/cities/{id}", wrap(handlers.HandleUpdateCity))
	mux.HandleFunc("DELETE /api/v1/cities/{id}", wrap(handlers.HandleDeleteCity))
	mux.HandleFunc("POST /api/v1/cities/{id}/distances", wrap(handlers.HandleAddDistance))

	mux.HandleFunc("GET /api/v1/health", wrap(handlers.HandleHealth))
	mux.HandleFunc("GET /api/v1/stats", wrap(handlers.HandleStats))

	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}

// ListenAndServe starts the server and blocks until a shutdown signal or a
// canceled ctx, then drains in-flight requests for up to shutdownTimeout.
func ListenAndServe(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down", "timeout", shutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// statusRecorder captures the response status for access logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// withMiddleware wraps a handler with request ids, logging, recovery,
// security headers, and concurrency limiting.
func withMiddleware(handler http.HandlerFunc, sem chan struct{}, cfg config.HTTPConfig, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, id))

		// Security headers.
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")

		// CORS.
		if cfg.CORSOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSOrigin)
		}

		// Concurrency limiter.
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
		default:
			w.Header().Set("Retry-After", "1")
			writeError(w, r, http.StatusServiceUnavailable, "service_unavailable", "")
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		// Recovery.
		defer func() {
			if p := recover(); p != nil {
				logger.Error("panic", "panic", p, "request_id", id)
				writeError(rec, r, http.StatusInternalServerError, "internal_error", "")
			}
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start).Round(time.Microsecond),
				"request_id", id,
			)
		}()

		// Request timeout.
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		handler(rec, r.WithContext(ctx))
	}
}
