package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
)

// Diagnostics routes.
const (
	PathHealth   = "/healthz"
	PathReady    = "/readyz"
	PathMetrics  = "/metrics"
	PathProgress = "/progress"
)

const (
	healthStatusOK          = "ok"
	healthStatusUnavailable = "unavailable"
)

// ReadyCheck reports whether a subsystem is ready; nil means ready.
type ReadyCheck func(ctx context.Context) error

// HealthHandler answers liveness checks with {"status":"ok"}.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		writeJSON(rw, http.StatusOK, map[string]string{"status": healthStatusOK})
	})
}

// ReadyHandler answers 503 with the first failing check's message, 200 otherwise.
func ReadyHandler(checks ...ReadyCheck) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		for _, check := range checks {
			err := check(hr.Context())
			if err != nil {
				writeJSON(rw, http.StatusServiceUnavailable, map[string]string{
					"status": healthStatusUnavailable,
					"reason": err.Error(),
				})

				return
			}
		}

		writeJSON(rw, http.StatusOK, map[string]string{"status": healthStatusOK})
	})
}

// SnapshotHandler serves the value returned by snapshot as JSON on every request.
func SnapshotHandler[T any](snapshot func() T) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		writeJSON(rw, http.StatusOK, snapshot())
	})
}

func writeJSON(rw http.ResponseWriter, code int, body any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)

	_ = json.NewEncoder(rw).Encode(body)
}

// DiagnosticsOption configures a DiagnosticsServer.
type DiagnosticsOption func(*diagnosticsConfig)

type diagnosticsConfig struct {
	checks []ReadyCheck
	routes map[string]http.Handler
	logger *slog.Logger
}

// WithReadyCheck adds a check consulted by /readyz.
func WithReadyCheck(check ReadyCheck) DiagnosticsOption {
	return func(c *diagnosticsConfig) {
		c.checks = append(c.checks, check)
	}
}

// WithMetrics serves h on /metrics. A nil handler is ignored.
func WithMetrics(h http.Handler) DiagnosticsOption {
	return WithRoute(PathMetrics, h)
}

// WithProgress serves the run snapshot on /progress.
func WithProgress(h http.Handler) DiagnosticsOption {
	return WithRoute(PathProgress, h)
}

// WithRoute serves h on path. A nil handler is ignored.
func WithRoute(path string, h http.Handler) DiagnosticsOption {
	return func(c *diagnosticsConfig) {
		if h != nil {
			c.routes[path] = h
		}
	}
}

// WithDiagnosticsLogger sets the logger for serve errors.
func WithDiagnosticsLogger(logger *slog.Logger) DiagnosticsOption {
	return func(c *diagnosticsConfig) {
		c.logger = logger
	}
}

// DiagnosticsServer exposes health, readiness, metrics and run progress while
// a generation is in flight.
type DiagnosticsServer struct {
	server   *http.Server
	listener net.Listener
}

// NewDiagnosticsServer starts serving on addr. Use port 0 to pick a free port.
func NewDiagnosticsServer(addr string, opts ...DiagnosticsOption) (*DiagnosticsServer, error) {
	cfg := diagnosticsConfig{
		routes: make(map[string]http.Handler),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	mux := http.NewServeMux()

	mux.Handle(PathHealth, HealthHandler())
	mux.Handle(PathReady, ReadyHandler(cfg.checks...))

	for path, h := range cfg.routes {
		mux.Handle(path, h)
	}

	var lc net.ListenConfig

	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: mux}

	go func() {
		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			cfg.logger.Warn("diagnostics server stopped", "error", serveErr)
		}
	}()

	return &DiagnosticsServer{server: srv, listener: listener}, nil
}

// Addr returns the address the server is listening on.
func (d *DiagnosticsServer) Addr() string {
	return d.listener.Addr().String()
}

// Close gracefully shuts down the diagnostics server.
func (d *DiagnosticsServer) Close(ctx context.Context) error {
	err := d.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown diagnostics server: %w", err)
	}

	return nil
}
