// Package server exposes the agent's HTTP API: pod crash diagnosis,
// natural-language cluster queries, namespace listing, and a component
// health summary. Every outcome answers JSON, including 404 and 405, and
// each request carries a correlation ID.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/johnwroge/K8-AI-Query-Agent/internal/metrics"
	"github.com/johnwroge/K8-AI-Query-Agent/internal/model"
)

// DefaultPort is the default API listen port.
const DefaultPort = 8000

// Diagnoser runs the crash diagnostic pipeline for one pod.
// *diagnose.Orchestrator satisfies it.
type Diagnoser interface {
	Debug(ctx context.Context, podName, namespace string) (*model.DiagnosticResult, error)
}

// QueryService answers natural-language cluster questions and lists the
// visible namespaces. *query.Service satisfies it.
type QueryService interface {
	Answer(ctx context.Context, query, namespace string) (string, error)
	Namespaces(ctx context.Context) ([]string, error)
}

// Handler holds the API route handlers and their dependencies.
type Handler struct {
	diagnoser Diagnoser
	queries   QueryService
	metrics   *metrics.Metrics
	logger    *slog.Logger
	backend   string
	modelName string

	// nowFunc allows tests to control request timing.
	nowFunc func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger for request handling.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithModelInfo records the model backend and model name reported by the
// health endpoint.
func WithModelInfo(backend, modelName string) Option {
	return func(h *Handler) {
		h.backend = backend
		h.modelName = modelName
	}
}

// WithNowFunc overrides the time source for request timing.
func WithNowFunc(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.nowFunc = now
		}
	}
}

// NewHandler creates the API handler set.
func NewHandler(d Diagnoser, q QueryService, m *metrics.Metrics, opts ...Option) (*Handler, error) {
	if d == nil {
		return nil, fmt.Errorf("server: diagnoser must not be nil")
	}
	if q == nil {
		return nil, fmt.Errorf("server: query service must not be nil")
	}
	if m == nil {
		return nil, fmt.Errorf("server: metrics must not be nil")
	}
	h := &Handler{
		diagnoser: d,
		queries:   q,
		metrics:   m,
		logger:    slog.Default(),
		nowFunc:   time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Routes returns the full handler chain: correlation ID tagging, request
// logging, then the route table.
func (h *Handler) Routes() http.Handler {
	return withRequestID(h.logRequests(h.NewServeMux()))
}

// requestLogger returns the handler logger tagged with the request's
// correlation ID.
func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	if id := RequestID(r.Context()); id != "" {
		return h.logger.With("request_id", id)
	}
	return h.logger
}

// Server wraps the API HTTP server lifecycle.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates the API server on host:port. An empty host listens on
// all interfaces. The write timeout leaves room for a slow model reply.
func NewServer(h *Handler, host string, port int) (*Server, error) {
	if h == nil {
		return nil, fmt.Errorf("server: handler must not be nil")
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("server: port %d out of valid range [1, 65535]", port)
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:           h.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     h.logger,
	}, nil
}

// ListenAndServe starts the API server. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("api server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the provided listener. Useful for tests
// that bind to an ephemeral port.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("api server listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the API server, waiting for in-flight
// requests to complete or until the context is cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("api server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// roundMs converts a duration to milliseconds rounded to two decimals.
func roundMs(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000*100) / 100
}
