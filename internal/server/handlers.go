package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/johnwroge/K8-AI-Query-Agent/internal/filter"
)

// debugRequest is the body of POST /debug/pod-crash.
type debugRequest struct {
	PodName   string `json:"pod_name"`
	Namespace string `json:"namespace"`
}

// queryRequest is the body of POST /query.
type queryRequest struct {
	Query     string `json:"query"`
	Namespace string `json:"namespace"`
}

// queryResponse answers POST /query.
type queryResponse struct {
	Query            string  `json:"query"`
	Answer           string  `json:"answer"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
}

// namespacesResponse answers GET /namespaces.
type namespacesResponse struct {
	Namespaces []string `json:"namespaces"`
}

// healthResponse answers GET /health.
type healthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// errorResponse is the envelope for every non-2xx answer.
type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// NewServeMux returns the API route table without middleware. Use Routes
// for the full chain.
func (h *Handler) NewServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pod-crash", h.HandleDebugPod)
	mux.HandleFunc("/query", h.HandleQuery)
	mux.HandleFunc("/namespaces", h.HandleNamespaces)
	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/", h.handleNotFound)
	return mux
}

// allowMethod rejects requests whose method differs from want with a JSON
// 405 and reports whether the request may proceed.
func (h *Handler) allowMethod(w http.ResponseWriter, r *http.Request, want string) bool {
	if r.Method == want {
		return true
	}
	w.Header().Set("Allow", want)
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
	return false
}

// decodeBody decodes a JSON request body into dst. A missing or
// undecodable body answers 400 and reports false.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.metrics.ErrorsTotal.WithLabelValues("bad_request").Inc()
		h.requestLogger(r).Warn("request body missing or malformed",
			"path", r.URL.Path,
			"error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Request body is required"})
		return false
	}
	return true
}

// invalidRequest answers 400 with per-field validation details.
func (h *Handler) invalidRequest(w http.ResponseWriter, details ...string) {
	h.metrics.ErrorsTotal.WithLabelValues("bad_request").Inc()
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:   "Invalid request",
		Details: details,
	})
}

// HandleDebugPod serves POST /debug/pod-crash: the full diagnostic
// pipeline for one pod. The result carries the end-to-end processing time
// in milliseconds; a missing pod answers 404 with the failed result, a
// guardrail refusal answers 422, and a cluster failure answers 500.
func (h *Handler) HandleDebugPod(w http.ResponseWriter, r *http.Request) {
	if !h.allowMethod(w, r, http.MethodPost) {
		return
	}
	logger := h.requestLogger(r)

	var req debugRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	req.PodName = strings.TrimSpace(req.PodName)
	req.Namespace = strings.TrimSpace(req.Namespace)
	if req.PodName == "" {
		h.invalidRequest(w, "pod_name must not be empty")
		return
	}

	start := h.nowFunc()
	result, err := h.diagnoser.Debug(r.Context(), req.PodName, req.Namespace)
	elapsed := h.nowFunc().Sub(start)

	if err != nil {
		var excluded *filter.ExcludedError
		if errors.As(err, &excluded) {
			logger.Info("diagnosis refused by guardrails",
				"pod", req.PodName,
				"reason", excluded.Error())
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
				Error:  "pod excluded from diagnostics",
				Reason: excluded.Error(),
			})
			return
		}
		logger.Error("pod diagnosis failed", "pod", req.PodName, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Internal server error",
			Details: err.Error(),
		})
		return
	}

	h.metrics.DebugDuration.Observe(elapsed.Seconds())
	result.ProcessingTimeMs = roundMs(elapsed)

	status := http.StatusOK
	if !result.Success {
		status = http.StatusNotFound
	}
	writeJSON(w, status, result)
}

// HandleQuery serves POST /query: a natural-language question answered
// from the cluster summary. The query path has no deterministic fallback,
// so a model failure answers 502.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	if !h.allowMethod(w, r, http.MethodPost) {
		return
	}
	logger := h.requestLogger(r)

	var req queryRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	req.Namespace = strings.TrimSpace(req.Namespace)
	if req.Query == "" {
		h.invalidRequest(w, "query must not be empty")
		return
	}

	start := h.nowFunc()
	answer, err := h.queries.Answer(r.Context(), req.Query, req.Namespace)
	elapsed := h.nowFunc().Sub(start)

	if err != nil {
		logger.Error("query failed", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	h.metrics.QueryDuration.Observe(elapsed.Seconds())
	writeJSON(w, http.StatusOK, queryResponse{
		Query:            req.Query,
		Answer:           answer,
		ProcessingTimeMs: roundMs(elapsed),
	})
}

// HandleNamespaces serves GET /namespaces: the namespace names visible
// after the substring filter and the exclusion patterns.
func (h *Handler) HandleNamespaces(w http.ResponseWriter, r *http.Request) {
	if !h.allowMethod(w, r, http.MethodGet) {
		return
	}

	names, err := h.queries.Namespaces(r.Context())
	if err != nil {
		h.requestLogger(r).Error("listing namespaces failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Internal server error",
			Details: err.Error(),
		})
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, namespacesResponse{Namespaces: names})
}

// HandleHealth serves GET /health: a component summary covering the
// cluster connection and the configured model backend. An unreachable
// cluster answers 503.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !h.allowMethod(w, r, http.MethodGet) {
		return
	}

	names, err := h.queries.Namespaces(r.Context())
	if err != nil {
		h.requestLogger(r).Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status: "unhealthy",
			Error:  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status: "healthy",
		Components: map[string]string{
			"kubernetes": fmt.Sprintf("connected (%d namespaces)", len(names)),
			"model":      h.modelDescription(),
		},
	})
}

// modelDescription renders the configured backend for the health summary.
func (h *Handler) modelDescription() string {
	if h.backend == "" {
		return "not configured"
	}
	if h.modelName == "" {
		return h.backend
	}
	return fmt.Sprintf("%s (%s)", h.backend, h.modelName)
}

// handleNotFound answers any unrouted path with a JSON 404.
func (h *Handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "Endpoint not found"})
}
