package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestID_EmptyContext(t *testing.T) {
	if got := RequestID(context.Background()); got != "" {
		t.Errorf("RequestID() = %q, want empty", got)
	}
}

func TestWithRequestID_GeneratesID(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	withRequestID(inner).ServeHTTP(rec, req)

	if seen == "" {
		t.Error("handler saw no request ID in context")
	}
	if got := rec.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("response %s = %q, want %q", RequestIDHeader, got, seen)
	}
}

func TestWithRequestID_ReusesIncomingHeader(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "upstream-id-42")
	rec := httptest.NewRecorder()
	withRequestID(inner).ServeHTTP(rec, req)

	if seen != "upstream-id-42" {
		t.Errorf("context ID = %q, want upstream-id-42", seen)
	}
	if got := rec.Header().Get(RequestIDHeader); got != "upstream-id-42" {
		t.Errorf("response %s = %q, want upstream-id-42", RequestIDHeader, got)
	}
}

func TestWithRequestID_UniquePerRequest(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	wrapped := withRequestID(inner)

	ids := make(map[string]bool)
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		ids[rec.Header().Get(RequestIDHeader)] = true
	}
	if len(ids) != 10 {
		t.Errorf("got %d distinct IDs across 10 requests, want 10", len(ids))
	}
}

func TestStatusWriter_RecordsStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}

	sw.WriteHeader(http.StatusBadGateway)

	if sw.status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", sw.status)
	}
	if rec.Code != http.StatusBadGateway {
		t.Errorf("underlying code = %d, want 502", rec.Code)
	}
}

func TestRoutes_TagsEveryResponse(t *testing.T) {
	q := &fakeQueryService{namespaces: []string{"default"}}
	h := newTestHandler(t, &fakeDiagnoser{}, q, newTestMetrics())

	req := httptest.NewRequest(http.MethodGet, "/namespaces", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Errorf("response has no %s header", RequestIDHeader)
	}
}
