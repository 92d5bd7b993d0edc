package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func serveReadiness(t *testing.T, h *ReadinessHandler) (int, readinessResponse) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health/ready", nil), rec)
	if err := h.Readiness(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp readinessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return rec.Code, resp
}

func TestReadiness(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	cases := []struct {
		name        string
		checks      map[string]Check
		initialized bool
		wantCode    int
		wantStatus  string
	}{
		{"ready", map[string]Check{"redis": ok, "mongodb": ok}, true, http.StatusOK, "ok"},
		{"dependency down", map[string]Check{"redis": down, "mongodb": ok}, true, http.StatusServiceUnavailable, "degraded"},
		{"still rehydrating", map[string]Check{"redis": ok}, false, http.StatusServiceUnavailable, "starting"},
		{"no dependencies", nil, true, http.StatusOK, "ok"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ready := tc.initialized
			code, resp := serveReadiness(t, NewReadinessHandler(tc.checks, func() bool { return ready }))
			if code != tc.wantCode || resp.Status != tc.wantStatus {
				t.Fatalf("expected %d/%s, got %d/%s", tc.wantCode, tc.wantStatus, code, resp.Status)
			}
			if len(resp.Dependencies) != len(tc.checks) {
				t.Fatalf("expected %d dependencies, got %d", len(tc.checks), len(resp.Dependencies))
			}
		})
	}
}

func TestLiveness(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

	if err := NewHealthHandler().Liveness(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
