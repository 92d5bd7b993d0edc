package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthHandler handles GET /health. It only confirms the process is alive.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Check probes one dependency.
type Check func(ctx context.Context) error

// ReadinessHandler handles GET /health/ready. The process is ready once the
// session has reached a terminal decision and every dependency answers.
type ReadinessHandler struct {
	checks      map[string]Check
	initialized func() bool
	timeout     time.Duration
}

func NewReadinessHandler(checks map[string]Check, initialized func() bool) *ReadinessHandler {
	return &ReadinessHandler{
		checks:      checks,
		initialized: initialized,
		timeout:     3 * time.Second,
	}
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status       string                      `json:"status"`
	Initialized  bool                        `json:"initialized"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}

func (h *ReadinessHandler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	deps := make(map[string]dependencyStatus, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
			healthy = false
			continue
		}
		deps[name] = dependencyStatus{Status: "ok"}
	}

	initialized := h.initialized == nil || h.initialized()

	status := "ok"
	httpStatus := http.StatusOK
	switch {
	case !healthy:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	case !initialized:
		status = "starting"
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, readinessResponse{
		Status:       status,
		Initialized:  initialized,
		Dependencies: deps,
	})
}
