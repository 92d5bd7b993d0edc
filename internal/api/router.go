package api

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/bookwise/session-client/internal/api/handler"
	"github.com/bookwise/session-client/internal/api/middleware"
	"github.com/bookwise/session-client/internal/core/domain"
	"github.com/bookwise/session-client/internal/core/ports"
	"github.com/bookwise/session-client/internal/infrastructure/http/handlers"
)

// Deps are the collaborators the status surface needs.
type Deps struct {
	Sessions ports.SessionService
	// Checks are readiness probes keyed by dependency name.
	Checks map[string]handlers.Check
	Log    zerolog.Logger
}

// NewRouter builds the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())

	sessionHandler := handler.NewSessionHandler(deps.Sessions)
	requireSession := middleware.RequireSession(deps.Sessions)

	e.GET("/session", sessionHandler.State)
	e.POST("/session/login", sessionHandler.Login)
	e.POST("/session/logout", sessionHandler.Logout)
	e.POST("/session/credential/refresh", sessionHandler.RefreshCredential)
	e.POST("/session/profile/refresh", sessionHandler.RefreshProfile, requireSession)

	admin := e.Group("/admin", requireSession, middleware.RequireRole(deps.Sessions, domain.RoleAdmin))
	admin.GET("/state", sessionHandler.AdminState)

	healthHandler := handlers.NewHealthHandler()
	readyHandler := handlers.NewReadinessHandler(deps.Checks, func() bool {
		return deps.Sessions.State().Initialized
	})
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", readyHandler.Readiness)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}
