package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/bookwise/session-client/internal/api/middleware"
	"github.com/bookwise/session-client/internal/core/domain"
)

// ctxSession returns the session injected by middleware.RequireSession.
func ctxSession(c echo.Context) (*domain.Session, error) {
	sess, _ := c.Get(middleware.ContextSession).(*domain.Session)
	if sess == nil {
		return nil, domain.ErrNotAuthenticated
	}
	return sess, nil
}
