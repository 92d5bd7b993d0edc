package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/bookwise/session-client/internal/core/domain"
)

// ContextSession is the echo context key RequireSession stores the session under.
const ContextSession = "session"

// StateReader exposes the current session snapshot.
type StateReader interface {
	State() domain.State
}

// RequireSession rejects requests while no session is committed and injects
// the session into the echo context. Role checks go through RequireRole.
func RequireSession(sessions StateReader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			st := sessions.State()
			if st.Session == nil {
				return domain.ErrNotAuthenticated
			}

			c.Set(ContextSession, st.Session)
			return next(c)
		}
	}
}
