package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/bookwise/session-client/internal/core/domain"
)

// RoleChecker answers role membership for the current user.
type RoleChecker interface {
	HasRole(roles ...string) bool
}

// RequireRole lets the request through only if the current user holds one
// of the allowed roles.
func RequireRole(checker RoleChecker, allowedRoles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !checker.HasRole(allowedRoles...) {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
