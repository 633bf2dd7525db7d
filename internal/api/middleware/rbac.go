package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/campusflow/gateway/internal/core/domain"
	"github.com/campusflow/gateway/internal/pkg/metrics"
)

// RequireRoles enforces role-based access control. It must run after
// Authenticate; without a principal the request is unauthenticated, not
// forbidden.
func RequireRoles(allowed domain.RoleSet) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, ok := PrincipalFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication")
			}
			if !allowed.Allows(principal.Role) {
				metrics.AuthzDeniedTotal.WithLabelValues(string(principal.Role)).Inc()
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
