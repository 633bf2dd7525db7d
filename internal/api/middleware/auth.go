package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/campusflow/gateway/internal/core/domain"
	"github.com/campusflow/gateway/internal/pkg/metrics"
)

// principalKey is the echo.Context key holding the verified domain.Principal.
const principalKey = "principal"

// TokenVerifier is the slice of the token service the filter needs.
type TokenVerifier interface {
	Verify(token string) (domain.Principal, error)
}

// Authenticate verifies the bearer token and stores the resulting principal
// on the request context. It never consults the credential store.
func Authenticate(verifier TokenVerifier, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return unauthorized(c, "missing_header", "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return unauthorized(c, "malformed_header", "invalid authorization header")
			}

			principal, err := verifier.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				reason := domain.TokenReasonMalformed
				var te *domain.TokenError
				if errors.As(err, &te) {
					reason = te.Reason
				}
				log.Debug().
					Str("reason", reason).
					Str("path", c.Request().URL.Path).
					Str("remote_ip", c.RealIP()).
					Msg("token rejected")
				return unauthorized(c, reason, "invalid token")
			}

			c.Set(principalKey, principal)
			return next(c)
		}
	}
}

// PrincipalFrom returns the principal stored by Authenticate.
func PrincipalFrom(c echo.Context) (domain.Principal, bool) {
	p, ok := c.Get(principalKey).(domain.Principal)
	return p, ok && p.Subject != ""
}

func unauthorized(c echo.Context, reason, msg string) error {
	metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer realm="campus-gateway"`)
	return echo.NewHTTPError(http.StatusUnauthorized, msg)
}
