package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/account-service/internal/core/domain"
	"github.com/99minutos/account-service/internal/core/ports"
)

// identityKey is the echo context key under which Auth stores the caller.
const identityKey = "identity"

// Auth verifies the bearer session token and injects the caller's identity
// into the context.
func Auth(sessions ports.SessionIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			identity, err := sessions.Verify(parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, domain.ErrInvalidSession.Message)
			}

			c.Set(identityKey, identity)
			return next(c)
		}
	}
}

// IdentityFrom returns the identity injected by Auth.
func IdentityFrom(c echo.Context) (domain.Identity, bool) {
	id, ok := c.Get(identityKey).(domain.Identity)
	if !ok || id.UserID == "" {
		return domain.Identity{}, false
	}
	return id, true
}

// SetIdentity stores id as if Auth had verified it. Used by handler tests.
func SetIdentity(c echo.Context, id domain.Identity) {
	c.Set(identityKey, id)
}
