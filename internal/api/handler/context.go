package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/account-service/internal/api/middleware"
	"github.com/99minutos/account-service/internal/core/domain"
)

// ctxIdentity extracts the identity injected by the Auth middleware. Its
// absence means the route was registered without Auth.
func ctxIdentity(c echo.Context) (domain.Identity, error) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return domain.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	}
	return id, nil
}

// bindAndValidate decodes the body into req and applies its validate tags.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if c.Echo().Validator != nil {
		if err := c.Validate(req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return nil
}
