package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	ChallengeHeader = "X-Secret-Challenge"
	ChallengeQuery  = "secret"
)

type accessDenied struct {
	Error string `json:"error"`
	Hint  string `json:"hint"`
}

// Challenge admits a request only when it presents one of secrets in the
// X-Secret-Challenge header or the secret query parameter. With no secrets
// configured every request is denied.
func Challenge(secrets []string) echo.MiddlewareFunc {
	accepted := make([][]byte, 0, len(secrets))
	for _, s := range secrets {
		if s != "" {
			accepted = append(accepted, []byte(s))
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(accepted) > 0 && (matches(accepted, c.Request().Header.Get(ChallengeHeader)) ||
				matches(accepted, c.QueryParam(ChallengeQuery))) {
				return next(c)
			}
			return c.JSON(http.StatusForbidden, accessDenied{
				Error: "Access denied",
				Hint:  "Check the network headers or try a query parameter",
			})
		}
	}
}

func matches(accepted [][]byte, presented string) bool {
	if presented == "" {
		return false
	}
	p := []byte(presented)
	found := false
	for _, a := range accepted {
		if subtle.ConstantTimeCompare(a, p) == 1 {
			found = true
		}
	}
	return found
}
