package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/account-service/internal/core/domain"
)

type stubSessions struct {
	identity domain.Identity
	err      error
}

func (s stubSessions) Issue(domain.Identity) (string, error) { return "tok", nil }

func (s stubSessions) Verify(token string) (domain.Identity, error) {
	if s.err != nil || token != "good" {
		return domain.Identity{}, domain.ErrInvalidSession
	}
	return s.identity, nil
}

var admin = domain.Identity{UserID: "u-1", Email: "admin@test.com", Role: domain.RoleAdmin}

func run(t *testing.T, mw echo.MiddlewareFunc, req *http.Request, setup func(echo.Context)) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if setup != nil {
		setup(c)
	}

	called := false
	h := mw(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, called
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := Auth(stubSessions{identity: admin})(func(c echo.Context) error {
		got, ok := IdentityFrom(c)
		if !ok || got != admin {
			t.Fatalf("identity not set: %+v", got)
		}
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	cases := map[string]string{
		"missing header": "",
		"wrong scheme":   "Token good",
		"empty token":    "Bearer ",
		"bad token":      "Bearer forged",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec, called := run(t, Auth(stubSessions{identity: admin}), req, nil)
			if called {
				t.Fatal("should not reach next")
			}
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestRBAC(t *testing.T) {
	cases := []struct {
		name     string
		identity *domain.Identity
		want     int
	}{
		{"admin allowed", &admin, http.StatusOK},
		{"user denied", &domain.Identity{UserID: "u-2", Role: domain.RoleUser}, http.StatusForbidden},
		{"no identity", nil, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec, called := run(t, RBAC(domain.RoleAdmin), req, func(c echo.Context) {
				if tc.identity != nil {
					SetIdentity(c, *tc.identity)
				}
			})
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
			if called != (tc.want == http.StatusOK) {
				t.Fatalf("next called = %v", called)
			}
		})
	}
}

func TestChallenge(t *testing.T) {
	secrets := []string{"find_me_if_you_can_2024", "admin_override"}

	cases := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"header", "find_me_if_you_can_2024", "", http.StatusOK},
		{"query", "", "admin_override", http.StatusOK},
		{"either secret in header", "admin_override", "", http.StatusOK},
		{"wrong", "nope", "nope", http.StatusForbidden},
		{"absent", "", "", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target := "/users/secret-stats"
			if tc.query != "" {
				target += "?secret=" + tc.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tc.header != "" {
				req.Header.Set(ChallengeHeader, tc.header)
			}
			rec, _ := run(t, Challenge(secrets), req, nil)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
			if tc.want == http.StatusForbidden {
				var body map[string]string
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
					t.Fatalf("invalid json: %v", err)
				}
				if body["error"] != "Access denied" || body["hint"] != "Check the network headers or try a query parameter" {
					t.Fatalf("unexpected body: %v", body)
				}
			}
		})
	}
}

func TestChallenge_ClosedWithoutSecrets(t *testing.T) {
	for _, secrets := range [][]string{nil, {""}} {
		req := httptest.NewRequest(http.MethodGet, "/?secret=", nil)
		req.Header.Set(ChallengeHeader, "")
		rec, called := run(t, Challenge(secrets), req, nil)
		if called || rec.Code != http.StatusForbidden {
			t.Fatalf("secrets %q: expected 403 without calling next, got %d (called=%v)", secrets, rec.Code, called)
		}
	}
}

func TestRequestLogger_OmitsRawURI(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(RequestLogger(zerolog.New(&buf)))
	e.GET("/auth/activate/:token", func(c echo.Context) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/activate/deadbeef?secret=admin_override", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	out := buf.String()
	if !strings.Contains(out, `"route":"/auth/activate/:token"`) {
		t.Fatalf("route missing from log: %s", out)
	}
	if strings.Contains(out, "deadbeef") || strings.Contains(out, "admin_override") {
		t.Fatalf("secret leaked into log: %s", out)
	}
	if !strings.Contains(out, `"status":500`) {
		t.Fatalf("status missing from log: %s", out)
	}
}
