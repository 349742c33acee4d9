package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/account-service/internal/api/middleware"
	"github.com/99minutos/account-service/internal/core/domain"
	"github.com/99minutos/account-service/internal/core/ports"
)

// stubAccountService implements ports.AccountService; nil funcs return zero values.
type stubAccountService struct {
	registerFn       func(ctx context.Context, in ports.RegisterInput) (domain.PublicUser, error)
	activateFn       func(ctx context.Context, token string) (domain.PublicUser, error)
	resendFn         func(ctx context.Context, email string) error
	loginFn          func(ctx context.Context, email, password string) (*ports.LoginResult, error)
	forgotFn         func(ctx context.Context, email string) error
	resetFn          func(ctx context.Context, in ports.ResetPasswordInput) error
	changePasswordFn func(ctx context.Context, actor domain.Identity, in ports.ChangePasswordInput) error
	getFn            func(ctx context.Context, actor domain.Identity, id string) (domain.PublicUser, error)
	updateFn         func(ctx context.Context, actor domain.Identity, id string, patch ports.UserPatch) (domain.PublicUser, error)
	deleteFn         func(ctx context.Context, actor domain.Identity, id string) error
	listFn           func(ctx context.Context, actor domain.Identity, in ports.ListUsersInput) (*ports.ListUsersResult, error)
	statsFn          func(ctx context.Context) (*ports.UserStats, error)
}

func (s *stubAccountService) Register(ctx context.Context, in ports.RegisterInput) (domain.PublicUser, error) {
	if s.registerFn == nil {
		return domain.PublicUser{}, nil
	}
	return s.registerFn(ctx, in)
}

func (s *stubAccountService) Activate(ctx context.Context, token string) (domain.PublicUser, error) {
	if s.activateFn == nil {
		return domain.PublicUser{}, nil
	}
	return s.activateFn(ctx, token)
}

func (s *stubAccountService) ResendActivation(ctx context.Context, email string) error {
	if s.resendFn == nil {
		return nil
	}
	return s.resendFn(ctx, email)
}

func (s *stubAccountService) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	if s.loginFn == nil {
		return &ports.LoginResult{}, nil
	}
	return s.loginFn(ctx, email, password)
}

func (s *stubAccountService) ForgotPassword(ctx context.Context, email string) error {
	if s.forgotFn == nil {
		return nil
	}
	return s.forgotFn(ctx, email)
}

func (s *stubAccountService) ResetPassword(ctx context.Context, in ports.ResetPasswordInput) error {
	if s.resetFn == nil {
		return nil
	}
	return s.resetFn(ctx, in)
}

func (s *stubAccountService) ChangePassword(ctx context.Context, actor domain.Identity, in ports.ChangePasswordInput) error {
	if s.changePasswordFn == nil {
		return nil
	}
	return s.changePasswordFn(ctx, actor, in)
}

func (s *stubAccountService) GetUser(ctx context.Context, actor domain.Identity, id string) (domain.PublicUser, error) {
	if s.getFn == nil {
		return domain.PublicUser{}, nil
	}
	return s.getFn(ctx, actor, id)
}

func (s *stubAccountService) UpdateUser(ctx context.Context, actor domain.Identity, id string, patch ports.UserPatch) (domain.PublicUser, error) {
	if s.updateFn == nil {
		return domain.PublicUser{}, nil
	}
	return s.updateFn(ctx, actor, id, patch)
}

func (s *stubAccountService) DeleteUser(ctx context.Context, actor domain.Identity, id string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, actor, id)
}

func (s *stubAccountService) ListUsers(ctx context.Context, actor domain.Identity, in ports.ListUsersInput) (*ports.ListUsersResult, error) {
	if s.listFn == nil {
		return &ports.ListUsersResult{}, nil
	}
	return s.listFn(ctx, actor, in)
}

func (s *stubAccountService) Stats(ctx context.Context) (*ports.UserStats, error) {
	if s.statsFn == nil {
		return &ports.UserStats{}, nil
	}
	return s.statsFn(ctx)
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func jsonContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return resp
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	return he.Code
}

var alice = domain.Identity{UserID: "u-1", Email: "alice@example.com", Role: domain.RoleUser}

func TestAuthHandler_Register_Success(t *testing.T) {
	e := newEcho()
	stub := &stubAccountService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (domain.PublicUser, error) {
			if in.Email != "newuser@test.com" || in.Password != "SecurePass123!@" || in.Name != "New" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return domain.PublicUser{ID: "u-1", Email: in.Email, Name: in.Name, Role: domain.RoleUser}, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := jsonContext(e, http.MethodPost, "/auth/register",
		`{"email":"newuser@test.com","password":"SecurePass123!@","name":"New"}`)
	if err := h.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	resp := decode(t, rec)
	user, ok := resp["user"].(map[string]any)
	if !ok {
		t.Fatalf("expected user in response")
	}
	if user["email"] != "newuser@test.com" || user["isActive"] != false {
		t.Fatalf("unexpected user payload: %+v", user)
	}
	if _, leaked := user["passwordHash"]; leaked {
		t.Fatalf("password hash leaked: %+v", user)
	}
	if !strings.Contains(resp["message"].(string), "activate your account") {
		t.Fatalf("unexpected message: %v", resp["message"])
	}
}

func TestAuthHandler_Register_DomainErrorPassesThrough(t *testing.T) {
	e := newEcho()
	stub := &stubAccountService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (domain.PublicUser, error) {
			return domain.PublicUser{}, domain.ErrUserExists
		},
	}
	h := NewAuthHandler(stub)

	c, _ := jsonContext(e, http.MethodPost, "/auth/register", `{"email":"a@b.co","password":"x"}`)
	if err := h.Register(c); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthHandler_Register_InvalidPayload(t *testing.T) {
	e := newEcho()
	h := NewAuthHandler(&stubAccountService{})

	c, _ := jsonContext(e, http.MethodPost, "/auth/register", `{"email":`)
	if code := httpCode(t, h.Register(c)); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestAuthHandler_Register_OversizedPassword(t *testing.T) {
	e := newEcho()
	h := NewAuthHandler(&stubAccountService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (domain.PublicUser, error) {
			t.Fatalf("service must not be called")
			return domain.PublicUser{}, nil
		},
	})

	body := `{"email":"a@b.co","password":"` + strings.Repeat("A", 73) + `"}`
	c, _ := jsonContext(e, http.MethodPost, "/auth/register", body)
	err := h.Register(c)
	if code := httpCode(t, err); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	if !strings.Contains(err.Error(), "password must be at most 72") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	e := newEcho()
	stub := &stubAccountService{
		loginFn: func(ctx context.Context, email, password string) (*ports.LoginResult, error) {
			return &ports.LoginResult{
				Token: "jwt",
				User:  domain.PublicUser{ID: "u-1", Email: email, Name: "Alice", Role: domain.RoleUser, IsActive: true},
			}, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := jsonContext(e, http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"pw"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	resp := decode(t, rec)
	if resp["token"] != "jwt" || resp["message"] != "Login successful" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	user := resp["user"].(map[string]any)
	if user["id"] != "u-1" || user["role"] != "user" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if _, ok := user["isActive"]; ok {
		t.Fatalf("login user must only carry id, email, name, role: %+v", user)
	}
}

func TestAuthHandler_Login_NotActivated(t *testing.T) {
	e := newEcho()
	h := NewAuthHandler(&stubAccountService{
		loginFn: func(ctx context.Context, email, password string) (*ports.LoginResult, error) {
			return nil, domain.ErrAccountNotActivated
		},
	})

	c, _ := jsonContext(e, http.MethodPost, "/auth/login", `{"email":"a@b.co","password":"pw"}`)
	if err := h.Login(c); !errors.Is(err, domain.ErrAccountNotActivated) {
		t.Fatalf("expected ErrAccountNotActivated, got %v", err)
	}
}

func TestAuthHandler_Activate_UsesPathToken(t *testing.T) {
	e := newEcho()
	var got string
	h := NewAuthHandler(&stubAccountService{
		activateFn: func(ctx context.Context, token string) (domain.PublicUser, error) {
			got = token
			return domain.PublicUser{ID: "u-1", IsActive: true}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/activate/abc123", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("token")
	c.SetParamValues("abc123")

	if err := h.Activate(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got != "abc123" {
		t.Fatalf("expected token abc123, got %q", got)
	}
	resp := decode(t, rec)
	if resp["user"].(map[string]any)["isActive"] != true {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAuthHandler_ForgotPassword_GenericMessage(t *testing.T) {
	e := newEcho()
	h := NewAuthHandler(&stubAccountService{})

	c, rec := jsonContext(e, http.MethodPost, "/auth/forgot-password", `{"email":"nobody@example.com"}`)
	if err := h.ForgotPassword(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	resp := decode(t, rec)
	if resp["message"] != "If the email exists, a password reset link will be sent." {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAuthHandler_ResetPassword_ForwardsFields(t *testing.T) {
	e := newEcho()
	h := NewAuthHandler(&stubAccountService{
		resetFn: func(ctx context.Context, in ports.ResetPasswordInput) error {
			if in.Code != "123456" || in.Password != "NewPass1!" || in.ConfirmPassword != "NewPass1!" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return nil
		},
	})

	c, rec := jsonContext(e, http.MethodPost, "/auth/reset-password",
		`{"code":"123456","password":"NewPass1!","confirmPassword":"NewPass1!"}`)
	if err := h.ResetPassword(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthHandler_ChangePassword_RequiresIdentity(t *testing.T) {
	e := newEcho()
	h := NewAuthHandler(&stubAccountService{})

	c, _ := jsonContext(e, http.MethodPost, "/auth/change-password", `{"oldPassword":"a","newPassword":"b"}`)
	if code := httpCode(t, h.ChangePassword(c)); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestAuthHandler_ChangePassword_UsesCaller(t *testing.T) {
	e := newEcho()
	h := NewAuthHandler(&stubAccountService{
		changePasswordFn: func(ctx context.Context, actor domain.Identity, in ports.ChangePasswordInput) error {
			if actor.UserID != alice.UserID || in.OldPassword != "old" || in.NewPassword != "new" {
				t.Fatalf("unexpected call: %+v %+v", actor, in)
			}
			return nil
		},
	})

	c, rec := jsonContext(e, http.MethodPost, "/auth/change-password", `{"oldPassword":"old","newPassword":"new"}`)
	middleware.SetIdentity(c, alice)
	if err := h.ChangePassword(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthHandler_Profile_ReturnsOwnRecord(t *testing.T) {
	e := newEcho()
	h := NewAuthHandler(&stubAccountService{
		getFn: func(ctx context.Context, actor domain.Identity, id string) (domain.PublicUser, error) {
			if id != actor.UserID {
				t.Fatalf("profile must target the caller, got %q", id)
			}
			return domain.PublicUser{ID: id, Email: actor.Email}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	middleware.SetIdentity(c, alice)

	if err := h.Profile(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if decode(t, rec)["id"] != "u-1" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestUserHandler_List_SetsPaginationHeaders(t *testing.T) {
	e := newEcho()
	h := NewUserHandler(&stubAccountService{
		listFn: func(ctx context.Context, actor domain.Identity, in ports.ListUsersInput) (*ports.ListUsersResult, error) {
			if in.Search != "test" || in.Page != 2 || in.Limit != 0 {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &ports.ListUsersResult{
				Users:      []domain.PublicUser{{ID: "u-3"}},
				Pagination: ports.Pagination{CurrentPage: 2, TotalPages: 2, TotalUsers: 3, Limit: 2},
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/users?search=test&page=2&limit=abc", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	middleware.SetIdentity(c, domain.Identity{UserID: "admin", Role: domain.RoleAdmin})

	if err := h.List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	want := map[string]string{
		HeaderTotalUsers: "3",
		HeaderPage:       "2",
		HeaderLimit:      "2",
		HeaderTotalPages: "2",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Fatalf("header %s: expected %q, got %q", k, v, got)
		}
	}

	resp := decode(t, rec)
	if users := resp["users"].([]any); len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if resp["pagination"].(map[string]any)["totalPages"] != float64(2) {
		t.Fatalf("unexpected pagination: %+v", resp["pagination"])
	}
}

func TestUserHandler_Get_ReturnsBareProjection(t *testing.T) {
	e := newEcho()
	h := NewUserHandler(&stubAccountService{
		getFn: func(ctx context.Context, actor domain.Identity, id string) (domain.PublicUser, error) {
			return domain.PublicUser{ID: id, Email: "alice@example.com"}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/users/u-1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("u-1")
	middleware.SetIdentity(c, alice)

	if err := h.Get(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	resp := decode(t, rec)
	if resp["id"] != "u-1" {
		t.Fatalf("unexpected body: %+v", resp)
	}
	if _, ok := resp["password"]; ok {
		t.Fatalf("password field present: %+v", resp)
	}
}

func TestUserHandler_Update_BuildsTypedPatch(t *testing.T) {
	e := newEcho()
	h := NewUserHandler(&stubAccountService{
		updateFn: func(ctx context.Context, actor domain.Identity, id string, patch ports.UserPatch) (domain.PublicUser, error) {
			if patch.Name == nil || *patch.Name != "Alice B" {
				t.Fatalf("expected name patch, got %+v", patch)
			}
			if patch.Email != nil || patch.Password != nil || patch.Role != nil {
				t.Fatalf("absent fields must stay nil: %+v", patch)
			}
			return domain.PublicUser{ID: id, Name: *patch.Name}, nil
		},
	})

	c, rec := jsonContext(e, http.MethodPut, "/users/u-1", `{"name":"Alice B","isActive":true,"passwordHash":"x"}`)
	c.SetParamNames("id")
	c.SetParamValues("u-1")
	middleware.SetIdentity(c, alice)

	if err := h.Update(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	resp := decode(t, rec)
	if resp["message"] != "User updated successfully" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestUserHandler_Delete_SelfDeletionPassesThrough(t *testing.T) {
	e := newEcho()
	h := NewUserHandler(&stubAccountService{
		deleteFn: func(ctx context.Context, actor domain.Identity, id string) error {
			return domain.ErrSelfDeletion
		},
	})

	req := httptest.NewRequest(http.MethodDelete, "/users/u-1", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("u-1")
	middleware.SetIdentity(c, alice)

	if err := h.Delete(c); !errors.Is(err, domain.ErrSelfDeletion) {
		t.Fatalf("expected ErrSelfDeletion, got %v", err)
	}
}

func TestStatsHandler_Stats(t *testing.T) {
	e := newEcho()
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := NewStatsHandler(&stubAccountService{
		statsFn: func(ctx context.Context) (*ports.UserStats, error) {
			return &ports.UserStats{TotalUsers: 5, AdminUsers: 1, RegularUsers: 4, Timestamp: started}, nil
		},
	}, started)
	h.now = func() time.Time { return started.Add(90 * time.Second) }

	req := httptest.NewRequest(http.MethodGet, "/users/secret-stats", nil)
	rec := httptest.NewRecorder()
	if err := h.Stats(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	if rec.Header().Get("Cache-Control") != "no-cache" {
		t.Fatalf("expected no-cache, got %q", rec.Header().Get("Cache-Control"))
	}
	resp := decode(t, rec)
	if resp["totalUsers"] != float64(5) || resp["adminUsers"] != float64(1) || resp["regularUsers"] != float64(4) {
		t.Fatalf("unexpected counts: %+v", resp)
	}
	info := resp["systemInfo"].(map[string]any)
	if info["uptimeSeconds"] != float64(90) || info["goVersion"] == "" {
		t.Fatalf("unexpected system info: %+v", info)
	}
}

type stubPinger struct {
	name string
	err  error
}

func (p stubPinger) Name() string                 { return p.name }
func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func TestHealthHandler_Liveness(t *testing.T) {
	e := newEcho()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

	if err := NewHealthHandler().Liveness(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if decode(t, rec)["status"] != "ok" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestHealthHandler_Readiness(t *testing.T) {
	tests := []struct {
		name     string
		deps     []Pinger
		wantCode int
		wantBody string
	}{
		{"no dependencies", nil, http.StatusOK, "ok"},
		{"all healthy", []Pinger{stubPinger{name: "mongo"}, stubPinger{name: "redis"}}, http.StatusOK, "ok"},
		{"one down", []Pinger{stubPinger{name: "mongo"}, stubPinger{name: "redis", err: errors.New("refused")}}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEcho()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health/ready", nil), rec)

			if err := NewHealthHandler(tt.deps...).Readiness(c); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if decode(t, rec)["status"] != tt.wantBody {
				t.Fatalf("unexpected body: %s", rec.Body.String())
			}
		})
	}
}
