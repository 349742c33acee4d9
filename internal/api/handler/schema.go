package handler

import (
	"time"

	"github.com/99minutos/account-service/internal/core/domain"
	"github.com/99minutos/account-service/internal/core/ports"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// --- Auth ---

// Length caps only; content rules (format, strength) belong to the service.
type registerRequest struct {
	Email    string `json:"email"    validate:"max=254"`
	Password string `json:"password" validate:"max=72"`
	Name     string `json:"name"     validate:"max=100"`
	Role     string `json:"role"     validate:"max=16"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"max=254"`
	Password string `json:"password" validate:"max=72"`
}

type emailRequest struct {
	Email string `json:"email" validate:"max=254"`
}

type resetPasswordRequest struct {
	Code            string `json:"code"            validate:"max=16"`
	Password        string `json:"password"        validate:"max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"max=72"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"max=72"`
	NewPassword string `json:"newPassword" validate:"max=72"`
}

type userEnvelope struct {
	Message string            `json:"message"`
	User    domain.PublicUser `json:"user"`
}

type loginUser struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  domain.Role `json:"role"`
}

type loginResponse struct {
	Message string    `json:"message"`
	Token   string    `json:"token"`
	User    loginUser `json:"user"`
}

// --- Users ---

// updateUserRequest is the typed patch: absent fields stay untouched and
// unknown fields are ignored.
type updateUserRequest struct {
	Email    *string `json:"email"    validate:"omitempty,max=254"`
	Name     *string `json:"name"     validate:"omitempty,max=100"`
	Password *string `json:"password" validate:"omitempty,max=72"`
	Role     *string `json:"role"     validate:"omitempty,max=16"`
}

func (r updateUserRequest) toPatch() ports.UserPatch {
	return ports.UserPatch{Email: r.Email, Name: r.Name, Password: r.Password, Role: r.Role}
}

type listUsersResponse struct {
	Users      []domain.PublicUser `json:"users"`
	Pagination ports.Pagination    `json:"pagination"`
}

type systemInfo struct {
	GoVersion     string  `json:"goVersion"`
	Platform      string  `json:"platform"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

type statsResponse struct {
	TotalUsers   int64      `json:"totalUsers"`
	AdminUsers   int64      `json:"adminUsers"`
	RegularUsers int64      `json:"regularUsers"`
	SystemInfo   systemInfo `json:"systemInfo"`
	Timestamp    time.Time  `json:"timestamp"`
}
