package ports

import (
	"context"
	"time"

	"github.com/99minutos/account-service/internal/core/domain"
)

// RegisterInput carries the registration payload.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token string
	User  domain.PublicUser
}

// ResetPasswordInput carries the reset-password payload.
type ResetPasswordInput struct {
	Code            string
	Password        string
	ConfirmPassword string
}

// ChangePasswordInput carries the change-password payload.
type ChangePasswordInput struct {
	OldPassword string
	NewPassword string
}

// UserPatch enumerates the client-settable user fields. Nil means untouched.
type UserPatch struct {
	Email    *string
	Name     *string
	Password *string
	Role     *string
}

// ListUsersInput carries the list parameters.
type ListUsersInput struct {
	Search string
	Page   int
	Limit  int
}

// Pagination describes one page of a filtered result set.
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalUsers  int64 `json:"totalUsers"`
	Limit       int   `json:"limit"`
}

// ListUsersResult is returned by ListUsers.
type ListUsersResult struct {
	Users      []domain.PublicUser
	Pagination Pagination
}

// UserStats summarises the user base for the diagnostic endpoint.
type UserStats struct {
	TotalUsers   int64
	AdminUsers   int64
	RegularUsers int64
	Timestamp    time.Time
}

// AccountService is the account lifecycle engine.
type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (domain.PublicUser, error)
	Activate(ctx context.Context, token string) (domain.PublicUser, error)
	ResendActivation(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, in ResetPasswordInput) error
	ChangePassword(ctx context.Context, actor domain.Identity, in ChangePasswordInput) error
	GetUser(ctx context.Context, actor domain.Identity, id string) (domain.PublicUser, error)
	UpdateUser(ctx context.Context, actor domain.Identity, id string, patch UserPatch) (domain.PublicUser, error)
	DeleteUser(ctx context.Context, actor domain.Identity, id string) error
	ListUsers(ctx context.Context, actor domain.Identity, in ListUsersInput) (*ListUsersResult, error)
	Stats(ctx context.Context) (*UserStats, error)
}
