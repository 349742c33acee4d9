package ports

import (
	"context"

	"github.com/99minutos/account-service/internal/core/domain"
)

// UserFilter carries the query parameters for listing users.
type UserFilter struct {
	Search string // optional: case-insensitive substring of name or email
	Page   int    // 1-based
	Limit  int    // rows per page
}

// UserRepository is the single source of truth for account records.
//
// Implementations must make Create's duplicate-email check atomic with the
// insert, and treat Update as a compare-and-swap on User.Version: the write
// succeeds only when the stored version matches, after which the version is
// incremented on both the stored record and the argument. A lost race returns
// domain.ErrVersionConflict.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByActivationToken(ctx context.Context, token string) (*domain.User, error)
	FindByResetToken(ctx context.Context, code string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id string) error
	// List returns one page of users matching filter and the filtered total.
	List(ctx context.Context, filter UserFilter) ([]*domain.User, int64, error)
	CountByRole(ctx context.Context, role domain.Role) (int64, error)
}
