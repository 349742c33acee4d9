// Package memory is a process-local user store guarded by a single mutex.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/99minutos/account-service/internal/core/domain"
	"github.com/99minutos/account-service/internal/core/ports"
)

// UserRepository implements ports.UserRepository in memory. Records are cloned
// on the way in and out so callers never alias stored state.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string // email -> id
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
	}
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[user.Email]; taken {
		return domain.ErrUserExists
	}
	if user.Version == 0 {
		user.Version = 1
	}
	r.byID[user.ID] = user.Clone()
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *UserRepository) FindByActivationToken(_ context.Context, token string) (*domain.User, error) {
	return r.findFirst(func(u *domain.User) bool { return token != "" && u.ActivationToken == token })
}

func (r *UserRepository) FindByResetToken(_ context.Context, code string) (*domain.User, error) {
	return r.findFirst(func(u *domain.User) bool { return code != "" && u.ResetToken == code })
}

func (r *UserRepository) findFirst(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.byID {
		if match(u) {
			return u.Clone(), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// Update replaces the stored record when versions match.
func (r *UserRepository) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[user.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if stored.Version != user.Version {
		return domain.ErrVersionConflict
	}
	if user.Email != stored.Email {
		if _, taken := r.byEmail[user.Email]; taken {
			return domain.ErrUserExists
		}
		delete(r.byEmail, stored.Email)
		r.byEmail[user.Email] = user.ID
	}

	user.Version++
	r.byID[user.ID] = user.Clone()
	return nil
}

func (r *UserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	delete(r.byEmail, u.Email)
	delete(r.byID, id)
	return nil
}

// List orders by creation time, then id, so pages are stable.
func (r *UserRepository) List(_ context.Context, f ports.UserFilter) ([]*domain.User, int64, error) {
	r.mu.RLock()
	needle := strings.ToLower(f.Search)
	matched := make([]*domain.User, 0, len(r.byID))
	for _, u := range r.byID {
		if needle != "" &&
			!strings.Contains(strings.ToLower(u.Name), needle) &&
			!strings.Contains(strings.ToLower(u.Email), needle) {
			continue
		}
		matched = append(matched, u.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := int64(len(matched))
	if f.Limit <= 0 {
		return matched, total, nil
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	if page-1 >= len(matched)/f.Limit+1 {
		return []*domain.User{}, total, nil
	}
	skip := (page - 1) * f.Limit
	if skip >= len(matched) {
		return []*domain.User{}, total, nil
	}
	end := skip + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[skip:end], total, nil
}

func (r *UserRepository) CountByRole(_ context.Context, role domain.Role) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, u := range r.byID {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}
