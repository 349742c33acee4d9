package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/99minutos/account-service/internal/core/domain"
	"github.com/99minutos/account-service/internal/core/ports"
)

const uniqueViolation = "23505"

const userColumns = `id, email, password_hash, name, role, is_active,
	activation_token, activation_token_expires, reset_token, reset_token_expires,
	created_at, updated_at, version`

// searchClause matches $1 as a case-insensitive literal substring of the name
// or the email. An empty $1 matches everything.
const searchClause = `($1 = '' OR strpos(lower(name), lower($1)) > 0 OR strpos(lower(email), lower($1)) > 0)`

// UserRepository implements ports.UserRepository on PostgreSQL.
type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*domain.User, error) {
	var (
		u                      domain.User
		role                   string
		actToken, rstToken     sql.NullString
		actExpires, rstExpires sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &role, &u.IsActive,
		&actToken, &actExpires, &rstToken, &rstExpires,
		&u.CreatedAt, &u.UpdatedAt, &u.Version,
	)
	if err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	u.ActivationToken = actToken.String
	u.ActivationTokenExpires = timePtr(actExpires)
	u.ResetToken = rstToken.String
	u.ResetTokenExpires = timePtr(rstExpires)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.Version == 0 {
		user.Version = 1
	}

	query := `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Name, string(user.Role), user.IsActive,
		nullString(user.ActivationToken), nullTime(user.ActivationTokenExpires),
		nullString(user.ResetToken), nullTime(user.ResetTokenExpires),
		user.CreatedAt, user.UpdatedAt, user.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, `id = $1`, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, `email = $1`, email)
}

func (r *UserRepository) FindByActivationToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, `activation_token = $1`, token)
}

func (r *UserRepository) FindByResetToken(ctx context.Context, code string) (*domain.User, error) {
	if code == "" {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, `reset_token = $1`, code)
}

func (r *UserRepository) findOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` LIMIT 1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// Update writes every mutable column when the stored version still matches.
func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	query := `UPDATE users SET
		email = $2, password_hash = $3, name = $4, role = $5, is_active = $6,
		activation_token = $7, activation_token_expires = $8,
		reset_token = $9, reset_token_expires = $10,
		updated_at = $11, version = version + 1
		WHERE id = $1 AND version = $12`

	res, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Name, string(user.Role), user.IsActive,
		nullString(user.ActivationToken), nullTime(user.ActivationTokenExpires),
		nullString(user.ResetToken), nullTime(user.ResetTokenExpires),
		user.UpdatedAt, user.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, user.ID).Scan(&exists); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if !exists {
			return domain.ErrUserNotFound
		}
		return domain.ErrVersionConflict
	}

	user.Version++
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context, f ports.UserFilter) ([]*domain.User, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE `+searchClause, f.Search).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit, offset := f.Limit, 0
	if limit > 0 {
		offset = (page - 1) * limit
	} else {
		limit = 0
	}

	// LIMIT NULL returns every row.
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + searchClause + `
		ORDER BY created_at, id
		LIMIT NULLIF($2, 0) OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, f.Search, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("db error: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}
	return users, total, nil
}

func (r *UserRepository) CountByRole(ctx context.Context, role domain.Role) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, string(role)).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
