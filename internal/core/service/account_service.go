package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/account-service/internal/core/domain"
	"github.com/99minutos/account-service/internal/core/ports"
	"github.com/99minutos/account-service/internal/core/security"
	"github.com/99minutos/account-service/internal/metrics"
)

const (
	maxUpdateAttempts = 5
	maxCodeAttempts   = 5

	defaultPageSize = 10
	maxPageSize     = 100
)

// errNoChange aborts a mutation without writing and without failing the caller.
var errNoChange = errors.New("no change")

// AccountService owns every account state transition.
type AccountService struct {
	repo     ports.UserRepository
	hasher   ports.PasswordHasher
	tokens   ports.TokenGenerator
	sessions ports.SessionIssuer
	mailer   ports.NotificationQueue
	throttle ports.ResetThrottle
	validate *validator.Validate
	log      zerolog.Logger

	now       func() time.Time
	newID     func() string
	baseURL   string
	trustRole bool
	pageSize  int
	maxPage   int
}

// Option customises an AccountService.
type Option func(*AccountService)

// WithClock injects the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *AccountService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how user ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(s *AccountService) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithResetThrottle enables the forgot-password cooldown.
func WithResetThrottle(t ports.ResetThrottle) Option {
	return func(s *AccountService) { s.throttle = t }
}

// WithActivationBaseURL sets the public URL prefix used in activation links.
func WithActivationBaseURL(u string) Option {
	return func(s *AccountService) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithTrustedRegistrationRole makes Register honour a caller-supplied role.
func WithTrustedRegistrationRole(trust bool) Option {
	return func(s *AccountService) { s.trustRole = trust }
}

// WithPageSize sets the default and maximum page sizes for ListUsers.
func WithPageSize(def, max int) Option {
	return func(s *AccountService) {
		if def > 0 {
			s.pageSize = def
		}
		if max > 0 {
			s.maxPage = max
		}
	}
}

func NewAccountService(
	repo ports.UserRepository,
	hasher ports.PasswordHasher,
	tokens ports.TokenGenerator,
	sessions ports.SessionIssuer,
	mailer ports.NotificationQueue,
	log zerolog.Logger,
	opts ...Option,
) *AccountService {
	s := &AccountService{
		repo:     repo,
		hasher:   hasher,
		tokens:   tokens,
		sessions: sessions,
		mailer:   mailer,
		validate: validator.New(),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.NewString() },
		pageSize: defaultPageSize,
		maxPage:  maxPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a pending account and mails its activation link.
func (s *AccountService) Register(ctx context.Context, in ports.RegisterInput) (domain.PublicUser, error) {
	if in.Email == "" || in.Password == "" {
		return domain.PublicUser{}, domain.ErrMissingCredentials
	}
	if !s.validEmail(in.Email) {
		return domain.PublicUser{}, domain.ErrInvalidEmailFormat
	}
	if !security.IsStrongPassword(in.Password) {
		return domain.PublicUser{}, domain.ErrWeakPassword
	}

	// Cheap pre-check so duplicates skip the hash; Create is authoritative.
	if _, err := s.repo.FindByEmail(ctx, in.Email); err == nil {
		return domain.PublicUser{}, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return domain.PublicUser{}, fmt.Errorf("register: %w", err)
	}

	role := domain.RoleUser
	if s.trustRole && domain.Role(in.Role).Valid() {
		role = domain.Role(in.Role)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = domain.DefaultName
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return domain.PublicUser{}, fmt.Errorf("register: %w", err)
	}

	now := s.now()
	token, expires, err := s.tokens.ActivationToken(now)
	if err != nil {
		return domain.PublicUser{}, fmt.Errorf("register: %w", err)
	}

	user := &domain.User{
		ID:           s.newID(),
		Email:        in.Email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		IsActive:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	user.SetActivation(token, expires)

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return domain.PublicUser{}, err
		}
		return domain.PublicUser{}, fmt.Errorf("register: %w", err)
	}

	metrics.RegistrationsTotal.Inc()
	s.log.Info().Str("user_id", user.ID).Str("role", string(role)).Msg("user registered")

	s.mailer.Enqueue(activationEmail(user, s.activationLink(token)))
	return user.Public(), nil
}

// Activate consumes an activation token. An expired token is left in place.
func (s *AccountService) Activate(ctx context.Context, token string) (domain.PublicUser, error) {
	if token == "" {
		return domain.PublicUser{}, domain.ErrMissingToken
	}

	user, err := s.mutate(ctx,
		func(ctx context.Context) (*domain.User, error) {
			u, err := s.repo.FindByActivationToken(ctx, token)
			if errors.Is(err, domain.ErrUserNotFound) {
				return nil, domain.ErrInvalidToken
			}
			return u, err
		},
		func(u *domain.User) error {
			if u.ActivationExpired(s.now()) {
				return domain.ErrTokenExpired
			}
			u.IsActive = true
			u.ClearActivation()
			return nil
		},
	)
	if err != nil {
		metrics.TokenConsumptionsTotal.WithLabelValues("activation", consumeResult(err)).Inc()
		return domain.PublicUser{}, err
	}

	metrics.TokenConsumptionsTotal.WithLabelValues("activation", "success").Inc()
	s.log.Info().Str("user_id", user.ID).Msg("account activated")
	return user.Public(), nil
}

// ResendActivation replaces the activation token of a pending account and
// mails it again. Unknown and already active emails are silently ignored.
func (s *AccountService) ResendActivation(ctx context.Context, email string) error {
	if email == "" {
		return domain.ErrMissingEmail
	}
	if !s.validEmail(email) {
		return domain.ErrInvalidEmailFormat
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.log.Debug().Msg("activation resend for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("resend activation: %w", err)
	}
	if existing.IsActive {
		return nil
	}

	token, expires, err := s.tokens.ActivationToken(s.now())
	if err != nil {
		return fmt.Errorf("resend activation: %w", err)
	}

	user, err := s.mutate(ctx, s.loadByID(existing.ID), func(u *domain.User) error {
		if u.IsActive {
			return errNoChange
		}
		u.SetActivation(token, expires)
		return nil
	})
	if errors.Is(err, errNoChange) || errors.Is(err, domain.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("resend activation: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("activation token reissued")
	s.mailer.Enqueue(activationEmail(user, s.activationLink(token)))
	return nil
}

// Login checks activation before the password, then issues a session token.
func (s *AccountService) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	if email == "" || password == "" {
		return nil, domain.ErrMissingCredentials
	}
	if !s.validEmail(email) {
		return nil, domain.ErrInvalidEmailFormat
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.log.Debug().Msg("login for unknown email")
			metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	if !user.IsActive {
		metrics.LoginsTotal.WithLabelValues("not_activated").Inc()
		return nil, domain.ErrAccountNotActivated
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.log.Debug().Str("user_id", user.ID).Msg("login with wrong password")
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.sessions.Issue(domain.Identity{UserID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		return nil, fmt.Errorf("login: issue session: %w", err)
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	return &ports.LoginResult{Token: token, User: user.Public()}, nil
}

// ForgotPassword stores a fresh reset code and mails it. The result is the
// same whether or not the email belongs to an account.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		return domain.ErrMissingEmail
	}
	if !s.validEmail(email) {
		return domain.ErrInvalidEmailFormat
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.log.Debug().Msg("password reset for unknown email")
		metrics.ResetRequestsTotal.WithLabelValues("unknown_email").Inc()
		return nil
	}
	if err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}

	if s.throttle != nil {
		allowed, err := s.throttle.Allow(ctx, email)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", existing.ID).Msg("reset throttle check failed, issuing anyway")
		} else if !allowed {
			metrics.ResetRequestsTotal.WithLabelValues("throttled").Inc()
			return nil
		}
	}

	issuedAt := s.now()
	code, expires, err := s.uniqueResetCode(ctx, issuedAt)
	if err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}

	user, err := s.mutate(ctx, s.loadByID(existing.ID), func(u *domain.User) error {
		u.SetReset(code, expires)
		return nil
	})
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}

	metrics.ResetRequestsTotal.WithLabelValues("issued").Inc()
	s.log.Info().Str("user_id", user.ID).Msg("password reset requested")
	s.mailer.Enqueue(resetEmail(user, code, expires.Sub(issuedAt)))
	return nil
}

// uniqueResetCode draws codes until one is not held by any account.
func (s *AccountService) uniqueResetCode(ctx context.Context, now time.Time) (string, time.Time, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, expires, err := s.tokens.ResetCode(now)
		if err != nil {
			return "", time.Time{}, err
		}
		_, err = s.repo.FindByResetToken(ctx, code)
		if errors.Is(err, domain.ErrUserNotFound) {
			return code, expires, nil
		}
		if err != nil {
			return "", time.Time{}, err
		}
	}
	return "", time.Time{}, errors.New("could not draw an unused reset code")
}

// ResetPassword consumes a reset code and replaces the password.
func (s *AccountService) ResetPassword(ctx context.Context, in ports.ResetPasswordInput) error {
	if in.Code == "" {
		return domain.ErrMissingCode
	}
	if in.Password == "" {
		return domain.ErrMissingPassword
	}
	if in.Password != in.ConfirmPassword {
		return domain.ErrPasswordMismatch
	}
	if !security.IsStrongPassword(in.Password) {
		return domain.ErrWeakPassword
	}

	loadByCode := func(ctx context.Context) (*domain.User, error) {
		u, err := s.repo.FindByResetToken(ctx, in.Code)
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCode
		}
		return u, err
	}

	// Reject unknown and expired codes before paying for the hash.
	pending, err := loadByCode(ctx)
	if err == nil && pending.ResetExpired(s.now()) {
		err = domain.ErrCodeExpired
	}
	if err != nil {
		metrics.TokenConsumptionsTotal.WithLabelValues("reset", consumeResult(err)).Inc()
		return err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	user, err := s.mutate(ctx, loadByCode, func(u *domain.User) error {
		if u.ResetExpired(s.now()) {
			return domain.ErrCodeExpired
		}
		u.PasswordHash = hash
		u.ClearReset()
		return nil
	})
	if err != nil {
		metrics.TokenConsumptionsTotal.WithLabelValues("reset", consumeResult(err)).Inc()
		return err
	}

	metrics.TokenConsumptionsTotal.WithLabelValues("reset", "success").Inc()
	s.log.Info().Str("user_id", user.ID).Msg("password reset")
	return nil
}

// ChangePassword replaces the password of the authenticated user after
// verifying the current one.
func (s *AccountService) ChangePassword(ctx context.Context, actor domain.Identity, in ports.ChangePasswordInput) error {
	if in.OldPassword == "" || in.NewPassword == "" {
		return domain.ErrMissingPasswordSet
	}
	if !security.IsStrongPassword(in.NewPassword) {
		return domain.ErrWeakPassword
	}

	current, err := s.repo.FindByID(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(in.OldPassword, current.PasswordHash) {
		return domain.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	_, err = s.mutate(ctx, s.loadByID(actor.UserID), func(u *domain.User) error {
		if u.PasswordHash != current.PasswordHash && !s.hasher.Verify(in.OldPassword, u.PasswordHash) {
			return domain.ErrInvalidCredentials
		}
		u.PasswordHash = hash
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("user_id", actor.UserID).Msg("password changed")
	return nil
}

// GetUser returns a user to an admin or to the user themself.
func (s *AccountService) GetUser(ctx context.Context, actor domain.Identity, id string) (domain.PublicUser, error) {
	if !actor.IsAdmin() && actor.UserID != id {
		return domain.PublicUser{}, domain.ErrForbidden
	}
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.PublicUser{}, err
	}
	return u.Public(), nil
}

// UpdateUser applies a typed patch. Only admins may touch other accounts or
// any role.
func (s *AccountService) UpdateUser(ctx context.Context, actor domain.Identity, id string, patch ports.UserPatch) (domain.PublicUser, error) {
	if !actor.IsAdmin() && actor.UserID != id {
		return domain.PublicUser{}, domain.ErrForbidden
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return domain.PublicUser{}, err
	}
	if patch.Role != nil && !actor.IsAdmin() {
		return domain.PublicUser{}, domain.ErrRoleChangeForbidden
	}

	if patch.Email != nil && !s.validEmail(*patch.Email) {
		return domain.PublicUser{}, domain.ErrInvalidEmailFormat
	}
	if patch.Role != nil && !domain.Role(*patch.Role).Valid() {
		return domain.PublicUser{}, domain.ErrInvalidRole
	}

	var hash string
	if patch.Password != nil {
		if !security.IsStrongPassword(*patch.Password) {
			return domain.PublicUser{}, domain.ErrWeakPassword
		}
		h, err := s.hasher.Hash(*patch.Password)
		if err != nil {
			return domain.PublicUser{}, fmt.Errorf("update user: %w", err)
		}
		hash = h
	}

	user, err := s.mutate(ctx, s.loadByID(id), func(u *domain.User) error {
		if patch.Email != nil {
			u.Email = *patch.Email
		}
		if patch.Name != nil {
			u.Name = strings.TrimSpace(*patch.Name)
			if u.Name == "" {
				u.Name = domain.DefaultName
			}
		}
		if patch.Role != nil {
			u.Role = domain.Role(*patch.Role)
		}
		if hash != "" {
			u.PasswordHash = hash
		}
		return nil
	})
	if err != nil {
		return domain.PublicUser{}, err
	}

	s.log.Info().Str("user_id", id).Str("actor_id", actor.UserID).Msg("user updated")
	return user.Public(), nil
}

// DeleteUser removes an account. Self-deletion is rejected before anything
// else is checked.
func (s *AccountService) DeleteUser(ctx context.Context, actor domain.Identity, id string) error {
	if actor.UserID == id {
		return domain.ErrSelfDeletion
	}
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info().Str("user_id", id).Str("actor_id", actor.UserID).Msg("user deleted")
	return nil
}

// ListUsers returns one page of the (optionally filtered) user base.
// Pagination metadata is computed from the filtered count.
func (s *AccountService) ListUsers(ctx context.Context, actor domain.Identity, in ports.ListUsersInput) (*ports.ListUsersResult, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	page := in.Page
	if page < 1 {
		page = 1
	}
	limit := in.Limit
	if limit < 1 {
		limit = s.pageSize
	}
	if limit > s.maxPage {
		limit = s.maxPage
	}

	// Keep (page-1)*limit within int so stores never see a wrapped offset.
	storePage := page
	if maxPage := math.MaxInt / limit; storePage > maxPage {
		storePage = maxPage
	}

	users, total, err := s.repo.List(ctx, ports.UserFilter{Search: in.Search, Page: storePage, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	out := make([]domain.PublicUser, len(users))
	for i, u := range users {
		out[i] = u.Public()
	}

	return &ports.ListUsersResult{
		Users: out,
		Pagination: ports.Pagination{
			CurrentPage: page,
			TotalPages:  int((total + int64(limit) - 1) / int64(limit)),
			TotalUsers:  total,
			Limit:       limit,
		},
	}, nil
}

// Stats counts users by role.
func (s *AccountService) Stats(ctx context.Context) (*ports.UserStats, error) {
	admins, err := s.repo.CountByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	regular, err := s.repo.CountByRole(ctx, domain.RoleUser)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return &ports.UserStats{
		TotalUsers:   admins + regular,
		AdminUsers:   admins,
		RegularUsers: regular,
		Timestamp:    s.now(),
	}, nil
}

// mutate runs load → apply → compare-and-swap update, restarting from load
// when another writer got there first. apply must only touch the record.
func (s *AccountService) mutate(
	ctx context.Context,
	load func(ctx context.Context) (*domain.User, error),
	apply func(u *domain.User) error,
) (*domain.User, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		u, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := apply(u); err != nil {
			return nil, err
		}
		u.UpdatedAt = s.now()

		err = s.repo.Update(ctx, u)
		if errors.Is(err, domain.ErrVersionConflict) {
			s.log.Debug().Str("user_id", u.ID).Int("attempt", attempt+1).Msg("update conflict, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}
		return u, nil
	}
	return nil, fmt.Errorf("update user: %w", domain.ErrVersionConflict)
}

func (s *AccountService) loadByID(id string) func(ctx context.Context) (*domain.User, error) {
	return func(ctx context.Context) (*domain.User, error) {
		return s.repo.FindByID(ctx, id)
	}
}

func (s *AccountService) validEmail(email string) bool {
	return s.validate.Var(email, "required,email") == nil
}

func (s *AccountService) activationLink(token string) string {
	return s.baseURL + "/auth/activate/" + token
}

func consumeResult(err error) string {
	if domain.KindOf(err) == domain.KindExpired {
		return "expired"
	}
	return "invalid"
}
