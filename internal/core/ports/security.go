package ports

import (
	"time"

	"github.com/99minutos/account-service/internal/core/domain"
)

// PasswordHasher performs one-way password hashing.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	// Verify reports whether plaintext matches digest.
	Verify(plaintext, digest string) bool
}

// TokenGenerator produces single-use credentials together with their expiry.
type TokenGenerator interface {
	ActivationToken(now time.Time) (string, time.Time, error)
	ResetCode(now time.Time) (string, time.Time, error)
}

// SessionIssuer signs and verifies stateless session credentials.
type SessionIssuer interface {
	Issue(identity domain.Identity) (string, error)
	Verify(token string) (domain.Identity, error)
}
