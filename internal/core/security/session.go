package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/99minutos/account-service/internal/core/domain"
)

// DefaultSessionTTL is how long an issued session token stays valid.
const DefaultSessionTTL = 24 * time.Hour

var ErrMissingSigningKey = errors.New("session signing key is not configured")

// Claims is the JWT payload of a session token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string      `json:"userId"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`
}

// JWTIssuer signs HS256 session tokens.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTIssuer fails when secret is empty; there is no fallback key.
func NewJWTIssuer(secret string, ttl time.Duration) (*JWTIssuer, error) {
	if secret == "" {
		return nil, ErrMissingSigningKey
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &JWTIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (i *JWTIssuer) Issue(id domain.Identity) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		UserID: id.UserID,
		Email:  id.Email,
		Role:   id.Role,
	})
	return token.SignedString(i.secret)
}

// Verify rejects bad signatures, foreign algorithms, malformed tokens and
// expired tokens with domain.ErrInvalidSession.
func (i *JWTIssuer) Verify(tokenString string) (domain.Identity, error) {
	if len(i.secret) == 0 {
		return domain.Identity{}, ErrMissingSigningKey
	}

	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !tkn.Valid || claims.UserID == "" {
		return domain.Identity{}, domain.ErrInvalidSession
	}

	return domain.Identity{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
}
