package domain

import "errors"

// Kind classifies a domain error for the transport layer.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindExpired      Kind = "expired"
)

// Error is a client-safe failure with a classification.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Registration and login.
var (
	ErrMissingCredentials  = newError(KindValidation, "email and password are required")
	ErrMissingEmail        = newError(KindValidation, "email is required")
	ErrInvalidEmailFormat  = newError(KindValidation, "invalid email format")
	ErrWeakPassword        = newError(KindValidation, "password is too weak: it must contain at least 8 characters, including uppercase, lowercase, number and special character")
	ErrUserExists          = newError(KindConflict, "user already exists")
	ErrInvalidCredentials  = newError(KindUnauthorized, "invalid credentials")
	ErrAccountNotActivated = newError(KindForbidden, "account not activated, please check your email for the activation link")
)

// Activation.
var (
	ErrMissingToken = newError(KindValidation, "activation token is required")
	ErrInvalidToken = newError(KindValidation, "invalid activation token")
	ErrTokenExpired = newError(KindExpired, "activation token has expired, please request a new one")
)

// Password reset and change.
var (
	ErrMissingCode        = newError(KindValidation, "reset code is required")
	ErrMissingPassword    = newError(KindValidation, "new password is required")
	ErrPasswordMismatch   = newError(KindValidation, "passwords do not match")
	ErrInvalidCode        = newError(KindValidation, "invalid reset code")
	ErrCodeExpired        = newError(KindExpired, "reset code has expired, please request a new one")
	ErrMissingPasswordSet = newError(KindValidation, "old and new password are required")
)

// Profile management.
var (
	ErrForbidden           = newError(KindForbidden, "access forbidden")
	ErrRoleChangeForbidden = newError(KindForbidden, "only admins can change roles")
	ErrInvalidRole         = newError(KindValidation, "role must be one of: user, admin")
	ErrUserNotFound        = newError(KindNotFound, "user not found")
	ErrSelfDeletion        = newError(KindValidation, "cannot delete your own account")
)

// Session.
var ErrInvalidSession = newError(KindUnauthorized, "invalid or expired token")

// ErrVersionConflict is returned by repositories when a compare-and-swap
// update lost a race. It never reaches clients.
var ErrVersionConflict = errors.New("user record modified concurrently")

// KindOf returns the kind of err, or "" for errors that are not domain errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
