package domain

import "time"

// Role is the authorization level carried by a user and its session.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// DefaultName is used when registration omits a display name.
const DefaultName = "Unknown User"

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User is the account record. Only the repository owns it; everything outside
// the core receives a PublicUser.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         Role
	IsActive     bool

	ActivationToken        string
	ActivationTokenExpires *time.Time

	ResetToken        string
	ResetTokenExpires *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	// Version guards compare-and-swap updates in the repository.
	Version int64
}

// Clone returns a deep copy so callers never share expiry pointers.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.ActivationTokenExpires != nil {
		t := *u.ActivationTokenExpires
		c.ActivationTokenExpires = &t
	}
	if u.ResetTokenExpires != nil {
		t := *u.ResetTokenExpires
		c.ResetTokenExpires = &t
	}
	return &c
}

// SetActivation stores an activation token together with its expiry.
func (u *User) SetActivation(token string, expires time.Time) {
	u.ActivationToken = token
	u.ActivationTokenExpires = &expires
}

// ClearActivation drops both activation fields.
func (u *User) ClearActivation() {
	u.ActivationToken = ""
	u.ActivationTokenExpires = nil
}

// SetReset stores a reset code together with its expiry.
func (u *User) SetReset(code string, expires time.Time) {
	u.ResetToken = code
	u.ResetTokenExpires = &expires
}

// ClearReset drops both reset fields.
func (u *User) ClearReset() {
	u.ResetToken = ""
	u.ResetTokenExpires = nil
}

// ActivationExpired reports whether the pending activation token is past its
// validity at now. A token without expiry is treated as expired.
func (u *User) ActivationExpired(now time.Time) bool {
	return u.ActivationTokenExpires == nil || now.After(*u.ActivationTokenExpires)
}

// ResetExpired reports whether the outstanding reset code is past its validity.
func (u *User) ResetExpired(now time.Time) bool {
	return u.ResetTokenExpires == nil || now.After(*u.ResetTokenExpires)
}

// PublicUser is the projection that is safe to return to clients.
type PublicUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public builds the client-safe projection of u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// Identity is what a verified session asserts about its bearer.
type Identity struct {
	UserID string
	Email  string
	Role   Role
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
