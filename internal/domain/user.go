package domain

import (
	"strings"
	"time"
)

// User represents a registered account.
// Users own recipes, tags and ingredients.
type User struct {
	// ID is the unique identifier for the user (auto-generated).
	ID int64 `json:"id"`

	// Email is the unique login identifier. The domain part is stored
	// lower-cased, the local part as given.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the user's password.
	// This should never be exposed in API responses.
	PasswordHash string `json:"-"`

	// Name is the display name.
	Name string `json:"name"`

	// IsActive indicates whether the user account is active.
	// Inactive users cannot obtain tokens.
	IsActive bool `json:"is_active"`

	// IsStaff grants access to administrative tooling.
	IsStaff bool `json:"is_staff"`

	// IsSuperuser grants every permission.
	IsSuperuser bool `json:"is_superuser"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp when the user was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser creates a new active, unprivileged User.
func NewUser(email, passwordHash, name string) *User {
	now := time.Now().UTC()
	return &User{
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// CanAuthenticate returns true if the user is allowed to authenticate.
func (u *User) CanAuthenticate() bool {
	return u.IsActive
}

// NormalizeEmail lower-cases the domain part of an address and leaves the
// local part untouched. Addresses without '@' are returned trimmed.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}
