package user

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// User is the domain entity corresponding to the `users` table.
// Account lifecycle (registration, password, billing) is owned by other
// services; the tracking backend only reads users to resolve identities.
type User struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Email     string
	Role      Role
	Status    Status
}

var (
	ErrInvalidEmail  = errors.New("invalid email address")
	ErrBadTimestamps = errors.New("updated_at cannot be before created_at")
)

// NewUser constructs a new User entity.
func NewUser(id, email string, role Role) (*User, error) {
	now := time.Now().UTC()
	u := &User{
		ID:        strings.TrimSpace(id),
		CreatedAt: now,
		UpdatedAt: now,
		Email:     strings.TrimSpace(email),
		Role:      role,
		Status:    StatusActive,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}

	return u, nil
}

// Validate checks invariants of the User entity.
func (u *User) Validate() error {
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return ErrInvalidEmail
	}
	if !u.Role.Valid() {
		return ErrInvalidRole
	}
	if !u.Status.Valid() {
		return ErrInvalidStatus
	}
	if !u.CreatedAt.IsZero() && !u.UpdatedAt.IsZero() && u.UpdatedAt.Before(u.CreatedAt) {
		return ErrBadTimestamps
	}
	return nil
}

// Convenience helpers.
func (u *User) IsActive() bool     { return u.Status.IsActive() }
func (u *User) IsDriver() bool     { return u.Role.IsDriver() }
func (u *User) IsDispatcher() bool { return u.Role.IsDispatcher() }
func (u *User) IsAdmin() bool      { return u.Role.IsAdmin() }
