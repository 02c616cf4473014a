package user

import (
	"context"
	"errors"
	"time"
)

// Role is an explicit account attribute; it is never derived from the email.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleTeacher || r == RoleStudent }

// User is an account. A placeholder student has no password hash until it is
// claimed through registration.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Placeholder reports whether the account was created by roster enrollment
// and cannot log in yet.
func (u User) Placeholder() bool { return u.PasswordHash == "" }

// ErrEmailTaken is returned by repositories on a duplicate email.
var ErrEmailTaken = errors.New("user: email already registered")

// Repository persists users. Lookups return (nil, nil) when nothing matches.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	// Claim sets credentials on a placeholder; it fails with ErrEmailTaken if
	// the account was claimed concurrently.
	Claim(ctx context.Context, u *User) error
}
