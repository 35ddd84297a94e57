// Package users stores accounts, checks passwords and handles the bulk
// roster imports schools send at the start of term.
package users

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("user not found")
	ErrConflict = errors.New("email or username already taken")
	// ErrBadCredentials covers unknown logins, wrong passwords and
	// deactivated accounts alike.
	ErrBadCredentials = errors.New("invalid credentials")
	ErrLastAdmin      = errors.New("cannot demote or deactivate the last admin")
)

type User struct {
	ID           string  `json:"id" db:"id"`
	Email        string  `json:"email" db:"email"`
	Username     string  `json:"username" db:"username"`
	FullName     string  `json:"full_name" db:"full_name"`
	PasswordHash string  `json:"-" db:"password_hash"`
	Role         string  `json:"role" db:"role"`
	SchoolID     *string `json:"school_id,omitempty" db:"school_id"`
	IsActive     bool    `json:"is_active" db:"is_active"`
	CreatedAt    int64   `json:"created_at" db:"created_at"`
}

type SignupRequest struct {
	Email    string  `json:"email" validate:"required,email,max=254"`
	Username string  `json:"username" validate:"required,min=3,max=64,alphanum_"`
	FullName string  `json:"full_name" validate:"max=200"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
	SchoolID *string `json:"school_id,omitempty"`
}

type SigninRequest struct {
	// Login is an email address or a username.
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type PasswordChange struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// Patch is a partial admin update; nil fields are left alone.
type Patch struct {
	Role     *string `json:"role,omitempty" validate:"omitempty,oneof=admin teacher student"`
	SchoolID *string `json:"school_id,omitempty"`
	FullName *string `json:"full_name,omitempty" validate:"omitempty,max=200"`
	IsActive *bool   `json:"is_active,omitempty"`
}

type ListOpts struct {
	Role     string
	SchoolID string
	Q        string
	Limit    int
	Offset   int
}

// BulkRow is one line of a roster import. Existing users are matched by id
// or email; a password is required only for new users.
type BulkRow struct {
	ID       string  `json:"id"`
	Email    string  `json:"email" validate:"required,email"`
	Username string  `json:"username" validate:"required,min=3,max=64,alphanum_"`
	FullName string  `json:"full_name"`
	Role     string  `json:"role" validate:"omitempty,oneof=admin teacher student"`
	Password string  `json:"password,omitempty"`
	SchoolID *string `json:"school_id,omitempty"`
}

type BulkResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

type Store interface {
	Signup(ctx context.Context, req SignupRequest) (User, error)
	Authenticate(ctx context.Context, login, password string) (User, error)
	Get(ctx context.Context, id string) (User, error)
	List(ctx context.Context, opts ListOpts) ([]User, error)
	Update(ctx context.Context, id string, p Patch) (User, error)
	ChangePassword(ctx context.Context, id string, req PasswordChange) error
	BulkUpsert(ctx context.Context, rows []BulkRow) (BulkResult, error)
}
