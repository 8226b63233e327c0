package domain

import (
	"errors"
	"time"
)

// Role is the privilege level stored on a user record.
type Role string

const (
	RoleNone  Role = ""
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole normalises a role string. Unknown values map to RoleNone.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s)
	}
	return RoleNone
}

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLockNotAcquired    = errors.New("lock not acquired")
)

// User is the aggregate root of the service. Soft-deleted records keep their
// role and external auth id for audit.
type User struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	DisplayName    string     `json:"display_name"`
	ExternalAuthID string     `json:"external_auth_id"`
	Role           Role       `json:"role"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
	IsDeleted      bool       `json:"is_deleted"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// IsAdmin reports whether the stored role grants admin privileges.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Rename overwrites the display name and stamps UpdatedAt, even when the
// name is unchanged.
func (u *User) Rename(name string, now time.Time) {
	u.DisplayName = name
	u.touch(now)
}

// MarkDeleted flags the record as soft-deleted.
func (u *User) MarkDeleted(now time.Time) {
	u.IsDeleted = true
	u.DeletedAt = &now
	u.touch(now)
}

func (u *User) touch(now time.Time) {
	t := now
	u.UpdatedAt = &t
}

// Credential is a local identity-provider account. ID doubles as the
// external auth id handed to the user store.
type Credential struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
