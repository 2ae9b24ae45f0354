package domain

import (
	"strings"
	"time"
)

// Role is a user's authority level.
type Role string

const (
	RoleUser       Role = "user"
	RoleSupervisor Role = "supervisor"
)

// ParseRole defaults an empty value to RoleUser.
func ParseRole(raw string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(raw))); r {
	case "":
		return RoleUser, nil
	case RoleUser, RoleSupervisor:
		return r, nil
	default:
		return "", ErrInvalidRole
	}
}

// User represents an entry of the user directory.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Department   string    `json:"department"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Caller builds the authenticated-user context for this user.
func (u *User) Caller() Caller {
	if u == nil {
		return Caller{}
	}
	return Caller{ID: u.ID, Role: u.Role, Department: u.Department, Email: u.Email}
}

// Caller is the identity resolved from a request's credentials.
type Caller struct {
	ID         string `json:"id"`
	Role       Role   `json:"role"`
	Department string `json:"department"`
	Email      string `json:"email"`
}

func (c Caller) Authenticated() bool {
	return c.ID != ""
}

func (c Caller) IsSupervisor() bool {
	return c.Role == RoleSupervisor
}
