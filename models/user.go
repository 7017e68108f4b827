package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRole represents the authority granted to a user
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// User represents a registered account. Email is the login identifier.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Name         string    `json:"name" db:"name"`
	Image        string    `json:"image,omitempty" db:"image"`
	Role         UserRole  `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// NewUser creates a new User with the default role
func NewUser(email, passwordHash, name string) *User {
	now := time.Now()
	return &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsAdmin returns true if the user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Principal returns an immutable authentication snapshot of the user
func (u *User) Principal() *Principal {
	authorities := []string{string(RoleUser)}
	if u.Role != "" && u.Role != RoleUser {
		authorities = append(authorities, string(u.Role))
	}
	return &Principal{
		UserID:         u.ID,
		Identifier:     u.Email,
		CredentialHash: u.PasswordHash,
		Authorities:    authorities,
	}
}
