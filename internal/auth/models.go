package auth

import (
	"time"

	"github.com/google/uuid"
)

// User represents an application user. Username doubles as the tenant folder name.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	DisplayName  *string
	IsAdmin      bool
	IsActive     bool
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SafeUser removes sensitive fields for response payloads.
func (u User) SafeUser() User {
	u.PasswordHash = ""
	return u
}

// TokenPair bundles access and refresh tokens.
type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}
