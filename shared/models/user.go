package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AccessToken is the server-side record of an issued bearer token.
// A token is only accepted while its record exists.
type AccessToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Caller is the authenticated identity behind a request.
type Caller struct {
	UserID  uuid.UUID
	TokenID uuid.UUID
}
