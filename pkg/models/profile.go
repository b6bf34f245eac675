package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the minimal slice of the application user entity this service
// depends on. The profile row is owned by the account system; we only ensure
// one exists before creating a binding that references it.
type Profile struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
