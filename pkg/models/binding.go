package models

import (
	"time"

	"github.com/google/uuid"
)

// DeviceBinding associates a user with the hardware address captured from
// the machine they authenticated on. At most one binding per user is active
// at any time; only the active binding is consulted during verification.
type DeviceBinding struct {
	ID     uuid.UUID `json:"id" db:"id"`
	UserID uuid.UUID `json:"user_id" db:"user_id"`

	// Canonical form: uppercase hex octets joined by colons ("AA:BB:..:FF")
	MACAddress  string `json:"mac_address" db:"mac_address"`
	MACChecksum string `json:"mac_checksum" db:"mac_checksum"`

	// Descriptive only, never used for verification decisions
	DeviceOS   string `json:"device_os" db:"device_os"`
	DeviceName string `json:"device_name" db:"device_name"`

	IsActive bool `json:"is_active" db:"is_active"`

	VerificationCount       int `json:"verification_count" db:"verification_count"`
	FailedVerificationCount int `json:"failed_verification_count" db:"failed_verification_count"`

	LastSeen     time.Time  `json:"last_seen" db:"last_seen"`
	LastVerified *time.Time `json:"last_verified,omitempty" db:"last_verified"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// BindingStats is the aggregate summary exposed to operator tooling.
type BindingStats struct {
	TotalBindings           int     `json:"total_bindings" db:"total_bindings"`
	ActiveBindings          int     `json:"active_bindings" db:"active_bindings"`
	InactiveBindings        int     `json:"inactive_bindings" db:"inactive_bindings"`
	TotalVerifications      int     `json:"total_verifications" db:"total_verifications"`
	SuccessfulVerifications int     `json:"successful_verifications" db:"successful_verifications"`
	FailedVerifications     int     `json:"failed_verifications" db:"failed_verifications"`
	SuccessRatePercent      float64 `json:"success_rate_percent" db:"success_rate_percent"`
}
