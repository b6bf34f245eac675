package models

import (
	"time"

	"github.com/google/uuid"
)

// Verification outcome values stored in verification_log.verification_status
const (
	VerificationStatusSuccess = "success"
	VerificationStatusFailed  = "failed"
)

// VerificationLogEntry is one immutable record of a verification attempt.
// Entries are append-only; nothing ever updates or deletes them.
type VerificationLogEntry struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    uuid.UUID  `json:"user_id" db:"user_id"`
	BindingID *uuid.UUID `json:"binding_id,omitempty" db:"binding_id"`

	// MAC captured at verification time; nil when capture itself failed
	MACAddress *string `json:"mac_address,omitempty" db:"mac_address"`
	// MAC on file for the user; nil when no binding existed
	ExpectedMAC *string `json:"expected_mac,omitempty" db:"expected_mac"`

	VerificationStatus string `json:"verification_status" db:"verification_status"`
	ChecksumMatch      bool   `json:"checksum_match" db:"checksum_match"`

	IPAddress    *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent    *string `json:"user_agent,omitempty" db:"user_agent"`
	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
