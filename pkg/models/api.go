package models

// Auth API types
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=100"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	UserID    string `json:"user_id"`

	// Best-effort: nil when the binding step failed (the account action
	// itself still succeeded)
	Binding *BindingInfo `json:"binding,omitempty"`
}

// BindingInfo is the client-facing summary of a device binding. The checksum
// is never exposed.
type BindingInfo struct {
	BindingID  string `json:"binding_id"`
	MACAddress string `json:"mac_address"`
	DeviceOS   string `json:"device_os"`
	DeviceName string `json:"device_name"`
}

type DeviceStatusResponse struct {
	UserID  string         `json:"user_id"`
	Bound   bool           `json:"bound"`
	Binding *DeviceBinding `json:"binding,omitempty"`
}

// Admin API types
type ListBindingsResponse struct {
	Count    int             `json:"count"`
	Bindings []DeviceBinding `json:"bindings"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}

type UserBindingsResponse struct {
	UserID          string                 `json:"user_id"`
	Bindings        []DeviceBinding        `json:"bindings"`
	VerificationLog []VerificationLogEntry `json:"verification_log"`
}

type VerificationLogResponse struct {
	Count  int                    `json:"count"`
	Logs   []VerificationLogEntry `json:"logs"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

type DeactivateBindingResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type CaptureDebugResponse struct {
	System            string `json:"system"`
	MACCaptured       bool   `json:"mac_captured"`
	MACAddress        string `json:"mac_address"`
	Strategy          string `json:"strategy"`
	ChecksumGenerated bool   `json:"checksum_generated"`
	ChecksumSample    string `json:"checksum_sample,omitempty"`
}

// Error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Detail mirrors the terse failure body returned by the enforcement gate.
type Detail struct {
	Detail string `json:"detail"`
}
