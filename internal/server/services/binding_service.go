package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/devicebind/devicebind/internal/server/storage"
	"github.com/devicebind/devicebind/pkg/models"
	"github.com/devicebind/devicebind/pkg/utils"
	"github.com/google/uuid"
)

// Verification outcome reason codes. These are recorded in the audit log
// and never echoed to clients.
const (
	ReasonSuccess           = "success"
	ReasonNoBinding         = "no_binding"
	ReasonCaptureFailed     = "capture_failed"
	ReasonMACMismatch       = "mac_mismatch"
	ReasonVerificationError = "verification_error"
)

// VerificationResult is the structured outcome of a verification attempt.
// Expected failures (no binding, capture failure, mismatch) are values,
// not errors.
type VerificationResult struct {
	Verified bool   `json:"verified"`
	Reason   string `json:"reason"`
	Message  string `json:"message"`
}

// BindResult describes a completed capture-and-bind operation.
type BindResult struct {
	BindingID  uuid.UUID
	MACAddress string
	Checksum   string
	DeviceOS   string
	DeviceName string
}

type BindingService struct {
	bindings *storage.BindingRepository
	logs     *storage.VerificationLogRepository
	profiles *storage.ProfileRepository
	capture  *CaptureService
	secret   string

	// Serializes the check-then-write in CaptureAndBind per user, so two
	// simultaneous logins cannot both pass the existence check and insert.
	// The partial unique index on device_bindings backstops this.
	mu        sync.Mutex
	userLocks map[uuid.UUID]*sync.Mutex
}

func NewBindingService(
	bindings *storage.BindingRepository,
	logs *storage.VerificationLogRepository,
	profiles *storage.ProfileRepository,
	capture *CaptureService,
	secret string,
) *BindingService {
	return &BindingService{
		bindings:  bindings,
		logs:      logs,
		profiles:  profiles,
		capture:   capture,
		secret:    secret,
		userLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *BindingService) lockUser(userID uuid.UUID) func() {
	s.mu.Lock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// CaptureAndBind captures the host's hardware address and binds it to the
// user: updates the active binding in place when one exists, otherwise
// inserts a new row. A deactivated binding is never reactivated; an
// administrative reset deliberately starts a fresh binding history.
func (s *BindingService) CaptureAndBind(ctx context.Context, userID uuid.UUID) (*BindResult, error) {
	mac, strategy, ok := s.capture.Capture(ctx)
	if !ok {
		return nil, fmt.Errorf("unable to capture system MAC address")
	}
	log.Printf("MAC captured for user %s via %s: %s", userID, strategy, mac)

	checksum := ComputeChecksum(mac, userID.String(), s.secret)
	deviceOS := utils.DetectOS()
	deviceName := utils.DeviceName()

	// The binding row references the profile entity owned by the account
	// system; make sure one exists so the insert cannot fail on the FK.
	if err := s.profiles.EnsureExists(ctx, userID); err != nil {
		log.Printf("Could not ensure profile exists for user %s: %v", userID, err)
	}

	unlock := s.lockUser(userID)
	defer unlock()

	existing, err := s.bindings.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active binding: %w", err)
	}

	if existing != nil {
		existing.MACAddress = mac
		existing.MACChecksum = checksum
		existing.DeviceOS = deviceOS
		existing.DeviceName = deviceName
		if err := s.bindings.UpdateActive(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to update binding: %w", err)
		}
		log.Printf("Updated MAC binding for user %s: binding_id=%s", userID, existing.ID)
		return &BindResult{
			BindingID:  existing.ID,
			MACAddress: mac,
			Checksum:   checksum,
			DeviceOS:   deviceOS,
			DeviceName: deviceName,
		}, nil
	}

	binding := &models.DeviceBinding{
		ID:          uuid.New(),
		UserID:      userID,
		MACAddress:  mac,
		MACChecksum: checksum,
		DeviceOS:    deviceOS,
		DeviceName:  deviceName,
		IsActive:    true,
	}
	if err := s.bindings.Create(ctx, binding); err != nil {
		return nil, fmt.Errorf("failed to create binding: %w", err)
	}
	log.Printf("Created MAC binding for user %s: binding_id=%s", userID, binding.ID)

	return &BindResult{
		BindingID:  binding.ID,
		MACAddress: mac,
		Checksum:   checksum,
		DeviceOS:   deviceOS,
		DeviceName: deviceName,
	}, nil
}

// Verify re-captures the host's address and compares it against the user's
// active binding. Every attempt, success or failure, is recorded in the
// audit log; audit failures never affect the returned result.
func (s *BindingService) Verify(ctx context.Context, userID uuid.UUID, ipAddress, userAgent string) VerificationResult {
	binding, err := s.bindings.GetActiveByUser(ctx, userID)
	if err != nil {
		log.Printf("Error fetching active binding for user %s: %v", userID, err)
		return VerificationResult{
			Verified: false,
			Reason:   ReasonVerificationError,
			Message:  "An error occurred during MAC verification",
		}
	}

	if binding == nil {
		log.Printf("No active MAC binding found for user %s", userID)
		s.appendLog(ctx, userID, nil, nil, nil, false, ipAddress, userAgent, "No active binding found")
		return VerificationResult{
			Verified: false,
			Reason:   ReasonNoBinding,
			Message:  "No MAC binding found for user",
		}
	}

	currentMAC, _, ok := s.capture.Capture(ctx)
	if !ok {
		log.Printf("Failed to capture MAC for verification for user %s", userID)
		s.appendLog(ctx, userID, &binding.ID, nil, &binding.MACAddress, false, ipAddress, userAgent, "Failed to capture current MAC")
		return VerificationResult{
			Verified: false,
			Reason:   ReasonCaptureFailed,
			Message:  "Unable to capture system MAC for verification",
		}
	}

	valid := VerifyMAC(currentMAC, binding.MACAddress, binding.MACChecksum, userID.String(), s.secret)

	if valid {
		if err := s.bindings.RecordSuccess(ctx, binding.ID); err != nil {
			log.Printf("Error updating verification count for user %s: %v", userID, err)
		}
		s.appendLog(ctx, userID, &binding.ID, &currentMAC, &binding.MACAddress, true, ipAddress, userAgent, "")
		return VerificationResult{
			Verified: true,
			Reason:   ReasonSuccess,
			Message:  "MAC verification successful",
		}
	}

	if err := s.bindings.RecordFailure(ctx, binding.ID); err != nil {
		log.Printf("Error updating failure count for user %s: %v", userID, err)
	}
	s.appendLog(ctx, userID, &binding.ID, &currentMAC, &binding.MACAddress, false, ipAddress, userAgent, "MAC mismatch")
	return VerificationResult{
		Verified: false,
		Reason:   ReasonMACMismatch,
		Message:  "Device MAC address does not match recorded binding",
	}
}

// appendLog writes one audit entry. Fire-and-forget: a failed write is
// logged locally and swallowed so it can never fail the verification.
func (s *BindingService) appendLog(ctx context.Context, userID uuid.UUID, bindingID *uuid.UUID,
	macAddress, expectedMAC *string, success bool, ipAddress, userAgent, errorMessage string) {

	status := models.VerificationStatusFailed
	if success {
		status = models.VerificationStatusSuccess
	}

	entry := &models.VerificationLogEntry{
		ID:                 uuid.New(),
		UserID:             userID,
		BindingID:          bindingID,
		MACAddress:         macAddress,
		ExpectedMAC:        expectedMAC,
		VerificationStatus: status,
		ChecksumMatch:      success,
	}
	if ipAddress != "" {
		entry.IPAddress = &ipAddress
	}
	if userAgent != "" {
		entry.UserAgent = &userAgent
	}
	if errorMessage != "" {
		entry.ErrorMessage = &errorMessage
	}

	if err := s.logs.Append(ctx, entry); err != nil {
		log.Printf("Error logging verification for user %s: %v", userID, err)
		return
	}
	log.Printf("Verification logged for user %s: status=%s", userID, status)
}

func (s *BindingService) GetActiveBinding(ctx context.Context, userID uuid.UUID) (*models.DeviceBinding, error) {
	return s.bindings.GetActiveByUser(ctx, userID)
}

func (s *BindingService) GetUserBindings(ctx context.Context, userID uuid.UUID) ([]models.DeviceBinding, error) {
	return s.bindings.ListByUser(ctx, userID)
}

func (s *BindingService) ListAllBindings(ctx context.Context, limit, offset int) ([]models.DeviceBinding, error) {
	return s.bindings.ListAll(ctx, limit, offset)
}

// DeactivateBinding forces the user through capture-and-bind again on
// their next login. Administrative action only; verification failures
// never deactivate a binding by themselves.
func (s *BindingService) DeactivateBinding(ctx context.Context, bindingID uuid.UUID) (bool, error) {
	ok, err := s.bindings.Deactivate(ctx, bindingID)
	if err != nil {
		return false, err
	}
	if ok {
		log.Printf("Deactivated MAC binding: %s", bindingID)
	}
	return ok, nil
}

func (s *BindingService) GetVerificationLog(ctx context.Context, userID uuid.UUID, limit int) ([]models.VerificationLogEntry, error) {
	return s.logs.ListByUser(ctx, userID, limit)
}

func (s *BindingService) ListVerificationLog(ctx context.Context, status string, limit, offset int) ([]models.VerificationLogEntry, error) {
	return s.logs.ListAll(ctx, status, limit, offset)
}

func (s *BindingService) Stats(ctx context.Context) (*models.BindingStats, error) {
	return s.bindings.Stats(ctx)
}

// CaptureDebug runs the capture engine once and reports what it produced.
// Used by the operator debug surface and the admin CLI.
func (s *BindingService) CaptureDebug(ctx context.Context) (mac, strategy, checksumSample string, ok bool) {
	mac, strategy, ok = s.capture.Capture(ctx)
	if !ok {
		return "", "", "", false
	}
	checksum := ComputeChecksum(mac, "debug-user", s.secret)
	return mac, strategy, checksum[:20] + "...", true
}
