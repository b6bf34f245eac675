package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/devicebind/devicebind/pkg/models"
	"github.com/google/uuid"
)

// GenerateTestEmail returns a unique email so parallel tests never collide.
func GenerateTestEmail() string {
	return fmt.Sprintf("test-%s@example.com", uuid.New().String()[:8])
}

// CreateTestProfile creates a profile row and returns its id.
func (tdb *TestDB) CreateTestProfile(ctx context.Context, email string) uuid.UUID {
	tdb.t.Helper()

	id := uuid.New()
	_, err := tdb.DB.ExecContext(ctx, `
		INSERT INTO profiles (id, email, username, password_hash)
		VALUES ($1, $2, $3, '')
	`, id, email, "user-"+id.String()[:8])
	if err != nil {
		tdb.t.Fatalf("Failed to create test profile: %v", err)
	}
	return id
}

// DeleteTestProfile removes a profile and everything referencing it.
func (tdb *TestDB) DeleteTestProfile(ctx context.Context, userID uuid.UUID) {
	tdb.t.Helper()
	_, _ = tdb.DB.ExecContext(ctx, "DELETE FROM verification_log WHERE user_id = $1", userID)
	_, _ = tdb.DB.ExecContext(ctx, "DELETE FROM device_bindings WHERE user_id = $1", userID)
	_, _ = tdb.DB.ExecContext(ctx, "DELETE FROM profiles WHERE id = $1", userID)
}

// CreateTestBinding creates an active binding for a user with the given MAC.
func (tdb *TestDB) CreateTestBinding(ctx context.Context, userID uuid.UUID, mac, checksum string) *models.DeviceBinding {
	tdb.t.Helper()

	binding := &models.DeviceBinding{
		ID:          uuid.New(),
		UserID:      userID,
		MACAddress:  mac,
		MACChecksum: checksum,
		DeviceOS:    "linux",
		DeviceName:  "test-host",
		IsActive:    true,
		LastSeen:    time.Now(),
	}
	_, err := tdb.DB.ExecContext(ctx, `
		INSERT INTO device_bindings (id, user_id, mac_address, mac_checksum, device_os, device_name, is_active, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`, binding.ID, binding.UserID, binding.MACAddress, binding.MACChecksum,
		binding.DeviceOS, binding.DeviceName, binding.IsActive)
	if err != nil {
		tdb.t.Fatalf("Failed to create test binding: %v", err)
	}
	return binding
}

// CountActiveBindings returns the number of active bindings for a user.
func (tdb *TestDB) CountActiveBindings(ctx context.Context, userID uuid.UUID) int {
	tdb.t.Helper()

	var count int
	err := tdb.DB.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM device_bindings WHERE user_id = $1 AND is_active = true", userID)
	if err != nil {
		tdb.t.Fatalf("Failed to count active bindings: %v", err)
	}
	return count
}
