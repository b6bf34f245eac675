package services

import (
	"context"
	"testing"

	"github.com/devicebind/devicebind/internal/testutil"
	"github.com/google/uuid"
)

func newTestBindingService(tdb *testutil.TestDB) *BindingService {
	repos := tdb.Repositories()
	return NewBindingService(repos.Bindings, repos.Logs, repos.Profiles, NewCaptureService(), "test-secret")
}

func TestBindingService_CaptureAndBind_CreatesThenUpdates(t *testing.T) {
	tdb := testutil.GetTestDB(t)
	if tdb == nil {
		return
	}
	defer tdb.Close()

	ctx := context.Background()
	service := newTestBindingService(tdb)

	userID := tdb.CreateTestProfile(ctx, testutil.GenerateTestEmail())
	defer tdb.DeleteTestProfile(ctx, userID)

	first, err := service.CaptureAndBind(ctx, userID)
	if err != nil {
		t.Fatalf("CaptureAndBind failed: %v", err)
	}
	if first.MACAddress == "" || first.Checksum == "" {
		t.Fatal("Expected MAC and checksum on bind result")
	}
	if got := tdb.CountActiveBindings(ctx, userID); got != 1 {
		t.Fatalf("Expected 1 active binding, got %d", got)
	}

	// Re-binding while a binding is active updates in place
	second, err := service.CaptureAndBind(ctx, userID)
	if err != nil {
		t.Fatalf("Second CaptureAndBind failed: %v", err)
	}
	if second.BindingID != first.BindingID {
		t.Errorf("Expected update in place, got new binding %s (was %s)", second.BindingID, first.BindingID)
	}
	if got := tdb.CountActiveBindings(ctx, userID); got != 1 {
		t.Errorf("Expected 1 active binding after rebind, got %d", got)
	}
}

func TestBindingService_CaptureAndBind_NewRowAfterDeactivation(t *testing.T) {
	tdb := testutil.GetTestDB(t)
	if tdb == nil {
		return
	}
	defer tdb.Close()

	ctx := context.Background()
	service := newTestBindingService(tdb)

	userID := tdb.CreateTestProfile(ctx, testutil.GenerateTestEmail())
	defer tdb.DeleteTestProfile(ctx, userID)

	first, err := service.CaptureAndBind(ctx, userID)
	if err != nil {
		t.Fatalf("CaptureAndBind failed: %v", err)
	}

	ok, err := service.DeactivateBinding(ctx, first.BindingID)
	if err != nil || !ok {
		t.Fatalf("DeactivateBinding failed: ok=%v err=%v", ok, err)
	}
	if got := tdb.CountActiveBindings(ctx, userID); got != 0 {
		t.Fatalf("Expected 0 active bindings after deactivation, got %d", got)
	}

	// A deactivated binding is not resumed: a fresh row starts a new history
	second, err := service.CaptureAndBind(ctx, userID)
	if err != nil {
		t.Fatalf("CaptureAndBind after deactivation failed: %v", err)
	}
	if second.BindingID == first.BindingID {
		t.Error("Expected a new binding row, got the deactivated one reactivated")
	}
	if got := tdb.CountActiveBindings(ctx, userID); got != 1 {
		t.Errorf("Expected 1 active binding, got %d", got)
	}

	bindings, err := service.GetUserBindings(ctx, userID)
	if err != nil {
		t.Fatalf("GetUserBindings failed: %v", err)
	}
	if len(bindings) != 2 {
		t.Errorf("Expected 2 binding rows in history, got %d", len(bindings))
	}
}

func TestBindingService_Verify_Success(t *testing.T) {
	tdb := testutil.GetTestDB(t)
	if tdb == nil {
		return
	}
	defer tdb.Close()

	ctx := context.Background()
	service := newTestBindingService(tdb)

	userID := tdb.CreateTestProfile(ctx, testutil.GenerateTestEmail())
	defer tdb.DeleteTestProfile(ctx, userID)

	if _, err := service.CaptureAndBind(ctx, userID); err != nil {
		t.Fatalf("CaptureAndBind failed: %v", err)
	}

	result := service.Verify(ctx, userID, "203.0.113.10", "test-agent")
	if !result.Verified {
		t.Fatalf("Expected verification success, got reason=%s", result.Reason)
	}
	if result.Reason != ReasonSuccess {
		t.Errorf("Expected reason %q, got %q", ReasonSuccess, result.Reason)
	}

	binding, err := service.GetActiveBinding(ctx, userID)
	if err != nil || binding == nil {
		t.Fatalf("GetActiveBinding failed: %v", err)
	}
	if binding.VerificationCount != 1 {
		t.Errorf("Expected verification_count 1, got %d", binding.VerificationCount)
	}
	if binding.LastVerified == nil {
		t.Error("Expected last_verified to be set")
	}

	entries, err := service.GetVerificationLog(ctx, userID, 10)
	if err != nil {
		t.Fatalf("GetVerificationLog failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected exactly 1 log entry, got %d", len(entries))
	}
	if entries[0].VerificationStatus != "success" {
		t.Errorf("Expected success entry, got %s", entries[0].VerificationStatus)
	}
}

func TestBindingService_Verify_Mismatch(t *testing.T) {
	tdb := testutil.GetTestDB(t)
	if tdb == nil {
		return
	}
	defer tdb.Close()

	ctx := context.Background()
	service := newTestBindingService(tdb)

	userID := tdb.CreateTestProfile(ctx, testutil.GenerateTestEmail())
	defer tdb.DeleteTestProfile(ctx, userID)

	// Seed a binding whose MAC cannot match whatever capture produces
	storedMAC := "AA:11:BB:22:CC:99"
	checksum := ComputeChecksum(storedMAC, userID.String(), "test-secret")
	binding := tdb.CreateTestBinding(ctx, userID, storedMAC, checksum)

	result := service.Verify(ctx, userID, "203.0.113.10", "test-agent")
	if result.Verified {
		t.Fatal("Expected verification failure for mismatching MAC")
	}
	if result.Reason != ReasonMACMismatch {
		t.Errorf("Expected reason %q, got %q", ReasonMACMismatch, result.Reason)
	}

	got, err := service.GetActiveBinding(ctx, userID)
	if err != nil || got == nil {
		t.Fatalf("GetActiveBinding failed: %v", err)
	}
	if got.FailedVerificationCount != 1 {
		t.Errorf("Expected failed_verification_count 1, got %d", got.FailedVerificationCount)
	}
	// Verification failure alone never deactivates a binding
	if !got.IsActive {
		t.Error("Binding deactivated by verification failure")
	}

	entries, err := service.GetVerificationLog(ctx, userID, 10)
	if err != nil {
		t.Fatalf("GetVerificationLog failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected exactly 1 log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.VerificationStatus != "failed" {
		t.Errorf("Expected failed entry, got %s", entry.VerificationStatus)
	}
	if entry.BindingID == nil || *entry.BindingID != binding.ID {
		t.Error("Expected log entry to reference the binding")
	}
	if entry.ExpectedMAC == nil || *entry.ExpectedMAC != storedMAC {
		t.Error("Expected log entry to record the MAC on file")
	}
}

func TestBindingService_Verify_NoBinding(t *testing.T) {
	tdb := testutil.GetTestDB(t)
	if tdb == nil {
		return
	}
	defer tdb.Close()

	ctx := context.Background()
	service := newTestBindingService(tdb)

	userID := tdb.CreateTestProfile(ctx, testutil.GenerateTestEmail())
	defer tdb.DeleteTestProfile(ctx, userID)

	result := service.Verify(ctx, userID, "", "")
	if result.Verified {
		t.Fatal("Expected verification failure without a binding")
	}
	if result.Reason != ReasonNoBinding {
		t.Errorf("Expected reason %q, got %q", ReasonNoBinding, result.Reason)
	}

	entries, err := service.GetVerificationLog(ctx, userID, 10)
	if err != nil {
		t.Fatalf("GetVerificationLog failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected exactly 1 log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.MACAddress != nil {
		t.Error("Expected nil captured MAC when no binding existed")
	}
	if entry.BindingID != nil {
		t.Error("Expected nil binding id when no binding existed")
	}
}

func TestBindingService_DeactivateMissingBinding(t *testing.T) {
	tdb := testutil.GetTestDB(t)
	if tdb == nil {
		return
	}
	defer tdb.Close()

	service := newTestBindingService(tdb)
	ok, err := service.DeactivateBinding(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("DeactivateBinding errored: %v", err)
	}
	if ok {
		t.Error("Expected false for unknown binding id")
	}
}
