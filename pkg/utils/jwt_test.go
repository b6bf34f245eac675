package utils

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGenerateAndValidateJWT(t *testing.T) {
	userID := uuid.New()
	token, expiresAt, err := GenerateJWT(userID, "user@example.com", "test-secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}
	if time.Until(expiresAt) < 55*time.Minute {
		t.Errorf("Expiration too soon: %v", expiresAt)
	}

	claims, err := ValidateJWT(token, "test-secret")
	if err != nil {
		t.Fatalf("ValidateJWT failed: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("UserID mismatch: got %s, want %s", claims.UserID, userID)
	}
	if claims.Email != "user@example.com" {
		t.Errorf("Email mismatch: got %q", claims.Email)
	}
}

func TestValidateJWT_WrongSecret(t *testing.T) {
	token, _, err := GenerateJWT(uuid.New(), "user@example.com", "right-secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}

	if _, err := ValidateJWT(token, "wrong-secret"); err == nil {
		t.Error("Expected error for wrong secret, got nil")
	}
}

func TestDecodeToken_TriesSecretsInOrder(t *testing.T) {
	userID := uuid.New()
	token, _, err := GenerateJWT(userID, "user@example.com", "local-secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}

	// Provider secret fails, local secret succeeds
	claims, err := DecodeToken(token, "provider-secret", "local-secret")
	if err != nil {
		t.Fatalf("DecodeToken failed: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("UserID mismatch: got %s, want %s", claims.UserID, userID)
	}

	// Empty secrets are skipped
	if _, err := DecodeToken(token, "", "local-secret"); err != nil {
		t.Errorf("DecodeToken with empty first secret failed: %v", err)
	}

	if _, err := DecodeToken(token, "wrong-a", "wrong-b"); err == nil {
		t.Error("Expected error when no secret matches, got nil")
	}
}

func TestSubjectUserID_FallsBackToSubject(t *testing.T) {
	id := uuid.New()
	c := &Claims{}
	c.Subject = id.String()

	got, ok := c.SubjectUserID()
	if !ok {
		t.Fatal("Expected user id from subject claim")
	}
	if got != id {
		t.Errorf("Subject user id mismatch: got %s, want %s", got, id)
	}

	c.Subject = "not-a-uuid"
	if _, ok := c.SubjectUserID(); ok {
		t.Error("Expected failure for malformed subject")
	}
}

func TestIsValidMAC(t *testing.T) {
	valid := []string{"AA:BB:CC:DD:EE:FF", "00:11:22:33:44:55"}
	for _, mac := range valid {
		if !IsValidMAC(mac) {
			t.Errorf("Expected %q to be valid", mac)
		}
	}

	invalid := []string{"aa:bb:cc:dd:ee:ff", "AA-BB-CC-DD-EE-FF", "AABBCCDDEEFF", "AA:BB:CC:DD:EE", ""}
	for _, mac := range invalid {
		if IsValidMAC(mac) {
			t.Errorf("Expected %q to be invalid", mac)
		}
	}
}
