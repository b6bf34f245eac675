package services

import (
	"strings"
	"testing"
)

func TestComputeChecksum_Deterministic(t *testing.T) {
	a := ComputeChecksum("AA:11:BB:22:CC:33", "user-1", "s3cret")
	b := ComputeChecksum("AA:11:BB:22:CC:33", "user-1", "s3cret")
	if a != b {
		t.Errorf("Checksum not deterministic: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(a))
	}
}

func TestComputeChecksum_DivergesPerField(t *testing.T) {
	base := ComputeChecksum("AA:11:BB:22:CC:33", "user-1", "s3cret")

	variants := map[string]string{
		"mac":    ComputeChecksum("AA:11:BB:22:CC:34", "user-1", "s3cret"),
		"user":   ComputeChecksum("AA:11:BB:22:CC:33", "user-2", "s3cret"),
		"secret": ComputeChecksum("AA:11:BB:22:CC:33", "user-1", "other"),
	}
	for field, got := range variants {
		if got == base {
			t.Errorf("Checksum did not change when %s changed", field)
		}
	}
}

func TestNormalizeMAC(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AA:BB:CC:DD:EE:FF", "AABBCCDDEEFF"},
		{"aa:bb:cc:dd:ee:ff", "AABBCCDDEEFF"},
		{"aa-bb-cc-dd-ee-ff", "AABBCCDDEEFF"},
		{"aabbccddeeff", "AABBCCDDEEFF"},
	}
	for _, tt := range tests {
		if got := NormalizeMAC(tt.in); got != tt.want {
			t.Errorf("NormalizeMAC(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeMAC_Idempotent(t *testing.T) {
	once := NormalizeMAC("aa:bb:cc:dd:ee:ff")
	twice := NormalizeMAC(once)
	if once != twice {
		t.Errorf("NormalizeMAC not idempotent: %q != %q", once, twice)
	}
}

func TestVerifyMAC(t *testing.T) {
	const (
		mac    = "AA:11:BB:22:CC:33"
		userID = "user-1"
		secret = "s3cret"
	)
	checksum := ComputeChecksum(mac, userID, secret)

	if !VerifyMAC(mac, mac, checksum, userID, secret) {
		t.Error("Expected verification to pass for matching MAC and checksum")
	}

	// Delimiter/case differences in the stored MAC still match
	if !VerifyMAC(mac, strings.ToLower(mac), checksum, userID, secret) {
		t.Error("Expected verification to tolerate case differences in stored MAC")
	}

	if VerifyMAC("AA:11:BB:22:CC:99", mac, checksum, userID, secret) {
		t.Error("Expected verification to fail for different MAC")
	}
	if VerifyMAC(mac, mac, checksum, "user-2", secret) {
		t.Error("Expected verification to fail for different user")
	}
	if VerifyMAC(mac, mac, checksum, userID, "other") {
		t.Error("Expected verification to fail for different secret")
	}
	if VerifyMAC(mac, mac, "tampered-checksum", userID, secret) {
		t.Error("Expected verification to fail for tampered checksum")
	}
}
