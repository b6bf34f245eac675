package services

import (
	"crypto/sha256"
	"encoding/hex"
	"log"
	"strings"
)

// ComputeChecksum derives the tamper-evidence digest for a stored binding:
// hex SHA-256 over "mac|user_id|secret". Field order is part of the format
// and must never change, or every stored checksum breaks.
func ComputeChecksum(mac, userID, secret string) string {
	combined := mac + "|" + userID + "|" + secret
	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:])
}

// NormalizeMAC strips colon and hyphen delimiters and uppercases, so
// "aa:bb:cc:dd:ee:ff" and "AA-BB-CC-DD-EE-FF" compare equal. Idempotent.
func NormalizeMAC(mac string) string {
	mac = strings.ReplaceAll(mac, ":", "")
	mac = strings.ReplaceAll(mac, "-", "")
	return strings.ToUpper(mac)
}

// VerifyMAC checks a freshly captured address against the stored binding.
// Both the normalized addresses and the recomputed checksum must match.
// The checksum comparison is intentionally kept even though it is redundant
// when the addresses already matched: it catches a stored row whose
// mac_address was edited without regenerating mac_checksum, and still holds
// after a secret rotation invalidates old digests.
func VerifyMAC(currentMAC, storedMAC, storedChecksum, userID, secret string) bool {
	if NormalizeMAC(currentMAC) != NormalizeMAC(storedMAC) {
		log.Printf("MAC mismatch for user %s: %s != %s", userID, currentMAC, storedMAC)
		return false
	}

	expected := ComputeChecksum(currentMAC, userID, secret)
	if expected != storedChecksum {
		log.Printf("Checksum verification failed for user %s", userID)
		return false
	}

	return true
}
