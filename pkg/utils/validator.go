package utils

import (
	"net"
	"regexp"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

func IsValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}

var macRegex = regexp.MustCompile(`^([0-9A-F]{2}:){5}[0-9A-F]{2}$`)

// IsValidMAC reports whether s is a canonical hardware address:
// six uppercase hex octets joined by colons.
func IsValidMAC(s string) bool {
	return macRegex.MatchString(s)
}
