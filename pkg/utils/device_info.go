package utils

import (
	"os"
	"runtime"
)

// DetectOS returns the operating system type in a standardized format
// Returns: "linux", "macos", "windows", "freebsd", etc.
func DetectOS() string {
	switch runtime.GOOS {
	case "darwin":
		return "macos"
	case "linux":
		return "linux"
	case "windows":
		return "windows"
	case "freebsd":
		return "freebsd"
	default:
		return runtime.GOOS
	}
}

// DeviceName returns the host name, or "unknown" when it cannot be read.
// Stored on bindings as descriptive metadata only.
func DeviceName() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "unknown"
	}
	return hostname
}
