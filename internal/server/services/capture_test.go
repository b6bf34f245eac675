package services

import (
	"context"
	"testing"
)

func TestCanonicalMAC(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"aa:bb:cc:dd:ee:ff", "AA:BB:CC:DD:EE:FF"},
		{"AA-BB-CC-DD-EE-FF", "AA:BB:CC:DD:EE:FF"},
		{"  aa:bb:cc:dd:ee:ff\n", "AA:BB:CC:DD:EE:FF"},
		{"AA:BB:CC:DD:EE", ""},
		{"not-a-mac", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CanonicalMAC(tt.in); got != tt.want {
			t.Errorf("CanonicalMAC(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseGetmacOutput(t *testing.T) {
	out := "\"Physical Address\",\"Transport Name\"\r\n" +
		"\"A1-B2-C3-D4-E5-F6\",\"\\Device\\Tcpip_{...}\"\r\n"
	mac, ok := parseGetmacOutput(out)
	if !ok {
		t.Fatal("Expected MAC from getmac CSV output")
	}
	if CanonicalMAC(mac) != "A1:B2:C3:D4:E5:F6" {
		t.Errorf("Unexpected MAC: %q", mac)
	}

	if _, ok := parseGetmacOutput("\"Physical Address\",\"Transport Name\""); ok {
		t.Error("Expected failure for header-only output")
	}
}

func TestParseIPLinkOutput_SkipsLoopback(t *testing.T) {
	out := `1: lo: <LOOPBACK,UP,LOWER_UP> mtu 65536
    link/loopback 00:00:00:00:00:00 brd 00:00:00:00:00:00
2: eth0: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500
    link/ether aa:bb:cc:dd:ee:ff brd ff:ff:ff:ff:ff:ff
`
	mac, ok := parseIPLinkOutput(out)
	if !ok {
		t.Fatal("Expected MAC from ip link output")
	}
	if mac != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("Expected eth0 address, got %q", mac)
	}
}

func TestParseIPLinkOutput_LoopbackOnly(t *testing.T) {
	out := `1: lo: <LOOPBACK,UP,LOWER_UP> mtu 65536
    link/loopback 00:00:00:00:00:00 brd 00:00:00:00:00:00
`
	if _, ok := parseIPLinkOutput(out); ok {
		t.Error("Expected no MAC when only loopback is present")
	}
}

func TestEnvironmentFingerprint_Stable(t *testing.T) {
	a := EnvironmentFingerprint("host-1", "deploy-abc")
	b := EnvironmentFingerprint("host-1", "deploy-abc")
	if a != b {
		t.Errorf("Fingerprint not stable: %s != %s", a, b)
	}
	if CanonicalMAC(a) == "" {
		t.Errorf("Fingerprint is not a canonical MAC: %q", a)
	}

	other := EnvironmentFingerprint("host-2", "deploy-abc")
	if other == a {
		t.Error("Expected different hosts to produce different fingerprints")
	}
	otherDeploy := EnvironmentFingerprint("host-1", "deploy-xyz")
	if otherDeploy == a {
		t.Error("Expected different deployments to produce different fingerprints")
	}
}

func TestBuildChain_PlatformHeads(t *testing.T) {
	s := &CaptureService{}

	linux := s.buildChain("linux")
	if linux[0].name != "ip-link" {
		t.Errorf("Expected linux chain to start with ip-link, got %s", linux[0].name)
	}
	windows := s.buildChain("windows")
	if windows[0].name != "getmac" {
		t.Errorf("Expected windows chain to start with getmac, got %s", windows[0].name)
	}
	darwin := s.buildChain("darwin")
	if darwin[0].name != "networksetup" {
		t.Errorf("Expected darwin chain to start with networksetup, got %s", darwin[0].name)
	}

	// Unknown platforms get only the shared tail
	other := s.buildChain("plan9")
	if other[0].name != "sysfs" {
		t.Errorf("Expected generic chain to start with sysfs, got %s", other[0].name)
	}

	// Every chain ends in the guaranteed fingerprint strategy
	for _, chain := range [][]captureStrategy{linux, windows, darwin, other} {
		last := chain[len(chain)-1]
		if last.name != "env-fingerprint" {
			t.Errorf("Expected chain to end in env-fingerprint, got %s", last.name)
		}
	}
}

func TestCapture_AlwaysReturnsCanonicalMAC(t *testing.T) {
	s := NewCaptureService()
	mac, strategy, ok := s.Capture(context.Background())
	if !ok {
		t.Fatal("Capture failed despite guaranteed fallback")
	}
	if CanonicalMAC(mac) != mac {
		t.Errorf("Captured MAC not canonical: %q (via %s)", mac, strategy)
	}

	// Repeated capture in the same environment is stable
	again, _, ok := s.Capture(context.Background())
	if !ok {
		t.Fatal("Second capture failed")
	}
	if again != mac {
		t.Errorf("Capture not stable: %s then %s", mac, again)
	}
}
