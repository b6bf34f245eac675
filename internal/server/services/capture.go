package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"
)

// commandTimeout bounds every external probe so a hung vendor tool cannot
// stall the request pipeline.
const commandTimeout = 5 * time.Second

var (
	macPattern         = regexp.MustCompile(`(?i)([0-9A-F]{2}(?:[:-][0-9A-F]{2}){5})`)
	ipLinkIfacePattern = regexp.MustCompile(`^\d+:\s+([a-zA-Z0-9\-@]+):`)
	ipLinkAddrPattern  = regexp.MustCompile(`(?i)link/ether\s+([0-9a-f:]{17})`)
	ifconfigPattern    = regexp.MustCompile(`(?i)(?:HWaddr|lladdr|ether)\s+([0-9A-F:]{17})`)
	setupAddrPattern   = regexp.MustCompile(`(?i)Address:\s+([0-9a-f:]{17})`)
	canonicalPattern   = regexp.MustCompile(`^([0-9A-F]{2}:){5}[0-9A-F]{2}$`)
)

type captureStrategy struct {
	name string
	fn   func(ctx context.Context) (string, bool)
}

// CaptureService derives a stable hardware address for the host, trying a
// platform-specific chain of probes and falling back to an environment
// fingerprint when nothing real is obtainable. Capture never fails with an
// error: unobtainable identifiers fall through the chain.
type CaptureService struct {
	strategies []captureStrategy
}

func NewCaptureService() *CaptureService {
	s := &CaptureService{}
	s.strategies = s.buildChain(runtime.GOOS)
	return s
}

// buildChain orders the probes for a platform: a native head, then the
// shared generic tail, always ending in the fingerprint strategy so the
// chain is total.
func (s *CaptureService) buildChain(goos string) []captureStrategy {
	var head []captureStrategy
	switch goos {
	case "windows":
		head = []captureStrategy{{"getmac", s.captureGetmac}}
	case "darwin":
		head = []captureStrategy{{"networksetup", s.captureNetworksetup}}
	case "linux":
		head = []captureStrategy{{"ip-link", s.captureIPLink}}
	}

	tail := []captureStrategy{
		{"sysfs", s.captureSysfs},
		{"arp-command", s.captureARPCommand},
		{"proc-arp", s.captureProcARP},
		{"udp-socket", s.captureUDPSocket},
		{"ifconfig", s.captureIfconfig},
		{"proc-net-dev", s.captureProcNetDev},
		{"env-fingerprint", s.captureEnvironmentFingerprint},
	}
	return append(head, tail...)
}

// Capture walks the strategy chain and returns the first address obtained,
// canonicalized, along with the name of the strategy that produced it. The
// terminal fingerprint strategy always succeeds, so ok is false only on
// total environment failure.
func (s *CaptureService) Capture(ctx context.Context) (string, string, bool) {
	for _, strat := range s.strategies {
		mac, ok := strat.fn(ctx)
		if !ok {
			continue
		}
		mac = CanonicalMAC(mac)
		if mac == "" {
			log.Printf("Capture strategy %s returned malformed address, trying next", strat.name)
			continue
		}
		log.Printf("Captured MAC via %s: %s", strat.name, mac)
		return mac, strat.name, true
	}
	return "", "", false
}

// CanonicalMAC renders a hardware address as uppercase colon-joined hex
// octets. Returns "" when the input is not a 6-octet address.
func CanonicalMAC(mac string) string {
	mac = strings.ToUpper(strings.TrimSpace(mac))
	mac = strings.ReplaceAll(mac, "-", ":")
	if !canonicalPattern.MatchString(mac) {
		return ""
	}
	return mac
}

func runCommand(ctx context.Context, name string, args ...string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", false
	}
	return string(out), true
}

// Windows: getmac.exe lists adapters in CSV; the first data line carries
// the primary adapter's address.
func (s *CaptureService) captureGetmac(ctx context.Context) (string, bool) {
	out, ok := runCommand(ctx, "getmac.exe", "/format", "csv")
	if !ok {
		return "", false
	}
	return parseGetmacOutput(out)
}

func parseGetmacOutput(out string) (string, bool) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		return "", false
	}
	m := macPattern.FindString(lines[1])
	return m, m != ""
}

// macOS: networksetup enumerates hardware ports with their addresses.
func (s *CaptureService) captureNetworksetup(ctx context.Context) (string, bool) {
	out, ok := runCommand(ctx, "networksetup", "-listallhardwareports")
	if !ok {
		return "", false
	}
	if m := setupAddrPattern.FindStringSubmatch(out); m != nil {
		return m[1], true
	}
	return "", false
}

// Linux: ip link show, skipping the loopback interface.
func (s *CaptureService) captureIPLink(ctx context.Context) (string, bool) {
	out, ok := runCommand(ctx, "ip", "link", "show")
	if !ok {
		return "", false
	}
	return parseIPLinkOutput(out)
}

func parseIPLinkOutput(out string) (string, bool) {
	current := ""
	for _, line := range strings.Split(out, "\n") {
		if m := ipLinkIfacePattern.FindStringSubmatch(line); m != nil {
			current = m[1]
			if current == "lo" {
				current = ""
			}
			continue
		}
		if m := ipLinkAddrPattern.FindStringSubmatch(line); m != nil && current != "" {
			return m[1], true
		}
	}
	return "", false
}

// Direct read of the kernel's interface metadata, skipping loopback.
func (s *CaptureService) captureSysfs(ctx context.Context) (string, bool) {
	return readSysfsAddresses("/sys/class/net")
}

func readSysfsAddresses(root string) (string, bool) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if entry.Name() == "lo" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, entry.Name(), "address"))
		if err != nil {
			continue
		}
		mac := strings.TrimSpace(string(data))
		if CanonicalMAC(mac) != "" && mac != "00:00:00:00:00:00" {
			return mac, true
		}
	}
	return "", false
}

// Neighbor table via the arp tool.
func (s *CaptureService) captureARPCommand(ctx context.Context) (string, bool) {
	out, ok := runCommand(ctx, "arp", "-a")
	if !ok {
		return "", false
	}
	m := macPattern.FindString(out)
	return m, m != ""
}

// Neighbor table read straight from procfs.
func (s *CaptureService) captureProcARP(ctx context.Context) (string, bool) {
	data, err := os.ReadFile("/proc/net/arp")
	if err != nil {
		return "", false
	}
	m := macPattern.FindString(string(data))
	return m, m != "" && CanonicalMAC(m) != "00:00:00:00:00:00"
}

// Open a UDP socket to learn which local interface routes outbound
// traffic, then read that interface's link-layer address.
func (s *CaptureService) captureUDPSocket(ctx context.Context) (string, bool) {
	var d net.Dialer
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	conn, err := d.DialContext(ctx, "udp", "8.8.8.8:80")
	if err != nil {
		return "", false
	}
	localIP := conn.LocalAddr().(*net.UDPAddr).IP
	conn.Close()

	ifaces, err := net.Interfaces()
	if err != nil {
		return "", false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if ok && ipNet.IP.Equal(localIP) {
				return iface.HardwareAddr.String(), true
			}
		}
	}
	return "", false
}

// Legacy ifconfig text output.
func (s *CaptureService) captureIfconfig(ctx context.Context) (string, bool) {
	out, ok := runCommand(ctx, "ifconfig")
	if !ok {
		return "", false
	}
	if m := ifconfigPattern.FindStringSubmatch(out); m != nil {
		return m[1], true
	}
	return "", false
}

// Iterate the device list from /proc/net/dev and resolve each device's
// sysfs address file.
func (s *CaptureService) captureProcNetDev(ctx context.Context) (string, bool) {
	data, err := os.ReadFile("/proc/net/dev")
	if err != nil {
		return "", false
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) <= 2 {
		return "", false
	}
	for _, line := range lines[2:] {
		name, _, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" || name == "lo" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join("/sys/class/net", name, "address"))
		if err != nil {
			continue
		}
		mac := strings.TrimSpace(string(raw))
		if CanonicalMAC(mac) != "" && mac != "00:00:00:00:00:00" {
			return mac, true
		}
	}
	return "", false
}

// Terminal fallback: a deterministic pseudo-address derived from the
// execution environment. Sandboxed and serverless hosts expose no real
// adapters, so this trades device identity for environment identity; the
// enforcement gate bypasses verification in those environments anyway.
func (s *CaptureService) captureEnvironmentFingerprint(ctx context.Context) (string, bool) {
	hostname := os.Getenv("HOSTNAME")
	if hostname == "" {
		hostname, _ = os.Hostname()
	}

	deploymentID := os.Getenv("VERCEL_DEPLOYMENT_ID")
	if deploymentID == "" {
		deploymentID = os.Getenv("AWS_LAMBDA_FUNCTION_NAME")
	}
	if deploymentID == "" {
		deploymentID = "serverless"
	}

	mac := EnvironmentFingerprint(hostname, deploymentID)
	log.Printf("Generated environment fingerprint MAC: %s", mac)
	return mac, true
}

// EnvironmentFingerprint hashes host and deployment identity into a
// synthetic 6-octet address. Stable for a given environment, distinct
// across environments.
func EnvironmentFingerprint(hostname, deploymentID string) string {
	sum := sha256.Sum256([]byte(hostname + "-" + deploymentID))
	hexDigest := hex.EncodeToString(sum[:])[:12]

	octets := make([]string, 0, 6)
	for i := 0; i < 12; i += 2 {
		octets = append(octets, hexDigest[i:i+2])
	}
	return strings.ToUpper(strings.Join(octets, ":"))
}

// IsServerlessEnvironment reports whether the process runs inside a known
// sandboxed execution class where a captured address would identify the
// sandbox, not the user's device.
func IsServerlessEnvironment() bool {
	return os.Getenv("VERCEL") != "" || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

// StrategyNames lists the configured chain in priority order, for the
// debug surface.
func (s *CaptureService) StrategyNames() []string {
	names := make([]string, len(s.strategies))
	for i, strat := range s.strategies {
		names[i] = strat.name
	}
	return names
}
