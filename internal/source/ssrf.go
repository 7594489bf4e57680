package source

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// allowPrivateSourceTargetsOnce caches the environment variable read at startup.
var (
	allowPrivateSourceTargetsOnce  sync.Once
	allowPrivateSourceTargetsValue bool
)

func allowPrivateSourceTargets() bool {
	allowPrivateSourceTargetsOnce.Do(func() {
		raw := strings.ToLower(strings.TrimSpace(os.Getenv("NEOFEEDS_ALLOW_PRIVATE_NETWORKS")))
		allowPrivateSourceTargetsValue = raw == "1" || raw == "true" || raw == "yes"
	})
	return allowPrivateSourceTargetsValue
}

// ValidateSourceURL rejects source targets that could be used to reach
// internal infrastructure (loopback, link-local, private, CGNAT ranges).
// Applied in strict mode only; development deployments may point sources
// at local stubs.
func ValidateSourceURL(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid source url")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("source url scheme %q not allowed", parsed.Scheme)
	}
	if parsed.User != nil {
		return fmt.Errorf("source url must not include userinfo")
	}

	host := strings.ToLower(strings.TrimSuffix(parsed.Hostname(), "."))
	if host == "" {
		return fmt.Errorf("source url must include hostname")
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("source hostname not allowed in strict mode")
	}

	if ip := net.ParseIP(host); ip != nil {
		if isDisallowedSourceIP(ip) {
			return fmt.Errorf("source target IP not allowed in strict mode")
		}
		return nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	addrs, err := net.DefaultResolver.LookupIPAddr(lookupCtx, host)
	if err != nil {
		return fmt.Errorf("failed to resolve source hostname: %w", err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("failed to resolve source hostname: no addresses found")
	}

	for _, addr := range addrs {
		if isDisallowedSourceIP(addr.IP) {
			return fmt.Errorf("source hostname resolves to a private or local IP which is not allowed in strict mode")
		}
	}
	return nil
}

func isDisallowedSourceIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast() || ip.IsUnspecified() {
		return true
	}
	if ip.IsPrivate() {
		return true
	}

	// Carrier-grade NAT (RFC 6598): 100.64.0.0/10
	if v4 := ip.To4(); v4 != nil {
		if v4[0] == 100 && v4[1] >= 64 && v4[1] <= 127 {
			return true
		}
	}

	return false
}
