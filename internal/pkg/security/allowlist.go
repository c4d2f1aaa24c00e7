package security

import (
	"fmt"
	"net"
	"strings"
)

// IPAllowlist holds the set of source addresses the payment provider is known
// to deliver from. Entries may be plain IPs or CIDR ranges. The list is built
// once at startup and never mutated.
type IPAllowlist struct {
	exact map[string]struct{}
	nets  []*net.IPNet
}

func NewIPAllowlist(entries []string) (*IPAllowlist, error) {
	al := &IPAllowlist{exact: make(map[string]struct{})}
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid allowlist CIDR %q: %w", entry, err)
			}
			al.nets = append(al.nets, ipNet)
			continue
		}
		if net.ParseIP(entry) == nil {
			return nil, fmt.Errorf("invalid allowlist IP %q", entry)
		}
		al.exact[entry] = struct{}{}
	}
	return al, nil
}

// Contains reports whether the given IP is allowlisted.
func (al *IPAllowlist) Contains(ip string) bool {
	if _, ok := al.exact[ip]; ok {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range al.nets {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

// ClientIP extracts the caller's address using the documented header
// precedence: first X-Forwarded-For hop, then X-Real-IP, then the socket
// remote address.
func ClientIP(forwardedFor, realIP, remoteAddr string) string {
	if forwardedFor != "" {
		first := strings.TrimSpace(strings.Split(forwardedFor, ",")[0])
		if first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(realIP); ip != "" {
		return ip
	}
	return strings.TrimSpace(remoteAddr)
}
