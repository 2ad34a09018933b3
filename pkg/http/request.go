package http

import (
	"net"
	"net/http"
	"strings"
)

// IPConfig holds the proxies whose forwarding headers are trusted.
// Build it with NewIPConfig so CIDRs are parsed once at startup.
type IPConfig struct {
	trusted []*net.IPNet
}

// NewIPConfig parses trusted proxy CIDRs. Invalid entries are returned
// separately so the caller can log them; they are never trusted.
func NewIPConfig(cidrs []string) (*IPConfig, []string) {
	cfg := &IPConfig{}
	var invalid []string
	for _, cidr := range cidrs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			invalid = append(invalid, cidr)
			continue
		}
		cfg.trusted = append(cfg.trusted, ipNet)
	}
	return cfg, invalid
}

// ExtractClientIP returns the client address used for attempt records.
// X-Forwarded-For and X-Real-IP are honoured only when the direct peer
// is a trusted proxy; otherwise RemoteAddr wins.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := remoteAddr(r)

	if config == nil || !config.isTrusted(remoteIP) {
		return remoteIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, ip := range strings.Split(xff, ",") {
			ip = strings.TrimSpace(ip)
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}

	return remoteIP
}

func remoteAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

func (c *IPConfig) isTrusted(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, ipNet := range c.trusted {
		if ipNet.Contains(parsed) {
			return true
		}
	}
	return false
}
