package http

import (
	"net"
	"net/http"
	"strings"
)

// IPConfig holds configuration for client address extraction. The
// resolved address feeds the sign-in rate limiter, so forwarding
// headers are honored only when the peer is a trusted proxy.
type IPConfig struct {
	TrustedProxies []string // CIDR ranges of trusted proxies
}

// ExtractClientIP resolves the client address for a request.
//
// Flow:
// 1. If the peer is a trusted proxy, take the first valid X-Forwarded-For entry
// 2. If the peer is a trusted proxy, take X-Real-IP
// 3. Fall back to RemoteAddr
//
// Requests with no usable peer address yield "unknown", which the
// address anonymizer downstream treats as an absent source.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := remoteHost(r)

	if config != nil && isTrustedProxy(remoteIP, config.TrustedProxies) {
		if addr := firstForwardedAddr(r); addr != "" {
			return addr
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" && net.ParseIP(xri) != nil {
			return xri
		}
	}

	return remoteIP
}

// firstForwardedAddr returns the first valid address in X-Forwarded-For,
// which is the original client when every hop appends honestly.
func firstForwardedAddr(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return ""
	}
	for _, entry := range strings.Split(xff, ",") {
		entry = strings.TrimSpace(entry)
		if net.ParseIP(entry) != nil {
			return entry
		}
	}
	return ""
}

// remoteHost extracts the peer address from RemoteAddr, stripping the
// port when present.
func remoteHost(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// isTrustedProxy checks if an address is within any of the trusted proxy CIDR ranges
func isTrustedProxy(ip string, trustedProxies []string) bool {
	if len(trustedProxies) == 0 {
		return false
	}

	clientIP := net.ParseIP(ip)
	if clientIP == nil {
		return false
	}

	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue // Skip invalid CIDR ranges
		}
		if ipNet.Contains(clientIP) {
			return true
		}
	}

	return false
}
