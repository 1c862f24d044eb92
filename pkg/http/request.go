package http

import (
	"net"
	"net/http"
	"strings"
)

// IPConfig controls which peers may assert a client IP on behalf of the
// caller. Entries are CIDR ranges or bare addresses.
type IPConfig struct {
	TrustedProxies []string
}

// ExtractClientIP returns the client IP the audit trail should record.
// X-Forwarded-For and X-Real-IP are honored only when the request arrives
// from a trusted proxy; any other peer could set them to arbitrary values.
//
// Order: X-Forwarded-For (first valid entry), then X-Real-IP, then the
// connection's RemoteAddr.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := getRemoteAddr(r)

	if config != nil && isTrustedProxy(remoteIP, config.TrustedProxies) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			ips := strings.Split(xff, ",")
			for _, ip := range ips {
				ip = strings.TrimSpace(ip)
				if isValidIP(ip) {
					return ip
				}
			}
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if isValidIP(xri) {
				return xri
			}
		}
	}

	return remoteIP
}

// getRemoteAddr extracts the IP address from RemoteAddr (removing port if present)
func getRemoteAddr(r *http.Request) string {
	if r.RemoteAddr != "" {
		// RemoteAddr may include port: "ip:port"
		if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return ip
		}
		// If no port, just use it directly
		return r.RemoteAddr
	}
	return "unknown"
}

// isTrustedProxy reports whether ip falls inside any configured proxy entry.
// Entries without a "/" are matched as single hosts, so TRUSTED_PROXIES can
// list an individual load balancer address as well as a range.
func isTrustedProxy(ip string, trustedProxies []string) bool {
	if len(trustedProxies) == 0 {
		return false
	}

	clientIP := net.ParseIP(ip)
	if clientIP == nil {
		return false
	}

	for _, proxy := range trustedProxies {
		if !strings.Contains(proxy, "/") {
			if proxyIP := net.ParseIP(proxy); proxyIP != nil && proxyIP.Equal(clientIP) {
				return true
			}
			continue
		}

		_, ipNet, err := net.ParseCIDR(proxy)
		if err != nil {
			continue // Skip invalid CIDR ranges
		}
		if ipNet.Contains(clientIP) {
			return true
		}
	}

	return false
}

// isValidIP checks if a string is a valid IPv4 or IPv6 address
func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}
