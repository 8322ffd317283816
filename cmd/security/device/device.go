// Package device derives the stable device identifier a session is bound to.
//
// The identifier is a SHA-256 hex digest of "<user-agent>|<ip>". Two clients
// behind the same NAT with the same user agent collapse to one device; that is
// accepted.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// Info is what the deriver extracts from an inbound request.
type Info struct {
	ID        string
	UserAgent string
	IP        net.IP
}

// IPString returns the textual IP or "" when unknown.
func (i Info) IPString() string {
	if i.IP == nil {
		return ""
	}
	return i.IP.String()
}

// Fingerprint returns the 64-char hex device id for userAgent and ip.
func Fingerprint(userAgent, ip string) string {
	sum := sha256.Sum256([]byte(userAgent + "|" + ip))
	return hex.EncodeToString(sum[:])
}

// FromRequest extracts the user agent and client IP from r and derives the device id.
// Forwarding headers are honored only when trustProxy is set.
func FromRequest(r *http.Request, trustProxy bool) Info {
	ua := strings.TrimSpace(r.UserAgent())
	ip := ClientIP(r, trustProxy)
	info := Info{UserAgent: ua, IP: ip}
	info.ID = Fingerprint(ua, info.IPString())
	return info
}

// ClientIP returns the best-known client address for r, or nil.
func ClientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
