package ws

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// IsOriginAllowed validates a request's Origin header against an allow-list.
// Hostname comparisons are case-insensitive. Each entry may be:
//
//   - a full Origin value with scheme, e.g. "https://example.com" or
//     "http://127.0.0.1:5173"
//   - a bare hostname, e.g. "example.com" (any scheme or port)
//   - a wildcard hostname, e.g. "*.example.com" (any subdomain; the base
//     domain itself needs its own entry)
//   - a host:port pair, e.g. "example.com:5173"
//   - an exact non-standard Origin value, e.g. "null"
//
// A request with no Origin header at all (a non-browser client) is accepted
// only when allowNoOrigin is set.
func IsOriginAllowed(r *http.Request, allowed []string, allowNoOrigin bool) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return allowNoOrigin
	}
	var host, hostname string
	if parsed, err := url.Parse(origin); err == nil {
		host = parsed.Host
		hostname = parsed.Hostname()
	}
	for _, entry := range allowed {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if matchesOrigin(origin, host, hostname, entry) {
			return true
		}
	}
	return false
}

func matchesOrigin(origin, host, hostname, entry string) bool {
	// An entry with a scheme must match the whole Origin value.
	if strings.Contains(entry, "://") {
		return strings.EqualFold(origin, entry)
	}
	// "*.example.com" covers every subdomain but not the base domain.
	if base, ok := strings.CutPrefix(entry, "*."); ok {
		if hostname == "" || base == "" {
			return false
		}
		return strings.HasSuffix(strings.ToLower(hostname), "."+strings.ToLower(base))
	}
	// A host:port entry pins the port as well as the hostname.
	if _, _, err := net.SplitHostPort(entry); err == nil && host != "" {
		return strings.EqualFold(host, entry)
	}
	if hostname != "" && strings.EqualFold(hostname, entry) {
		return true
	}
	// Non-standard Origin values like "null" compare verbatim.
	return origin == entry
}

// NewOriginChecker adapts IsOriginAllowed to the upgrader's CheckOrigin
// signature.
func NewOriginChecker(allowed []string, allowNoOrigin bool) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		return IsOriginAllowed(r, allowed, allowNoOrigin)
	}
}
