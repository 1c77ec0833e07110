// Package originpolicy decides whether an incoming WebSocket upgrade's
// Origin header is permitted, per spec §4.4. It generalizes the teacher's
// scheme+host equality check (internal/v1/transport/hub_helpers.go
// validateOrigin) into the richer whitelist grammar the original gateway
// implements in Rust (entry-kind dispatch: wildcard, URL, DNS suffix,
// host:port, bare host).
package originpolicy

import (
	"net/url"
	"strings"
)

// defaultPort returns the scheme's well-known port, or "" if unknown.
func defaultPort(scheme string) string {
	switch scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	}
	return ""
}

// canonicalOrigin normalizes a scheme://host[:port] string to
// scheme://host:port, making default ports explicit and lowercasing the
// host. Returns "", false if the input does not parse as an origin.
func canonicalOrigin(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if port == "" {
		port = defaultPort(scheme)
	}
	if port == "" {
		return scheme + "://" + host, true
	}
	return scheme + "://" + host + ":" + port, true
}

// Policy is an optional whitelist of origin entries. A nil or empty Policy
// admits everything; a non-empty Policy rejects any Origin (or missing
// Origin) that matches no entry.
type Policy struct {
	entries []string
}

// New builds a Policy from whitelist entries (as parsed from
// ALLOWED_ORIGINS). An empty slice means "no whitelist configured".
func New(entries []string) *Policy {
	if len(entries) == 0 {
		return &Policy{}
	}
	return &Policy{entries: entries}
}

// Configured reports whether a non-empty whitelist is active.
func (p *Policy) Configured() bool {
	return p != nil && len(p.entries) > 0
}

// Allow decides whether origin (the raw Origin header value, possibly
// empty) may upgrade.
func (p *Policy) Allow(origin string) bool {
	if !p.Configured() {
		return true
	}

	for _, raw := range p.entries {
		e := strings.ToLower(strings.TrimSpace(raw))
		if e == "" {
			continue
		}
		if e == "*" {
			return true
		}
	}

	if origin == "" {
		// Absent Origin with a configured whitelist is rejected unless "*"
		// is present (handled above).
		return false
	}

	reqCanonical, ok := canonicalOrigin(origin)
	if !ok {
		return false
	}
	reqHost, reqPort := splitCanonical(reqCanonical)

	for _, raw := range p.entries {
		e := strings.ToLower(strings.TrimSpace(raw))
		if e == "" || e == "*" {
			continue
		}

		switch {
		case strings.HasPrefix(e, "http://") || strings.HasPrefix(e, "https://"):
			entryCanonical, ok := canonicalOrigin(e)
			if ok && entryCanonical == reqCanonical {
				return true
			}

		case strings.HasPrefix(e, "*.") || strings.HasPrefix(e, "."):
			suffix := strings.TrimPrefix(strings.TrimPrefix(e, "*."), ".")
			suffix = strings.TrimPrefix(suffix, ".")
			if reqHost == suffix || strings.HasSuffix(reqHost, "."+suffix) {
				return true
			}

		case strings.Contains(e, ":"):
			host, port, found := strings.Cut(e, ":")
			if found && host == reqHost && port == reqPort {
				return true
			}

		default:
			if e == reqHost {
				return true
			}
		}
	}

	return false
}

// splitCanonical splits a "scheme://host:port" canonical origin into host
// and port.
func splitCanonical(canonical string) (host, port string) {
	idx := strings.Index(canonical, "://")
	if idx < 0 {
		return "", ""
	}
	rest := canonical[idx+3:]
	h, p, found := strings.Cut(rest, ":")
	if !found {
		return rest, ""
	}
	return h, p
}

// ParseOriginsEnv parses a comma-separated ALLOWED_ORIGINS value into
// trimmed, non-empty entries.
func ParseOriginsEnv(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
