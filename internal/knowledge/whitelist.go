package knowledge

import (
	"net/url"
	"strings"
)

// Whitelist is the set of hosts a validated external source may point at.
// With strict mode disabled every host passes; catalog sealing always uses
// a strict whitelist.
type Whitelist struct {
	domains []string
	strict  bool
}

// NewWhitelist builds a strict whitelist from configured host names.
func NewWhitelist(domains []string) *Whitelist {
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			normalized = append(normalized, d)
		}
	}
	return &Whitelist{domains: normalized, strict: true}
}

// NewWebWhitelist builds the whitelist used by the chat web fetcher, where
// strict mode is configurable.
func NewWebWhitelist(domains []string, strict bool) *Whitelist {
	w := NewWhitelist(domains)
	w.strict = strict
	return w
}

// AllowedDomains returns the configured host list.
func (w *Whitelist) AllowedDomains() []string {
	out := make([]string, len(w.domains))
	copy(out, w.domains)
	return out
}

// AllowsHost reports whether the host equals a whitelisted domain or is a
// subdomain of one. Non-strict whitelists allow every host.
func (w *Whitelist) AllowsHost(host string) bool {
	if !w.strict {
		return true
	}
	host = strings.ToLower(strings.TrimSpace(host))
	for _, d := range w.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// AllowsURL parses a URL and checks its host. Unparseable URLs are not
// allowed.
func (w *Whitelist) AllowsURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return w.AllowsHost(u.Hostname())
}

// Host extracts the lowercased host of a URL, or empty.
func Host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
