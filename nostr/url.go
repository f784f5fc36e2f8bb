package nostr

import (
	"net/url"
	"strings"
)

// NormalizeURL lowercases the scheme/host, defaults to "wss://" when no
// scheme is present, and strips a trailing slash, so the same relay reached
// two different ways (e.g. with/without trailing slash) is tracked as one
// entry in the pool's relay map.
func NormalizeURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return u
	}
	if !strings.Contains(u, "://") {
		u = "wss://" + u
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	if parsed.Path == "/" {
		parsed.Path = ""
	}
	return strings.TrimSuffix(parsed.String(), "/")
}
