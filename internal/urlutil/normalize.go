package urlutil

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
)

// Query parameters that only carry campaign tracking state. Stripping them
// keeps one logical page from producing several cache/dedupe keys.
var trackingPrefixes = []string{"utm_", "fbclid", "gclid", "mc_", "mkt_"}

var (
	reMultiSlash = regexp.MustCompile(`/{2,}`)
	reNonAlnum   = regexp.MustCompile(`[^a-z0-9\s]`)
	reSpaces     = regexp.MustCompile(`\s+`)
)

// NormalizeURL produces the canonical form used for caching, dedupe and
// posting identity: lowercased scheme/host, collapsed path without a
// trailing slash, no fragment, tracking params removed, query sorted.
// Returns "" for blank input; unparseable input comes back best-effort.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "https"
	}
	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	path := u.Path
	if path == "" {
		path = "/"
	}
	if path != "/" {
		path = reMultiSlash.ReplaceAllString(path, "/")
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	u.Path = path

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		for _, prefix := range trackingPrefixes {
			if strings.HasPrefix(lk, prefix) {
				q.Del(k)
				break
			}
		}
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// NormalizeText lowercases, strips punctuation and collapses whitespace.
// Used wherever text is compared rather than displayed.
func NormalizeText(value string) string {
	value = strings.ToLower(value)
	value = reNonAlnum.ReplaceAllString(value, " ")
	value = reSpaces.ReplaceAllString(value, " ")
	return strings.TrimSpace(value)
}

// CleanText collapses runs of whitespace (including non-breaking spaces)
// without changing case.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

func Hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// DomainKey groups hosts by registrable domain (jobs.example.com and
// www.example.com share one key) so politeness limits cover the whole site.
func DomainKey(raw string) string {
	host := strings.ToLower(Hostname(raw))
	if host == "" {
		return ""
	}
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

// IsSupportedHTTPURL reports whether the URL is an absolute http(s) URL.
func IsSupportedHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// URLHash is the cache key for a URL: sha256 of its normalized form.
func URLHash(raw string) string {
	return StableHash(NormalizeURL(raw))
}

// StableHash is sha256 hex. Posting identity is derived from it, so any
// change here reclassifies all persisted history as new; treat as a
// breaking migration.
func StableHash(value string) string {
	h := sha256.Sum256([]byte(value))
	return hex.EncodeToString(h[:])
}
