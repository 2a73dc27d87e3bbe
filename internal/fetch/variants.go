package fetch

import (
	"net/url"
	"strings"

	"boardwatch/internal/urlutil"
)

// URLVariants returns the URL itself plus cheap repairs worth trying when
// it stops resolving: the opposite scheme and a www-toggled host. Order
// matters (original first); duplicates are removed.
func URLVariants(raw string) []string {
	normalized := urlutil.NormalizeURL(raw)
	if normalized == "" || !urlutil.IsSupportedHTTPURL(normalized) {
		return nil
	}

	u, err := url.Parse(normalized)
	if err != nil {
		return []string{normalized}
	}

	variants := []string{normalized}

	alt := *u
	if u.Scheme == "http" {
		alt.Scheme = "https"
	} else {
		alt.Scheme = "http"
	}
	alt.Fragment = ""
	variants = append(variants, alt.String())

	host := u.Hostname()
	var altHost string
	if strings.HasPrefix(host, "www.") {
		altHost = strings.TrimPrefix(host, "www.")
	} else {
		altHost = "www." + host
	}
	wwwAlt := *u
	if port := u.Port(); port != "" {
		wwwAlt.Host = altHost + ":" + port
	} else {
		wwwAlt.Host = altHost
	}
	wwwAlt.Fragment = ""
	variants = append(variants, wwwAlt.String())

	seen := make(map[string]bool, len(variants))
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		norm := urlutil.NormalizeURL(v)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, norm)
	}
	return out
}
