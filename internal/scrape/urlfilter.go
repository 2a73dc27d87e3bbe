package scrape

import (
	"net/url"
	"strings"
)

// Social and share links never lead to postings; a board page full of
// share buttons would otherwise flood the candidate set.
var socialDomains = []string{
	"twitter.com",
	"x.com",
	"facebook.com",
	"linkedin.com",
	"instagram.com",
	"youtube.com",
	"tiktok.com",
	"pinterest.com",
}

var blockedURLTokens = []string{
	"intent/tweet",
	"twitter.com/intent",
	"facebook.com/sharer",
	"facebook.com/share",
	"linkedin.com/sharing",
	"mailto:",
	"tel:",
	"javascript:",
}

// URLFilter rejects posting URLs that can never be real postings. Extra
// tokens come from config so operators can block known-bad paths without
// a release.
type URLFilter struct {
	extraTokens []string
}

func NewURLFilter(extraTokens []string) *URLFilter {
	lowered := make([]string, 0, len(extraTokens))
	for _, t := range extraTokens {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			lowered = append(lowered, t)
		}
	}
	return &URLFilter{extraTokens: lowered}
}

func (f *URLFilter) Blocked(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return true
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return true
	}
	for _, domain := range socialDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}

	full := strings.ToLower(host + u.Path + "?" + u.RawQuery)
	for _, token := range blockedURLTokens {
		if strings.Contains(full, token) {
			return true
		}
	}
	for _, token := range f.extraTokens {
		if strings.Contains(full, token) {
			return true
		}
	}
	return false
}
