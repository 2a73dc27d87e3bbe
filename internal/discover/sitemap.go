package discover

import (
	"context"
	"encoding/xml"
	"strings"

	"github.com/temoto/robotstxt"

	"boardwatch/internal/fetch"
	"boardwatch/internal/urlutil"
)

const maxSitemapCandidates = 3

// sitemapDoc covers both <urlset> and <sitemapindex>; only <loc> values
// matter here.
type sitemapDoc struct {
	URLs     []sitemapLoc `xml:"url"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// SitemapURLs finds the site's sitemap locations: robots.txt Sitemap
// directives when present, otherwise the conventional /sitemap.xml.
func SitemapURLs(ctx context.Context, client *fetch.Client, rootURL string, maxBytes int) []string {
	robotsBody, err := client.FetchText(ctx, strings.TrimRight(rootURL, "/")+"/robots.txt", maxBytes)
	if err == nil && robotsBody != "" {
		if robots, err := robotstxt.FromString(robotsBody); err == nil && len(robots.Sitemaps) > 0 {
			return robots.Sitemaps
		}
	}
	return []string{strings.TrimRight(rootURL, "/") + "/sitemap.xml"}
}

// SitemapCandidates parses a sitemap body and keeps locations that
// mention job keywords, deduped in document order and capped. Nested
// sitemap locations count too when they carry a keyword; recursing into
// every child sitemap is not worth the fetch budget here.
func SitemapCandidates(body string) []string {
	var doc sitemapDoc
	if err := xml.Unmarshal([]byte(body), &doc); err != nil {
		return nil
	}

	var out []string
	seen := map[string]bool{}
	keep := func(loc string) {
		norm := urlutil.NormalizeURL(strings.TrimSpace(loc))
		if norm == "" || seen[norm] {
			return
		}
		low := strings.ToLower(norm)
		for _, k := range []string{"job", "career", "employment", "opportun"} {
			if strings.Contains(low, k) {
				seen[norm] = true
				out = append(out, norm)
				return
			}
		}
	}
	for _, u := range doc.URLs {
		keep(u.Loc)
	}
	for _, s := range doc.Sitemaps {
		keep(s.Loc)
	}

	if len(out) > maxSitemapCandidates {
		out = out[:maxSitemapCandidates]
	}
	return out
}
