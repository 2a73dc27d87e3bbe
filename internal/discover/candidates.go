// Package discover resolves raw "jobs page" URLs from the org roster into
// canonical board URLs. Tiers run cheapest-first: cache, URL pattern,
// redirect chain, landing-page candidates, sitemap hints. The first tier
// producing a confident classification wins.
package discover

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"boardwatch/internal/classify"
	"boardwatch/internal/urlutil"
)

// CandidateLink is a link lifted from a landing page that might lead to
// the real board.
type CandidateLink struct {
	URL    string
	Text   string
	Source string // a_href | form_action | meta_refresh
}

var reMetaRefreshURL = regexp.MustCompile(`(?i)url\s*=\s*['"]?([^'"\s>]+)`)

// ExtractCandidates pulls every anchor, form action and meta-refresh
// target from a landing page, resolved against the base URL, normalized
// and deduped in document order.
func ExtractCandidates(html, baseURL string) []CandidateLink {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var raw []CandidateLink

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" {
			return
		}
		abs, err := base.Parse(href)
		if err != nil {
			return
		}
		raw = append(raw, CandidateLink{URL: abs.String(), Text: urlutil.CleanText(a.Text()), Source: "a_href"})
	})

	doc.Find("form[action]").Each(func(_ int, form *goquery.Selection) {
		action := strings.TrimSpace(form.AttrOr("action", ""))
		if action == "" {
			return
		}
		abs, err := base.Parse(action)
		if err != nil {
			return
		}
		raw = append(raw, CandidateLink{URL: abs.String(), Source: "form_action"})
	})

	doc.Find("meta").Each(func(_ int, meta *goquery.Selection) {
		if !strings.EqualFold(meta.AttrOr("http-equiv", ""), "refresh") {
			return
		}
		m := reMetaRefreshURL.FindStringSubmatch(meta.AttrOr("content", ""))
		if m == nil {
			return
		}
		abs, err := base.Parse(strings.TrimSpace(m[1]))
		if err != nil {
			return
		}
		raw = append(raw, CandidateLink{URL: abs.String(), Source: "meta_refresh"})
	})

	var out []CandidateLink
	seen := map[string]bool{}
	for _, item := range raw {
		norm := urlutil.NormalizeURL(item.URL)
		if norm == "" || !urlutil.IsSupportedHTTPURL(norm) || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, CandidateLink{URL: norm, Text: item.Text, Source: item.Source})
	}
	return out
}

func candidateScore(item CandidateLink, baseHost string) int {
	sc := 0
	low := strings.ToLower(item.URL)

	if classify.Classify(item.URL) != nil {
		sc += 100
	}
	if classify.LooksLikeJobLink(low, strings.ToLower(item.Text)) {
		sc += 35
	}
	if host := strings.ToLower(urlutil.Hostname(item.URL)); host != "" && host != baseHost {
		sc += 20
	}
	for _, w := range []string{"apply", "recruit", "vacancy"} {
		if strings.Contains(low, w) {
			sc += 10
			break
		}
	}
	switch item.Source {
	case "meta_refresh":
		sc += 8
	case "form_action":
		sc += 6
	}
	return sc
}

// RankCandidates orders candidates by how likely they lead to a board.
// A known ATS pattern dominates; keyword and off-site hints break ties.
// The sort is stable so document order decides among equals.
func RankCandidates(candidates []CandidateLink, baseURL string) []CandidateLink {
	baseHost := strings.ToLower(urlutil.Hostname(baseURL))

	type scored struct {
		link  CandidateLink
		score int
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{link: c, score: candidateScore(c, baseHost)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]CandidateLink, len(ranked))
	for i, s := range ranked {
		out[i] = s.link
	}
	return out
}

// DetectHTMLList reports whether the landing page itself looks like a
// plain HTML job list: two or more job-like links.
func DetectHTMLList(candidates []CandidateLink) bool {
	count := 0
	for _, c := range candidates {
		if classify.LooksLikeJobLink(strings.ToLower(c.URL), strings.ToLower(c.Text)) {
			count++
			if count >= 2 {
				return true
			}
		}
	}
	return false
}
