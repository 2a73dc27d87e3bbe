package scrape

import (
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"boardwatch/internal/domain"
	"boardwatch/internal/title"
	"boardwatch/internal/urlutil"
)

var navClassTokens = []string{
	"nav", "menu", "footer", "header", "social", "breadcrumb", "site-map",
}

var (
	reSlugExt     = regexp.MustCompile(`(?i)\.(pdf|html?|php|aspx?)$`)
	reSlugSep     = regexp.MustCompile(`[_\-]+`)
	knownAcronyms = map[string]bool{"HR": true, "IT": true, "CEO": true, "CFO": true, "COO": true}
)

func externalID(titleText, postingURL string) string {
	return urlutil.StableHash(titleText + "|" + postingURL)[:20]
}

func pathSlug(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(u.Path, "/")
	var last string
	for _, p := range parts {
		if p != "" {
			last = p
		}
	}
	if last == "" {
		return ""
	}
	if unescaped, err := url.PathUnescape(last); err == nil {
		last = unescaped
	}

	slug := reSlugExt.ReplaceAllString(last, "")
	slug = splitCamel(slug)
	slug = strings.ReplaceAll(slug, "+", " ")
	slug = reSlugSep.ReplaceAllString(slug, " ")
	return strings.Trim(urlutil.CleanText(slug), " -_")
}

// splitCamel inserts spaces at lower-to-upper and letter-to-digit
// boundaries ("SeniorPlanner2024" -> "Senior Planner 2024").
func splitCamel(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 {
			prev := runes[i-1]
			lowerToUpper := prev >= 'a' && prev <= 'z' && r >= 'A' && r <= 'Z'
			letterToDigit := ((prev >= 'a' && prev <= 'z') || (prev >= 'A' && prev <= 'Z')) && r >= '0' && r <= '9'
			if lowerToUpper || letterToDigit {
				b.WriteByte(' ')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DeriveTitleFromURL reconstructs a plausible title from the URL's last
// path segment. Used for PDF postings and anchors with useless text.
func DeriveTitleFromURL(policy *title.Policy, rawURL string) string {
	slug := pathSlug(rawURL)
	if slug == "" {
		return ""
	}

	var words []string
	for _, word := range strings.Fields(slug) {
		switch {
		case word == strings.ToUpper(word) && len(word) <= 5:
			words = append(words, word)
		case len(word) <= 4 && knownAcronyms[strings.ToUpper(word)]:
			words = append(words, strings.ToUpper(word))
		default:
			words = append(words, strings.ToUpper(word[:1])+strings.ToLower(word[1:]))
		}
	}
	return policy.Normalize(strings.Join(words, " "))
}

// isNavigationLink climbs a few ancestors looking for nav/menu/footer
// context. Links inside site chrome are never postings.
func isNavigationLink(a *goquery.Selection) bool {
	node := a
	for depth := 0; depth < 5 && node.Length() > 0; depth++ {
		tag := goquery.NodeName(node)
		if tag == "nav" || tag == "header" || tag == "footer" {
			return true
		}
		attrText := strings.ToLower(node.AttrOr("class", "") + " " + node.AttrOr("id", ""))
		for _, token := range navClassTokens {
			if strings.Contains(attrText, token) {
				return true
			}
		}
		if depth >= 2 && tag == "li" && strings.Contains(attrText, "menu") {
			return true
		}
		node = node.Parent()
	}
	return false
}

func jsonldString(v any) string {
	switch t := v.(type) {
	case string:
		return urlutil.CleanText(t)
	case map[string]any:
		for _, key := range []string{"value", "@value", "name"} {
			if s, ok := t[key].(string); ok && s != "" {
				return urlutil.CleanText(s)
			}
		}
	}
	return ""
}

func jsonldLocation(v any) string {
	switch t := v.(type) {
	case string:
		return urlutil.CleanText(t)
	case map[string]any:
		if address, ok := t["address"].(map[string]any); ok {
			locality, _ := address["addressLocality"].(string)
			region, _ := address["addressRegion"].(string)
			var parts []string
			if l := urlutil.CleanText(locality); l != "" {
				parts = append(parts, l)
			}
			if r := urlutil.CleanText(region); r != "" {
				parts = append(parts, r)
			}
			if len(parts) > 0 {
				return strings.Join(parts, ", ")
			}
		}
		if name, ok := t["name"].(string); ok {
			return urlutil.CleanText(name)
		}
	case []any:
		for _, item := range t {
			if loc := jsonldLocation(item); loc != "" {
				return loc
			}
		}
	}
	return ""
}

// ParseJobPostingJSONLD lifts structured JobPosting entries off a listing
// page. The richest source when boards bother to emit it.
func (s *Scraper) ParseJobPostingJSONLD(boardURL, html string) []Posting {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	boardNorm := urlutil.NormalizeURL(boardURL)

	var postings []Posting
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, script *goquery.Selection) {
		raw := strings.TrimSpace(script.Text())
		if raw == "" {
			return
		}
		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return
		}

		var items []map[string]any
		switch v := parsed.(type) {
		case map[string]any:
			if graph, ok := v["@graph"].([]any); ok {
				for _, g := range graph {
					if item, ok := g.(map[string]any); ok {
						items = append(items, item)
					}
				}
			} else {
				items = append(items, v)
			}
		case []any:
			for _, g := range v {
				if item, ok := g.(map[string]any); ok {
					items = append(items, item)
				}
			}
		}

		for _, item := range items {
			typ, _ := item["@type"].(string)
			if !strings.Contains(strings.ToLower(typ), "jobposting") {
				continue
			}

			postingURL := boardNorm
			if u, ok := item["url"].(string); ok && u != "" {
				postingURL = urlutil.NormalizeURL(u)
			}
			if s.filter.Blocked(postingURL) {
				continue
			}

			titleRaw, _ := item["title"].(string)
			titleText := s.policy.Normalize(titleRaw)
			if titleText == "" {
				titleText = DeriveTitleFromURL(s.policy, postingURL)
			}
			if titleText == "" {
				continue
			}

			summary := ""
			if d, ok := item["description"].(string); ok {
				summary = urlutil.CleanText(d)
			}
			postingDate := NormalizeDate(jsonldString(item["datePosted"]))
			closingDate := ""
			for _, key := range []string{"validThrough", "dateValidThrough", "validUntil"} {
				if closingDate = NormalizeDate(jsonldString(item[key])); closingDate != "" {
					break
				}
			}
			if postingDate == "" || closingDate == "" {
				inferredPosting, inferredClosing := ExtractDates(summary)
				if postingDate == "" {
					postingDate = inferredPosting
				}
				if closingDate == "" {
					closingDate = inferredClosing
				}
			}

			extID := jsonldString(item["identifier"])
			if extID == "" {
				extID = externalID(titleText, postingURL)
			}

			postings = append(postings, Posting{
				Observation: domain.Observation{
					BoardURL:    boardNorm,
					ExternalID:  extID,
					Title:       titleText,
					PostingURL:  postingURL,
					Location:    jsonldLocation(item["jobLocation"]),
					PostingDate: postingDate,
					ClosingDate: closingDate,
					Summary:     summary,
					RawText:     summary,
				},
				SourceURL:           boardNorm,
				TitleSource:         "jsonld",
				HasJobPostingSchema: true,
			})
		}
	})
	return postings
}

// ParseJobLinks scans a listing page's anchors for posting candidates,
// skipping navigation chrome and blocked URLs.
func (s *Scraper) ParseJobLinks(boardURL, html string) []Posting {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, err := url.Parse(boardURL)
	if err != nil {
		return nil
	}
	boardNorm := urlutil.NormalizeURL(boardURL)
	listingSignal := s.policy.AnalyzeListingSignals(html).Strong()

	var postings []Posting
	seen := map[string]bool{}

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if isNavigationLink(a) {
			return
		}
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" {
			return
		}
		abs, err := base.Parse(href)
		if err != nil {
			return
		}
		target := urlutil.NormalizeURL(abs.String())
		if target == "" || seen[target] || target == boardNorm || s.filter.Blocked(target) {
			return
		}

		label := urlutil.CleanText(a.Text())
		if label == "" {
			label = urlutil.CleanText(a.AttrOr("title", a.AttrOr("aria-label", "")))
		}

		titleText := s.policy.Normalize(label)
		if titleText == "" || !s.policy.AnchorTitleCandidate(titleText) {
			titleText = DeriveTitleFromURL(s.policy, target)
		}
		if titleText == "" {
			return
		}

		parentText := urlutil.CleanText(a.Parent().Text())
		context := urlutil.CleanText(label + " " + parentText)
		if len(context) > 1200 {
			context = context[:1200]
		}
		postingDate, closingDate := ExtractDates(context)

		seen[target] = true
		postings = append(postings, Posting{
			Observation: domain.Observation{
				BoardURL:    boardNorm,
				ExternalID:  externalID(titleText, target),
				Title:       titleText,
				PostingURL:  target,
				PostingDate: postingDate,
				ClosingDate: closingDate,
				Summary:     context,
				RawText:     context,
			},
			SourceURL:     boardNorm,
			TitleSource:   "anchor",
			ListingSignal: listingSignal,
		})
	})
	return postings
}

func (s *Scraper) fallbackGenericHTML(boardURL, html string) []Posting {
	combined := s.ParseJobPostingJSONLD(boardURL, html)
	combined = append(combined, s.ParseJobLinks(boardURL, html)...)
	return Dedupe(combined)
}

const (
	detailConcurrency = 10
	rawTextLimit      = 9000
)

// enrichWithDetails fetches each candidate's detail page and reruns the
// title hierarchy there; listing-derived titles are often anchor text and
// the detail page usually has the real one. Detail fetches share a small
// pool and a per-board response cache (many anchors point at one page).
func (s *Scraper) enrichWithDetails(ctx context.Context, boardURL, listingHTML string, postings []Posting) []Posting {
	if len(postings) == 0 {
		return nil
	}

	boardNorm := urlutil.NormalizeURL(boardURL)
	listingSignal := s.policy.AnalyzeListingSignals(listingHTML).Strong()

	var cacheMu sync.Mutex
	type cached struct{ html, finalURL string }
	cache := map[string]cached{}

	fetchDetail := func(rawURL string) (string, string) {
		normalized := urlutil.NormalizeURL(rawURL)
		if normalized == "" {
			return "", ""
		}
		cacheMu.Lock()
		if c, ok := cache[normalized]; ok {
			cacheMu.Unlock()
			return c.html, c.finalURL
		}
		cacheMu.Unlock()

		html, finalURL, err := s.client.FetchHTML(ctx, normalized, s.maxHTMLBytes)
		if err != nil {
			html, finalURL = "", ""
		}
		cacheMu.Lock()
		cache[normalized] = cached{html: html, finalURL: finalURL}
		cacheMu.Unlock()
		return html, finalURL
	}

	out := make([]Posting, len(postings))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(detailConcurrency)
	for i, p := range postings {
		g.Go(func() error {
			if p.SourceURL == "" {
				p.SourceURL = boardNorm
			}
			p.ListingSignal = p.ListingSignal || listingSignal

			detailHTML := listingHTML
			detailURL := boardNorm
			if norm := urlutil.NormalizeURL(p.PostingURL); norm != "" && norm != boardNorm {
				html, finalURL := fetchDetail(p.PostingURL)
				detailHTML = html
				detailURL = norm
				if finalURL != "" {
					p.PostingURL = urlutil.NormalizeURL(finalURL)
					detailURL = p.PostingURL
				}
			}

			res := s.policy.ExtractFromDetail(detailHTML, detailURL, p.Title)
			if res.Title != "" {
				p.Title = res.Title
				if res.TitleSource != "" {
					p.TitleSource = res.TitleSource
				}
			}
			p.HasJobPostingSchema = p.HasJobPostingSchema || res.HasJSONLDJobPosting

			merged := urlutil.CleanText(p.RawText + " " + res.PageText)
			if len(merged) > rawTextLimit {
				merged = merged[:rawTextLimit]
			}
			p.RawText = merged

			if p.PostingDate == "" || p.ClosingDate == "" {
				inferredPosting, inferredClosing := ExtractDates(merged)
				if p.PostingDate == "" {
					p.PostingDate = inferredPosting
				}
				if p.ClosingDate == "" {
					p.ClosingDate = inferredClosing
				}
			}

			out[i] = p
			return nil
		})
	}
	_ = g.Wait()
	return Dedupe(out)
}
