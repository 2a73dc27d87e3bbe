package title

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"boardwatch/internal/urlutil"
)

// ListingSignals summarizes a listing page's shape: a real job board has
// several role-like links and an apply affordance.
type ListingSignals struct {
	RoleLikeLinks   int
	HasApplyPattern bool
}

func (s ListingSignals) Strong() bool {
	return s.RoleLikeLinks >= 2 && s.HasApplyPattern
}

// DetailResolution is the outcome of the title hierarchy on a posting
// detail page. PageText carries the main-content text for the validator's
// keyword scan.
type DetailResolution struct {
	Title               string
	TitleSource         string
	HasJSONLDJobPosting bool
	PageText            string
}

const pageTextLimit = 6000

func parseJSONLDJobPosting(doc *goquery.Document) (jobTitle string, found bool, descriptionBlob string) {
	var descriptions []string

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}

		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return
		}

		var entries []map[string]any
		switch v := parsed.(type) {
		case map[string]any:
			if graph, ok := v["@graph"].([]any); ok {
				for _, item := range graph {
					if entry, ok := item.(map[string]any); ok {
						entries = append(entries, entry)
					}
				}
			} else {
				entries = append(entries, v)
			}
		case []any:
			for _, item := range v {
				if entry, ok := item.(map[string]any); ok {
					entries = append(entries, entry)
				}
			}
		}

		for _, entry := range entries {
			typ, _ := entry["@type"].(string)
			if !strings.Contains(urlutil.NormalizeText(typ), "jobposting") {
				continue
			}
			found = true
			if jobTitle == "" {
				if t, ok := entry["title"].(string); ok {
					jobTitle = urlutil.CleanText(t)
				}
			}
			if desc, ok := entry["description"].(string); ok && desc != "" {
				descriptions = append(descriptions, urlutil.CleanText(desc))
			}
		}
	})

	return jobTitle, found, urlutil.CleanText(strings.Join(descriptions, " "))
}

func mainContent(doc *goquery.Document) *goquery.Selection {
	if sel := doc.Find("main").First(); sel.Length() > 0 {
		return sel
	}
	if sel := doc.Find(`[role="main"]`).First(); sel.Length() > 0 {
		return sel
	}
	return doc.Selection
}

// ExtractFromDetail walks the title hierarchy on a posting detail page:
// JSON-LD JobPosting, og:title, then h1/h2 inside the main content. The
// document <title> is last-resort and only when it looks role-like;
// finally the anchor text that led here. The first candidate that
// survives normalization and the blocklist wins.
func (p *Policy) ExtractFromDetail(detailHTML, pageURL, fallbackAnchorTitle string) DetailResolution {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(detailHTML))
	if err != nil {
		return DetailResolution{Title: p.Normalize(fallbackAnchorTitle), TitleSource: "anchor"}
	}

	jsonldTitle, hasJobPosting, jsonldBlob := parseJSONLDJobPosting(doc)

	ogTitle := ""
	if og := doc.Find(`meta[property="og:title"], meta[name="og:title"]`).First(); og.Length() > 0 {
		ogTitle = urlutil.CleanText(og.AttrOr("content", ""))
	}

	main := mainContent(doc)
	h1Text := urlutil.CleanText(main.Find("h1").First().Text())
	h2Text := urlutil.CleanText(main.Find("h2").First().Text())
	htmlTitle := urlutil.CleanText(doc.Find("title").First().Text())

	pageText := urlutil.CleanText(main.Text())
	if len(pageText) > pageTextLimit {
		pageText = pageText[:pageTextLimit]
	}
	if jsonldBlob != "" {
		pageText = urlutil.CleanText(jsonldBlob + " " + pageText)
	}

	type candidate struct {
		source string
		raw    string
	}
	candidates := []candidate{
		{"jsonld", jsonldTitle},
		{"og_title", ogTitle},
		{"h1", h1Text},
		{"h2", h2Text},
	}
	if htmlTitle != "" && p.roleLikeHTMLTitle(htmlTitle) {
		candidates = append(candidates, candidate{"html_title", htmlTitle})
	}
	candidates = append(candidates, candidate{"anchor", fallbackAnchorTitle})

	for _, c := range candidates {
		cleaned := p.Normalize(c.raw)
		if cleaned == "" {
			continue
		}
		if p.BlocklistReason(cleaned, pageURL, pageURL, pageText) != "" {
			continue
		}
		return DetailResolution{
			Title:               cleaned,
			TitleSource:         c.source,
			HasJSONLDJobPosting: hasJobPosting,
			PageText:            pageText,
		}
	}

	return DetailResolution{
		HasJSONLDJobPosting: hasJobPosting,
		PageText:            pageText,
	}
}

func (p *Policy) roleLikeHTMLTitle(htmlTitle string) bool {
	if p.containsRoleWord(htmlTitle) {
		return true
	}
	low := urlutil.NormalizeText(htmlTitle)
	for _, k := range []string{"position", "officer", "manager", "coordinator"} {
		if strings.Contains(low, k) {
			return true
		}
	}
	return false
}

// AnalyzeListingSignals counts role-like anchors and apply affordances on
// a listing page.
func (p *Policy) AnalyzeListingSignals(listingHTML string) ListingSignals {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listingHTML))
	if err != nil {
		return ListingSignals{}
	}

	var signals ListingSignals
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		text := urlutil.CleanText(a.Text())
		href := strings.ToLower(a.AttrOr("href", ""))
		low := urlutil.NormalizeText(text)

		if strings.Contains(low, "apply") || strings.Contains(href, "apply") {
			signals.HasApplyPattern = true
		}

		if text == "" || p.looksGeneric(text) {
			return
		}
		if p.containsRoleWord(text) {
			signals.RoleLikeLinks++
			return
		}
		if len(strings.Fields(low)) >= 2 {
			for _, word := range []string{"position", "opportunity", "vacancy", "job"} {
				if strings.Contains(low, word) {
					signals.RoleLikeLinks++
					return
				}
			}
		}
	})

	return signals
}
