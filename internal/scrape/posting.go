// Package scrape turns a canonical board URL into raw posting candidates.
// Adapters know vendor quirks (Workday's JSON search API); everything else
// falls through to the generic HTML scraper. Candidates are raw: title
// validation and history reconciliation happen downstream.
package scrape

import (
	"strings"

	"boardwatch/internal/domain"
)

// Posting is one scraped candidate plus the provenance the validator
// needs.
type Posting struct {
	domain.Observation

	SourceURL           string
	TitleSource         string // jsonld | anchor | url_slug | ats_native | ...
	HasJobPostingSchema bool
	ListingSignal       bool
}

// Dedupe drops repeats by external id, URL and lowered title, keeping
// first occurrence order.
func Dedupe(postings []Posting) []Posting {
	var out []Posting
	seen := map[string]bool{}
	for _, p := range postings {
		key := p.ExternalID + "|" + p.PostingURL + "|" + strings.ToLower(p.Title)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}
