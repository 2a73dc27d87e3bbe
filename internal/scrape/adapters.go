package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"boardwatch/internal/domain"
	"boardwatch/internal/fetch"
	"boardwatch/internal/title"
	"boardwatch/internal/urlutil"
)

// Scraper holds the shared collaborators every adapter needs.
type Scraper struct {
	client       *fetch.Client
	policy       *title.Policy
	filter       *URLFilter
	maxHTMLBytes int
	fetchDetails bool
}

type Options struct {
	MaxHTMLBytes int
	FetchDetails bool
}

func New(client *fetch.Client, policy *title.Policy, filter *URLFilter, opts Options) *Scraper {
	if opts.MaxHTMLBytes <= 0 {
		opts.MaxHTMLBytes = 350_000
	}
	return &Scraper{
		client:       client,
		policy:       policy,
		filter:       filter,
		maxHTMLBytes: opts.MaxHTMLBytes,
		fetchDetails: opts.FetchDetails,
	}
}

// Filter exposes the blocked-URL check for callers that post-filter
// stored rows.
func (s *Scraper) Filter() *URLFilter { return s.filter }

// Board scrapes one board with the adapter registered for its name.
// Unknown adapters fall back to the generic HTML scraper.
func (s *Scraper) Board(ctx context.Context, boardURL, adapter string) ([]Posting, error) {
	switch strings.ToLower(strings.TrimSpace(adapter)) {
	case "workday":
		return s.scrapeWorkday(ctx, boardURL)
	case "pdf":
		return s.scrapePDF(boardURL), nil
	default:
		// taleo, icims, neogov, ultipro, adp and html_list boards all
		// render scrapable listings; vendor-specific APIs beyond Workday
		// have not been worth maintaining.
		return s.scrapeGeneric(ctx, boardURL)
	}
}

func (s *Scraper) scrapeGeneric(ctx context.Context, boardURL string) ([]Posting, error) {
	normalized := urlutil.NormalizeURL(boardURL)
	if strings.HasSuffix(strings.ToLower(normalized), ".pdf") {
		return s.scrapePDF(normalized), nil
	}

	html, finalURL, err := s.client.FetchHTML(ctx, normalized, s.maxHTMLBytes)
	if err != nil {
		return nil, fmt.Errorf("fetch listing %s: %w", normalized, err)
	}
	if html == "" {
		return nil, nil
	}
	boardFinal := normalized
	if finalURL != "" {
		boardFinal = urlutil.NormalizeURL(finalURL)
	}

	parsed := s.fallbackGenericHTML(boardFinal, html)
	if !s.fetchDetails {
		return parsed, nil
	}
	return s.enrichWithDetails(ctx, boardFinal, html, parsed), nil
}

// scrapePDF represents a PDF board as a single posting derived from the
// URL slug. Unparseable slugs yield nothing rather than junk titles.
func (s *Scraper) scrapePDF(boardURL string) []Posting {
	normalized := urlutil.NormalizeURL(boardURL)
	inferred := DeriveTitleFromURL(s.policy, normalized)
	if inferred == "" {
		inferred = "Job Posting"
	}
	if !s.policy.AnchorTitleCandidate(inferred) {
		return nil
	}
	postingDate, closingDate := ExtractDates(inferred)
	return []Posting{{
		Observation: domain.Observation{
			BoardURL:    normalized,
			ExternalID:  urlutil.StableHash(normalized)[:20],
			Title:       inferred,
			PostingURL:  normalized,
			PostingDate: postingDate,
			ClosingDate: closingDate,
			Summary:     "PDF posting",
			RawText:     "PDF posting",
		},
		SourceURL:   normalized,
		TitleSource: "url_slug",
	}}
}

// Workday's public job search API. One POST replaces paging through the
// rendered SPA, which has no static HTML to scrape.
type workdayRequest struct {
	AppliedFacets map[string]any `json:"appliedFacets"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
	SearchText    string         `json:"searchText"`
}

type workdayResponse struct {
	JobPostings []struct {
		Title        string   `json:"title"`
		ExternalPath string   `json:"externalPath"`
		PostedOn     string   `json:"postedOn"`
		BulletFields []string `json:"bulletFields"`
	} `json:"jobPostings"`
}

func (s *Scraper) scrapeWorkday(ctx context.Context, boardURL string) ([]Posting, error) {
	normalized := urlutil.NormalizeURL(boardURL)
	u, err := url.Parse(normalized)
	if err != nil {
		return s.scrapeGeneric(ctx, boardURL)
	}

	host := u.Hostname()
	tenant := ""
	if host != "" {
		tenant = strings.Split(host, ".")[0]
	}

	var pathParts []string
	for _, p := range strings.Split(u.Path, "/") {
		if p != "" {
			pathParts = append(pathParts, p)
		}
	}
	site := ""
	switch {
	case len(pathParts) >= 2 && isWorkdayLocale(pathParts[0]):
		site = pathParts[1]
	case len(pathParts) > 0:
		site = pathParts[len(pathParts)-1]
	}

	if tenant != "" && site != "" {
		endpoint := fmt.Sprintf("%s://%s/wday/cxs/%s/%s/jobs", u.Scheme, u.Host, tenant, site)
		payload := workdayRequest{AppliedFacets: map[string]any{}, Limit: 100}

		if body, err := s.client.PostJSON(ctx, endpoint, payload, s.maxHTMLBytes); err == nil {
			var resp workdayResponse
			if err := json.Unmarshal(body, &resp); err == nil {
				var postings []Posting
				for _, item := range resp.JobPostings {
					titleText := urlutil.CleanText(item.Title)
					if titleText == "" {
						continue
					}
					extID := item.ExternalPath
					if len(item.BulletFields) > 0 {
						extID = strings.Join(item.BulletFields, "|")
					}
					if extID == "" {
						extID = titleText
					}
					if len(extID) > 120 {
						extID = extID[:120]
					}
					postingURL := normalized
					if strings.HasPrefix(item.ExternalPath, "/") {
						postingURL = urlutil.NormalizeURL(u.Scheme + "://" + u.Host + item.ExternalPath)
					}
					location := ""
					if len(item.BulletFields) > 0 {
						location = item.BulletFields[0]
					}
					postings = append(postings, Posting{
						Observation: domain.Observation{
							BoardURL:    normalized,
							ExternalID:  extID,
							Title:       titleText,
							PostingURL:  postingURL,
							Location:    location,
							PostingDate: item.PostedOn,
							RawText:     titleText + " " + location,
						},
						SourceURL:   normalized,
						TitleSource: "ats_native",
					})
				}
				if len(postings) > 0 {
					return postings, nil
				}
			}
		}
	}

	return s.scrapeGeneric(ctx, boardURL)
}

func isWorkdayLocale(segment string) bool {
	switch strings.ToLower(segment) {
	case "en-us", "fr-ca", "en-ca":
		return true
	}
	return false
}
