package scrape

import (
	"testing"

	"github.com/stretchr/testify/require"

	"boardwatch/internal/title"
)

func newTestScraper() *Scraper {
	return New(nil, title.NewPolicy(title.Lists{}), NewURLFilter(nil), Options{})
}

func TestURLFilterBlocksSocialAndSchemes(t *testing.T) {
	f := NewURLFilter([]string{"/print-view"})

	cases := []struct {
		url     string
		blocked bool
	}{
		{"https://twitter.com/intent/tweet?text=job", true},
		{"https://www.facebook.com/sharer/sharer.php", true},
		{"mailto:hr@example.ca", true},
		{"javascript:void(0)", true},
		{"https://example.ca/careers/print-view/42", true},
		{"https://example.ca/careers/42", false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.blocked, f.Blocked(tc.url), tc.url)
	}
}

func TestDeriveTitleFromURL(t *testing.T) {
	p := title.NewPolicy(title.Lists{})

	cases := []struct {
		url  string
		want string
	}{
		{"https://example.ca/postings/senior-planner.pdf", "Senior Planner"},
		{"https://example.ca/jobs/WaterTreatmentOperator.html", "Water Treatment Operator"},
		{"https://example.ca/", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, DeriveTitleFromURL(p, tc.url), tc.url)
	}
}

func TestExtractDates(t *testing.T) {
	posting, closing := ExtractDates("Posted: 2026-01-15. Applications due February 3, 2026.")
	require.Equal(t, "2026-01-15", posting)
	require.Equal(t, "2026-02-03", closing)

	// With no labeled posting date, the first literal is assumed posted.
	posting, closing = ExtractDates("Deadline 01/20/2026")
	require.Equal(t, "2026-01-20", posting)
	require.Equal(t, "2026-01-20", closing)

	posting, closing = ExtractDates("no dates here")
	require.Empty(t, posting)
	require.Empty(t, closing)
}

func TestNormalizeDateRejectsImplausibleYears(t *testing.T) {
	require.Empty(t, NormalizeDate("1850-01-01"))
	require.Equal(t, "2026-08-01", NormalizeDate("August 1, 2026"))
	require.Equal(t, "2026-08-01", NormalizeDate("august 1, 2026"))
}

func TestParseJobLinksSkipsNavAndBlocked(t *testing.T) {
	s := newTestScraper()

	html := `<html><body>
<nav><a href="/careers">Careers</a></nav>
<div class="menu"><a href="/jobs/feed">Job Feed</a></div>
<main>
  <a href="/careers/senior-planner">Senior Planner</a>
  <a href="https://twitter.com/intent/tweet?text=x">Share</a>
  <a href="/careers/senior-planner">Senior Planner duplicate</a>
</main>
</body></html>`

	got := s.ParseJobLinks("https://example.ca/careers", html)
	require.Len(t, got, 1)
	require.Equal(t, "Senior Planner", got[0].Title)
	require.Equal(t, "https://example.ca/careers/senior-planner", got[0].PostingURL)
	require.Equal(t, "anchor", got[0].TitleSource)
}

func TestParseJobPostingJSONLD(t *testing.T) {
	s := newTestScraper()

	html := `<html><head><script type="application/ld+json">
{"@type":"JobPosting","title":"Deputy Clerk","url":"https://example.ca/careers/deputy-clerk",
 "datePosted":"2026-03-01","validThrough":"2026-03-20",
 "description":"Full time role.","jobLocation":{"address":{"addressLocality":"Kenora","addressRegion":"ON"}}}
</script></head><body></body></html>`

	got := s.ParseJobPostingJSONLD("https://example.ca/careers", html)
	require.Len(t, got, 1)
	require.Equal(t, "Deputy Clerk", got[0].Title)
	require.Equal(t, "https://example.ca/careers/deputy-clerk", got[0].PostingURL)
	require.Equal(t, "2026-03-01", got[0].PostingDate)
	require.Equal(t, "2026-03-20", got[0].ClosingDate)
	require.Equal(t, "Kenora, ON", got[0].Location)
	require.True(t, got[0].HasJobPostingSchema)
	require.Equal(t, "jsonld", got[0].TitleSource)
}

func TestScrapePDFBoard(t *testing.T) {
	s := newTestScraper()

	got := s.scrapePDF("https://example.ca/hr/roads-supervisor.pdf")
	require.Len(t, got, 1)
	require.Equal(t, "Roads Supervisor", got[0].Title)
	require.Equal(t, "url_slug", got[0].TitleSource)
	require.Equal(t, "PDF posting", got[0].Summary)

	// A slug with no role shape is dropped rather than invented.
	require.Empty(t, s.scrapePDF("https://example.ca/hr/december-2025.pdf"))
}

func TestDedupe(t *testing.T) {
	a := Posting{}
	a.ExternalID, a.PostingURL, a.Title = "1", "https://x.ca/1", "Planner"
	b := a
	b.Title = "planner"
	c := a
	c.ExternalID = "2"

	got := Dedupe([]Posting{a, b, c})
	require.Len(t, got, 2)
}
