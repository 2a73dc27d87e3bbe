package monitor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"boardwatch/internal/config"
	"boardwatch/internal/domain"
	"boardwatch/internal/orgs"
	"boardwatch/internal/scrape"
	"boardwatch/internal/title"
)

func TestBuildBoardsDedupesSharedBoard(t *testing.T) {
	rows := []orgs.Org{
		{
			OrgID:            "org-a",
			OrgName:          "Town of Atikokan",
			CanonicalJobsURL: "https://careers.example.ca/jobs",
			JobsSourceType:   "html_list",
		},
		{
			// Same board, trailing slash; only the raw jobs_url is set.
			OrgID:   "org-b",
			OrgName: "City of Kenora",
			JobsURL: "https://careers.example.ca/jobs/",
		},
		{
			OrgID:   "org-c",
			OrgName: "Township of Ear Falls",
			JobsURL: "not a url",
		},
	}

	boards, orgNames, _ := buildBoards(rows)
	require.Len(t, boards, 1)
	require.ElementsMatch(t, []string{"org-a", "org-b"}, boards[0].ownerOrgIDs)
	require.Equal(t, "generic", boards[0].adapter)
	require.Equal(t, "City of Kenora", orgNames["org-b"])
	require.Equal(t, "Township of Ear Falls", orgNames["org-c"])
}

func TestAdapterForRow(t *testing.T) {
	require.Equal(t, "workday",
		adapterForRow(orgs.Org{Adapter: "Workday"}, "https://x.example.ca"))
	require.Equal(t, "workday",
		adapterForRow(orgs.Org{JobsSourceType: "ats_workday"}, "https://x.example.ca"))
	require.Equal(t, "workday",
		adapterForRow(orgs.Org{}, "https://acme.wd3.myworkdayjobs.com/en-US/External"))
	require.Equal(t, "generic",
		adapterForRow(orgs.Org{}, "https://example.ca/careers"))
}

func TestBuildAliasAndOrgLinks(t *testing.T) {
	alias := buildAlias(orgs.Org{OrgID: "fn-1", OrgName: "Wabaseemoong First Nation"})
	require.NotNil(t, alias)

	obs := domain.Observation{
		Title:   "Band Administrator",
		RawText: "Apply to the Wabaseemoong administration office by mail.",
	}
	links := orgLinksFor([]string{"org-z", "org-a"}, []orgAlias{*alias}, obs)

	require.Len(t, links, 3)
	// Sorted by org id, owners and mentions interleaved.
	require.Equal(t, "fn-1", links[0].OrgID)
	require.Equal(t, "mentioned_in_text", links[0].Reason)
	require.Equal(t, "org-a", links[1].OrgID)
	require.Equal(t, "owner", links[1].Reason)
	require.Equal(t, "org-z", links[2].OrgID)

	// Too short to match safely.
	require.Nil(t, buildAlias(orgs.Org{OrgID: "fn-2", OrgName: "Oji"}))
}

func TestOrgLinksForSkipsUnmentionedAlias(t *testing.T) {
	alias := buildAlias(orgs.Org{OrgID: "fn-1", OrgName: "Wabaseemoong First Nation"})
	require.NotNil(t, alias)

	obs := domain.Observation{Title: "Deputy Clerk", RawText: "Municipal office posting."}
	links := orgLinksFor([]string{"org-a"}, []orgAlias{*alias}, obs)
	require.Len(t, links, 1)
	require.Equal(t, "org-a", links[0].OrgID)
}

func TestTruncateRunes(t *testing.T) {
	require.Equal(t, "abc", truncateRunes("abc", 10))
	require.Equal(t, "ab", truncateRunes("abcd", 2))
	require.Equal(t, "héll", truncateRunes("héllo", 4))
}

func TestSheetRowsRevalidates(t *testing.T) {
	policy := title.NewPolicy(title.Lists{})
	scraper := scrape.New(nil, policy, scrape.NewURLFilter(nil), scrape.Options{})
	eng := NewEngine(config.Config{}, nil, nil, scraper, policy, nil, nil)

	records := []domain.PostingRecord{
		{
			PostingUID: "uid-ok",
			Title:      "Senior Water Treatment Operator",
			PostingURL: "https://example.ca/careers/operator",
			BoardURL:   "https://example.ca/careers",
			Summary:    "Apply by the posted deadline.",
			OrgIDs:     []string{"org-b", "org-a"},
			IsActive:   true,
		},
		{
			// Navigation chrome that slipped into an old run.
			PostingUID: "uid-nav",
			Title:      "Home",
			PostingURL: "https://example.ca/careers/home",
			BoardURL:   "https://example.ca/careers",
		},
		{
			// Share link: dropped by the URL filter before validation.
			PostingUID: "uid-social",
			Title:      "Records Clerk",
			PostingURL: "https://www.facebook.com/sharer/sharer.php?u=x",
			BoardURL:   "https://example.ca/careers",
		},
	}
	names := map[string]string{"org-a": "Town of Atikokan", "org-b": "City of Kenora"}

	rows := eng.sheetRows(records, names)
	require.Len(t, rows, 1)
	require.Equal(t, "uid-ok", rows[0].PostingUID)
	require.Equal(t, "Senior Water Treatment Operator", rows[0].Title)
	require.Equal(t, "org-b,org-a", rows[0].OrgIDs)
	require.Equal(t, "City of Kenora | Town of Atikokan", rows[0].OrgNames)
}

func TestWriteRejectionReport(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	path, err := WriteRejectionReport(dir, day, []rejectionRow{
		{
			OrgID:           "org-a",
			OrgName:         "Town of Atikokan",
			SourceURL:       "https://example.ca/careers",
			CandidateTitle:  "Services",
			RejectionReason: "short generic nav title",
		},
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "title_rejections_2026-08-29.csv"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(b)
	require.True(t, strings.HasPrefix(content, "org_id,org_name,source_url,candidate_title,rejection_reason"))
	require.Contains(t, content, "Services")
}
