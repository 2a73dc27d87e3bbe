package monitor

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"boardwatch/internal/config"
	"boardwatch/internal/email"
	"boardwatch/internal/fetch"
	"boardwatch/internal/orgs"
	"boardwatch/internal/scrape"
	"boardwatch/internal/store"
	"boardwatch/internal/title"
)

const listingPage = `<html><body>
<main>
  <p>Apply by the closing date below.</p>
  <ul>
    <li><a href="/careers/senior-water-treatment-operator">Senior Water Treatment Operator</a></li>
    <li><a href="/services">Services</a></li>
  </ul>
</main>
</body></html>`

// Full monitor pass against a local board: one valid posting, one
// navigation link that must be rejected, then a second pass proving
// idempotence.
func TestMonitorRunAgainstLocalBoard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, listingPage)
	}))
	defer srv.Close()
	boardURL := srv.URL + "/careers"

	dir := t.TempDir()
	enrichedPath := filepath.Join(dir, "orgs_enriched.csv")
	require.NoError(t, orgs.Save(enrichedPath, []orgs.Org{{
		OrgID:            "org-1",
		OrgName:          "Town of Atikokan",
		OrgType:          "municipality",
		JobsURL:          boardURL,
		CanonicalJobsURL: boardURL,
		JobsSourceType:   "html_list",
		Adapter:          "generic",
	}}))

	var cfg config.Config
	cfg.App.OrgsEnrichedCSV = enrichedPath
	cfg.App.ReportsDir = filepath.Join(dir, "reports")
	cfg.Monitor.MaxConcurrency = 4
	cfg.Monitor.MaxPostingsPerBoard = 50
	cfg.Email.Enabled = true
	cfg.Email.Provider = "mock"
	cfg.Email.From = "bot@example.ca"
	cfg.Email.To = "me@example.ca"

	db, err := store.Open(filepath.Join(dir, "bw.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, store.Migrate(db.Pool))

	client := fetch.NewClient(fetch.NewLimiter(1000), fetch.Options{
		Timeout:       2 * time.Second,
		MaxRedirects:  4,
		RetryAttempts: 2,
		UserAgent:     "boardwatch-test",
	})
	policy := title.NewPolicy(title.Lists{})
	scraper := scrape.New(client, policy, scrape.NewURLFilter(nil), scrape.Options{MaxHTMLBytes: 100_000})
	mock := email.NewMockProvider()

	eng := NewEngine(cfg, client, db, scraper, policy, mock, nil)

	stats, err := eng.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Empty(t, stats.Failures)
	require.Equal(t, 1, stats.BoardsTotal)
	require.Equal(t, 1, stats.BoardsSuccess)
	require.Equal(t, 1, stats.PostingsSeen)
	require.Equal(t, 1, stats.NewPostings)
	require.Equal(t, 1, stats.TitlesRejectedBlocklist)
	require.True(t, stats.EmailSent)

	sent := mock.Sent()
	require.Len(t, sent, 1)
	require.Contains(t, sent[0].Subject, "1 new posting")
	require.Contains(t, sent[0].Text, "Senior Water Treatment Operator")

	// The rejected nav link lands in the day's report.
	reportPath := filepath.Join(cfg.App.ReportsDir,
		"title_rejections_"+time.Now().Format("2006-01-02")+".csv")
	b, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	require.Contains(t, string(b), "Services")

	records, err := db.AllPostingsForSheet(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.True(t, records[0].IsActive)
	require.Equal(t, []string{"org-1"}, records[0].OrgIDs)
	firstSeen := records[0].FirstSeenAt

	// Second pass: everything is already known.
	stats2, err := eng.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 1, stats2.PostingsSeen)
	require.Equal(t, 0, stats2.NewPostings)
	require.False(t, stats2.EmailSent)
	require.Len(t, mock.Sent(), 1)

	records, err = db.AllPostingsForSheet(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, firstSeen, records[0].FirstSeenAt)
	require.True(t, records[0].IsActive)
}
