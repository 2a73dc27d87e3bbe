package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"boardwatch/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(db.Pool))
	return db
}

func TestUpsertObservationNewThenSeen(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	obs := domain.Observation{
		BoardURL:   "https://jobs.example.gov/careers",
		ExternalID: "REQ-1042",
		Title:      "Senior Water Treatment Operator",
		PostingURL: "https://jobs.example.gov/careers/req-1042",
		Location:   "Thunder Bay, ON",
	}

	first := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	uid, verdict, err := db.UpsertObservation(ctx, obs, first)
	require.NoError(t, err)
	require.Equal(t, VerdictNew, verdict)
	require.Len(t, uid, 40)

	// Same identity on a later run: seen, attributes refreshed,
	// first_seen_at untouched.
	obs.Title = "Senior Water Treatment Operator (Repost)"
	second := first.Add(24 * time.Hour)
	uid2, verdict2, err := db.UpsertObservation(ctx, obs, second)
	require.NoError(t, err)
	require.Equal(t, VerdictSeen, verdict2)
	require.Equal(t, uid, uid2)

	recs, err := db.PostingsWithOrgs(ctx, []string{uid})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "Senior Water Treatment Operator (Repost)", recs[0].Title)
	require.Equal(t, first.Format(time.RFC3339), recs[0].FirstSeenAt)
	require.Equal(t, second.Format(time.RFC3339), recs[0].LastSeenAt)
	require.True(t, recs[0].IsActive)
}

func TestUpsertObservationIdentityChangesAreNew(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	base := domain.Observation{
		BoardURL:   "https://jobs.example.gov/careers",
		ExternalID: "REQ-1",
		Title:      "Planner",
		PostingURL: "https://jobs.example.gov/careers/req-1",
	}
	uid1, _, err := db.UpsertObservation(ctx, base, now)
	require.NoError(t, err)

	other := base
	other.ExternalID = "REQ-2"
	other.PostingURL = "https://jobs.example.gov/careers/req-2"
	uid2, verdict, err := db.UpsertObservation(ctx, other, now)
	require.NoError(t, err)
	require.Equal(t, VerdictNew, verdict)
	require.NotEqual(t, uid1, uid2)
}

func TestOrgIDsUnionAcrossBoards(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// A shared regional board: the same posting is attributed to two
	// owner orgs plus a text mention.
	obs := domain.Observation{
		BoardURL:   "https://careers.sharedboard.ca/jobs",
		ExternalID: "5512",
		Title:      "Building Inspector",
		PostingURL: "https://careers.sharedboard.ca/jobs/5512",
	}
	uid, _, err := db.UpsertObservation(ctx, obs, now)
	require.NoError(t, err)

	require.NoError(t, db.AddPostingOrgLinks(ctx, uid, []OrgLink{
		{OrgID: "org-a", Reason: "board_owner"},
		{OrgID: "org-b", Reason: "board_owner"},
	}))
	require.NoError(t, db.AddPostingOrgLinks(ctx, uid, []OrgLink{
		{OrgID: "org-b", Reason: "mentioned_in_text"},
		{OrgID: "org-c", Reason: "mentioned_in_text"},
	}))

	recs, err := db.PostingsWithOrgs(ctx, []string{uid})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.ElementsMatch(t, []string{"org-a", "org-b", "org-c"}, recs[0].OrgIDs)
}

func TestMarkUnobserved(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	board := "https://jobs.example.gov/careers"

	var uids []string
	for _, ext := range []string{"A", "B", "C"} {
		obs := domain.Observation{
			BoardURL:   board,
			ExternalID: ext,
			Title:      "Role " + ext,
			PostingURL: board + "/" + ext,
		}
		uid, _, err := db.UpsertObservation(ctx, obs, now)
		require.NoError(t, err)
		uids = append(uids, uid)
	}

	// Second run sees only A and C: B goes inactive but stays stored.
	require.NoError(t, db.MarkUnobserved(ctx, board, []string{uids[0], uids[2]}))

	recs, err := db.PostingsWithOrgs(ctx, uids)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	active := map[string]bool{}
	for _, rec := range recs {
		active[rec.PostingUID] = rec.IsActive
	}
	require.True(t, active[uids[0]])
	require.False(t, active[uids[1]])
	require.True(t, active[uids[2]])
}

func TestResolutionCacheRoundTripAndExpiry(t *testing.T) {
	db := openTestDB(t)

	res := domain.Resolution{
		SeedURL:          "https://www.example.gov",
		CanonicalJobsURL: "https://example.wd3.myworkdayjobs.com/careers",
		JobsSourceType:   "ats",
		Adapter:          "workday",
		Confidence:       0.98,
		DiscoveredVia:    "pattern",
	}
	require.NoError(t, db.CacheResolution(res, 45))

	got, err := db.CachedResolution(res.SeedURL)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, res.CanonicalJobsURL, got.CanonicalJobsURL)
	require.Equal(t, res.Adapter, got.Adapter)
	require.InDelta(t, res.Confidence, got.Confidence, 1e-9)

	// Zero TTL expires immediately; expired rows read as absent.
	require.NoError(t, db.CacheResolution(res, 0))
	got, err = db.CachedResolution(res.SeedURL)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRunHistory(t *testing.T) {
	db := openTestDB(t)

	last, err := db.LastMonitorFinishedAt()
	require.NoError(t, err)
	require.Empty(t, last)

	id, err := db.StartRun("monitor")
	require.NoError(t, err)
	require.NoError(t, db.FinishRun(id, true, map[string]int{"new": 3}))

	last, err = db.LastMonitorFinishedAt()
	require.NoError(t, err)
	require.NotEmpty(t, last)
}

func TestBoardUpsertAndOrgMapping(t *testing.T) {
	db := openTestDB(t)

	board := "https://example.wd3.myworkdayjobs.com/careers"
	require.NoError(t, db.UpsertBoard(board, "ats", "workday"))
	require.NoError(t, db.UpsertBoard(board, "ats", "workday"))
	require.NoError(t, db.MapOrgBoard("org-a", board))
	require.NoError(t, db.MapOrgBoard("org-a", board))
	require.NoError(t, db.UpdateBoardScrapeStatus(board, "ok"))

	var count int
	require.NoError(t, db.Pool.QueryRow(`SELECT COUNT(*) FROM org_board;`).Scan(&count))
	require.Equal(t, 1, count)
}
