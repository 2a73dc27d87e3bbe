package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"boardwatch/internal/domain"
	"boardwatch/internal/urlutil"
)

// Verdict says whether an observation created a posting or refreshed one.
type Verdict string

const (
	VerdictNew  Verdict = "new"
	VerdictSeen Verdict = "seen"
)

// PostingUID derives the stable identity of a posting from its board and
// normalized URL (plus the ATS-native id when one exists). This is the
// change-detection key: changing the derivation reclassifies all history
// as new, so treat it as a breaking migration.
func PostingUID(boardURL, externalID, postingURL string) string {
	return urlutil.StableHash(boardURL + "|" + externalID + "|" + postingURL)[:40]
}

// OrgLink attributes a posting to an org with a reason (owner of the
// board, or mentioned_in_text).
type OrgLink struct {
	OrgID  string
	Reason string
}

// UpsertObservation reconciles one observation against history. Absent
// uid: insert with first_seen_at = last_seen_at = observedAt, VerdictNew.
// Present: refresh attributes and last_seen_at, never touching
// first_seen_at, VerdictSeen. "New" means exactly "not in the store
// before this write" - that single rule is the whole diff algorithm.
// The pool's single connection serializes concurrent observations of the
// same uid from different boards.
func (d *DB) UpsertObservation(ctx context.Context, obs domain.Observation, observedAt time.Time) (string, Verdict, error) {
	uid := PostingUID(obs.BoardURL, obs.ExternalID, obs.PostingURL)
	now := observedAt.UTC().Format(time.RFC3339)

	contentSeed := strings.Join([]string{
		obs.Title, obs.PostingURL, obs.Location, obs.PostingDate, obs.ClosingDate, obs.Summary,
	}, "|")
	contentHash := urlutil.StableHash(contentSeed)

	var existing string
	err := d.Pool.QueryRowContext(ctx,
		`SELECT posting_uid FROM posting WHERE posting_uid = ?;`, uid).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = d.Pool.ExecContext(ctx, `
INSERT INTO posting (
  posting_uid, board_url, external_id, title, posting_url,
  location, posting_date, closing_date, summary, content_hash,
  first_seen_at, last_seen_at, is_active
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1);`,
			uid, obs.BoardURL, obs.ExternalID, obs.Title, obs.PostingURL,
			obs.Location, obs.PostingDate, obs.ClosingDate, obs.Summary, contentHash,
			now, now)
		if err != nil {
			return "", "", fmt.Errorf("insert posting: %w", err)
		}
		return uid, VerdictNew, nil
	case err != nil:
		return "", "", err
	default:
		_, err = d.Pool.ExecContext(ctx, `
UPDATE posting
SET board_url = ?,
    external_id = ?,
    title = ?,
    posting_url = ?,
    location = ?,
    posting_date = ?,
    closing_date = ?,
    summary = ?,
    content_hash = ?,
    last_seen_at = ?,
    is_active = 1
WHERE posting_uid = ?;`,
			obs.BoardURL, obs.ExternalID, obs.Title, obs.PostingURL,
			obs.Location, obs.PostingDate, obs.ClosingDate, obs.Summary, contentHash,
			now, uid)
		if err != nil {
			return "", "", fmt.Errorf("refresh posting: %w", err)
		}
		return uid, VerdictSeen, nil
	}
}

// MarkUnobserved flags a board's postings that were not seen this run.
// Disappearance is derivable state, never a delete.
func (d *DB) MarkUnobserved(ctx context.Context, boardURL string, seenUIDs []string) error {
	if len(seenUIDs) == 0 {
		_, err := d.Pool.ExecContext(ctx,
			`UPDATE posting SET is_active = 0 WHERE board_url = ?;`, boardURL)
		return err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(seenUIDs)), ",")
	args := make([]any, 0, len(seenUIDs)+1)
	args = append(args, boardURL)
	for _, uid := range seenUIDs {
		args = append(args, uid)
	}
	_, err := d.Pool.ExecContext(ctx, fmt.Sprintf(`
UPDATE posting
SET is_active = 0
WHERE board_url = ?
  AND posting_uid NOT IN (%s);`, placeholders), args...)
	return err
}

// ReplacePostingOrgLinks rewrites a posting's org attributions. org_ids
// accumulate across boards at read time via the union over links.
func (d *DB) ReplacePostingOrgLinks(ctx context.Context, postingUID string, links []OrgLink) error {
	if _, err := d.Pool.ExecContext(ctx,
		`DELETE FROM posting_org WHERE posting_uid = ?;`, postingUID); err != nil {
		return err
	}
	for _, link := range links {
		if _, err := d.Pool.ExecContext(ctx, `
INSERT OR IGNORE INTO posting_org (posting_uid, org_id, reason)
VALUES (?, ?, ?);`, postingUID, link.OrgID, link.Reason); err != nil {
			return err
		}
	}
	return nil
}

// AddPostingOrgLinks merges attributions without dropping existing ones
// (used when a second board surfaces the same posting within a run).
func (d *DB) AddPostingOrgLinks(ctx context.Context, postingUID string, links []OrgLink) error {
	for _, link := range links {
		if _, err := d.Pool.ExecContext(ctx, `
INSERT OR IGNORE INTO posting_org (posting_uid, org_id, reason)
VALUES (?, ?, ?);`, postingUID, link.OrgID, link.Reason); err != nil {
			return err
		}
	}
	return nil
}

const postingSelect = `
SELECT
  p.posting_uid,
  p.board_url,
  p.title,
  p.posting_url,
  p.location,
  p.posting_date,
  p.closing_date,
  p.summary,
  p.first_seen_at,
  p.last_seen_at,
  p.is_active,
  COALESCE(b.jobs_source_type, ''),
  COALESCE(b.adapter, ''),
  COALESCE(GROUP_CONCAT(DISTINCT po.org_id), '')
FROM posting p
LEFT JOIN board b ON b.canonical_jobs_url = p.board_url
LEFT JOIN posting_org po ON po.posting_uid = p.posting_uid
`

func scanPostings(rows *sql.Rows) ([]domain.PostingRecord, error) {
	defer rows.Close()

	var out []domain.PostingRecord
	for rows.Next() {
		var rec domain.PostingRecord
		var isActive int
		var orgIDs string
		if err := rows.Scan(
			&rec.PostingUID,
			&rec.BoardURL,
			&rec.Title,
			&rec.PostingURL,
			&rec.Location,
			&rec.PostingDate,
			&rec.ClosingDate,
			&rec.Summary,
			&rec.FirstSeenAt,
			&rec.LastSeenAt,
			&isActive,
			&rec.SourceType,
			&rec.Adapter,
			&orgIDs,
		); err != nil {
			return nil, err
		}
		rec.IsActive = isActive != 0
		for _, id := range strings.Split(orgIDs, ",") {
			if id != "" {
				rec.OrgIDs = append(rec.OrgIDs, id)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PostingsWithOrgs fetches specific postings with their org attributions.
func (d *DB) PostingsWithOrgs(ctx context.Context, postingUIDs []string) ([]domain.PostingRecord, error) {
	if len(postingUIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(postingUIDs)), ",")
	args := make([]any, len(postingUIDs))
	for i, uid := range postingUIDs {
		args[i] = uid
	}
	rows, err := d.Pool.QueryContext(ctx, postingSelect+fmt.Sprintf(`
WHERE p.posting_uid IN (%s)
GROUP BY p.posting_uid
ORDER BY p.first_seen_at DESC;`, placeholders), args...)
	if err != nil {
		return nil, err
	}
	return scanPostings(rows)
}

// AllPostingsForSheet returns the full posting table, newest first, for
// the spreadsheet mirror.
func (d *DB) AllPostingsForSheet(ctx context.Context) ([]domain.PostingRecord, error) {
	rows, err := d.Pool.QueryContext(ctx, postingSelect+`
GROUP BY p.posting_uid
ORDER BY p.first_seen_at DESC;`)
	if err != nil {
		return nil, err
	}
	return scanPostings(rows)
}
