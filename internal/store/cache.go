package store

import (
	"database/sql"
	"errors"
	"time"

	"boardwatch/internal/domain"
	"boardwatch/internal/urlutil"
)

// CachedResolution returns a non-expired cached resolution for a seed
// URL, or nil. Expired rows are treated as absent, not deleted; the next
// CacheResolution overwrites them.
func (d *DB) CachedResolution(seedURL string) (*domain.Resolution, error) {
	row := d.Pool.QueryRow(`
SELECT seed_url, canonical_jobs_url, jobs_source_type, adapter,
       confidence, discovered_via, notes, manual_review, expires_at
FROM resolution_cache
WHERE seed_hash = ?;`, urlutil.URLHash(seedURL))

	var res domain.Resolution
	var manualReview int
	var expiresAt string
	err := row.Scan(
		&res.SeedURL,
		&res.CanonicalJobsURL,
		&res.JobsSourceType,
		&res.Adapter,
		&res.Confidence,
		&res.DiscoveredVia,
		&res.Notes,
		&manualReview,
		&expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	expires, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil || expires.Before(time.Now().UTC()) {
		return nil, nil
	}

	res.ManualReview = manualReview != 0
	return &res, nil
}

// CacheResolution stores a resolution with a TTL so unchanged seeds skip
// all network tiers on later runs.
func (d *DB) CacheResolution(res domain.Resolution, ttlDays int) error {
	checkedAt := time.Now().UTC()
	expiresAt := checkedAt.Add(time.Duration(ttlDays) * 24 * time.Hour)

	manualReview := 0
	if res.ManualReview {
		manualReview = 1
	}

	_, err := d.Pool.Exec(`
INSERT INTO resolution_cache (
  seed_hash, seed_url, canonical_jobs_url, jobs_source_type, adapter,
  confidence, discovered_via, notes, manual_review, checked_at, expires_at
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(seed_hash) DO UPDATE SET
  seed_url = excluded.seed_url,
  canonical_jobs_url = excluded.canonical_jobs_url,
  jobs_source_type = excluded.jobs_source_type,
  adapter = excluded.adapter,
  confidence = excluded.confidence,
  discovered_via = excluded.discovered_via,
  notes = excluded.notes,
  manual_review = excluded.manual_review,
  checked_at = excluded.checked_at,
  expires_at = excluded.expires_at;`,
		urlutil.URLHash(res.SeedURL),
		res.SeedURL,
		res.CanonicalJobsURL,
		res.JobsSourceType,
		res.Adapter,
		res.Confidence,
		res.DiscoveredVia,
		res.Notes,
		manualReview,
		checkedAt.Format(time.RFC3339),
		expiresAt.Format(time.RFC3339),
	)
	return err
}
