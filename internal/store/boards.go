package store

// UpsertBoard registers a canonical board (or refreshes its source
// type/adapter). board_url is the dedupe key: several orgs may map to one
// shared board.
func (d *DB) UpsertBoard(canonicalJobsURL, jobsSourceType, adapter string) error {
	_, err := d.Pool.Exec(`
INSERT INTO board (canonical_jobs_url, jobs_source_type, adapter)
VALUES (?, ?, ?)
ON CONFLICT(canonical_jobs_url) DO UPDATE SET
  jobs_source_type = excluded.jobs_source_type,
  adapter = excluded.adapter;`,
		canonicalJobsURL, jobsSourceType, adapter)
	return err
}

// MapOrgBoard links an org to its active board. Re-running discovery may
// point the org at a different board; old links are left as history.
func (d *DB) MapOrgBoard(orgID, canonicalJobsURL string) error {
	_, err := d.Pool.Exec(`
INSERT OR IGNORE INTO org_board (org_id, canonical_jobs_url)
VALUES (?, ?);`, orgID, canonicalJobsURL)
	return err
}

// UpdateBoardScrapeStatus records the outcome of the latest scrape
// attempt for operator visibility.
func (d *DB) UpdateBoardScrapeStatus(canonicalJobsURL, status string) error {
	_, err := d.Pool.Exec(`
UPDATE board
SET last_scraped_at = ?, last_status = ?
WHERE canonical_jobs_url = ?;`,
		utcNow(), status, canonicalJobsURL)
	return err
}
