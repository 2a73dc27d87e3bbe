package store

import "database/sql"

// Migrate brings the schema to v1. Versioned via PRAGMA user_version so
// later migrations can stack.
func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= 1 {
		return tx.Commit()
	}

	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS resolution_cache (
  seed_hash TEXT PRIMARY KEY,
  seed_url TEXT NOT NULL,
  canonical_jobs_url TEXT NOT NULL,
  jobs_source_type TEXT NOT NULL,
  adapter TEXT NOT NULL,
  confidence REAL NOT NULL,
  discovered_via TEXT NOT NULL,
  notes TEXT NOT NULL,
  manual_review INTEGER NOT NULL DEFAULT 0,
  checked_at TEXT NOT NULL,
  expires_at TEXT NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS board (
  canonical_jobs_url TEXT PRIMARY KEY,
  jobs_source_type TEXT NOT NULL,
  adapter TEXT NOT NULL,
  last_scraped_at TEXT,
  last_status TEXT
);`,
		`
CREATE TABLE IF NOT EXISTS org_board (
  org_id TEXT NOT NULL,
  canonical_jobs_url TEXT NOT NULL,
  PRIMARY KEY (org_id, canonical_jobs_url)
);`,
		`
CREATE TABLE IF NOT EXISTS posting (
  posting_uid TEXT PRIMARY KEY,
  board_url TEXT NOT NULL,
  external_id TEXT NOT NULL,
  title TEXT NOT NULL,
  posting_url TEXT NOT NULL,
  location TEXT NOT NULL DEFAULT '',
  posting_date TEXT NOT NULL DEFAULT '',
  closing_date TEXT NOT NULL DEFAULT '',
  summary TEXT NOT NULL DEFAULT '',
  content_hash TEXT NOT NULL,
  first_seen_at TEXT NOT NULL,
  last_seen_at TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1
);`,
		`CREATE INDEX IF NOT EXISTS idx_posting_board ON posting(board_url);`,
		`CREATE INDEX IF NOT EXISTS idx_posting_first_seen ON posting(first_seen_at);`,
		`
CREATE TABLE IF NOT EXISTS posting_org (
  posting_uid TEXT NOT NULL,
  org_id TEXT NOT NULL,
  reason TEXT NOT NULL,
  PRIMARY KEY (posting_uid, org_id, reason)
);`,
		`
CREATE TABLE IF NOT EXISTS run_history (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_type TEXT NOT NULL,
  started_at TEXT NOT NULL,
  finished_at TEXT,
  ok INTEGER,
  stats_json TEXT
);`,
		`PRAGMA user_version = 1;`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return tx.Commit()
}
