package store

import (
	"database/sql"
	"encoding/json"
	"errors"
)

// StartRun opens a run_history row and returns its id.
func (d *DB) StartRun(runType string) (int64, error) {
	res, err := d.Pool.Exec(`
INSERT INTO run_history (run_type, started_at, ok) VALUES (?, ?, NULL);`,
		runType, utcNow())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinishRun closes a run with its outcome and stats payload.
func (d *DB) FinishRun(runID int64, ok bool, stats any) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		statsJSON = []byte(`{}`)
	}
	okVal := 0
	if ok {
		okVal = 1
	}
	_, err = d.Pool.Exec(`
UPDATE run_history SET finished_at = ?, ok = ?, stats_json = ? WHERE id = ?;`,
		utcNow(), okVal, string(statsJSON), runID)
	return err
}

// LastMonitorFinishedAt returns when the last successful monitor run
// finished, or "" if none has.
func (d *DB) LastMonitorFinishedAt() (string, error) {
	var finishedAt string
	err := d.Pool.QueryRow(`
SELECT finished_at
FROM run_history
WHERE run_type = 'monitor' AND ok = 1 AND finished_at IS NOT NULL
ORDER BY id DESC
LIMIT 1;`).Scan(&finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return finishedAt, err
}
