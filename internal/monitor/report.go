package monitor

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// rejectionRow is one rejected title attributed to one owner org. Boards
// with several owners produce one row per owner so each org's report
// filter stays a plain equality match.
type rejectionRow struct {
	OrgID           string
	OrgName         string
	SourceURL       string
	CandidateTitle  string
	RejectionReason string
}

// WriteRejectionReport writes the day's rejected titles to a dated CSV
// under dir and returns the path. Re-running on the same day overwrites.
func WriteRejectionReport(dir string, day time.Time, rows []rejectionRow) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("title_rejections_%s.csv", day.Format("2006-01-02")))

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"org_id", "org_name", "source_url", "candidate_title", "rejection_reason"}); err != nil {
		return "", err
	}
	for _, row := range rows {
		record := []string{row.OrgID, row.OrgName, row.SourceURL, row.CandidateTitle, row.RejectionReason}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	return path, w.Error()
}
