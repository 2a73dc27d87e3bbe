// Package orgs reads and writes the organization roster CSVs: the raw
// input (org_id, org_name, jobs_url, ...) and the enriched output that
// discovery produces and monitoring consumes.
package orgs

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Org is one roster row. Extra keeps unrecognized input columns so the
// enriched CSV round-trips whatever the source sheet carries.
type Org struct {
	OrgID       string
	OrgName     string
	OrgType     string
	HomepageURL string
	JobsURL     string

	// Populated by discovery.
	CanonicalJobsURL string
	JobsSourceType   string
	Adapter          string
	Confidence       string
	DiscoveredVia    string
	LastVerified     string
	Notes            string
	ManualReview     string

	Extra map[string]string
}

// Column order of the enriched CSV; unknown input columns are appended
// after these.
var enrichedColumns = []string{
	"org_id",
	"org_name",
	"org_type",
	"homepage_url",
	"jobs_url",
	"canonical_jobs_url",
	"jobs_source_type",
	"adapter",
	"confidence",
	"discovered_via",
	"last_verified",
	"notes",
	"manual_review",
}

var reHeaderJunk = regexp.MustCompile(`[^a-z0-9]+`)

// headerAliases maps common spreadsheet header spellings onto the
// canonical column names.
var headerAliases = map[string]string{
	"organization_id":   "org_id",
	"organization_name": "org_name",
	"organization_type": "org_type",
	"organization_url":  "homepage_url",
	"website_url":       "homepage_url",
	"website":           "homepage_url",
	"home_page_url":     "homepage_url",
	"job_url":           "jobs_url",
	"job_urls":          "jobs_url",
}

func normalizeHeader(value string) string {
	text := strings.ToLower(strings.TrimSpace(value))
	text = reHeaderJunk.ReplaceAllString(text, "_")
	text = strings.Trim(text, "_")
	if alias, ok := headerAliases[text]; ok {
		return alias
	}
	return text
}

// Load parses a roster CSV. The header row is required; column order is
// free-form.
func Load(path string) ([]Org, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty csv", path)
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = normalizeHeader(h)
	}

	var out []Org
	for _, record := range records[1:] {
		row := map[string]string{}
		for i, h := range headers {
			if i < len(record) {
				row[h] = strings.TrimSpace(record[i])
			}
		}
		empty := true
		for _, v := range row {
			if v != "" {
				empty = false
				break
			}
		}
		if empty {
			continue
		}

		org := Org{
			OrgID:            row["org_id"],
			OrgName:          row["org_name"],
			OrgType:          row["org_type"],
			HomepageURL:      row["homepage_url"],
			JobsURL:          row["jobs_url"],
			CanonicalJobsURL: row["canonical_jobs_url"],
			JobsSourceType:   row["jobs_source_type"],
			Adapter:          row["adapter"],
			Confidence:       row["confidence"],
			DiscoveredVia:    row["discovered_via"],
			LastVerified:     row["last_verified"],
			Notes:            row["notes"],
			ManualReview:     row["manual_review"],
			Extra:            map[string]string{},
		}
		known := map[string]bool{}
		for _, c := range enrichedColumns {
			known[c] = true
		}
		for _, h := range headers {
			if h != "" && !known[h] {
				org.Extra[h] = row[h]
			}
		}
		out = append(out, org)
	}
	return out, nil
}

// Save writes the enriched CSV, canonical columns first, then any extra
// columns sorted by name.
func Save(path string, list []Org) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var extraCols []string
	seenExtra := map[string]bool{}
	for _, org := range list {
		for k := range org.Extra {
			if !seenExtra[k] {
				seenExtra[k] = true
				extraCols = append(extraCols, k)
			}
		}
	}
	sort.Strings(extraCols)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append(append([]string{}, enrichedColumns...), extraCols...)
	if err := w.Write(header); err != nil {
		return err
	}

	for _, org := range list {
		record := []string{
			org.OrgID,
			org.OrgName,
			org.OrgType,
			org.HomepageURL,
			org.JobsURL,
			org.CanonicalJobsURL,
			org.JobsSourceType,
			org.Adapter,
			org.Confidence,
			org.DiscoveredVia,
			org.LastVerified,
			org.Notes,
			org.ManualReview,
		}
		for _, k := range extraCols {
			record = append(record, org.Extra[k])
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
