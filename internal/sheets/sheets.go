// Package sheets mirrors the posting table into a Google Sheet. The
// sheet is rewritten each run from the store, except for the manual
// columns humans edit (status, applied_date, notes), which are carried
// over by posting_uid.
package sheets

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Column order of the postings worksheet. Appending is safe; reordering
// breaks the manual-column carry-over for existing sheets.
var sheetColumns = []string{
	"posting_uid",
	"first_seen_at",
	"last_seen_at",
	"is_active",
	"org_ids",
	"org_names",
	"board_url",
	"jobs_source_type",
	"adapter",
	"title",
	"posting_url",
	"location",
	"posting_date",
	"closing_date",
	"status",
	"applied_date",
	"notes",
}

var manualColumns = map[string]bool{
	"status":       true,
	"applied_date": true,
	"notes":        true,
}

// PostingRow is one sheet row's worth of posting data.
type PostingRow struct {
	PostingUID  string
	FirstSeenAt string
	LastSeenAt  string
	IsActive    bool
	OrgIDs      string
	OrgNames    string
	BoardURL    string
	SourceType  string
	Adapter     string
	Title       string
	PostingURL  string
	Location    string
	PostingDate string
	ClosingDate string
}

// Syncer writes the postings worksheet.
type Syncer struct {
	svc           *sheets.Service
	spreadsheetID string
	worksheet     string
}

func New(ctx context.Context, credentialsJSON []byte, spreadsheetID, worksheet string) (*Syncer, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Syncer{svc: svc, spreadsheetID: spreadsheetID, worksheet: worksheet}, nil
}

// UpsertPostings replaces the worksheet contents with the given rows,
// preserving manual-column values of rows that already existed.
func (s *Syncer) UpsertPostings(ctx context.Context, rows []PostingRow) error {
	if err := s.ensureWorksheet(ctx); err != nil {
		return err
	}

	existing, err := s.readExisting(ctx)
	if err != nil {
		return err
	}

	values := buildValues(rows, existing)

	return retry.Do(
		func() error {
			if _, err := s.svc.Spreadsheets.Values.Clear(
				s.spreadsheetID, s.worksheet, &sheets.ClearValuesRequest{},
			).Context(ctx).Do(); err != nil {
				return fmt.Errorf("clear worksheet: %w", err)
			}
			_, err := s.svc.Spreadsheets.Values.Update(
				s.spreadsheetID, s.worksheet+"!A1", &sheets.ValueRange{Values: values},
			).ValueInputOption("RAW").Context(ctx).Do()
			if err != nil {
				return fmt.Errorf("update worksheet: %w", err)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("[sheets] retrying upsert (attempt %d): %v", n, err)
		}),
	)
}

func (s *Syncer) ensureWorksheet(ctx context.Context) error {
	meta, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sheet := range meta.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == s.worksheet {
			return nil
		}
	}

	_, err = s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: s.worksheet},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add worksheet %s: %w", s.worksheet, err)
	}
	return nil
}

// readExisting maps posting_uid to the row's current cell values, keyed
// by header name so column drift in old sheets stays harmless.
func (s *Syncer) readExisting(ctx context.Context) (map[string]map[string]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.worksheet).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read worksheet: %w", err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}

	headers := make([]string, len(resp.Values[0]))
	for i, cell := range resp.Values[0] {
		headers[i] = fmt.Sprint(cell)
	}

	out := map[string]map[string]string{}
	for _, row := range resp.Values[1:] {
		record := map[string]string{}
		for i, header := range headers {
			if i < len(row) {
				record[header] = fmt.Sprint(row[i])
			}
		}
		if uid := record["posting_uid"]; uid != "" {
			out[uid] = record
		}
	}
	return out, nil
}

func buildValues(rows []PostingRow, existing map[string]map[string]string) [][]any {
	values := make([][]any, 0, len(rows)+1)
	header := make([]any, len(sheetColumns))
	for i, col := range sheetColumns {
		header[i] = col
	}
	values = append(values, header)

	for _, row := range rows {
		isActive := "0"
		if row.IsActive {
			isActive = "1"
		}
		cells := map[string]string{
			"posting_uid":      row.PostingUID,
			"first_seen_at":    row.FirstSeenAt,
			"last_seen_at":     row.LastSeenAt,
			"is_active":        isActive,
			"org_ids":          row.OrgIDs,
			"org_names":        row.OrgNames,
			"board_url":        row.BoardURL,
			"jobs_source_type": row.SourceType,
			"adapter":          row.Adapter,
			"title":            row.Title,
			"posting_url":      row.PostingURL,
			"location":         row.Location,
			"posting_date":     row.PostingDate,
			"closing_date":     row.ClosingDate,
		}

		prev := existing[row.PostingUID]
		for col := range manualColumns {
			if prev[col] != "" {
				cells[col] = prev[col]
			}
		}

		out := make([]any, len(sheetColumns))
		for i, col := range sheetColumns {
			out[i] = cells[col]
		}
		values = append(values, out)
	}
	return values
}
