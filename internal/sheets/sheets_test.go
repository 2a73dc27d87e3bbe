package sheets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func colIndex(t *testing.T, name string) int {
	t.Helper()
	for i, col := range sheetColumns {
		if col == name {
			return i
		}
	}
	t.Fatalf("no column %q", name)
	return -1
}

func TestBuildValuesPreservesManualColumns(t *testing.T) {
	rows := []PostingRow{
		{PostingUID: "uid-1", Title: "Senior Planner", IsActive: true},
		{PostingUID: "uid-2", Title: "Deputy Clerk", IsActive: true},
	}
	existing := map[string]map[string]string{
		"uid-1": {
			"status":       "applied",
			"applied_date": "2026-08-10",
			"notes":        "phone screen booked",
			// Engine-owned columns in the old sheet must not leak through.
			"title": "Old Title",
		},
	}

	values := buildValues(rows, existing)
	require.Len(t, values, 3)

	statusIdx := colIndex(t, "status")
	notesIdx := colIndex(t, "notes")
	titleIdx := colIndex(t, "title")

	require.Equal(t, "applied", values[1][statusIdx])
	require.Equal(t, "phone screen booked", values[1][notesIdx])
	require.Equal(t, "Senior Planner", values[1][titleIdx])

	// A posting never seen in the sheet starts with blank manual columns.
	require.Equal(t, "", values[2][statusIdx])
	require.Equal(t, "", values[2][notesIdx])
}

func TestBuildValuesHeaderOrder(t *testing.T) {
	values := buildValues(nil, nil)
	require.Len(t, values, 1)
	require.Equal(t, "posting_uid", values[0][0])
	require.Equal(t, "notes", values[0][len(sheetColumns)-1])
}
