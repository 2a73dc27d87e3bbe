package orgs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAliasedHeaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orgs.csv")
	csv := "Organization ID,Organization Name,Org Type,Website,Job URL,Region\n" +
		"org-1,Town of Atikokan,municipality,https://atikokan.ca,https://atikokan.ca/careers,Rainy River\n" +
		",,,,,\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	rows, err := Load(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	org := rows[0]
	require.Equal(t, "org-1", org.OrgID)
	require.Equal(t, "Town of Atikokan", org.OrgName)
	require.Equal(t, "municipality", org.OrgType)
	require.Equal(t, "https://atikokan.ca", org.HomepageURL)
	require.Equal(t, "https://atikokan.ca/careers", org.JobsURL)
	require.Equal(t, "Rainy River", org.Extra["region"])
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enriched.csv")
	in := []Org{{
		OrgID:            "org-1",
		OrgName:          "City of Kenora",
		JobsURL:          "https://kenora.ca/jobs",
		CanonicalJobsURL: "https://kenora.ca/careers",
		JobsSourceType:   "html_list",
		Adapter:          "generic",
		Confidence:       "0.68",
		DiscoveredVia:    "html_parse",
		ManualReview:     "0",
		Extra:            map[string]string{"region": "Kenora District"},
	}}
	require.NoError(t, Save(path, in))

	out, err := Load(path)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, in[0].CanonicalJobsURL, out[0].CanonicalJobsURL)
	require.Equal(t, in[0].Confidence, out[0].Confidence)
	require.Equal(t, "Kenora District", out[0].Extra["region"])
}
