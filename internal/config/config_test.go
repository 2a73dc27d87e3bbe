package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	yml := `
app:
  data_dir: /tmp/bw
http:
  per_domain_rps: 2.5
monitor:
  max_concurrency: 90
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "/tmp/bw", cfg.App.DataDir)
	require.Equal(t, 2.5, cfg.HTTP.PerDomainRPS)
	require.Equal(t, 10, cfg.HTTP.TimeoutSeconds)
	require.NotEmpty(t, cfg.HTTP.UserAgent)
	// Concurrency is capped at 40 no matter what the file says.
	require.Equal(t, 40, cfg.Monitor.MaxConcurrency)
	require.Equal(t, "mock", cfg.Email.Provider)
	require.Equal(t, "Postings", cfg.Sheets.Worksheet)
}

func TestConfiguredPredicates(t *testing.T) {
	var cfg Config
	require.False(t, cfg.EmailConfigured())
	require.False(t, cfg.SheetsConfigured())

	cfg.Email.Enabled = true
	cfg.Email.From = "bot@example.ca"
	cfg.Email.To = "me@example.ca"
	require.True(t, cfg.EmailConfigured())

	cfg.Sheets.Enabled = true
	cfg.Sheets.SpreadsheetID = "sheet-id"
	require.True(t, cfg.SheetsConfigured())
}

func TestEnsureUserConfigCopiesOnce(t *testing.T) {
	dir := t.TempDir()
	defaultPath := filepath.Join(dir, "default.yml")
	require.NoError(t, os.WriteFile(defaultPath, []byte("app:\n  data_dir: x\n"), 0o644))

	dataDir := filepath.Join(dir, "data")
	userPath, err := EnsureUserConfig(dataDir, defaultPath)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dataDir, "config.yml"), userPath)

	// A second call must not clobber user edits.
	require.NoError(t, os.WriteFile(userPath, []byte("app:\n  data_dir: y\n"), 0o644))
	again, err := EnsureUserConfig(dataDir, defaultPath)
	require.NoError(t, err)
	require.Equal(t, userPath, again)
	b, err := os.ReadFile(userPath)
	require.NoError(t, err)
	require.Contains(t, string(b), "data_dir: y")
}
