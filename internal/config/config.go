package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		DataDir         string `yaml:"data_dir"`
		OrgsCSV         string `yaml:"orgs_csv"`
		OrgsEnrichedCSV string `yaml:"orgs_enriched_csv"`
		ReportsDir      string `yaml:"reports_dir"`
	} `yaml:"app"`

	HTTP struct {
		PerDomainRPS   float64 `yaml:"per_domain_rps"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
		MaxRedirects   int     `yaml:"max_redirects"`
		MaxHTMLBytes   int     `yaml:"max_html_bytes"`
		RetryAttempts  int     `yaml:"retry_attempts"`
		UserAgent      string  `yaml:"user_agent"`
	} `yaml:"http"`

	Discovery struct {
		GlobalConcurrency int `yaml:"global_concurrency"`
		CacheTTLDays      int `yaml:"cache_ttl_days"`
	} `yaml:"discovery"`

	Monitor struct {
		MaxConcurrency      int  `yaml:"max_concurrency"`
		FetchDetails        bool `yaml:"fetch_details"`
		MaxPostingsPerBoard int  `yaml:"max_postings_per_board"`
	} `yaml:"monitor"`

	Email struct {
		Enabled         bool   `yaml:"enabled"`
		Provider        string `yaml:"provider"` // brevo | mock
		From            string `yaml:"from"`
		FromName        string `yaml:"from_name"`
		To              string `yaml:"to"`
		KeyringAccount  string `yaml:"keyring_account"`
		SendEmptyDigest bool   `yaml:"send_empty_digest"`
	} `yaml:"email"`

	Sheets struct {
		Enabled        bool   `yaml:"enabled"`
		SpreadsheetID  string `yaml:"spreadsheet_id"`
		Worksheet      string `yaml:"worksheet"`
		CredentialsEnv string `yaml:"credentials_env"`
		KeyringAccount string `yaml:"keyring_account"`
	} `yaml:"sheets"`

	// Title policy tables. Empty lists fall back to the built-in defaults;
	// these exist so the lexicon can evolve without a code change.
	Titles struct {
		BlocklistExact     []string `yaml:"blocklist_exact"`
		NavLikeShortTerms  []string `yaml:"nav_like_short_terms"`
		NonJobCategories   []string `yaml:"non_job_categories"`
		RoleWords          []string `yaml:"role_words"`
		JobURLHints        []string `yaml:"job_url_hints"`
		NearTitleKeywords  []string `yaml:"near_title_keywords"`
		SiteNameMarkers    []string `yaml:"site_name_markers"`
		BlockedPostingURLs []string `yaml:"blocked_posting_urls"`
	} `yaml:"titles"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.DataDir == "" {
		c.App.DataDir = "."
	}
	if c.App.OrgsCSV == "" {
		c.App.OrgsCSV = "data/orgs.csv"
	}
	if c.App.OrgsEnrichedCSV == "" {
		c.App.OrgsEnrichedCSV = "data/orgs_enriched.csv"
	}
	if c.App.ReportsDir == "" {
		c.App.ReportsDir = "reports"
	}
	if c.HTTP.PerDomainRPS <= 0 {
		c.HTTP.PerDomainRPS = 1.0
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		c.HTTP.TimeoutSeconds = 10
	}
	if c.HTTP.MaxRedirects <= 0 {
		c.HTTP.MaxRedirects = 8
	}
	if c.HTTP.MaxHTMLBytes <= 0 {
		c.HTTP.MaxHTMLBytes = 350_000
	}
	if c.HTTP.RetryAttempts <= 0 {
		c.HTTP.RetryAttempts = 3
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = "BoardWatch/1.0 (+https://github.com/boardwatch/boardwatch)"
	}
	if c.Discovery.GlobalConcurrency <= 0 {
		c.Discovery.GlobalConcurrency = 80
	}
	if c.Discovery.CacheTTLDays <= 0 {
		c.Discovery.CacheTTLDays = 45
	}
	if c.Monitor.MaxConcurrency <= 0 || c.Monitor.MaxConcurrency > 40 {
		c.Monitor.MaxConcurrency = 40
	}
	if c.Monitor.MaxPostingsPerBoard <= 0 {
		c.Monitor.MaxPostingsPerBoard = 200
	}
	if c.Email.Provider == "" {
		c.Email.Provider = "mock"
	}
	if c.Sheets.Worksheet == "" {
		c.Sheets.Worksheet = "Postings"
	}
	if c.Sheets.CredentialsEnv == "" {
		c.Sheets.CredentialsEnv = "GOOGLE_SERVICE_ACCOUNT_JSON"
	}
}

// EmailConfigured reports whether the digest sender has enough to run.
func (c Config) EmailConfigured() bool {
	return c.Email.Enabled && c.Email.From != "" && c.Email.To != ""
}

// SheetsConfigured reports whether the sheet upsert collaborator can run.
func (c Config) SheetsConfigured() bool {
	return c.Sheets.Enabled && c.Sheets.SpreadsheetID != ""
}
