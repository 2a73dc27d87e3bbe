// Command boardwatch discovers job boards for an org roster and monitors
// them for new postings.
//
//	boardwatch discover   resolve roster seed URLs to canonical boards
//	boardwatch monitor    scrape boards, diff against history, notify
//	boardwatch run-all    discover then monitor in one invocation
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"boardwatch/internal/config"
	"boardwatch/internal/discover"
	"boardwatch/internal/email"
	"boardwatch/internal/fetch"
	"boardwatch/internal/monitor"
	"boardwatch/internal/scrape"
	"boardwatch/internal/secrets"
	"boardwatch/internal/sheets"
	"boardwatch/internal/store"
	"boardwatch/internal/title"
)

const brevoKeyEnv = "BREVO_API_KEY"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	log.SetPrefix("[boardwatch] ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", "config/config.yml", "path to the shipped default config")
	limit := fs.Int("limit", 0, "discover: cap on roster rows (0 = all)")
	maxBoards := fs.Int("max-boards", 0, "monitor: cap on boards scraped (0 = all)")
	fs.Parse(os.Args[2:])

	switch cmd {
	case "discover", "monitor", "run-all":
	default:
		usage()
		os.Exit(2)
	}

	if err := run(cmd, *configPath, *limit, *maxBoards); err != nil {
		log.Fatalf("%s failed: %v", cmd, err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: boardwatch <discover|monitor|run-all> [-config path] [-limit n] [-max-boards n]")
}

func run(cmd, configPath string, limit, maxBoards int) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// One process per data dir. A cron overlap silently corrupting the
	// enriched CSV is worse than a skipped run.
	lock := flock.New(filepath.Join(cfg.App.DataDir, "boardwatch.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another boardwatch run holds %s", lock.Path())
	}
	defer lock.Unlock()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(filepath.Join(cfg.App.DataDir, "boardwatch.db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	if err := store.Migrate(db.Pool); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	limiter := fetch.NewLimiter(cfg.HTTP.PerDomainRPS)
	client := fetch.NewClient(limiter, fetch.Options{
		Timeout:       time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
		MaxRedirects:  cfg.HTTP.MaxRedirects,
		RetryAttempts: cfg.HTTP.RetryAttempts,
		UserAgent:     cfg.HTTP.UserAgent,
	})

	if cmd == "discover" || cmd == "run-all" {
		stats, err := discover.NewEngine(cfg, client, db).Run(ctx, limit)
		if err != nil {
			return err
		}
		printStats("discover", stats)
	}

	if cmd == "monitor" || cmd == "run-all" {
		eng, err := buildMonitor(ctx, cfg, client, db)
		if err != nil {
			return err
		}
		stats, err := eng.Run(ctx, maxBoards)
		if err != nil {
			return err
		}
		printStats("monitor", stats)
	}

	return nil
}

func loadConfig(configPath string) (config.Config, error) {
	// The shipped default seeds the data dir once; after that the user's
	// copy wins.
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config %s: %w", configPath, err)
	}
	userPath, err := config.EnsureUserConfig(cfg.App.DataDir, configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("seed user config: %w", err)
	}
	cfg, err = config.Load(userPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config %s: %w", userPath, err)
	}
	return cfg, nil
}

func buildMonitor(ctx context.Context, cfg config.Config, client *fetch.Client, db *store.DB) (*monitor.Engine, error) {
	policy := title.NewPolicy(title.Lists{
		BlocklistExact:    cfg.Titles.BlocklistExact,
		NavLikeShortTerms: cfg.Titles.NavLikeShortTerms,
		NonJobCategories:  cfg.Titles.NonJobCategories,
		RoleWords:         cfg.Titles.RoleWords,
		JobURLHints:       cfg.Titles.JobURLHints,
		NearTitleKeywords: cfg.Titles.NearTitleKeywords,
		SiteNameMarkers:   cfg.Titles.SiteNameMarkers,
	})
	scraper := scrape.New(client, policy, scrape.NewURLFilter(cfg.Titles.BlockedPostingURLs), scrape.Options{
		MaxHTMLBytes: cfg.HTTP.MaxHTMLBytes,
		FetchDetails: cfg.Monitor.FetchDetails,
	})

	provider, err := buildEmailProvider(cfg)
	if err != nil {
		return nil, err
	}
	sheet, err := buildSheetSink(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return monitor.NewEngine(cfg, client, db, scraper, policy, provider, sheet), nil
}

func buildEmailProvider(cfg config.Config) (email.Provider, error) {
	if !cfg.EmailConfigured() {
		return nil, nil
	}
	switch cfg.Email.Provider {
	case "mock":
		return email.NewMockProvider(), nil
	case "brevo":
		key, err := secrets.Lookup(cfg.Email.KeyringAccount, brevoKeyEnv)
		if err != nil {
			return nil, fmt.Errorf("brevo api key: %w", err)
		}
		if key == "" {
			return nil, fmt.Errorf("email enabled with provider brevo but no api key in keyring account %q or $%s",
				cfg.Email.KeyringAccount, brevoKeyEnv)
		}
		return email.NewBrevoProvider(key, cfg.Email.From, cfg.Email.FromName), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
	}
}

func buildSheetSink(ctx context.Context, cfg config.Config) (monitor.SheetSink, error) {
	if !cfg.SheetsConfigured() {
		return nil, nil
	}
	creds, err := secrets.Lookup(cfg.Sheets.KeyringAccount, cfg.Sheets.CredentialsEnv)
	if err != nil {
		return nil, fmt.Errorf("sheets credentials: %w", err)
	}
	if creds == "" {
		return nil, fmt.Errorf("sheets enabled but no service-account json in keyring account %q or $%s",
			cfg.Sheets.KeyringAccount, cfg.Sheets.CredentialsEnv)
	}
	return sheets.New(ctx, []byte(creds), cfg.Sheets.SpreadsheetID, cfg.Sheets.Worksheet)
}

func printStats(label string, stats any) {
	b, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		log.Printf("%s stats unavailable: %v", label, err)
		return
	}
	fmt.Printf("%s stats:\n%s\n", label, b)
}
