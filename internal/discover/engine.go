package discover

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"boardwatch/internal/classify"
	"boardwatch/internal/config"
	"boardwatch/internal/domain"
	"boardwatch/internal/fetch"
	"boardwatch/internal/orgs"
	"boardwatch/internal/store"
	"boardwatch/internal/urlutil"
)

// Resolutions at or above this confidence are trusted for monitoring;
// anything below is flagged for manual review regardless of which tier
// produced it.
const ConfidenceThreshold = 0.60

// Stats summarizes one discovery run for logs and run history.
type Stats struct {
	InputRows   int            `json:"input_rows"`
	UniqueSeeds int            `json:"unique_seeds"`
	OutputRows  int            `json:"output_rows"`
	StageCounts map[string]int `json:"stage_counts"`
}

// Engine runs the URL canonicalization pipeline over the org roster.
type Engine struct {
	cfg    config.Config
	client *fetch.Client
	db     *store.DB
}

func NewEngine(cfg config.Config, client *fetch.Client, db *store.DB) *Engine {
	return &Engine{cfg: cfg, client: client, db: db}
}

// Run resolves every seed in the roster CSV and writes the enriched CSV.
// limit > 0 caps the number of input rows (useful for smoke runs). Seed
// failures never abort the run; they come back flagged for review.
func (e *Engine) Run(ctx context.Context, limit int) (Stats, error) {
	rows, err := orgs.Load(e.cfg.App.OrgsCSV)
	if err != nil {
		return Stats{}, fmt.Errorf("load roster: %w", err)
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}

	runID, err := e.db.StartRun("discover")
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		InputRows: len(rows),
		StageCounts: map[string]int{
			"cache": 0, "pattern": 0, "redirect": 0, "html": 0,
			"sitemap": 0, "html_list": 0, "pdf": 0, "manual_review": 0,
		},
	}

	// Shared boards appear under many orgs; resolve each unique seed once.
	seeds := map[string]string{}
	for _, row := range rows {
		if norm := urlutil.NormalizeURL(row.JobsURL); norm != "" {
			if _, ok := seeds[norm]; !ok {
				seeds[norm] = row.JobsURL
			}
		}
	}
	stats.UniqueSeeds = len(seeds)

	var mu sync.Mutex
	results := map[string]domain.Resolution{}
	bump := func(stage string) {
		mu.Lock()
		stats.StageCounts[stage]++
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Discovery.GlobalConcurrency)

	for norm, original := range seeds {
		g.Go(func() error {
			cached, err := e.db.CachedResolution(original)
			if err != nil {
				log.Printf("[discover] cache read %s: %v", original, err)
			}
			if cached != nil {
				bump("cache")
				mu.Lock()
				results[norm] = *cached
				mu.Unlock()
				return nil
			}

			res := e.resolveSeed(gctx, original, bump)
			if err := e.db.CacheResolution(res, e.cfg.Discovery.CacheTTLDays); err != nil {
				log.Printf("[discover] cache write %s: %v", original, err)
			}
			mu.Lock()
			results[norm] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		_ = e.db.FinishRun(runID, false, map[string]any{"error": err.Error(), "stage_counts": stats.StageCounts})
		return stats, err
	}

	today := time.Now().UTC().Format("2006-01-02")
	for i := range rows {
		res, ok := results[urlutil.NormalizeURL(rows[i].JobsURL)]
		if !ok {
			if rows[i].ManualReview == "" {
				rows[i].ManualReview = "1"
			}
			continue
		}

		rows[i].CanonicalJobsURL = res.CanonicalJobsURL
		rows[i].JobsSourceType = res.JobsSourceType
		rows[i].Adapter = res.Adapter
		rows[i].Confidence = fmt.Sprintf("%.2f", res.Confidence)
		rows[i].DiscoveredVia = res.DiscoveredVia
		rows[i].LastVerified = today
		rows[i].Notes = res.Notes
		rows[i].ManualReview = "0"
		if res.ManualReview {
			rows[i].ManualReview = "1"
		}

		if err := e.db.UpsertBoard(res.CanonicalJobsURL, res.JobsSourceType, res.Adapter); err != nil {
			log.Printf("[discover] upsert board %s: %v", res.CanonicalJobsURL, err)
		}
		if err := e.db.MapOrgBoard(rows[i].OrgID, res.CanonicalJobsURL); err != nil {
			log.Printf("[discover] map org %s: %v", rows[i].OrgID, err)
		}
	}
	stats.OutputRows = len(rows)

	if err := orgs.Save(e.cfg.App.OrgsEnrichedCSV, rows); err != nil {
		_ = e.db.FinishRun(runID, false, map[string]any{"error": err.Error(), "stage_counts": stats.StageCounts})
		return stats, fmt.Errorf("write enriched roster: %w", err)
	}

	if err := e.db.FinishRun(runID, true, stats); err != nil {
		log.Printf("[discover] finish run: %v", err)
	}
	log.Printf("[discover] %d rows, %d unique seeds, stages %v", stats.InputRows, stats.UniqueSeeds, stats.StageCounts)
	return stats, nil
}

func manualReview(res domain.Resolution) domain.Resolution {
	if res.Confidence < ConfidenceThreshold {
		res.ManualReview = true
	}
	return res
}

// resolveSeed walks the discovery tiers for one seed. Every return path
// yields a usable Resolution; low-confidence outcomes are flagged rather
// than dropped.
func (e *Engine) resolveSeed(ctx context.Context, seedURL string, bump func(string)) domain.Resolution {
	normalized := urlutil.NormalizeURL(seedURL)
	if normalized == "" || !urlutil.IsSupportedHTTPURL(normalized) {
		bump("manual_review")
		return domain.Resolution{
			SeedURL:          seedURL,
			CanonicalJobsURL: seedURL,
			JobsSourceType:   "unknown",
			Adapter:          "generic",
			Confidence:       0.0,
			DiscoveredVia:    "invalid_input",
			Notes:            "jobs_url missing or invalid",
			ManualReview:     true,
		}
	}

	// Tier 1: pure URL pattern, zero network.
	if hit := classify.Classify(normalized); hit != nil {
		bump("pattern")
		return manualReview(domain.Resolution{
			SeedURL:          seedURL,
			CanonicalJobsURL: normalized,
			JobsSourceType:   hit.SourceType,
			Adapter:          hit.Adapter,
			Confidence:       hit.Confidence,
			DiscoveredVia:    "url_pattern",
			Notes:            hit.Reason,
		})
	}

	// Tier 2: follow redirects; broken seeds get scheme/www repairs.
	var best *fetch.RedirectResult
	for _, variant := range fetch.URLVariants(normalized) {
		rr := e.client.ResolveRedirects(ctx, variant)
		if !rr.OK() {
			continue
		}
		best = &rr
		if hit := classify.ClassifyChain(rr.Chain); hit != nil {
			bump("redirect")
			return manualReview(domain.Resolution{
				SeedURL:          seedURL,
				CanonicalJobsURL: urlutil.NormalizeURL(rr.FinalURL),
				JobsSourceType:   hit.SourceType,
				Adapter:          hit.Adapter,
				Confidence:       hit.Confidence,
				DiscoveredVia:    "redirect_chain",
				Notes:            hit.Reason,
			})
		}
		break
	}

	if best == nil {
		bump("manual_review")
		return domain.Resolution{
			SeedURL:          seedURL,
			CanonicalJobsURL: normalized,
			JobsSourceType:   "unknown",
			Adapter:          "generic",
			Confidence:       0.2,
			DiscoveredVia:    "failed_request",
			Notes:            "all URL variants failed",
			ManualReview:     true,
		}
	}

	finalURL := urlutil.NormalizeURL(best.FinalURL)
	if hit := classify.Classify(finalURL); hit != nil && hit.SourceType == "pdf" {
		bump("pdf")
		return manualReview(domain.Resolution{
			SeedURL:          seedURL,
			CanonicalJobsURL: finalURL,
			JobsSourceType:   "pdf",
			Adapter:          "pdf",
			Confidence:       hit.Confidence,
			DiscoveredVia:    "redirect_pdf",
			Notes:            "final URL is PDF",
		})
	}

	// Tier 3: scan the landing page, chase the top-ranked candidates.
	html, htmlURL, err := e.client.FetchHTML(ctx, finalURL, e.cfg.HTTP.MaxHTMLBytes)
	htmlBase := finalURL
	if htmlURL != "" {
		htmlBase = urlutil.NormalizeURL(htmlURL)
	}
	if err != nil {
		log.Printf("[discover] fetch %s: %v", finalURL, err)
	}

	if html != "" {
		candidates := RankCandidates(ExtractCandidates(html, htmlBase), htmlBase)

		top := candidates
		if len(top) > 3 {
			top = top[:3]
		}
		for _, candidate := range top {
			chain := e.client.ResolveRedirects(ctx, candidate.URL)
			if !chain.OK() {
				continue
			}
			if hit := classify.ClassifyChain(chain.Chain); hit != nil {
				bump("html")
				conf := hit.Confidence
				if conf > 0.92 {
					conf = 0.92
				}
				return manualReview(domain.Resolution{
					SeedURL:          seedURL,
					CanonicalJobsURL: urlutil.NormalizeURL(chain.FinalURL),
					JobsSourceType:   hit.SourceType,
					Adapter:          hit.Adapter,
					Confidence:       conf,
					DiscoveredVia:    "html_" + candidate.Source,
					Notes:            hit.Reason + " via " + candidate.Source,
				})
			}

			finalCandidate := urlutil.NormalizeURL(chain.FinalURL)
			if pdfHit := classify.Classify(finalCandidate); pdfHit != nil && pdfHit.SourceType == "pdf" {
				bump("pdf")
				return manualReview(domain.Resolution{
					SeedURL:          seedURL,
					CanonicalJobsURL: finalCandidate,
					JobsSourceType:   "pdf",
					Adapter:          "pdf",
					Confidence:       0.78,
					DiscoveredVia:    "html_" + candidate.Source,
					Notes:            "candidate link resolved to PDF",
				})
			}
		}

		if DetectHTMLList(candidates) {
			bump("html_list")
			return manualReview(domain.Resolution{
				SeedURL:          seedURL,
				CanonicalJobsURL: htmlBase,
				JobsSourceType:   "html_list",
				Adapter:          "html_list",
				Confidence:       0.68,
				DiscoveredVia:    "html_parse",
				Notes:            "job-like links found on landing page",
			})
		}
	}

	// Tier 4: sitemap hints from the site root.
	if res := e.resolveViaSitemap(ctx, seedURL, finalURL); res != nil {
		return manualReview(*res)
	}

	bump("manual_review")
	return domain.Resolution{
		SeedURL:          seedURL,
		CanonicalJobsURL: finalURL,
		JobsSourceType:   "unknown",
		Adapter:          "generic",
		Confidence:       0.3,
		DiscoveredVia:    "fallback_unknown",
		Notes:            "unable to classify; requires manual review",
		ManualReview:     true,
	}
}

func (e *Engine) resolveViaSitemap(ctx context.Context, seedURL, finalURL string) *domain.Resolution {
	u, err := url.Parse(finalURL)
	if err != nil || u.Host == "" {
		return nil
	}
	root := u.Scheme + "://" + u.Host

	for _, sitemapURL := range SitemapURLs(ctx, e.client, root, e.cfg.HTTP.MaxHTMLBytes) {
		body, err := e.client.FetchText(ctx, sitemapURL, e.cfg.HTTP.MaxHTMLBytes)
		if err != nil || strings.TrimSpace(body) == "" {
			continue
		}
		for _, candidate := range SitemapCandidates(body) {
			chain := e.client.ResolveRedirects(ctx, candidate)
			if !chain.OK() {
				continue
			}
			hit := classify.ClassifyChain(chain.Chain)
			if hit == nil {
				continue
			}
			conf := hit.Confidence
			if conf > 0.88 {
				conf = 0.88
			}
			return &domain.Resolution{
				SeedURL:          seedURL,
				CanonicalJobsURL: urlutil.NormalizeURL(chain.FinalURL),
				JobsSourceType:   hit.SourceType,
				Adapter:          hit.Adapter,
				Confidence:       conf,
				DiscoveredVia:    "sitemap_hint",
				Notes:            hit.Reason,
			}
		}
	}
	return nil
}
