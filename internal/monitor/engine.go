// Package monitor runs the recurring scrape over every discovered board,
// reconciles what it sees against posting history, and fans the results
// out to the digest email, the spreadsheet mirror and the rejection
// report.
package monitor

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"boardwatch/internal/classify"
	"boardwatch/internal/config"
	"boardwatch/internal/domain"
	"boardwatch/internal/email"
	"boardwatch/internal/fetch"
	"boardwatch/internal/orgs"
	"boardwatch/internal/scrape"
	"boardwatch/internal/sheets"
	"boardwatch/internal/store"
	"boardwatch/internal/title"
	"boardwatch/internal/urlutil"
)

// Field caps applied before anything reaches the store. Oversized pages
// exist; oversized rows should not.
const (
	maxTitleLen    = 500
	maxLocationLen = 250
	maxDateLen     = 80
	maxSummaryLen  = 3000
	maxRawTextLen  = 9000
)

// SheetSink is what the engine needs from the spreadsheet mirror.
type SheetSink interface {
	UpsertPostings(ctx context.Context, rows []sheets.PostingRow) error
}

// Stats is the run summary persisted with the run record and printed at
// the end of a monitor run.
type Stats struct {
	BoardsTotal             int      `json:"boards_total"`
	BoardsSuccess           int      `json:"boards_success"`
	BoardsFailed            int      `json:"boards_failed"`
	PostingsSeen            int      `json:"postings_seen"`
	NewPostings             int      `json:"new_postings"`
	EmailSent               bool     `json:"email_sent"`
	SheetSynced             bool     `json:"sheet_synced"`
	TitlesRejectedBlocklist int      `json:"titles_rejected_blocklist_count"`
	TitlesRejectedGate      int      `json:"titles_rejected_validation_gate_count"`
	TitlesCleaned           int      `json:"titles_cleaned_count"`
	Failures                []string `json:"failures"`
}

// board is one deduplicated scrape target. Several orgs can share a
// canonical board (county-run boards, shared ATS tenants).
type board struct {
	canonicalURL string
	sourceType   string
	adapter      string
	ownerOrgIDs  []string
}

// orgAlias matches an org by name inside posting text. Built only for
// First Nations, whose postings routinely appear on band council and
// tribal council boards they do not own.
type orgAlias struct {
	orgID    string
	patterns []*regexp.Regexp
}

type Engine struct {
	cfg      config.Config
	client   *fetch.Client
	db       *store.DB
	scraper  *scrape.Scraper
	policy   *title.Policy
	provider email.Provider
	sheet    SheetSink
}

func NewEngine(
	cfg config.Config,
	client *fetch.Client,
	db *store.DB,
	scraper *scrape.Scraper,
	policy *title.Policy,
	provider email.Provider,
	sheet SheetSink,
) *Engine {
	return &Engine{
		cfg:      cfg,
		client:   client,
		db:       db,
		scraper:  scraper,
		policy:   policy,
		provider: provider,
		sheet:    sheet,
	}
}

// adapters implied by a discovered source type when the row does not name
// one explicitly.
var sourceAdapters = map[string]string{
	"ats_workday": "workday",
	"ats_taleo":   "taleo",
	"ats_icims":   "icims",
	"ats_neogov":  "neogov",
	"ats_ultipro": "ultipro",
	"ats_adp":     "adp",
	"pdf":         "pdf",
	"html":        "generic",
	"html_list":   "generic",
}

func adapterForRow(org orgs.Org, canonicalURL string) string {
	if a := strings.ToLower(strings.TrimSpace(org.Adapter)); a != "" {
		return a
	}
	if a, ok := sourceAdapters[strings.ToLower(strings.TrimSpace(org.JobsSourceType))]; ok {
		return a
	}
	if hit := classify.Classify(canonicalURL); hit != nil {
		return hit.Adapter
	}
	return "generic"
}

// buildBoards folds the enriched roster into deduplicated scrape targets
// plus the org-name map and the text-mention aliases.
func buildBoards(rows []orgs.Org) ([]board, map[string]string, []orgAlias) {
	orgNames := map[string]string{}
	var aliases []orgAlias
	byURL := map[string]*board{}
	var order []string

	for _, org := range rows {
		if org.OrgID != "" {
			orgNames[org.OrgID] = org.OrgName
		}
		if strings.EqualFold(strings.TrimSpace(org.OrgType), "first_nation") {
			if alias := buildAlias(org); alias != nil {
				aliases = append(aliases, *alias)
			}
		}

		seed := org.CanonicalJobsURL
		if seed == "" {
			seed = org.JobsURL
		}
		canonical := urlutil.NormalizeURL(seed)
		if canonical == "" || !urlutil.IsSupportedHTTPURL(canonical) {
			continue
		}

		b, ok := byURL[canonical]
		if !ok {
			b = &board{
				canonicalURL: canonical,
				sourceType:   org.JobsSourceType,
				adapter:      adapterForRow(org, canonical),
			}
			byURL[canonical] = b
			order = append(order, canonical)
		}
		if org.OrgID != "" && !contains(b.ownerOrgIDs, org.OrgID) {
			b.ownerOrgIDs = append(b.ownerOrgIDs, org.OrgID)
		}
	}

	out := make([]board, 0, len(order))
	for _, u := range order {
		out = append(out, *byURL[u])
	}
	return out, orgNames, aliases
}

// buildAlias compiles word-bounded patterns for the org name and, when
// long enough to stay unambiguous, the name minus its "First Nation"
// suffix.
func buildAlias(org orgs.Org) *orgAlias {
	full := urlutil.NormalizeText(org.OrgName)
	if len(full) < 5 || org.OrgID == "" {
		return nil
	}
	variants := []string{full}
	short := strings.TrimSpace(strings.ReplaceAll(full, "first nation", ""))
	if short != full && len(short) >= 5 {
		variants = append(variants, short)
	}

	alias := orgAlias{orgID: org.OrgID}
	for _, v := range variants {
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(v) + `\b`)
		if err != nil {
			continue
		}
		alias.patterns = append(alias.patterns, re)
	}
	if len(alias.patterns) == 0 {
		return nil
	}
	return &alias
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

// resolveWorkingURL repairs boards whose canonical URL has rotted since
// discovery: same URL with the scheme flipped or www toggled.
func (e *Engine) resolveWorkingURL(ctx context.Context, canonicalURL string) (string, string) {
	if e.client == nil {
		return canonicalURL, "canonical_ok"
	}
	for i, variant := range fetch.URLVariants(canonicalURL) {
		res := e.client.ResolveRedirects(ctx, variant)
		if !res.OK() || res.StatusCode >= 400 {
			continue
		}
		if i == 0 {
			return canonicalURL, "canonical_ok"
		}
		return variant, "url_repair:" + variant
	}
	return canonicalURL, "url_unresolved"
}

// orgLinksFor attributes one posting: every board owner, plus any aliased
// org the posting text mentions.
func orgLinksFor(owners []string, aliases []orgAlias, obs domain.Observation) []store.OrgLink {
	links := make([]store.OrgLink, 0, len(owners))
	linked := map[string]bool{}
	for _, id := range owners {
		links = append(links, store.OrgLink{OrgID: id, Reason: "owner"})
		linked[id] = true
	}

	text := urlutil.NormalizeText(obs.Title + " " + obs.RawText)
	for _, alias := range aliases {
		if linked[alias.orgID] {
			continue
		}
		for _, re := range alias.patterns {
			if re.MatchString(text) {
				links = append(links, store.OrgLink{OrgID: alias.orgID, Reason: "mentioned_in_text"})
				linked[alias.orgID] = true
				break
			}
		}
	}

	sort.Slice(links, func(i, j int) bool { return links[i].OrgID < links[j].OrgID })
	return links
}

type boardResult struct {
	seen              int
	newUIDs           []string
	cleaned           int
	rejectedBlocklist int
	rejectedGate      int
	rejections        []rejectionRow
	failures          []string
	failed            bool
}

func (e *Engine) processBoard(ctx context.Context, b board, aliases []orgAlias, orgNames map[string]string) boardResult {
	var res boardResult

	if err := e.db.UpsertBoard(b.canonicalURL, b.sourceType, b.adapter); err != nil {
		res.failures = append(res.failures, fmt.Sprintf("%s: upsert board: %v", b.canonicalURL, err))
	}
	for _, orgID := range b.ownerOrgIDs {
		if err := e.db.MapOrgBoard(orgID, b.canonicalURL); err != nil {
			res.failures = append(res.failures, fmt.Sprintf("%s: map org %s: %v", b.canonicalURL, orgID, err))
		}
	}

	workingURL, repairNote := e.resolveWorkingURL(ctx, b.canonicalURL)

	postings, err := e.scraper.Board(ctx, workingURL, b.adapter)
	if err != nil {
		res.failed = true
		res.failures = append(res.failures, fmt.Sprintf("%s: %v", b.canonicalURL, err))
		status := "error:" + truncateRunes(err.Error(), 120)
		if serr := e.db.UpdateBoardScrapeStatus(b.canonicalURL, status); serr != nil {
			log.Printf("[monitor] board status update failed for %s: %v", b.canonicalURL, serr)
		}
		return res
	}
	if len(postings) > e.cfg.Monitor.MaxPostingsPerBoard {
		postings = postings[:e.cfg.Monitor.MaxPostingsPerBoard]
	}

	now := time.Now()
	var seenUIDs []string
	for _, p := range postings {
		if e.scraper.Filter().Blocked(p.PostingURL) {
			continue
		}

		verdict := e.policy.Validate(title.ValidationInput{
			Title:               p.Title,
			PostingURL:          p.PostingURL,
			SourceURL:           p.SourceURL,
			TitleSource:         p.TitleSource,
			ListingText:         p.Summary,
			DetailText:          p.RawText,
			HasJSONLDJobPosting: p.HasJobPostingSchema,
			ListingSignal:       p.ListingSignal,
		})
		if !verdict.Accepted {
			if verdict.RejectionType == title.RejectBlocklist {
				res.rejectedBlocklist++
			} else {
				res.rejectedGate++
			}
			for _, orgID := range b.ownerOrgIDs {
				res.rejections = append(res.rejections, rejectionRow{
					OrgID:           orgID,
					OrgName:         orgNames[orgID],
					SourceURL:       p.SourceURL,
					CandidateTitle:  p.Title,
					RejectionReason: verdict.RejectionReason,
				})
			}
			continue
		}
		if verdict.Cleaned {
			res.cleaned++
		}

		obs := p.Observation
		// Identity stays keyed on the canonical URL even when the board
		// was scraped through a repaired variant.
		obs.BoardURL = b.canonicalURL
		obs.Title = truncateRunes(verdict.NormalizedTitle, maxTitleLen)
		obs.Location = truncateRunes(obs.Location, maxLocationLen)
		obs.PostingDate = truncateRunes(obs.PostingDate, maxDateLen)
		obs.ClosingDate = truncateRunes(obs.ClosingDate, maxDateLen)
		obs.Summary = truncateRunes(obs.Summary, maxSummaryLen)
		obs.RawText = truncateRunes(obs.RawText, maxRawTextLen)

		uid, v, err := e.db.UpsertObservation(ctx, obs, now)
		if err != nil {
			res.failures = append(res.failures, fmt.Sprintf("%s: upsert posting: %v", b.canonicalURL, err))
			continue
		}
		seenUIDs = append(seenUIDs, uid)
		res.seen++
		if v == store.VerdictNew {
			res.newUIDs = append(res.newUIDs, uid)
		}

		if err := e.db.ReplacePostingOrgLinks(ctx, uid, orgLinksFor(b.ownerOrgIDs, aliases, obs)); err != nil {
			res.failures = append(res.failures, fmt.Sprintf("%s: org links: %v", b.canonicalURL, err))
		}
	}

	if err := e.db.MarkUnobserved(ctx, b.canonicalURL, seenUIDs); err != nil {
		res.failures = append(res.failures, fmt.Sprintf("%s: mark unobserved: %v", b.canonicalURL, err))
	}
	status := fmt.Sprintf("ok:%d:%s", res.seen, repairNote)
	if err := e.db.UpdateBoardScrapeStatus(b.canonicalURL, status); err != nil {
		log.Printf("[monitor] board status update failed for %s: %v", b.canonicalURL, err)
	}
	return res
}

// Run executes one monitor pass. maxBoards <= 0 means all boards.
func (e *Engine) Run(ctx context.Context, maxBoards int) (Stats, error) {
	rows, err := orgs.Load(e.cfg.App.OrgsEnrichedCSV)
	if err != nil {
		return Stats{}, fmt.Errorf("load enriched roster: %w", err)
	}

	boards, orgNames, aliases := buildBoards(rows)
	if maxBoards > 0 && len(boards) > maxBoards {
		boards = boards[:maxBoards]
	}

	stats := Stats{BoardsTotal: len(boards)}
	log.Printf("[monitor] starting: %d board(s), concurrency %d", len(boards), e.cfg.Monitor.MaxConcurrency)
	if last, err := e.db.LastMonitorFinishedAt(); err == nil && last != "" {
		log.Printf("[monitor] previous successful run finished %s", last)
	}

	runID, err := e.db.StartRun("monitor")
	if err != nil {
		return stats, fmt.Errorf("start run: %w", err)
	}

	var mu sync.Mutex
	var rejections []rejectionRow
	var newUIDs []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Monitor.MaxConcurrency)
	for _, b := range boards {
		b := b
		g.Go(func() error {
			res := e.processBoard(gctx, b, aliases, orgNames)

			mu.Lock()
			defer mu.Unlock()
			if res.failed {
				stats.BoardsFailed++
			} else {
				stats.BoardsSuccess++
			}
			stats.PostingsSeen += res.seen
			stats.TitlesCleaned += res.cleaned
			stats.TitlesRejectedBlocklist += res.rejectedBlocklist
			stats.TitlesRejectedGate += res.rejectedGate
			stats.Failures = append(stats.Failures, res.failures...)
			rejections = append(rejections, res.rejections...)
			newUIDs = append(newUIDs, res.newUIDs...)
			return nil
		})
	}
	g.Wait()
	stats.NewPostings = len(newUIDs)

	if len(rejections) > 0 {
		path, err := WriteRejectionReport(e.cfg.App.ReportsDir, time.Now(), rejections)
		if err != nil {
			stats.Failures = append(stats.Failures, fmt.Sprintf("rejection report: %v", err))
		} else {
			log.Printf("[monitor] wrote %d rejection(s) to %s", len(rejections), path)
		}
	}

	e.sendDigest(ctx, newUIDs, orgNames, &stats)
	e.syncSheet(ctx, orgNames, &stats)

	if err := e.db.FinishRun(runID, len(stats.Failures) == 0 && stats.BoardsFailed == 0, stats); err != nil {
		log.Printf("[monitor] finish run: %v", err)
	}
	log.Printf("[monitor] done: %d/%d boards ok, %d seen, %d new",
		stats.BoardsSuccess, stats.BoardsTotal, stats.PostingsSeen, stats.NewPostings)
	return stats, nil
}

func (e *Engine) sendDigest(ctx context.Context, newUIDs []string, orgNames map[string]string, stats *Stats) {
	if !e.cfg.EmailConfigured() || e.provider == nil {
		return
	}

	records, err := e.db.PostingsWithOrgs(ctx, newUIDs)
	if err != nil {
		stats.Failures = append(stats.Failures, fmt.Sprintf("digest query: %v", err))
		return
	}
	var items []domain.PostingRecord
	for _, rec := range records {
		if e.scraper.Filter().Blocked(rec.PostingURL) {
			continue
		}
		items = append(items, rec)
	}
	if len(items) == 0 && !e.cfg.Email.SendEmptyDigest {
		return
	}

	subject, textBody, htmlBody := email.RenderDigest(items, orgNames)
	if err := e.provider.Send(ctx, e.cfg.Email.To, subject, textBody, htmlBody); err != nil {
		stats.Failures = append(stats.Failures, fmt.Sprintf("digest send: %v", err))
		return
	}
	stats.EmailSent = true
}

func (e *Engine) syncSheet(ctx context.Context, orgNames map[string]string, stats *Stats) {
	if !e.cfg.SheetsConfigured() || e.sheet == nil {
		return
	}

	records, err := e.db.AllPostingsForSheet(ctx)
	if err != nil {
		stats.Failures = append(stats.Failures, fmt.Sprintf("sheet query: %v", err))
		return
	}
	rows := e.sheetRows(records, orgNames)
	if err := e.sheet.UpsertPostings(ctx, rows); err != nil {
		stats.Failures = append(stats.Failures, fmt.Sprintf("sheet sync: %v", err))
		return
	}
	stats.SheetSynced = true
	log.Printf("[monitor] synced %d row(s) to sheet", len(rows))
}

// sheetRows re-validates stored rows before they reach the spreadsheet.
// History written by older, laxer lexicons gets filtered at export time
// instead of being rewritten in place.
func (e *Engine) sheetRows(records []domain.PostingRecord, orgNames map[string]string) []sheets.PostingRow {
	var out []sheets.PostingRow
	for _, rec := range records {
		if e.scraper.Filter().Blocked(rec.PostingURL) {
			continue
		}
		verdict := e.policy.Validate(title.ValidationInput{
			Title:       rec.Title,
			PostingURL:  rec.PostingURL,
			SourceURL:   rec.BoardURL,
			TitleSource: "sheet_row",
			ListingText: rec.Summary,
			DetailText:  rec.Summary,
		})
		if !verdict.Accepted {
			continue
		}

		seen := map[string]bool{}
		var names []string
		for _, id := range rec.OrgIDs {
			name := orgNames[id]
			if name == "" {
				name = id
			}
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		sort.Strings(names)

		out = append(out, sheets.PostingRow{
			PostingUID:  rec.PostingUID,
			FirstSeenAt: rec.FirstSeenAt,
			LastSeenAt:  rec.LastSeenAt,
			IsActive:    rec.IsActive,
			OrgIDs:      strings.Join(rec.OrgIDs, ","),
			OrgNames:    strings.Join(names, " | "),
			BoardURL:    rec.BoardURL,
			SourceType:  rec.SourceType,
			Adapter:     rec.Adapter,
			Title:       verdict.NormalizedTitle,
			PostingURL:  rec.PostingURL,
			Location:    rec.Location,
			PostingDate: rec.PostingDate,
			ClosingDate: rec.ClosingDate,
		})
	}
	return out
}
