// Package classify holds the zero-network URL classifier: ordered pattern
// rules that recognize hosted ATS boards (and PDF postings) from the URL
// alone. It is discovery tier 1 and is also consulted when ranking page
// links and redirect chains.
package classify

import (
	"net/url"
	"regexp"
	"strings"

	"boardwatch/internal/urlutil"
)

// Hit is a confident classification of a URL as a job board.
type Hit struct {
	SourceType string
	Adapter    string
	Confidence float64
	Reason     string
}

type rule struct {
	pattern *regexp.Regexp
	hit     Hit
}

// Ordered; first match wins. Confidences are static per rule.
var atsRules = []rule{
	{
		regexp.MustCompile(`(?i)(?:^|\.)myworkdayjobs\.com$|/wday/cxs/`),
		Hit{"ats_workday", "workday", 0.98, "matched workday domain/path"},
	},
	{
		regexp.MustCompile(`(?i)(?:^|\.)taleo\.net$|careersection|candidateexperience`),
		Hit{"ats_taleo", "taleo", 0.98, "matched taleo/oracle careers pattern"},
	},
	{
		regexp.MustCompile(`(?i)(?:^|\.)icims\.com$|jobs\.icims\.com`),
		Hit{"ats_icims", "icims", 0.98, "matched icims domain"},
	},
	{
		regexp.MustCompile(`(?i)governmentjobs\.com|(?:^|\.)neogov\.com$`),
		Hit{"ats_neogov", "neogov", 0.98, "matched neogov/governmentjobs"},
	},
	{
		regexp.MustCompile(`(?i)recruiting\.ultipro\.(?:ca|com)|ukg|ultipro`),
		Hit{"ats_ultipro", "ultipro", 0.98, "matched ultipro/ukg recruiting"},
	},
	{
		regexp.MustCompile(`(?i)workforcenow\.adp\.com|adp\.com/.*/recruit`),
		Hit{"ats_adp", "adp", 0.98, "matched adp recruitment path"},
	},
}

var jobKeywords = []string{
	"job", "jobs",
	"career", "careers",
	"employment",
	"opportunity", "opportunities",
	"vacancy", "vacancies",
}

// Classify returns a Hit when the URL matches a known board pattern, nil
// otherwise. Pure: no network, no shared state.
func Classify(raw string) *Hit {
	norm := urlutil.NormalizeURL(raw)
	if norm == "" {
		return nil
	}

	u, err := url.Parse(norm)
	if err != nil {
		return nil
	}
	host := u.Hostname()
	full := host + u.Path

	for _, r := range atsRules {
		if r.pattern.MatchString(host) || r.pattern.MatchString(full) {
			hit := r.hit
			return &hit
		}
	}

	if strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
		return &Hit{SourceType: "pdf", Adapter: "pdf", Confidence: 0.75, Reason: "pdf path detected"}
	}

	return nil
}

// ClassifyChain applies Classify along a redirect chain. A hit past the
// first element is discounted slightly since we only saw the board via a
// redirect, not as the requested URL.
func ClassifyChain(chain []string) *Hit {
	for idx, raw := range chain {
		hit := Classify(raw)
		if hit == nil {
			continue
		}
		if idx == 0 {
			return hit
		}
		conf := hit.Confidence - 0.05
		if conf < 0.85 {
			conf = 0.85
		}
		return &Hit{
			SourceType: hit.SourceType,
			Adapter:    hit.Adapter,
			Confidence: conf,
			Reason:     "redirect chain: " + hit.Reason,
		}
	}
	return nil
}

// LooksLikeJobLink reports whether a URL or its anchor text mentions any
// job/career keyword.
func LooksLikeJobLink(rawURL, anchorText string) bool {
	target := strings.ToLower(rawURL + " " + anchorText)
	for _, word := range jobKeywords {
		if strings.Contains(target, word) {
			return true
		}
	}
	return false
}
