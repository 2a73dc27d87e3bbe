package title

import (
	"fmt"
	"net/url"
	"strings"

	"boardwatch/internal/urlutil"
)

// Rejection buckets, reported separately in run stats.
const (
	RejectBlocklist      = "blocklist"
	RejectValidationGate = "validation_gate"
)

// ValidationInput bundles everything known about a candidate posting at
// validation time. Listing and detail text may be empty when details were
// not fetched.
type ValidationInput struct {
	Title       string
	PostingURL  string
	SourceURL   string
	TitleSource string
	ListingText string
	DetailText  string

	HasJSONLDJobPosting bool
	ListingSignal       bool
}

type ValidationResult struct {
	Accepted        bool
	NormalizedTitle string
	Cleaned         bool
	RejectionReason string
	RejectionType   string
	Signals         []string
}

func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Path)
}

// BlocklistReason returns a non-empty reason when the title is navigation
// chrome rather than a role. The blocklist runs before the signal gate so
// a "Services" link never earns acceptance on URL signals alone.
func (p *Policy) BlocklistReason(title, sourceURL, postingURL, pageHintText string) string {
	normalized := urlutil.NormalizeText(title)
	sourcePath := urlPath(sourceURL)
	postingPath := urlPath(postingURL)
	hint := urlutil.NormalizeText(pageHintText)

	if _, blocked := p.blocklistExact[normalized]; blocked {
		return "title blocklist exact: " + normalized
	}

	if strings.Contains(normalized, "notice") &&
		(strings.Contains(postingPath, "/notice/") || strings.Contains(postingPath, "/notices/")) {
		return "title-notice and notice path"
	}

	if len(strings.Fields(normalized)) <= 3 {
		if _, navLike := p.navLikeShortTerms[normalized]; navLike {
			return "short generic nav title"
		}
	}

	combined := strings.ToLower(sourcePath + " " + postingPath + " " + hint)
	for _, term := range p.nonJobCategories {
		if !strings.Contains(combined, term) {
			continue
		}
		jobContext := false
		for _, jobTerm := range []string{"job", "career", "employment", "recruit", "vacan"} {
			if strings.Contains(combined, jobTerm) {
				jobContext = true
				break
			}
		}
		if !jobContext {
			return "non-job category context"
		}
		break
	}

	if p.looksGeneric(normalized) {
		return "generic title pattern"
	}

	return ""
}

func (p *Policy) urlSignal(postingURL string) bool {
	low := strings.ToLower(postingURL)
	for _, token := range p.jobURLHints {
		if strings.Contains(low, token) {
			return true
		}
	}
	return false
}

func (p *Policy) nearTitleSignal(title, listingText, detailText string) bool {
	blob := urlutil.NormalizeText(title + " " + listingText + " " + detailText)
	for _, k := range p.nearTitleKeywords {
		if strings.Contains(blob, k) {
			return true
		}
	}
	return false
}

// Validate normalizes the candidate title, applies the blocklist and then
// requires at least two independent job signals before acceptance. One
// signal is too easy to hit by accident (any link under /services on a
// site with "apply" in the footer).
func (p *Policy) Validate(in ValidationInput) ValidationResult {
	normalized := p.Normalize(in.Title)
	cleaned := urlutil.CleanText(in.Title) != normalized

	if normalized == "" {
		return ValidationResult{
			NormalizedTitle: "",
			Cleaned:         cleaned,
			RejectionReason: "empty normalized title",
			RejectionType:   RejectBlocklist,
		}
	}

	if reason := p.BlocklistReason(normalized, in.SourceURL, in.PostingURL, in.ListingText+" "+in.DetailText); reason != "" {
		return ValidationResult{
			NormalizedTitle: normalized,
			Cleaned:         cleaned,
			RejectionReason: reason,
			RejectionType:   RejectBlocklist,
		}
	}

	var signals []string
	if p.urlSignal(in.PostingURL) {
		signals = append(signals, "url_hint")
	}
	if p.nearTitleSignal(normalized, in.ListingText, in.DetailText) {
		signals = append(signals, "keywords_near_title")
	}
	if in.HasJSONLDJobPosting {
		signals = append(signals, "jsonld_jobposting")
	}
	if in.ListingSignal {
		signals = append(signals, "listing_apply_pattern")
	}
	if in.TitleSource == "ats_native" {
		signals = append(signals, "ats_native_title")
	}
	if p.containsRoleWord(normalized) {
		signals = append(signals, "role_like_title")
	}
	switch in.TitleSource {
	case "jsonld", "h1", "h2", "og_title":
		signals = append(signals, "title_source_"+in.TitleSource)
	}
	if strings.HasSuffix(strings.ToLower(in.PostingURL), ".pdf") &&
		(p.containsRoleWord(normalized) || strings.Contains(urlutil.NormalizeText(normalized), "job")) {
		signals = append(signals, "pdf_role_title")
	}

	if len(signals) < 2 {
		detail := "no signals"
		if len(signals) > 0 {
			detail = strings.Join(signals, ", ")
		}
		return ValidationResult{
			NormalizedTitle: normalized,
			Cleaned:         cleaned,
			RejectionReason: fmt.Sprintf("validation gate failed (%d/2): %s", len(signals), detail),
			RejectionType:   RejectValidationGate,
			Signals:         signals,
		}
	}

	return ValidationResult{
		Accepted:        true,
		NormalizedTitle: normalized,
		Cleaned:         cleaned,
		Signals:         signals,
	}
}
