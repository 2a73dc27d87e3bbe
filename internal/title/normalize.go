package title

import (
	"regexp"
	"sort"
	"strings"

	"boardwatch/internal/urlutil"
)

// Decorations sites wrap around the actual role name. Prefixes are peeled
// iteratively because they stack ("Recruitment - 2024 - 1234 - Planner").
var titlePrefixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:closed\s*[-:|]\s*)?recruitment\s*[-:|]\s*\d{4,8}\s*[-:|]\s*`),
	regexp.MustCompile(`(?i)^(?:closed\s*[-:|]\s*)?recruitment\s*[-:|]\s*`),
	regexp.MustCompile(`(?i)^\d{4,8}\s*[-:|]\s*`),
	regexp.MustCompile(`(?i)^(?:job\s*(?:posting|description)\s*[-:|]\s*)+`),
}

var titleSuffixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*[-:|]?\s*job\s*(?:description|posting|advertisement|ad|profile)\b(?:\s+\d{2,4})?\s*$`),
	regexp.MustCompile(`(?i)\s*[-:|]?\s*recruitment\b(?:\s+\d{4,8})?\s*$`),
	regexp.MustCompile(`(?i)\s*[-:|]?\s*(?:posting|req(?:uisition)?|competition)\s*(?:id|#)?\s*[a-z0-9-]+\s*$`),
}

var (
	rePunctSpacing = regexp.MustCompile(`\s*([|:;,-])\s*`)
	reSegmentSplit = regexp.MustCompile(`\s(?:\||-|:)\s`)
	reLongDigits   = regexp.MustCompile(`\d{4,}`)
)

const trimCutset = " -|:;"

func collapsePunctRuns(s string) string {
	for _, ch := range []string{"|", ":", ";", ",", "-"} {
		for strings.Contains(s, ch+ch) {
			s = strings.ReplaceAll(s, ch+ch, ch)
		}
	}
	s = rePunctSpacing.ReplaceAllString(s, " $1 ")
	return strings.Trim(urlutil.CleanText(s), trimCutset)
}

func (p *Policy) containsRoleWord(value string) bool {
	low := urlutil.NormalizeText(value)
	for _, word := range p.roleWords {
		if strings.Contains(low, word) {
			return true
		}
	}
	return false
}

func (p *Policy) looksGeneric(value string) bool {
	low := urlutil.NormalizeText(value)
	if _, blocked := p.blocklistExact[low]; blocked {
		return true
	}
	for _, pattern := range genericTitlePatterns {
		if pattern.MatchString(low) {
			return true
		}
	}
	return false
}

func segments(value string) []string {
	var out []string
	for _, part := range reSegmentSplit.Split(value, -1) {
		part = strings.Trim(part, trimCutset)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// segmentScore ranks pieces of a compound title ("Planner | City of X |
// Careers") so the role name wins over site chrome.
func (p *Policy) segmentScore(segment string) int {
	low := urlutil.NormalizeText(segment)
	score := 0
	if len(strings.Fields(low)) >= 2 {
		score += 2
	}
	if p.containsRoleWord(low) {
		score += 4
	}
	for _, k := range []string{"job", "position", "vacan", "opportun", "recruit"} {
		if strings.Contains(low, k) {
			score += 2
			break
		}
	}
	for _, marker := range p.siteNameMarkers {
		if strings.Contains(low, marker) {
			score -= 2
			break
		}
	}
	if p.looksGeneric(low) {
		score -= 5
	}
	if reLongDigits.MatchString(low) {
		score--
	}
	return score
}

// Normalize strips requisition ids, "Job Posting -" style decoration and
// site chrome segments from a raw title. Returns "" when nothing
// survives.
func (p *Policy) Normalize(rawTitle string) string {
	t := urlutil.CleanText(rawTitle)
	if t == "" {
		return ""
	}

	t = strings.NewReplacer("—", "-", "–", "-").Replace(t)
	t = collapsePunctRuns(t)

	for range 3 {
		prev := t
		for _, pattern := range titlePrefixPatterns {
			t = strings.Trim(pattern.ReplaceAllString(t, ""), trimCutset)
		}
		if t == prev {
			break
		}
	}
	for _, pattern := range titleSuffixPatterns {
		t = strings.Trim(pattern.ReplaceAllString(t, ""), trimCutset)
	}

	if parts := segments(t); len(parts) > 1 {
		sort.SliceStable(parts, func(i, j int) bool {
			si, sj := p.segmentScore(parts[i]), p.segmentScore(parts[j])
			if si != sj {
				return si > sj
			}
			return len(parts[i]) > len(parts[j])
		})
		if p.segmentScore(parts[0]) >= 1 {
			t = parts[0]
		}
	}

	return urlutil.CleanText(strings.Trim(t, trimCutset))
}

// AnchorTitleCandidate reports whether anchor text could plausibly serve
// as a posting title when no better source exists on the detail page.
func (p *Policy) AnchorTitleCandidate(value string) bool {
	t := p.Normalize(value)
	if t == "" || p.looksGeneric(t) {
		return false
	}

	low := urlutil.NormalizeText(t)
	words := strings.Fields(low)
	if len(words) < 2 {
		return false
	}
	switch words[0] {
	case "view", "see", "browse", "learn", "open", "click", "submit":
		return false
	}
	if p.containsRoleWord(low) {
		return true
	}
	for _, k := range []string{"job", "position", "vacan", "recruit", "department"} {
		if strings.Contains(low, k) {
			return true
		}
	}
	return false
}
