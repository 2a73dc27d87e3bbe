// Package title normalizes scraped posting titles and gates them through
// a signal-based validator so navigation chrome ("Services", "Notices")
// never reaches the store or the digest.
package title

import (
	"regexp"

	"boardwatch/internal/urlutil"
)

// Built-in lexicon, tuned for municipal and public-sector sites. Every
// list can be overridden from config without a code change.
var (
	defaultBlocklistExact = []string{
		"submit a service",
		"submit a request",
		"services",
		"service request",
		"notices",
		"notice",
		"news",
		"events",
		"tenders",
		"procurement",
		"rfp",
		"rft",
		"by laws",
		"bylaws",
	}

	defaultNavLikeShortTerms = []string{
		"services",
		"service request",
		"notices",
		"notice",
		"news",
		"events",
		"tenders",
		"procurement",
		"careers",
		"jobs",
		"employment",
		"view postings",
		"view posting",
	}

	defaultNonJobCategories = []string{
		"services",
		"service",
		"notices",
		"notice",
		"news",
		"events",
		"procurement",
		"tender",
		"rfp",
		"rft",
		"bylaw",
		"by law",
	}

	defaultJobURLHints = []string{
		"/careers",
		"/career",
		"/jobs",
		"/job",
		"/employment",
		"/opportunit",
		"/recruit",
		"/posting",
		"/vacan",
		"jobid",
		"job-id",
	}

	defaultNearTitleKeywords = []string{
		"apply",
		"closing date",
		"salary",
		"position",
		"department",
		"job id",
		"requisition",
		"competition",
	}

	defaultSiteNameMarkers = []string{
		"city of",
		"town of",
		"township of",
		"municipality of",
		"county of",
		"regional municipality",
		"first nation",
		"careers",
		"employment",
	}

	defaultRoleWords = []string{
		"officer", "manager", "coordinator", "director", "administrator",
		"supervisor", "clerk", "analyst", "specialist", "worker",
		"technician", "assistant", "engineer", "planner", "facilitator",
		"consultant", "chief", "advisor", "educator", "instructor",
		"operator", "lead", "trustee", "labourer", "lifeguard", "driver",
		"navigator", "teacher", "counsellor", "counselor", "intern",
		"student",
	}
)

var genericTitlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:view|see|browse|learn|open|click)\s+(?:current\s+)?(?:job\s+)?(?:posting|postings|opportunities|opportunity|careers?)\b`),
	regexp.MustCompile(`(?i)\bemployment\s+opportunit(?:y|ies)\b`),
}

// Lists carries optional overrides for the built-in lexicon. An empty
// list keeps the default.
type Lists struct {
	BlocklistExact    []string
	NavLikeShortTerms []string
	NonJobCategories  []string
	RoleWords         []string
	JobURLHints       []string
	NearTitleKeywords []string
	SiteNameMarkers   []string
}

// Policy is the resolved lexicon plus the normalization machinery. Build
// one per process and share it; it is read-only after construction.
type Policy struct {
	blocklistExact    map[string]struct{}
	navLikeShortTerms map[string]struct{}
	nonJobCategories  []string
	roleWords         []string
	jobURLHints       []string
	nearTitleKeywords []string
	siteNameMarkers   []string
}

func NewPolicy(lists Lists) *Policy {
	pick := func(override, fallback []string) []string {
		if len(override) > 0 {
			return override
		}
		return fallback
	}
	toSet := func(values []string) map[string]struct{} {
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			set[urlutil.NormalizeText(v)] = struct{}{}
		}
		return set
	}
	return &Policy{
		blocklistExact:    toSet(pick(lists.BlocklistExact, defaultBlocklistExact)),
		navLikeShortTerms: toSet(pick(lists.NavLikeShortTerms, defaultNavLikeShortTerms)),
		nonJobCategories:  pick(lists.NonJobCategories, defaultNonJobCategories),
		roleWords:         pick(lists.RoleWords, defaultRoleWords),
		jobURLHints:       pick(lists.JobURLHints, defaultJobURLHints),
		nearTitleKeywords: pick(lists.NearTitleKeywords, defaultNearTitleKeywords),
		siteNameMarkers:   pick(lists.SiteNameMarkers, defaultSiteNameMarkers),
	}
}
