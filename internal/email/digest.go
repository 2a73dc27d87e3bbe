package email

import (
	"fmt"
	"sort"
	"strings"

	"boardwatch/internal/domain"
)

const digestItemCap = 200

// RenderDigest builds the digest subject and both bodies from the run's
// new postings. Items are capped; the subject always carries the true
// count.
func RenderDigest(newPostings []domain.PostingRecord, orgNames map[string]string) (subject, textBody, htmlBody string) {
	count := len(newPostings)
	subject = fmt.Sprintf("BoardWatch Digest: %d new posting(s)", count)

	if count == 0 {
		textBody = "No new postings were found this run."
		return subject, textBody, "<p>" + textBody + "</p>"
	}

	items := newPostings
	if len(items) > digestItemCap {
		items = items[:digestItemCap]
	}

	var text strings.Builder
	var html strings.Builder
	fmt.Fprintf(&text, "Found %d new posting(s):\n\n", count)
	fmt.Fprintf(&html, "<p>Found %d new posting(s):</p><ul>", count)

	for _, rec := range items {
		orgLabel := orgLabel(rec.OrgIDs, orgNames)

		fmt.Fprintf(&text, "- %s\n", rec.Title)
		fmt.Fprintf(&text, "  Org(s): %s\n", orgLabel)
		if rec.PostingDate != "" {
			fmt.Fprintf(&text, "  Posted: %s\n", rec.PostingDate)
		}
		if rec.ClosingDate != "" {
			fmt.Fprintf(&text, "  Closing: %s\n", rec.ClosingDate)
		}
		fmt.Fprintf(&text, "  Posting: %s\n", rec.PostingURL)
		fmt.Fprintf(&text, "  Board: %s\n\n", rec.BoardURL)

		html.WriteString("<li>")
		fmt.Fprintf(&html, "<strong>%s</strong><br>", escapeHTML(rec.Title))
		fmt.Fprintf(&html, "Org(s): %s<br>", escapeHTML(orgLabel))
		if rec.PostingDate != "" {
			fmt.Fprintf(&html, "Posted: %s<br>", escapeHTML(rec.PostingDate))
		}
		if rec.ClosingDate != "" {
			fmt.Fprintf(&html, "Closing: %s<br>", escapeHTML(rec.ClosingDate))
		}
		fmt.Fprintf(&html, "Posting: <a href=%q>%s</a><br>", rec.PostingURL, escapeHTML(rec.PostingURL))
		fmt.Fprintf(&html, "Board: <a href=%q>%s</a>", rec.BoardURL, escapeHTML(rec.BoardURL))
		html.WriteString("</li>")
	}
	html.WriteString("</ul>")

	return subject, text.String(), html.String()
}

func orgLabel(orgIDs []string, orgNames map[string]string) string {
	if len(orgIDs) == 0 {
		return "Unattributed"
	}
	seen := map[string]bool{}
	var names []string
	for _, id := range orgIDs {
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
	return strings.Join(names, ", ")
}

func escapeHTML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
	)
	return r.Replace(s)
}
