package scrape

import (
	"regexp"
	"strings"
	"time"

	"boardwatch/internal/urlutil"
)

// Date literals as they appear on municipal boards: ISO, slashed, and
// spelled-out month forms.
const dateLiteral = `(?:\b\d{4}-\d{2}-\d{2}\b` +
	`|\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b` +
	`|\b(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?` +
	`|aug(?:ust)?|sep(?:tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)` +
	`[\s_-]*\d{4}\b` +
	`|\b(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?` +
	`|aug(?:ust)?|sep(?:tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)` +
	`\s+\d{1,2}(?:,\s*\d{4})?\b)`

var (
	reDateLiteral = regexp.MustCompile(`(?i)` + dateLiteral)
	rePostingDate = regexp.MustCompile(`(?i)(?:posted|posting date|date posted|posted on|open date|date opened)[^\n\r]{0,80}?(` + dateLiteral + `)`)
	reClosingDate = regexp.MustCompile(`(?i)(?:closing|close date|applications? close|applications? due|deadline|apply by|closing date)[^\n\r]{0,80}?(` + dateLiteral + `)`)
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"1/2/2006",
	"01/02/2006",
	"1-2-2006",
	"1/2/06",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"January 2006",
	"Jan 2006",
}

// NormalizeDate parses a scraped date string into ISO form, "" when it
// does not parse or the year is implausible.
func NormalizeDate(value string) string {
	text := urlutil.CleanText(value)
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "_", " ")

	// Month names are matched case-insensitively upstream; layouts want
	// them capitalized.
	capitalized := capitalizeWords(text)

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, text)
		if err != nil {
			t, err = time.Parse(layout, capitalized)
		}
		if err != nil {
			continue
		}
		if t.Year() < 1990 || t.Year() > 2100 {
			return ""
		}
		return t.Format("2006-01-02")
	}
	return ""
}

func capitalizeWords(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// ExtractDates pulls posting and closing dates out of free text around a
// posting link. Labeled dates win; an unlabeled first literal is assumed
// to be the posting date.
func ExtractDates(text string) (postingDate, closingDate string) {
	cleaned := urlutil.CleanText(text)
	if cleaned == "" {
		return "", ""
	}

	if m := rePostingDate.FindStringSubmatch(cleaned); m != nil {
		postingDate = NormalizeDate(m[1])
	}
	if m := reClosingDate.FindStringSubmatch(cleaned); m != nil {
		closingDate = NormalizeDate(m[1])
	}
	if postingDate == "" {
		if m := reDateLiteral.FindString(cleaned); m != "" {
			postingDate = NormalizeDate(m)
		}
	}
	return postingDate, closingDate
}
