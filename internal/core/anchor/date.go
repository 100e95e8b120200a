package anchor

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

// dateLayouts are the printed forms ParseDate understands. Numeric forms are
// read month-first; day-first numeric dates are not guessed.
var dateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"1/2/2006",
	"1-2-2006",
	"1/2/06",
	"1-2-06",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"2-Jan-2006",
	"2-Jan-06",
	"Jan-2-2006",
	"20060102",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

var (
	reLetterDot   = regexp.MustCompile(`([A-Za-z])\.`)
	reSpaces      = regexp.MustCompile(`\s+`)
	reDigitSep    = regexp.MustCompile(`(\d)[/.](\d)`)
	reSeptember   = regexp.MustCompile(`(?i)\bsept\b`)
	reOrdinalDays = regexp.MustCompile(`(?i)(\d)(st|nd|rd|th)\b`)
)

// ParseDate reads a printed date such as "2024-09-30", "09/30/2024" or
// "Sep 30, 2024". The second result is false when no layout fits.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	s = reLetterDot.ReplaceAllString(s, "$1")
	s = reSeptember.ReplaceAllString(s, "Sep")
	s = reOrdinalDays.ReplaceAllString(s, "$1")
	s = reSpaces.ReplaceAllString(s, " ")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// dateForms lists how t may appear on a document, already canonical.
func dateForms(t time.Time) []string {
	layouts := []string{
		"2006-01-02",
		"01/02/2006",
		"1/2/2006",
		"01/02/06",
		"1/2/06",
		"20060102",
		"Jan 2, 2006",
		"Jan 02, 2006",
		"January 2, 2006",
		"January 02, 2006",
		"2 Jan 2006",
		"02 Jan 2006",
		"2 January 2006",
		"2-Jan-2006",
		"02-Jan-2006",
		"2-Jan-06",
		"02-Jan-06",
	}
	seen := make(map[string]struct{}, len(layouts)+1)
	var out []string
	add := func(s string) {
		c := canonicalDate(s)
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	for _, l := range layouts {
		add(t.Format(l))
	}
	if t.Month() == time.September {
		add(t.Format("Sept 2, 2006"))
	}
	return out
}

// canonicalDate folds the separators documents disagree on: case, commas,
// abbreviation dots, and / or . between digits all collapse.
func canonicalDate(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, ",", " ")
	s = reLetterDot.ReplaceAllString(s, "$1")
	// twice so overlapping separators like 1/2/2006 are all rewritten
	s = reDigitSep.ReplaceAllString(s, "$1-$2")
	s = reDigitSep.ReplaceAllString(s, "$1-$2")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// dateFound reports whether date appears in text in any of its common printed
// forms. Dates that do not parse are matched on their canonical text.
func dateFound(text, date string) bool {
	if strings.TrimSpace(date) == "" {
		return false
	}
	canon := canonicalDate(text)
	var forms []string
	if t, ok := ParseDate(date); ok {
		forms = dateForms(t)
	}
	forms = append(forms, canonicalDate(date))
	for _, f := range forms {
		if containsToken(canon, f) {
			return true
		}
	}
	return false
}

// containsToken finds form in text without splitting a number or a word.
func containsToken(text, form string) bool {
	if form == "" {
		return false
	}
	for from := 0; from <= len(text)-len(form); {
		i := strings.Index(text[from:], form)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(form)
		if edgeOK(text, start-1, rune(form[0])) && edgeOK(text, end, rune(form[len(form)-1])) {
			return true
		}
		from = start + 1
	}
	return false
}

// edgeOK reports whether the byte at i does not continue a run of the same
// class (digit or letter) as edge.
func edgeOK(text string, i int, edge rune) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := rune(text[i])
	switch {
	case unicode.IsDigit(edge):
		return !unicode.IsDigit(c)
	case unicode.IsLetter(edge):
		return !unicode.IsLetter(c)
	}
	return true
}
