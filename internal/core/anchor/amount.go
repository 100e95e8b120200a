package anchor

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reThousands = regexp.MustCompile(`(\d),(\d{3})`)

	// date and time tokens whose numbers must not count as amounts
	reDateTokens = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{4}[-/.]\d{1,2}[-/.]\d{1,2}(?:T|\b)`),
		regexp.MustCompile(`\b\d{1,2}[-/]\d{1,2}[-/]\d{2,4}\b`),
		regexp.MustCompile(`\b\d{1,2}\.\d{1,2}\.\d{4}\b`),
		regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?[\s-]+\d{1,2}(?:st|nd|rd|th)?,?[\s-]+\d{2,4}\b`),
		regexp.MustCompile(`(?i)\b\d{1,2}(?:st|nd|rd|th)?[\s-]+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?,?[\s-]+\d{2,4}\b`),
		regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?\b`),
	}
)

// maskDates blanks date and clock tokens so their digits cannot anchor an
// amount: "paid 2024-09-30" does not contain 30 or 2024.
func maskDates(s string) string {
	for _, re := range reDateTokens {
		s = re.ReplaceAllStringFunc(s, func(m string) string { return strings.Repeat(" ", len(m)) })
	}
	return s
}

// amountText prepares OCR text for amount lookup: date tokens, currency
// symbols and thousands separators go away, everything else stays put.
func amountText(ocr string) string {
	s := strings.ReplaceAll(maskDates(ocr), "$", "")
	for {
		next := reThousands.ReplaceAllString(s, "$1$2")
		if next == s {
			return s
		}
		s = next
	}
}

// amountForms lists the ways a value is printed: 150.00 and 150 for whole
// amounts, 12.50 and 12.5 otherwise.
func amountForms(a float64) []string {
	fixed := strconv.FormatFloat(a, 'f', 2, 64)
	forms := []string{fixed}
	trimmed := strings.TrimRight(strings.TrimRight(fixed, "0"), ".")
	if trimmed != fixed && trimmed != "" {
		forms = append(forms, trimmed)
	}
	return forms
}

// amountFound reports whether any form of a appears in text as a whole
// number: "150.00" matches "150.00" and "150" but not "1150.00" or "150.25".
func amountFound(text string, a float64) bool {
	if a < 0 {
		return false
	}
	clean := amountText(text)
	for _, f := range amountForms(a) {
		if containsAmount(clean, f) {
			return true
		}
	}
	return false
}

func containsAmount(text, form string) bool {
	for from := 0; from <= len(text)-len(form); {
		i := strings.Index(text[from:], form)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(form)
		if amountBoundaryBefore(text, start) && amountBoundaryAfter(text, end, form) {
			return true
		}
		from = start + 1
	}
	return false
}

func amountBoundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	c := text[i-1]
	if isDigit(c) {
		return false
	}
	// "0.150" is not 150
	return !(c == '.' && i >= 2 && isDigit(text[i-2]))
}

// amountBoundaryAfter accepts a trailing run of zero decimals, so 150 and
// 12.5 match 150.00 and 12.50.
func amountBoundaryAfter(text string, j int, form string) bool {
	k := j
	if strings.Contains(form, ".") {
		for k < len(text) && text[k] == '0' {
			k++
		}
	} else if k+1 < len(text) && text[k] == '.' && isDigit(text[k+1]) {
		k++
		for k < len(text) && text[k] == '0' {
			k++
		}
	}
	return k >= len(text) || !isDigit(text[k])
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
