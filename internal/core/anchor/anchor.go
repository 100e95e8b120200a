// Package anchor checks structured values against the OCR text they claim to
// come from. A value that cannot be traced back to its source file is kept
// but downgraded to needs_review with a visible note.
package anchor

import (
	"strings"

	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

// Review reasons attached to downgraded records.
const (
	ReasonNoOCRText      = "no OCR text for source file"
	ReasonUnknownSource  = "source file not among uploads"
	ReasonAmountNotFound = "amount not found in OCR"
	ReasonDateNotFound   = "date not found in OCR"
	ReasonBothNotFound   = "amount/date not found in OCR"
)

// Note renders a review reason the way it is appended to source_text.
func Note(reason string) string {
	return "[" + reason + "; needs review]"
}

// ValidateExpenses returns a new slice where every expense whose amount or
// date is missing from the OCR text of its source file is downgraded to
// needs_review. Input items are not modified. Confidence is never raised,
// and running it again on its own output changes nothing.
func ValidateExpenses(items []entity.ExpenseItem, ocr entity.OCRResult) []entity.ExpenseItem {
	out := make([]entity.ExpenseItem, len(items))
	for i, it := range items {
		out[i] = validateExpense(it, ocr)
	}
	return out
}

func validateExpense(it entity.ExpenseItem, ocr entity.OCRResult) entity.ExpenseItem {
	reason := expenseReason(it, ocr)
	if reason == "" {
		return it
	}
	it.Confidence = it.Confidence.Downgrade(entity.ConfidenceNeedsReview)
	it.SourceText = withNote(it.SourceText, Note(reason))
	it.ReviewReason = reason
	return it
}

func expenseReason(it entity.ExpenseItem, ocr entity.OCRResult) string {
	if !ocr.Has(it.SourceFile) {
		return ReasonUnknownSource
	}
	text := ocr.Text(it.SourceFile)
	if strings.TrimSpace(text) == "" {
		return ReasonNoOCRText
	}
	amountOK := amountFound(text, it.Amount)
	dateOK := dateFound(text, it.Date)
	switch {
	case !amountOK && !dateOK:
		return ReasonBothNotFound
	case !amountOK:
		return ReasonAmountNotFound
	case !dateOK:
		return ReasonDateNotFound
	}
	return ""
}

// ValidateClaims downgrades damage claims that point at a file which was not
// uploaded. Photos carry no OCR text, so nothing else is checked.
func ValidateClaims(claims []entity.DamageClaim, ocr entity.OCRResult) []entity.DamageClaim {
	out := make([]entity.DamageClaim, len(claims))
	for i, c := range claims {
		if !ocr.Has(c.SourceFile) {
			c.Confidence = c.Confidence.Downgrade(entity.ConfidenceNeedsReview)
			c.SourceText = withNote(c.SourceText, Note(ReasonUnknownSource))
			c.ReviewReason = ReasonUnknownSource
		}
		out[i] = c
	}
	return out
}

// Downgraded counts records whose confidence dropped between before and after.
func Downgraded(before, after []entity.ExpenseItem) int {
	n := 0
	for i := range before {
		if i < len(after) && after[i].Confidence.Less(before[i].Confidence) {
			n++
		}
	}
	return n
}

func withNote(text, note string) string {
	if strings.Contains(text, note) {
		return text
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return note
	}
	return text + " " + note
}
