package llm

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/relief-evidence/constants"
	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

// SystemPrompt frames every structuring call.
const SystemPrompt = "You are a disaster-relief document analyst. You turn OCR text and photos " +
	"uploaded by a small business into structured expense and damage evidence. " +
	"Return ONLY JSON that matches the provided JSON Schema. Never invent values."

const noOCRText = "(no OCR text)"

// BuildExtractionPrompt composes the user prompt for one extraction request.
// It is a pure function of its inputs: identical OCR results, catalog and
// context always give an identical prompt.
func BuildExtractionPrompt(ocr entity.OCRResult, reqs []entity.DocumentRequirement, ectx entity.EvidenceContext) string {
	filenames := ocr.Filenames()
	var b strings.Builder

	b.WriteString("Extract structured expense items from text documents AND damage claims from photos.\n")
	b.WriteString("Every attached image must be inspected visually, not only through its OCR text.\n\n")

	b.WriteString("DOCUMENT REQUIREMENTS (use for document_type and categorization):\n")
	b.WriteString(buildRequirementsBlock(reqs))
	b.WriteString("\n\n")

	b.WriteString("RULES - EXPENSES (text documents):\n")
	rules := []string{
		"The OCR text below is the SOURCE OF TRUTH for amounts and dates. Do not invent, estimate or correct values.",
		"source_file MUST be exactly one of the uploaded filenames listed below, character for character.",
		"source_text MUST be an exact substring copied from the OCR text block of that source_file.",
		`If the amount or the date is not present in that file's OCR text, set confidence to "needs_review".`,
		"amount is a plain non-negative number: no currency symbol, no thousands separator.",
		"date is copied as printed on the document; do not reformat it.",
		"document_type is one of: " + strings.Join(constants.DocumentTypes(reqs), ", ") + "; use null when unsure.",
		"category should be one of: " + strings.Join(constants.AsStringSlice(), ", ") + ".",
	}
	n := writeNumbered(&b, 1, rules)

	b.WriteString("\nRULES - DAMAGE CLAIMS (photos):\n")
	writeNumbered(&b, n, []string{
		"If an image shows physical damage (water, fire, wind, structural, flooding, mold, debris, broken equipment or windows), create a damage_claim for it.",
		"source_file MUST be the exact filename of the photo the claim came from.",
		"source_text is a brief description of what is visible; label is a short title; detail is 1-2 sentences.",
		`confidence is "high" when damage is clearly visible and "medium" when it is ambiguous.`,
		"Files marked " + noOCRText + " are usually photographs: analyze them visually.",
	})

	b.WriteString("\nCONTEXT:\n")
	b.WriteString(buildContextBlock(ectx))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "UPLOADED FILES (%d files):\n", len(filenames))
	for _, fn := range filenames {
		b.WriteString("- ")
		b.WriteString(fn)
		b.WriteString("\n")
	}

	b.WriteString("\nOCR TEXT PER FILE:\n")
	for _, fn := range filenames {
		text := ocr.Text(fn)
		if strings.TrimSpace(text) == "" {
			text = noOCRText
		}
		fmt.Fprintf(&b, "--- FILE: %s ---\n%s\n--- END FILE: %s ---\n\n", fn, text, fn)
	}

	b.WriteString("Extract ALL expense items and ALL damage evidence. Return valid JSON matching the schema exactly.")
	return b.String()
}

func buildRequirementsBlock(reqs []entity.DocumentRequirement) string {
	lines := make([]string, 0, len(reqs))
	for _, r := range reqs {
		fields := "(visual only)"
		if len(r.RequiredFields) > 0 {
			fields = strings.Join(r.RequiredFields, ", ")
		}
		lines = append(lines, fmt.Sprintf("- %s [document_type: %s]: required_fields=%s; date_range=%s; forms=%s; outcome=%s",
			r.Name, r.ID, fields, r.DateRange, r.Forms, r.ActionableOutcome))
	}
	return strings.Join(lines, "\n")
}

func buildContextBlock(c entity.EvidenceContext) string {
	var parts []string
	if v := strings.TrimSpace(c.BusinessType); v != "" {
		parts = append(parts, "Business type: "+v)
	}
	county, state := strings.TrimSpace(c.County), strings.TrimSpace(c.State)
	switch {
	case county != "" && state != "":
		parts = append(parts, fmt.Sprintf("Location: %s County, %s", county, state))
	case state != "":
		parts = append(parts, "Location: "+state)
	case county != "":
		parts = append(parts, fmt.Sprintf("Location: %s County", county))
	}
	if v := strings.TrimSpace(c.DisasterID); v != "" {
		parts = append(parts, "FEMA Disaster ID: "+v)
	}
	if v := strings.TrimSpace(c.DeclarationTitle); v != "" {
		parts = append(parts, "Declaration: "+v)
	}
	if len(parts) == 0 {
		return "No additional context provided."
	}
	return strings.Join(parts, "\n")
}

func writeNumbered(b *strings.Builder, start int, lines []string) int {
	for _, l := range lines {
		fmt.Fprintf(b, "%d. %s\n", start, l)
		start++
	}
	return start
}
