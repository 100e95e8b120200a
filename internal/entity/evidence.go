package entity

// EvidenceContext enriches the prompt. It is never used for validation.
type EvidenceContext struct {
	BusinessType     string `json:"business_type,omitempty"`
	County           string `json:"county,omitempty"`
	State            string `json:"state,omitempty"`
	DisasterID       string `json:"disaster_id,omitempty"`
	DeclarationTitle string `json:"declaration_title,omitempty"`
}

// ExpenseItem is a structured expense anchored to one uploaded file.
// Date keeps the vendor's own format.
type ExpenseItem struct {
	Vendor       string     `json:"vendor"`
	Date         string     `json:"date"`
	Amount       float64    `json:"amount"`
	Category     string     `json:"category"`
	Confidence   Confidence `json:"confidence"`
	SourceFile   string     `json:"source_file"`
	SourceText   string     `json:"source_text"`
	DocumentType string     `json:"document_type,omitempty"`
	ReviewReason string     `json:"review_reason,omitempty"`
}

// DamageClaim is visual damage evidence tied to a photo.
type DamageClaim struct {
	Label        string     `json:"label"`
	Detail       string     `json:"detail"`
	Confidence   Confidence `json:"confidence"`
	SourceFile   string     `json:"source_file"`
	SourceText   string     `json:"source_text"`
	ReviewReason string     `json:"review_reason,omitempty"`
}

type MissingEvidence struct {
	Item   string `json:"item"`
	Reason string `json:"reason"`
}

type RenameEntry struct {
	OriginalFilename    string     `json:"original_filename"`
	RecommendedFilename string     `json:"recommended_filename"`
	Confidence          Confidence `json:"confidence"`
}

// ExtractionResult is the combined output of one extraction request.
type ExtractionResult struct {
	ExpenseItems    []ExpenseItem     `json:"expense_items"`
	DamageClaims    []DamageClaim     `json:"damage_claims"`
	RenameMap       []RenameEntry     `json:"rename_map"`
	MissingEvidence []MissingEvidence `json:"missing_evidence"`
}

// NeedsReviewCount counts records a human must verify.
func (r ExtractionResult) NeedsReviewCount() int {
	n := 0
	for _, e := range r.ExpenseItems {
		if e.Confidence.NeedsReview() {
			n++
		}
	}
	for _, d := range r.DamageClaims {
		if d.Confidence.NeedsReview() {
			n++
		}
	}
	return n
}
