package llm

import (
	"context"

	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

// Attachment is an image sent alongside the prompt so the model can inspect
// photos visually. DataURL is a base64 data: URL.
type Attachment struct {
	Filename string
	MIMEType string
	DataURL  string
}

// CompletionRequest is what a Provider sends to the model.
type CompletionRequest struct {
	System      string
	Prompt      string
	SchemaName  string
	Schema      map[string]any
	Attachments []Attachment
}

// Provider performs one schema-constrained completion and returns the raw
// JSON document the model produced.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) ([]byte, error)
}

// StructureRequest is one structuring call for a whole extraction request.
// DocumentTypes is the document_type vocabulary the schema enumerates; the
// sanitizer maps stray values onto it.
type StructureRequest struct {
	Prompt        string
	Schema        map[string]any
	DocumentTypes []string
	Attachments   []Attachment
}

// RawExtraction is the validated model output before OCR anchoring.
type RawExtraction struct {
	ExpenseItems []entity.ExpenseItem `json:"expense_items"`
	DamageClaims []entity.DamageClaim `json:"damage_claims"`
}
