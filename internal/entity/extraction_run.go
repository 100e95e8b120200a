package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExtractionRun represents one logged extraction request for data transfer between layers.
type ExtractionRun struct {
	ID           uuid.UUID       `json:"id"`
	RequestID    string          `json:"request_id,omitempty"`
	Status       string          `json:"status"`
	FileCount    int             `json:"file_count"`
	Context      EvidenceContext `json:"context"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	NeedsReview  int             `json:"needs_review"`
	ResultJSON   json.RawMessage `json:"result_json,omitempty"`
	ModelName    *string         `json:"model_name,omitempty"`
}

// EvidenceFile is the per-file row of a run: what came in and what OCR saw.
type EvidenceFile struct {
	RunID       uuid.UUID `json:"run_id"`
	Position    int       `json:"position"`
	Filename    string    `json:"filename"`
	MIMEType    string    `json:"mime_type"`
	FileSize    int       `json:"file_size"`
	ContentHash []byte    `json:"content_hash"`
	OCRText     string    `json:"ocr_text"`
	Recommended string    `json:"recommended_filename,omitempty"`
}
