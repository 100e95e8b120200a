package constants

// RunStatus is the canonical status for rows in extraction_runs.
type RunStatus string

// Stable values (store these exact strings in DB).
const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusOCROK   RunStatus = "OCR_OK" // per-file text extracted
	RunStatusOK      RunStatus = "OK"
	RunStatusFailed  RunStatus = "FAILED"
)
