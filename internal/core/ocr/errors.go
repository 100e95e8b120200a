package ocr

import "fmt"

// ExtractionIOError means one file could not be decoded or OCR'd.
// It is logged and absorbed: the file's text becomes "".
type ExtractionIOError struct {
	Filename string
	Op       string // empty | decode | rasterize | recognize | unsupported | panic
	Err      error
}

func (e *ExtractionIOError) Error() string {
	return fmt.Sprintf("ocr %s %q: %v", e.Op, e.Filename, e.Err)
}

func (e *ExtractionIOError) Unwrap() error { return e.Err }
