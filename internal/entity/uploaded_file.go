package entity

import (
	"path/filepath"
	"strings"
)

// UploadedFile is one file of an extraction request. It lives only for the
// duration of that request.
type UploadedFile struct {
	Filename string `json:"filename"`
	Data     []byte `json:"-"`
	MIMEType string `json:"mime_type"`
}

// Ext returns the lowercased extension including the dot.
func (f UploadedFile) Ext() string {
	return strings.ToLower(filepath.Ext(f.Filename))
}

// Filenames returns the upload names in request order.
func Filenames(files []UploadedFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Filename
	}
	return out
}

// OCRResult maps each uploaded filename to its extracted text. It is built
// once per request and only read afterwards.
type OCRResult struct {
	order []string
	texts map[string]string
}

// NewOCRResult freezes texts in the given filename order. Names missing from
// texts map to "".
func NewOCRResult(filenames []string, texts map[string]string) OCRResult {
	r := OCRResult{
		order: make([]string, len(filenames)),
		texts: make(map[string]string, len(filenames)),
	}
	copy(r.order, filenames)
	for _, fn := range filenames {
		r.texts[fn] = texts[fn]
	}
	return r
}

// Text returns the OCR text for filename, "" when absent.
func (r OCRResult) Text(filename string) string {
	return r.texts[filename]
}

// Has reports whether filename was part of the request.
func (r OCRResult) Has(filename string) bool {
	_, ok := r.texts[filename]
	return ok
}

// Filenames returns a copy of the upload order.
func (r OCRResult) Filenames() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r OCRResult) Len() int { return len(r.order) }
