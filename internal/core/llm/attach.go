package llm

import (
	"encoding/base64"
	"log/slog"

	"github.com/joseph-ayodele/relief-evidence/constants"
	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

// BuildAttachments selects the uploaded images the model should inspect
// visually. PDFs never attach. Images larger than maxBytes are skipped and
// the model falls back to their OCR text.
func BuildAttachments(files []entity.UploadedFile, maxBytes int, logger *slog.Logger) []Attachment {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = constants.MaxVisionBytes
	}
	var out []Attachment
	for _, f := range files {
		if constants.MapMIMEToFormat(f.MIMEType) != constants.IMAGE || len(f.Data) == 0 {
			continue
		}
		if len(f.Data) > maxBytes {
			logger.Warn("llm.attach.skip_oversize", "file", f.Filename, "bytes", len(f.Data), "max", maxBytes)
			continue
		}
		out = append(out, Attachment{
			Filename: f.Filename,
			MIMEType: constants.NormalizeMIME(f.MIMEType),
			DataURL:  dataURL(constants.NormalizeMIME(f.MIMEType), f.Data),
		})
	}
	return out
}

func dataURL(mt string, b []byte) string {
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(b)
}
