package constants

import "strings"

// Supported upload MIME types.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEWEBP = "image/webp"
	MIMEGIF  = "image/gif"
	MIMEPDF  = "application/pdf"
)

// File formats derived from the MIME type.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

// Upload limits for a single extraction request.
const (
	MaxFilesPerRequest = 10
	MaxFileSizeBytes   = 20 << 20
	// MaxVisionBytes gates which images are attached to the structuring call.
	MaxVisionBytes = 8 << 20
)

var allowedMIME = map[string]string{
	MIMEJPEG: IMAGE,
	MIMEPNG:  IMAGE,
	MIMEWEBP: IMAGE,
	MIMEGIF:  IMAGE,
	MIMEPDF:  PDF,
}

var extToMIME = map[string]string{
	"jpg":  MIMEJPEG,
	"jpeg": MIMEJPEG,
	"png":  MIMEPNG,
	"webp": MIMEWEBP,
	"gif":  MIMEGIF,
	"pdf":  MIMEPDF,
}

// AllowedExtensions holds the default extensions picked up by directory ingest.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"webp": {},
	"gif":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// NormalizeMIME drops parameters and lowercases a content type.
func NormalizeMIME(mt string) string {
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	mt = strings.ToLower(strings.TrimSpace(mt))
	if mt == "image/jpg" {
		return MIMEJPEG
	}
	return mt
}

// MapMIMEToFormat returns PDF, IMAGE or "" for unsupported types.
func MapMIMEToFormat(mt string) string {
	return allowedMIME[NormalizeMIME(mt)]
}

// IsSupportedMIME reports whether mt is in the accepted upload set.
func IsSupportedMIME(mt string) bool {
	return MapMIMEToFormat(mt) != ""
}

// MIMEFromExt maps a file extension to its upload MIME type.
func MIMEFromExt(ext string) (string, bool) {
	mt, ok := extToMIME[NormalizeExt(ext)]
	return mt, ok
}
