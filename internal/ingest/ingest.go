package ingest

import (
	"strings"

	"github.com/joseph-ayodele/relief-evidence/constants"
)

// FileResult is the per-file outcome of a directory load.
type FileResult struct {
	Path     string
	Filename string
	MIMEType string
	Size     int
	Err      string
}

// DirStats summarizes a directory load.
type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Skipped   uint32
	Failed    uint32
}

// Options tunes which files a directory load picks up.
type Options struct {
	IncludeExts []string // lowercased, with or without '.'; empty means the upload allow-list
	SkipHidden  bool
	MaxFileSize int // 0 means the per-request upload limit
}

func (o Options) extSet() map[string]struct{} {
	if len(o.IncludeExts) == 0 {
		return constants.AllowedExtensions
	}
	exts := make(map[string]struct{}, len(o.IncludeExts))
	for _, e := range o.IncludeExts {
		if e = constants.NormalizeExt(strings.TrimSpace(e)); e != "" {
			exts[e] = struct{}{}
		}
	}
	return exts
}

func (o Options) maxSize() int {
	if o.MaxFileSize > 0 {
		return o.MaxFileSize
	}
	return constants.MaxFileSizeBytes
}
