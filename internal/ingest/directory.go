package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/relief-evidence/constants"
	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

// Case is a group of files that belong to one extraction request.
type Case struct {
	Name  string
	Files []entity.UploadedFile
}

// LoadDirectory walks root and reads every matching file into memory.
// Filenames are paths relative to root with forward slashes, so they stay unique.
// Unreadable or oversized files are reported in the results and skipped.
func LoadDirectory(ctx context.Context, root string, opts Options, logger *slog.Logger) ([]entity.UploadedFile, []FileResult, DirStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, nil, DirStats{}, errors.New("root path is required")
	}
	exts := opts.extSet()

	var (
		files   []entity.UploadedFile
		results []FileResult
		stats   DirStats
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if opts.SkipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := exts[constants.NormalizeExt(filepath.Ext(path))]; !ok {
			return nil
		}
		stats.Matched++

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		f, err := LoadFile(path, opts.maxSize())
		if err != nil {
			logger.Warn("ingest.file.skipped", "path", path, "err", err)
			results = append(results, FileResult{Path: path, Err: err.Error()})
			stats.Skipped++
			return nil
		}
		f.Filename = filepath.ToSlash(rel)
		files = append(files, f)
		results = append(results, FileResult{Path: path, Filename: f.Filename, MIMEType: f.MIMEType, Size: len(f.Data)})
		stats.Succeeded++
		return nil
	})
	if err != nil {
		return files, results, stats, fmt.Errorf("walk: %w", err)
	}
	logger.Info("ingest.directory.ok", "root", root,
		"scanned", stats.Scanned, "matched", stats.Matched, "loaded", stats.Succeeded, "skipped", stats.Skipped, "failed", stats.Failed)
	return files, results, stats, nil
}

// LoadFile reads one file and resolves its MIME type from the extension,
// falling back to content sniffing.
func LoadFile(path string, maxSize int) (entity.UploadedFile, error) {
	st, err := os.Stat(path)
	if err != nil {
		return entity.UploadedFile{}, fmt.Errorf("stat: %w", err)
	}
	if maxSize > 0 && st.Size() > int64(maxSize) {
		return entity.UploadedFile{}, fmt.Errorf("file is %d bytes, limit %d", st.Size(), maxSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return entity.UploadedFile{}, fmt.Errorf("read: %w", err)
	}
	mt := DetectMIME(path, data)
	if !constants.IsSupportedMIME(mt) {
		return entity.UploadedFile{}, fmt.Errorf("unsupported content type %q", mt)
	}
	return entity.UploadedFile{Filename: filepath.Base(path), Data: data, MIMEType: mt}, nil
}

// DetectMIME prefers the extension and sniffs the bytes otherwise.
func DetectMIME(path string, data []byte) string {
	if mt, ok := constants.MIMEFromExt(filepath.Ext(path)); ok {
		return mt
	}
	return constants.NormalizeMIME(http.DetectContentType(data))
}

// GroupCases splits files by their parent directory, then into chunks of at
// most perCase files. Cases come out sorted by name.
func GroupCases(files []entity.UploadedFile, perCase int) []Case {
	if perCase <= 0 {
		perCase = constants.MaxFilesPerRequest
	}
	byDir := map[string][]entity.UploadedFile{}
	for _, f := range files {
		dir := filepath.ToSlash(filepath.Dir(f.Filename))
		byDir[dir] = append(byDir[dir], f)
	}
	dirs := make([]string, 0, len(byDir))
	for d := range byDir {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	var out []Case
	for _, d := range dirs {
		group := byDir[d]
		for part, i := 1, 0; i < len(group); part, i = part+1, i+perCase {
			end := min(i+perCase, len(group))
			name := d
			if len(group) > perCase {
				name = fmt.Sprintf("%s#%d", d, part)
			}
			out = append(out, Case{Name: name, Files: group[i:end]})
		}
	}
	return out
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
