package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/relief-evidence/constants"
	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // PDF rasterization DPI, default 150
	MaxPages      int    // 0 = no limit

	TessdataDir string

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default
}

const DefaultDPI = 150

type Extractor struct {
	cfg        Config
	runner     Runner
	engine     Engine
	rasterizer Rasterizer
	logger     *slog.Logger
}

type Option func(*Extractor)

// WithRunner replaces the exec runner used by the CLI engine and rasterizer.
// Apply it before WithEngine/WithRasterizer if those are given explicitly.
func WithRunner(r Runner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.runner = r
		}
	}
}

func WithEngine(en Engine) Option {
	return func(e *Extractor) {
		if en != nil {
			e.engine = en
		}
	}
}

func WithRasterizer(r Rasterizer) Option {
	return func(e *Extractor) {
		if r != nil {
			e.rasterizer = r
		}
	}
}

// NewExtractor defaults to the tesseract and pdftoppm binaries.
func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = DefaultDPI
	}
	e := &Extractor{cfg: cfg, runner: NewExecRunner(logger), logger: logger}
	for _, o := range opts {
		o(e)
	}
	if e.engine == nil {
		e.engine = NewTesseractCLI(e.runner, cfg)
	}
	if e.rasterizer == nil {
		e.rasterizer = NewPdftoppmRasterizer(e.runner, cfg.Pdftoppm, logger)
	}
	return e
}

// ExtractText never fails: any decode or OCR problem is logged and yields "".
func (e *Extractor) ExtractText(ctx context.Context, filename string, data []byte, mimeType string) string {
	start := time.Now()
	txt, err := e.safeExtract(ctx, filename, data, mimeType)
	if err != nil {
		var ioErr *ExtractionIOError
		switch {
		case errors.As(err, &ioErr) && ioErr.Op == "unsupported":
			e.logger.Warn("ocr.extract.unsupported", "file", filename, "mime", mimeType)
		case errors.As(err, &ioErr) && ioErr.Op == "empty":
			e.logger.Warn("ocr.extract.empty", "file", filename, "mime", mimeType)
		default:
			e.logger.Error("ocr.extract.failed",
				"file", filename, "mime", mimeType, "error", err,
				"elapsed_ms", time.Since(start).Milliseconds())
		}
		return ""
	}
	e.logger.Info("ocr.extract.ok",
		"file", filename,
		"engine", e.engine.Name(),
		"chars", len(txt),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return txt
}

// safeExtract turns a panic in a decoder or the OCR engine into an error.
func (e *Extractor) safeExtract(ctx context.Context, filename string, data []byte, mimeType string) (txt string, err error) {
	defer func() {
		if r := recover(); r != nil {
			txt, err = "", &ExtractionIOError{Filename: filename, Op: "panic", Err: fmt.Errorf("%v", r)}
		}
	}()
	return e.Extract(ctx, filename, data, mimeType)
}

// Extract picks a strategy based on MIME type and returns a typed
// *ExtractionIOError on failure.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ExtractionIOError{Filename: filename, Op: "recognize", Err: err}
	}
	if len(data) == 0 {
		return "", &ExtractionIOError{Filename: filename, Op: "empty", Err: errors.New("no content")}
	}
	switch constants.MapMIMEToFormat(mimeType) {
	case constants.IMAGE:
		return e.extractImage(ctx, filename, data)
	case constants.PDF:
		return e.extractPDF(ctx, filename, data)
	default:
		return "", &ExtractionIOError{Filename: filename, Op: "unsupported", Err: fmt.Errorf("mime type %q", mimeType)}
	}
}

func (e *Extractor) extractImage(ctx context.Context, filename string, data []byte) (string, error) {
	raster, err := toColorPNG(data)
	if err != nil {
		return "", &ExtractionIOError{Filename: filename, Op: "decode", Err: err}
	}
	txt, err := e.engine.Recognize(ctx, raster)
	if err != nil {
		return "", &ExtractionIOError{Filename: filename, Op: "recognize", Err: err}
	}
	return Normalize(txt), nil
}

// extractPDF OCRs every page and joins non-empty pages as "[Page N]\n<text>".
func (e *Extractor) extractPDF(ctx context.Context, filename string, data []byte) (string, error) {
	var blocks []string
	pages, err := e.rasterizer.Render(ctx, data, e.cfg.DPI, e.cfg.MaxPages, func(page int, png []byte) error {
		txt, err := e.engine.Recognize(ctx, png)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			e.logger.Warn("ocr.pdf.page_failed", "file", filename, "page", page, "error", err)
			return nil
		}
		if txt = Normalize(txt); txt != "" {
			blocks = append(blocks, fmt.Sprintf("[Page %d]\n%s", page, txt))
		}
		return nil
	})
	if err != nil {
		return "", &ExtractionIOError{Filename: filename, Op: "rasterize", Err: err}
	}
	e.logger.Debug("ocr.pdf.rendered", "file", filename, "pages", pages, "pages_with_text", len(blocks), "dpi", e.cfg.DPI)
	return strings.Join(blocks, "\n\n"), nil
}

// ExtractAll OCRs every file with at most workers in flight and freezes the
// results in upload order. Cancelling ctx makes pending files yield "".
func (e *Extractor) ExtractAll(ctx context.Context, files []entity.UploadedFile, workers int) entity.OCRResult {
	if workers <= 0 {
		workers = 1
	}
	texts := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			texts[i] = e.ExtractText(gctx, f.Filename, f.Data, f.MIMEType)
			return nil
		})
	}
	_ = g.Wait()

	byName := make(map[string]string, len(files))
	for i, f := range files {
		byName[f.Filename] = texts[i]
	}
	return entity.NewOCRResult(entity.Filenames(files), byName)
}
