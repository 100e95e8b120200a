package ocr

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/gen2brain/go-fitz"
)

// PageFunc receives one rendered page. page is 1-based.
type PageFunc func(page int, png []byte) error

// Rasterizer renders PDF pages to PNG at a fixed DPI.
type Rasterizer interface {
	Name() string
	Render(ctx context.Context, pdf []byte, dpi, maxPages int, fn PageFunc) (pages int, err error)
}

// FitzRasterizer renders with MuPDF in-process.
type FitzRasterizer struct{}

func NewFitzRasterizer() *FitzRasterizer { return &FitzRasterizer{} }

func (FitzRasterizer) Name() string { return "fitz" }

func (FitzRasterizer) Render(ctx context.Context, pdf []byte, dpi, maxPages int, fn PageFunc) (int, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = doc.Close() }()

	n := doc.NumPage()
	if maxPages > 0 && n > maxPages {
		n = maxPages
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		bound, err := doc.Bound(i)
		if err != nil {
			return i, fmt.Errorf("page %d bounds: %w", i+1, err)
		}
		if err := checkPageRaster(bound, dpi); err != nil {
			return i, fmt.Errorf("render page %d: %w", i+1, err)
		}
		img, err := doc.ImagePNG(i, float64(dpi))
		if err != nil {
			return i, fmt.Errorf("render page %d: %w", i+1, err)
		}
		if err := fn(i+1, img); err != nil {
			return i + 1, err
		}
	}
	return n, nil
}

// checkPageRaster applies MaxPixels to a page whose bounds are in points (1/72 in).
func checkPageRaster(bound image.Rectangle, dpi int) error {
	scale := float64(dpi) / 72
	w := float64(bound.Dx()) * scale
	h := float64(bound.Dy()) * scale
	if w*h > MaxPixels {
		return fmt.Errorf("raster %.0fx%.0f at %d dpi exceeds %d pixels", w, h, dpi, MaxPixels)
	}
	return checkPixels(int(w+0.5), int(h+0.5))
}

// PdftoppmRasterizer shells out to poppler's pdftoppm.
type PdftoppmRasterizer struct {
	runner Runner
	bin    string
	logger *slog.Logger
}

func NewPdftoppmRasterizer(r Runner, bin string, logger *slog.Logger) *PdftoppmRasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &PdftoppmRasterizer{runner: r, bin: bin, logger: logger}
}

func (p *PdftoppmRasterizer) Name() string { return "pdftoppm" }

func (p *PdftoppmRasterizer) Render(ctx context.Context, pdf []byte, dpi, maxPages int, fn PageFunc) (int, error) {
	tmpDir, err := os.MkdirTemp("", "evidence-pp-*")
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			p.logger.Warn("ocr.pdftoppm.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}()

	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return 0, err
	}
	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png [-l N] <in.pdf> <tmp/page>
	args := []string{"-r", strconv.Itoa(dpi), "-png"}
	if maxPages > 0 {
		args = append(args, "-l", strconv.Itoa(maxPages))
	}
	args = append(args, in, prefix)
	if _, errb, err := p.runner.Run(ctx, p.bin, nil, args...); err != nil {
		return 0, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}

	// pdftoppm zero-pads page numbers to the page count width, so a plain sort is page order.
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return 0, fmt.Errorf("pdftoppm produced no images")
	}
	for i, path := range matches {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		img, err := os.ReadFile(path)
		if err != nil {
			return i, err
		}
		if err := fn(i+1, img); err != nil {
			return i + 1, err
		}
	}
	return len(matches), nil
}
