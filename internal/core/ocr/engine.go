package ocr

import (
	"context"
	"fmt"
	"strconv"

	"github.com/otiai10/gosseract/v2"
)

// Engine turns one PNG-encoded raster into text.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, png []byte) (string, error)
}

// TesseractCLI pipes the raster into the tesseract binary over stdin.
type TesseractCLI struct {
	runner  Runner
	bin     string
	lang    string
	tessdir string
	psm     int
	oem     int
}

func NewTesseractCLI(r Runner, cfg Config) *TesseractCLI {
	return &TesseractCLI{
		runner:  r,
		bin:     cfg.Tesseract,
		lang:    cfg.TesseractLang,
		tessdir: cfg.TessdataDir,
		psm:     cfg.PSM,
		oem:     cfg.OEM,
	}
}

func (t *TesseractCLI) Name() string { return "tesseract-cli" }

func (t *TesseractCLI) Recognize(ctx context.Context, png []byte) (string, error) {
	// tesseract stdin stdout -l <lang> [--psm N] [--oem N] [--tessdata-dir D]
	args := []string{"stdin", "stdout", "-l", t.lang}
	if t.psm > 0 {
		args = append(args, "--psm", strconv.Itoa(t.psm))
	}
	if t.oem > 0 {
		args = append(args, "--oem", strconv.Itoa(t.oem))
	}
	if t.tessdir != "" {
		args = append(args, "--tessdata-dir", t.tessdir)
	}
	out, errb, err := t.runner.Run(ctx, t.bin, png, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	return string(out), nil
}

// Gosseract runs libtesseract in-process. A client is created per call
// because gosseract clients are not safe for concurrent use.
type Gosseract struct {
	lang    string
	tessdir string
	psm     int
}

func NewGosseract(cfg Config) *Gosseract {
	return &Gosseract{lang: cfg.TesseractLang, tessdir: cfg.TessdataDir, psm: cfg.PSM}
}

func (g *Gosseract) Name() string { return "gosseract" }

func (g *Gosseract) Recognize(ctx context.Context, png []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if g.tessdir != "" {
		if err := client.SetTessdataPrefix(g.tessdir); err != nil {
			return "", fmt.Errorf("gosseract tessdata: %w", err)
		}
	}
	if err := client.SetLanguage(g.lang); err != nil {
		return "", fmt.Errorf("gosseract language: %w", err)
	}
	if g.psm > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(g.psm)); err != nil {
			return "", fmt.Errorf("gosseract psm: %w", err)
		}
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return "", fmt.Errorf("gosseract image: %w", err)
	}
	txt, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("gosseract: %w", err)
	}
	return txt, nil
}
