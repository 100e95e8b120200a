package ocr

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/relief-evidence/internal/common"
)

// NewFromConfig builds an Extractor with the engine and rasterizer named in cfg.
func NewFromConfig(cfg common.OCRConfig, logger *slog.Logger) (*Extractor, error) {
	c := Config{
		Pdftoppm:      cfg.Pdftoppm,
		Tesseract:     cfg.Tesseract,
		TesseractLang: cfg.Lang,
		DPI:           cfg.DPI,
		MaxPages:      cfg.MaxPages,
		TessdataDir:   cfg.TessdataDir,
	}

	var opts []Option
	switch cfg.Engine {
	case "", "tesseract":
	case "gosseract":
		opts = append(opts, WithEngine(NewGosseract(withDefaults(c))))
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", cfg.Engine)
	}
	switch cfg.Rasterizer {
	case "", "pdftoppm":
	case "fitz":
		opts = append(opts, WithRasterizer(NewFitzRasterizer()))
	default:
		return nil, fmt.Errorf("unknown PDF rasterizer %q", cfg.Rasterizer)
	}
	return NewExtractor(c, logger, opts...), nil
}

func withDefaults(c Config) Config {
	if c.TesseractLang == "" {
		c.TesseractLang = "eng"
	}
	return c
}
