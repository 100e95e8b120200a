package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/relief-evidence/constants"
	"github.com/joseph-ayodele/relief-evidence/internal/common"
	"github.com/joseph-ayodele/relief-evidence/internal/core/ocr"
	"github.com/joseph-ayodele/relief-evidence/internal/ingest"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stderr, cfg.Log)
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <file>")
		os.Exit(2)
	}
	path := os.Args[1]

	f, err := ingest.LoadFile(path, constants.MaxFileSizeBytes)
	if err != nil {
		logger.Error("cannot load file", "path", path, "error", err)
		os.Exit(1)
	}

	extractor, err := ocr.NewFromConfig(cfg.OCR, logger)
	if err != nil {
		logger.Error("invalid OCR configuration", "error", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	text, err := extractor.Extract(ctx, f.Filename, f.Data, f.MIMEType)
	dur := time.Since(start)
	if err != nil {
		logger.Error("text extraction failed", "file", f.Filename, "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}

	logger.Info("text extraction OK",
		"file", f.Filename,
		"mime_type", f.MIMEType,
		"bytes", len(text),
		"duration_ms", dur.Milliseconds(),
	)
	fmt.Println(text)
}
