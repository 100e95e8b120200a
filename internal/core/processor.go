package core

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/relief-evidence/constants"
	"github.com/joseph-ayodele/relief-evidence/internal/common"
	"github.com/joseph-ayodele/relief-evidence/internal/core/anchor"
	"github.com/joseph-ayodele/relief-evidence/internal/core/evidence"
	"github.com/joseph-ayodele/relief-evidence/internal/core/llm"
	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

// TextExtractor runs OCR over every file of a request.
type TextExtractor interface {
	ExtractAll(ctx context.Context, files []entity.UploadedFile, workers int) entity.OCRResult
}

// Structurer turns the prompt into raw extraction records.
type Structurer interface {
	Structure(ctx context.Context, req llm.StructureRequest) (llm.RawExtraction, error)
}

// RunLog records extraction runs. Failures to record never fail a request.
type RunLog interface {
	Start(ctx context.Context, run entity.ExtractionRun) error
	RecordFiles(ctx context.Context, runID uuid.UUID, files []entity.EvidenceFile) error
	MarkOCR(ctx context.Context, runID uuid.UUID) error
	Finish(ctx context.Context, runID uuid.UUID, result entity.ExtractionResult) error
	Fail(ctx context.Context, runID uuid.UUID, cause error) error
}

// Archiver stores uploaded files under their recommended names.
type Archiver interface {
	Archive(ctx context.Context, runID uuid.UUID, files []entity.UploadedFile, renames []entity.RenameEntry) (int, error)
}

// Processor coordinates OCR, structuring, anchoring and the derived outputs
// for one extraction request.
type Processor struct {
	logger       *slog.Logger
	ocr          TextExtractor
	structurer   Structurer
	requirements []entity.DocumentRequirement
	runs         RunLog
	archive      Archiver
	ocrWorkers   int
	attachImages bool
	maxVision    int
	modelName    string

	// derived from requirements once
	schema   map[string]any
	docTypes []string
}

type Option func(*Processor)

func WithRunLog(r RunLog) Option { return func(p *Processor) { p.runs = r } }

func WithArchive(a Archiver) Option { return func(p *Processor) { p.archive = a } }

// WithOCRWorkers bounds concurrent OCR per request.
func WithOCRWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.ocrWorkers = n
		}
	}
}

// WithImageAttachments toggles sending images to the model for visual review.
func WithImageAttachments(enabled bool, maxBytes int) Option {
	return func(p *Processor) {
		p.attachImages = enabled
		if maxBytes > 0 {
			p.maxVision = maxBytes
		}
	}
}

// WithRequirements replaces the built-in document requirement catalog.
func WithRequirements(reqs []entity.DocumentRequirement) Option {
	return func(p *Processor) {
		if len(reqs) > 0 {
			p.requirements = reqs
		}
	}
}

// WithModelName is recorded on every logged run.
func WithModelName(name string) Option { return func(p *Processor) { p.modelName = name } }

func NewProcessor(logger *slog.Logger, extractor TextExtractor, structurer Structurer, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		logger:       logger,
		ocr:          extractor,
		structurer:   structurer,
		requirements: constants.Requirements(),
		ocrWorkers:   4,
		attachImages: true,
		maxVision:    constants.MaxVisionBytes,
	}
	for _, o := range opts {
		o(p)
	}
	p.schema = llm.BuildExtractionJSONSchema(p.requirements)
	p.docTypes = constants.DocumentTypes(p.requirements)
	return p
}

// Requirements returns the catalog this processor reports against.
func (p *Processor) Requirements() []entity.DocumentRequirement {
	out := make([]entity.DocumentRequirement, len(p.requirements))
	for i, r := range p.requirements {
		out[i] = r.Clone()
	}
	return out
}

// Extract runs the whole pipeline for one request. Per-file OCR problems only
// leave that file without text; a structuring failure fails the request with
// *llm.SchemaValidationError or *llm.ExternalServiceError and no partial result.
// Uploads are checked first (count, size, MIME, unique filenames); an empty
// upload returns every requirement as missing without calling out.
func (p *Processor) Extract(ctx context.Context, files []entity.UploadedFile, ectx entity.EvidenceContext) (entity.ExtractionResult, error) {
	if err := common.ValidateUploads(files); err != nil {
		return entity.ExtractionResult{}, err
	}
	if len(files) == 0 {
		return entity.ExtractionResult{
			ExpenseItems:    []entity.ExpenseItem{},
			DamageClaims:    []entity.DamageClaim{},
			RenameMap:       []entity.RenameEntry{},
			MissingEvidence: evidence.AllMissing(p.requirements),
		}, nil
	}

	runID := uuid.New()
	ctx = common.WithRunID(ctx, runID.String())
	log := common.LoggerFromContext(ctx, p.logger)
	start := time.Now()
	log.Info("processor.extract.start", "files", len(files))
	p.startRun(ctx, log, runID, len(files), ectx)

	// 1) OCR, fully built before anything reads it
	ocrRes := p.ocr.ExtractAll(ctx, files, p.ocrWorkers)
	if err := ctx.Err(); err != nil {
		p.failRun(ctx, log, runID, err)
		return entity.ExtractionResult{}, common.WrapError(err, "extraction cancelled")
	}
	p.recordFiles(ctx, log, runID, files, ocrRes)

	// 2) prompt + structuring
	sreq := llm.StructureRequest{
		Prompt:        llm.BuildExtractionPrompt(ocrRes, p.requirements, ectx),
		Schema:        p.schema,
		DocumentTypes: p.docTypes,
	}
	if p.attachImages {
		sreq.Attachments = llm.BuildAttachments(files, p.maxVision, log)
	}
	raw, err := p.structurer.Structure(ctx, sreq)
	if err != nil {
		log.Error("processor.structure.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		p.failRun(ctx, log, runID, err)
		return entity.ExtractionResult{}, err
	}

	// 3) anchoring, then the derived outputs
	items := anchor.ValidateExpenses(raw.ExpenseItems, ocrRes)
	claims := anchor.ValidateClaims(raw.DamageClaims, ocrRes)
	filenames := ocrRes.Filenames()

	result := entity.ExtractionResult{
		ExpenseItems:    items,
		DamageClaims:    claims,
		RenameMap:       evidence.BuildRenameMap(items, claims, filenames),
		MissingEvidence: evidence.DetectMissing(p.requirements, items, claims, filenames),
	}
	if result.RenameMap == nil {
		result.RenameMap = []entity.RenameEntry{}
	}

	p.finishRun(ctx, log, runID, result)
	p.archiveFiles(ctx, log, runID, files, result.RenameMap)

	log.Info("processor.extract.ok",
		"expense_items", len(items),
		"damage_claims", len(claims),
		"downgraded", anchor.Downgraded(raw.ExpenseItems, items),
		"needs_review", result.NeedsReviewCount(),
		"missing", len(result.MissingEvidence),
		"renamed", len(result.RenameMap),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (p *Processor) startRun(ctx context.Context, log *slog.Logger, runID uuid.UUID, n int, ectx entity.EvidenceContext) {
	if p.runs == nil {
		return
	}
	run := entity.ExtractionRun{
		ID:        runID,
		RequestID: common.RequestIDFromContext(ctx),
		Status:    string(constants.RunStatusRunning),
		FileCount: n,
		Context:   ectx,
		StartedAt: time.Now().UTC(),
	}
	if p.modelName != "" {
		run.ModelName = &p.modelName
	}
	if err := p.runs.Start(ctx, run); err != nil {
		log.Warn("processor.runlog.start_failed", "error", err)
	}
}

func (p *Processor) recordFiles(ctx context.Context, log *slog.Logger, runID uuid.UUID, files []entity.UploadedFile, ocrRes entity.OCRResult) {
	if p.runs == nil {
		return
	}
	rows := make([]entity.EvidenceFile, len(files))
	for i, f := range files {
		sum := sha256.Sum256(f.Data)
		rows[i] = entity.EvidenceFile{
			RunID:       runID,
			Position:    i,
			Filename:    f.Filename,
			MIMEType:    constants.NormalizeMIME(f.MIMEType),
			FileSize:    len(f.Data),
			ContentHash: sum[:],
			OCRText:     ocrRes.Text(f.Filename),
		}
	}
	if err := p.runs.RecordFiles(ctx, runID, rows); err != nil {
		log.Warn("processor.runlog.files_failed", "error", err)
		return
	}
	if err := p.runs.MarkOCR(ctx, runID); err != nil {
		log.Warn("processor.runlog.ocr_failed", "error", err)
	}
}

func (p *Processor) finishRun(ctx context.Context, log *slog.Logger, runID uuid.UUID, result entity.ExtractionResult) {
	if p.runs == nil {
		return
	}
	if err := p.runs.Finish(ctx, runID, result); err != nil {
		log.Warn("processor.runlog.finish_failed", "error", err)
	}
}

func (p *Processor) failRun(ctx context.Context, log *slog.Logger, runID uuid.UUID, cause error) {
	if p.runs == nil {
		return
	}
	// the request context may already be done
	if err := p.runs.Fail(context.WithoutCancel(ctx), runID, cause); err != nil {
		log.Warn("processor.runlog.fail_failed", "error", err)
	}
}

func (p *Processor) archiveFiles(ctx context.Context, log *slog.Logger, runID uuid.UUID, files []entity.UploadedFile, renames []entity.RenameEntry) {
	if p.archive == nil || len(renames) == 0 {
		return
	}
	n, err := p.archive.Archive(ctx, runID, files, renames)
	if err != nil {
		log.Warn("processor.archive.failed", "error", err, "stored", n)
		return
	}
	log.Info("processor.archive.ok", "stored", n)
}
