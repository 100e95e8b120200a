package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/relief-evidence/constants"
	"github.com/joseph-ayodele/relief-evidence/internal/common"
	"github.com/joseph-ayodele/relief-evidence/internal/core/anchor"
	"github.com/joseph-ayodele/relief-evidence/internal/core/llm"
	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeOCR struct {
	texts map[string]string
	calls int
}

func (f *fakeOCR) ExtractAll(_ context.Context, files []entity.UploadedFile, _ int) entity.OCRResult {
	f.calls++
	return entity.NewOCRResult(entity.Filenames(files), f.texts)
}

type fakeStructurer struct {
	out   llm.RawExtraction
	err   error
	calls int
	req   llm.StructureRequest
}

func (f *fakeStructurer) Structure(_ context.Context, req llm.StructureRequest) (llm.RawExtraction, error) {
	f.calls++
	f.req = req
	return f.out, f.err
}

type memRunLog struct {
	mu       sync.Mutex
	started  []entity.ExtractionRun
	files    []entity.EvidenceFile
	ocrOK    int
	finished []entity.ExtractionResult
	failed   []error
}

func (m *memRunLog) Start(_ context.Context, run entity.ExtractionRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, run)
	return nil
}

func (m *memRunLog) RecordFiles(_ context.Context, _ uuid.UUID, files []entity.EvidenceFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = append(m.files, files...)
	return nil
}

func (m *memRunLog) MarkOCR(context.Context, uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ocrOK++
	return nil
}

func (m *memRunLog) Finish(_ context.Context, _ uuid.UUID, r entity.ExtractionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, r)
	return nil
}

func (m *memRunLog) Fail(_ context.Context, _ uuid.UUID, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, cause)
	return nil
}

type fakeArchive struct {
	renames []entity.RenameEntry
}

func (f *fakeArchive) Archive(_ context.Context, _ uuid.UUID, _ []entity.UploadedFile, renames []entity.RenameEntry) (int, error) {
	f.renames = renames
	return len(renames), nil
}

func uploads() []entity.UploadedFile {
	return []entity.UploadedFile{
		{Filename: "r1.jpg", MIMEType: constants.MIMEJPEG, Data: []byte{0xff, 0xd8, 0x01}},
		{Filename: "flood.png", MIMEType: constants.MIMEPNG, Data: []byte{0x89, 'P', 'N', 'G'}},
		{Filename: "notes.pdf", MIMEType: constants.MIMEPDF, Data: []byte("%PDF-1.4")},
	}
}

func TestExtract_FullPipeline(t *testing.T) {
	ocr := &fakeOCR{texts: map[string]string{"r1.jpg": "Total: $150.00 paid 2024-09-30"}}
	st := &fakeStructurer{out: llm.RawExtraction{
		ExpenseItems: []entity.ExpenseItem{
			{Vendor: "Acme", Date: "2024-09-30", Amount: 150, Category: "utilities", Confidence: entity.ConfidenceHigh, SourceFile: "r1.jpg", SourceText: "Total: $150.00"},
			{Vendor: "Acme", Date: "2024-09-30", Amount: 999, Category: "utilities", Confidence: entity.ConfidenceHigh, SourceFile: "r1.jpg", SourceText: "999"},
		},
		DamageClaims: []entity.DamageClaim{
			{Label: "Flooded floor", Detail: "Water", Confidence: entity.ConfidenceMedium, SourceFile: "flood.png", SourceText: "water"},
		},
	}}
	runs := &memRunLog{}
	arch := &fakeArchive{}
	p := NewProcessor(quietLogger(), ocr, st, WithRunLog(runs), WithArchive(arch), WithModelName("gpt-test"))

	res, err := p.Extract(context.Background(), uploads(), entity.EvidenceContext{State: "FL"})
	require.NoError(t, err)

	require.Len(t, res.ExpenseItems, 2)
	assert.Equal(t, entity.ConfidenceHigh, res.ExpenseItems[0].Confidence)
	assert.Equal(t, entity.ConfidenceNeedsReview, res.ExpenseItems[1].Confidence)
	assert.Equal(t, anchor.ReasonAmountNotFound, res.ExpenseItems[1].ReviewReason)
	require.Len(t, res.DamageClaims, 1)

	require.Len(t, res.RenameMap, 2)
	assert.Equal(t, "r1.jpg", res.RenameMap[0].OriginalFilename)
	assert.Equal(t, "flood.png", res.RenameMap[1].OriginalFilename)

	// utility and damage satisfied
	assert.Len(t, res.MissingEvidence, len(constants.Requirements())-2)
	assert.Equal(t, 1, res.NeedsReviewCount())

	// images attach, the PDF does not
	require.Len(t, st.req.Attachments, 2)
	assert.Contains(t, st.req.Prompt, "--- FILE: notes.pdf ---\n(no OCR text)")
	assert.Contains(t, st.req.DocumentTypes, "utility")

	require.Len(t, runs.started, 1)
	assert.Equal(t, string(constants.RunStatusRunning), runs.started[0].Status)
	assert.Equal(t, "gpt-test", *runs.started[0].ModelName)
	assert.Len(t, runs.files, 3)
	assert.Equal(t, 1, runs.ocrOK)
	assert.Len(t, runs.finished, 1)
	assert.Empty(t, runs.failed)
	assert.Equal(t, res.RenameMap, arch.renames)
}

func TestExtract_EmptyInputShortCircuits(t *testing.T) {
	ocr := &fakeOCR{}
	st := &fakeStructurer{}
	p := NewProcessor(quietLogger(), ocr, st)

	res, err := p.Extract(context.Background(), nil, entity.EvidenceContext{})
	require.NoError(t, err)
	assert.Equal(t, 0, ocr.calls)
	assert.Equal(t, 0, st.calls)
	assert.Empty(t, res.ExpenseItems)
	assert.NotNil(t, res.ExpenseItems)
	assert.Len(t, res.MissingEvidence, len(constants.Requirements()))
}

func TestExtract_RejectsDuplicateFilenames(t *testing.T) {
	ocr := &fakeOCR{}
	st := &fakeStructurer{}
	runs := &memRunLog{}
	p := NewProcessor(quietLogger(), ocr, st, WithRunLog(runs))

	files := append(uploads(), entity.UploadedFile{Filename: "r1.jpg", MIMEType: constants.MIMEJPEG, Data: []byte{0xff, 0xd8, 0x02}})
	_, err := p.Extract(context.Background(), files, entity.EvidenceContext{})
	require.Error(t, err)
	assert.True(t, common.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "duplicate filename")
	assert.Equal(t, 0, ocr.calls)
	assert.Equal(t, 0, st.calls)
	assert.Empty(t, runs.started)
}

func TestExtract_StructuringFailureFailsRequest(t *testing.T) {
	want := &llm.SchemaValidationError{Attempts: 2, Err: errors.New("bad")}
	runs := &memRunLog{}
	p := NewProcessor(quietLogger(), &fakeOCR{}, &fakeStructurer{err: want}, WithRunLog(runs))

	res, err := p.Extract(context.Background(), uploads(), entity.EvidenceContext{})
	var se *llm.SchemaValidationError
	require.ErrorAs(t, err, &se)
	assert.Empty(t, res.ExpenseItems)
	assert.Empty(t, res.RenameMap)
	require.Len(t, runs.failed, 1)
	assert.Empty(t, runs.finished)
}

func TestExtract_NoAttachmentsWhenDisabled(t *testing.T) {
	st := &fakeStructurer{}
	p := NewProcessor(quietLogger(), &fakeOCR{}, st, WithImageAttachments(false, 0))
	_, err := p.Extract(context.Background(), uploads(), entity.EvidenceContext{})
	require.NoError(t, err)
	assert.Empty(t, st.req.Attachments)
}

func TestExtract_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st := &fakeStructurer{}
	p := NewProcessor(quietLogger(), &fakeOCR{}, st)
	_, err := p.Extract(ctx, uploads(), entity.EvidenceContext{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, st.calls)
}
