package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/relief-evidence/constants"
	"github.com/joseph-ayodele/relief-evidence/internal/common"
	"github.com/joseph-ayodele/relief-evidence/internal/core/llm"
	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

type cannedProvider struct{ raw string }

func (c cannedProvider) Complete(context.Context, llm.CompletionRequest) ([]byte, error) {
	return []byte(c.raw), nil
}

func testConfig() *common.Config {
	return &common.Config{
		OCR: common.OCRConfig{Engine: "tesseract", Rasterizer: "pdftoppm", Tesseract: "tesseract-not-installed", Pdftoppm: "pdftoppm-not-installed", Workers: 2},
		LLM: common.LLMConfig{Model: "test-model", Timeout: 5 * time.Second},
	}
}

func TestNew_InMemoryRunLog(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	a, err := New(ctx, testConfig(), logger,
		WithInMemoryRunLog(),
		WithProvider(cannedProvider{raw: `{"expense_items":[{"vendor":"Acme","date":"03/14/2024","amount":12.5,
			"category":"supplies","confidence":"high","source_file":"r1.png","source_text":"TOTAL 12.50"}],"damage_claims":[]}`}),
	)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Runs)
	assert.Nil(t, a.Archive)
	assert.Equal(t, "test-model", a.Model)

	res, err := a.Processor.Extract(ctx, []entity.UploadedFile{
		{Filename: "r1.png", MIMEType: constants.MIMEPNG, Data: []byte("not really a png")},
	}, entity.EvidenceContext{State: "TX"})
	require.NoError(t, err)

	// OCR produced nothing, so the item cannot be anchored
	require.Len(t, res.ExpenseItems, 1)
	assert.Equal(t, entity.ConfidenceNeedsReview, res.ExpenseItems[0].Confidence)
	require.Len(t, res.RenameMap, 1)

	runs, err := a.Runs.ListRecent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, string(constants.RunStatusOK), runs[0].Status)
	assert.Equal(t, "test-model", *runs[0].ModelName)
	assert.Equal(t, "TX", runs[0].Context.State)
}

func TestNew_NoRunLogWithoutDSN(t *testing.T) {
	a, err := New(context.Background(), testConfig(), nil, WithProvider(cannedProvider{raw: "{}"}))
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.DB)
	assert.Nil(t, a.Runs)
}

func TestNew_BadOCREngine(t *testing.T) {
	cfg := testConfig()
	cfg.OCR.Engine = "abbyy"
	_, err := New(context.Background(), cfg, nil, WithProvider(cannedProvider{}))
	assert.Error(t, err)
}
