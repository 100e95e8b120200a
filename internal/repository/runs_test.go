package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/relief-evidence/constants"
	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

func newTestRepo(t *testing.T) RunRepository {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	db, err := OpenSQLite(ctx, ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(logger) })

	require.NoError(t, Migrate(ctx, db))
	// migrations are repeatable
	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, db.HealthCheck(ctx, time.Second))
	return NewRunRepository(db, logger)
}

func TestRunRepository_Lifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	id := uuid.New()
	model := "gpt-4o-mini"

	require.NoError(t, repo.Start(ctx, entity.ExtractionRun{
		ID: id, RequestID: "req-1", FileCount: 2, ModelName: &model,
		Context: entity.EvidenceContext{BusinessType: "Bakery", State: "FL"},
	}))

	require.NoError(t, repo.RecordFiles(ctx, id, []entity.EvidenceFile{
		{Position: 0, Filename: "r1.jpg", MIMEType: "image/jpeg", FileSize: 10, ContentHash: []byte{1, 2}, OCRText: "TOTAL 5.00"},
		{Position: 1, Filename: "roof.png", MIMEType: "image/png", FileSize: 20},
	}))
	require.NoError(t, repo.MarkOCR(ctx, id))

	run, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, string(constants.RunStatusOCROK), run.Status)
	assert.Equal(t, "req-1", run.RequestID)
	assert.Equal(t, "Bakery", run.Context.BusinessType)
	assert.Equal(t, model, *run.ModelName)
	assert.Nil(t, run.FinishedAt)

	result := entity.ExtractionResult{
		ExpenseItems: []entity.ExpenseItem{{Vendor: "A", Confidence: entity.ConfidenceNeedsReview, SourceFile: "r1.jpg"}},
		RenameMap:    []entity.RenameEntry{{OriginalFilename: "r1.jpg", RecommendedFilename: "other_a_5.00.jpg"}},
	}
	require.NoError(t, repo.Finish(ctx, id, result))

	run, err = repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, string(constants.RunStatusOK), run.Status)
	assert.Equal(t, 1, run.NeedsReview)
	require.NotNil(t, run.FinishedAt)
	assert.Contains(t, string(run.ResultJSON), `"rename_map"`)

	files, err := repo.Files(ctx, id)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "other_a_5.00.jpg", files[0].Recommended)
	assert.Equal(t, []byte{1, 2}, files[0].ContentHash)
	assert.Equal(t, "TOTAL 5.00", files[0].OCRText)
	assert.Empty(t, files[1].Recommended)
}

func TestRunRepository_FailAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, second := uuid.New(), uuid.New()
	now := time.Now()
	require.NoError(t, repo.Start(ctx, entity.ExtractionRun{ID: first, FileCount: 1, StartedAt: now.Add(-time.Minute)}))
	require.NoError(t, repo.Start(ctx, entity.ExtractionRun{ID: second, FileCount: 1, StartedAt: now}))
	require.NoError(t, repo.Fail(ctx, first, errors.New("structuring timeout")))

	runs, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, string(constants.RunStatusFailed), runs[1].Status)
	require.NotNil(t, runs[1].ErrorMessage)
	assert.Equal(t, "structuring timeout", *runs[1].ErrorMessage)
	assert.Nil(t, runs[1].ModelName)
}

func TestRunRepository_GetNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Get(context.Background(), uuid.New())
	assert.True(t, IsNotFound(err))
}
