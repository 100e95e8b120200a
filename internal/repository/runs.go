package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/relief-evidence/constants"
	"github.com/joseph-ayodele/relief-evidence/internal/common"
	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

type RunRepository interface {
	Start(ctx context.Context, run entity.ExtractionRun) error
	RecordFiles(ctx context.Context, runID uuid.UUID, files []entity.EvidenceFile) error
	MarkOCR(ctx context.Context, runID uuid.UUID) error
	Finish(ctx context.Context, runID uuid.UUID, result entity.ExtractionResult) error
	Fail(ctx context.Context, runID uuid.UUID, cause error) error
	Get(ctx context.Context, runID uuid.UUID) (entity.ExtractionRun, error)
	ListRecent(ctx context.Context, limit int) ([]entity.ExtractionRun, error)
	Files(ctx context.Context, runID uuid.UUID) ([]entity.EvidenceFile, error)
}

type runRepo struct {
	db  *DB
	log *slog.Logger
}

func NewRunRepository(db *DB, log *slog.Logger) RunRepository {
	if log == nil {
		log = slog.Default()
	}
	return &runRepo{db: db, log: log}
}

var runColumns = []string{
	"id", "request_id", "status", "file_count", "context", "started_at",
	"finished_at", "error_message", "needs_review", "result_json", "model_name",
}

func (r *runRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect)
}

func (r *runRepo) exec(ctx context.Context, q string, args []any) error {
	if err := r.db.Driver.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}
	return nil
}

func (r *runRepo) Start(ctx context.Context, run entity.ExtractionRun) error {
	ectx, err := json.Marshal(run.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = string(constants.RunStatusRunning)
	}
	q, args := r.builder().Insert(tableRuns).
		Columns("id", "request_id", "status", "file_count", "context", "started_at", "needs_review", "model_name").
		Values(run.ID.String(), run.RequestID, run.Status, run.FileCount, string(ectx), run.StartedAt.UnixMilli(), 0, nullString(run.ModelName)).
		Query()
	if err := r.exec(ctx, q, args); err != nil {
		r.log.Error("extraction_run start failed", "run_id", run.ID, "err", err)
		return err
	}
	r.log.Debug("extraction_run started", "run_id", run.ID, "files", run.FileCount)
	return nil
}

func (r *runRepo) RecordFiles(ctx context.Context, runID uuid.UUID, files []entity.EvidenceFile) error {
	if len(files) == 0 {
		return nil
	}
	ins := r.builder().Insert(tableFiles).
		Columns("run_id", "position", "filename", "mime_type", "file_size", "content_hash", "ocr_text")
	for _, f := range files {
		ins.Values(runID.String(), f.Position, f.Filename, f.MIMEType, f.FileSize, f.ContentHash, f.OCRText)
	}
	q, args := ins.Query()
	if err := r.exec(ctx, q, args); err != nil {
		r.log.Error("evidence_files insert failed", "run_id", runID, "err", err)
		return err
	}
	return nil
}

func (r *runRepo) MarkOCR(ctx context.Context, runID uuid.UUID) error {
	return r.setStatus(ctx, runID, constants.RunStatusOCROK)
}

func (r *runRepo) setStatus(ctx context.Context, runID uuid.UUID, status constants.RunStatus) error {
	q, args := r.builder().Update(tableRuns).
		Set("status", string(status)).
		Where(entsql.EQ("id", runID.String())).
		Query()
	return r.exec(ctx, q, args)
}

func (r *runRepo) Finish(ctx context.Context, runID uuid.UUID, result entity.ExtractionResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	q, args := r.builder().Update(tableRuns).
		Set("status", string(constants.RunStatusOK)).
		Set("finished_at", time.Now().UnixMilli()).
		Set("needs_review", result.NeedsReviewCount()).
		Set("result_json", string(raw)).
		Where(entsql.EQ("id", runID.String())).
		Query()
	if err := r.exec(ctx, q, args); err != nil {
		r.log.Error("extraction_run finish(OK) failed", "run_id", runID, "err", err)
		return err
	}
	for _, e := range result.RenameMap {
		q, args := r.builder().Update(tableFiles).
			Set("recommended_filename", e.RecommendedFilename).
			Where(entsql.And(entsql.EQ("run_id", runID.String()), entsql.EQ("filename", e.OriginalFilename))).
			Query()
		if err := r.exec(ctx, q, args); err != nil {
			return err
		}
	}
	r.log.Info("extraction_run finished (OK)", "run_id", runID, "needs_review", result.NeedsReviewCount())
	return nil
}

func (r *runRepo) Fail(ctx context.Context, runID uuid.UUID, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	q, args := r.builder().Update(tableRuns).
		Set("status", string(constants.RunStatusFailed)).
		Set("finished_at", time.Now().UnixMilli()).
		Set("error_message", msg).
		Where(entsql.EQ("id", runID.String())).
		Query()
	if err := r.exec(ctx, q, args); err != nil {
		r.log.Error("extraction_run finish(FAILED) failed", "run_id", runID, "err", err)
		return err
	}
	r.log.Warn("extraction_run finished (FAILED)", "run_id", runID, "error", msg)
	return nil
}

func (r *runRepo) Get(ctx context.Context, runID uuid.UUID) (entity.ExtractionRun, error) {
	runs, err := r.selectRuns(ctx, func(s *entsql.Selector) {
		s.Where(entsql.EQ("id", runID.String()))
	})
	if err != nil {
		return entity.ExtractionRun{}, err
	}
	if len(runs) == 0 {
		return entity.ExtractionRun{}, fmt.Errorf("extraction run %s: %w", runID, common.ErrNotFound)
	}
	return runs[0], nil
}

func (r *runRepo) ListRecent(ctx context.Context, limit int) ([]entity.ExtractionRun, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.selectRuns(ctx, func(s *entsql.Selector) {
		s.OrderBy(entsql.Desc("started_at")).Limit(limit)
	})
}

func (r *runRepo) selectRuns(ctx context.Context, shape func(*entsql.Selector)) ([]entity.ExtractionRun, error) {
	sel := r.builder().Select(runColumns...).From(entsql.Table(tableRuns))
	shape(sel)
	q, args := sel.Query()

	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entity.ExtractionRun
	for rows.Next() {
		run, err := scanRun(&rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}
	return out, nil
}

func scanRun(rows *entsql.Rows) (entity.ExtractionRun, error) {
	var (
		id, status              string
		requestID, ectx, errMsg sql.NullString
		resultJSON, modelName   sql.NullString
		fileCount, needsReview  int
		startedAt               int64
		finishedAt              sql.NullInt64
	)
	if err := rows.Scan(&id, &requestID, &status, &fileCount, &ectx, &startedAt,
		&finishedAt, &errMsg, &needsReview, &resultJSON, &modelName); err != nil {
		return entity.ExtractionRun{}, fmt.Errorf("%w: scan run: %w", common.ErrDatabase, err)
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return entity.ExtractionRun{}, fmt.Errorf("%w: bad run id %q: %w", common.ErrDatabase, id, err)
	}
	run := entity.ExtractionRun{
		ID:          uid,
		RequestID:   requestID.String,
		Status:      status,
		FileCount:   fileCount,
		StartedAt:   time.UnixMilli(startedAt).UTC(),
		NeedsReview: needsReview,
	}
	if ectx.Valid && ectx.String != "" {
		if err := json.Unmarshal([]byte(ectx.String), &run.Context); err != nil {
			return entity.ExtractionRun{}, fmt.Errorf("decode run context: %w", err)
		}
	}
	if finishedAt.Valid {
		t := time.UnixMilli(finishedAt.Int64).UTC()
		run.FinishedAt = &t
	}
	if errMsg.Valid {
		run.ErrorMessage = &errMsg.String
	}
	if resultJSON.Valid && resultJSON.String != "" {
		run.ResultJSON = json.RawMessage(resultJSON.String)
	}
	if modelName.Valid {
		run.ModelName = &modelName.String
	}
	return run, nil
}

func (r *runRepo) Files(ctx context.Context, runID uuid.UUID) ([]entity.EvidenceFile, error) {
	q, args := r.builder().
		Select("position", "filename", "mime_type", "file_size", "content_hash", "ocr_text", "recommended_filename").
		From(entsql.Table(tableFiles)).
		Where(entsql.EQ("run_id", runID.String())).
		OrderBy("position").
		Query()

	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entity.EvidenceFile
	for rows.Next() {
		var (
			f           entity.EvidenceFile
			ocrText     sql.NullString
			recommended sql.NullString
		)
		if err := rows.Scan(&f.Position, &f.Filename, &f.MIMEType, &f.FileSize, &f.ContentHash, &ocrText, &recommended); err != nil {
			return nil, fmt.Errorf("%w: scan file: %w", common.ErrDatabase, err)
		}
		f.RunID = runID
		f.OCRText = ocrText.String
		f.Recommended = recommended.String
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}
	return out, nil
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
