package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/relief-evidence/constants"
	"github.com/joseph-ayodele/relief-evidence/internal/common"
	"github.com/joseph-ayodele/relief-evidence/internal/entity"
	"github.com/joseph-ayodele/relief-evidence/internal/ingest"
)

const (
	formFiles   = "files"
	formContext = "context"
	// multipart parts above this size spill to temp files
	multipartMemory = 32 << 20
)

var contextFields = []string{"business_type", "county", "state", "disaster_id", "declaration_title"}

// POST /api/evidence/extract
// multipart: files (repeated), context (JSON string) or the individual context fields.
// ?format=xlsx returns the evidence workbook instead of JSON.
func (r *Router) handleExtract(w http.ResponseWriter, req *http.Request) error {
	maxBody := int64(constants.MaxFilesPerRequest*constants.MaxFileSizeBytes) + multipartMemory
	req.Body = http.MaxBytesReader(w, req.Body, maxBody)
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return common.InvalidInputErrorf("request body exceeds %d bytes", tooBig.Limit)
		}
		return common.InvalidInputErrorf("invalid multipart form: %v", err)
	}
	defer func() { _ = req.MultipartForm.RemoveAll() }()

	headers := req.MultipartForm.File[formFiles]
	if len(headers) > constants.MaxFilesPerRequest {
		return common.InvalidInputErrorf("maximum %d files allowed, got %d", constants.MaxFilesPerRequest, len(headers))
	}

	ectx, err := parseContext(req.MultipartForm.Value)
	if err != nil {
		return err
	}

	files := make([]entity.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := readUpload(fh)
		if err != nil {
			return err
		}
		files = append(files, f)
	}
	if err := common.ValidateUploads(files); err != nil {
		return err
	}

	ctx := req.Context()
	if r.deps.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.deps.RequestTimeout)
		defer cancel()
	}

	result, err := r.deps.Extractor.Extract(ctx, files, ectx)
	if err != nil {
		return err
	}
	w.Header().Set(headerNeedsReview, strconv.Itoa(result.NeedsReviewCount()))

	if strings.EqualFold(req.URL.Query().Get("format"), "xlsx") {
		raw, err := r.deps.Workbook.WorkbookXLSX(ctx, result)
		if err != nil {
			return err
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="evidence.xlsx"`)
		_, err = w.Write(raw)
		return err
	}
	writeJSON(w, http.StatusOK, result)
	return nil
}

// parseContext accepts a JSON "context" field, or the individual fields.
func parseContext(values map[string][]string) (entity.EvidenceContext, error) {
	var ectx entity.EvidenceContext
	if raw := strings.TrimSpace(first(values, formContext)); raw != "" {
		dec := json.NewDecoder(strings.NewReader(raw))
		if err := dec.Decode(&ectx); err != nil {
			return ectx, common.InvalidInputErrorf("invalid context JSON: %v", err)
		}
		return ectx, nil
	}
	fields := make(map[string]string, len(contextFields))
	for _, k := range contextFields {
		if v := strings.TrimSpace(first(values, k)); v != "" {
			fields[k] = v
		}
	}
	ectx = entity.EvidenceContext{
		BusinessType:     fields["business_type"],
		County:           fields["county"],
		State:            fields["state"],
		DisasterID:       fields["disaster_id"],
		DeclarationTitle: fields["declaration_title"],
	}
	return ectx, nil
}

func first(values map[string][]string, key string) string {
	if v := values[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func readUpload(fh *multipart.FileHeader) (entity.UploadedFile, error) {
	if fh.Size > constants.MaxFileSizeBytes {
		return entity.UploadedFile{}, common.InvalidInputErrorf("file %q exceeds maximum size of %dMB", fh.Filename, constants.MaxFileSizeBytes>>20)
	}
	src, err := fh.Open()
	if err != nil {
		return entity.UploadedFile{}, fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, constants.MaxFileSizeBytes+1))
	if err != nil {
		return entity.UploadedFile{}, fmt.Errorf("read upload %q: %w", fh.Filename, err)
	}

	mt := constants.NormalizeMIME(fh.Header.Get("Content-Type"))
	if mt == "" || mt == "application/octet-stream" {
		mt = ingest.DetectMIME(fh.Filename, data)
	}
	return entity.UploadedFile{Filename: fh.Filename, Data: data, MIMEType: mt}, nil
}

// GET /api/evidence/requirements
func (r *Router) handleRequirements(w http.ResponseWriter, _ *http.Request) error {
	reqs := constants.Requirements()
	if rp, ok := r.deps.Extractor.(interface {
		Requirements() []entity.DocumentRequirement
	}); ok {
		reqs = rp.Requirements()
	}
	writeJSON(w, http.StatusOK, reqs)
	return nil
}

// GET /api/runs?limit=20
func (r *Router) handleListRuns(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	if limit > 200 {
		limit = 200
	}
	runs, err := r.deps.Runs.ListRecent(req.Context(), limit)
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []entity.ExtractionRun{}
	}
	writeJSON(w, http.StatusOK, runs)
	return nil
}

// GET /api/runs/{id}
func (r *Router) handleGetRun(w http.ResponseWriter, req *http.Request) error {
	id, err := uuid.Parse(chi.URLParam(req, "id"))
	if err != nil {
		return common.InvalidInputErrorf("run id must be a UUID")
	}
	run, err := r.deps.Runs.Get(req.Context(), id)
	if err != nil {
		return err
	}
	files, err := r.deps.Runs.Files(req.Context(), id)
	if err != nil {
		return err
	}
	if files == nil {
		files = []entity.EvidenceFile{}
	}
	writeJSON(w, http.StatusOK, struct {
		entity.ExtractionRun
		Files []entity.EvidenceFile `json:"files"`
	}{run, files})
	return nil
}

type checkStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// GET /health
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	body := struct {
		Status string                 `json:"status"`
		Checks map[string]checkStatus `json:"checks,omitempty"`
	}{Status: "ok"}

	for name, c := range r.deps.Checks {
		if body.Checks == nil {
			body.Checks = make(map[string]checkStatus, len(r.deps.Checks))
		}
		if err := c.Check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body.Status = "unhealthy"
			body.Checks[name] = checkStatus{Status: "unhealthy", Message: err.Error()}
			continue
		}
		body.Checks[name] = checkStatus{Status: "ok"}
	}
	writeJSON(w, status, body)
}
