package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/joseph-ayodele/relief-evidence/internal/common"
	"github.com/joseph-ayodele/relief-evidence/internal/core/llm"
)

const codeInternal = "INTERNAL"

type handlerFunc func(http.ResponseWriter, *http.Request) error

type errorBody struct {
	Detail    string `json:"detail"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status, code := statusFor(err)
		log := common.LoggerFromContext(req.Context(), r.logger)
		if status >= http.StatusInternalServerError {
			log.Error("http.request.failed", "status", status, "code", code, "error", err)
		} else {
			log.Warn("http.request.rejected", "status", status, "code", code, "error", err)
		}
		detail := err.Error()
		if code == codeInternal {
			// unclassified failures stay in the log
			detail = common.ErrInternal.Error()
		}
		writeJSON(w, status, errorBody{
			Detail:    detail,
			Code:      code,
			RequestID: common.RequestIDFromContext(req.Context()),
		})
	}
}

// statusFor maps pipeline errors onto HTTP statuses.
func statusFor(err error) (int, string) {
	var (
		schemaErr   *llm.SchemaValidationError
		externalErr *llm.ExternalServiceError
		appErr      *common.AppError
	)
	switch {
	case common.IsInvalidInput(err):
		code := "INVALID_INPUT"
		if errors.As(err, &appErr) {
			code = appErr.Code
		}
		return http.StatusBadRequest, code
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.As(err, &schemaErr):
		return http.StatusBadGateway, "SCHEMA_VALIDATION"
	case errors.As(err, &externalErr):
		if externalErr.Timeout {
			return http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT"
		}
		return http.StatusBadGateway, "UPSTREAM_ERROR"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	case errors.Is(err, context.Canceled):
		// client went away
		return 499, "CANCELLED"
	}
	return http.StatusInternalServerError, codeInternal
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
