package common

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/relief-evidence/constants"
	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// Validator provides validation utilities
type Validator struct {
	errors []ValidationError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		errors: make([]ValidationError, 0),
	}
}

// Field validates a field and collects errors
func (v *Validator) Field(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

// Check records a failure when ok is false.
func (v *Validator) Check(ok bool, fieldName string, value interface{}, message string) *Validator {
	if !ok {
		v.errors = append(v.errors, ValidationError{Field: fieldName, Value: value, Message: message})
	}
	return v
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// Error returns a combined error wrapping ErrValidation, or nil.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	return NewAppError("VALIDATION_ERROR", v.ErrorMessage(), ErrValidation)
}

// ErrorMessage returns a combined error message as string
func (v *Validator) ErrorMessage() string {
	if !v.HasErrors() {
		return ""
	}

	var messages []string
	for _, err := range v.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// ValidationRule represents a single validation rule
type ValidationRule func(fieldName string, value interface{}) *ValidationError

// Required - Common validation rules
func Required(fieldName string, value interface{}) *ValidationError {
	if value == nil {
		return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
	}

	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
		}
	case []byte:
		if len(v) == 0 {
			return &ValidationError{Field: fieldName, Value: "<empty>", Message: "is required"}
		}
	}
	return nil
}

// MaxLength limits a string to max runes.
func MaxLength(max int) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		str, ok := value.(string)
		if !ok {
			return nil
		}
		if utf8.RuneCountInString(str) > max {
			return &ValidationError{
				Field:   fieldName,
				Value:   value,
				Message: fmt.Sprintf("must be at most %d characters", max),
			}
		}
		return nil
	}
}

// MaxBytes limits a byte slice to max bytes.
func MaxBytes(max int) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		b, ok := value.([]byte)
		if !ok {
			return nil
		}
		if len(b) > max {
			return &ValidationError{
				Field:   fieldName,
				Value:   fmt.Sprintf("%d bytes", len(b)),
				Message: fmt.Sprintf("must be at most %d MB", max>>20),
			}
		}
		return nil
	}
}

// SupportedMIME accepts only the upload MIME allow-list.
func SupportedMIME(fieldName string, value interface{}) *ValidationError {
	str, _ := value.(string)
	if !constants.IsSupportedMIME(str) {
		return &ValidationError{
			Field:   fieldName,
			Value:   value,
			Message: "unsupported type; allowed: image/jpeg, image/png, image/webp, image/gif, application/pdf",
		}
	}
	return nil
}

// ValidateUploads checks the request-level upload limits: file count,
// per-file size, MIME allow-list and unique filenames. Empty files pass:
// they simply produce no OCR text.
func ValidateUploads(files []entity.UploadedFile) error {
	v := NewValidator()
	v.Check(len(files) <= constants.MaxFilesPerRequest, "files", len(files),
		fmt.Sprintf("at most %d files per request", constants.MaxFilesPerRequest))

	seen := make(map[string]struct{}, len(files))
	for i, f := range files {
		field := fmt.Sprintf("files[%d]", i)
		v.Field(field+".filename", f.Filename, Required, MaxLength(255))
		v.Field(field+".data", f.Data, MaxBytes(constants.MaxFileSizeBytes))
		v.Field(field+".mime_type", f.MIMEType, SupportedMIME)
		_, dup := seen[f.Filename]
		v.Check(!dup, field+".filename", f.Filename, "duplicate filename in request")
		seen[f.Filename] = struct{}{}
	}
	return v.Error()
}
