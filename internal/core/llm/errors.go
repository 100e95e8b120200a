package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// SchemaValidationError means the model output did not conform to the
// extraction schema, on every attempt.
type SchemaValidationError struct {
	Attempts int
	Raw      string // last raw output, truncated
	Err      error
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("structuring output failed schema validation after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *SchemaValidationError) Unwrap() error { return e.Err }

// ExternalServiceError is a network, provider or timeout failure of the
// structuring call. Timeout is set when the per-attempt deadline fired.
type ExternalServiceError struct {
	Attempts int
	Timeout  bool
	Err      error
}

func (e *ExternalServiceError) Error() string {
	kind := "external service error"
	if e.Timeout {
		kind = "external service timeout"
	}
	return fmt.Sprintf("structuring %s after %d attempt(s): %v", kind, e.Attempts, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
