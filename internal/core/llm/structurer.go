package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/relief-evidence/internal/entity"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	DefaultTimeout     = 90 * time.Second
	DefaultMaxAttempts = 2
	maxRawInError      = 2000
)

// Structurer turns a prompt into schema-valid extraction records. A failed
// attempt (invalid output or provider error) is retried once with the same
// prompt; each attempt has its own deadline.
type Structurer struct {
	provider    Provider
	logger      *slog.Logger
	timeout     time.Duration
	maxAttempts int

	mu      sync.Mutex
	schemas map[string]*jsonschema.Schema // by schema JSON
}

type Option func(*Structurer)

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) Option {
	return func(s *Structurer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMaxAttempts sets the total attempt budget, including the first call.
func WithMaxAttempts(n int) Option {
	return func(s *Structurer) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func NewStructurer(provider Provider, logger *slog.Logger, opts ...Option) *Structurer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Structurer{
		provider:    provider,
		logger:      logger,
		timeout:     DefaultTimeout,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// compiled returns the compiled form of schema, compiling each distinct
// schema only once per Structurer.
func (s *Structurer) compiled(schema map[string]any) (*jsonschema.Schema, error) {
	key, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.schemas[string(key)]; ok {
		return c, nil
	}
	c, err := CompileSchema(schema)
	if err != nil {
		return nil, err
	}
	if s.schemas == nil {
		s.schemas = make(map[string]*jsonschema.Schema)
	}
	s.schemas[string(key)] = c
	return c, nil
}

// Structure runs the structuring call. It returns *SchemaValidationError when
// the last attempt produced output that does not conform to req.Schema, and
// *ExternalServiceError when the last attempt failed at the provider.
// Nothing partial is ever returned alongside an error.
func (s *Structurer) Structure(ctx context.Context, req StructureRequest) (RawExtraction, error) {
	compiled, err := s.compiled(req.Schema)
	if err != nil {
		return RawExtraction{}, fmt.Errorf("compile extraction schema: %w", err)
	}
	creq := CompletionRequest{
		System:      SystemPrompt,
		Prompt:      req.Prompt,
		SchemaName:  ExtractionSchemaName,
		Schema:      req.Schema,
		Attachments: req.Attachments,
	}

	start := time.Now()
	s.logger.Info("llm.structure.start",
		"prompt_len", len(req.Prompt),
		"attachments", len(req.Attachments),
		"timeout_ms", s.timeout.Milliseconds(),
		"max_attempts", s.maxAttempts,
	)

	var lastErr error
	attempt := 0
	for attempt < s.maxAttempts {
		attempt++
		if err := ctx.Err(); err != nil {
			lastErr = &ExternalServiceError{Attempts: attempt - 1, Timeout: isTimeout(err), Err: err}
			break
		}

		raw, err := s.complete(ctx, creq)
		if err != nil {
			lastErr = &ExternalServiceError{Attempts: attempt, Timeout: isTimeout(err), Err: err}
		} else {
			out, vErr := s.decode(compiled, raw, req.DocumentTypes)
			if vErr == nil {
				s.logger.Info("llm.structure.ok",
					"attempts", attempt,
					"expense_items", len(out.ExpenseItems),
					"damage_claims", len(out.DamageClaims),
					"elapsed_ms", time.Since(start).Milliseconds(),
				)
				return out, nil
			}
			lastErr = &SchemaValidationError{Attempts: attempt, Raw: clip(string(raw), maxRawInError), Err: vErr}
		}

		// caller gave up; a retry would only fail the same way
		if ctx.Err() != nil {
			break
		}
		if attempt < s.maxAttempts {
			s.logger.Warn("llm.structure.retry", "attempt", attempt, "error", lastErr)
		}
	}

	s.logger.Error("llm.structure.error",
		"attempts", attempt,
		"error", lastErr,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return RawExtraction{}, lastErr
}

func (s *Structurer) complete(ctx context.Context, req CompletionRequest) ([]byte, error) {
	actx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.provider.Complete(actx, req)
	if err != nil {
		// providers do not always wrap the context error
		if errors.Is(actx.Err(), context.DeadlineExceeded) && !isTimeout(err) {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		return nil, err
	}
	return raw, nil
}

func (s *Structurer) decode(schema *jsonschema.Schema, raw []byte, docTypes []string) (RawExtraction, error) {
	cleaned, _, err := NormalizeAndSanitizeJSON(raw, docTypes, s.logger)
	if err != nil {
		return RawExtraction{}, err
	}
	if err := validateCompiled(schema, cleaned); err != nil {
		return RawExtraction{}, err
	}
	var out RawExtraction
	if err := json.Unmarshal(cleaned, &out); err != nil {
		return RawExtraction{}, fmt.Errorf("decode extraction: %w", err)
	}
	for i, e := range out.ExpenseItems {
		if e.SourceFile == "" {
			return RawExtraction{}, fmt.Errorf("expense_items[%d]: empty source_file", i)
		}
	}
	for i, d := range out.DamageClaims {
		if d.SourceFile == "" {
			return RawExtraction{}, fmt.Errorf("damage_claims[%d]: empty source_file", i)
		}
	}
	if out.ExpenseItems == nil {
		out.ExpenseItems = []entity.ExpenseItem{}
	}
	if out.DamageClaims == nil {
		out.DamageClaims = []entity.DamageClaim{}
	}
	return out, nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
