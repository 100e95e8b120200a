package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

// ErrQueueClosed is returned by Enqueue after Shutdown started.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one evidence packet: the files of a single business plus its context.
type Job struct {
	Name        string
	Files       []entity.UploadedFile
	Context     entity.EvidenceContext
	SubmittedAt time.Time
}

// Result is delivered once per job, success or not.
type Result struct {
	Job     Job
	Result  entity.ExtractionResult
	Err     error
	Elapsed time.Duration
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
