package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/relief-evidence/internal/entity"
)

// Extractor is the part of core.Processor the queue drives.
type Extractor interface {
	Extract(ctx context.Context, files []entity.UploadedFile, ectx entity.EvidenceContext) (entity.ExtractionResult, error)
}

// ProcessorQueue runs evidence packets on a fixed set of workers. Each job
// gets its own timeout; results go to the handler from the worker goroutine.
type ProcessorQueue struct {
	proc    Extractor
	logger  *slog.Logger
	workers int
	timeout time.Duration
	handle  func(Result)

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

var _ Queue = (*ProcessorQueue)(nil)

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithResultHandler receives every finished job. It must be safe for
// concurrent use when more than one worker runs.
func WithResultHandler(fn func(Result)) Option {
	return func(q *ProcessorQueue) { q.handle = fn }
}

func NewProcessorQueue(proc Extractor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 2,
		timeout: 5 * time.Minute,
		handle:  func(Result) {},
		ch:      make(chan Job, 64),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.start", "worker_id", workerID)

				for job := range q.ch {
					q.handle(q.run(workerID, job))
				}

				q.logger.Debug("queue.worker.stop", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) Result {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	start := time.Now()
	res, err := q.proc.Extract(ctx, job.Files, job.Context)
	out := Result{Job: job, Result: res, Err: err, Elapsed: time.Since(start)}
	if err != nil {
		q.logger.Error("queue.job.failed", "worker_id", workerID, "job", job.Name, "error", err)
	} else {
		q.logger.Info("queue.job.ok", "worker_id", workerID, "job", job.Name,
			"files", len(job.Files), "elapsed_ms", out.Elapsed.Milliseconds())
	}
	return out
}

// Enqueue blocks while the buffer is full, until ctx ends.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "job", job.Name)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queue.enqueue.ok", "job", job.Name, "files", len(job.Files))
		return nil
	default:
	}
	q.logger.Warn("queue.enqueue.backpressure", "job", job.Name)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops intake and waits for queued jobs to finish or ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
