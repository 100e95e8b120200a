package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joseph-ayodele/relief-evidence/internal/app"
	"github.com/joseph-ayodele/relief-evidence/internal/common"
	"github.com/joseph-ayodele/relief-evidence/internal/core/async"
	"github.com/joseph-ayodele/relief-evidence/internal/entity"
	"github.com/joseph-ayodele/relief-evidence/internal/export"
	"github.com/joseph-ayodele/relief-evidence/internal/ingest"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		inmem    = flag.Bool("inmem", false, "log runs to an in-memory SQLite database")
		dir      = flag.String("dir", "", "directory of evidence files, one case per subdirectory (required)")
		out      = flag.String("out", "", "output directory for JSON and XLSX (defaults to <parent>/evidence-out)")
		ctxJSON  = flag.String("context", "{}", `business context JSON, e.g. {"business_type":"bakery","state":"TX"}`)
		workers  = flag.Int("workers", 2, "cases processed concurrently")
		watch    = flag.Bool("watch", false, "keep running and re-process cases whose files change")
		debounce = flag.Duration("debounce", 2*time.Second, "quiet period before a changed case is re-processed")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "evidence-out")
	}
	var ectx entity.EvidenceContext
	if err := json.Unmarshal([]byte(*ctxJSON), &ectx); err != nil {
		printError("Error: invalid --context JSON: %v\n", err)
		os.Exit(1)
	}

	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		logger.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var appOpts []app.Option
	if *inmem {
		appOpts = append(appOpts, app.WithInMemoryRunLog())
	}
	a, err := app.New(ctx, cfg, logger, appOpts...)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	w := &writer{dir: *out, workbook: export.NewService(logger), logger: logger}
	queue := async.NewProcessorQueue(a.Processor, logger,
		async.WithWorkers(*workers),
		async.WithQueueSize(64),
		async.WithProcessTimeout(cfg.Server.RequestTimeout),
		async.WithResultHandler(w.handle),
	)

	cases, err := loadCases(ctx, *dir, logger)
	if err != nil {
		logger.Error("failed to load directory", "error", err)
		os.Exit(1)
	}
	for _, c := range cases {
		if err := queue.Enqueue(ctx, async.Job{Name: c.Name, Files: c.Files, Context: ectx}); err != nil {
			logger.Error("failed to enqueue case", "case", c.Name, "error", err)
		}
	}

	if *watch {
		watchCases(ctx, *dir, *debounce, queue, ectx, logger)
	}

	queue.Shutdown(context.Background())
	processed, failures := w.summary()

	logger.Info("batch processing complete", "cases", processed+failures, "failures", failures, "output_dir", *out)
	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Cases processed: %d\n", processed)
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Output: %s\n", *out)
	if failures > 0 {
		os.Exit(1)
	}
}

func loadCases(ctx context.Context, root string, logger *slog.Logger) ([]ingest.Case, error) {
	files, _, stats, err := ingest.LoadDirectory(ctx, root, ingest.Options{SkipHidden: true}, logger)
	if err != nil {
		return nil, err
	}
	cases := ingest.GroupCases(files, 0)
	logger.Info("ingestion complete", "files", stats.Succeeded, "skipped", stats.Skipped, "cases", len(cases))
	return cases, nil
}

// watchCases blocks until ctx ends, re-enqueueing the cases of changed files.
func watchCases(ctx context.Context, root string, debounce time.Duration, q async.Queue, ectx entity.EvidenceContext, logger *slog.Logger) {
	events, errs, err := ingest.Watch(ctx, ingest.WatchConfig{Roots: []string{root}, Debounce: debounce}, logger)
	if err != nil {
		logger.Error("failed to start watcher", "error", err)
		return
	}
	logger.Info("watching for changes", "root", root)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if ok {
				logger.Warn("watcher error", "error", err)
			}
		case path, ok := <-events:
			if !ok {
				return
			}
			rel, err := filepath.Rel(root, filepath.Dir(path))
			if err != nil {
				continue
			}
			dir := filepath.ToSlash(rel)
			cases, err := loadCases(ctx, root, logger)
			if err != nil {
				logger.Error("failed to reload directory", "error", err)
				continue
			}
			for _, c := range cases {
				if c.Name != dir && !strings.HasPrefix(c.Name, dir+"#") {
					continue
				}
				if err := q.Enqueue(ctx, async.Job{Name: c.Name, Files: c.Files, Context: ectx}); err != nil {
					logger.Error("failed to enqueue case", "case", c.Name, "error", err)
				}
			}
		}
	}
}

type writer struct {
	dir      string
	workbook *export.Service
	logger   *slog.Logger

	mu        sync.Mutex
	processed int
	failures  int
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func caseSlug(name string) string {
	if name == "." || name == "" {
		return "evidence"
	}
	return strings.Trim(unsafeName.ReplaceAllString(strings.ReplaceAll(name, "/", "_"), "_"), "_.")
}

// handle writes <case>.json and <case>.xlsx for each finished job.
func (w *writer) handle(r async.Result) {
	err := r.Err
	if err == nil {
		err = w.write(r)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.failures++
		w.logger.Error("failed to process case", "case", r.Job.Name, "error", err)
		return
	}
	w.processed++
	w.logger.Info("case written", "case", r.Job.Name,
		"expense_items", len(r.Result.ExpenseItems),
		"needs_review", r.Result.NeedsReviewCount(),
		"missing", len(r.Result.MissingEvidence),
		"elapsed_ms", r.Elapsed.Milliseconds())
}

func (w *writer) write(r async.Result) error {
	base := filepath.Join(w.dir, caseSlug(r.Job.Name))
	raw, err := json.MarshalIndent(r.Result, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(base+".json", raw, 0o644); err != nil {
		return err
	}
	xlsx, err := w.workbook.WorkbookXLSX(context.Background(), r.Result)
	if err != nil {
		return err
	}
	return os.WriteFile(base+".xlsx", xlsx, 0o644)
}

func (w *writer) summary() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.processed, w.failures
}
