package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/relief-evidence/internal/common"
	"github.com/joseph-ayodele/relief-evidence/internal/core"
	"github.com/joseph-ayodele/relief-evidence/internal/core/llm"
	"github.com/joseph-ayodele/relief-evidence/internal/core/llm/openai"
	"github.com/joseph-ayodele/relief-evidence/internal/core/ocr"
	"github.com/joseph-ayodele/relief-evidence/internal/repository"
	"github.com/joseph-ayodele/relief-evidence/internal/storage"
)

// App holds the wired pipeline plus the optional run log and archive.
type App struct {
	Processor *core.Processor
	OCR       *ocr.Extractor
	DB        *repository.DB
	Runs      repository.RunRepository
	Archive   *storage.Archive
	Model     string

	logger *slog.Logger
}

type options struct {
	inmem    bool
	provider llm.Provider
}

type Option func(*options)

// WithInMemoryRunLog keeps the run log in a throwaway sqlite database,
// whatever DB_URL says.
func WithInMemoryRunLog() Option { return func(o *options) { o.inmem = true } }

// WithProvider replaces the OpenAI provider.
func WithProvider(p llm.Provider) Option { return func(o *options) { o.provider = p } }

// New builds the extraction pipeline from cfg. The run log is enabled when
// DB_URL is set (or in-memory is requested); the archive when MINIO_ENDPOINT is set.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	a := &App{logger: logger}

	ocrx, err := ocr.NewFromConfig(cfg.OCR, logger)
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "ocr", err)
	}
	a.OCR = ocrx

	provider := o.provider
	a.Model = cfg.LLM.Model
	if provider == nil {
		client := openai.NewClient(openai.ConfigFromCommon(cfg.LLM), logger)
		a.Model = client.Model()
		provider = client
	}
	structurer := llm.NewStructurer(provider, logger, llm.WithTimeout(cfg.LLM.Timeout))

	popts := []core.Option{
		core.WithOCRWorkers(cfg.OCR.Workers),
		core.WithImageAttachments(cfg.LLM.AttachImages, 0),
		core.WithModelName(a.Model),
	}

	switch {
	case o.inmem:
		a.DB, err = repository.OpenSQLite(ctx, ":memory:", logger)
	case cfg.Database.DSN != "":
		a.DB, err = repository.Open(ctx, cfg.Database, logger)
	}
	if err != nil {
		return nil, err
	}
	if a.DB != nil {
		if err := repository.Migrate(ctx, a.DB); err != nil {
			a.Close()
			return nil, fmt.Errorf("run log: %w", err)
		}
		a.Runs = repository.NewRunRepository(a.DB, logger)
		popts = append(popts, core.WithRunLog(a.Runs))
		logger.Info("app.runlog.enabled", "dialect", a.DB.Dialect)
	}

	if cfg.Archive.Endpoint != "" {
		a.Archive, err = storage.NewArchive(ctx, cfg.Archive, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		popts = append(popts, core.WithArchive(a.Archive))
		logger.Info("app.archive.enabled", "endpoint", cfg.Archive.Endpoint, "bucket", cfg.Archive.Bucket)
	}

	a.Processor = core.NewProcessor(logger, ocrx, structurer, popts...)
	return a, nil
}

// Close releases the run log connections.
func (a *App) Close() {
	if a == nil || a.DB == nil {
		return
	}
	a.DB.Close(a.logger)
}
