package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/relief-evidence/internal/entity"
	"github.com/joseph-ayodele/relief-evidence/internal/export"
)

// Extractor runs one evidence extraction request.
type Extractor interface {
	Extract(ctx context.Context, files []entity.UploadedFile, ectx entity.EvidenceContext) (entity.ExtractionResult, error)
}

// RunReader serves the extraction run log.
type RunReader interface {
	Get(ctx context.Context, runID uuid.UUID) (entity.ExtractionRun, error)
	ListRecent(ctx context.Context, limit int) ([]entity.ExtractionRun, error)
	Files(ctx context.Context, runID uuid.UUID) ([]entity.EvidenceFile, error)
}

// HealthChecker reports whether a dependency is usable.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// HealthFunc adapts a function to HealthChecker.
type HealthFunc func(ctx context.Context) error

func (f HealthFunc) Check(ctx context.Context) error { return f(ctx) }

// Deps are the collaborators of the HTTP API. Runs, Workbook and Checks are optional.
type Deps struct {
	Extractor      Extractor
	Runs           RunReader
	Workbook       *export.Service
	Checks         map[string]HealthChecker
	Logger         *slog.Logger
	RequestTimeout time.Duration
	CORSOrigins    []string
}

type Router struct {
	deps   Deps
	logger *slog.Logger
}

// NewRouter builds the HTTP API.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Workbook == nil {
		deps.Workbook = export.NewService(deps.Logger)
	}
	r := &Router{deps: deps, logger: deps.Logger}

	mux := chi.NewRouter()
	mux.Use(middleware.RealIP)
	mux.Use(requestID)
	mux.Use(requestLogger(deps.Logger))
	mux.Use(middleware.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins(deps.CORSOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{headerRequestID, headerNeedsReview},
		MaxAge:         300,
	}))

	mux.Get("/health", r.handleHealth)

	mux.Route("/api", func(rt chi.Router) {
		rt.Post("/evidence/extract", r.wrap(r.handleExtract))
		rt.Get("/evidence/requirements", r.wrap(r.handleRequirements))
		if deps.Runs != nil {
			rt.Get("/runs", r.wrap(r.handleListRuns))
			rt.Get("/runs/{id}", r.wrap(r.handleGetRun))
		}
	})
	return mux
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
