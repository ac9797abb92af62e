package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fornax/internal/config"
	"fornax/internal/logging"
	"fornax/internal/pipeline"
	"fornax/internal/services/archivematica"
	"fornax/internal/services/cleanup"
	"fornax/internal/sips"
)

// Server routes HTTP requests to the store, the pipeline runner, and the
// housekeeping services.
type Server struct {
	cfg     *config.Config
	store   *sips.Store
	runner  *pipeline.Runner
	cleanup *cleanup.Routine
	clients archivematica.Factory
	logger  *slog.Logger
}

// NewServer wires the HTTP surface.
func NewServer(
	cfg *config.Config,
	store *sips.Store,
	runner *pipeline.Runner,
	routine *cleanup.Routine,
	clients archivematica.Factory,
	logger *slog.Logger,
) *Server {
	return &Server{
		cfg:     cfg,
		store:   store,
		runner:  runner,
		cleanup: routine,
		clients: clients,
		logger:  logging.NewComponentLogger(logger, "api"),
	}
}

// Handler builds the chi router with all endpoints registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout()))

	r.Get("/status", s.handleStatus)

	r.Post("/sips", s.handleCreateSIP)
	r.Get("/sips", s.handleListSIPs)
	r.Get("/sips/{identifier}", s.handleGetSIP)

	r.Post("/extract", s.stageTrigger(sips.StageExtract))
	r.Post("/restructure", s.stageTrigger(sips.StageRestructure))
	r.Post("/assemble", s.stageTrigger(sips.StageAssemble))
	r.Post("/start", s.stageTrigger(sips.StageStartTransfer))
	r.Post("/request-cleanup", s.stageTrigger(sips.StageRequestCleanup))

	r.Post("/cleanup", s.handleCleanup)
	r.Post("/remove-transfers", s.closeCompleted(archivematica.UnitTransfer))
	r.Post("/remove-ingests", s.closeCompleted(archivematica.UnitIngest))

	return r
}

func (s *Server) requestTimeout() time.Duration {
	timeout := time.Duration(s.cfg.Workflow.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return timeout
}
