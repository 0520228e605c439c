package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/codebook/internal/config"
	"github.com/dgallion1/codebook/internal/llm"
	"github.com/dgallion1/codebook/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for the codebook pipeline.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	meter        *llm.Metered
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. meter may be nil when
// the reasoning service is not metered.
func NewServer(orch *pipeline.Orchestrator, meter *llm.Metered, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		meter:        meter,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	// Synchronous stages.
	r.Post("/api/toc", s.handleTOC)
	r.Post("/api/flatten", s.handleFlatten)
	r.Post("/api/classify", s.handleClassify)

	// Full pipeline as a background job.
	r.Post("/api/analyze", s.handleAnalyze)
	r.Get("/api/analyze/{jobID}/status", s.handleAnalyzeStatus)
	r.Get("/api/analyze/{jobID}/result", s.handleAnalyzeResult)

	r.Route("/api/codebooks", func(r chi.Router) {
		r.Get("/", s.handleListCodebooks)
		r.Get("/{docID}/toc", s.handleGetTOC)
		r.Get("/{docID}/relevance", s.handleGetRelevance)
		r.Delete("/{docID}", s.handleDeleteCodebook)
	})

	r.Get("/api/stats/llm", s.handleLLMStats)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
