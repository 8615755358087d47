package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dgallion1/docgraph/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Builder is the build surface the server exposes.
type Builder interface {
	Build(ctx context.Context) (*pipeline.Report, error)
	History() *pipeline.History
	OutputPath() string
}

// Server is the HTTP API server for docgraph.
type Server struct {
	router  chi.Router
	builder Builder
	log     *slog.Logger
	apiKey  string
}

// NewServer creates and configures the HTTP server. When apiKey is set,
// triggering a build requires it as a bearer token.
func NewServer(b Builder, log *slog.Logger, apiKey string) *Server {
	s := &Server{
		builder: b,
		log:     log,
		apiKey:  apiKey,
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

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Get("/api/tree", s.handleTree)
	r.Get("/api/build", s.handleLatestBuild)
	r.Get("/api/build/{runID}", s.handleBuildStatus)

	r.Group(func(r chi.Router) {
		if s.apiKey != "" {
			r.Use(RequireBuildKey(s.apiKey, s.log))
		}
		r.Post("/api/build", s.handleBuild)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
