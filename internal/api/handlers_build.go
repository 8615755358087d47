package api

import (
	"errors"
	"net/http"

	"github.com/dgallion1/docgraph/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

type buildResponse struct {
	Run    pipeline.RunSnapshot `json:"run"`
	Report *pipeline.Report     `json:"report,omitempty"`
}

// handleBuild runs a full rebuild synchronously.
func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	rep, err := s.builder.Build(r.Context())
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrDocsRoot) {
			code = http.StatusUnprocessableEntity
		}
		resp := map[string]any{"error": err.Error()}
		if run, _ := s.builder.History().Latest(); run != nil {
			resp["run"] = run.Snapshot()
		}
		writeJSON(w, code, resp)
		return
	}
	run, _ := s.builder.History().Get(rep.RunID)
	resp := buildResponse{Report: rep}
	if run != nil {
		resp.Run = run.Snapshot()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLatestBuild(w http.ResponseWriter, r *http.Request) {
	run, rep := s.builder.History().Latest()
	if run == nil {
		jsonError(w, "no build has run", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, buildResponse{Run: run.Snapshot(), Report: rep})
}

func (s *Server) handleBuildStatus(w http.ResponseWriter, r *http.Request) {
	run, rep := s.builder.History().Get(chi.URLParam(r, "runID"))
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, buildResponse{Run: run.Snapshot(), Report: rep})
}
