package api

import (
	"net/http"

	"github.com/dgallion1/codebook/internal/artifact"
	"github.com/go-chi/chi/v5"
)

// store returns the artifact store, writing a 503 when none is configured.
func (s *Server) store(w http.ResponseWriter) artifact.Store {
	st := s.orchestrator.Store()
	if st == nil {
		jsonError(w, "artifact storage is not configured", http.StatusServiceUnavailable)
	}
	return st
}

func (s *Server) handleListCodebooks(w http.ResponseWriter, r *http.Request) {
	st := s.store(w)
	if st == nil {
		return
	}
	docs, err := st.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if docs == nil {
		docs = []artifact.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"codebooks": docs})
}

func (s *Server) handleGetTOC(w http.ResponseWriter, r *http.Request) {
	st := s.store(w)
	if st == nil {
		return
	}
	doc, err := st.LoadTOC(r.Context(), chi.URLParam(r, "docID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetRelevance(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		jsonError(w, "target is required", http.StatusBadRequest)
		return
	}
	st := s.store(w)
	if st == nil {
		return
	}
	rel, err := st.LoadRelevance(r.Context(), chi.URLParam(r, "docID"), target)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

func (s *Server) handleDeleteCodebook(w http.ResponseWriter, r *http.Request) {
	st := s.store(w)
	if st == nil {
		return
	}
	docID := chi.URLParam(r, "docID")
	if err := st.Delete(r.Context(), docID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": docID})
}
