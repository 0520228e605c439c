package api

import (
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.meter == nil || s.meter.Stats() == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"provider":    s.cfg.LLMProvider,
		"model":       s.meter.Model(),
		"queue_depth": s.orchestrator.QueueDepth(),
		"stats":       s.meter.Stats().Snapshot(),
	})
}
