package api

import "net/http"

// handleGetStats serves a live snapshot of run progress.
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.counters.Snapshot())
}
