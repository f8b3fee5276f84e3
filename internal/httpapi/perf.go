package httpapi

import "net/http"

// handlePerfLatency reports rolling per-stage latencies of the question
// pipeline. A server without metrics reports an empty window.
func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.metrics.SnapshotTurnStages())
}

func (s *Server) handlePerfLatencyReset(w http.ResponseWriter, _ *http.Request) {
	s.metrics.ResetTurnStages()
	w.WriteHeader(http.StatusNoContent)
}
