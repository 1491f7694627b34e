package api

import (
	"net/http"
)

// handleGetState returns the current transmitter state snapshot.
//
// The snapshot is the supervisor's canonical device view: connection,
// broadcast and watchdog machines, source, channels, temperature. A
// set Stale flag means polling is not delivering fresh reports and the
// snapshot is last-known, not current.
func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.supervisor.State())
}

// handleGetStats returns supervisor counters: poll ticks, errors,
// reconnects, heartbeat age, and transport/bus statistics.
func (s *Server) handleGetStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.supervisor.Stats())
}
