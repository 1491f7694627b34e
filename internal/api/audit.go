package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-radio/internal/audit"
)

// handleListAudit returns paginated audit entries with optional filters.
//
// Query parameters:
//   - action: filter by action (control.connect, program.activate, login, ...)
//   - actor: filter by operator username
//   - source: filter by origin (api, mqtt, system)
//   - outcome: filter by outcome (success, failure)
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeServiceUnavailable(w, "audit logging not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:  q.Get("action"),
		Actor:   q.Get("actor"),
		Source:  q.Get("source"),
		Outcome: q.Get("outcome"),
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleRecentAudit returns the most recent entries from the in-memory
// ring, without touching the database. Useful for dashboards polling at
// short intervals.
func (s *Server) handleRecentAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeServiceUnavailable(w, "audit logging not configured")
		return
	}

	n := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}

	entries := s.audit.Recent(n)

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
		"dropped": s.audit.Dropped(),
	})
}
