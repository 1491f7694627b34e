package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// SystemResetRequest defines the options for a system data reset.
type SystemResetRequest struct {
	ClearAudit       bool   `json:"clear_audit"`
	ClearTransitions bool   `json:"clear_transitions"`
	ClearExecutions  bool   `json:"clear_executions"`
	ClearPrograms    bool   `json:"clear_programs"`
	Confirm          string `json:"confirm"`
}

// SystemResetResponse reports what was deleted.
type SystemResetResponse struct {
	Status  string         `json:"status"`
	Deleted map[string]int `json:"deleted"`
}

// handleSystemInfo returns daemon and transmitter identity for the
// dashboard's about panel.
func (s *Server) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"version":        s.version,
		"started_at":     s.startTime.UTC().Format(time.RFC3339),
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
	}

	if s.supervisor != nil {
		state := s.supervisor.State()
		info["transmitter"] = map[string]any{
			"connection": state.Connection,
			"broadcast":  state.Broadcast,
			"watchdog":   state.Watchdog,
			"identity":   state.Identity,
			"stale":      state.Stale,
		}
	}

	if s.db != nil {
		info["database"] = map[string]any{
			"path": s.db.Path(),
		}
	}
	if s.programs != nil {
		info["program_count"] = s.programs.Count()
	}
	if s.hub != nil {
		info["ws_clients"] = s.hub.ClientCount()
	}

	writeJSON(w, http.StatusOK, info)
}

// handleSystemReset clears selected operational data from the database
// in a single transaction.
//
// This is a destructive operation — the request must include an exact
// confirmation string as a safety guard.
func (s *Server) handleSystemReset(w http.ResponseWriter, r *http.Request) { //nolint:gocognit // sequential table wipe with per-table error reporting
	var req SystemResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	// Safety guard: require exact confirmation string.
	if req.Confirm != "RESET SYSTEM DATA" {
		writeBadRequest(w, `confirm field must be exactly "RESET SYSTEM DATA"`)
		return
	}

	if !req.ClearAudit && !req.ClearTransitions && !req.ClearExecutions && !req.ClearPrograms {
		writeBadRequest(w, "at least one clear_* option must be true")
		return
	}

	if s.db == nil {
		writeServiceUnavailable(w, "database not configured")
		return
	}

	ctx := r.Context()
	deleted := make(map[string]int)

	// Execute all DELETEs in a single transaction, respecting FK order.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("system reset: failed to begin transaction", "error", err)
		writeInternalError(w, "failed to begin transaction")
		return
	}
	defer tx.Rollback() //nolint:errcheck // rollback is a no-op after commit

	deleteFrom := func(table string) error {
		result, err := tx.ExecContext(ctx, "DELETE FROM "+table)
		if err != nil {
			return err
		}
		n, _ := result.RowsAffected()
		deleted[table] = int(n)
		return nil
	}

	if req.ClearAudit {
		if err := deleteFrom("audit_logs"); err != nil {
			s.logger.Error("system reset: failed to clear audit_logs", "error", err)
			writeInternalError(w, "failed to clear audit entries")
			return
		}
	}

	if req.ClearTransitions {
		if err := deleteFrom("state_transitions"); err != nil {
			s.logger.Error("system reset: failed to clear state_transitions", "error", err)
			writeInternalError(w, "failed to clear state history")
			return
		}
	}

	// Executions are a child of programs, so clearing programs implies
	// clearing executions first.
	if req.ClearExecutions || req.ClearPrograms {
		if err := deleteFrom("program_executions"); err != nil {
			s.logger.Error("system reset: failed to clear program_executions", "error", err)
			writeInternalError(w, "failed to clear program executions")
			return
		}
	}

	if req.ClearPrograms {
		if err := deleteFrom("programs"); err != nil {
			s.logger.Error("system reset: failed to clear programs", "error", err)
			writeInternalError(w, "failed to clear programs")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("system reset: failed to commit transaction", "error", err)
		writeInternalError(w, "failed to commit system reset")
		return
	}

	s.logger.Info("system reset committed", "deleted", deleted)

	// Refresh the in-memory program cache after a successful wipe.
	if req.ClearPrograms && s.programs != nil {
		if err := s.programs.RefreshCache(ctx); err != nil {
			s.logger.Warn("system reset: failed to refresh program cache", "error", err)
		}
	}

	actor := actorFromContext(ctx)
	s.auditSuccess("system.reset", actor, map[string]any{"deleted": deleted})

	writeJSON(w, http.StatusOK, SystemResetResponse{
		Status:  "ok",
		Deleted: deleted,
	})
}
