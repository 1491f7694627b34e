package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-radio/internal/program"
	"github.com/nerrad567/gray-logic-radio/internal/transmitter"
)

// ─── Request Types ─────────────────────────────────────────────────

type createProgramRequest struct {
	Name        string                   `json:"name"`
	Slug        string                   `json:"slug,omitempty"`
	Description string                   `json:"description,omitempty"`
	Enabled     *bool                    `json:"enabled,omitempty"`
	Source      string                   `json:"source,omitempty"`
	Message     int                      `json:"message,omitempty"`
	Channels    []program.ChannelSetting `json:"channels"`
	SortOrder   int                      `json:"sort_order,omitempty"`
}

type updateProgramRequest struct {
	Name        *string                   `json:"name,omitempty"`
	Description *string                   `json:"description,omitempty"`
	Enabled     *bool                     `json:"enabled,omitempty"`
	Source      *string                   `json:"source,omitempty"`
	Message     *int                      `json:"message,omitempty"`
	Channels    *[]program.ChannelSetting `json:"channels,omitempty"`
	SortOrder   *int                      `json:"sort_order,omitempty"`
}

type activateProgramRequest struct {
	// TriggeredBy overrides the actor recorded on the execution.
	// Defaults to the authenticated operator.
	TriggeredBy string `json:"triggered_by,omitempty"`
}

// writeProgramError maps program domain errors onto HTTP codes.
func writeProgramError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, program.ErrProgramNotFound),
		errors.Is(err, program.ErrExecutionNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, program.ErrProgramExists):
		writeConflict(w, err.Error())
	case errors.Is(err, program.ErrProgramDisabled):
		writeConflict(w, err.Error())
	case errors.Is(err, program.ErrTransmitterUnavailable):
		writeServiceUnavailable(w, err.Error())
	case errors.Is(err, program.ErrInvalidProgram),
		errors.Is(err, program.ErrInvalidName),
		errors.Is(err, program.ErrInvalidSlug),
		errors.Is(err, program.ErrInvalidChannels):
		writeBadRequest(w, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}

// ─── Handlers ──────────────────────────────────────────────────────

// handleListPrograms returns all broadcast programs, sorted for display.
func (s *Server) handleListPrograms(w http.ResponseWriter, r *http.Request) {
	if s.programs == nil {
		writeServiceUnavailable(w, "programs not configured")
		return
	}

	programs, err := s.programs.List(r.Context())
	if err != nil {
		s.logger.Error("list programs failed", "error", err)
		writeInternalError(w, "failed to list programs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"programs": programs,
		"count":    len(programs),
	})
}

// handleGetProgram returns a single program by ID.
func (s *Server) handleGetProgram(w http.ResponseWriter, r *http.Request) {
	if s.programs == nil {
		writeServiceUnavailable(w, "programs not configured")
		return
	}

	prog, err := s.programs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeProgramError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, prog)
}

// handleCreateProgram creates a broadcast program.
func (s *Server) handleCreateProgram(w http.ResponseWriter, r *http.Request) {
	if s.programs == nil {
		writeServiceUnavailable(w, "programs not configured")
		return
	}

	var req createProgramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	source := transmitter.SourceBRAM
	if req.Source != "" {
		parsed, err := transmitter.ParseSourceMode(req.Source)
		if err != nil {
			writeBadRequest(w, "source must be BRAM or ADC")
			return
		}
		source = parsed
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	prog := &program.Program{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Enabled:     enabled,
		Source:      source,
		Message:     req.Message,
		Channels:    req.Channels,
		SortOrder:   req.SortOrder,
	}

	if err := s.programs.Create(r.Context(), prog); err != nil {
		writeProgramError(w, err)
		return
	}

	actor := actorFromContext(r.Context())
	s.logger.Info("program created", "program_id", prog.ID, "slug", prog.Slug, "created_by", actor)
	s.auditSuccess("program.create", actor, map[string]any{
		"program_id": prog.ID,
		"slug":       prog.Slug,
	})

	writeJSON(w, http.StatusCreated, prog)
}

// handleUpdateProgram modifies a program's mutable fields.
func (s *Server) handleUpdateProgram(w http.ResponseWriter, r *http.Request) { //nolint:gocognit // field patching over the existing record
	if s.programs == nil {
		writeServiceUnavailable(w, "programs not configured")
		return
	}

	id := chi.URLParam(r, "id")

	var req updateProgramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	prog, err := s.programs.Get(r.Context(), id)
	if err != nil {
		writeProgramError(w, err)
		return
	}

	if req.Name != nil {
		prog.Name = *req.Name
	}
	if req.Description != nil {
		prog.Description = *req.Description
	}
	if req.Enabled != nil {
		prog.Enabled = *req.Enabled
	}
	if req.Source != nil {
		parsed, err := transmitter.ParseSourceMode(*req.Source)
		if err != nil {
			writeBadRequest(w, "source must be BRAM or ADC")
			return
		}
		prog.Source = parsed
	}
	if req.Message != nil {
		prog.Message = *req.Message
	}
	if req.Channels != nil {
		prog.Channels = *req.Channels
	}
	if req.SortOrder != nil {
		prog.SortOrder = *req.SortOrder
	}

	if err := s.programs.Update(r.Context(), prog); err != nil {
		writeProgramError(w, err)
		return
	}

	actor := actorFromContext(r.Context())
	s.auditSuccess("program.update", actor, map[string]any{"program_id": id})

	writeJSON(w, http.StatusOK, prog)
}

// handleDeleteProgram removes a program and its execution history.
func (s *Server) handleDeleteProgram(w http.ResponseWriter, r *http.Request) {
	if s.programs == nil {
		writeServiceUnavailable(w, "programs not configured")
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.programs.Delete(r.Context(), id); err != nil {
		writeProgramError(w, err)
		return
	}

	actor := actorFromContext(r.Context())
	s.auditSuccess("program.delete", actor, map[string]any{"program_id": id})

	w.WriteHeader(http.StatusNoContent)
}

// handleActivateProgram runs a program against the transmitter: arm,
// configure every channel, select the source, start the carrier. The
// execution record is returned by ID on completion.
func (s *Server) handleActivateProgram(w http.ResponseWriter, r *http.Request) {
	if s.programEngine == nil {
		writeServiceUnavailable(w, "program engine not configured")
		return
	}

	id := chi.URLParam(r, "id")
	actor := actorFromContext(r.Context())

	var req activateProgramRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}
	triggeredBy := req.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = actor
	}

	execID, err := s.programEngine.Activate(r.Context(), id, triggeredBy)
	if err != nil {
		s.auditFailure("program.activate", actor, err, map[string]any{"program_id": id})
		if execID == "" {
			writeProgramError(w, err)
			return
		}
		// The activation ran but did not complete cleanly; the
		// execution record carries the step-level detail.
		writeJSON(w, http.StatusConflict, map[string]any{
			"status":       "failed",
			"execution_id": execID,
			"error":        err.Error(),
		})
		return
	}

	s.auditSuccess("program.activate", actor, map[string]any{
		"program_id":   id,
		"execution_id": execID,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "activated",
		"execution_id": execID,
	})
}

// handleListProgramExecutions returns recent executions for a program,
// newest first.
func (s *Server) handleListProgramExecutions(w http.ResponseWriter, r *http.Request) {
	if s.programRepo == nil {
		writeServiceUnavailable(w, "programs not configured")
		return
	}

	id := chi.URLParam(r, "id")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	executions, err := s.programRepo.ListExecutions(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("list program executions failed", "error", err, "program_id", id)
		writeInternalError(w, "failed to list executions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"executions": executions,
		"count":      len(executions),
	})
}
