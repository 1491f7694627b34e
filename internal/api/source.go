package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-logic-radio/internal/transmitter"
)

// setSourceRequest is the PUT /source body. Message is only honoured
// for the stored-message source; selecting it triggers audio loading
// on the device.
type setSourceRequest struct {
	Mode    string `json:"mode"`
	Message *int   `json:"message,omitempty"`
}

// handleSetSource selects the modulation audio source, and optionally
// the stored message to play.
func (s *Server) handleSetSource(w http.ResponseWriter, r *http.Request) {
	var req setSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	mode, err := transmitter.ParseSourceMode(req.Mode)
	if err != nil {
		writeBadRequest(w, "mode must be BRAM or ADC")
		return
	}
	if req.Message != nil && mode != transmitter.SourceBRAM {
		writeBadRequest(w, "message selection requires the BRAM source")
		return
	}

	actor := actorFromContext(r.Context())

	if err := s.supervisor.SetSource(r.Context(), mode); err != nil {
		s.auditFailure("source.set", actor, err, map[string]any{"mode": mode})
		writeTransmitterError(w, err)
		return
	}

	if req.Message != nil {
		if err := s.supervisor.SelectMessage(r.Context(), *req.Message); err != nil {
			s.auditFailure("source.select_message", actor, err, map[string]any{"message": *req.Message})
			writeTransmitterError(w, err)
			return
		}
	}

	details := map[string]any{"mode": mode}
	if req.Message != nil {
		details["message"] = *req.Message
	}
	s.auditSuccess("source.set", actor, details)

	state := s.supervisor.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"source":          state.Source,
		"current_message": state.CurrentMessage,
		"audio_loading":   state.AudioLoading,
	})
}
