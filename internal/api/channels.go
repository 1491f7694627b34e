package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-radio/internal/transmitter"
)

// updateChannelRequest is the PATCH /channels/{id} body. Omitted
// fields keep their current value.
type updateChannelRequest struct {
	Enabled     *bool  `json:"enabled,omitempty"`
	FrequencyHz *int64 `json:"frequency_hz,omitempty"`
}

// channelPlanRequest is the POST /channels/plan body.
type channelPlanRequest struct {
	Count int `json:"count"`
}

// handleListChannels returns the per-channel configuration from the
// current snapshot.
func (s *Server) handleListChannels(w http.ResponseWriter, _ *http.Request) {
	state := s.supervisor.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"channels": state.Channels,
		"count":    len(state.Channels),
		"stale":    state.Stale,
	})
}

// handleUpdateChannel reconfigures one channel: enable state and/or
// carrier frequency.
func (s *Server) handleUpdateChannel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "channel id must be a number")
		return
	}
	if id < 1 || id > transmitter.ChannelCount {
		writeBadRequest(w, "channel id out of range")
		return
	}

	var req updateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Enabled == nil && req.FrequencyHz == nil {
		writeBadRequest(w, "at least one of enabled, frequency_hz is required")
		return
	}

	// Fill the unchanged side from the current snapshot.
	current := s.supervisor.State().Channels[id-1]
	enabled := current.Enabled
	frequency := current.FrequencyHz
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	if req.FrequencyHz != nil {
		frequency = *req.FrequencyHz
	}

	actor := actorFromContext(r.Context())
	if err := s.supervisor.SetChannel(r.Context(), id, enabled, frequency); err != nil {
		s.auditFailure("channel.update", actor, err, map[string]any{"channel": id})
		writeTransmitterError(w, err)
		return
	}

	s.auditSuccess("channel.update", actor, map[string]any{
		"channel":      id,
		"enabled":      enabled,
		"frequency_hz": frequency,
	})

	writeJSON(w, http.StatusOK, s.supervisor.State().Channels[id-1])
}

// handleChannelPlan applies a station preset: the first count channels
// enabled on an evenly spaced frequency plan, the rest disabled.
func (s *Server) handleChannelPlan(w http.ResponseWriter, r *http.Request) {
	var req channelPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if _, err := transmitter.PlanPreset(req.Count); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	actor := actorFromContext(r.Context())
	if err := s.supervisor.ApplyPreset(r.Context(), req.Count); err != nil {
		s.auditFailure("channel.plan", actor, err, map[string]any{"count": req.Count})
		writeTransmitterError(w, err)
		return
	}

	s.auditSuccess("channel.plan", actor, map[string]any{"count": req.Count})

	state := s.supervisor.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"channels": state.Channels,
		"count":    req.Count,
	})
}
