package api

import (
	"context"
	"net/http"
)

// Control handlers drive the transmitter supervisor. Every action is
// audited with the authenticated operator as the actor, and domain
// errors map onto HTTP codes via writeTransmitterError: state
// conflicts 409, validation 400, session problems 503.

// controlAction runs one supervisor operation and writes the outcome.
func (s *Server) controlAction(w http.ResponseWriter, r *http.Request, action string, op func(context.Context) error) {
	actor := actorFromContext(r.Context())

	if err := op(r.Context()); err != nil {
		s.logger.Warn("control action failed", "action", action, "actor", actor, "error", err)
		s.auditFailure(action, actor, err, nil)
		writeTransmitterError(w, err)
		return
	}

	s.auditSuccess(action, actor, nil)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"state":  s.supervisor.State(),
	})
}

// handleConnect establishes the device session.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	s.controlAction(w, r, "control.connect", s.supervisor.Connect)
}

// handleDisconnect tears the device session down. The supervisor
// stops the carrier first when it is broadcasting.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.controlAction(w, r, "control.disconnect", s.supervisor.Disconnect)
}

// handleArm moves the broadcast machine to Armed.
func (s *Server) handleArm(w http.ResponseWriter, r *http.Request) {
	s.controlAction(w, r, "control.arm", s.supervisor.Arm)
}

// handleStartBroadcast turns the carrier on. Requires Armed.
func (s *Server) handleStartBroadcast(w http.ResponseWriter, r *http.Request) {
	s.controlAction(w, r, "control.start", s.supervisor.StartBroadcast)
}

// handleStopBroadcast turns the carrier off.
func (s *Server) handleStopBroadcast(w http.ResponseWriter, r *http.Request) {
	s.controlAction(w, r, "control.stop", s.supervisor.StopBroadcast)
}

// handleEmergencyStop kills the carrier and latches Emergency.
func (s *Server) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	s.controlAction(w, r, "control.emergency_stop", s.supervisor.EmergencyStop)
}

// handleClearEmergency releases the Emergency latch back to Idle.
func (s *Server) handleClearEmergency(w http.ResponseWriter, r *http.Request) {
	s.controlAction(w, r, "control.clear_emergency", s.supervisor.ClearEmergency)
}

// handleWatchdogReset feeds the hardware watchdog out of band. The
// poll loop feeds it continuously; this exists for manual recovery
// after a trip.
func (s *Server) handleWatchdogReset(w http.ResponseWriter, r *http.Request) {
	s.controlAction(w, r, "control.watchdog_reset", s.supervisor.ResetWatchdog)
}
