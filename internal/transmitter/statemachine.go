package transmitter

import (
	"fmt"
	"sync"
)

// StateChange reports the outcome of a state machine command.
//
// Changed is false when the command was an idempotent confirmation
// that matched the current state, in which case From equals To.
type StateChange struct {
	From    BroadcastState `json:"from"`
	To      BroadcastState `json:"to"`
	Changed bool           `json:"changed"`

	// Reason is set on forced transitions.
	Reason string `json:"reason,omitempty"`
}

// BroadcastMachine owns the broadcast lifecycle state.
//
// Commands split into requests and confirmations. Requests express
// operator intent and fail loudly when the current state does not
// allow them. Confirmations record what the device actually did and
// are idempotent: confirming a state the machine already left (or
// already reached) is a no-op, because poll replies race against
// operator commands.
type BroadcastMachine struct {
	mu    sync.Mutex
	state BroadcastState
}

// NewBroadcastMachine starts in Idle.
func NewBroadcastMachine() *BroadcastMachine {
	return &BroadcastMachine{state: BroadcastIdle}
}

// State returns the current broadcast state.
func (m *BroadcastMachine) State() BroadcastState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RequestArm moves Idle to Arming.
func (m *BroadcastMachine) RequestArm() (StateChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case BroadcastIdle:
		return m.transition(BroadcastArming), nil
	case BroadcastEmergency:
		return m.reject("cannot arm during emergency stop")
	default:
		return m.reject(fmt.Sprintf("cannot arm while %s", m.state))
	}
}

// ConfirmArmed records that the device finished arming. No-op
// outside Arming.
func (m *BroadcastMachine) ConfirmArmed() (StateChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == BroadcastArming {
		return m.transition(BroadcastArmed), nil
	}
	return m.noop(), nil
}

// RequestStart moves Armed to Starting.
func (m *BroadcastMachine) RequestStart() (StateChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case BroadcastArmed:
		return m.transition(BroadcastStarting), nil
	case BroadcastIdle:
		return m.reject("must arm before broadcasting")
	case BroadcastEmergency:
		return m.reject("cannot start during emergency stop")
	default:
		return m.reject(fmt.Sprintf("cannot start while %s", m.state))
	}
}

// ConfirmBroadcasting records that the device reports a live
// carrier. Accepted from Starting, and also from Arming or Armed:
// the device is authoritative, and a poll can observe the carrier
// before the start request lands in the machine.
func (m *BroadcastMachine) ConfirmBroadcasting() (StateChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case BroadcastStarting, BroadcastArming, BroadcastArmed:
		return m.transition(BroadcastBroadcasting), nil
	default:
		return m.noop(), nil
	}
}

// RequestStop winds the lifecycle down. Before the carrier is up it
// returns straight to Idle; with a carrier (or one coming up) it
// moves to Stopping and waits for device confirmation.
func (m *BroadcastMachine) RequestStop() (StateChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case BroadcastIdle:
		return m.reject("not broadcasting")
	case BroadcastArming, BroadcastArmed:
		return m.transition(BroadcastIdle), nil
	case BroadcastStarting, BroadcastBroadcasting:
		return m.transition(BroadcastStopping), nil
	case BroadcastStopping:
		return m.reject("stop already in progress")
	case BroadcastEmergency:
		return m.reject("use emergency stop to leave emergency")
	default:
		return m.reject(fmt.Sprintf("cannot stop while %s", m.state))
	}
}

// ConfirmStopped records that the device reports no carrier.
// Accepted from Stopping, and also from Starting or Broadcasting
// when the device dropped the output on its own.
func (m *BroadcastMachine) ConfirmStopped() (StateChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case BroadcastStopping, BroadcastStarting, BroadcastBroadcasting:
		return m.transition(BroadcastIdle), nil
	default:
		return m.noop(), nil
	}
}

// RequestEmergency cuts to Emergency from any state except
// Emergency itself.
func (m *BroadcastMachine) RequestEmergency() (StateChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == BroadcastEmergency {
		return m.reject("already in emergency stop")
	}
	return m.transition(BroadcastEmergency), nil
}

// RequestStopEmergency leaves Emergency for Idle.
func (m *BroadcastMachine) RequestStopEmergency() (StateChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != BroadcastEmergency {
		return m.reject("not in emergency stop")
	}
	return m.transition(BroadcastIdle), nil
}

// ForceIdle resets the machine unconditionally. Reserved for the
// watchdog trigger path, where the device has already killed the RF
// output and the lifecycle must follow.
func (m *BroadcastMachine) ForceIdle(reason string) StateChange {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == BroadcastIdle {
		change := m.noop()
		change.Reason = reason
		return change
	}
	change := m.transition(BroadcastIdle)
	change.Reason = reason
	return change
}

// transition moves to a new state. Caller holds the lock.
func (m *BroadcastMachine) transition(to BroadcastState) StateChange {
	change := StateChange{From: m.state, To: to, Changed: m.state != to}
	m.state = to
	return change
}

// noop reports the current state unchanged. Caller holds the lock.
func (m *BroadcastMachine) noop() StateChange {
	return StateChange{From: m.state, To: m.state}
}

// reject wraps ErrInvalidTransition with the current state attached.
// Caller holds the lock.
func (m *BroadcastMachine) reject(why string) (StateChange, error) {
	return m.noop(), fmt.Errorf("%w: %s (state %s)", ErrInvalidTransition, why, m.state)
}
