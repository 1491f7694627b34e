package transmitter

import (
	"sync"
	"time"
)

// WatchdogState summarises the hardware watchdog from the
// supervisor's point of view.
type WatchdogState string

const (
	// WatchdogOk means heartbeats are landing well inside the
	// device timeout.
	WatchdogOk WatchdogState = "ok"

	// WatchdogWarning means the last accepted heartbeat is older
	// than the warn threshold. Advisory only: nothing acts on it
	// beyond surfacing an event.
	WatchdogWarning WatchdogState = "warning"

	// WatchdogTriggered means the device reported that its
	// watchdog fired and killed the RF output.
	WatchdogTriggered WatchdogState = "triggered"
)

const (
	// defaultWatchdogTimeout mirrors the device's own setting. If
	// the device hears no WATCHDOG:RESET for this long it drops
	// the carrier on its own.
	defaultWatchdogTimeout = 5 * time.Second

	// watchdogWarnFraction of the timeout without an accepted
	// heartbeat moves the monitor to Warning.
	watchdogWarnFraction = 0.6
)

// WatchdogMonitor tracks heartbeat freshness against the device
// timeout.
//
// Triggered is a latch. Once set, whether from the device's own
// report or from Trip when heartbeats stop landing, it holds until
// ClearTrigger. The device clears its flag on the very next
// WATCHDOG:RESET, which the poll loop sends every tick; without the
// latch a trip would vanish before any operator saw it.
//
// Elapsed time alone only ever produces Warning. A slow poll loop
// must not be mistaken for a dead transmitter.
type WatchdogMonitor struct {
	timeout time.Duration
	warnAt  time.Duration

	mu            sync.Mutex
	lastReset     time.Time
	triggered     bool
	deviceWarning bool
}

// NewWatchdogMonitor creates a monitor for the given device timeout.
// Zero or negative selects the default.
func NewWatchdogMonitor(timeout time.Duration) *WatchdogMonitor {
	return NewWatchdogMonitorWithWarn(timeout, watchdogWarnFraction)
}

// NewWatchdogMonitorWithWarn creates a monitor with an explicit
// warning fraction. Fractions outside (0, 1) select the default.
func NewWatchdogMonitorWithWarn(timeout time.Duration, warnFraction float64) *WatchdogMonitor {
	if timeout <= 0 {
		timeout = defaultWatchdogTimeout
	}
	if warnFraction <= 0 || warnFraction >= 1 {
		warnFraction = watchdogWarnFraction
	}
	return &WatchdogMonitor{
		timeout: timeout,
		warnAt:  time.Duration(float64(timeout) * warnFraction),
	}
}

// Timeout returns the device timeout the monitor was built with.
func (m *WatchdogMonitor) Timeout() time.Duration { return m.timeout }

// NoteReset records a WATCHDOG:RESET the device acknowledged.
func (m *WatchdogMonitor) NoteReset(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastReset = at
}

// ObserveDevice records the device's own triggered flag from a
// WATCHDOG:STATUS? or STATUS? report. A reported trigger latches;
// reporting false does not clear it, only ClearTrigger does.
func (m *WatchdogMonitor) ObserveDevice(triggered bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if triggered {
		m.triggered = true
	}
}

// ObserveWarning records the device-reported warning flag. Unlike
// the trigger this is a level, not a latch: the device raises and
// lowers it as heartbeat margin changes.
func (m *WatchdogMonitor) ObserveWarning(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deviceWarning = active
}

// Trip latches the triggered state locally. Used when heartbeats can
// no longer be delivered: the device timeout has certainly elapsed
// on the far side and the RF output must be presumed dead.
func (m *WatchdogMonitor) Trip() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggered = true
}

// ClearTrigger releases the triggered latch. Only an explicit
// watchdog reset calls this.
func (m *WatchdogMonitor) ClearTrigger() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggered = false
}

// Reset returns the monitor to its initial state. Used when a
// session is deliberately closed.
func (m *WatchdogMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastReset = time.Time{}
	m.triggered = false
	m.deviceWarning = false
}

// SinceReset returns the time since the last acknowledged heartbeat,
// or zero when none has landed yet.
func (m *WatchdogMonitor) SinceReset(now time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastReset.IsZero() {
		return 0
	}
	return now.Sub(m.lastReset)
}

// State derives the watchdog state at the given instant.
func (m *WatchdogMonitor) State(now time.Time) WatchdogState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.triggered {
		return WatchdogTriggered
	}
	if m.deviceWarning {
		return WatchdogWarning
	}
	if m.lastReset.IsZero() {
		return WatchdogOk
	}
	if now.Sub(m.lastReset) >= m.warnAt {
		return WatchdogWarning
	}
	return WatchdogOk
}
