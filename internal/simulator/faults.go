package simulator

import "time"

// Fault injection and inspection hooks for tests.

// SetMute makes the device swallow commands without replying, so
// clients hit their read timeouts.
func (d *Device) SetMute(mute bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mute = mute
}

// SetReplyDelay delays every reply by the given duration. Zero
// disables the delay.
func (d *Device) SetReplyDelay(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.replyDelay = delay
}

// FailCommand makes every command matching the (uppercase) prefix
// answer "ERROR:<detail>", or a bare "ERROR" when detail is empty.
func (d *Device) FailCommand(prefix, detail string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failCommands[prefix] = detail
}

// ClearFaults removes every scripted failure, delay and mute.
func (d *Device) ClearFaults() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mute = false
	d.replyDelay = 0
	d.failCommands = make(map[string]string)
}

// DropConnections closes every live connection without stopping the
// listener, so clients can reconnect.
func (d *Device) DropConnections() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, conn := range d.conns {
		conn.Close()
	}
	d.conns = nil
}

// Broadcasting reports the simulated carrier state.
func (d *Device) Broadcasting() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.broadcasting
}

// Triggered reports the watchdog triggered latch.
func (d *Device) Triggered() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.triggered
}

// Channel returns one channel's registers (1-based).
func (d *Device) Channel(n int) (enabled bool, freqHz int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n < 1 || n > len(d.channels) {
		return false, 0
	}
	return d.channels[n-1].enabled, d.channels[n-1].freqHz
}

// Resets returns how many WATCHDOG:RESET commands landed.
func (d *Device) Resets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resets
}

// Accepted returns how many connections the device has accepted.
func (d *Device) Accepted() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.accepted
}

// Received returns a copy of every command line seen so far.
func (d *Device) Received() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.received))
	copy(out, d.received)
	return out
}
