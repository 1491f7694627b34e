package transmitter

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
)

// mockDevice simulates the transmitter control port: line commands
// in, line replies out, with scriptable status and fault injection.
type mockDevice struct {
	listener net.Listener

	mu           sync.Mutex
	conns        []net.Conn
	received     []string
	broadcasting bool
	triggered    bool
	warning      bool
	source       string
	message      int
	loading      bool
	mute         bool
	resets       int
	accepted     int

	done chan struct{}
}

func newMockDevice(t *testing.T) *mockDevice {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create listener: %v", err)
	}

	d := &mockDevice{
		listener: listener,
		source:   "BRAM",
		done:     make(chan struct{}),
	}
	go d.acceptLoop()
	return d
}

func (d *mockDevice) acceptLoop() {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			return
		}
		d.mu.Lock()
		d.conns = append(d.conns, conn)
		d.accepted++
		d.mu.Unlock()
		go d.serve(conn)
	}
}

func (d *mockDevice) serve(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		d.mu.Lock()
		d.received = append(d.received, line)
		if d.mute {
			// Swallow the command unprocessed, let the client
			// time out.
			d.mu.Unlock()
			continue
		}
		reply := d.replyLocked(strings.ToUpper(line))
		d.mu.Unlock()
		if _, err := conn.Write([]byte(reply + "\n")); err != nil {
			return
		}
	}
}

// replyLocked implements the device's command set. Caller holds mu.
func (d *mockDevice) replyLocked(cmd string) string {
	switch {
	case cmd == "*IDN?":
		return "RedPitaya,AMRadio-12CH,v2.0"
	case cmd == "STATUS?":
		return fmt.Sprintf(
			"broadcasting=%d;source=%s;current_msg=%d;audio_loading=%d;ch1_enabled=1;ch1_freq=540000",
			boolBit(d.broadcasting), d.source, d.message, boolBit(d.loading),
		)
	case cmd == "WATCHDOG:STATUS?":
		return fmt.Sprintf("watchdog_enabled=1;watchdog_triggered=%d;watchdog_warning=%d;watchdog_time=5",
			boolBit(d.triggered), boolBit(d.warning))
	case cmd == "WATCHDOG:RESET":
		d.resets++
		d.triggered = false
		return "OK"
	case cmd == "OUTPUT:STATE ON":
		d.broadcasting = true
		return "OK"
	case cmd == "OUTPUT:STATE OFF":
		d.broadcasting = false
		return "OK"
	case strings.HasPrefix(cmd, "FREQ:CH"):
		return "OK"
	case strings.HasPrefix(cmd, "CH:EN "):
		return "OK"
	case strings.HasPrefix(cmd, "CH") && strings.Contains(cmd, ":OUTPUT"):
		return "OK"
	case strings.HasPrefix(cmd, "SOURCE:MODE "):
		d.source = strings.TrimPrefix(cmd, "SOURCE:MODE ")
		return "OK"
	case strings.HasPrefix(cmd, "SOURCE:MSG "):
		return "OK:LOADING"
	case strings.HasPrefix(cmd, "WATCHDOG:ENABLE"):
		return "OK"
	default:
		return "ERROR"
	}
}

func boolBit(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (d *mockDevice) Address() string {
	return d.listener.Addr().String()
}

// Received returns a copy of every command line seen so far.
func (d *mockDevice) Received() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.received))
	copy(out, d.received)
	return out
}

// ReceivedCount returns how many times a command was received.
func (d *mockDevice) ReceivedCount(cmd string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, line := range d.received {
		if strings.EqualFold(line, cmd) {
			n++
		}
	}
	return n
}

// Accepted returns how many connections the device has accepted.
func (d *mockDevice) Accepted() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.accepted
}

// Resets returns how many WATCHDOG:RESET commands landed.
func (d *mockDevice) Resets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resets
}

// Broadcasting reports the simulated carrier state.
func (d *mockDevice) Broadcasting() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.broadcasting
}

// SetMute makes the device swallow commands without replying.
func (d *mockDevice) SetMute(mute bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mute = mute
}

// SetTriggered scripts the watchdog triggered flag.
func (d *mockDevice) SetTriggered(triggered bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.triggered = triggered
}

// SetWarning scripts the watchdog warning flag.
func (d *mockDevice) SetWarning(warning bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.warning = warning
}

// SetBroadcasting scripts the carrier flag directly.
func (d *mockDevice) SetBroadcasting(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.broadcasting = on
}

// DropConnections closes every live connection without stopping the
// listener, so clients can reconnect.
func (d *mockDevice) DropConnections() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, conn := range d.conns {
		conn.Close()
	}
	d.conns = nil
}

func (d *mockDevice) Close() {
	close(d.done)
	d.listener.Close()
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, conn := range d.conns {
		conn.Close()
	}
	d.conns = nil
}
