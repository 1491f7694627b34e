package simulator

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-radio/internal/transmitter"
)

const (
	// defaultListen is used when the config leaves the address empty.
	defaultListen = "127.0.0.1:5000"

	// defaultWatchdogTimeout mirrors the real device firmware.
	defaultWatchdogTimeout = 5 * time.Second

	// watchdogPollInterval is how often the watchdog goroutine
	// checks heartbeat freshness.
	watchdogPollInterval = 50 * time.Millisecond

	// warnFraction of the timeout without a heartbeat raises the
	// watchdog_warning flag in status reports.
	warnFraction = 0.6

	// loadingDuration is how long a message select keeps
	// audio_loading asserted.
	loadingDuration = 200 * time.Millisecond

	// identity is the *IDN? reply.
	identity = "GrayLogic,AMRadio-12CH,sim-1.0"
)

// Logger is the structured logging surface this package needs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// nopLogger discards everything. Used when no logger is configured.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// channelReg is one channel's register pair.
type channelReg struct {
	enabled bool
	freqHz  int64
}

// Device is an in-process transmitter simulator speaking the control
// protocol over TCP: line commands in, line replies out.
//
// It keeps the same registers the hardware does (carrier state, per
// channel enable and frequency, source select, message select) and
// enforces the watchdog contract the whole system is built around:
// when no WATCHDOG:RESET lands within the timeout, the carrier is
// forced off and the triggered flag latches until the next reset.
//
// Fault injection hooks (mute, reply delay, scripted error replies,
// connection drops) exist for exercising client failure paths.
type Device struct {
	listen  string
	timeout time.Duration
	logger  Logger

	listener net.Listener
	done     chan struct{}
	wg       sync.WaitGroup

	mu           sync.Mutex
	conns        []net.Conn
	accepted     int
	received     []string
	broadcasting bool
	channels     [transmitter.ChannelCount]channelReg
	source       transmitter.SourceMode
	message      int
	loading      bool
	temperature  float64
	wdEnabled    bool
	lastReset    time.Time
	triggered    bool
	resets       int

	// Fault injection.
	mute         bool
	replyDelay   time.Duration
	failCommands map[string]string
}

// New creates a simulator from config. The device is not listening
// until Start is called. A nil logger is replaced with a no-op.
func New(cfg config.SimulatorConfig, logger Logger) *Device {
	if logger == nil {
		logger = nopLogger{}
	}
	listen := cfg.Listen
	if listen == "" {
		listen = defaultListen
	}
	timeout := time.Duration(cfg.WatchdogTimeoutS) * time.Second
	if timeout <= 0 {
		timeout = defaultWatchdogTimeout
	}

	d := &Device{
		listen:       listen,
		timeout:      timeout,
		logger:       logger,
		done:         make(chan struct{}),
		source:       transmitter.SourceBRAM,
		temperature:  47.3,
		wdEnabled:    true,
		failCommands: make(map[string]string),
	}
	for i := range d.channels {
		d.channels[i].freqHz = powerOnFrequency(i + 1)
	}
	return d
}

// powerOnFrequency is the firmware register default for a channel:
// the band-plan frequency, 540 kHz plus 100 kHz per channel.
func powerOnFrequency(channel int) int64 {
	hz, err := transmitter.PresetFrequencyHz(channel)
	if err != nil {
		return transmitter.DefaultFrequencyHz
	}
	return hz
}

// Start begins listening and accepting connections.
func (d *Device) Start() error {
	listener, err := net.Listen("tcp", d.listen)
	if err != nil {
		return fmt.Errorf("simulator: listen on %s: %w", d.listen, err)
	}
	d.listener = listener

	d.wg.Add(2)
	go d.acceptLoop()
	go d.watchdogLoop()

	d.logger.Info("simulator listening", "addr", listener.Addr().String(), "watchdog_timeout", d.timeout.String())
	return nil
}

// Addr returns the bound listen address. Only valid after Start.
func (d *Device) Addr() string {
	if d.listener == nil {
		return d.listen
	}
	return d.listener.Addr().String()
}

// Close stops the listener, drops every connection and waits for the
// serving goroutines to exit.
func (d *Device) Close() error {
	close(d.done)
	if d.listener != nil {
		d.listener.Close()
	}
	d.mu.Lock()
	for _, conn := range d.conns {
		conn.Close()
	}
	d.conns = nil
	d.mu.Unlock()
	d.wg.Wait()
	return nil
}

func (d *Device) acceptLoop() {
	defer d.wg.Done()
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			return
		}
		d.mu.Lock()
		d.conns = append(d.conns, conn)
		d.accepted++
		d.mu.Unlock()
		d.logger.Debug("simulator connection accepted", "remote", conn.RemoteAddr().String())

		d.wg.Add(1)
		go d.serve(conn)
	}
}

func (d *Device) serve(conn net.Conn) {
	defer d.wg.Done()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		d.mu.Lock()
		d.received = append(d.received, line)
		if d.mute {
			d.mu.Unlock()
			continue
		}
		delay := d.replyDelay
		reply := d.handleLocked(strings.ToUpper(line))
		d.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-d.done:
				return
			}
		}
		if _, err := conn.Write([]byte(reply + "\n")); err != nil {
			return
		}
	}
}

// watchdogLoop enforces the heartbeat contract: the carrier dies on
// its own when resets stop arriving.
func (d *Device) watchdogLoop() {
	defer d.wg.Done()
	ticker := time.NewTicker(watchdogPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			d.mu.Lock()
			if d.wdEnabled && d.broadcasting && !d.triggered &&
				!d.lastReset.IsZero() && time.Since(d.lastReset) > d.timeout {
				d.triggered = true
				d.broadcasting = false
				d.logger.Warn("simulator watchdog triggered, carrier forced off",
					"since_reset", time.Since(d.lastReset).String())
			}
			d.mu.Unlock()
		}
	}
}

// handleLocked implements the command set. Caller holds mu. The line
// arrives uppercased.
func (d *Device) handleLocked(cmd string) string {
	for prefix, detail := range d.failCommands {
		if strings.HasPrefix(cmd, prefix) {
			if detail == "" {
				return "ERROR"
			}
			return "ERROR:" + detail
		}
	}

	switch {
	case cmd == transmitter.CmdIdentify:
		return identity

	case cmd == transmitter.CmdReset:
		d.resetLocked()
		return "OK"

	case cmd == transmitter.CmdQueryStatus:
		return d.statusLocked()

	case cmd == transmitter.CmdQueryWatchdog:
		return fmt.Sprintf("watchdog_enabled=%d;watchdog_triggered=%d;watchdog_warning=%d;watchdog_time=%d",
			boolBit(d.wdEnabled), boolBit(d.triggered), boolBit(d.warningLocked()),
			int(d.timeout/time.Second))

	case cmd == transmitter.CmdWatchdogReset:
		d.lastReset = time.Now()
		d.triggered = false
		d.resets++
		return "OK"

	case cmd == "WATCHDOG:ENABLE ON":
		d.wdEnabled = true
		return "OK"

	case cmd == "WATCHDOG:ENABLE OFF":
		d.wdEnabled = false
		return "OK"

	case cmd == transmitter.CmdQueryTemperature:
		return strconv.FormatFloat(d.temperature, 'f', 1, 64)

	case cmd == "OUTPUT:STATE ON":
		if d.triggered {
			return "ERROR:WATCHDOG TRIGGERED"
		}
		d.broadcasting = true
		if d.lastReset.IsZero() {
			d.lastReset = time.Now()
		}
		return "OK"

	case cmd == "OUTPUT:STATE OFF":
		d.broadcasting = false
		return "OK"

	case strings.HasPrefix(cmd, "CH:EN "):
		return d.applyEnableMaskLocked(strings.TrimPrefix(cmd, "CH:EN "))

	case strings.HasPrefix(cmd, "FREQ:CH"):
		return d.applyFrequencyLocked(strings.TrimPrefix(cmd, "FREQ:CH"))

	case strings.HasPrefix(cmd, "SOURCE:MODE "):
		return d.applySourceLocked(strings.TrimPrefix(cmd, "SOURCE:MODE "))

	case strings.HasPrefix(cmd, "SOURCE:INPUT "):
		return d.applySourceLocked(strings.TrimPrefix(cmd, "SOURCE:INPUT "))

	case strings.HasPrefix(cmd, "SOURCE:MSG "):
		return d.applyMessageLocked(strings.TrimPrefix(cmd, "SOURCE:MSG "))

	case strings.HasPrefix(cmd, "CH"):
		return d.applyChannelLocked(strings.TrimPrefix(cmd, "CH"))

	default:
		return "ERROR:UNKNOWN COMMAND"
	}
}

// resetLocked implements *RST: registers back to power-on values.
func (d *Device) resetLocked() {
	d.broadcasting = false
	d.source = transmitter.SourceBRAM
	d.message = 0
	d.loading = false
	d.triggered = false
	d.lastReset = time.Time{}
	for i := range d.channels {
		d.channels[i] = channelReg{freqHz: powerOnFrequency(i + 1)}
	}
}

// statusLocked builds the full STATUS? report.
func (d *Device) statusLocked() string {
	var b strings.Builder
	fmt.Fprintf(&b, "broadcasting=%d;source=%s;current_msg=%d;audio_loading=%d;watchdog_triggered=%d;watchdog_warning=%d;temp=%.1f",
		boolBit(d.broadcasting), d.source, d.message, boolBit(d.loading),
		boolBit(d.triggered), boolBit(d.warningLocked()), d.temperature)
	for i, ch := range d.channels {
		fmt.Fprintf(&b, ";ch%d_enabled=%d;ch%d_freq=%d", i+1, boolBit(ch.enabled), i+1, ch.freqHz)
	}
	return b.String()
}

// warningLocked reports whether the heartbeat is stale enough to warn.
func (d *Device) warningLocked() bool {
	if !d.wdEnabled || d.lastReset.IsZero() || d.triggered {
		return false
	}
	return time.Since(d.lastReset) > time.Duration(float64(d.timeout)*warnFraction)
}

// applyEnableMaskLocked handles "CH:EN <mask>" (bit 0 = channel 1).
func (d *Device) applyEnableMaskLocked(arg string) string {
	mask, err := strconv.ParseUint(strings.TrimSpace(arg), 10, 16)
	if err != nil {
		return "ERROR:BAD MASK"
	}
	for i := range d.channels {
		d.channels[i].enabled = mask&(1<<uint(i)) != 0
	}
	return "OK"
}

// applyFrequencyLocked handles "FREQ:CH<n> <hz>" (prefix stripped).
func (d *Device) applyFrequencyLocked(arg string) string {
	fields := strings.Fields(arg)
	if len(fields) != 2 {
		return "ERROR:BAD COMMAND"
	}
	ch, err := strconv.Atoi(fields[0])
	if err != nil || ch < 1 || ch > transmitter.ChannelCount {
		return "ERROR:BAD CHANNEL"
	}
	return d.setFrequencyLocked(ch, fields[1])
}

// applyChannelLocked handles the "CH<n>:..." command family
// ("CH<n>:OUTPUT ON|OFF" and the "CH<n>:FREQ <hz>" alias); the "CH"
// prefix is already stripped.
func (d *Device) applyChannelLocked(arg string) string {
	idx := strings.Index(arg, ":")
	if idx <= 0 {
		return "ERROR:BAD COMMAND"
	}
	ch, err := strconv.Atoi(arg[:idx])
	if err != nil || ch < 1 || ch > transmitter.ChannelCount {
		return "ERROR:BAD CHANNEL"
	}

	rest := arg[idx+1:]
	switch {
	case rest == "OUTPUT ON":
		d.channels[ch-1].enabled = true
		return "OK"
	case rest == "OUTPUT OFF":
		d.channels[ch-1].enabled = false
		return "OK"
	case strings.HasPrefix(rest, "FREQ "):
		return d.setFrequencyLocked(ch, strings.TrimPrefix(rest, "FREQ "))
	default:
		return "ERROR:BAD COMMAND"
	}
}

func (d *Device) setFrequencyLocked(ch int, arg string) string {
	hz, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil {
		return "ERROR:BAD FREQUENCY"
	}
	if hz < transmitter.MinFrequencyHz || hz > transmitter.MaxFrequencyHz {
		return "ERROR:FREQ OUT OF RANGE"
	}
	d.channels[ch-1].freqHz = hz
	return "OK"
}

func (d *Device) applySourceLocked(arg string) string {
	mode, err := transmitter.ParseSourceMode(arg)
	if err != nil {
		return "ERROR:BAD SOURCE"
	}
	d.source = mode
	return "OK"
}

func (d *Device) applyMessageLocked(arg string) string {
	id, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || id < 0 || id > 63 {
		return "ERROR:BAD MESSAGE"
	}
	d.message = id
	d.loading = true
	time.AfterFunc(loadingDuration, func() {
		d.mu.Lock()
		d.loading = false
		d.mu.Unlock()
	})
	return "OK:LOADING"
}

func boolBit(b bool) int {
	if b {
		return 1
	}
	return 0
}
