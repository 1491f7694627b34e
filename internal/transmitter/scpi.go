package transmitter

import (
	"fmt"
	"strconv"
	"strings"
)

// Fixed SCPI commands understood by the device.
//
// Commands are single ASCII lines terminated with \n. Setters answer
// "OK" (optionally "OK:DETAIL"), failures answer "ERROR" (optionally
// "ERROR:DETAIL"), queries answer a bare value line.
const (
	// CmdIdentify requests the device identification string.
	CmdIdentify = "*IDN?"

	// CmdReset performs a device soft reset.
	CmdReset = "*RST"

	// CmdQueryStatus requests the full status report.
	CmdQueryStatus = "STATUS?"

	// CmdWatchdogReset feeds the hardware watchdog. This is the
	// heartbeat: if the device stops receiving it, RF dies on its own.
	CmdWatchdogReset = "WATCHDOG:RESET"

	// CmdQueryWatchdog requests the watchdog status report.
	CmdQueryWatchdog = "WATCHDOG:STATUS?"

	// CmdQueryTemperature requests the board temperature in Celsius.
	CmdQueryTemperature = "SYSTEM:TEMP?"
)

// SourceMode selects the modulation audio source.
type SourceMode string

const (
	// SourceBRAM plays the stored message from FPGA block RAM.
	SourceBRAM SourceMode = "BRAM"

	// SourceADC modulates the live ADC input (microphone line).
	SourceADC SourceMode = "ADC"
)

// ParseSourceMode parses a source mode string (case-insensitive).
func ParseSourceMode(s string) (SourceMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BRAM":
		return SourceBRAM, nil
	case "ADC":
		return SourceADC, nil
	default:
		return "", fmt.Errorf("%w: unknown source mode %q", ErrMalformedReply, s)
	}
}

// CmdMasterOutput builds the master carrier on/off command.
func CmdMasterOutput(on bool) string {
	if on {
		return "OUTPUT:STATE ON"
	}
	return "OUTPUT:STATE OFF"
}

// CmdChannelOutput builds the per-channel enable command.
func CmdChannelOutput(channel int, on bool) string {
	state := "OFF"
	if on {
		state = "ON"
	}
	return fmt.Sprintf("CH%d:OUTPUT %s", channel, state)
}

// CmdChannelFrequency builds the per-channel carrier frequency command.
func CmdChannelFrequency(channel int, hz int64) string {
	return fmt.Sprintf("FREQ:CH%d %d", channel, hz)
}

// CmdEnableMask builds the bulk channel enable command from a bitmask
// (bit 0 = channel 1).
func CmdEnableMask(mask uint16) string {
	return fmt.Sprintf("CH:EN %d", mask)
}

// CmdSourceMode builds the audio source select command.
func CmdSourceMode(mode SourceMode) string {
	return fmt.Sprintf("SOURCE:MODE %s", mode)
}

// CmdSelectMessage builds the stored message select command. Selecting
// a message triggers audio loading on the device.
func CmdSelectMessage(id int) string {
	return fmt.Sprintf("SOURCE:MSG %d", id)
}

// CmdWatchdogEnable builds the watchdog enable/disable command.
func CmdWatchdogEnable(on bool) string {
	if on {
		return "WATCHDOG:ENABLE ON"
	}
	return "WATCHDOG:ENABLE OFF"
}

// IsOK reports whether a reply line is an acknowledgement ("OK" or
// "OK:DETAIL").
func IsOK(reply string) bool {
	r := strings.ToUpper(strings.TrimSpace(reply))
	return r == "OK" || strings.HasPrefix(r, "OK:")
}

// ReplyError converts a device reply into an error. Acknowledgements
// and value replies return nil; "ERROR" replies return
// ErrCommandRejected carrying the detail when the device provides one.
func ReplyError(reply string) error {
	r := strings.TrimSpace(reply)
	upper := strings.ToUpper(r)

	switch {
	case upper == "ERROR":
		return ErrCommandRejected
	case strings.HasPrefix(upper, "ERROR:"):
		if detail := strings.TrimSpace(r[len("ERROR:"):]); detail != "" {
			return fmt.Errorf("%w: %s", ErrCommandRejected, detail)
		}
		return ErrCommandRejected
	default:
		return nil
	}
}

// Identity holds the parsed *IDN? reply.
type Identity struct {
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Version      string `json:"version"`
}

// ParseIdentity parses an identification reply of the form
// "RedPitaya,AMRadio-12CH,v2.0". Missing trailing fields are left
// empty rather than failing: firmware revisions vary.
func ParseIdentity(reply string) (Identity, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return Identity{}, fmt.Errorf("%w: empty identity", ErrMalformedReply)
	}

	parts := strings.Split(reply, ",")
	id := Identity{Manufacturer: strings.TrimSpace(parts[0])}
	if len(parts) > 1 {
		id.Model = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		id.Version = strings.TrimSpace(parts[2])
	}
	return id, nil
}

// String returns the identity in wire form.
func (id Identity) String() string {
	return fmt.Sprintf("%s,%s,%s", id.Manufacturer, id.Model, id.Version)
}

// ChannelReport holds one channel's fields from a status report.
type ChannelReport struct {
	Enabled     bool
	FrequencyHz int64

	// Which fields were actually present in the report.
	HasEnabled   bool
	HasFrequency bool
}

// StatusReport is the parsed STATUS? reply.
//
// Every field carries a presence flag (or pointer) because firmware
// revisions report different key sets; absent keys must not clobber
// known state.
type StatusReport struct {
	Broadcasting      *bool
	Source            *SourceMode
	CurrentMessage    *int
	AudioLoading      *bool
	WatchdogTriggered *bool
	WatchdogWarning   *bool
	TemperatureC      *float64

	// Channels is keyed by channel number (1-based).
	Channels map[int]ChannelReport
}

// WatchdogStatus is the parsed WATCHDOG:STATUS? reply.
type WatchdogStatus struct {
	Enabled        bool
	Triggered      bool
	Warning        bool
	TimeoutSeconds int
}

// ParseStatus parses a STATUS? reply.
//
// The scanner is deliberately tolerant: pairs are separated by ';' or
// ',', keys and values by '=' or ':', keys are case-insensitive, and
// unknown keys or malformed pairs are skipped. A reply with no usable
// pair at all returns ErrMalformedReply.
func ParseStatus(line string) (StatusReport, error) {
	report := StatusReport{Channels: make(map[int]ChannelReport)}

	parsed := 0
	for _, pair := range splitPairs(line) {
		key, value, ok := splitKeyValue(pair)
		if !ok {
			continue
		}

		if applyStatusPair(&report, key, value) {
			parsed++
		}
	}

	if parsed == 0 {
		return StatusReport{}, fmt.Errorf("%w: no status fields in %q", ErrMalformedReply, line)
	}
	return report, nil
}

// ParseWatchdogStatus parses a WATCHDOG:STATUS? reply such as
// "watchdog_enabled=1;watchdog_triggered=0;watchdog_time=5".
func ParseWatchdogStatus(line string) (WatchdogStatus, error) {
	var status WatchdogStatus

	parsed := 0
	for _, pair := range splitPairs(line) {
		key, value, ok := splitKeyValue(pair)
		if !ok {
			continue
		}

		switch key {
		case "watchdog_enabled", "enabled":
			status.Enabled = parseWireBool(value)
		case "watchdog_triggered", "triggered":
			status.Triggered = parseWireBool(value)
		case "watchdog_warning", "warning":
			status.Warning = parseWireBool(value)
		case "watchdog_time", "timeout":
			if n, err := strconv.Atoi(value); err == nil {
				status.TimeoutSeconds = n
			}
		default:
			continue
		}
		parsed++
	}

	if parsed == 0 {
		return WatchdogStatus{}, fmt.Errorf("%w: no watchdog fields in %q", ErrMalformedReply, line)
	}
	return status, nil
}

// splitPairs splits a report line into key/value pair strings on ';'
// or ',' separators.
func splitPairs(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ';' || r == ','
	})
}

// splitKeyValue splits a single pair on '=' or ':'. The first
// delimiter wins so values may contain further colons.
func splitKeyValue(pair string) (key, value string, ok bool) {
	idx := strings.IndexAny(pair, "=:")
	if idx <= 0 || idx == len(pair)-1 {
		return "", "", false
	}
	key = strings.ToLower(strings.TrimSpace(pair[:idx]))
	value = strings.TrimSpace(pair[idx+1:])
	if key == "" || value == "" {
		return "", "", false
	}
	return key, value, true
}

// applyStatusPair maps one key/value pair onto the report. Returns
// true when the key was recognised.
func applyStatusPair(report *StatusReport, key, value string) bool {
	switch key {
	case "broadcasting", "broadcast", "output":
		b := parseWireBool(value)
		report.Broadcasting = &b
	case "source":
		mode, err := ParseSourceMode(value)
		if err != nil {
			return false
		}
		report.Source = &mode
	case "current_msg", "msg":
		n, err := strconv.Atoi(value)
		if err != nil {
			return false
		}
		report.CurrentMessage = &n
	case "audio_loading", "loading":
		b := parseWireBool(value)
		report.AudioLoading = &b
	case "watchdog_triggered", "watchdog":
		b := parseWireBool(value)
		report.WatchdogTriggered = &b
	case "watchdog_warning":
		b := parseWireBool(value)
		report.WatchdogWarning = &b
	case "temp", "temperature":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return false
		}
		report.TemperatureC = &f
	default:
		return applyChannelPair(report, key, value)
	}
	return true
}

// applyChannelPair handles ch{n}_enabled and ch{n}_freq keys.
func applyChannelPair(report *StatusReport, key, value string) bool {
	rest, found := strings.CutPrefix(key, "ch")
	if !found {
		return false
	}

	var field string
	var numStr string
	switch {
	case strings.HasSuffix(rest, "_enabled"):
		field = "enabled"
		numStr = strings.TrimSuffix(rest, "_enabled")
	case strings.HasSuffix(rest, "_freq"):
		field = "freq"
		numStr = strings.TrimSuffix(rest, "_freq")
	default:
		return false
	}

	ch, err := strconv.Atoi(numStr)
	if err != nil || ch < 1 || ch > ChannelCount {
		return false
	}

	entry := report.Channels[ch]
	switch field {
	case "enabled":
		entry.Enabled = parseWireBool(value)
		entry.HasEnabled = true
	case "freq":
		hz, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return false
		}
		entry.FrequencyHz = hz
		entry.HasFrequency = true
	}
	report.Channels[ch] = entry
	return true
}

// parseWireBool interprets the device's boolean encodings: "1"/"0",
// "on"/"off", "true"/"false".
func parseWireBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "on", "true", "yes":
		return true
	default:
		return false
	}
}
