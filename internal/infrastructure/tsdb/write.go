package tsdb

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// WriteTemperature records a power amplifier temperature reading.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - celsius: Temperature in degrees Celsius as reported by the device
//
// Example:
//
//	client.WriteTemperature(42.5)
func (c *Client) WriteTemperature(celsius float64) {
	c.addLine(formatLineProtocol(
		"temperature",
		map[string]string{
			"unit": "celsius",
		},
		map[string]interface{}{
			"value": celsius,
		},
		time.Now(),
	))
}

// WriteChannelState records the configuration of a single broadcast channel.
//
// Used to chart per-channel carrier frequency and enable/disable history.
//
// Parameters:
//   - channel: Channel number (1-based)
//   - enabled: Whether the channel is currently transmitting
//   - frequencyHz: Configured carrier frequency in Hz
func (c *Client) WriteChannelState(channel int, enabled bool, frequencyHz int64) {
	enabledField := 0
	if enabled {
		enabledField = 1
	}

	c.addLine(formatLineProtocol(
		"channel_state",
		map[string]string{
			"channel": strconv.Itoa(channel),
		},
		map[string]interface{}{
			"enabled":      enabledField,
			"frequency_hz": frequencyHz,
		},
		time.Now(),
	))
}

// WriteWatchdogState records the hardware watchdog health.
//
// Parameters:
//   - state: Watchdog state name (e.g. "ok", "warning", "triggered")
//   - msSinceReset: Milliseconds elapsed since the last heartbeat reset
func (c *Client) WriteWatchdogState(state string, msSinceReset int64) {
	c.addLine(formatLineProtocol(
		"watchdog",
		map[string]string{
			"state": state,
		},
		map[string]interface{}{
			"ms_since_reset": msSinceReset,
		},
		time.Now(),
	))
}

// WriteConnectionEvent records a transmitter link state transition.
//
// Each transition is written with count=1 so rates can be derived
// with PromQL (e.g. increase(connection[1h])).
//
// Parameters:
//   - from: Previous connection state name
//   - to: New connection state name
func (c *Client) WriteConnectionEvent(from, to string) {
	c.addLine(formatLineProtocol(
		"connection",
		map[string]string{
			"from": from,
			"to":   to,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	))
}

// WriteBroadcastSeconds records accumulated on-air time.
//
// Parameters:
//   - seconds: On-air seconds accumulated since the previous sample
func (c *Client) WriteBroadcastSeconds(seconds float64) {
	c.addLine(formatLineProtocol(
		"broadcast",
		nil,
		map[string]interface{}{
			"on_air_seconds": seconds,
		},
		time.Now(),
	))
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "radio-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.addLine(formatLineProtocol(measurement, tags, fields, time.Now()))
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	c.addLine(formatLineProtocol(measurement, tags, fields, timestamp))
}

// formatLineProtocol formats a data point as an InfluxDB line protocol string.
//
// Format: measurement,tag1=val1,tag2=val2 field1=val1,field2=val2 timestamp_ns
//
// VictoriaMetrics accepts this format on the /write endpoint.
func formatLineProtocol(measurement string, tags map[string]string, fields map[string]interface{}, t time.Time) string {
	var b strings.Builder

	// Measurement (escaped to prevent injection)
	b.WriteString(escapeMeasurement(measurement))

	// Tags (sorted for deterministic output and testability)
	tagKeys := make([]string, 0, len(tags))
	for k := range tags {
		tagKeys = append(tagKeys, k)
	}
	sort.Strings(tagKeys)
	for _, k := range tagKeys {
		b.WriteByte(',')
		b.WriteString(escapeTag(k))
		b.WriteByte('=')
		b.WriteString(escapeTag(tags[k]))
	}

	// Fields (sorted for deterministic output)
	fieldKeys := make([]string, 0, len(fields))
	for k := range fields {
		fieldKeys = append(fieldKeys, k)
	}
	sort.Strings(fieldKeys)
	b.WriteByte(' ')
	first := true
	for _, k := range fieldKeys {
		v := fields[k]
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(escapeTag(k))
		b.WriteByte('=')
		switch val := v.(type) {
		case float64:
			b.WriteString(fmt.Sprintf("%g", val))
		case int:
			b.WriteString(fmt.Sprintf("%di", val))
		case int64:
			b.WriteString(fmt.Sprintf("%di", val))
		case bool:
			if val {
				b.WriteString("true")
			} else {
				b.WriteString("false")
			}
		case string:
			b.WriteString(fmt.Sprintf("%q", val))
		default:
			b.WriteString(fmt.Sprintf("%v", val))
		}
	}

	// Timestamp in nanoseconds
	b.WriteByte(' ')
	b.WriteString(fmt.Sprintf("%d", t.UnixNano()))

	return b.String()
}

// escapeTag escapes special characters in tag keys/values per line protocol spec.
// Commas, equals signs, and spaces must be backslash-escaped.
// Newlines are stripped to prevent line protocol injection.
func escapeTag(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, " ", "\\ ")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "=", "\\=")
	return s
}

// escapeMeasurement escapes special characters in measurement names.
// Newlines are stripped to prevent line protocol injection.
func escapeMeasurement(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, " ", "\\ ")
	s = strings.ReplaceAll(s, ",", "\\,")
	return s
}
