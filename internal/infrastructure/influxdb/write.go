package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTemperature records the transmitter PA temperature.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteTemperature(42.5)
func (c *Client) WriteTemperature(celsius float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"temperature",
		map[string]string{
			"unit": "celsius",
		},
		map[string]interface{}{
			"value": celsius,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteChannelState records one channel's enabled flag and frequency.
//
// Parameters:
//   - channel: Channel number (1-12)
//   - enabled: Whether the channel is keyed into the carrier
//   - frequencyHz: Configured carrier frequency in Hz
func (c *Client) WriteChannelState(channel int, enabled bool, frequencyHz int64) {
	if !c.IsConnected() {
		return
	}

	enabledVal := 0
	if enabled {
		enabledVal = 1
	}

	point := write.NewPoint(
		"channel_state",
		map[string]string{
			"channel": strconv.Itoa(channel),
		},
		map[string]interface{}{
			"enabled":      enabledVal,
			"frequency_hz": frequencyHz,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteWatchdogState records the hardware watchdog health.
//
// Parameters:
//   - state: Watchdog state string (ok, warning, triggered)
//   - msSinceReset: Milliseconds since the last successful heartbeat
func (c *Client) WriteWatchdogState(state string, msSinceReset int64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"watchdog",
		map[string]string{
			"state": state,
		},
		map[string]interface{}{
			"ms_since_reset": msSinceReset,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteConnectionEvent records a connection state machine edge.
//
// Parameters:
//   - from: Previous connection state
//   - to: New connection state
func (c *Client) WriteConnectionEvent(from, to string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"connection",
		map[string]string{
			"from": from,
			"to":   to,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteBroadcastSeconds records accumulated on-air time.
//
// Called periodically while the carrier is up so air-time can be
// summed over any window in queries.
func (c *Client) WriteBroadcastSeconds(seconds float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"broadcast",
		nil,
		map[string]interface{}{
			"on_air_seconds": seconds,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "radio-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
