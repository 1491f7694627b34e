package mqtt

import "fmt"

// Topic prefix for all Gray Logic Radio traffic.
//
// The tree is flat and small: one retained state topic, per-type event
// topics, per-operation command topics with per-command acks, a health
// topic carrying the LWT, and per-measurement telemetry.
const (
	// TopicPrefix is the base for all radio topics.
	TopicPrefix = "grayradio"
)

// Topics provides builders for Gray Logic Radio MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.State()
//	// Returns: "grayradio/state"
type Topics struct{}

// State returns the retained transmitter snapshot topic.
//
// Example: grayradio/state
func (Topics) State() string {
	return TopicPrefix + "/state"
}

// Event returns the topic for one lifecycle event type.
//
// Example: grayradio/event/broadcast_started
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, eventType)
}

// Command returns the topic for one remote operation.
//
// Example: grayradio/command/arm
func (Topics) Command(operation string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, operation)
}

// Ack returns the acknowledgement topic for one command ID.
//
// Example: grayradio/ack/cmd-abc123
func (Topics) Ack(commandID string) string {
	return fmt.Sprintf("%s/ack/%s", TopicPrefix, commandID)
}

// Health returns the daemon health topic. The broker publishes the
// Last Will here when the daemon drops off without a goodbye.
//
// Example: grayradio/health/core
func (Topics) Health() string {
	return TopicPrefix + "/health/core"
}

// Telemetry returns the topic for one telemetry measurement.
//
// Example: grayradio/telemetry/temperature
func (Topics) Telemetry(measurement string) string {
	return fmt.Sprintf("%s/telemetry/%s", TopicPrefix, measurement)
}

// ProgramActivated returns the topic for program activation events.
//
// Example: grayradio/program/morning-news/activated
func (Topics) ProgramActivated(slug string) string {
	return fmt.Sprintf("%s/program/%s/activated", TopicPrefix, slug)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllCommands returns a pattern matching every remote operation.
//
// Pattern: grayradio/command/+
func (Topics) AllCommands() string {
	return TopicPrefix + "/command/+"
}

// AllEvents returns a pattern matching every lifecycle event.
//
// Pattern: grayradio/event/+
func (Topics) AllEvents() string {
	return TopicPrefix + "/event/+"
}

// AllAcks returns a pattern matching every command acknowledgement.
//
// Pattern: grayradio/ack/+
func (Topics) AllAcks() string {
	return TopicPrefix + "/ack/+"
}

// AllTelemetry returns a pattern matching every telemetry measurement.
//
// Pattern: grayradio/telemetry/+
func (Topics) AllTelemetry() string {
	return TopicPrefix + "/telemetry/+"
}

// AllTopics returns a pattern matching all Gray Logic Radio topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: grayradio/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
