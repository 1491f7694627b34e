package transmitter

import "errors"

// Domain errors for the transmitter package.
var (
	// ErrNotConnected is returned when an operation requires a live
	// session but the supervisor is not connected to the device.
	ErrNotConnected = errors.New("transmitter: not connected to device")

	// ErrAlreadyConnected is returned when Connect is called on a
	// supervisor that already holds a session.
	ErrAlreadyConnected = errors.New("transmitter: already connected")

	// ErrConnectionFailed is returned when dialing or identifying the
	// device fails.
	ErrConnectionFailed = errors.New("transmitter: connection failed")

	// ErrConnectionLost is returned when the session drops mid-operation.
	ErrConnectionLost = errors.New("transmitter: connection lost")

	// ErrReconnectExhausted is returned when every reconnection attempt
	// allowed by the retry policy has failed.
	ErrReconnectExhausted = errors.New("transmitter: reconnect attempts exhausted")

	// ErrInvalidTransition is returned when a requested broadcast state
	// transition is not legal from the current state.
	ErrInvalidTransition = errors.New("transmitter: invalid state transition")

	// ErrChannelOutOfRange is returned for channel numbers outside 1..12.
	ErrChannelOutOfRange = errors.New("transmitter: channel out of range")

	// ErrFrequencyOutOfRange is returned for frequencies outside the
	// device's carrier range.
	ErrFrequencyOutOfRange = errors.New("transmitter: frequency out of range")

	// ErrCommandTimeout is returned when the device does not answer a
	// command within the command timeout.
	ErrCommandTimeout = errors.New("transmitter: command timed out")

	// ErrCommandRejected is returned when the device answers a command
	// with an ERROR reply.
	ErrCommandRejected = errors.New("transmitter: command rejected by device")

	// ErrMalformedReply is returned when a device reply cannot be parsed.
	ErrMalformedReply = errors.New("transmitter: malformed device reply")

	// ErrWatchdogTriggered is returned when an operation is refused
	// because the device reports a tripped watchdog.
	ErrWatchdogTriggered = errors.New("transmitter: device watchdog triggered")
)
