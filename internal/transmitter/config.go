package transmitter

import (
	"fmt"
	"time"
)

const (
	// defaultPollInterval is the heartbeat and status cadence.
	// Ten beats per device watchdog window leaves headroom for a
	// couple of slow exchanges before the hardware cuts the
	// carrier.
	defaultPollInterval = 500 * time.Millisecond

	// defaultMaxConsecutiveErrors is how many poll ticks may fail
	// in a row before the session is declared lost.
	defaultMaxConsecutiveErrors = 3
)

// Options configures a Supervisor.
//
// Addr is the only required field; everything else defaults to the
// values the transmitter firmware is tuned for.
type Options struct {
	// Addr is the device control endpoint, host:port.
	Addr string

	// ConnectTimeout bounds the TCP dial.
	ConnectTimeout time.Duration

	// CommandTimeout bounds one command/reply exchange.
	CommandTimeout time.Duration

	// PollInterval is the heartbeat and status cadence.
	PollInterval time.Duration

	// WatchdogTimeout mirrors the device's watchdog window.
	WatchdogTimeout time.Duration

	// WatchdogWarnFraction of the window without an accepted
	// heartbeat raises a warning. Zero selects the default.
	WatchdogWarnFraction float64

	// MaxConsecutiveErrors is the failed-tick threshold for
	// declaring the connection lost.
	MaxConsecutiveErrors int

	// Retry shapes the reconnection schedule.
	Retry RetryPolicy

	// EventBuffer is the per-subscriber event queue depth.
	EventBuffer int

	// Logger receives supervisor logs. Defaults to a no-op.
	Logger Logger
}

// normalise validates Addr, fills defaults and checks the retry
// policy.
func (o *Options) normalise() error {
	if o.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = defaultCommandTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.WatchdogTimeout <= 0 {
		o.WatchdogTimeout = defaultWatchdogTimeout
	}
	if o.MaxConsecutiveErrors <= 0 {
		o.MaxConsecutiveErrors = defaultMaxConsecutiveErrors
	}
	if o.Retry == (RetryPolicy{}) {
		o.Retry = DefaultRetryPolicy()
	}
	if err := o.Retry.Validate(); err != nil {
		return err
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = defaultEventBuffer
	}
	if o.Logger == nil {
		o.Logger = nopLogger{}
	}
	return nil
}
