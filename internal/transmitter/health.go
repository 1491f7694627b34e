package transmitter

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// HealthStatus classifies session fitness for surfaces that want a
// single word rather than the full snapshot.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"

	// HealthStopping is published once during shutdown so remote
	// consumers can tell an orderly stop from a lost daemon.
	HealthStopping HealthStatus = "stopping"
)

// Health is the condensed session report served on health endpoints
// and published to the status topic.
type Health struct {
	Status       HealthStatus    `json:"status"`
	Connection   ConnectionState `json:"connection"`
	Broadcast    BroadcastState  `json:"broadcast"`
	Watchdog     WatchdogState   `json:"watchdog"`
	HeartbeatAge time.Duration   `json:"heartbeat_age_ns"`
	Stale        bool            `json:"stale"`
	Detail       string          `json:"detail,omitempty"`
}

// Health classifies the current session.
//
// Unhealthy: no session, or the watchdog fired. Degraded: session up
// but reconnecting, serving stale state, or heartbeats overdue.
func (s *Supervisor) Health() Health {
	now := time.Now().UTC()
	snapshot := s.store.Snapshot()
	wdState := s.watchdog.State(now)

	h := Health{
		Connection:   snapshot.Connection,
		Broadcast:    snapshot.Broadcast,
		Watchdog:     wdState,
		HeartbeatAge: s.watchdog.SinceReset(now),
		Stale:        snapshot.Stale,
	}

	switch {
	case !s.running.Load() || snapshot.Connection == ConnDisconnected:
		h.Status = HealthUnhealthy
		h.Detail = "no device session"
	case wdState == WatchdogTriggered:
		h.Status = HealthUnhealthy
		h.Detail = "watchdog triggered"
	case snapshot.Connection == ConnReconnecting:
		h.Status = HealthDegraded
		h.Detail = "reconnecting"
	case snapshot.Stale:
		h.Status = HealthDegraded
		h.Detail = "stale device state"
	case wdState == WatchdogWarning:
		h.Status = HealthDegraded
		h.Detail = "heartbeat overdue"
	default:
		h.Status = HealthHealthy
	}
	return h
}

// defaultHealthInterval is the status publish cadence.
const defaultHealthInterval = 30 * time.Second

// HealthPublisher is the slice of the message bus the reporter needs.
type HealthPublisher interface {
	Publish(topic string, payload []byte, retain bool) error
}

// HealthReporterOptions configures a HealthReporter.
type HealthReporterOptions struct {
	// Supervisor supplies the session report. Required.
	Supervisor *Supervisor

	// Publisher receives the status messages. Required.
	Publisher HealthPublisher

	// Topic is the publish target. Defaults to "grayradio/health".
	Topic string

	// Interval is the publish cadence. Defaults to 30 s.
	Interval time.Duration

	// Logger receives reporter logs. Defaults to a no-op.
	Logger Logger
}

// HealthReporter periodically publishes the supervisor's condensed
// session report, retained, so late joiners see the last status.
// Stop publishes a final "stopping" report.
type HealthReporter struct {
	sup      *Supervisor
	pub      HealthPublisher
	topic    string
	interval time.Duration
	logger   Logger

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewHealthReporter creates the reporter. Start begins publishing.
func NewHealthReporter(opts HealthReporterOptions) (*HealthReporter, error) {
	if opts.Supervisor == nil {
		return nil, fmt.Errorf("supervisor is required")
	}
	if opts.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if opts.Topic == "" {
		opts.Topic = "grayradio/health"
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultHealthInterval
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	return &HealthReporter{
		sup:      opts.Supervisor,
		pub:      opts.Publisher,
		topic:    opts.Topic,
		interval: opts.Interval,
		logger:   opts.Logger,
		done:     make(chan struct{}),
	}, nil
}

// Start begins periodic publishing. An initial report goes out
// immediately.
func (h *HealthReporter) Start() {
	h.wg.Add(1)
	go h.reportLoop()
}

// Stop halts the loop and publishes a final stopping report.
// Safe to call more than once.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		report := h.sup.Health()
		report.Status = HealthStopping
		report.Detail = "daemon shutting down"
		h.publish(report)
	})
}

func (h *HealthReporter) reportLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.publish(h.sup.Health())

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.publish(h.sup.Health())
		}
	}
}

func (h *HealthReporter) publish(report Health) {
	payload, err := json.Marshal(report)
	if err != nil {
		h.logger.Error("marshalling health report", "error", err)
		return
	}
	if err := h.pub.Publish(h.topic, payload, true); err != nil {
		h.logger.Warn("publishing health report", "topic", h.topic, "error", err)
	}
}
