package transmitter

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType identifies a transmitter lifecycle event.
type EventType string

const (
	// Connection lifecycle.
	EventConnectionEstablished EventType = "connection_established"
	EventConnectionLost        EventType = "connection_lost"
	EventReconnecting          EventType = "reconnecting"
	EventReconnectFailed       EventType = "reconnect_failed"

	// Broadcast lifecycle.
	EventStateChanged       EventType = "state_changed"
	EventBroadcastStarted   EventType = "broadcast_started"
	EventBroadcastStopped   EventType = "broadcast_stopped"
	EventEmergencyActivated EventType = "emergency_activated"
	EventEmergencyCleared   EventType = "emergency_cleared"

	// Watchdog lifecycle.
	EventWatchdogWarning   EventType = "watchdog_warning"
	EventWatchdogTriggered EventType = "watchdog_triggered"

	// Configuration changes observed on the device.
	EventChannelChanged EventType = "channel_changed"
	EventSourceChanged  EventType = "source_changed"

	// EventStateUpdated carries the refreshed snapshot after every
	// healthy poll cycle, edge or not. Consumers that mirror the
	// full device state (dashboards, telemetry) key off this one;
	// everything above fires only on transitions.
	EventStateUpdated EventType = "state_updated"

	// Bus housekeeping. Delivered to a subscriber after its buffer
	// overflowed, before the next event it does receive.
	EventSubscriberLagged EventType = "subscriber_lagged"
)

// Event is one transmitter lifecycle notification.
//
// State is the snapshot taken when the event fired. Optional fields
// are zero unless the event type uses them.
type Event struct {
	Type  EventType   `json:"type"`
	At    time.Time   `json:"at"`
	State DeviceState `json:"state"`

	// Detail is a short human-readable qualifier (error text,
	// transition reason).
	Detail string `json:"detail,omitempty"`

	// Attempt is set on reconnecting events.
	Attempt int `json:"attempt,omitempty"`

	// Channel is set on channel_changed events.
	Channel int `json:"channel,omitempty"`

	// Dropped is set on subscriber_lagged events: the number of
	// events lost since the subscriber last kept up.
	Dropped uint64 `json:"dropped,omitempty"`
}

// defaultEventBuffer is the per-subscriber queue depth.
const defaultEventBuffer = 256

// Subscription is one subscriber's bounded view of the bus.
//
// Receive from C until it closes. A slow receiver loses events rather
// than stalling the supervisor; losses surface as a subscriber_lagged
// event carrying the drop count.
type Subscription struct {
	name string
	ch   chan Event

	dropped atomic.Uint64
	lagged  atomic.Bool
	closed  atomic.Bool
}

// C returns the receive channel.
func (s *Subscription) C() <-chan Event { return s.ch }

// Name returns the subscriber name given at Subscribe time.
func (s *Subscription) Name() string { return s.name }

// Dropped returns the total events this subscriber has lost.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Bus fans transmitter events out to subscribers without ever
// blocking the publisher. The supervisor publishes from its poll
// loop; a blocked consumer there would stall heartbeats, so full
// buffers drop instead.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewBus creates a bus with the given per-subscriber buffer depth.
// Zero or negative selects the default.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	return &Bus{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a named subscriber and returns its
// subscription. Subscribing on a closed bus returns a subscription
// whose channel is already closed.
func (b *Bus) Subscribe(name string) *Subscription {
	sub := &Subscription{
		name: name,
		ch:   make(chan Event, b.buffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		sub.closed.Store(true)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Safe to
// call more than once.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	_, present := b.subs[sub]
	delete(b.subs, sub)
	b.mu.Unlock()

	if present && sub.closed.CompareAndSwap(false, true) {
		close(sub.ch)
	}
}

// Publish delivers an event to every subscriber. Never blocks: a
// subscriber with a full buffer loses the event and gets a
// subscriber_lagged notification once it drains.
func (b *Bus) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	b.published.Add(1)

	for sub := range b.subs {
		b.deliver(sub, evt)
	}
}

// deliver attempts a non-blocking send, replaying a lag notice first
// when the subscriber previously overflowed.
func (b *Bus) deliver(sub *Subscription, evt Event) {
	if sub.lagged.Load() {
		lagEvt := Event{
			Type:    EventSubscriberLagged,
			At:      evt.At,
			State:   evt.State,
			Dropped: sub.dropped.Load(),
		}
		select {
		case sub.ch <- lagEvt:
			sub.lagged.Store(false)
		default:
			// Still full. The real event below will count as
			// dropped too.
		}
	}

	select {
	case sub.ch <- evt:
	default:
		sub.dropped.Add(1)
		sub.lagged.Store(true)
		b.dropped.Add(1)
	}
}

// Close shuts the bus down and closes every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		if sub.closed.CompareAndSwap(false, true) {
			close(sub.ch)
		}
		delete(b.subs, sub)
	}
}

// BusStats is a point-in-time counter snapshot.
type BusStats struct {
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
}

// Stats returns current bus counters.
func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BusStats{
		Subscribers: len(b.subs),
		Published:   b.published.Load(),
		Dropped:     b.dropped.Load(),
	}
}
