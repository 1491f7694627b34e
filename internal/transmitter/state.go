package transmitter

import (
	"fmt"
	"sync"
	"time"
)

// Device limits. The FPGA carries twelve carrier generators covering
// the AM broadcast band.
const (
	// ChannelCount is the number of carrier channels on the device.
	ChannelCount = 12

	// MinFrequencyHz is the lowest settable carrier frequency.
	MinFrequencyHz int64 = 500_000

	// MaxFrequencyHz is the highest settable carrier frequency.
	MaxFrequencyHz int64 = 1_700_000

	// DefaultFrequencyHz is the power-on carrier frequency.
	DefaultFrequencyHz int64 = 540_000
)

// ConnectionState describes the session with the device.
type ConnectionState string

const (
	ConnDisconnected ConnectionState = "disconnected"
	ConnConnecting   ConnectionState = "connecting"
	ConnConnected    ConnectionState = "connected"
	ConnReconnecting ConnectionState = "reconnecting"
)

// BroadcastState describes the RF output lifecycle.
type BroadcastState string

const (
	BroadcastIdle         BroadcastState = "idle"
	BroadcastArming       BroadcastState = "arming"
	BroadcastArmed        BroadcastState = "armed"
	BroadcastStarting     BroadcastState = "starting"
	BroadcastBroadcasting BroadcastState = "broadcasting"
	BroadcastStopping     BroadcastState = "stopping"
	BroadcastEmergency    BroadcastState = "emergency"
)

// Channel is one carrier generator.
type Channel struct {
	// ID is the 1-based channel number.
	ID int `json:"id"`

	// Enabled reports whether the channel contributes to the output.
	Enabled bool `json:"enabled"`

	// FrequencyHz is the carrier frequency.
	FrequencyHz int64 `json:"frequency_hz"`
}

// ValidateChannel checks a channel number against the device range.
func ValidateChannel(channel int) error {
	if channel < 1 || channel > ChannelCount {
		return fmt.Errorf("%w: channel %d (valid 1..%d)", ErrChannelOutOfRange, channel, ChannelCount)
	}
	return nil
}

// ValidateFrequency checks a carrier frequency against the device range.
func ValidateFrequency(hz int64) error {
	if hz < MinFrequencyHz || hz > MaxFrequencyHz {
		return fmt.Errorf("%w: %d Hz (valid %d..%d)", ErrFrequencyOutOfRange, hz, MinFrequencyHz, MaxFrequencyHz)
	}
	return nil
}

// DeviceState is the canonical transmitter snapshot.
//
// Snapshots are values: every read gets a deep copy, so holders can
// never observe a torn update or mutate the store.
type DeviceState struct {
	Connection ConnectionState `json:"connection"`
	Broadcast  BroadcastState  `json:"broadcast"`
	Watchdog   WatchdogState   `json:"watchdog"`

	Source         SourceMode `json:"source"`
	CurrentMessage int        `json:"current_message"`
	AudioLoading   bool       `json:"audio_loading"`

	Channels [ChannelCount]Channel `json:"channels"`

	TemperatureC float64  `json:"temperature_c,omitempty"`
	Identity     Identity `json:"identity"`

	// Stale is set while polling is not delivering fresh reports
	// (reconnecting or disconnected). Consumers should treat stale
	// snapshots as last-known, not current.
	Stale bool `json:"stale"`

	// LastContact is the time of the last successful device exchange.
	LastContact time.Time `json:"last_contact"`

	// UpdatedAt is the time of the last snapshot mutation.
	UpdatedAt time.Time `json:"updated_at"`
}

// newDeviceState returns the power-on snapshot: every channel
// disabled at its band-plan frequency, disconnected. It mirrors the
// firmware's own register defaults.
func newDeviceState() DeviceState {
	s := DeviceState{
		Connection: ConnDisconnected,
		Broadcast:  BroadcastIdle,
		Watchdog:   WatchdogOk,
		Source:     SourceBRAM,
		Stale:      true,
	}
	for i := range s.Channels {
		hz, _ := PresetFrequencyHz(i + 1)
		s.Channels[i] = Channel{
			ID:          i + 1,
			FrequencyHz: hz,
		}
	}
	return s
}

// StateStore holds the canonical snapshot with single-writer
// semantics: only the supervisor mutates it, everyone else reads
// copies.
type StateStore struct {
	mu    sync.RWMutex
	state DeviceState
}

// NewStateStore creates a store holding the power-on snapshot.
func NewStateStore() *StateStore {
	return &StateStore{state: newDeviceState()}
}

// Snapshot returns a copy of the current state.
func (s *StateStore) Snapshot() DeviceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Update applies fn to the state under the write lock and stamps
// UpdatedAt. fn must not retain the pointer.
func (s *StateStore) Update(fn func(*DeviceState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	s.state.UpdatedAt = time.Now().UTC()
}

// MarkStale flags the snapshot as last-known rather than live.
func (s *StateStore) MarkStale() {
	s.Update(func(st *DeviceState) {
		st.Stale = true
	})
}

// MarkFresh clears the stale flag and records device contact.
func (s *StateStore) MarkFresh(at time.Time) {
	s.Update(func(st *DeviceState) {
		st.Stale = false
		st.LastContact = at
	})
}
