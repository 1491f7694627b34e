package program

import (
	"time"

	"github.com/nerrad567/gray-logic-radio/internal/transmitter"
)

// Program represents a named transmitter configuration that can be
// activated as a unit: which channels carry which frequencies, the
// audio source, and the stored message to play.
type Program struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`

	// Description (optional)
	Description string `json:"description,omitempty"`

	// Configuration
	Enabled bool `json:"enabled"`

	// Source mode (BRAM or ADC) applied on activation.
	Source transmitter.SourceMode `json:"source"`

	// Message is the stored-message index selected when Source is BRAM.
	Message int `json:"message"`

	// Channels to enable, with per-channel frequency. Channels not
	// listed are disabled on activation.
	Channels []ChannelSetting `json:"channels"`

	// Sort order for UI display
	SortOrder int `json:"sort_order"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChannelSetting defines one channel's target state within a program.
type ChannelSetting struct {
	Channel     int   `json:"channel"`
	FrequencyHz int64 `json:"frequency_hz"`
}

// Execution tracks a single activation of a program.
type Execution struct {
	ID          string          `json:"id"`
	ProgramID   string          `json:"program_id"`
	TriggeredBy string          `json:"triggered_by,omitempty"` // api, mqtt, system
	Status      ExecutionStatus `json:"status"`

	// Step counts. Steps are arm, per-channel configuration, source,
	// message, and carrier start.
	StepsTotal  int `json:"steps_total"`
	StepsFailed int `json:"steps_failed"`

	// Error holds the first fatal failure (empty when completed).
	Error string `json:"error,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// ExecutionStatus represents the outcome of a program activation.
type ExecutionStatus string

const (
	StatusCompleted ExecutionStatus = "completed"
	StatusPartial   ExecutionStatus = "partial"   // Some channel steps failed, carrier started anyway
	StatusFailed    ExecutionStatus = "failed"    // Fatal step failed, activation aborted
	StatusCancelled ExecutionStatus = "cancelled" // Context cancelled mid-activation
)

// DeepCopy creates a complete independent copy of the Program.
// The Channels slice is cloned so modifications to the copy do not
// affect the original. This is essential for cache isolation.
func (p *Program) DeepCopy() *Program {
	if p == nil {
		return nil
	}

	cpy := *p // Shallow copy of value fields

	if p.Channels != nil {
		cpy.Channels = make([]ChannelSetting, len(p.Channels))
		copy(cpy.Channels, p.Channels)
	}

	return &cpy
}
