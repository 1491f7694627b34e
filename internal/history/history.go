package history

import (
	"context"
	"time"
)

// Transition kinds. Each corresponds to one of the supervisor's state
// machines.
const (
	KindConnection = "connection"
	KindBroadcast  = "broadcast"
	KindWatchdog   = "watchdog"
)

// Transition represents a single recorded state machine edge.
//
// Each row stores the from/to pair and the reason the supervisor gave
// for the change. This provides a local audit trail even when the
// time-series database is unavailable.
type Transition struct {
	// ID is the unique identifier for the transition row.
	ID string `json:"id"`

	// Kind identifies which state machine moved (connection, broadcast, watchdog).
	Kind string `json:"kind"`

	// From is the state before the edge.
	From string `json:"from"`

	// To is the state after the edge.
	To string `json:"to"`

	// Reason is the supervisor's explanation for the change (may be empty).
	Reason string `json:"reason,omitempty"`

	// CreatedAt is the timestamp of the transition (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// Repository stores and retrieves state transition history.
//
// Implementations must be thread-safe and use UTC timestamps.
type Repository interface {
	// Record persists a state transition. A zero CreatedAt is filled
	// with the current time; an empty ID is generated.
	Record(ctx context.Context, tr *Transition) error

	// List returns recent transitions, newest first. An empty kind
	// matches all kinds. The limit may be clamped by the implementation.
	List(ctx context.Context, kind string, limit int) ([]Transition, error)

	// Prune deletes transitions older than the given duration and
	// returns the number of rows removed.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IsValidKind reports whether the kind is one of the known state machines.
func IsValidKind(kind string) bool {
	switch kind {
	case KindConnection, KindBroadcast, KindWatchdog:
		return true
	}
	return false
}
