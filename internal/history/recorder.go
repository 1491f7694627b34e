package history

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-radio/internal/transmitter"
)

// Logger is the minimal logging interface the recorder needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// recordTimeout bounds each insert so a wedged database cannot stall
// the event pump.
const recordTimeout = 5 * time.Second

// Recorder derives state transitions from transmitter event snapshots
// and persists the edges.
//
// Events carry full device snapshots rather than deltas, so the
// recorder keeps the previously observed state per machine and records
// a row whenever a snapshot differs. Feed it every event from a bus
// subscription via Observe.
type Recorder struct {
	repo   Repository
	logger Logger

	lastConn      transmitter.ConnectionState
	lastBroadcast transmitter.BroadcastState
	lastWatchdog  transmitter.WatchdogState
	primed        bool
}

// NewRecorder creates a transition recorder over the given repository.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Recorder{
		repo:   repo,
		logger: logger,
	}
}

// Observe inspects one transmitter event and records any state machine
// edges it reveals. The first event primes the baseline and records
// nothing.
func (r *Recorder) Observe(ctx context.Context, evt transmitter.Event) {
	state := evt.State

	if !r.primed {
		r.lastConn = state.Connection
		r.lastBroadcast = state.Broadcast
		r.lastWatchdog = state.Watchdog
		r.primed = true
		return
	}

	if state.Connection != r.lastConn {
		r.record(ctx, KindConnection, string(r.lastConn), string(state.Connection), evt.Detail)
		r.lastConn = state.Connection
	}
	if state.Broadcast != r.lastBroadcast {
		r.record(ctx, KindBroadcast, string(r.lastBroadcast), string(state.Broadcast), evt.Detail)
		r.lastBroadcast = state.Broadcast
	}
	if state.Watchdog != r.lastWatchdog {
		r.record(ctx, KindWatchdog, string(r.lastWatchdog), string(state.Watchdog), evt.Detail)
		r.lastWatchdog = state.Watchdog
	}
}

func (r *Recorder) record(ctx context.Context, kind, from, to, reason string) {
	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()

	tr := &Transition{
		Kind:   kind,
		From:   from,
		To:     to,
		Reason: reason,
	}
	if err := r.repo.Record(ctx, tr); err != nil {
		r.logger.Error("failed to record transition",
			"kind", kind,
			"from", from,
			"to", to,
			"error", err,
		)
		return
	}

	r.logger.Debug("transition recorded", "kind", kind, "from", from, "to", to)
}
