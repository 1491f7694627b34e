package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// recorderQueueSize bounds the async persistence queue. Entries beyond
// this are dropped (and counted) rather than blocking the caller — the
// callers include the supervisor's control path, which must never
// stall on database writes.
const recorderQueueSize = 64

// persistTimeout bounds a single database insert.
const persistTimeout = 5 * time.Second

// Logger is the minimal logging interface the recorder needs.
type Logger interface {
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Recorder fans audit entries into the in-memory ring (always,
// synchronously) and the repository (best effort, asynchronously).
type Recorder struct {
	ring   *Ring
	repo   Repository
	logger Logger

	queue    chan Entry
	dropped  atomic.Uint64
	stopOnce sync.Once
	done     chan struct{}
}

// NewRecorder creates a recorder. repo may be nil (ring only);
// logger may be nil.
func NewRecorder(ring *Ring, repo Repository, logger Logger) *Recorder {
	if ring == nil {
		ring = NewRing(DefaultRingCapacity)
	}
	if logger == nil {
		logger = nopLogger{}
	}

	r := &Recorder{
		ring:   ring,
		repo:   repo,
		logger: logger,
		queue:  make(chan Entry, recorderQueueSize),
		done:   make(chan struct{}),
	}

	if repo != nil {
		go r.persistLoop()
	} else {
		close(r.done)
	}

	return r
}

// Record captures an audit entry. The ring write is synchronous; the
// database write is queued and may be dropped under pressure.
func (r *Recorder) Record(entry Entry) {
	if entry.ID == "" {
		entry.ID = "aud-" + uuid.NewString()[:8]
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Outcome == "" {
		entry.Outcome = OutcomeSuccess
	}

	r.ring.Append(entry)

	if r.repo == nil {
		return
	}

	select {
	case r.queue <- entry:
	default:
		r.dropped.Add(1)
		r.logger.Warn("audit persistence queue full, entry dropped",
			"action", entry.Action,
			"dropped_total", r.dropped.Load(),
		)
	}
}

// Success records a successful action.
func (r *Recorder) Success(action, actor, source string, details map[string]any) {
	r.Record(Entry{
		Action:  action,
		Actor:   actor,
		Source:  source,
		Outcome: OutcomeSuccess,
		Details: details,
	})
}

// Failure records a failed action with the error message in details.
func (r *Recorder) Failure(action, actor, source string, err error, details map[string]any) {
	if details == nil {
		details = make(map[string]any)
	}
	if err != nil {
		details["error"] = err.Error()
	}
	r.Record(Entry{
		Action:  action,
		Actor:   actor,
		Source:  source,
		Outcome: OutcomeFailure,
		Details: details,
	})
}

// Recent returns up to n ring entries, newest first.
func (r *Recorder) Recent(n int) []Entry {
	return r.ring.Recent(n)
}

// Dropped returns the number of entries dropped from the persistence
// queue since start.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close stops the persistence loop after draining queued entries.
func (r *Recorder) Close() {
	r.stopOnce.Do(func() {
		close(r.queue)
	})
	<-r.done
}

// persistLoop drains the queue into the repository.
func (r *Recorder) persistLoop() {
	defer close(r.done)

	for entry := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := r.repo.Create(ctx, &entry); err != nil {
			r.logger.Error("persisting audit entry", "action", entry.Action, "error", err)
		}
		cancel()
	}
}
