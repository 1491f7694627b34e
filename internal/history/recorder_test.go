package history

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-radio/internal/transmitter"
)

// memRepo captures recorded transitions in memory.
type memRepo struct {
	mu          sync.Mutex
	transitions []Transition
}

func (m *memRepo) Record(_ context.Context, tr *Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, *tr)
	return nil
}

func (m *memRepo) List(context.Context, string, int) ([]Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transition, len(m.transitions))
	copy(out, m.transitions)
	return out, nil
}

func (m *memRepo) Prune(context.Context, time.Duration) (int64, error) { return 0, nil }

func snapshotEvent(conn transmitter.ConnectionState, bcast transmitter.BroadcastState, wd transmitter.WatchdogState, detail string) transmitter.Event {
	return transmitter.Event{
		Type:   transmitter.EventStateChanged,
		Detail: detail,
		State: transmitter.DeviceState{
			Connection: conn,
			Broadcast:  bcast,
			Watchdog:   wd,
		},
	}
}

func TestRecorder_PrimesOnFirstEvent(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(repo, nil)
	ctx := context.Background()

	rec.Observe(ctx, snapshotEvent(transmitter.ConnConnected, transmitter.BroadcastIdle, transmitter.WatchdogOk, ""))

	if len(repo.transitions) != 0 {
		t.Errorf("first event should only prime, recorded %d transitions", len(repo.transitions))
	}
}

func TestRecorder_RecordsEachMachineEdge(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(repo, nil)
	ctx := context.Background()

	rec.Observe(ctx, snapshotEvent(transmitter.ConnDisconnected, transmitter.BroadcastIdle, transmitter.WatchdogOk, ""))
	rec.Observe(ctx, snapshotEvent(transmitter.ConnConnected, transmitter.BroadcastIdle, transmitter.WatchdogOk, "handshake complete"))
	rec.Observe(ctx, snapshotEvent(transmitter.ConnConnected, transmitter.BroadcastArming, transmitter.WatchdogOk, "idle -> arming"))
	rec.Observe(ctx, snapshotEvent(transmitter.ConnConnected, transmitter.BroadcastArming, transmitter.WatchdogWarning, "heartbeat late"))

	if len(repo.transitions) != 3 {
		t.Fatalf("recorded %d transitions, want 3", len(repo.transitions))
	}

	conn := repo.transitions[0]
	if conn.Kind != KindConnection || conn.From != "disconnected" || conn.To != "connected" {
		t.Errorf("connection edge = %+v", conn)
	}
	if conn.Reason != "handshake complete" {
		t.Errorf("Reason = %q", conn.Reason)
	}

	bcast := repo.transitions[1]
	if bcast.Kind != KindBroadcast || bcast.From != "idle" || bcast.To != "arming" {
		t.Errorf("broadcast edge = %+v", bcast)
	}

	wd := repo.transitions[2]
	if wd.Kind != KindWatchdog || wd.From != "ok" || wd.To != "warning" {
		t.Errorf("watchdog edge = %+v", wd)
	}
}

func TestRecorder_IgnoresUnchangedSnapshots(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(repo, nil)
	ctx := context.Background()

	evt := snapshotEvent(transmitter.ConnConnected, transmitter.BroadcastBroadcasting, transmitter.WatchdogOk, "")
	rec.Observe(ctx, evt)
	rec.Observe(ctx, evt)
	rec.Observe(ctx, evt)

	if len(repo.transitions) != 0 {
		t.Errorf("recorded %d transitions for unchanged snapshots, want 0", len(repo.transitions))
	}
}

func TestRecorder_SimultaneousEdges(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(repo, nil)
	ctx := context.Background()

	// A watchdog trip forces broadcast to emergency in the same snapshot.
	rec.Observe(ctx, snapshotEvent(transmitter.ConnConnected, transmitter.BroadcastBroadcasting, transmitter.WatchdogOk, ""))
	rec.Observe(ctx, snapshotEvent(transmitter.ConnConnected, transmitter.BroadcastEmergency, transmitter.WatchdogTriggered, "watchdog expired"))

	if len(repo.transitions) != 2 {
		t.Fatalf("recorded %d transitions, want 2", len(repo.transitions))
	}
	kinds := map[string]bool{}
	for _, tr := range repo.transitions {
		kinds[tr.Kind] = true
	}
	if !kinds[KindBroadcast] || !kinds[KindWatchdog] {
		t.Errorf("kinds = %v, want broadcast and watchdog", kinds)
	}
}
