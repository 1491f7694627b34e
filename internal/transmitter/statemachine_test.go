package transmitter

import (
	"errors"
	"testing"
)

// driveTo walks a fresh machine into the given state.
func driveTo(t *testing.T, m *BroadcastMachine, target BroadcastState) {
	t.Helper()

	steps := map[BroadcastState]func() (StateChange, error){
		BroadcastArming:       m.RequestArm,
		BroadcastArmed:        m.ConfirmArmed,
		BroadcastStarting:     m.RequestStart,
		BroadcastBroadcasting: m.ConfirmBroadcasting,
		BroadcastStopping:     m.RequestStop,
		BroadcastEmergency:    m.RequestEmergency,
	}

	order := []BroadcastState{
		BroadcastArming, BroadcastArmed, BroadcastStarting,
		BroadcastBroadcasting, BroadcastStopping,
	}

	if target == BroadcastIdle {
		return
	}
	if target == BroadcastEmergency {
		if _, err := steps[BroadcastEmergency](); err != nil {
			t.Fatalf("driveTo emergency: %v", err)
		}
		return
	}
	for _, state := range order {
		if _, err := steps[state](); err != nil {
			t.Fatalf("driveTo %s: step %s: %v", target, state, err)
		}
		if state == target {
			return
		}
	}
	t.Fatalf("driveTo: unknown target %s", target)
}

func TestBroadcastMachineHappyPath(t *testing.T) {
	m := NewBroadcastMachine()

	change, err := m.RequestArm()
	if err != nil {
		t.Fatalf("RequestArm() error: %v", err)
	}
	if change.From != BroadcastIdle || change.To != BroadcastArming || !change.Changed {
		t.Errorf("RequestArm() = %+v", change)
	}

	change, err = m.ConfirmArmed()
	if err != nil || change.To != BroadcastArmed {
		t.Fatalf("ConfirmArmed() = %+v, %v", change, err)
	}

	change, err = m.RequestStart()
	if err != nil || change.To != BroadcastStarting {
		t.Fatalf("RequestStart() = %+v, %v", change, err)
	}

	change, err = m.ConfirmBroadcasting()
	if err != nil || change.To != BroadcastBroadcasting {
		t.Fatalf("ConfirmBroadcasting() = %+v, %v", change, err)
	}

	change, err = m.RequestStop()
	if err != nil || change.To != BroadcastStopping {
		t.Fatalf("RequestStop() = %+v, %v", change, err)
	}

	change, err = m.ConfirmStopped()
	if err != nil || change.To != BroadcastIdle {
		t.Fatalf("ConfirmStopped() = %+v, %v", change, err)
	}

	if m.State() != BroadcastIdle {
		t.Errorf("State() = %q, want idle", m.State())
	}
}

func TestBroadcastMachineRequestRejections(t *testing.T) {
	tests := []struct {
		name    string
		from    BroadcastState
		command string
	}{
		{name: "start from idle", from: BroadcastIdle, command: "start"},
		{name: "stop from idle", from: BroadcastIdle, command: "stop"},
		{name: "arm from armed", from: BroadcastArmed, command: "arm"},
		{name: "arm from broadcasting", from: BroadcastBroadcasting, command: "arm"},
		{name: "start from broadcasting", from: BroadcastBroadcasting, command: "start"},
		{name: "stop from stopping", from: BroadcastStopping, command: "stop"},
		{name: "stop from emergency", from: BroadcastEmergency, command: "stop"},
		{name: "arm from emergency", from: BroadcastEmergency, command: "arm"},
		{name: "start from emergency", from: BroadcastEmergency, command: "start"},
		{name: "clear emergency from idle", from: BroadcastIdle, command: "clear_emergency"},
		{name: "emergency from emergency", from: BroadcastEmergency, command: "emergency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewBroadcastMachine()
			driveTo(t, m, tt.from)

			var err error
			switch tt.command {
			case "arm":
				_, err = m.RequestArm()
			case "start":
				_, err = m.RequestStart()
			case "stop":
				_, err = m.RequestStop()
			case "emergency":
				_, err = m.RequestEmergency()
			case "clear_emergency":
				_, err = m.RequestStopEmergency()
			}

			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("%s from %s = %v, want ErrInvalidTransition", tt.command, tt.from, err)
			}
			if m.State() != tt.from {
				t.Errorf("state moved to %q on rejected command", m.State())
			}
		})
	}
}

func TestBroadcastMachineStopBeforeCarrier(t *testing.T) {
	// Stop from Arming or Armed goes straight to Idle: nothing was
	// keyed, nothing to wait for.
	for _, from := range []BroadcastState{BroadcastArming, BroadcastArmed} {
		m := NewBroadcastMachine()
		driveTo(t, m, from)

		change, err := m.RequestStop()
		if err != nil {
			t.Fatalf("RequestStop() from %s error: %v", from, err)
		}
		if change.To != BroadcastIdle {
			t.Errorf("RequestStop() from %s = %q, want idle", from, change.To)
		}
	}
}

func TestBroadcastMachineConfirmIdempotence(t *testing.T) {
	m := NewBroadcastMachine()

	// Confirmations outside their window are silent no-ops.
	change, err := m.ConfirmArmed()
	if err != nil || change.Changed {
		t.Errorf("ConfirmArmed() from idle = %+v, %v, want no-op", change, err)
	}
	change, err = m.ConfirmStopped()
	if err != nil || change.Changed {
		t.Errorf("ConfirmStopped() from idle = %+v, %v, want no-op", change, err)
	}
	change, err = m.ConfirmBroadcasting()
	if err != nil || change.Changed {
		t.Errorf("ConfirmBroadcasting() from idle = %+v, %v, want no-op", change, err)
	}

	// Double confirm changes once.
	driveTo(t, m, BroadcastStarting)
	first, _ := m.ConfirmBroadcasting()
	second, _ := m.ConfirmBroadcasting()
	if !first.Changed || second.Changed {
		t.Errorf("double ConfirmBroadcasting() = %+v then %+v, want one change", first, second)
	}
}

func TestBroadcastMachineDeviceObservedCarrier(t *testing.T) {
	// A poll can see the carrier before the start request lands; the
	// device report wins.
	m := NewBroadcastMachine()
	driveTo(t, m, BroadcastArmed)

	change, err := m.ConfirmBroadcasting()
	if err != nil {
		t.Fatalf("ConfirmBroadcasting() from armed: %v", err)
	}
	if change.To != BroadcastBroadcasting || !change.Changed {
		t.Errorf("ConfirmBroadcasting() from armed = %+v", change)
	}

	// Likewise a carrier dropping on its own while broadcasting.
	change, _ = m.ConfirmStopped()
	if change.To != BroadcastIdle || !change.Changed {
		t.Errorf("ConfirmStopped() from broadcasting = %+v", change)
	}
}

func TestBroadcastMachineEmergency(t *testing.T) {
	for _, from := range []BroadcastState{
		BroadcastIdle, BroadcastArming, BroadcastArmed,
		BroadcastStarting, BroadcastBroadcasting, BroadcastStopping,
	} {
		m := NewBroadcastMachine()
		driveTo(t, m, from)

		change, err := m.RequestEmergency()
		if err != nil {
			t.Fatalf("RequestEmergency() from %s: %v", from, err)
		}
		if change.To != BroadcastEmergency {
			t.Errorf("RequestEmergency() from %s = %q", from, change.To)
		}

		change, err = m.RequestStopEmergency()
		if err != nil || change.To != BroadcastIdle {
			t.Errorf("RequestStopEmergency() = %+v, %v", change, err)
		}
	}
}

func TestBroadcastMachineForceIdle(t *testing.T) {
	for _, from := range []BroadcastState{
		BroadcastIdle, BroadcastArming, BroadcastArmed,
		BroadcastStarting, BroadcastBroadcasting,
		BroadcastStopping, BroadcastEmergency,
	} {
		m := NewBroadcastMachine()
		driveTo(t, m, from)

		change := m.ForceIdle("watchdog triggered")
		if m.State() != BroadcastIdle {
			t.Errorf("ForceIdle() from %s left state %q", from, m.State())
		}
		if change.Reason != "watchdog triggered" {
			t.Errorf("Reason = %q", change.Reason)
		}
		if from == BroadcastIdle && change.Changed {
			t.Error("ForceIdle() from idle reported a change")
		}
		if from != BroadcastIdle && !change.Changed {
			t.Errorf("ForceIdle() from %s reported no change", from)
		}
	}
}
