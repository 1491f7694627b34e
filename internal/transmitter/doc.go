// Package transmitter implements the fail-safe control session for the
// AM transmitter device.
//
// The device exposes a SCPI-style line protocol over TCP and carries a
// hardware watchdog: if the control link stops feeding it, the device
// kills the RF output on its own. This package owns that link.
//
// # Architecture
//
// A single Supervisor owns the socket, the broadcast state machine, the
// watchdog monitor, and the canonical state snapshot. Everything else
// observes through the event bus or the snapshot store:
//
//	┌──────────────┐  commands   ┌──────────────┐   TCP    ┌────────────┐
//	│ API / MQTT / │────────────►│  Supervisor  │◄────────►│ Transmitter│
//	│   Programs   │◄────────────│  (this pkg)  │  SCPI    │   (FPGA)   │
//	└──────────────┘   events    └──────────────┘          └────────────┘
//
// # Key Responsibilities
//
//   - Dial, identify, and supervise the device session
//   - Feed the device watchdog every poll tick (heartbeat)
//   - Poll STATUS? and reconcile the broadcast state machine
//   - Detect connection loss and reconnect with bounded backoff
//   - Fan out typed events without ever blocking the poll loop
//   - Validate every channel/frequency mutation before any I/O
//
// # Poll Loop Ordering
//
// Each tick runs heartbeat, then status query, then snapshot update,
// then state machine reconciliation, then edge-triggered events. The
// heartbeat always goes first: a slow status parse must never starve
// the device watchdog.
//
// # State Machines
//
// Broadcast lifecycle is split into request transitions (caller
// initiated, validated, can fail) and confirm transitions (poll
// driven, idempotent, reconcile against what the device reports).
// A device-reported watchdog trigger is the only condition that
// forces the machine back to idle.
//
// # Thread Safety
//
// All exported types are safe for concurrent use. State mutation is
// single-writer: only the supervisor's goroutines write the snapshot.
//
// # References
//
//   - Wire protocol: docs/protocols/scpi.md
//   - Red Pitaya FPGA server: port 5000, newline-delimited commands
package transmitter
