package transmitter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Supervisor owns the device session end to end: the socket, the
// heartbeat, the poll loop, reconnection and the canonical state.
// Everything else in the system talks to the transmitter through it.
//
// One goroutine (the poll loop) does all periodic I/O. Operator
// commands run on the caller's goroutine but serialise with the poll
// loop at the client, which admits one exchange at a time. No lock
// is ever held while another is acquired.
type Supervisor struct {
	opts   Options
	logger Logger

	client   *Client
	store    *StateStore
	machine  *BroadcastMachine
	watchdog *WatchdogMonitor
	bus      *Bus

	// mu serialises Connect and Disconnect.
	mu            sync.Mutex
	done          chan struct{}
	sessionCancel context.CancelFunc
	wg            sync.WaitGroup

	running           atomic.Bool
	reconnecting      atomic.Bool
	consecutiveErrors atomic.Int32

	// cmdSeq bumps on every lifecycle command. A status report read
	// before a command landed must not confirm transitions after
	// it, or a pre-start "carrier off" report would rewind the
	// machine the command just advanced.
	cmdSeq atomic.Uint64

	// lastWatchdog tracks edges for warning and trigger events.
	// Touched only from the session goroutine and from Connect
	// before the loop starts.
	lastWatchdog WatchdogState

	pollTicks       atomic.Uint64
	pollErrors      atomic.Uint64
	connectionsLost atomic.Uint64
	reconnects      atomic.Uint64
}

// NewSupervisor creates a supervisor. The session starts on Connect.
func NewSupervisor(opts Options) (*Supervisor, error) {
	if err := opts.normalise(); err != nil {
		return nil, fmt.Errorf("transmitter options: %w", err)
	}
	return &Supervisor{
		opts:         opts,
		logger:       opts.Logger,
		client:       NewClient(opts.Addr, opts.ConnectTimeout, opts.CommandTimeout),
		store:        NewStateStore(),
		machine:      NewBroadcastMachine(),
		watchdog:     NewWatchdogMonitorWithWarn(opts.WatchdogTimeout, opts.WatchdogWarnFraction),
		bus:          NewBus(opts.EventBuffer),
		lastWatchdog: WatchdogOk,
	}, nil
}

// Connect dials the device, runs the handshake and starts the poll
// loop. Returns ErrAlreadyConnected when a session is active.
func (s *Supervisor) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return ErrAlreadyConnected
	}

	s.logger.Info("connecting to transmitter", "addr", s.opts.Addr)
	s.store.Update(func(st *DeviceState) {
		st.Connection = ConnConnecting
	})

	if err := s.establish(ctx); err != nil {
		s.store.Update(func(st *DeviceState) {
			st.Connection = ConnDisconnected
			st.Stale = true
		})
		return err
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	s.sessionCancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)
	s.wg.Add(1)
	go s.pollLoop(sessionCtx, s.done)
	return nil
}

// Disconnect drops the carrier, stops the poll loop and closes the
// socket. The device watchdog would kill the output on its own once
// heartbeats stop; sending OUTPUT:STATE OFF first just skips the
// wait. Returns ErrNotConnected when no session is active.
func (s *Supervisor) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return ErrNotConnected
	}

	if s.client.Connected() {
		if err := s.client.Set(ctx, CmdMasterOutput(false)); err != nil {
			s.logger.Warn("output off on disconnect failed", "error", err)
		}
	}

	s.sessionCancel()
	close(s.done)
	s.wg.Wait()
	s.client.Close()
	s.running.Store(false)

	change := s.machine.ForceIdle("disconnected")
	s.watchdog.Reset()
	s.lastWatchdog = WatchdogOk
	// Everything learned from the dead session goes with it. The
	// next session starts from the power-on snapshot, like the
	// device itself.
	s.store.Update(func(st *DeviceState) {
		*st = newDeviceState()
	})
	s.publishStateChange(change)
	s.logger.Info("transmitter session closed")
	return nil
}

// Connected reports whether a session is active. True also while a
// reconnection is in progress.
func (s *Supervisor) Connected() bool { return s.running.Load() }

// State returns a copy of the canonical device snapshot.
func (s *Supervisor) State() DeviceState { return s.store.Snapshot() }

// Subscribe attaches a named event subscriber.
func (s *Supervisor) Subscribe(name string) *Subscription { return s.bus.Subscribe(name) }

// Unsubscribe detaches a subscriber and closes its channel.
func (s *Supervisor) Unsubscribe(sub *Subscription) { s.bus.Unsubscribe(sub) }

// Close releases the supervisor: active session torn down, event bus
// closed. The supervisor is not reusable afterwards.
func (s *Supervisor) Close(ctx context.Context) error {
	err := s.Disconnect(ctx)
	if errors.Is(err, ErrNotConnected) {
		err = nil
	}
	s.bus.Close()
	return err
}

// establish runs dial plus handshake: identify, read the status the
// device wakes up with, read the watchdog flags, then send the first
// heartbeat. The watchdog query runs before the first reset so a
// trigger from an outage is seen rather than silently cleared.
func (s *Supervisor) establish(ctx context.Context) error {
	if err := s.client.Connect(ctx); err != nil {
		return err
	}

	fail := func(stage string, err error) error {
		s.client.Close()
		return fmt.Errorf("%w: %s: %w", ErrConnectionFailed, stage, err)
	}

	identity, err := s.client.Identify(ctx)
	if err != nil {
		return fail("identify", err)
	}
	report, err := s.client.QueryStatus(ctx)
	if err != nil {
		return fail("initial status", err)
	}
	wd, err := s.client.QueryWatchdog(ctx)
	if err != nil {
		return fail("watchdog status", err)
	}
	if err := s.client.ResetWatchdog(ctx); err != nil {
		return fail("first heartbeat", err)
	}

	now := time.Now().UTC()
	s.watchdog.NoteReset(now)
	s.consecutiveErrors.Store(0)
	s.store.Update(func(st *DeviceState) {
		st.Connection = ConnConnected
		st.Identity = identity
	})
	s.applyReport(report, now, s.cmdSeq.Load())
	s.evalWatchdog(now, wd)

	s.logger.Info("transmitter session established",
		"addr", s.opts.Addr,
		"device", identity.String(),
		"watchdog_timeout", s.watchdog.Timeout(),
	)
	s.bus.Publish(Event{
		Type:   EventConnectionEstablished,
		State:  s.store.Snapshot(),
		Detail: identity.String(),
	})
	return nil
}

// pollLoop drives the session at the configured cadence until the
// done channel closes or reconnection is exhausted.
func (s *Supervisor) pollLoop(ctx context.Context, done chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !s.pollTick(ctx) {
				return
			}
		}
	}
}

// pollTick runs one poll cycle. Returns false when the session is
// over for good.
func (s *Supervisor) pollTick(ctx context.Context) bool {
	s.pollTicks.Add(1)
	if err := s.pollOnce(ctx); err != nil {
		return s.noteTickError(ctx, err)
	}
	return true
}

// pollOnce is one healthy cycle: heartbeat first so the device
// watchdog is fed before anything else, then status, then watchdog
// flags.
func (s *Supervisor) pollOnce(ctx context.Context) error {
	now := time.Now().UTC()
	seq := s.cmdSeq.Load()

	if err := s.client.ResetWatchdog(ctx); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	s.watchdog.NoteReset(now)

	report, err := s.client.QueryStatus(ctx)
	if err != nil {
		return fmt.Errorf("status poll: %w", err)
	}
	wd, err := s.client.QueryWatchdog(ctx)
	if err != nil {
		return fmt.Errorf("watchdog poll: %w", err)
	}

	s.consecutiveErrors.Store(0)
	s.applyReport(report, now, seq)
	s.evalWatchdog(now, wd)

	s.bus.Publish(Event{
		Type:  EventStateUpdated,
		State: s.store.Snapshot(),
	})
	return nil
}

// noteTickError counts a failed cycle and escalates to recovery at
// the threshold. Returns false when the session is over.
func (s *Supervisor) noteTickError(ctx context.Context, err error) bool {
	s.pollErrors.Add(1)
	n := s.consecutiveErrors.Add(1)
	s.store.MarkStale()
	s.logger.Warn("transmitter poll failed",
		"error", err,
		"consecutive", n,
		"threshold", s.opts.MaxConsecutiveErrors,
	)
	if int(n) < s.opts.MaxConsecutiveErrors {
		return true
	}
	return s.recoverSession(ctx, err)
}

// recoverSession declares the connection lost exactly once and walks
// the retry schedule. Runs on the session goroutine, so operator
// commands fail fast with ErrNotConnected while it works. Returns
// false when retries are exhausted or the session was cancelled.
func (s *Supervisor) recoverSession(ctx context.Context, cause error) bool {
	if !s.reconnecting.CompareAndSwap(false, true) {
		return true
	}
	defer s.reconnecting.Store(false)

	s.connectionsLost.Add(1)
	s.consecutiveErrors.Store(0)
	s.client.Close()
	s.store.Update(func(st *DeviceState) {
		st.Connection = ConnReconnecting
		st.Stale = true
	})
	s.logger.Error("transmitter connection lost", "error", cause)
	s.bus.Publish(Event{
		Type:   EventConnectionLost,
		State:  s.store.Snapshot(),
		Detail: cause.Error(),
	})

	// Heartbeats stopped landing, so the device timeout has elapsed
	// on the far side and the RF output is already dead. Treat it as
	// a watchdog trigger: latch, announce, and drop the lifecycle to
	// idle rather than keep claiming an active broadcast.
	s.watchdog.Trip()
	if s.lastWatchdog != WatchdogTriggered {
		s.lastWatchdog = WatchdogTriggered
		s.syncSnapshot()
		s.logger.Error("heartbeats undeliverable, presuming device watchdog fired")
		s.bus.Publish(Event{
			Type:   EventWatchdogTriggered,
			State:  s.store.Snapshot(),
			Detail: "heartbeat delivery failed",
		})
	}
	change := s.machine.ForceIdle("watchdog presumed triggered")
	s.publishStateChange(change)

	err := s.opts.Retry.Do(ctx,
		func(ctx context.Context) error { return s.establish(ctx) },
		func(attempt int, delay time.Duration) {
			s.reconnects.Add(1)
			s.logger.Info("reconnecting to transmitter",
				"attempt", attempt+1,
				"max_attempts", s.opts.Retry.MaxAttempts,
				"delay", delay,
			)
			s.bus.Publish(Event{
				Type:    EventReconnecting,
				State:   s.store.Snapshot(),
				Attempt: attempt + 1,
			})
		},
	)
	if err == nil {
		return true
	}
	if ctx.Err() != nil {
		return false
	}

	s.logger.Error("transmitter reconnection exhausted", "error", err)
	s.store.Update(func(st *DeviceState) {
		st.Connection = ConnDisconnected
		st.Stale = true
	})
	change = s.machine.ForceIdle("reconnection exhausted")
	s.publishStateChange(change)
	s.bus.Publish(Event{
		Type:   EventReconnectFailed,
		State:  s.store.Snapshot(),
		Detail: err.Error(),
	})
	s.running.Store(false)
	return false
}

// applyReport folds a status report into the store and lets the
// device's broadcasting flag confirm pending transitions. Drift in
// channel or source settings that the device reports on its own
// surfaces as events, except on the first report after a (re)connect
// where the whole snapshot is expected to move.
//
// seq is the command sequence captured before the report was read.
// When it no longer matches, a lifecycle command ran while the report
// was in flight, so the broadcasting flag describes the device before
// that command and must not confirm or rewind anything.
func (s *Supervisor) applyReport(report StatusReport, now time.Time, seq uint64) {
	prev := s.store.Snapshot()

	if report.WatchdogTriggered != nil {
		s.watchdog.ObserveDevice(*report.WatchdogTriggered)
	}
	if report.WatchdogWarning != nil {
		s.watchdog.ObserveWarning(*report.WatchdogWarning)
	}

	s.store.Update(func(st *DeviceState) {
		st.Connection = ConnConnected
		st.Stale = false
		st.LastContact = now
		if report.Source != nil {
			st.Source = *report.Source
		}
		if report.CurrentMessage != nil {
			st.CurrentMessage = *report.CurrentMessage
		}
		if report.AudioLoading != nil {
			st.AudioLoading = *report.AudioLoading
		}
		if report.TemperatureC != nil {
			st.TemperatureC = *report.TemperatureC
		}
		for id, ch := range report.Channels {
			idx := id - 1
			if ch.HasEnabled {
				st.Channels[idx].Enabled = ch.Enabled
			}
			if ch.HasFrequency {
				st.Channels[idx].FrequencyHz = ch.FrequencyHz
			}
		}
	})

	if !prev.Stale {
		next := s.store.Snapshot()
		for i := range next.Channels {
			if prev.Channels[i] != next.Channels[i] {
				s.bus.Publish(Event{
					Type:    EventChannelChanged,
					State:   next,
					Channel: i + 1,
				})
			}
		}
		if prev.Source != next.Source {
			s.bus.Publish(Event{
				Type:   EventSourceChanged,
				State:  next,
				Detail: string(next.Source),
			})
		}
	}

	if report.Broadcasting != nil && seq == s.cmdSeq.Load() {
		var change StateChange
		if *report.Broadcasting {
			change, _ = s.machine.ConfirmBroadcasting()
		} else {
			change, _ = s.machine.ConfirmStopped()
		}
		s.publishStateChange(change)
	}
}

// evalWatchdog records the device's watchdog flags and reacts to
// state edges. A trigger, device-reported or presumed locally when
// heartbeats stop landing, forces the broadcast lifecycle back to
// idle and latches until an explicit reset.
func (s *Supervisor) evalWatchdog(now time.Time, wd WatchdogStatus) {
	s.watchdog.ObserveDevice(wd.Triggered)
	s.watchdog.ObserveWarning(wd.Warning)
	wdState := s.watchdog.State(now)

	prev := s.lastWatchdog
	s.syncSnapshot()
	if wdState == prev {
		return
	}
	s.lastWatchdog = wdState

	switch wdState {
	case WatchdogTriggered:
		s.logger.Error("hardware watchdog fired, device killed RF output")
		s.bus.Publish(Event{
			Type:   EventWatchdogTriggered,
			State:  s.store.Snapshot(),
			Detail: "device reported watchdog trigger",
		})
		change := s.machine.ForceIdle("watchdog triggered")
		s.publishStateChange(change)
	case WatchdogWarning:
		s.logger.Warn("watchdog heartbeat overdue",
			"since_reset", s.watchdog.SinceReset(now),
			"timeout", s.watchdog.Timeout(),
		)
		s.bus.Publish(Event{
			Type:  EventWatchdogWarning,
			State: s.store.Snapshot(),
		})
	case WatchdogOk:
		if prev == WatchdogTriggered {
			s.logger.Info("watchdog trigger cleared")
		}
	}
}

// syncSnapshot copies the derived machine and watchdog states into
// the store.
func (s *Supervisor) syncSnapshot() {
	broadcast := s.machine.State()
	wdState := s.watchdog.State(time.Now().UTC())
	s.store.Update(func(st *DeviceState) {
		st.Broadcast = broadcast
		st.Watchdog = wdState
	})
}

// publishStateChange mirrors a machine transition into the store and
// the bus, deriving the lifecycle edge events from the from/to pair.
func (s *Supervisor) publishStateChange(change StateChange) {
	if !change.Changed {
		return
	}
	s.syncSnapshot()
	snapshot := s.store.Snapshot()

	detail := fmt.Sprintf("%s -> %s", change.From, change.To)
	if change.Reason != "" {
		detail = fmt.Sprintf("%s (%s)", detail, change.Reason)
	}
	s.bus.Publish(Event{Type: EventStateChanged, State: snapshot, Detail: detail})

	switch {
	case change.To == BroadcastBroadcasting:
		s.bus.Publish(Event{Type: EventBroadcastStarted, State: snapshot})
	case change.To == BroadcastEmergency:
		s.bus.Publish(Event{Type: EventEmergencyActivated, State: snapshot})
	case change.From == BroadcastEmergency && change.To == BroadcastIdle:
		s.bus.Publish(Event{Type: EventEmergencyCleared, State: snapshot})
	case change.To == BroadcastIdle && wasCarrierState(change.From):
		s.bus.Publish(Event{Type: EventBroadcastStopped, State: snapshot, Detail: change.Reason})
	}
}

// wasCarrierState reports whether a state had, or was bringing up, a
// live carrier.
func wasCarrierState(state BroadcastState) bool {
	switch state {
	case BroadcastStarting, BroadcastBroadcasting, BroadcastStopping:
		return true
	default:
		return false
	}
}

// requireSession gates operator commands on an open socket. During a
// reconnection the socket is closed, so commands fail fast here
// instead of timing out.
func (s *Supervisor) requireSession() error {
	if !s.client.Connected() {
		return ErrNotConnected
	}
	return nil
}

// requireWatchdogClear gates lifecycle commands on the watchdog
// latch. A tripped watchdog is a trap state: ResetWatchdog is the
// only way out.
func (s *Supervisor) requireWatchdogClear() error {
	if s.watchdog.State(time.Now().UTC()) == WatchdogTriggered {
		return ErrWatchdogTriggered
	}
	return nil
}

// Arm moves Idle to Armed once the device proves responsive. The
// liveness probe doubles as a heartbeat. Refused while the watchdog
// trigger is latched: the operator has to acknowledge the trip with
// an explicit reset before the lifecycle moves again.
func (s *Supervisor) Arm(ctx context.Context) error {
	if err := s.requireSession(); err != nil {
		return err
	}
	if err := s.requireWatchdogClear(); err != nil {
		return err
	}
	change, err := s.machine.RequestArm()
	if err != nil {
		return err
	}
	s.cmdSeq.Add(1)
	s.publishStateChange(change)

	if err := s.client.ResetWatchdog(ctx); err != nil {
		revert, _ := s.machine.RequestStop()
		s.publishStateChange(revert)
		return fmt.Errorf("arm: device probe: %w", err)
	}
	s.watchdog.NoteReset(time.Now().UTC())

	confirmed, _ := s.machine.ConfirmArmed()
	s.publishStateChange(confirmed)
	s.logger.Info("transmitter armed")
	return nil
}

// StartBroadcast keys the RF output. Requires Armed and a clear
// watchdog.
func (s *Supervisor) StartBroadcast(ctx context.Context) error {
	if err := s.requireSession(); err != nil {
		return err
	}
	if err := s.requireWatchdogClear(); err != nil {
		return err
	}
	change, err := s.machine.RequestStart()
	if err != nil {
		return err
	}
	s.cmdSeq.Add(1)
	s.publishStateChange(change)

	if err := s.client.Set(ctx, CmdMasterOutput(true)); err != nil {
		revert, _ := s.machine.ConfirmStopped()
		s.publishStateChange(revert)
		return fmt.Errorf("start broadcast: %w", err)
	}

	confirmed, _ := s.machine.ConfirmBroadcasting()
	s.publishStateChange(confirmed)
	s.logger.Info("broadcast started")
	return nil
}

// StopBroadcast unkeys the RF output. From Arming or Armed it just
// winds the lifecycle back to Idle; with a carrier up it commands
// the device and confirms on its acknowledgement. If the command
// fails the machine stays in Stopping and the poll loop confirms
// once the device reports the carrier down.
func (s *Supervisor) StopBroadcast(ctx context.Context) error {
	if err := s.requireSession(); err != nil {
		return err
	}
	change, err := s.machine.RequestStop()
	if err != nil {
		return err
	}
	s.cmdSeq.Add(1)
	s.publishStateChange(change)

	if change.To != BroadcastStopping {
		return nil
	}
	if err := s.client.Set(ctx, CmdMasterOutput(false)); err != nil {
		return fmt.Errorf("stop broadcast: %w", err)
	}

	confirmed, _ := s.machine.ConfirmStopped()
	s.publishStateChange(confirmed)
	s.logger.Info("broadcast stopped")
	return nil
}

// EmergencyStop cuts the carrier and latches the Emergency state.
// The state latches even if the off command fails: heartbeats keep
// flowing, but the operator has to clear the emergency explicitly,
// and the device watchdog backstops a dead link.
func (s *Supervisor) EmergencyStop(ctx context.Context) error {
	if err := s.requireSession(); err != nil {
		return err
	}
	change, err := s.machine.RequestEmergency()
	if err != nil {
		return err
	}
	s.cmdSeq.Add(1)
	s.publishStateChange(change)
	s.logger.Error("emergency stop activated")

	if err := s.client.Set(ctx, CmdMasterOutput(false)); err != nil {
		s.logger.Error("emergency output off failed", "error", err)
		return fmt.Errorf("emergency stop: %w", err)
	}
	return nil
}

// ClearEmergency returns from Emergency to Idle. A latched watchdog
// trigger blocks the exit the same way it blocks arming.
func (s *Supervisor) ClearEmergency(ctx context.Context) error {
	if err := s.requireSession(); err != nil {
		return err
	}
	if err := s.requireWatchdogClear(); err != nil {
		return err
	}
	change, err := s.machine.RequestStopEmergency()
	if err != nil {
		return err
	}
	s.cmdSeq.Add(1)
	s.publishStateChange(change)
	s.logger.Info("emergency stop cleared")
	return nil
}

// SetChannel programs one carrier: frequency first, then output
// enable, so a channel never radiates on a stale frequency.
func (s *Supervisor) SetChannel(ctx context.Context, channel int, enabled bool, frequencyHz int64) error {
	if err := ValidateChannel(channel); err != nil {
		return err
	}
	if err := ValidateFrequency(frequencyHz); err != nil {
		return err
	}
	if err := s.requireSession(); err != nil {
		return err
	}

	if err := s.client.Set(ctx, CmdChannelFrequency(channel, frequencyHz)); err != nil {
		return fmt.Errorf("set channel %d frequency: %w", channel, err)
	}
	if err := s.client.Set(ctx, CmdChannelOutput(channel, enabled)); err != nil {
		return fmt.Errorf("set channel %d output: %w", channel, err)
	}

	s.store.Update(func(st *DeviceState) {
		st.Channels[channel-1].Enabled = enabled
		st.Channels[channel-1].FrequencyHz = frequencyHz
	})
	s.bus.Publish(Event{
		Type:    EventChannelChanged,
		State:   s.store.Snapshot(),
		Channel: channel,
	})
	return nil
}

// ApplyPreset programs a whole carrier plan: per-channel frequencies
// first, then one bulk enable mask.
func (s *Supervisor) ApplyPreset(ctx context.Context, count int) error {
	plan, err := PlanPreset(count)
	if err != nil {
		return err
	}
	mask, err := PresetMask(count)
	if err != nil {
		return err
	}
	if err := s.requireSession(); err != nil {
		return err
	}

	for _, ch := range plan {
		if !ch.Enabled {
			continue
		}
		if err := s.client.Set(ctx, CmdChannelFrequency(ch.ID, ch.FrequencyHz)); err != nil {
			return fmt.Errorf("preset %d: channel %d frequency: %w", count, ch.ID, err)
		}
	}
	if err := s.client.Set(ctx, CmdEnableMask(mask)); err != nil {
		return fmt.Errorf("preset %d: enable mask: %w", count, err)
	}

	prev := s.store.Snapshot()
	s.store.Update(func(st *DeviceState) {
		st.Channels = plan
	})
	snapshot := s.store.Snapshot()
	for i := range plan {
		if prev.Channels[i] != plan[i] {
			s.bus.Publish(Event{
				Type:    EventChannelChanged,
				State:   snapshot,
				Channel: i + 1,
			})
		}
	}
	s.logger.Info("channel preset applied", "carriers", count, "mask", fmt.Sprintf("%#x", mask))
	return nil
}

// SetSource switches the audio source. The device may answer
// OK:LOADING while it streams audio into memory; that still counts
// as accepted, and AudioLoading in the snapshot tracks completion.
func (s *Supervisor) SetSource(ctx context.Context, mode SourceMode) error {
	if mode != SourceBRAM && mode != SourceADC {
		return fmt.Errorf("unknown source mode %q", mode)
	}
	if err := s.requireSession(); err != nil {
		return err
	}

	if err := s.client.Set(ctx, CmdSourceMode(mode)); err != nil {
		return fmt.Errorf("set source %s: %w", mode, err)
	}

	s.store.Update(func(st *DeviceState) {
		st.Source = mode
	})
	s.bus.Publish(Event{
		Type:   EventSourceChanged,
		State:  s.store.Snapshot(),
		Detail: string(mode),
	})
	return nil
}

// SelectMessage picks a stored audio message by slot.
func (s *Supervisor) SelectMessage(ctx context.Context, id int) error {
	if id < 0 {
		return fmt.Errorf("message id %d out of range", id)
	}
	if err := s.requireSession(); err != nil {
		return err
	}

	if err := s.client.Set(ctx, CmdSelectMessage(id)); err != nil {
		return fmt.Errorf("select message %d: %w", id, err)
	}

	s.store.Update(func(st *DeviceState) {
		st.CurrentMessage = id
	})
	s.bus.Publish(Event{
		Type:   EventSourceChanged,
		State:  s.store.Snapshot(),
		Detail: fmt.Sprintf("message %d", id),
	})
	return nil
}

// ResetWatchdog sends a manual heartbeat outside the poll cadence
// and releases a latched trigger. This is the explicit operator
// acknowledgement that reopens arm and start after a trip.
func (s *Supervisor) ResetWatchdog(ctx context.Context) error {
	if err := s.requireSession(); err != nil {
		return err
	}
	if err := s.client.ResetWatchdog(ctx); err != nil {
		return err
	}
	s.watchdog.NoteReset(time.Now().UTC())
	s.watchdog.ClearTrigger()
	s.syncSnapshot()
	return nil
}

// SupervisorStats is a point-in-time counter snapshot.
type SupervisorStats struct {
	Connection        ConnectionState `json:"connection"`
	Broadcast         BroadcastState  `json:"broadcast"`
	Watchdog          WatchdogState   `json:"watchdog"`
	HeartbeatAge      time.Duration   `json:"heartbeat_age_ns"`
	PollTicks         uint64          `json:"poll_ticks"`
	PollErrors        uint64          `json:"poll_errors"`
	ConsecutiveErrors int32           `json:"consecutive_errors"`
	ConnectionsLost   uint64          `json:"connections_lost"`
	ReconnectAttempts uint64          `json:"reconnect_attempts"`
	Client            ClientStats     `json:"client"`
	Bus               BusStats        `json:"bus"`
}

// Stats returns current supervisor counters.
func (s *Supervisor) Stats() SupervisorStats {
	now := time.Now().UTC()
	snapshot := s.store.Snapshot()
	return SupervisorStats{
		Connection:        snapshot.Connection,
		Broadcast:         snapshot.Broadcast,
		Watchdog:          s.watchdog.State(now),
		HeartbeatAge:      s.watchdog.SinceReset(now),
		PollTicks:         s.pollTicks.Load(),
		PollErrors:        s.pollErrors.Load(),
		ConsecutiveErrors: s.consecutiveErrors.Load(),
		ConnectionsLost:   s.connectionsLost.Load(),
		ReconnectAttempts: s.reconnects.Load(),
		Client:            s.client.Stats(),
		Bus:               s.bus.Stats(),
	}
}
