package transmitter

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeBus is an in-memory MessageBus capturing every publish and
// delivering injected commands to the subscribed handler.
type fakeBus struct {
	mu       sync.Mutex
	handlers map[string]func(topic string, payload []byte)
	messages []busMessage
}

type busMessage struct {
	topic   string
	payload []byte
	retain  bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string]func(string, []byte))}
}

func (b *fakeBus) Publish(topic string, payload []byte, retain bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, busMessage{topic: topic, payload: payload, retain: retain})
	return nil
}

func (b *fakeBus) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBus) Unsubscribe(topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, topic)
	return nil
}

// inject delivers a payload to the handler registered for the command
// filter, simulating broker delivery on a concrete topic.
func (b *fakeBus) inject(t *testing.T, topic string, payload []byte) {
	t.Helper()

	b.mu.Lock()
	var handler func(string, []byte)
	for filter, h := range b.handlers {
		if strings.TrimSuffix(filter, "+") == topic[:strings.LastIndexByte(topic, '/')+1] {
			handler = h
		}
	}
	b.mu.Unlock()

	if handler == nil {
		t.Fatalf("no handler registered matching %s", topic)
	}
	handler(topic, payload)
}

// waitForMessage polls until a publish on topic arrives.
func (b *fakeBus) waitForMessage(t *testing.T, topic string, timeout time.Duration) busMessage {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		b.mu.Lock()
		for _, msg := range b.messages {
			if msg.topic == topic {
				b.mu.Unlock()
				return msg
			}
		}
		b.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for publish on %s", topic)
	return busMessage{}
}

func newTestRemote(t *testing.T, sup *Supervisor) (*Remote, *fakeBus) {
	t.Helper()

	bus := newFakeBus()
	remote, err := NewRemote(RemoteOptions{
		Supervisor:     sup,
		Bus:            bus,
		TopicPrefix:    "radio-test",
		CommandTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("NewRemote() error: %v", err)
	}
	if err := remote.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(remote.Stop)
	return remote, bus
}

func TestNewRemoteValidation(t *testing.T) {
	device := newMockDevice(t)
	defer device.Close()
	sup := newTestSupervisor(t, device)

	if _, err := NewRemote(RemoteOptions{Bus: newFakeBus()}); err == nil {
		t.Error("expected error without supervisor")
	}
	if _, err := NewRemote(RemoteOptions{Supervisor: sup}); err == nil {
		t.Error("expected error without bus")
	}
}

func TestRemoteStartPublishesRetainedState(t *testing.T) {
	device := newMockDevice(t)
	defer device.Close()
	sup := newTestSupervisor(t, device)
	defer closeSupervisor(t, sup)

	_, bus := newTestRemote(t, sup)

	msg := bus.waitForMessage(t, "radio-test/state", time.Second)
	if !msg.retain {
		t.Error("state snapshot should be retained")
	}

	var snapshot DeviceState
	if err := json.Unmarshal(msg.payload, &snapshot); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if snapshot.Connection != ConnDisconnected {
		t.Errorf("Connection = %s, want %s", snapshot.Connection, ConnDisconnected)
	}
}

func TestRemoteCommandDispatch(t *testing.T) {
	device := newMockDevice(t)
	defer device.Close()
	sup := newTestSupervisor(t, device)
	defer closeSupervisor(t, sup)

	connectSupervisor(t, sup)
	remote, bus := newTestRemote(t, sup)

	payload := []byte(`{"id":"cmd-1","action":"arm"}`)
	bus.inject(t, "radio-test/command/arm", payload)

	msg := bus.waitForMessage(t, "radio-test/ack/cmd-1", time.Second)
	var reply remoteAck
	if err := json.Unmarshal(msg.payload, &reply); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if !reply.OK {
		t.Fatalf("ack not OK: %s", reply.Error)
	}
	if reply.State.Broadcast != BroadcastArmed {
		t.Errorf("ack state = %s, want %s", reply.State.Broadcast, BroadcastArmed)
	}
	if got := remote.Stats().CommandsHandled; got != 1 {
		t.Errorf("CommandsHandled = %d, want 1", got)
	}
}

func TestRemoteActionFromTopicLeaf(t *testing.T) {
	device := newMockDevice(t)
	defer device.Close()
	sup := newTestSupervisor(t, device)
	defer closeSupervisor(t, sup)

	connectSupervisor(t, sup)
	_, bus := newTestRemote(t, sup)

	// No action in the payload: the topic leaf decides.
	bus.inject(t, "radio-test/command/watchdog_reset", []byte(`{"id":"cmd-wd"}`))

	msg := bus.waitForMessage(t, "radio-test/ack/cmd-wd", time.Second)
	var reply remoteAck
	if err := json.Unmarshal(msg.payload, &reply); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if !reply.OK {
		t.Fatalf("ack not OK: %s", reply.Error)
	}
	if reply.Action != "watchdog_reset" {
		t.Errorf("Action = %q, want watchdog_reset", reply.Action)
	}
}

func TestRemoteCommandFailuresAcked(t *testing.T) {
	device := newMockDevice(t)
	defer device.Close()
	sup := newTestSupervisor(t, device)
	defer closeSupervisor(t, sup)

	connectSupervisor(t, sup)
	remote, bus := newTestRemote(t, sup)

	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{"unknown action", "radio-test/command/reboot", `{"id":"cmd-a","action":"reboot"}`},
		{"start without arm", "radio-test/command/start", `{"id":"cmd-b","action":"start"}`},
		{"bad source mode", "radio-test/command/set_source", `{"id":"cmd-c","action":"set_source","source":"TAPE"}`},
		{"message missing", "radio-test/command/select_message", `{"id":"cmd-d","action":"select_message"}`},
		{"channel out of range", "radio-test/command/set_channel", `{"id":"cmd-e","action":"set_channel","channel":13,"enabled":true,"frequency_hz":600000}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus.inject(t, tt.topic, []byte(tt.payload))

			var id string
			if err := json.Unmarshal([]byte(tt.payload), &struct {
				ID *string `json:"id"`
			}{&id}); err != nil {
				t.Fatalf("parse test payload: %v", err)
			}

			msg := bus.waitForMessage(t, "radio-test/ack/"+id, time.Second)
			var reply remoteAck
			if err := json.Unmarshal(msg.payload, &reply); err != nil {
				t.Fatalf("unmarshal ack: %v", err)
			}
			if reply.OK {
				t.Error("expected failure ack")
			}
			if reply.Error == "" {
				t.Error("failure ack should carry an error")
			}
		})
	}

	if got := remote.Stats().CommandErrors; got != uint64(len(tests)) {
		t.Errorf("CommandErrors = %d, want %d", got, len(tests))
	}
}

func TestRemoteBadPayloadStillAcked(t *testing.T) {
	device := newMockDevice(t)
	defer device.Close()
	sup := newTestSupervisor(t, device)
	defer closeSupervisor(t, sup)

	_, bus := newTestRemote(t, sup)

	bus.inject(t, "radio-test/command/arm", []byte(`{not json`))

	// The ack ID is generated, so match on the topic prefix instead.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		bus.mu.Lock()
		for _, msg := range bus.messages {
			if strings.HasPrefix(msg.topic, "radio-test/ack/") {
				bus.mu.Unlock()
				var reply remoteAck
				if err := json.Unmarshal(msg.payload, &reply); err != nil {
					t.Fatalf("unmarshal ack: %v", err)
				}
				if reply.OK {
					t.Error("expected failure ack for garbage payload")
				}
				return
			}
		}
		bus.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no ack published for garbage payload")
}

func TestRemoteStreamsEvents(t *testing.T) {
	device := newMockDevice(t)
	defer device.Close()
	sup := newTestSupervisor(t, device)
	defer closeSupervisor(t, sup)

	_, bus := newTestRemote(t, sup)
	connectSupervisor(t, sup)

	msg := bus.waitForMessage(t, "radio-test/event/connection_established", time.Second)
	var evt Event
	if err := json.Unmarshal(msg.payload, &evt); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if evt.State.Connection != ConnConnected {
		t.Errorf("event connection = %s, want %s", evt.State.Connection, ConnConnected)
	}
	if msg.retain {
		t.Error("events should not be retained")
	}
}

func TestHealthReporterPublishes(t *testing.T) {
	device := newMockDevice(t)
	defer device.Close()
	sup := newTestSupervisor(t, device)
	defer closeSupervisor(t, sup)

	bus := newFakeBus()
	reporter, err := NewHealthReporter(HealthReporterOptions{
		Supervisor: sup,
		Publisher:  bus,
		Topic:      "radio-test/health",
		Interval:   20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewHealthReporter() error: %v", err)
	}
	reporter.Start()

	msg := bus.waitForMessage(t, "radio-test/health", time.Second)
	if !msg.retain {
		t.Error("health reports should be retained")
	}
	var report Health
	if err := json.Unmarshal(msg.payload, &report); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if report.Status != HealthUnhealthy {
		t.Errorf("Status = %s, want %s (no session)", report.Status, HealthUnhealthy)
	}

	reporter.Stop()
	reporter.Stop() // idempotent

	bus.mu.Lock()
	last := bus.messages[len(bus.messages)-1]
	bus.mu.Unlock()
	var final Health
	if err := json.Unmarshal(last.payload, &final); err != nil {
		t.Fatalf("unmarshal final health: %v", err)
	}
	if final.Status != HealthStopping {
		t.Errorf("final Status = %s, want %s", final.Status, HealthStopping)
	}
}

func TestHealthReporterValidation(t *testing.T) {
	device := newMockDevice(t)
	defer device.Close()
	sup := newTestSupervisor(t, device)

	if _, err := NewHealthReporter(HealthReporterOptions{Publisher: newFakeBus()}); err == nil {
		t.Error("expected error without supervisor")
	}
	if _, err := NewHealthReporter(HealthReporterOptions{Supervisor: sup}); err == nil {
		t.Error("expected error without publisher")
	}
}

// connectSupervisor establishes a session or fails the test.
func connectSupervisor(t *testing.T, sup *Supervisor) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sup.Connect(ctx); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
}

// closeSupervisor shuts the session down or fails the test.
func closeSupervisor(t *testing.T, sup *Supervisor) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sup.Close(ctx); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
}
