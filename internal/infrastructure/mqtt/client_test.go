package mqtt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
// Broker-backed tests require a running Mosquitto at 127.0.0.1:1883
// and skip when one is not listening.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "grayradio-test",
			TLS:      false,
		},
		Auth: config.MQTTAuthConfig{
			Username: "",
			Password: "",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// requireBroker skips the test when no broker is reachable.
func requireBroker(t *testing.T) {
	t.Helper()
	cfg := testConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port)
	conn, err := net.DialTimeout("tcp", addr, 250*time.Millisecond)
	if err != nil {
		t.Skipf("no MQTT broker at %s: %v", addr, err)
	}
	conn.Close()
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect(t *testing.T) {
	requireBroker(t)
	cfg := testConfig()

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
}

func TestClose(t *testing.T) {
	requireBroker(t)
	cfg := testConfig()

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if client.IsConnected() {
		t.Error("IsConnected() = true after Close(), want false")
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

// =============================================================================
// HealthCheck Tests
// =============================================================================

func TestHealthCheck(t *testing.T) {
	requireBroker(t)
	cfg := testConfig()

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v, want nil", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	requireBroker(t)
	cfg := testConfig()

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	requireBroker(t)
	cfg := testConfig()

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	client.Close()

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Publish Tests
// =============================================================================

func TestPublish(t *testing.T) {
	requireBroker(t)
	cfg := testConfig()

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topic := Topics{}.Event("test")
	if err := client.Publish(topic, []byte(`{"test":true}`), 1, false); err != nil {
		t.Errorf("Publish() error = %v", err)
	}
}

func TestPublishRetained(t *testing.T) {
	requireBroker(t)
	cfg := testConfig()

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.PublishRetained(Topics{}.State(), []byte(`{"connection":"connected"}`)); err != nil {
		t.Errorf("PublishRetained() error = %v", err)
	}
}

func TestPublishValidation(t *testing.T) {
	client := &Client{}

	t.Run("empty topic", func(t *testing.T) {
		if err := client.Publish("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("error = %v, want ErrInvalidTopic", err)
		}
	})

	t.Run("invalid qos", func(t *testing.T) {
		if err := client.Publish("grayradio/test", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
			t.Errorf("error = %v, want ErrInvalidQoS", err)
		}
	})

	t.Run("oversized payload", func(t *testing.T) {
		payload := make([]byte, maxPayloadSize+1)
		err := client.Publish("grayradio/test", payload, 1, false)
		if !errors.Is(err, ErrPublishFailed) {
			t.Errorf("error = %v, want ErrPublishFailed", err)
		}
	})
}

// =============================================================================
// Subscribe Tests
// =============================================================================

func TestSubscribe(t *testing.T) {
	requireBroker(t)
	cfg := testConfig()

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topic := Topics{}.AllCommands()
	err = client.Subscribe(topic, 1, func(string, []byte) error { return nil })
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if !client.HasSubscription(topic) {
		t.Error("HasSubscription() = false after Subscribe")
	}
	if client.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", client.SubscriptionCount())
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := &Client{}
	handler := func(string, []byte) error { return nil }

	t.Run("empty topic", func(t *testing.T) {
		if err := client.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("error = %v, want ErrInvalidTopic", err)
		}
	})

	t.Run("invalid qos", func(t *testing.T) {
		if err := client.Subscribe("grayradio/test", 3, handler); !errors.Is(err, ErrInvalidQoS) {
			t.Errorf("error = %v, want ErrInvalidQoS", err)
		}
	})

	t.Run("nil handler", func(t *testing.T) {
		if err := client.Subscribe("grayradio/test", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
			t.Errorf("error = %v, want ErrSubscribeFailed", err)
		}
	})
}

func TestUnsubscribe(t *testing.T) {
	requireBroker(t)
	cfg := testConfig()

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topic := Topics{}.AllEvents()
	if err := client.Subscribe(topic, 1, func(string, []byte) error { return nil }); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := client.Unsubscribe(topic); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if client.HasSubscription(topic) {
		t.Error("HasSubscription() = true after Unsubscribe")
	}
}

// =============================================================================
// Roundtrip Tests
// =============================================================================

func TestPublishSubscribeRoundtrip(t *testing.T) {
	requireBroker(t)
	cfg := testConfig()
	cfg.Broker.ClientID = "grayradio-test-pub"

	pubClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pubClient.Close()

	cfg.Broker.ClientID = "grayradio-test-sub"
	subClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer subClient.Close()

	topic := "grayradio/test/roundtrip"
	expectedPayload := `{"test":"roundtrip"}`
	received := make(chan string, 1)

	err = subClient.Subscribe(topic, 1, func(_ string, payload []byte) error {
		received <- string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	// Give subscription time to register
	time.Sleep(100 * time.Millisecond)

	if err := pubClient.PublishString(topic, expectedPayload, 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case payload := <-received:
		if payload != expectedPayload {
			t.Errorf("Received payload = %q, want %q", payload, expectedPayload)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for message")
	}
}

func TestWildcardSubscription(t *testing.T) {
	requireBroker(t)
	cfg := testConfig()
	cfg.Broker.ClientID = "grayradio-test-wild-pub"

	pubClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pubClient.Close()

	cfg.Broker.ClientID = "grayradio-test-wild-sub"
	subClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer subClient.Close()

	pattern := "grayradio/test/+/edge"
	var receivedMu sync.Mutex
	receivedTopics := make(map[string]bool)

	err = subClient.Subscribe(pattern, 1, func(topic string, _ []byte) error {
		receivedMu.Lock()
		receivedTopics[topic] = true
		receivedMu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	topics := []string{
		"grayradio/test/connection/edge",
		"grayradio/test/broadcast/edge",
		"grayradio/test/watchdog/edge",
	}
	for _, topic := range topics {
		if err := pubClient.PublishString(topic, `{"ok":true}`, 1, false); err != nil {
			t.Fatalf("Publish(%s) error = %v", topic, err)
		}
	}

	time.Sleep(500 * time.Millisecond)

	receivedMu.Lock()
	defer receivedMu.Unlock()
	for _, topic := range topics {
		if !receivedTopics[topic] {
			t.Errorf("Did not receive message for topic %s", topic)
		}
	}
}

// =============================================================================
// Topics Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name     string
		builder  func() string
		expected string
	}{
		{"State", Topics{}.State, "grayradio/state"},
		{"Health", Topics{}.Health, "grayradio/health/core"},
		{"Event", func() string { return Topics{}.Event("broadcast_started") }, "grayradio/event/broadcast_started"},
		{"Command", func() string { return Topics{}.Command("arm") }, "grayradio/command/arm"},
		{"Ack", func() string { return Topics{}.Ack("cmd-abc123") }, "grayradio/ack/cmd-abc123"},
		{"Telemetry", func() string { return Topics{}.Telemetry("temperature") }, "grayradio/telemetry/temperature"},
		{"ProgramActivated", func() string { return Topics{}.ProgramActivated("morning-news") }, "grayradio/program/morning-news/activated"},
		{"AllCommands", Topics{}.AllCommands, "grayradio/command/+"},
		{"AllEvents", Topics{}.AllEvents, "grayradio/event/+"},
		{"AllAcks", Topics{}.AllAcks, "grayradio/ack/+"},
		{"AllTelemetry", Topics{}.AllTelemetry, "grayradio/telemetry/+"},
		{"AllTopics", Topics{}.AllTopics, "grayradio/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.builder(); got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, got, tt.expected)
			}
		})
	}
}

// =============================================================================
// Unit Tests (no broker required)
// =============================================================================

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}
	defer func() {
		if r := recover(); r != nil {
			// Zero-value client has no paho client; connected flag
			// gates the nil access.
			t.Errorf("IsConnected() panicked: %v", r)
		}
	}()
	if client.IsConnected() {
		t.Error("IsConnected() = true for zero-value client")
	}
}

func TestSubscriptionCount_Empty(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}
	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
}

func TestHasSubscription_NotSubscribed(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}
	if client.HasSubscription("grayradio/command/+") {
		t.Error("HasSubscription() = true for empty client")
	}
}
