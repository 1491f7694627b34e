// Package mqtt provides MQTT client connectivity for Gray Logic Radio.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The MQTT broker is the optional remote-control surface for the
// transmitter daemon: commands arrive on grayradio/command/{operation},
// acks go out per command ID, lifecycle events stream to
// grayradio/event/{type}, and the latest device snapshot sits retained
// on grayradio/state for late joiners.
//
//	Operator tooling ↔ MQTT Broker ↔ grayradio daemon ↔ transmitter
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff with broker keepalive PINGs
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Watch every lifecycle event
//	err = client.Subscribe(mqtt.Topics{}.AllEvents(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Issue a command
//	topic := mqtt.Topics{}.Command("arm")
//	client.Publish(topic, []byte(`{"id":"cmd-1"}`), 1, false)
package mqtt
