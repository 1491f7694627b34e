package mqtt

// Bus adapts Client to the narrow publish/subscribe surface consumed by
// the transmitter remote adapter. It pins the configured default QoS so
// callers deal only in topics and payloads.
type Bus struct {
	client *Client
	qos    byte
}

// NewBus wraps a connected client.
func NewBus(client *Client) *Bus {
	return &Bus{
		client: client,
		qos:    byte(client.cfg.QoS),
	}
}

// Publish sends a payload at the default QoS.
func (b *Bus) Publish(topic string, payload []byte, retain bool) error {
	return b.client.Publish(topic, payload, b.qos, retain)
}

// Subscribe registers a handler at the default QoS. Handler errors are
// logged by the client, not returned here.
func (b *Bus) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	return b.client.Subscribe(topic, b.qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// Unsubscribe removes a topic filter subscription.
func (b *Bus) Unsubscribe(topic string) error {
	return b.client.Unsubscribe(topic)
}
