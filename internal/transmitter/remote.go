package transmitter

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// MessageBus is the slice of the MQTT layer the remote adapter
// needs. internal/infrastructure/mqtt provides the real one; tests
// plug in fakes.
type MessageBus interface {
	// Publish sends a payload. Retained messages replace the
	// broker's stored copy for the topic.
	Publish(topic string, payload []byte, retain bool) error

	// Subscribe registers a handler for a topic filter.
	Subscribe(topic string, handler func(topic string, payload []byte)) error

	// Unsubscribe removes a topic filter subscription.
	Unsubscribe(topic string) error
}

// defaultRemoteTimeout bounds one remote command execution.
const defaultRemoteTimeout = 5 * time.Second

// RemoteOptions configures the MQTT adapter.
type RemoteOptions struct {
	// Supervisor executes the commands. Required.
	Supervisor *Supervisor

	// Bus is the MQTT connection. Required.
	Bus MessageBus

	// TopicPrefix roots the topic tree. Defaults to "grayradio".
	TopicPrefix string

	// CommandTimeout bounds one command execution.
	CommandTimeout time.Duration

	// Logger receives adapter logs. Defaults to a no-op.
	Logger Logger
}

// Remote bridges the supervisor onto MQTT: commands arrive on
// {prefix}/command/{action}, every command gets an acknowledgement
// on {prefix}/ack/{id}, lifecycle events stream to
// {prefix}/event/{type}, and the latest snapshot sits retained on
// {prefix}/state for late joiners.
type Remote struct {
	sup     *Supervisor
	bus     MessageBus
	prefix  string
	timeout time.Duration
	logger  Logger

	sub      *Subscription
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	commandsHandled atomic.Uint64
	commandErrors   atomic.Uint64
}

// NewRemote creates the adapter. Start begins serving.
func NewRemote(opts RemoteOptions) (*Remote, error) {
	if opts.Supervisor == nil {
		return nil, fmt.Errorf("supervisor is required")
	}
	if opts.Bus == nil {
		return nil, fmt.Errorf("message bus is required")
	}
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = "grayradio"
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultRemoteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	return &Remote{
		sup:     opts.Supervisor,
		bus:     opts.Bus,
		prefix:  strings.TrimSuffix(opts.TopicPrefix, "/"),
		timeout: opts.CommandTimeout,
		logger:  opts.Logger,
	}, nil
}

// CommandTopic returns the subscription filter for inbound commands.
func (r *Remote) CommandTopic() string { return r.prefix + "/command/+" }

// StateTopic returns the retained snapshot topic.
func (r *Remote) StateTopic() string { return r.prefix + "/state" }

// Start subscribes to the command topic and begins streaming events.
func (r *Remote) Start() error {
	if err := r.bus.Subscribe(r.CommandTopic(), r.handleCommand); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.CommandTopic(), err)
	}

	r.sub = r.sup.Subscribe("mqtt-remote")
	r.done = make(chan struct{})
	r.wg.Add(1)
	go r.eventPump()

	r.publishState()
	r.logger.Info("mqtt remote started", "command_topic", r.CommandTopic())
	return nil
}

// Stop unsubscribes and drains the event pump. Safe to call more
// than once.
func (r *Remote) Stop() {
	r.stopOnce.Do(func() {
		if err := r.bus.Unsubscribe(r.CommandTopic()); err != nil {
			r.logger.Warn("unsubscribe failed", "topic", r.CommandTopic(), "error", err)
		}
		close(r.done)
		r.sup.Unsubscribe(r.sub)
		r.wg.Wait()
	})
}

// eventPump forwards supervisor events to the event topics and
// refreshes the retained snapshot on every state-bearing event.
func (r *Remote) eventPump() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case evt, ok := <-r.sub.C():
			if !ok {
				return
			}
			r.publishEvent(evt)
		}
	}
}

func (r *Remote) publishEvent(evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		r.logger.Error("marshal event failed", "type", evt.Type, "error", err)
		return
	}
	topic := path.Join(r.prefix, "event", string(evt.Type))
	if err := r.bus.Publish(topic, payload, false); err != nil {
		r.logger.Warn("publish event failed", "topic", topic, "error", err)
	}
	r.publishState()
}

// publishState refreshes the retained snapshot topic.
func (r *Remote) publishState() {
	snapshot := r.sup.State()
	payload, err := json.Marshal(snapshot)
	if err != nil {
		r.logger.Error("marshal state failed", "error", err)
		return
	}
	if err := r.bus.Publish(r.StateTopic(), payload, true); err != nil {
		r.logger.Warn("publish state failed", "topic", r.StateTopic(), "error", err)
	}
}

// remoteCommand is the inbound envelope. Action may come from the
// payload or fall back to the topic leaf.
type remoteCommand struct {
	ID          string `json:"id"`
	Action      string `json:"action"`
	Channel     int    `json:"channel,omitempty"`
	Enabled     *bool  `json:"enabled,omitempty"`
	FrequencyHz int64  `json:"frequency_hz,omitempty"`
	Carriers    int    `json:"carriers,omitempty"`
	Source      string `json:"source,omitempty"`
	Message     *int   `json:"message,omitempty"`
}

// remoteAck is the per-command reply envelope.
type remoteAck struct {
	ID     string      `json:"id"`
	Action string      `json:"action"`
	OK     bool        `json:"ok"`
	Error  string      `json:"error,omitempty"`
	State  DeviceState `json:"state"`
	At     time.Time   `json:"at"`
}

// handleCommand runs one inbound command and always acknowledges,
// even for garbage payloads, so remote callers never hang waiting.
func (r *Remote) handleCommand(topic string, payload []byte) {
	r.commandsHandled.Add(1)

	var cmd remoteCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		r.commandErrors.Add(1)
		r.logger.Warn("bad command payload", "topic", topic, "error", err)
		r.ack(remoteCommand{ID: uuid.NewString(), Action: topicLeaf(topic)}, fmt.Errorf("bad payload: %w", err))
		return
	}
	if cmd.Action == "" {
		cmd.Action = topicLeaf(topic)
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	err := r.execute(ctx, cmd)
	if err != nil {
		r.commandErrors.Add(1)
		r.logger.Warn("remote command failed", "action", cmd.Action, "id", cmd.ID, "error", err)
	} else {
		r.logger.Info("remote command executed", "action", cmd.Action, "id", cmd.ID)
	}
	r.ack(cmd, err)
}

// execute dispatches one command against the supervisor.
func (r *Remote) execute(ctx context.Context, cmd remoteCommand) error {
	switch cmd.Action {
	case "connect":
		return r.sup.Connect(ctx)
	case "disconnect":
		return r.sup.Disconnect(ctx)
	case "arm":
		return r.sup.Arm(ctx)
	case "start":
		return r.sup.StartBroadcast(ctx)
	case "stop":
		return r.sup.StopBroadcast(ctx)
	case "emergency":
		return r.sup.EmergencyStop(ctx)
	case "clear_emergency":
		return r.sup.ClearEmergency(ctx)
	case "set_channel":
		enabled := cmd.Enabled != nil && *cmd.Enabled
		hz := cmd.FrequencyHz
		if hz == 0 {
			snapshot := r.sup.State()
			if err := ValidateChannel(cmd.Channel); err != nil {
				return err
			}
			hz = snapshot.Channels[cmd.Channel-1].FrequencyHz
		}
		return r.sup.SetChannel(ctx, cmd.Channel, enabled, hz)
	case "preset":
		return r.sup.ApplyPreset(ctx, cmd.Carriers)
	case "set_source":
		mode, err := ParseSourceMode(cmd.Source)
		if err != nil {
			return err
		}
		return r.sup.SetSource(ctx, mode)
	case "select_message":
		if cmd.Message == nil {
			return fmt.Errorf("select_message requires message")
		}
		return r.sup.SelectMessage(ctx, *cmd.Message)
	case "watchdog_reset":
		return r.sup.ResetWatchdog(ctx)
	default:
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
}

// ack publishes the reply envelope for a command.
func (r *Remote) ack(cmd remoteCommand, execErr error) {
	reply := remoteAck{
		ID:     cmd.ID,
		Action: cmd.Action,
		OK:     execErr == nil,
		State:  r.sup.State(),
		At:     time.Now().UTC(),
	}
	if execErr != nil {
		reply.Error = execErr.Error()
	}

	payload, err := json.Marshal(reply)
	if err != nil {
		r.logger.Error("marshal ack failed", "id", cmd.ID, "error", err)
		return
	}
	topic := path.Join(r.prefix, "ack", cmd.ID)
	if err := r.bus.Publish(topic, payload, false); err != nil {
		r.logger.Warn("publish ack failed", "topic", topic, "error", err)
	}
}

// topicLeaf returns the last topic segment.
func topicLeaf(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

// RemoteStats is a point-in-time counter snapshot.
type RemoteStats struct {
	CommandsHandled uint64 `json:"commands_handled"`
	CommandErrors   uint64 `json:"command_errors"`
}

// Stats returns current adapter counters.
func (r *Remote) Stats() RemoteStats {
	return RemoteStats{
		CommandsHandled: r.commandsHandled.Load(),
		CommandErrors:   r.commandErrors.Load(),
	}
}
