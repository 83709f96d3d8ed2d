package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-upnp/internal/eventlog"
	"github.com/nerrad567/gray-logic-upnp/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/control"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/gena"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/localsvc"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/meta"
)

const (
	// commandTopicParts is the number of parts in upnp/command/{udn}/{service_id}.
	commandTopicParts = 4

	// commandTimeout bounds the execution of a single command.
	commandTimeout = 5 * time.Second

	// stateQoS is the QoS of retained state messages and acks.
	stateQoS = 1
)

// MQTTClient is the subset of *mqtt.Client used by the bridge.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Recorder persists invocations and emitted values. *eventlog.SQLiteRepository
// satisfies it.
type Recorder interface {
	RecordEmitted(ctx context.Context, values []gena.StateVariableValue) error
	RecordInvocation(ctx context.Context, source string, inv *control.Invocation) (*eventlog.Invocation, error)
}

// Invoker executes actions of remote services. *controlpoint.Client
// satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, inv *control.Invocation) error
}

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options holds the collaborators of a bridge.
type Options struct {
	// MQTTClient is required.
	MQTTClient MQTTClient

	// Host is required; its services receive commands and emit state.
	Host *localsvc.Host

	// Remote devices accept commands through Invoker, which is required
	// when Remote is not empty.
	Remote  []*meta.Device
	Invoker Invoker

	// Recorder is optional.
	Recorder Recorder

	// Logger is optional.
	Logger Logger
}

// Bridge connects the local services of a Host to MQTT. It:
//   - publishes evented state changes as retained StateMessages
//   - executes CommandMessages and answers them with AckMessages
//
// Commands addressed to a remote device are sent through the Invoker.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt     MQTTClient
	host     *localsvc.Host
	remote   []*meta.Device
	invoker  Invoker
	recorder Recorder
	logger   Logger
	topics   mqtt.Topics

	// Shutdown coordination
	ctx       context.Context
	ctxCancel context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

// New creates a bridge. Call Start to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, errors.New("bridge: MQTT client is required")
	}
	if opts.Host == nil {
		return nil, errors.New("bridge: host is required")
	}
	if len(opts.Remote) > 0 && opts.Invoker == nil {
		return nil, errors.New("bridge: invoker is required for remote devices")
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		mqtt:      opts.MQTTClient,
		host:      opts.Host,
		remote:    opts.Remote,
		invoker:   opts.Invoker,
		recorder:  opts.Recorder,
		logger:    logger,
		ctx:       ctx,
		ctxCancel: cancel,
	}, nil
}

// Start subscribes to command topics, publishes the current state of every
// evented variable and begins forwarding changes.
func (b *Bridge) Start(ctx context.Context) error {
	b.host.Subscribe(b.handleChange)

	commandTopic := b.topics.AllCommands()
	if err := b.mqtt.Subscribe(commandTopic, stateQoS, b.handleMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logger.Info("subscribed to commands", "topic", commandTopic)

	published := 0
	for _, d := range b.host.Devices() {
		for _, svc := range d.AllServices() {
			if err := ctx.Err(); err != nil {
				return err
			}
			values := evented(b.host.Executor(svc).Snapshot())
			if len(values) == 0 {
				continue
			}
			b.publishState(svc, values, time.Now())
			published++
		}
	}

	b.logger.Info("bridge started", "services", published)
	return nil
}

// Stop drops the command subscription, cancels in-flight commands and
// waits for them to finish.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		if err := b.mqtt.Unsubscribe(b.topics.AllCommands()); err != nil {
			b.logger.Warn("unsubscribe from commands failed", "error", err)
		}
		b.ctxCancel()
		b.wg.Wait()
		b.logger.Info("bridge stopped")
	})
}

// handleMessage processes a command published on upnp/command/{udn}/{service_id}.
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) != commandTopicParts || parts[1] != "command" {
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	udn, serviceID := parts[2], parts[3]

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if cmd.ID == "" {
		cmd.ID = "cmd-" + uuid.NewString()[:8]
	}

	b.logger.Debug("received command",
		"command_id", cmd.ID,
		"device_udn", udn,
		"service_id", serviceID,
		"action", cmd.Action)

	b.wg.Add(1)
	defer b.wg.Done()

	svc := b.resolve(udn, serviceID)
	if svc == nil {
		b.publishAck(udn, serviceID, NewAckError(cmd, udn, serviceID,
			control.Errorf(control.InvalidAction, "No such service %s on device %s", serviceID, udn)))
		return nil
	}
	action := svc.Action(cmd.Action)
	if action == nil {
		b.publishAck(udn, serviceID, NewAckError(cmd, udn, serviceID,
			control.Errorf(control.InvalidAction, "No such action '%s' in %s", cmd.Action, svc.ID())))
		return nil
	}

	inv := control.NewInvocation(action)
	for name, text := range cmd.Arguments {
		if err := inv.SetInput(name, text); err != nil {
			inv.SetFailure(control.FromError(err, control.InvalidArgs))
			break
		}
	}

	if !inv.Failed() {
		ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
		var err error
		if svc.IsRemote() {
			err = b.invoker.Invoke(ctx, inv)
		} else {
			err = b.host.Execute(ctx, inv)
		}
		cancel()
		if err != nil {
			b.logger.Warn("command failed",
				"command_id", cmd.ID,
				"action", cmd.Action,
				"error", err)
		}
	}

	b.record(cmd, inv)
	b.publishAck(udn, serviceID, NewAckMessage(cmd, svc, inv))
	return nil
}

// resolve finds a hosted or remote service by device UDN and unqualified
// service ID.
func (b *Bridge) resolve(udn, serviceID string) *meta.Service {
	id := meta.UDN(strings.TrimPrefix(udn, "uuid:"))
	d := b.host.Device(id)
	for i := 0; d == nil && i < len(b.remote); i++ {
		d = b.remote[i].FindDevice(id)
	}
	if d == nil {
		return nil
	}
	for _, svc := range d.Services() {
		if svc.ID().ID == serviceID {
			return svc
		}
	}
	return nil
}

// handleChange publishes and records an evented change.
func (b *Bridge) handleChange(change localsvc.Change) {
	if b.ctx.Err() != nil {
		return
	}
	b.publishState(change.Service, change.Values, change.Time)

	if b.recorder != nil {
		if err := b.recorder.RecordEmitted(b.ctx, change.Values); err != nil {
			b.logger.Error("failed to record emitted values", "error", err)
		}
	}
}

// RecordReceived publishes an event notification received from a remote
// publisher. Together with the event log it serves as a sink for the HTTP
// callback endpoint.
func (b *Bridge) RecordReceived(_ context.Context, event *gena.IncomingEvent) error {
	if b.ctx.Err() != nil {
		return nil
	}
	if event.Service == nil || event.Service.Device() == nil {
		return ErrUnboundService
	}

	msg := NewReceivedMessage(event, time.Now())
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal received event: %w", err)
	}
	topic := b.topics.Received(msg.DeviceUDN, msg.ServiceID)
	if err := b.mqtt.Publish(topic, payload, stateQoS, false); err != nil {
		return fmt.Errorf("publish received event: %w", err)
	}
	return nil
}

func (b *Bridge) publishState(svc *meta.Service, values []gena.StateVariableValue, at time.Time) {
	msg := NewStateMessage(svc, values, at)
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("failed to marshal state", "error", err)
		return
	}
	topic := b.topics.State(msg.DeviceUDN, msg.ServiceID)
	if err := b.mqtt.Publish(topic, payload, stateQoS, true); err != nil {
		b.logger.Error("failed to publish state", "topic", topic, "error", err)
	}
}

func (b *Bridge) publishAck(udn, serviceID string, ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logger.Error("failed to marshal ack", "error", err)
		return
	}
	topic := b.topics.Ack(udn, serviceID)
	if err := b.mqtt.Publish(topic, payload, stateQoS, false); err != nil {
		b.logger.Error("failed to publish ack", "topic", topic, "error", err)
	}
}

func (b *Bridge) record(cmd CommandMessage, inv *control.Invocation) {
	if b.recorder == nil {
		return
	}
	source := eventlog.SourceMQTT
	if cmd.Source != "" {
		source = cmd.Source
	}
	if _, err := b.recorder.RecordInvocation(b.ctx, source, inv); err != nil {
		b.logger.Error("failed to record invocation", "error", err)
	}
}

// evented filters values to variables that send events.
func evented(values []gena.StateVariableValue) []gena.StateVariableValue {
	out := values[:0]
	for _, v := range values {
		if v.Variable().EventDetails().SendEvents {
			out = append(out, v)
		}
	}
	return out
}
