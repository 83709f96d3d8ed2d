package bridge

import (
	"time"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/control"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/gena"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/meta"
)

// CommandMessage asks a local service to execute an action.
// Topic: upnp/command/{udn}/{service_id}
type CommandMessage struct {
	// ID correlates the command with its acknowledgement.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, RFC3339).
	Timestamp time.Time `json:"timestamp"`

	// Action is the action name, e.g. "SetTarget".
	Action string `json:"action"`

	// Arguments holds input arguments as UPnP wire text.
	//   {"NewTargetValue": "1"}
	Arguments map[string]string `json:"arguments,omitempty"`

	// Source indicates where the command originated, e.g. "automation".
	Source string `json:"source,omitempty"`
}

// AckStatus represents the outcome of a command.
type AckStatus string

const (
	// AckAccepted indicates the action completed successfully.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command was rejected or the action failed.
	AckFailed AckStatus = "failed"
)

// AckMessage reports the outcome of a command.
// Topic: upnp/ack/{udn}/{service_id}
type AckMessage struct {
	// CommandID is the ID from the original command.
	CommandID string `json:"command_id"`

	// Timestamp is when the acknowledgement was sent (UTC, RFC3339).
	Timestamp time.Time `json:"timestamp"`

	// DeviceUDN and ServiceID identify the target service.
	DeviceUDN string `json:"device_udn"`
	ServiceID string `json:"service_id"`

	// Action is the action name from the command.
	Action string `json:"action"`

	// Status is the command outcome.
	Status AckStatus `json:"status"`

	// Outputs holds output arguments as wire text when accepted.
	Outputs map[string]string `json:"outputs,omitempty"`

	// Error contains the UPnP error when status is "failed".
	Error *AckError `json:"error,omitempty"`
}

// AckError carries a UPnP error code and description.
type AckError struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
}

// StateMessage carries the evented values of one service change.
// Topic: upnp/state/{udn}/{service_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	DeviceUDN string            `json:"device_udn"`
	ServiceID string            `json:"service_id"`
	Timestamp time.Time         `json:"timestamp"`
	Values    map[string]string `json:"values"`
}

// NewAckMessage builds the acknowledgement of an executed invocation.
func NewAckMessage(cmd CommandMessage, svc *meta.Service, inv *control.Invocation) AckMessage {
	ack := AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceUDN: string(svc.Device().UDN()),
		ServiceID: svc.ID().ID,
		Action:    cmd.Action,
		Status:    AckAccepted,
	}
	if failure := inv.Failure(); failure != nil {
		ack.Status = AckFailed
		ack.Error = &AckError{Code: failure.Code, Description: failure.Description}
		return ack
	}
	ack.Outputs = make(map[string]string)
	for _, v := range inv.Output() {
		ack.Outputs[v.Argument().Name()] = v.String()
	}
	return ack
}

// NewAckError builds a failed acknowledgement for a command that never
// reached an executor.
func NewAckError(cmd CommandMessage, udn, serviceID string, failure *control.ActionError) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceUDN: udn,
		ServiceID: serviceID,
		Action:    cmd.Action,
		Status:    AckFailed,
		Error:     &AckError{Code: failure.Code, Description: failure.Description},
	}
}

// NewStateMessage builds a state message from evented values.
func NewStateMessage(svc *meta.Service, values []gena.StateVariableValue, at time.Time) StateMessage {
	msg := StateMessage{
		DeviceUDN: string(svc.Device().UDN()),
		ServiceID: svc.ID().ID,
		Timestamp: at.UTC(),
		Values:    make(map[string]string, len(values)),
	}
	for _, v := range values {
		msg.Values[v.Variable().Name()] = v.String()
	}
	return msg
}

// ReceivedMessage is published on upnp/received/{udn}/{service_id} for
// each event notification delivered to a callback endpoint.
type ReceivedMessage struct {
	StateMessage
	SubscriptionID string `json:"sid,omitempty"`
	Sequence       uint32 `json:"seq"`
}

// NewReceivedMessage builds a received message from an incoming event.
func NewReceivedMessage(event *gena.IncomingEvent, at time.Time) ReceivedMessage {
	return ReceivedMessage{
		StateMessage:   NewStateMessage(event.Service, event.Values, at),
		SubscriptionID: event.SubscriptionID,
		Sequence:       event.Sequence,
	}
}
