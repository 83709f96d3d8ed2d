// Package eventlog persists state variable events and action invocations
// in SQLite, giving a local history of what the UPnP services did.
package eventlog

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/control"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/gena"
)

// Direction tells whether an event was emitted by a local service or
// received from a remote one.
type Direction string

// Event directions.
const (
	Emitted  Direction = "emitted"
	Received Direction = "received"
)

// Invocation sources.
const (
	SourceSOAP = "soap"
	SourceMQTT = "mqtt"
	SourceCP   = "controlpoint"
)

// Page size bounds for List queries.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// ErrMissingService is returned when a record has no service to attribute
// it to.
var ErrMissingService = errors.New("eventlog: record without service")

// Event is one state variable value as it was evented.
type Event struct {
	ID             int64     `json:"id"`
	DeviceUDN      string    `json:"device_udn,omitempty"`
	ServiceID      string    `json:"service_id"`
	Variable       string    `json:"variable"`
	Value          string    `json:"value"`
	Direction      Direction `json:"direction"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
	Sequence       *uint32   `json:"sequence,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Invocation is a recorded action call.
type Invocation struct {
	ID               string            `json:"id"`
	DeviceUDN        string            `json:"device_udn,omitempty"`
	ServiceID        string            `json:"service_id"`
	Action           string            `json:"action"`
	Source           string            `json:"source"`
	Inputs           map[string]string `json:"inputs,omitempty"`
	Outputs          map[string]string `json:"outputs,omitempty"`
	ErrorCode        int               `json:"error_code,omitempty"`
	ErrorDescription string            `json:"error_description,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Filter controls which events to return.
type Filter struct {
	DeviceUDN string    // optional
	ServiceID string    // optional
	Variable  string    // optional
	Direction Direction // optional
	Since     time.Time // optional: only events at or after this time
	Limit     int       // default 50, max 200
	Offset    int
}

// ListResult contains a page of events.
type ListResult struct {
	Events []Event `json:"events"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// Repository stores and retrieves the event log.
//
// Implementations must be thread-safe and use UTC timestamps.
type Repository interface {
	// RecordEmitted stores values evented by a local service.
	RecordEmitted(ctx context.Context, values []gena.StateVariableValue) error

	// RecordReceived stores the values of an incoming event message.
	RecordReceived(ctx context.Context, event *gena.IncomingEvent) error

	// RecordInvocation stores an action call and its outcome.
	RecordInvocation(ctx context.Context, source string, inv *control.Invocation) (*Invocation, error)

	// List returns events matching the filter, newest first.
	List(ctx context.Context, filter Filter) (*ListResult, error)

	// Invocations returns recent invocations, newest first.
	Invocations(ctx context.Context, limit int) ([]Invocation, error)

	// Prune deletes events and invocations older than the given age.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
