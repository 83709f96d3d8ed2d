package localsvc

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/control"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/meta"
)

// Host owns the executors of every service of a set of local devices.
type Host struct {
	devices   []*meta.Device
	executors map[*meta.Service]*Executor
	logger    Logger
}

// NewHost creates an executor for each service of devices and their
// embedded devices.
func NewHost(devices []*meta.Device) (*Host, error) {
	h := &Host{
		devices:   devices,
		executors: make(map[*meta.Service]*Executor),
		logger:    noopLogger{},
	}
	for _, d := range devices {
		for _, svc := range d.AllServices() {
			e, err := NewExecutor(svc)
			if err != nil {
				return nil, fmt.Errorf("device %s: %w", d.UDN(), err)
			}
			h.executors[svc] = e
		}
	}
	return h, nil
}

// SetLogger sets the logger for the host and its executors.
func (h *Host) SetLogger(logger Logger) {
	h.logger = logger
	for _, e := range h.executors {
		e.SetLogger(logger)
	}
}

// Devices returns the hosted root devices.
func (h *Host) Devices() []*meta.Device { return h.devices }

// Device returns the hosted device, root or embedded, with the given UDN.
func (h *Host) Device(udn meta.UDN) *meta.Device {
	for _, d := range h.devices {
		if found := d.FindDevice(udn); found != nil {
			return found
		}
	}
	return nil
}

// Executor returns the executor of a hosted service, or nil.
func (h *Host) Executor(svc *meta.Service) *Executor {
	return h.executors[svc]
}

// Subscribe registers a listener on every hosted service.
func (h *Host) Subscribe(l Listener) {
	for _, e := range h.executors {
		e.Subscribe(l)
	}
}

// Execute dispatches an invocation to the executor of its service.
func (h *Host) Execute(ctx context.Context, inv *control.Invocation) error {
	e := h.executors[inv.Action().Service()]
	if e == nil {
		failure := control.Wrap(control.InvalidAction, ErrForeignService)
		inv.SetFailure(failure)
		return failure
	}
	return e.Execute(ctx, inv)
}
