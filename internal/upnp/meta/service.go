package meta

import (
	"fmt"
	"net/url"
	"slices"
)

// Endpoints are the URLs of a remote service, resolved against the device
// descriptor.
type Endpoints struct {
	Descriptor *url.URL
	Control    *url.URL
	Event      *url.URL
}

// ServiceDef declares a service for NewService.
type ServiceDef struct {
	Type           ServiceType
	ID             ServiceID
	Actions        []*Action
	StateVariables []*StateVariable

	// QueryStateVariable adds the synthesized QueryStateVariable action.
	QueryStateVariable bool

	// Endpoints is set for remote services and nil for local ones.
	Endpoints *Endpoints
}

// Service is a set of actions and state variables offered by a device.
type Service struct {
	typ       ServiceType
	id        ServiceID
	actions   []*Action
	variables []*StateVariable
	endpoints *Endpoints
	device    *Device

	virtualIn  *StateVariable
	virtualOut *StateVariable

	warnings []Warning
}

// NewService builds a service from def and binds its actions and state
// variables. Duplicate names keep the last declaration.
//
// Actions with validation errors, including arguments referencing a state
// variable the service does not declare, are dropped and logged. Conformance
// warnings are logged and available from Warnings.
//
// Returns:
//   - *Service: The bound service
//   - error: ErrAlreadyBound if a node is owned elsewhere, or
//     ErrInvalidService wrapping ValidationErrors
func NewService(def ServiceDef, opts ...Option) (*Service, error) {
	o := buildOptions(opts)
	s := &Service{typ: def.Type, id: def.ID, endpoints: def.Endpoints}
	s.virtualIn = newVirtualStateVariable(VirtualQueryActionInput, s)
	s.virtualOut = newVirtualStateVariable(VirtualQueryActionOutput, s)

	variables := lastByName(def.StateVariables, (*StateVariable).Name)
	actions := lastByName(def.Actions, (*Action).Name)
	if def.QueryStateVariable && !slices.ContainsFunc(actions, (*Action).IsQueryStateVariable) {
		actions = append(actions, newQueryStateVariableAction())
	}

	for _, v := range variables {
		if err := v.bind(s); err != nil {
			s.release(variables, actions)
			return nil, err
		}
		s.variables = append(s.variables, v)
	}

	for _, a := range actions {
		if err := a.bind(s); err != nil {
			s.release(variables, actions)
			return nil, err
		}
		if errs := a.Validate(); len(errs) > 0 {
			o.logger.Warn("dropping invalid action",
				"service", s.id.String(),
				"action", a.name,
				"errors", ValidationErrors(errs).Error(),
			)
			a.service = nil
			continue
		}
		s.actions = append(s.actions, a)
	}

	s.warnings = s.collectWarnings()
	logWarnings(o.logger, s.warnings)

	if errs := s.Validate(); len(errs) > 0 {
		s.release(variables, actions)
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidService, s.id, ValidationErrors(errs))
	}
	return s, nil
}

// Type returns the service type.
func (s *Service) Type() ServiceType { return s.typ }

// ID returns the service ID.
func (s *Service) ID() ServiceID { return s.id }

// Device returns the owning device, or nil for a standalone service.
func (s *Service) Device() *Device { return s.device }

// Endpoints returns the remote URLs, or nil for a local service.
func (s *Service) Endpoints() *Endpoints { return s.endpoints }

// IsRemote reports whether s describes a service on another host.
func (s *Service) IsRemote() bool { return s.endpoints != nil }

// Actions returns the actions in declaration order.
func (s *Service) Actions() []*Action { return slices.Clone(s.actions) }

// Action returns the action with the exact name, or nil.
func (s *Service) Action(name string) *Action {
	for _, a := range s.actions {
		if a.name == name {
			return a
		}
	}
	return nil
}

// StateVariables returns the declared state variables in declaration order.
// Virtual variables are not included.
func (s *Service) StateVariables() []*StateVariable { return slices.Clone(s.variables) }

// StateVariable returns the state variable with the exact name. The
// QueryStateVariable virtual variables are synthesized on lookup.
func (s *Service) StateVariable(name string) *StateVariable {
	switch name {
	case VirtualQueryActionInput:
		return s.virtualIn
	case VirtualQueryActionOutput:
		return s.virtualOut
	}
	for _, v := range s.variables {
		if v.name == name {
			return v
		}
	}
	return nil
}

// Warnings returns the conformance warnings found during construction.
func (s *Service) Warnings() []Warning { return slices.Clone(s.warnings) }

// Validate returns structural errors of the service and its children.
func (s *Service) Validate() []ValidationError {
	var errs []ValidationError
	fail := func(property, msg string) {
		errs = append(errs, ValidationError{Class: "Service", Property: property, Message: msg})
	}

	if s.typ.IsZero() {
		fail("serviceType", "service without type")
	}
	if s.id.IsZero() {
		fail("serviceId", "service without ID")
	}
	if s.endpoints != nil {
		if s.endpoints.Descriptor == nil {
			fail("descriptorURI", "remote service without descriptor URL")
		}
		if s.endpoints.Control == nil {
			fail("controlURI", "remote service without control URL")
		}
		if s.endpoints.Event == nil {
			fail("eventSubURI", "remote service without event subscription URL")
		}
	}
	for _, v := range s.variables {
		errs = append(errs, v.Validate()...)
	}
	for _, a := range s.actions {
		errs = append(errs, a.Validate()...)
	}
	return errs
}

func (s *Service) collectWarnings() []Warning {
	var warnings []Warning
	for _, v := range s.variables {
		warnings = append(warnings, v.Warnings()...)
	}
	for _, a := range s.actions {
		warnings = append(warnings, a.Warnings()...)
	}
	return warnings
}

// release unbinds the nodes a failed or partial construction bound to s.
func (s *Service) release(variables []*StateVariable, actions []*Action) {
	for _, v := range variables {
		if v.service == s {
			v.service = nil
		}
	}
	for _, a := range actions {
		if a.service == s {
			a.service = nil
		}
	}
}

func (s *Service) bind(d *Device) error {
	if s.device != nil {
		return fmt.Errorf("%w: service %s", ErrAlreadyBound, s.id)
	}
	s.device = d
	return nil
}

// lastByName drops earlier items sharing a name, keeping the position of the
// first occurrence and the value of the last.
func lastByName[T any](items []T, name func(T) string) []T {
	index := make(map[string]int, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		if i, ok := index[name(item)]; ok {
			out[i] = item
			continue
		}
		index[name(item)] = len(out)
		out = append(out, item)
	}
	return out
}
