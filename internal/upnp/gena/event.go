package gena

import (
	"fmt"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/meta"
)

// EventNamespace is the namespace of the propertyset element.
const EventNamespace = "urn:schemas-upnp-org:event-1-0"

// StateVariableValue pairs a state variable with a value of its datatype.
type StateVariableValue struct {
	variable *meta.StateVariable
	value    any
}

// NewStateVariableValue converts value to the datatype of v. Strings are
// parsed as wire text.
func NewStateVariableValue(v *meta.StateVariable, value any) (StateVariableValue, error) {
	converted, err := v.Datatype().Convert(value)
	if err != nil {
		return StateVariableValue{}, fmt.Errorf("gena: state variable %q: %w", v.Name(), err)
	}
	return StateVariableValue{variable: v, value: converted}, nil
}

// Variable returns the state variable.
func (v StateVariableValue) Variable() *meta.StateVariable { return v.variable }

// Value returns the typed value; nil when absent.
func (v StateVariableValue) Value() any { return v.value }

// String returns the wire text of the value.
func (v StateVariableValue) String() string {
	if v.variable == nil {
		return ""
	}
	s, err := v.variable.Datatype().Format(v.value)
	if err != nil {
		return ""
	}
	return s
}

// IncomingEvent is a received event notification.
type IncomingEvent struct {
	Service        *meta.Service
	SubscriptionID string
	Sequence       uint32

	// Values holds the parsed state variable values in body order.
	Values []StateVariableValue
}

// Value returns the value of the named variable, if present.
func (e *IncomingEvent) Value(name string) (StateVariableValue, bool) {
	for _, v := range e.Values {
		if v.variable.Name() == name {
			return v, true
		}
	}
	return StateVariableValue{}, false
}
