package meta

import (
	"fmt"
	"slices"
	"time"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/datatype"
)

// Names of the state variables backing the QueryStateVariable action.
// They are synthesized on lookup and never stored on a service.
const (
	VirtualQueryActionInput  = "VirtualQueryActionInput"
	VirtualQueryActionOutput = "VirtualQueryActionOutput"
)

// AllowedRange restricts a numeric state variable.
type AllowedRange struct {
	Minimum int64
	Maximum int64
	Step    int64
}

// Contains reports whether v lies within the range.
func (r AllowedRange) Contains(v float64) bool {
	return v >= float64(r.Minimum) && v <= float64(r.Maximum)
}

// TypeDetails describes the value space of a state variable.
type TypeDetails struct {
	Datatype      datatype.Type
	DefaultValue  string
	AllowedValues []string
	AllowedRange  *AllowedRange
}

// EventDetails describes how changes to a state variable are evented.
type EventDetails struct {
	SendEvents bool
	MaxRate    time.Duration // Minimum interval between events; zero is unmoderated
	MinDelta   int64         // Minimum numeric change worth an event
}

// StateVariable is a named, typed value exposed by a service.
type StateVariable struct {
	name    string
	typ     TypeDetails
	events  EventDetails
	service *Service
}

// NewStateVariable creates an unbound state variable. NewService binds it.
func NewStateVariable(name string, typ TypeDetails, events EventDetails) *StateVariable {
	return &StateVariable{name: name, typ: typ, events: events}
}

func newVirtualStateVariable(name string, s *Service) *StateVariable {
	return &StateVariable{
		name:    name,
		typ:     TypeDetails{Datatype: datatype.String},
		service: s,
	}
}

// Name returns the variable name.
func (v *StateVariable) Name() string { return v.name }

// Datatype returns the declared datatype.
func (v *StateVariable) Datatype() datatype.Type { return v.typ.Datatype }

// TypeDetails returns the declared value space.
func (v *StateVariable) TypeDetails() TypeDetails { return v.typ }

// EventDetails returns the eventing configuration.
func (v *StateVariable) EventDetails() EventDetails { return v.events }

// Service returns the owning service, or nil before binding.
func (v *StateVariable) Service() *Service { return v.service }

// IsVirtual reports whether v backs the QueryStateVariable action.
func (v *StateVariable) IsVirtual() bool {
	return v.name == VirtualQueryActionInput || v.name == VirtualQueryActionOutput
}

// AllowedValues returns the enumeration. When a default value is declared
// but missing from the enumeration it is appended, because known devices
// advertise defaults they forgot to enumerate.
func (v *StateVariable) AllowedValues() []string {
	if len(v.typ.AllowedValues) == 0 {
		return nil
	}
	values := slices.Clone(v.typ.AllowedValues)
	if v.typ.DefaultValue != "" && !slices.Contains(values, v.typ.DefaultValue) {
		values = append(values, v.typ.DefaultValue)
	}
	return values
}

// Allows reports whether a converted value satisfies the enumeration or range.
func (v *StateVariable) Allows(value any) bool {
	if value == nil {
		return true
	}
	if allowed := v.AllowedValues(); allowed != nil {
		s, ok := value.(string)
		return ok && slices.Contains(allowed, s)
	}
	if r := v.typ.AllowedRange; r != nil {
		f, ok := numeric(value)
		return !ok || r.Contains(f)
	}
	return true
}

// Validate returns structural errors.
func (v *StateVariable) Validate() []ValidationError {
	var errs []ValidationError
	fail := func(property, format string, args ...any) {
		errs = append(errs, ValidationError{Class: "StateVariable", Property: property, Message: fmt.Sprintf(format, args...)})
	}

	if v.name == "" {
		fail("name", "state variable without name")
	}
	if v.typ.Datatype == "" {
		fail("datatype", "state variable %q without datatype", v.name)
	} else if !v.typ.Datatype.Valid() {
		fail("datatype", "state variable %q has unknown datatype %q", v.name, v.typ.Datatype)
	}
	if len(v.typ.AllowedValues) > 0 && v.typ.AllowedRange != nil {
		fail("allowedValues", "state variable %q declares both an enumeration and a range", v.name)
	}
	if len(v.typ.AllowedValues) > 0 && v.typ.Datatype != "" && v.typ.Datatype != datatype.String {
		fail("allowedValues", "state variable %q enumerates values of non-string type %s", v.name, v.typ.Datatype)
	}
	if r := v.typ.AllowedRange; r != nil {
		if r.Minimum > r.Maximum {
			fail("allowedRange", "state variable %q range minimum %d exceeds maximum %d", v.name, r.Minimum, r.Maximum)
		}
		if v.typ.Datatype != "" && !v.typ.Datatype.Numeric() {
			fail("allowedRange", "state variable %q declares a range on non-numeric type %s", v.name, v.typ.Datatype)
		}
	}
	return errs
}

// Warnings returns UDA conformance problems.
func (v *StateVariable) Warnings() []Warning {
	warnings := nameWarnings("StateVariable", v.name)
	for _, allowed := range v.typ.AllowedValues {
		if len(allowed) > maxAllowedValueLength {
			warnings = append(warnings, Warning{
				Class:    "StateVariable",
				Property: "allowedValues",
				Message:  fmt.Sprintf("allowed value %q of %q is longer than %d characters", allowed, v.name, maxAllowedValueLength),
			})
		}
	}
	if v.typ.DefaultValue != "" && v.typ.Datatype.Valid() {
		if _, err := v.typ.Datatype.ValueOf(v.typ.DefaultValue); err != nil {
			warnings = append(warnings, Warning{
				Class:    "StateVariable",
				Property: "defaultValue",
				Message:  fmt.Sprintf("default value of %q is not a valid %s", v.name, v.typ.Datatype),
			})
		}
	}
	return warnings
}

func (v *StateVariable) bind(s *Service) error {
	if v.service != nil {
		return fmt.Errorf("%w: state variable %q", ErrAlreadyBound, v.name)
	}
	v.service = s
	return nil
}

func numeric(value any) (float64, bool) {
	switch n := value.(type) {
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
