package meta

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/datatype"
)

// QueryStateVariable is the deprecated UDA action reading any state variable.
const QueryStateVariable = "QueryStateVariable"

// ControlNamespace is the namespace of UPnP control elements, used by the
// QueryStateVariable action and UPnPError fault details.
const ControlNamespace = "urn:schemas-upnp-org:control-1-0"

// Direction is the data flow direction of an argument.
type Direction string

// Argument directions.
const (
	In  Direction = "in"
	Out Direction = "out"
)

// ParseDirection resolves a descriptor direction, ignoring case.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case In:
		return In, true
	case Out:
		return Out, true
	}
	return "", false
}

// Argument is an input or output parameter of an action.
type Argument struct {
	name    string
	aliases []string
	related string
	dir     Direction
	retval  bool
	action  *Action
}

// ArgumentOption configures NewArgument.
type ArgumentOption func(*Argument)

// WithAliases adds names that also match this argument on the wire.
func WithAliases(aliases ...string) ArgumentOption {
	return func(a *Argument) {
		a.aliases = append(a.aliases, aliases...)
	}
}

// AsReturnValue marks an output argument as the action's return value.
func AsReturnValue() ArgumentOption {
	return func(a *Argument) {
		a.retval = true
	}
}

// NewArgument creates an unbound argument whose datatype comes from the
// state variable named related on the owning service.
func NewArgument(name, related string, dir Direction, opts ...ArgumentOption) *Argument {
	a := &Argument{name: name, related: related, dir: dir}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the declared name.
func (a *Argument) Name() string { return a.name }

// Aliases returns alternative wire names.
func (a *Argument) Aliases() []string { return slices.Clone(a.aliases) }

// RelatedStateVariableName returns the name of the typing state variable.
func (a *Argument) RelatedStateVariableName() string { return a.related }

// Direction returns the data flow direction.
func (a *Argument) Direction() Direction { return a.dir }

// IsReturnValue reports whether a is marked as retval.
func (a *Argument) IsReturnValue() bool { return a.retval }

// Action returns the owning action, or nil before binding.
func (a *Argument) Action() *Action { return a.action }

// IsNameOrAlias reports whether name matches the argument name or an alias,
// ignoring case.
func (a *Argument) IsNameOrAlias(name string) bool {
	if strings.EqualFold(a.name, name) {
		return true
	}
	for _, alias := range a.aliases {
		if strings.EqualFold(alias, name) {
			return true
		}
	}
	return false
}

// StateVariable resolves the related state variable through the owning
// service. It returns nil when the argument is unbound or the name does not
// resolve.
func (a *Argument) StateVariable() *StateVariable {
	if a.action == nil || a.action.service == nil {
		return nil
	}
	return a.action.service.StateVariable(a.related)
}

// Datatype returns the datatype of the related state variable, or the
// empty type when it cannot be resolved.
func (a *Argument) Datatype() datatype.Type {
	if v := a.StateVariable(); v != nil {
		return v.Datatype()
	}
	return ""
}

// Validate returns structural errors.
func (a *Argument) Validate() []ValidationError {
	var errs []ValidationError
	fail := func(property, format string, args ...any) {
		errs = append(errs, ValidationError{Class: "Argument", Property: property, Message: fmt.Sprintf(format, args...)})
	}

	if a.name == "" {
		fail("name", "argument without name")
	}
	if a.dir != In && a.dir != Out {
		fail("direction", "argument %q without direction", a.name)
	}
	if a.related == "" {
		fail("relatedStateVariable", "argument %q without related state variable", a.name)
	}
	if a.retval && a.dir != Out {
		fail("retval", "return value argument %q is not an output", a.name)
	}
	return errs
}

// Warnings returns UDA conformance problems.
func (a *Argument) Warnings() []Warning {
	return nameWarnings("Argument", a.name)
}

func (a *Argument) bind(action *Action) error {
	if a.action != nil {
		return fmt.Errorf("%w: argument %q", ErrAlreadyBound, a.name)
	}
	a.action = action
	return nil
}

// Action is a named operation of a service.
type Action struct {
	name    string
	args    []*Argument
	in      []*Argument
	out     []*Argument
	service *Service
}

// NewAction creates an action and binds each argument to it. Arguments are
// split into input and output lists, keeping declaration order.
func NewAction(name string, args ...*Argument) (*Action, error) {
	a := &Action{name: name, args: slices.Clone(args)}
	for _, arg := range a.args {
		if arg.action != nil {
			return nil, fmt.Errorf("%w: argument %q", ErrAlreadyBound, arg.name)
		}
	}
	for _, arg := range a.args {
		if err := arg.bind(a); err != nil {
			a.release()
			return nil, err
		}
		switch arg.dir {
		case In:
			a.in = append(a.in, arg)
		case Out:
			a.out = append(a.out, arg)
		}
	}
	return a, nil
}

// newQueryStateVariableAction synthesizes the UDA QueryStateVariable action.
func newQueryStateVariableAction() *Action {
	a, _ := NewAction(QueryStateVariable,
		NewArgument("varName", VirtualQueryActionInput, In),
		NewArgument("return", VirtualQueryActionOutput, Out, AsReturnValue()),
	)
	return a
}

// Name returns the action name.
func (a *Action) Name() string { return a.name }

// Arguments returns all arguments in declaration order.
func (a *Action) Arguments() []*Argument { return slices.Clone(a.args) }

// InputArguments returns input arguments in declaration order.
func (a *Action) InputArguments() []*Argument { return slices.Clone(a.in) }

// OutputArguments returns output arguments in declaration order.
func (a *Action) OutputArguments() []*Argument { return slices.Clone(a.out) }

// Service returns the owning service, or nil before binding.
func (a *Action) Service() *Service { return a.service }

// IsQueryStateVariable reports whether a is the QueryStateVariable action.
func (a *Action) IsQueryStateVariable() bool { return a.name == QueryStateVariable }

// Namespace returns the XML namespace of the action element on the wire.
func (a *Action) Namespace() string {
	if a.IsQueryStateVariable() {
		return ControlNamespace
	}
	if a.service == nil {
		return ""
	}
	return a.service.Type().String()
}

// InputArgument finds an input argument by name or alias.
func (a *Action) InputArgument(name string) *Argument {
	return findArgument(a.in, name)
}

// OutputArgument finds an output argument by name or alias.
func (a *Action) OutputArgument(name string) *Argument {
	return findArgument(a.out, name)
}

// Validate returns structural errors, including arguments whose related
// state variable does not exist on the owning service.
func (a *Action) Validate() []ValidationError {
	var errs []ValidationError
	if a.name == "" {
		errs = append(errs, ValidationError{Class: "Action", Property: "name", Message: "action without name"})
	}
	for _, arg := range a.args {
		errs = append(errs, prefixErrors(a.name, arg.Validate())...)
		if a.service != nil && arg.related != "" && a.service.StateVariable(arg.related) == nil {
			errs = append(errs, ValidationError{
				Class:    "Action",
				Property: a.name + "." + arg.name,
				Message:  fmt.Sprintf("related state variable %q not found", arg.related),
			})
		}
	}
	return errs
}

// Warnings returns UDA conformance problems: naming, multiple return
// values, and a return value that is not the first output.
func (a *Action) Warnings() []Warning {
	warnings := nameWarnings("Action", a.name)
	for _, arg := range a.args {
		warnings = append(warnings, arg.Warnings()...)
	}

	retvals := 0
	for i, arg := range a.out {
		if !arg.retval {
			continue
		}
		retvals++
		if i > 0 {
			warnings = append(warnings, Warning{
				Class:    "Action",
				Property: a.name + "." + arg.name,
				Message:  "return value argument is not the first output argument",
			})
		}
	}
	if retvals > 1 {
		warnings = append(warnings, Warning{
			Class:    "Action",
			Property: a.name,
			Message:  fmt.Sprintf("%d return value arguments, at most one allowed", retvals),
		})
	}
	return warnings
}

func (a *Action) bind(s *Service) error {
	if a.service != nil {
		return fmt.Errorf("%w: action %q", ErrAlreadyBound, a.name)
	}
	a.service = s
	return nil
}

// release unbinds the arguments owned by a.
func (a *Action) release() {
	for _, arg := range a.args {
		if arg.action == a {
			arg.action = nil
		}
	}
}

func findArgument(args []*Argument, name string) *Argument {
	for _, arg := range args {
		if arg.IsNameOrAlias(name) {
			return arg
		}
	}
	return nil
}
