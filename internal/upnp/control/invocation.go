package control

import (
	"fmt"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/meta"
)

// ArgumentValue pairs an argument with a value of its datatype.
type ArgumentValue struct {
	arg   *meta.Argument
	value any
}

// NewArgumentValue converts value to the datatype of arg. Strings are
// parsed as wire text.
//
// Returns:
//   - ArgumentValue: The typed value
//   - error: *ActionError with ArgumentValueInvalid if value does not fit
func NewArgumentValue(arg *meta.Argument, value any) (ArgumentValue, error) {
	typ := arg.Datatype()
	if typ == "" {
		return ArgumentValue{}, Errorf(ArgumentValueInvalid, "argument %q has no resolvable datatype", arg.Name())
	}
	v, err := typ.Convert(value)
	if err != nil {
		ae := Errorf(ArgumentValueInvalid, "Wrong type or invalid value for '%s': %v", arg.Name(), err)
		ae.Err = err
		return ArgumentValue{}, ae
	}
	return ArgumentValue{arg: arg, value: v}, nil
}

// Argument returns the declared argument.
func (v ArgumentValue) Argument() *meta.Argument { return v.arg }

// Value returns the typed value; nil when absent.
func (v ArgumentValue) Value() any { return v.value }

// String returns the wire text of the value.
func (v ArgumentValue) String() string {
	if v.arg == nil {
		return ""
	}
	s, err := v.arg.Datatype().Format(v.value)
	if err != nil {
		return ""
	}
	return s
}

// Invocation is a single call of an action: its inputs, and after
// completion either its outputs or a failure.
//
// An Invocation is not safe for concurrent use.
type Invocation struct {
	action  *meta.Action
	input   map[*meta.Argument]ArgumentValue
	output  map[*meta.Argument]ArgumentValue
	failure *ActionError
}

// NewInvocation returns an empty invocation of action.
func NewInvocation(action *meta.Action) *Invocation {
	return &Invocation{
		action: action,
		input:  make(map[*meta.Argument]ArgumentValue),
		output: make(map[*meta.Argument]ArgumentValue),
	}
}

// Action returns the invoked action.
func (i *Invocation) Action() *meta.Action { return i.action }

// Input returns the set input values in declaration order.
func (i *Invocation) Input() []ArgumentValue {
	return ordered(i.action.InputArguments(), i.input)
}

// Output returns the set output values in declaration order.
func (i *Invocation) Output() []ArgumentValue {
	return ordered(i.action.OutputArguments(), i.output)
}

// InputValue returns the input value for name or alias.
func (i *Invocation) InputValue(name string) (ArgumentValue, bool) {
	arg := i.action.InputArgument(name)
	if arg == nil {
		return ArgumentValue{}, false
	}
	v, ok := i.input[arg]
	return v, ok
}

// OutputValue returns the output value for name or alias.
func (i *Invocation) OutputValue(name string) (ArgumentValue, bool) {
	arg := i.action.OutputArgument(name)
	if arg == nil {
		return ArgumentValue{}, false
	}
	v, ok := i.output[arg]
	return v, ok
}

// SetInput converts and stores an input value by argument name or alias.
func (i *Invocation) SetInput(name string, value any) error {
	arg := i.action.InputArgument(name)
	if arg == nil {
		return fmt.Errorf("%w: %s has no input %q", ErrUnknownArgument, i.action.Name(), name)
	}
	v, err := NewArgumentValue(arg, value)
	if err != nil {
		return err
	}
	i.input[arg] = v
	return nil
}

// SetOutput converts and stores an output value by argument name or alias.
func (i *Invocation) SetOutput(name string, value any) error {
	arg := i.action.OutputArgument(name)
	if arg == nil {
		return fmt.Errorf("%w: %s has no output %q", ErrUnknownArgument, i.action.Name(), name)
	}
	v, err := NewArgumentValue(arg, value)
	if err != nil {
		return err
	}
	i.output[arg] = v
	return nil
}

// PutInput stores an already converted input value.
func (i *Invocation) PutInput(v ArgumentValue) error {
	if err := i.check(v, meta.In); err != nil {
		return err
	}
	i.input[v.arg] = v
	return nil
}

// PutOutput stores an already converted output value.
func (i *Invocation) PutOutput(v ArgumentValue) error {
	if err := i.check(v, meta.Out); err != nil {
		return err
	}
	i.output[v.arg] = v
	return nil
}

// Failure returns the failure, or nil.
func (i *Invocation) Failure() *ActionError { return i.failure }

// Failed reports whether the invocation carries a failure.
func (i *Invocation) Failed() bool { return i.failure != nil }

// SetFailure records a failure. Output values are discarded.
func (i *Invocation) SetFailure(err *ActionError) {
	i.failure = err
	if err != nil {
		clear(i.output)
	}
}

func (i *Invocation) check(v ArgumentValue, dir meta.Direction) error {
	if v.arg == nil || v.arg.Action() != i.action {
		return fmt.Errorf("%w: not an argument of %s", ErrUnknownArgument, i.action.Name())
	}
	if v.arg.Direction() != dir {
		return fmt.Errorf("%w: %s is not an %s argument", ErrWrongDirection, v.arg.Name(), dir)
	}
	return nil
}

func ordered(args []*meta.Argument, values map[*meta.Argument]ArgumentValue) []ArgumentValue {
	out := make([]ArgumentValue, 0, len(values))
	for _, arg := range args {
		if v, ok := values[arg]; ok {
			out = append(out, v)
		}
	}
	return out
}
