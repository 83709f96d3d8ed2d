package localsvc

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/control"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/gena"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/meta"
)

// Logger defines the logging interface used by executors.
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

// Change is a batch of evented state variable values of one service.
type Change struct {
	Service *meta.Service
	Values  []gena.StateVariableValue
	Time    time.Time
}

// Listener receives evented changes.
type Listener func(Change)

// Handler executes an action in place of the default state model. It may
// read and write state through the executor; a returned error becomes the
// invocation failure.
type Handler func(ctx context.Context, e *Executor, inv *control.Invocation) error

// Executor holds the state of one local service and executes its actions.
type Executor struct {
	service *meta.Service
	logger  Logger
	now     func() time.Time

	mu        sync.RWMutex
	values    map[*meta.StateVariable]any
	lastEvent map[*meta.StateVariable]eventRecord
	pending   map[*meta.StateVariable]any
	handlers  map[string]Handler
	listeners []Listener
}

// eventRecord is the last value delivered to listeners for a variable.
type eventRecord struct {
	value any
	at    time.Time
}

// NewExecutor creates an executor for a local service. State variables
// start at their declared default value, or absent when the default does
// not parse.
func NewExecutor(svc *meta.Service) (*Executor, error) {
	if svc.IsRemote() {
		return nil, fmt.Errorf("%w: %s", ErrRemoteService, svc.ID())
	}

	e := &Executor{
		service:   svc,
		logger:    noopLogger{},
		now:       time.Now,
		values:    make(map[*meta.StateVariable]any),
		lastEvent: make(map[*meta.StateVariable]eventRecord),
		pending:   make(map[*meta.StateVariable]any),
		handlers:  make(map[string]Handler),
	}
	for _, v := range svc.StateVariables() {
		def := v.TypeDetails().DefaultValue
		if def == "" {
			continue
		}
		if value, err := v.Datatype().ValueOf(def); err == nil {
			e.values[v] = value
		}
	}
	return e, nil
}

// SetLogger sets the logger for the executor.
func (e *Executor) SetLogger(logger Logger) {
	e.logger = logger
}

// Service returns the executed service.
func (e *Executor) Service() *meta.Service { return e.service }

// Handle registers a handler for the named action, replacing the default
// state model.
func (e *Executor) Handle(action string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[action] = h
}

// Subscribe registers a listener for evented changes.
func (e *Executor) Subscribe(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// Value returns the current value of a state variable.
func (e *Executor) Value(name string) (any, bool) {
	v := e.service.StateVariable(name)
	if v == nil || v.IsVirtual() {
		return nil, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	value, ok := e.values[v]
	return value, ok
}

// Snapshot returns the values of all declared state variables in
// declaration order. Absent values are included as nil.
func (e *Executor) Snapshot() []gena.StateVariableValue {
	e.mu.RLock()
	defer e.mu.RUnlock()

	vars := e.service.StateVariables()
	snapshot := make([]gena.StateVariableValue, 0, len(vars))
	for _, v := range vars {
		sv, err := gena.NewStateVariableValue(v, e.values[v])
		if err != nil {
			continue
		}
		snapshot = append(snapshot, sv)
	}
	return snapshot
}

// Set stores values by state variable name and publishes evented changes.
// Values are converted to the variable datatype; strings are parsed as
// wire text. Either all values are stored or none.
func (e *Executor) Set(values map[string]any) error {
	converted := make(map[*meta.StateVariable]any, len(values))
	for name, value := range values {
		v := e.service.StateVariable(name)
		if v == nil || v.IsVirtual() {
			return fmt.Errorf("%w: %s in %s", ErrUnknownStateVariable, name, e.service.ID())
		}
		c, err := v.Datatype().Convert(value)
		if err != nil {
			return fmt.Errorf("state variable %s: %w", name, err)
		}
		if !v.Allows(c) {
			return fmt.Errorf("%w: %s = %v", ErrNotAllowed, name, value)
		}
		converted[v] = c
	}

	change, listeners := e.apply(converted)
	e.publish(change, listeners)
	return nil
}

// Execute runs an invocation of one of the service's actions. A failure is
// recorded on the invocation and also returned.
func (e *Executor) Execute(ctx context.Context, inv *control.Invocation) error {
	err := e.execute(ctx, inv)
	if err != nil {
		failure := control.FromError(err, control.ActionFailed)
		inv.SetFailure(failure)
		e.logger.Debug("action failed",
			"service", e.service.ID().String(),
			"action", inv.Action().Name(),
			"code", failure.Code,
		)
		return failure
	}
	return nil
}

func (e *Executor) execute(ctx context.Context, inv *control.Invocation) error {
	if err := ctx.Err(); err != nil {
		return control.Wrap(control.ActionFailed, err)
	}

	action := inv.Action()
	if action.Service() != e.service || e.service.Action(action.Name()) != action {
		return control.Errorf(control.InvalidAction, "No such action '%s' in %s", action.Name(), e.service.ID())
	}

	e.mu.RLock()
	handler := e.handlers[action.Name()]
	e.mu.RUnlock()
	if handler != nil {
		return handler(ctx, e, inv)
	}

	if action.IsQueryStateVariable() {
		return e.queryStateVariable(inv)
	}
	return e.defaultAction(inv)
}

// defaultAction writes inputs to and reads outputs from related state
// variables.
func (e *Executor) defaultAction(inv *control.Invocation) error {
	action := inv.Action()

	updates := make(map[*meta.StateVariable]any)
	for _, arg := range action.InputArguments() {
		value, ok := inv.InputValue(arg.Name())
		if !ok {
			return control.Errorf(control.InvalidArgs, "Missing input argument '%s'", arg.Name())
		}
		v := arg.StateVariable()
		if !v.Allows(value.Value()) {
			if v.TypeDetails().AllowedRange != nil {
				return control.Errorf(control.ArgumentValueOutOfRange, "'%s' = %s", arg.Name(), value.String())
			}
			return control.Errorf(control.ArgumentValueInvalid, "'%s' = %s", arg.Name(), value.String())
		}
		updates[v] = value.Value()
	}

	change, listeners := e.apply(updates)

	e.mu.RLock()
	for _, arg := range action.OutputArguments() {
		av, err := control.NewArgumentValue(arg, e.values[arg.StateVariable()])
		if err == nil {
			err = inv.PutOutput(av)
		}
		if err != nil {
			e.mu.RUnlock()
			return control.Wrap(control.ActionFailed, err)
		}
	}
	e.mu.RUnlock()

	e.publish(change, listeners)
	return nil
}

func (e *Executor) queryStateVariable(inv *control.Invocation) error {
	name, _ := inv.InputValue("varName")
	v := e.service.StateVariable(name.String())
	if v == nil || v.IsVirtual() {
		return control.NewActionError(control.ErrorCode(404), "Invalid Var")
	}

	e.mu.RLock()
	text, err := v.Datatype().Format(e.values[v])
	e.mu.RUnlock()
	if err != nil {
		return control.Wrap(control.ActionFailed, err)
	}
	if err := inv.SetOutput("return", text); err != nil {
		return control.Wrap(control.ActionFailed, err)
	}
	return nil
}

// apply stores updates and computes the moderated change. It returns the
// listeners to notify outside the lock.
func (e *Executor) apply(updates map[*meta.StateVariable]any) (Change, []Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	for v, value := range updates {
		e.values[v] = value
		if v.EventDetails().SendEvents {
			e.pending[v] = value
		}
	}

	change := Change{Service: e.service, Time: now}
	for _, v := range e.service.StateVariables() {
		value, ok := e.pending[v]
		if !ok || !e.due(v, value, now) {
			continue
		}
		sv, err := gena.NewStateVariableValue(v, value)
		if err != nil {
			continue
		}
		change.Values = append(change.Values, sv)
		e.lastEvent[v] = eventRecord{value: value, at: now}
		delete(e.pending, v)
	}
	if len(change.Values) == 0 {
		return change, nil
	}
	return change, append([]Listener(nil), e.listeners...)
}

// due reports whether a pending value may be evented now. A value whose
// numeric change is below MinDelta stays pending.
func (e *Executor) due(v *meta.StateVariable, value any, now time.Time) bool {
	last, seen := e.lastEvent[v]
	if !seen {
		return true
	}
	details := v.EventDetails()
	if details.MaxRate > 0 && now.Sub(last.at) < details.MaxRate {
		return false
	}
	if details.MinDelta > 0 {
		prev, okPrev := asFloat(last.value)
		cur, okCur := asFloat(value)
		if okPrev && okCur && math.Abs(cur-prev) < float64(details.MinDelta) {
			return false
		}
	}
	return true
}

func (e *Executor) publish(change Change, listeners []Listener) {
	for _, l := range listeners {
		l(change)
	}
}

func asFloat(value any) (float64, bool) {
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
	case int:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
