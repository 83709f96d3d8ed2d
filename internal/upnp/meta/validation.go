package meta

import (
	"fmt"
	"regexp"
	"strings"
)

// UDA naming rules. Breaking them produces a Warning, never an error.
const (
	maxNameLength         = 32
	maxAllowedValueLength = 31
)

var udaNameRegex = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}_.\-]*$`)

// ValidationError is a structural problem found by Validate.
type ValidationError struct {
	Class    string // Node kind, e.g. "Action"
	Property string // Offending property, e.g. "name"
	Message  string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Class, e.Property, e.Message)
}

// ValidationErrors collects every structural problem of a graph.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return strings.Join(msgs, "; ")
}

// Warning is a deviation from the UDA conformance rules. It is reported but
// does not invalidate the node.
type Warning struct {
	Class    string
	Property string
	Message  string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s.%s: %s", w.Class, w.Property, w.Message)
}

// Logger defines the logging interface used while building the graph.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Option configures NewService and NewDevice.
type Option func(*options)

type options struct {
	logger Logger
}

// WithLogger routes dropped-node and conformance diagnostics to logger.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: noopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// nameWarnings checks a UDA name against the length and token rules.
func nameWarnings(class, name string) []Warning {
	var warnings []Warning
	if len(name) >= maxNameLength {
		warnings = append(warnings, Warning{
			Class:    class,
			Property: "name",
			Message:  fmt.Sprintf("%q should be shorter than %d characters", name, maxNameLength),
		})
	}
	if name != "" && (!udaNameRegex.MatchString(name) || strings.HasPrefix(strings.ToLower(name), "xml")) {
		warnings = append(warnings, Warning{
			Class:    class,
			Property: "name",
			Message:  fmt.Sprintf("%q is not a valid UDA name", name),
		})
	}
	return warnings
}

// prefixErrors qualifies child errors with the parent node.
func prefixErrors(prefix string, errs []ValidationError) []ValidationError {
	for i := range errs {
		errs[i].Property = prefix + "." + errs[i].Property
	}
	return errs
}

func logWarnings(logger Logger, warnings []Warning) {
	for _, w := range warnings {
		logger.Warn("UPnP specification violation", "class", w.Class, "property", w.Property, "detail", w.Message)
	}
}
