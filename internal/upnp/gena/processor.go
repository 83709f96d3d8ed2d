package gena

import (
	"fmt"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/wire"
)

// Processor reads and writes GENA property-set bodies.
type Processor interface {
	// WriteBody renders values as a property set, one property per value.
	WriteBody(values []StateVariableValue) ([]byte, error)

	// ReadBody appends the values found in body to event.Values, matching
	// element names against event.Service.
	ReadBody(body []byte, event *IncomingEvent) error
}

// Logger defines the logging interface used by the processors.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// New returns the processor for a strategy.
func New(strategy wire.Strategy, logger Logger) (Processor, error) {
	switch strategy {
	case wire.Strict:
		return NewTreeProcessor(logger), nil
	case wire.Lenient:
		return NewStreamProcessor(logger), nil
	case wire.Recovering:
		return NewRecoveringProcessor(logger), nil
	}
	return nil, fmt.Errorf("%w: %q", wire.ErrUnknownStrategy, strategy)
}
