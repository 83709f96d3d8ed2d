package soap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/control"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/meta"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/wire"
)

// SOAP 1.1 namespaces.
const (
	EnvelopeNamespace = "http://schemas.xmlsoap.org/soap/envelope/"
	EncodingNamespace = "http://schemas.xmlsoap.org/soap/encoding/"
)

// ContentType is the media type of SOAP bodies.
const ContentType = `text/xml; charset="utf-8"`

// Processor reads and writes the SOAP bodies of one action invocation.
type Processor interface {
	// WriteRequest renders the input values of inv.
	WriteRequest(inv *control.Invocation) ([]byte, error)

	// ReadRequest fills the input values of inv from body.
	ReadRequest(body []byte, inv *control.Invocation) error

	// WriteResponse renders the output values of inv, or a Fault when inv
	// carries a failure.
	WriteResponse(inv *control.Invocation) ([]byte, error)

	// ReadResponse fills the output values or the failure of inv from body.
	ReadResponse(body []byte, inv *control.Invocation) error
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

// ActionHeader returns the SOAPACTION header value for action,
// e.g. "urn:schemas-upnp-org:service:SwitchPower:1#SetTarget".
func ActionHeader(action *meta.Action) string {
	return strconv.Quote(action.Namespace() + "#" + action.Name())
}

// ParseActionHeader splits a SOAPACTION header into namespace and action
// name. Quotes are optional.
func ParseActionHeader(header string) (namespace, action string, err error) {
	h := strings.Trim(strings.TrimSpace(header), `"`)
	namespace, action, ok := strings.Cut(h, "#")
	if !ok || namespace == "" || action == "" {
		return "", "", wire.Unsupported("invalid SOAPACTION header", []byte(header), nil)
	}
	return namespace, action, nil
}

// readArguments matches wire elements against declared arguments, ignoring
// case and honouring aliases. Elements may appear in any order; an argument
// without a matching element fails.
func readArguments(elements []wire.Element, args []*meta.Argument) ([]control.ArgumentValue, error) {
	matched := 0
	for _, e := range elements {
		for _, arg := range args {
			if arg.IsNameOrAlias(e.Name) {
				matched++
				break
			}
		}
	}
	if matched < len(args) {
		return nil, control.NewActionError(control.ArgumentValueInvalid, fmt.Sprintf(
			"Invalid number of input or output arguments in XML message, expected %d but found %d",
			len(args), matched,
		))
	}

	values := make([]control.ArgumentValue, 0, len(args))
	for _, arg := range args {
		e, ok := findElement(elements, arg)
		if !ok {
			return nil, control.NewActionError(control.ArgumentValueInvalid,
				fmt.Sprintf("Could not find argument '%s' node", arg.Name()))
		}
		v, err := control.NewArgumentValue(arg, e.Text)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func findElement(elements []wire.Element, arg *meta.Argument) (wire.Element, bool) {
	for _, e := range elements {
		if arg.IsNameOrAlias(e.Name) {
			return e, true
		}
	}
	return wire.Element{}, false
}

// faultFromElements decodes the children of a UPnPError element.
func faultFromElements(elements []wire.Element, body []byte) (*control.ActionError, error) {
	var code, description string
	for _, e := range elements {
		switch e.Name {
		case "errorCode":
			code = strings.TrimSpace(e.Text)
		case "errorDescription":
			description = strings.TrimSpace(e.Text)
		}
	}
	if code == "" {
		return nil, wire.Unsupported("Received fault element but no error code", body, nil)
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return nil, wire.Unsupported("Error code was not a number", body, err)
	}
	return control.NewActionError(control.ErrorCode(n), description), nil
}

func putInputs(inv *control.Invocation, values []control.ArgumentValue) error {
	for _, v := range values {
		if err := inv.PutInput(v); err != nil {
			return err
		}
	}
	return nil
}

func putOutputs(inv *control.Invocation, values []control.ArgumentValue) error {
	for _, v := range values {
		if err := inv.PutOutput(v); err != nil {
			return err
		}
	}
	return nil
}
