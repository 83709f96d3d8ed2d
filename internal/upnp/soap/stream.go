package soap

import (
	"bytes"
	"errors"
	"io"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/control"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/meta"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/wire"
)

// StreamProcessor reads envelopes with a forward scan for the Body and the
// action, response or Fault element. It does not check envelope structure
// or namespaces. Writing is shared with TreeProcessor.
type StreamProcessor struct {
	*TreeProcessor
}

// NewStreamProcessor returns a lenient processor. A nil logger discards
// output.
func NewStreamProcessor(logger Logger) *StreamProcessor {
	return &StreamProcessor{TreeProcessor: NewTreeProcessor(logger)}
}

// ReadRequest fills the inputs of inv from a SOAP request body.
func (p *StreamProcessor) ReadRequest(body []byte, inv *control.Invocation) error {
	action := inv.Action()
	p.logger.Debug("scanning SOAP request", "action", action.Name(), "bytes", len(body))

	if len(bytes.TrimSpace(body)) == 0 {
		return wire.Unsupported("Empty SOAP body", body, nil)
	}

	s := wire.NewScanner(body)
	if _, err := s.Search("Body"); err != nil {
		return wire.Unsupported("Can't transform message payload", body, err)
	}
	start, err := s.Search(action.Name())
	if err != nil {
		return wire.Unsupported("Could not read action element", body, err)
	}
	elements, err := s.Children(start, argumentMatch(action.InputArguments()))
	if err != nil {
		return wire.Unsupported("Can't transform message payload", body, err)
	}

	values, err := readArguments(elements, action.InputArguments())
	if err != nil {
		return wire.Unsupported("Can't transform message payload", body, err)
	}
	return putInputs(inv, values)
}

// ReadResponse fills the outputs or the failure of inv from a SOAP
// response body.
func (p *StreamProcessor) ReadResponse(body []byte, inv *control.Invocation) error {
	action := inv.Action()
	p.logger.Debug("scanning SOAP response", "action", action.Name(), "bytes", len(body))

	if len(bytes.TrimSpace(body)) == 0 {
		return wire.Unsupported("Empty SOAP body", body, nil)
	}

	s := wire.NewScanner(body)
	if _, err := s.Search("Body"); err != nil {
		return wire.Unsupported("Can't transform message payload", body, err)
	}

	responseName := action.Name() + "Response"
	for {
		start, err := s.NextStart()
		if errors.Is(err, io.EOF) {
			return wire.Unsupported("Can't transform message payload", body, control.Errorf(control.ActionFailed,
				"Action SOAP response do not contain %s element", responseName))
		}
		if err != nil {
			return wire.Unsupported("Can't transform message payload", body, err)
		}

		switch start.Name.Local {
		case "Fault":
			failure, err := p.scanFault(s, body)
			if err != nil {
				return err
			}
			inv.SetFailure(failure)
			return nil

		case responseName:
			elements, err := s.Children(start, argumentMatch(action.OutputArguments()))
			if err != nil {
				return wire.Unsupported("Can't transform message payload", body, err)
			}
			values, err := readArguments(elements, action.OutputArguments())
			if err != nil {
				return wire.Unsupported("Can't transform message payload", body, err)
			}
			return putOutputs(inv, values)
		}
	}
}

func (p *StreamProcessor) scanFault(s *wire.Scanner, body []byte) (*control.ActionError, error) {
	start, err := s.Search("UPnPError")
	if err != nil {
		return nil, wire.Unsupported("Received fault element but no UPnPError", body, err)
	}
	elements, err := s.Children(start, func(name string) bool {
		return name == "errorCode" || name == "errorDescription"
	})
	if err != nil {
		return nil, wire.Unsupported("Can't transform message payload", body, err)
	}
	return faultFromElements(elements, body)
}

// argumentMatch selects the elements named after one of args or an alias.
func argumentMatch(args []*meta.Argument) wire.Match {
	return func(name string) bool {
		for _, arg := range args {
			if arg.IsNameOrAlias(name) {
				return true
			}
		}
		return false
	}
}
