package gena

import (
	"bytes"
	"errors"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/wire"
)

// StreamProcessor scans forward for property elements. Values are appended
// to the event as they are read, so a failure leaves the values read
// before it in place. Writing is shared with TreeProcessor.
type StreamProcessor struct {
	*TreeProcessor
}

// NewStreamProcessor returns a lenient processor. A nil logger discards
// output.
func NewStreamProcessor(logger Logger) *StreamProcessor {
	return &StreamProcessor{TreeProcessor: NewTreeProcessor(logger)}
}

// ReadBody scans a property set.
func (p *StreamProcessor) ReadBody(body []byte, event *IncomingEvent) error {
	p.logger.Debug("scanning GENA body", "bytes", len(body))

	if len(bytes.TrimSpace(body)) == 0 {
		return wire.Unsupported("Empty GENA body", body, nil)
	}

	s := wire.NewScanner(body)
	for {
		property, err := s.Search("property")
		if errors.Is(err, wire.ErrElementNotFound) {
			return nil
		}
		if err != nil {
			return wire.Unsupported("Can't transform property set", body, err)
		}

		err = s.EachChild(property, declared(event), func(el wire.Element) error {
			v, ok, err := matchValue(event, el.Name, el.Text)
			if ok {
				event.Values = append(event.Values, v)
			}
			return err
		})
		if err != nil {
			return wire.Unsupported("Can't transform property set", body, err)
		}
	}
}

// declared selects the elements naming a state variable of the event's
// service.
func declared(event *IncomingEvent) wire.Match {
	return func(name string) bool {
		sv := event.Service.StateVariable(name)
		return sv != nil && !sv.IsVirtual()
	}
}
